package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Backend names accepted by the "backend" setting.
const (
	BackendAgentMail = "agentmail"
	BackendIMAP      = "imap"
)

// AgentMailConfig holds settings for the AgentMail HTTP API.
type AgentMailConfig struct {
	// BaseURL is the API root; trailing slashes are ignored.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`

	// InboxID enables the thread-scan fallback when direct message
	// lookups are not supported by the server.
	InboxID string `mapstructure:"inbox_id" yaml:"inbox_id"`

	// CredentialsPath is the JSON file consulted when neither the
	// environment nor the keyring holds an API key.
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`

	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec" validate:"min=1"`
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
}

// Timeout returns the per-request HTTP timeout.
func (c AgentMailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// IMAPConfig holds settings for the IMAP mailbox backend.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`
}

// SMTPConfig holds settings for outgoing mail on the IMAP backend.
// Credentials are shared with IMAPConfig.
type SMTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
}

// AuditConfig controls the local tool-invocation log.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DBPath  string `mapstructure:"db_path" yaml:"db_path"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn warning error"`
}

// Config is the top-level application configuration.
type Config struct {
	Backend   string          `mapstructure:"backend" yaml:"backend" validate:"oneof=agentmail imap"`
	AgentMail AgentMailConfig `mapstructure:"agentmail" yaml:"agentmail"`
	IMAP      IMAPConfig      `mapstructure:"imap" yaml:"imap"`
	SMTP      SMTPConfig      `mapstructure:"smtp" yaml:"smtp"`
	Audit     AuditConfig     `mapstructure:"audit" yaml:"audit"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Backend == BackendIMAP && c.IMAP.Host == "" {
		return errors.New("invalid config: imap.host is required for the imap backend")
	}
	return nil
}

// ConfigDir returns ~/.config/agentmail, or "." when the home directory
// cannot be determined.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "agentmail")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/agentmail/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	dir := ConfigDir()

	v.SetDefault("backend", BackendAgentMail)
	v.SetDefault("agentmail.base_url", "https://api.agentmail.to")
	v.SetDefault("agentmail.inbox_id", "")
	v.SetDefault("agentmail.credentials_path", filepath.Join(dir, "credentials.json"))
	v.SetDefault("agentmail.timeout_sec", 30)
	v.SetDefault("agentmail.max_retries", 3)
	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.db_path", filepath.Join(dir, "audit.db"))
	v.SetDefault("log.level", "info")
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"backend":            "AGENTMAIL_BACKEND",
		"agentmail.base_url": "AGENTMAIL_BASE_URL",
		"agentmail.inbox_id": "AGENTMAIL_INBOX_ID",
		"log.level":          "AGENTMAIL_LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s to %s: %w", key, env, err)
		}
	}
	return nil
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults and environment overrides
// still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.AgentMail.BaseURL = strings.TrimRight(cfg.AgentMail.BaseURL, "/")
	cfg.AgentMail.CredentialsPath = ExpandHome(cfg.AgentMail.CredentialsPath)
	cfg.Audit.DBPath = ExpandHome(cfg.Audit.DBPath)

	return cfg, nil
}

func isNotExist(err error) bool {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return true
	}
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("agentmail", cfg.AgentMail)
	v.Set("imap", cfg.IMAP)
	v.Set("smtp", cfg.SMTP)
	v.Set("audit", cfg.Audit)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
