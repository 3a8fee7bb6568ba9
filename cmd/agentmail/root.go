package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/agentmail-skill/internal/credential"
	"github.com/nhle/agentmail-skill/internal/model"
	"github.com/nhle/agentmail-skill/internal/source"
	"github.com/nhle/agentmail-skill/internal/source/agentmail"
	"github.com/nhle/agentmail-skill/internal/source/email"
	"github.com/nhle/agentmail-skill/internal/store"
	"github.com/nhle/agentmail-skill/internal/tools"
)

// errToolFailed is returned by "call" when the tool reported ok=false.
// The result has already been printed, so main only sets the exit code.
var errToolFailed = errors.New("tool call failed")

// app carries state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string

	cfg    *model.Config
	logger *slog.Logger
	stderr io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{stderr: os.Stderr}

	root := &cobra.Command{
		Use:           "agentmail",
		Short:         "Email tools for autonomous agents, with untrusted content sanitized",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(true)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", model.DefaultConfigPath(), "Path to the config file")
	flags.StringVar(&a.logLevel, "log-level", "", "Logging level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newToolsCmd(a),
		newCallCmd(a),
		newServeCmd(a),
		newConfigureCmd(a),
		newAuditCmd(a),
	)
	return root
}

// load reads the config file and sets up logging. configure skips
// validation so it can repair a broken file.
func (a *app) load(validate bool) error {
	cfg, err := model.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.logger = setupLogger(cfg.Log.Level, a.stderr)
	slog.SetDefault(a.logger)
	return nil
}

// setupLogger writes text logs to w. stdout is reserved for tool results.
func setupLogger(levelName string, w io.Writer) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch strings.ToLower(levelName) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newRegistry wires the configured mailbox and audit store into a tool
// registry. The returned cleanup closes the audit store.
func (a *app) newRegistry() (*tools.Registry, func(), error) {
	mailbox, err := newMailbox(a.cfg, credential.NewResolver(a.cfg.AgentMail.CredentialsPath), a.logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []tools.Option{tools.WithLogger(a.logger)}
	cleanup := func() {}

	if a.cfg.Audit.Enabled {
		s, err := openAuditStore(a.cfg.Audit.DBPath)
		if err != nil {
			a.logger.Warn("audit log disabled", "error", err)
		} else {
			opts = append(opts, tools.WithAuditor(s))
			cleanup = func() {
				if err := s.Close(); err != nil {
					a.logger.Warn("closing audit store", "error", err)
				}
			}
		}
	}

	return tools.NewRegistry(mailbox, opts...), cleanup, nil
}

func newMailbox(cfg *model.Config, creds *credential.Resolver, logger *slog.Logger) (source.Mailbox, error) {
	switch cfg.Backend {
	case model.BackendIMAP:
		smtpHost := cfg.SMTP.Host
		if smtpHost == "" {
			smtpHost = cfg.IMAP.Host
		}
		return email.NewMailbox(email.Config{
			IMAPHost: cfg.IMAP.Host,
			IMAPPort: fmt.Sprint(cfg.IMAP.Port),
			TLS:      cfg.IMAP.TLS,
			Mailbox:  cfg.IMAP.Mailbox,
			SMTPHost: smtpHost,
			SMTPPort: fmt.Sprint(cfg.SMTP.Port),
			Username: cfg.IMAP.Username,
			Password: creds.IMAPPassword,
		}, logger), nil

	case model.BackendAgentMail:
		client := agentmail.NewClient(
			cfg.AgentMail.BaseURL,
			creds.APIKey,
			agentmail.WithTimeout(cfg.AgentMail.Timeout()),
			agentmail.WithMaxRetries(cfg.AgentMail.MaxRetries),
			agentmail.WithLogger(logger),
		)
		return agentmail.NewMailbox(client, cfg.AgentMail.InboxID, logger), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func openAuditStore(path string) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	return store.NewSQLiteStore(path)
}
