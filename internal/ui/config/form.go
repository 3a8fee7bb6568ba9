// Package config provides the interactive setup form behind
// "agentmail configure".
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/agentmail-skill/internal/credential"
	"github.com/nhle/agentmail-skill/internal/model"
)

const defaultFormWidth = 72

// Secret is a credential collected by the form, destined for the keyring.
type Secret struct {
	Item  string
	Value string
}

// Form holds the values edited by the setup form. Ports are kept as
// strings while editing and parsed by Apply.
type Form struct {
	Backend string

	BaseURL string
	InboxID string
	APIKey  string

	IMAPHost string
	IMAPPort string
	SMTPHost string
	SMTPPort string
	Username string
	Password string
	TLS      bool

	width int
}

// NewForm prefills a form from cfg. Secrets are never prefilled.
func NewForm(cfg *model.Config) *Form {
	return &Form{
		Backend:  cfg.Backend,
		BaseURL:  cfg.AgentMail.BaseURL,
		InboxID:  cfg.AgentMail.InboxID,
		IMAPHost: cfg.IMAP.Host,
		IMAPPort: strconv.Itoa(cfg.IMAP.Port),
		SMTPHost: cfg.SMTP.Host,
		SMTPPort: strconv.Itoa(cfg.SMTP.Port),
		Username: cfg.IMAP.Username,
		TLS:      cfg.IMAP.TLS,
		width:    defaultFormWidth,
	}
}

// Build returns the huh form bound to f. Only the group for the selected
// backend is shown.
func (f *Form) Build() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Backend").
				Options(
					huh.NewOption("AgentMail - hosted agent inboxes", model.BackendAgentMail),
					huh.NewOption("IMAP - any IMAP/SMTP mailbox", model.BackendIMAP),
				).
				Value(&f.Backend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL").
				Description("AgentMail API URL").
				Placeholder("https://api.agentmail.to").
				Value(&f.BaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Inbox ID").
				Description("Default inbox, used for message lookups by thread scan").
				Value(&f.InboxID),
			huh.NewInput().
				Title("API Key").
				Description("Stored in the system keyring. Leave blank to keep the current key.").
				EchoMode(huh.EchoModePassword).
				Value(&f.APIKey),
		).WithHideFunc(func() bool { return f.Backend != model.BackendAgentMail }),
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Placeholder("imap.example.com").
				Value(&f.IMAPHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Placeholder("993").
				Value(&f.IMAPPort).
				Validate(validatePort),
			huh.NewInput().
				Title("SMTP Host").
				Description("Leave blank to use the IMAP host").
				Placeholder("smtp.example.com").
				Value(&f.SMTPHost),
			huh.NewInput().
				Title("SMTP Port").
				Placeholder("587").
				Value(&f.SMTPPort).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Placeholder("user@example.com").
				Value(&f.Username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Stored in the system keyring. Leave blank to keep the current password.").
				EchoMode(huh.EchoModePassword).
				Value(&f.Password),
			huh.NewConfirm().
				Title("Use TLS").
				Affirmative("Yes").
				Negative("No").
				Value(&f.TLS),
		).WithHideFunc(func() bool { return f.Backend != model.BackendIMAP }),
	).WithWidth(f.width)
}

// Apply writes the non-secret form values into cfg. cfg is left
// untouched when a port does not parse.
func (f *Form) Apply(cfg *model.Config) error {
	switch f.Backend {
	case model.BackendAgentMail:
		cfg.AgentMail.BaseURL = strings.TrimRight(strings.TrimSpace(f.BaseURL), "/")
		cfg.AgentMail.InboxID = strings.TrimSpace(f.InboxID)
	case model.BackendIMAP:
		imapPort, err := parsePort(f.IMAPPort)
		if err != nil {
			return fmt.Errorf("imap port: %w", err)
		}
		smtpPort, err := parsePort(f.SMTPPort)
		if err != nil {
			return fmt.Errorf("smtp port: %w", err)
		}
		cfg.IMAP.Host = strings.TrimSpace(f.IMAPHost)
		cfg.IMAP.Port = imapPort
		cfg.IMAP.Username = strings.TrimSpace(f.Username)
		cfg.IMAP.TLS = f.TLS
		cfg.SMTP.Host = strings.TrimSpace(f.SMTPHost)
		cfg.SMTP.Port = smtpPort
	default:
		return fmt.Errorf("unknown backend %q", f.Backend)
	}
	cfg.Backend = f.Backend
	return nil
}

// Secrets returns the credentials entered for the selected backend.
// Blank fields are omitted so existing keyring entries survive.
func (f *Form) Secrets() []Secret {
	var secrets []Secret
	switch f.Backend {
	case model.BackendAgentMail:
		if key := strings.TrimSpace(f.APIKey); key != "" {
			secrets = append(secrets, Secret{Item: credential.APIKeyItem, Value: key})
		}
	case model.BackendIMAP:
		if f.Password != "" {
			secrets = append(secrets, Secret{Item: credential.IMAPPasswordItem, Value: f.Password})
		}
	}
	return secrets
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validatePort(s string) error {
	_, err := parsePort(s)
	return err
}

func parsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("port is required")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("port must be a number")
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("port must be between 1 and 65535")
	}
	return n, nil
}
