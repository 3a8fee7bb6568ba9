package credential

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted before the keyring.
const (
	APIKeyEnv       = "AGENTMAIL_API_KEY"
	IMAPPasswordEnv = "AGENTMAIL_IMAP_PASSWORD"
)

// Resolver looks up secrets in order: environment, system keyring, then
// the credentials file. Lookups happen on every call so rotated
// credentials are picked up without a restart.
type Resolver struct {
	// CredentialsPath is a JSON file of the form {"api_key": "..."}.
	CredentialsPath string

	getenv   func(string) string
	keyring  func(string) (string, error)
	readFile func(string) ([]byte, error)
}

// NewResolver returns a Resolver backed by the process environment, the
// system keyring and the file at credentialsPath.
func NewResolver(credentialsPath string) *Resolver {
	return &Resolver{
		CredentialsPath: credentialsPath,
		getenv:          os.Getenv,
		keyring:         Get,
		readFile:        os.ReadFile,
	}
}

// APIKey returns the AgentMail API key.
func (r *Resolver) APIKey() (string, error) {
	if key := strings.TrimSpace(r.getenv(APIKeyEnv)); key != "" {
		return key, nil
	}
	if key, err := r.keyring(APIKeyItem); err == nil && key != "" {
		return key, nil
	}
	if key := r.fileAPIKey(); key != "" {
		return key, nil
	}
	return "", fmt.Errorf(
		"AgentMail API key not found. Set %s env var, store it with "+
			"'agentmail configure', or create %s with { \"api_key\": \"...\" }.",
		APIKeyEnv, r.CredentialsPath,
	)
}

// fileAPIKey returns the api_key field of the credentials file, or "" when
// the file is missing, unreadable or malformed.
func (r *Resolver) fileAPIKey() string {
	if r.CredentialsPath == "" {
		return ""
	}
	data, err := r.readFile(r.CredentialsPath)
	if err != nil {
		return ""
	}
	var creds struct {
		APIKey any `json:"api_key"`
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return ""
	}
	key, _ := creds.APIKey.(string)
	return key
}

// IMAPPassword returns the password shared by the IMAP and SMTP logins.
func (r *Resolver) IMAPPassword() (string, error) {
	if pw := r.getenv(IMAPPasswordEnv); pw != "" {
		return pw, nil
	}
	pw, err := r.keyring(IMAPPasswordItem)
	if err != nil {
		return "", fmt.Errorf("IMAP password not found. Set %s or store it with 'agentmail configure': %w",
			IMAPPasswordEnv, err)
	}
	return pw, nil
}
