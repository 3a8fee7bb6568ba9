package credential

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, env map[string]string, ring map[string]string, file string) *Resolver {
	t.Helper()

	path := filepath.Join(t.TempDir(), "credentials.json")
	if file != "" {
		require.NoError(t, os.WriteFile(path, []byte(file), 0o600))
	}

	return &Resolver{
		CredentialsPath: path,
		getenv:          func(k string) string { return env[k] },
		keyring: func(k string) (string, error) {
			if v, ok := ring[k]; ok {
				return v, nil
			}
			return "", errors.New("item not found")
		},
		readFile: os.ReadFile,
	}
}

func TestResolver_APIKey(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		ring    map[string]string
		file    string
		want    string
		wantErr bool
	}{
		{
			name: "env wins",
			env:  map[string]string{APIKeyEnv: "env-key"},
			ring: map[string]string{APIKeyItem: "ring-key"},
			file: `{"api_key":"file-key"}`,
			want: "env-key",
		},
		{
			name: "keyring before file",
			ring: map[string]string{APIKeyItem: "ring-key"},
			file: `{"api_key":"file-key"}`,
			want: "ring-key",
		},
		{
			name: "file fallback",
			file: `{"api_key":"file-key"}`,
			want: "file-key",
		},
		{
			name:    "file with non-string key",
			file:    `{"api_key":42}`,
			wantErr: true,
		},
		{
			name:    "malformed file",
			file:    `{api_key`,
			wantErr: true,
		},
		{
			name:    "nothing configured",
			wantErr: true,
		},
		{
			name: "blank env ignored",
			env:  map[string]string{APIKeyEnv: "  "},
			file: `{"api_key":"file-key"}`,
			want: "file-key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, tt.env, tt.ring, tt.file)

			got, err := r.APIKey()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "AgentMail API key not found")
				assert.Contains(t, err.Error(), r.CredentialsPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_IMAPPassword(t *testing.T) {
	r := newTestResolver(t, map[string]string{IMAPPasswordEnv: "env-pw"}, map[string]string{IMAPPasswordItem: "ring-pw"}, "")
	pw, err := r.IMAPPassword()
	require.NoError(t, err)
	assert.Equal(t, "env-pw", pw)

	r = newTestResolver(t, nil, map[string]string{IMAPPasswordItem: "ring-pw"}, "")
	pw, err = r.IMAPPassword()
	require.NoError(t, err)
	assert.Equal(t, "ring-pw", pw)

	r = newTestResolver(t, nil, nil, "")
	_, err = r.IMAPPassword()
	assert.Error(t, err)
}
