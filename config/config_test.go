package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestLoadCreatesDefaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv("MENTOR_CONFIG_DIR", filepath.Join(root, "cfg"))
	t.Setenv("MENTOR_DATA_DIR", filepath.Join(root, "data"))
	t.Setenv("MENTOR_INDEX_NAME", "algorithms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "data"), cfg.DataDir())
	assert.Equal(t, "algorithms", cfg.IndexName)
	assert.Equal(t, DefaultMaxHistoryTokens, cfg.MaxHistoryTokens)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultResetGrace, cfg.ResetGrace)
	assert.Equal(t, DefaultEmbeddingModel, cfg.EmbeddingModel)
	assert.NotNil(t, cfg.CredentialStore)

	assert.FileExists(t, filepath.Join(root, "cfg", "settings.toml"))
	assert.FileExists(t, filepath.Join(root, "data", "config.toml"))

	info, err := os.Stat(filepath.Join(root, "data"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestLoadReadsUserConfig(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	t.Setenv("MENTOR_CONFIG_DIR", filepath.Join(root, "cfg"))
	t.Setenv("MENTOR_DATA_DIR", dataDir)

	user := DefaultUserConfig()
	user.Provider.Type = "openai"
	user.Provider.Model = "gpt-4o-mini"
	user.Router.Timeout = "30s"
	user.Router.MaxHistoryTokens = 1000
	user.Chat.ResetGrace = "10ms"
	require.NoError(t, SaveUserConfig(user, dataDir))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.ProviderType)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 1000, cfg.MaxHistoryTokens)
	assert.Equal(t, 10*time.Millisecond, cfg.ResetGrace)
}

func TestApplyUserConfigRejectsBadDuration(t *testing.T) {
	cfg := Default()
	u := DefaultUserConfig()
	u.Router.Timeout = "soon"
	err := cfg.applyUserConfig(u)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "router timeout")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.ProviderType = "gemini" }, wantErr: "unknown provider type"},
		{name: "empty model", mutate: func(c *Config) { c.Model = "" }, wantErr: "model"},
		{name: "zero budget", mutate: func(c *Config) { c.MaxHistoryTokens = 0 }, wantErr: "max_history_tokens"},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }, wantErr: "timeout"},
		{name: "bad fallback", mutate: func(c *Config) { c.Fallback = "retry" }, wantErr: "fallback"},
		{name: "bad storage", mutate: func(c *Config) { c.Security = "keychain" }, wantErr: "credential storage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCredentialStorePlainText(t *testing.T) {
	dir := t.TempDir()

	store := NewCredentialStore(SecurityPlainText, "")
	require.NoError(t, store.Load(dir))
	assert.Empty(t, store.Get(CredentialLLMKey))

	store.Set(CredentialLLMKey, "llm-secret")
	store.Set(CredentialIndexKey, "index-secret")
	require.NoError(t, store.Save(dir))

	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded := NewCredentialStore(SecurityPlainText, "")
	require.NoError(t, reloaded.Load(dir))
	assert.Equal(t, "llm-secret", reloaded.Get(CredentialLLMKey))
	assert.Equal(t, "index-secret", reloaded.Get(CredentialIndexKey))

	reloaded.Delete(CredentialIndexKey)
	assert.Empty(t, reloaded.Get(CredentialIndexKey))
}

func TestCredentialStoreEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MENTOR_INDEX_API_KEY", "from-env")

	store := NewCredentialStore(SecurityPlainText, "")
	store.Set(CredentialIndexKey, "from-file")
	require.NoError(t, store.Save(dir))

	require.NoError(t, store.Load(dir))
	assert.Equal(t, "from-env", store.Get(CredentialIndexKey))
}

func writeTestSSHKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func TestCredentialStoreSSHEncrypted(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeTestSSHKey(t)

	store := NewCredentialStore(SecuritySSHKey, keyPath)
	store.Set(CredentialLLMKey, "llm-secret")
	require.NoError(t, store.Save(dir))

	raw, err := os.ReadFile(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "llm-secret")

	reloaded := NewCredentialStore(SecuritySSHKey, keyPath)
	require.NoError(t, reloaded.Load(dir))
	assert.Equal(t, "llm-secret", reloaded.Get(CredentialLLMKey))
}

func TestEncryptionManagerRequiresKeyPath(t *testing.T) {
	m := NewEncryptionManager(EncryptionSSHKey, "")
	assert.Error(t, m.Initialize())

	_, err := m.Encrypt([]byte("x"))
	assert.ErrorContains(t, err, "not initialized")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "<empty>", Redact(""))
	assert.Equal(t, "***", Redact("abc"))
	assert.Equal(t, "********wxyz", Redact("sk-abcdefwxyz"))
}
