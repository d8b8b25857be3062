package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type ProviderSection struct {
	Type        string  `toml:"type"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

type OllamaSection struct {
	Host           string `toml:"host"`
	EmbeddingModel string `toml:"embedding_model"`
}

type IndexSection struct {
	Name string `toml:"name"`
}

type RouterSection struct {
	MaxHistoryTokens int    `toml:"max_history_tokens"`
	Timeout          string `toml:"timeout"`
	Fallback         string `toml:"fallback"`
}

type ChatSection struct {
	ResetGrace string `toml:"reset_grace"`
	Greeting   string `toml:"greeting,omitempty"`
}

type SecuritySection struct {
	CredentialStorage string `toml:"credential_storage"`
	SSHKeyPath        string `toml:"ssh_key_path,omitempty"`
}

type UserConfig struct {
	Provider ProviderSection `toml:"provider"`
	Ollama   OllamaSection   `toml:"ollama"`
	Index    IndexSection    `toml:"index"`
	Router   RouterSection   `toml:"router"`
	Chat     ChatSection     `toml:"chat"`
	Security SecuritySection `toml:"security"`
}

type Config struct {
	DataDirectory string

	ProviderType string
	BaseURL      string
	Model        string
	Temperature  float64
	MaxTokens    int

	OllamaHost     string
	EmbeddingModel string
	IndexName      string

	MaxHistoryTokens int
	Timeout          time.Duration
	Fallback         string

	ResetGrace time.Duration
	Greeting   string

	Security   SecurityMethod
	SSHKeyPath string

	CredentialStore *CredentialStore
}

var Debug = false
var DebugLog *log.Logger

// Debugf writes to the debug log when debug logging is enabled.
func Debugf(format string, args ...any) {
	if Debug && DebugLog != nil {
		DebugLog.Output(2, fmt.Sprintf(format, args...))
	}
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// IndexDir is where the local vector indexes live.
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir(), "indexes")
}

func (c *Config) applyUserConfig(u *UserConfig) error {
	if u.Provider.Type != "" {
		c.ProviderType = u.Provider.Type
	}
	if u.Provider.BaseURL != "" {
		c.BaseURL = u.Provider.BaseURL
	}
	if u.Provider.Model != "" {
		c.Model = u.Provider.Model
	}
	if u.Provider.Temperature != 0 {
		c.Temperature = u.Provider.Temperature
	}
	if u.Provider.MaxTokens != 0 {
		c.MaxTokens = u.Provider.MaxTokens
	}
	if u.Ollama.Host != "" {
		c.OllamaHost = u.Ollama.Host
	}
	if u.Ollama.EmbeddingModel != "" {
		c.EmbeddingModel = u.Ollama.EmbeddingModel
	}
	if u.Index.Name != "" {
		c.IndexName = u.Index.Name
	}
	if u.Router.MaxHistoryTokens != 0 {
		c.MaxHistoryTokens = u.Router.MaxHistoryTokens
	}
	if u.Router.Fallback != "" {
		c.Fallback = u.Router.Fallback
	}
	if u.Router.Timeout != "" {
		d, err := time.ParseDuration(u.Router.Timeout)
		if err != nil {
			return fmt.Errorf("invalid router timeout %q: %w", u.Router.Timeout, err)
		}
		c.Timeout = d
	}
	if u.Chat.ResetGrace != "" {
		d, err := time.ParseDuration(u.Chat.ResetGrace)
		if err != nil {
			return fmt.Errorf("invalid chat reset_grace %q: %w", u.Chat.ResetGrace, err)
		}
		c.ResetGrace = d
	}
	if u.Chat.Greeting != "" {
		c.Greeting = u.Chat.Greeting
	}
	if u.Security.CredentialStorage != "" {
		c.Security = SecurityMethod(u.Security.CredentialStorage)
	}
	if u.Security.SSHKeyPath != "" {
		c.SSHKeyPath = ExpandPath(u.Security.SSHKeyPath)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MENTOR_PROVIDER"); v != "" {
		c.ProviderType = v
	}
	if v := os.Getenv("MENTOR_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("MENTOR_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("MENTOR_OLLAMA_HOST"); v != "" {
		c.OllamaHost = v
	}
	if v := os.Getenv("MENTOR_EMBEDDING_MODEL"); v != "" {
		c.EmbeddingModel = v
	}
	if v := os.Getenv("MENTOR_INDEX_NAME"); v != "" {
		c.IndexName = v
	}
	if v := os.Getenv("MENTOR_MAX_HISTORY_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxHistoryTokens = n
		}
	}
}

// Validate reports settings that would make every turn fail.
func (c *Config) Validate() error {
	switch c.ProviderType {
	case "openai", "anthropic", "ollama", "openrouter", "maritalk":
	default:
		return fmt.Errorf("unknown provider type: %q", c.ProviderType)
	}
	if c.Model == "" {
		return fmt.Errorf("provider model must not be empty")
	}
	if c.MaxHistoryTokens <= 0 {
		return fmt.Errorf("router max_history_tokens must be positive, got %d", c.MaxHistoryTokens)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("router timeout must not be negative")
	}
	if c.ResetGrace < 0 {
		return fmt.Errorf("chat reset_grace must not be negative")
	}
	switch c.Fallback {
	case "direct", "error":
	default:
		return fmt.Errorf("unknown router fallback: %q (want direct or error)", c.Fallback)
	}
	switch c.Security {
	case SecurityPlainText, SecuritySSHKey:
	default:
		return fmt.Errorf("unknown credential storage: %q", c.Security)
	}
	return nil
}

func CheckDebug() bool {
	debug := os.Getenv("MENTOR_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (MENTOR_DEBUG=%s) ===", os.Getenv("MENTOR_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

// Load builds the runtime config from defaults, settings.toml, the user
// config in the data directory and finally MENTOR_* environment variables.
func Load() (*Config, error) {
	cfg := Default()

	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}
	cfg.DataDirectory = systemCfg.DataDirectory
	if dataDir := os.Getenv("MENTOR_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if err := cfg.applyUserConfig(userCfg); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.CredentialStore = NewCredentialStore(cfg.Security, cfg.SSHKeyPath)
	return cfg, nil
}
