package config

import "time"

const (
	DefaultOllamaHost       = "http://localhost:11434"
	DefaultEmbeddingModel   = "nomic-embed-text"
	DefaultMaxHistoryTokens = 40000
	DefaultTimeout          = 120 * time.Second
	DefaultResetGrace       = 6 * time.Second
	DefaultGreeting         = "How can I assist you with coding and algorithms today?"
)

// Default returns the config used when no file or env var says otherwise.
func Default() *Config {
	return &Config{
		DataDirectory:    "~/.local/share/mentor",
		ProviderType:     "ollama",
		BaseURL:          DefaultOllamaHost,
		Model:            "llama3.1:latest",
		Temperature:      0.8,
		MaxTokens:        4096,
		OllamaHost:       DefaultOllamaHost,
		EmbeddingModel:   DefaultEmbeddingModel,
		MaxHistoryTokens: DefaultMaxHistoryTokens,
		Timeout:          DefaultTimeout,
		Fallback:         "direct",
		ResetGrace:       DefaultResetGrace,
		Greeting:         DefaultGreeting,
		Security:         SecurityPlainText,
	}
}

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/mentor",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Provider: ProviderSection{
			Type:        "ollama",
			BaseURL:     DefaultOllamaHost,
			Model:       "llama3.1:latest",
			Temperature: 0.8,
			MaxTokens:   4096,
		},
		Ollama: OllamaSection{
			Host:           DefaultOllamaHost,
			EmbeddingModel: DefaultEmbeddingModel,
		},
		Router: RouterSection{
			MaxHistoryTokens: DefaultMaxHistoryTokens,
			Timeout:          DefaultTimeout.String(),
			Fallback:         "direct",
		},
		Chat: ChatSection{
			ResetGrace: DefaultResetGrace.String(),
		},
		Security: SecuritySection{
			CredentialStorage: string(SecurityPlainText),
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Mentor System Configuration
# Location: ~/.config/mentor/settings.toml
# This file uses TOML format: https://toml.io

# Directory where user config, credentials and indexes are stored
data_directory = "~/.local/share/mentor"
`
}

func GenerateUserConfigTemplate() string {
	return `# Mentor User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[provider]
# Completion endpoint: ollama, openai, openrouter, maritalk or anthropic
type = "ollama"
base_url = "http://localhost:11434"
model = "llama3.1:latest"
temperature = 0.8
max_tokens = 4096

[ollama]
# Ollama server used for embeddings (and chat when provider.type = "ollama")
host = "http://localhost:11434"
embedding_model = "nomic-embed-text"

[index]
# Name of the course-material index to search
name = ""

[router]
# Token budget for the conversation history sent to the routing model
max_history_tokens = 40000
# Upper bound for each model call
timeout = "120s"
# What to do with a reply that starts with "{" but is not a tool call:
# "direct" streams a normal answer, "error" fails the turn
fallback = "direct"

[chat]
# Delay before the session is cleared after an unrecoverable error
reset_grace = "6s"

[security]
# plaintext (credentials.toml) or ssh_key (credentials.enc)
credential_storage = "plaintext"
`
}
