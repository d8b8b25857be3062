package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor/model"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantModel string
		wantErr   error
	}{
		{
			name:      "ollama provider with defaults",
			config:    Config{Type: ProviderTypeOllama},
			wantModel: "llama3.1:latest",
		},
		{
			name:      "ollama provider ignores missing key",
			config:    Config{Type: ProviderTypeOllama, BaseURL: "http://localhost:11434", Model: "llama3.1"},
			wantModel: "llama3.1",
		},
		{
			name:      "openai provider",
			config:    Config{Type: ProviderTypeOpenAI, APIKey: "test-key"},
			wantModel: "gpt-4o-mini",
		},
		{
			name:      "openrouter provider",
			config:    Config{Type: ProviderTypeOpenRouter, APIKey: "test-key", Model: "meta-llama/llama-3.1-8b-instruct"},
			wantModel: "meta-llama/llama-3.1-8b-instruct",
		},
		{
			name:      "maritalk provider",
			config:    Config{Type: ProviderTypeMaritalk, APIKey: "test-key"},
			wantModel: "sabia-3",
		},
		{
			name:      "anthropic provider",
			config:    Config{Type: ProviderTypeAnthropic, APIKey: "test-key", Model: "claude-sonnet-4-5-20250929"},
			wantModel: "claude-sonnet-4-5-20250929",
		},
		{
			name:    "openai without key",
			config:  Config{Type: ProviderTypeOpenAI},
			wantErr: model.ErrConfiguration,
		},
		{
			name:    "anthropic without key",
			config:  Config{Type: ProviderTypeAnthropic},
			wantErr: model.ErrConfiguration,
		},
		{
			name:    "unknown provider type",
			config:  Config{Type: ProviderType("unknown")},
			wantErr: model.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, p.GetModel())
		})
	}
}

func TestMapProviderIDToType(t *testing.T) {
	assert.Equal(t, ProviderTypeOllama, MapProviderIDToType("ollama"))
	assert.Equal(t, ProviderTypeOpenRouter, MapProviderIDToType("openrouter"))
	assert.Equal(t, ProviderTypeOpenAI, MapProviderIDToType("openai"))
	assert.Equal(t, ProviderTypeMaritalk, MapProviderIDToType("maritaca"))
	assert.Equal(t, ProviderTypeAnthropic, MapProviderIDToType("anthropic"))
	assert.Equal(t, ProviderType("mystery"), MapProviderIDToType("mystery"))
}

func TestFactoryUsesSessionKey(t *testing.T) {
	factory := NewFactory(Config{Type: ProviderTypeOpenAI, Model: "gpt-4o"})

	_, err := factory("")
	assert.ErrorIs(t, err, model.ErrConfiguration)

	p, err := factory("sk-session")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.GetModel())

	assert.True(t, RequiresAPIKey(ProviderTypeMaritalk))
	assert.False(t, RequiresAPIKey(ProviderTypeOllama))
}
