package main

import (
	"context"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings Settings
		apiKey   string
		want     relay.Credentials
	}{
		{
			name:     "explicit anthropic",
			settings: Settings{Provider: "anthropic", AnthropicKey: "sk-ant"},
			want:     relay.Credentials{Provider: "anthropic", EnvVar: "ANTHROPIC_API_KEY", APIKey: "sk-ant"},
		},
		{
			name:     "explicit provider is case insensitive",
			settings: Settings{Provider: " Gemini ", GeminiKey: "gk"},
			want:     relay.Credentials{Provider: "gemini", EnvVar: "GEMINI_API_KEY", APIKey: "gk"},
		},
		{
			name:     "auto-detect single key",
			settings: Settings{GeminiKey: "gk"},
			want:     relay.Credentials{Provider: "gemini", EnvVar: "GEMINI_API_KEY", APIKey: "gk"},
		},
		{
			name:     "no keys defaults to openai",
			settings: Settings{},
			want:     relay.Credentials{Provider: "openai", EnvVar: "OPENAI_API_KEY"},
		},
		{
			name:     "flag key overrides env",
			settings: Settings{Provider: "openai", OpenAIKey: "sk-env"},
			apiKey:   "sk-flag",
			want:     relay.Credentials{Provider: "openai", EnvVar: "OPENAI_API_KEY", APIKey: "sk-flag"},
		},
		{
			name:     "explicit provider with another provider's key",
			settings: Settings{Provider: "anthropic", OpenAIKey: "sk-openai"},
			want:     relay.Credentials{Provider: "anthropic", EnvVar: "ANTHROPIC_API_KEY"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := resolveCredentials(tt.settings, tt.apiKey)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveCredentials_Errors(t *testing.T) {
	t.Parallel()

	t.Run("multiple keys without provider", func(t *testing.T) {
		t.Parallel()
		_, err := resolveCredentials(Settings{OpenAIKey: "a", AnthropicKey: "b"}, "")
		require.ErrorIs(t, err, relay.ErrConfiguration)
		assert.Contains(t, err.Error(), "multiple API keys found (openai, anthropic)")
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()
		_, err := resolveCredentials(Settings{Provider: "mistral"}, "key")
		require.ErrorIs(t, err, relay.ErrConfiguration)
		assert.Contains(t, err.Error(), "unknown provider")
	})
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"openai", "anthropic", "gemini"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p, err := newProvider(context.Background(), relay.Credentials{Provider: name, APIKey: "key"}, "")
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()
		_, err := newProvider(context.Background(), relay.Credentials{Provider: "openai", EnvVar: "OPENAI_API_KEY"}, "")
		require.ErrorIs(t, err, relay.ErrConfiguration)
		assert.Contains(t, err.Error(), "OPENAI_API_KEY not set")
	})
}
