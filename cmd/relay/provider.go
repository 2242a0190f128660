package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/anthropic"
	"github.com/fwojciec/relay/gemini"
	"github.com/fwojciec/relay/openai"
)

// providerSpec names a backend and the variable its key is read from.
type providerSpec struct {
	name   string
	envVar string
}

var providers = []providerSpec{
	{name: "openai", envVar: "OPENAI_API_KEY"},
	{name: "anthropic", envVar: "ANTHROPIC_API_KEY"},
	{name: "gemini", envVar: "GEMINI_API_KEY"},
}

// envKey returns the key configured for provider name.
func (s Settings) envKey(name string) string {
	switch name {
	case "openai":
		return s.OpenAIKey
	case "anthropic":
		return s.AnthropicKey
	case "gemini":
		return s.GeminiKey
	}
	return ""
}

// resolveCredentials selects the provider and its key. An explicit apiKey
// overrides the environment. With no provider given, the single configured
// key decides; with none configured the default is openai, whose missing
// key is then reported by the credential check.
func resolveCredentials(s Settings, apiKey string) (relay.Credentials, error) {
	name := strings.ToLower(strings.TrimSpace(s.Provider))
	if name == "" {
		var found []string
		for _, p := range providers {
			if s.envKey(p.name) != "" {
				found = append(found, p.name)
			}
		}
		switch len(found) {
		case 0:
			name = providers[0].name
		case 1:
			name = found[0]
		default:
			return relay.Credentials{}, fmt.Errorf("multiple API keys found (%s): use --provider to select: %w", strings.Join(found, ", "), relay.ErrConfiguration)
		}
	}

	for _, p := range providers {
		if p.name != name {
			continue
		}
		key := apiKey
		if key == "" {
			key = s.envKey(name)
		}
		return relay.Credentials{Provider: name, EnvVar: p.envVar, APIKey: key}, nil
	}
	return relay.Credentials{}, fmt.Errorf("unknown provider %q: must be openai, anthropic or gemini: %w", name, relay.ErrConfiguration)
}

// newProvider constructs the backend client for creds. Credentials are
// validated first so a missing key never reaches a constructor. A non-empty
// baseURL replaces the vendor endpoint.
func newProvider(ctx context.Context, creds relay.Credentials, baseURL string) (relay.Provider, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	switch creds.Provider {
	case "openai":
		var opts []openai.Option
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		return openai.New(creds.APIKey, opts...), nil
	case "anthropic":
		var opts []anthropic.Option
		if baseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(baseURL))
		}
		return anthropic.New(creds.APIKey, opts...), nil
	case "gemini":
		var opts []gemini.Option
		if baseURL != "" {
			opts = append(opts, gemini.WithBaseURL(baseURL))
		}
		return gemini.New(ctx, creds.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q: %w", creds.Provider, relay.ErrConfiguration)
	}
}
