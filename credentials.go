package relay

import "fmt"

// Credentials identify the model backend account.
type Credentials struct {
	Provider string // provider name, e.g. "openai"
	EnvVar   string // variable the key is read from, for diagnostics
	APIKey   string
}

// Validate fails with ErrConfiguration when no key is present.
func (c Credentials) Validate() error {
	if c.APIKey != "" {
		return nil
	}
	if c.EnvVar != "" {
		return fmt.Errorf("%s not set: add it to your environment or .env file: %w", c.EnvVar, ErrConfiguration)
	}
	return fmt.Errorf("no API key for provider %q: %w", c.Provider, ErrConfiguration)
}
