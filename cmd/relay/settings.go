package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/discovery"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Settings holds runtime configuration read from the environment. Command
// line flags override individual fields.
type Settings struct {
	Provider     string `envconfig:"RELAY_PROVIDER"`
	Model        string `envconfig:"RELAY_MODEL"`
	OpenAIKey    string `envconfig:"OPENAI_API_KEY"`
	AnthropicKey string `envconfig:"ANTHROPIC_API_KEY"`
	GeminiKey    string `envconfig:"GEMINI_API_KEY"`
	// BaseURL points the provider at a compatible server instead of the
	// vendor API.
	BaseURL string `envconfig:"RELAY_BASE_URL"`

	Endpoints        []string      `envconfig:"RELAY_ENDPOINTS" default:"relay.yaml"`
	DiscoveryPolicy  string        `envconfig:"RELAY_DISCOVERY_POLICY" default:"all-or-nothing"`
	DiscoveryTimeout time.Duration `envconfig:"RELAY_DISCOVERY_TIMEOUT" default:"20s"`
	CallTimeout      time.Duration `envconfig:"RELAY_CALL_TIMEOUT" default:"60s"`
	ModelTimeout     time.Duration `envconfig:"RELAY_MODEL_TIMEOUT" default:"120s"`
	MaxRounds        int           `envconfig:"RELAY_MAX_ROUNDS" default:"1"`
	Concurrency      int           `envconfig:"RELAY_CONCURRENCY" default:"1"`

	Width    int    `envconfig:"COLUMNS" default:"100"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"warn"`
	LogFile  string `envconfig:"LOG_FILE"`
}

// loadSettings reads Settings from the environment.
func loadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return Settings{}, fmt.Errorf("settings: %w: %w", relay.ErrConfiguration, err)
	}
	return s, nil
}

// Validate checks the values flags and environment may have left invalid.
func (s Settings) Validate() error {
	if _, err := discovery.ParsePolicy(s.DiscoveryPolicy); err != nil {
		return err
	}
	if len(s.Endpoints) == 0 {
		return fmt.Errorf("settings: no endpoint files given: %w", relay.ErrConfiguration)
	}
	if s.MaxRounds < 1 {
		return fmt.Errorf("settings: max rounds must be at least 1, got %d: %w", s.MaxRounds, relay.ErrConfiguration)
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("settings: concurrency must be at least 1, got %d: %w", s.Concurrency, relay.ErrConfiguration)
	}
	for name, d := range map[string]time.Duration{
		"discovery timeout": s.DiscoveryTimeout,
		"call timeout":      s.CallTimeout,
		"model timeout":     s.ModelTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("settings: %s must be positive, got %s: %w", name, d, relay.ErrConfiguration)
		}
	}
	return nil
}

// newLogger builds the process logger. Output goes to stderr and, when
// LOG_FILE is set, to that file as well. The returned closer releases the
// file.
func newLogger(s Settings, stderr io.Writer) (*logrus.Logger, io.Closer) {
	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(strings.TrimSpace(s.LogLevel))
	if err != nil {
		level = logrus.WarnLevel
	}
	log.SetLevel(level)

	lf := strings.TrimSpace(s.LogFile)
	if lf == "" {
		return log, io.NopCloser(nil)
	}
	if strings.HasPrefix(lf, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			lf = filepath.Join(home, strings.TrimPrefix(lf, "~"))
		}
	}
	if err := os.MkdirAll(filepath.Dir(lf), 0o755); err != nil {
		log.WithError(err).Warn("failed to create directory for LOG_FILE; using stderr only")
		return log, io.NopCloser(nil)
	}
	f, err := os.OpenFile(lf, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.WithError(err).Warn("failed to open LOG_FILE; using stderr only")
		return log, io.NopCloser(nil)
	}
	log.SetOutput(io.MultiWriter(stderr, f))
	log.WithField("file", lf).Debug("logging to file enabled")
	return log, f
}
