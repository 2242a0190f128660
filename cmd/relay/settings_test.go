package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/relay"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Not parallel: t.Setenv.
func TestLoadSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, k := range []string{"RELAY_ENDPOINTS", "RELAY_DISCOVERY_POLICY", "RELAY_MAX_ROUNDS", "LOG_LEVEL", "COLUMNS"} {
			t.Setenv(k, "")
			require.NoError(t, os.Unsetenv(k))
		}
		s, err := loadSettings()
		require.NoError(t, err)
		assert.Equal(t, []string{"relay.yaml"}, s.Endpoints)
		assert.Equal(t, "all-or-nothing", s.DiscoveryPolicy)
		assert.Equal(t, 20*time.Second, s.DiscoveryTimeout)
		assert.Equal(t, 60*time.Second, s.CallTimeout)
		assert.Equal(t, 120*time.Second, s.ModelTimeout)
		assert.Equal(t, 1, s.MaxRounds)
		assert.Equal(t, 1, s.Concurrency)
		assert.Equal(t, "warn", s.LogLevel)
		require.NoError(t, s.Validate())
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("RELAY_ENDPOINTS", "a.yaml,conf/**/*.yaml")
		t.Setenv("RELAY_DISCOVERY_POLICY", "partial")
		t.Setenv("RELAY_CALL_TIMEOUT", "5s")
		t.Setenv("RELAY_MAX_ROUNDS", "3")
		t.Setenv("OPENAI_API_KEY", "sk-env")
		s, err := loadSettings()
		require.NoError(t, err)
		assert.Equal(t, []string{"a.yaml", "conf/**/*.yaml"}, s.Endpoints)
		assert.Equal(t, "partial", s.DiscoveryPolicy)
		assert.Equal(t, 5*time.Second, s.CallTimeout)
		assert.Equal(t, 3, s.MaxRounds)
		assert.Equal(t, "sk-env", s.OpenAIKey)
	})

	t.Run("malformed value", func(t *testing.T) {
		t.Setenv("RELAY_MAX_ROUNDS", "many")
		_, err := loadSettings()
		assert.ErrorIs(t, err, relay.ErrConfiguration)
	})
}

func TestSettings_Validate(t *testing.T) {
	t.Parallel()

	valid := settings("relay.yaml")
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"unknown policy", func(s *Settings) { s.DiscoveryPolicy = "some" }},
		{"no endpoints", func(s *Settings) { s.Endpoints = nil }},
		{"zero rounds", func(s *Settings) { s.MaxRounds = 0 }},
		{"zero concurrency", func(s *Settings) { s.Concurrency = 0 }},
		{"negative call timeout", func(s *Settings) { s.CallTimeout = -time.Second }},
		{"zero model timeout", func(s *Settings) { s.ModelTimeout = 0 }},
	}
	require.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid
			s.Endpoints = append([]string(nil), valid.Endpoints...)
			tt.modify(&s)
			assert.ErrorIs(t, s.Validate(), relay.ErrConfiguration)
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("level and stderr", func(t *testing.T) {
		t.Parallel()
		var stderr bytes.Buffer
		log, closer := newLogger(Settings{LogLevel: "debug"}, &stderr)
		defer closer.Close()
		assert.Equal(t, logrus.DebugLevel, log.GetLevel())
		log.Debug("hello")
		assert.Contains(t, stderr.String(), "hello")
	})

	t.Run("unknown level falls back to warn", func(t *testing.T) {
		t.Parallel()
		log, closer := newLogger(Settings{LogLevel: "loud"}, &bytes.Buffer{})
		defer closer.Close()
		assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	})

	t.Run("log file duplicates output", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "logs", "relay.log")
		var stderr bytes.Buffer
		log, closer := newLogger(Settings{LogLevel: "info", LogFile: path}, &stderr)
		log.Info("to both")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to both")
		assert.Contains(t, stderr.String(), "to both")
	})
}
