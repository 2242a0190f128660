package yaml_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
endpoints:
  zeta:
    transport: stdio
    command: /usr/local/bin/arith
    args: ["-v"]
    env:
      ARITH_PRECISION: "6"
    version: ">= 1.0.0"
    filter: 'name != "subtract"'
  alpha:
    transport: nats
    url: nats://127.0.0.1:4222
    subject: tools.alpha
`

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("keeps mapping order", func(t *testing.T) {
		t.Parallel()
		eps, err := yaml.Parse([]byte(sample), "relay.yaml")
		require.NoError(t, err)
		require.Len(t, eps, 2)
		assert.Equal(t, relay.Endpoint{
			ID:        "zeta",
			Transport: relay.TransportStdio,
			Command:   "/usr/local/bin/arith",
			Args:      []string{"-v"},
			Env:       map[string]string{"ARITH_PRECISION": "6"},
			Version:   ">= 1.0.0",
			Filter:    `name != "subtract"`,
		}, eps[0])
		assert.Equal(t, relay.Endpoint{
			ID:        "alpha",
			Transport: relay.TransportNATS,
			URL:       "nats://127.0.0.1:4222",
			Subject:   "tools.alpha",
		}, eps[1])
	})

	t.Run("duplicate id", func(t *testing.T) {
		t.Parallel()
		_, err := yaml.Parse([]byte("endpoints:\n  a: {transport: stdio, command: x}\n  a: {transport: stdio, command: y}\n"), "dup.yaml")
		require.ErrorIs(t, err, relay.ErrConfiguration)
		assert.Contains(t, err.Error(), `dup.yaml:3: duplicate endpoint id "a" (first defined on line 2)`)
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()
		eps, err := yaml.Parse(nil, "empty.yaml")
		require.NoError(t, err)
		assert.Empty(t, eps)
	})

	t.Run("no endpoints section", func(t *testing.T) {
		t.Parallel()
		eps, err := yaml.Parse([]byte("other: 1\n"), "x.yaml")
		require.NoError(t, err)
		assert.Empty(t, eps)
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name string
			data string
		}{
			{"malformed", "endpoints: [\n"},
			{"top level list", "- a\n- b\n"},
			{"endpoints list", "endpoints:\n  - a\n"},
			{"bad field type", "endpoints:\n  a:\n    args: {x: 1}\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				_, err := yaml.Parse([]byte(tt.data), "bad.yaml")
				assert.ErrorIs(t, err, relay.ErrConfiguration)
			})
		}
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("single file", func(t *testing.T) {
		t.Parallel()
		path := write(t, t.TempDir(), "relay.yaml", sample)
		reg, err := yaml.Load(path)
		require.NoError(t, err)
		require.Equal(t, 2, reg.Len())
		eps := reg.Endpoints()
		assert.Equal(t, "zeta", eps[0].ID)
		assert.Equal(t, "alpha", eps[1].ID)
	})

	t.Run("glob loads files in lexical order", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		write(t, dir, "b/second.yaml", "endpoints:\n  two: {transport: stdio, command: two}\n")
		write(t, dir, "a/nested/first.yaml", "endpoints:\n  one: {transport: stdio, command: one}\n")
		write(t, dir, "a/ignored.txt", "not yaml")

		reg, err := yaml.Load(filepath.Join(dir, "**", "*.yaml"))
		require.NoError(t, err)
		var ids []string
		for _, ep := range reg.Endpoints() {
			ids = append(ids, ep.ID)
		}
		assert.Equal(t, []string{"one", "two"}, ids)
	})

	t.Run("duplicate across files", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		a := write(t, dir, "a.yaml", "endpoints:\n  math: {transport: stdio, command: x}\n")
		b := write(t, dir, "b.yaml", "endpoints:\n  math: {transport: stdio, command: y}\n")
		_, err := yaml.Load(a, b)
		require.ErrorIs(t, err, relay.ErrConfiguration)
		assert.Contains(t, err.Error(), `endpoint "math" defined in both`)
	})

	t.Run("file named twice is read once", func(t *testing.T) {
		t.Parallel()
		path := write(t, t.TempDir(), "relay.yaml", sample)
		reg, err := yaml.Load(path, path)
		require.NoError(t, err)
		assert.Equal(t, 2, reg.Len())
	})

	t.Run("no match", func(t *testing.T) {
		t.Parallel()
		_, err := yaml.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, relay.ErrConfiguration)
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		t.Parallel()
		path := write(t, t.TempDir(), "relay.yaml", "endpoints:\n  bad: {transport: stdio}\n")
		_, err := yaml.Load(path)
		assert.ErrorIs(t, err, relay.ErrConfiguration)
	})

	t.Run("unknown transport", func(t *testing.T) {
		t.Parallel()
		path := write(t, t.TempDir(), "relay.yaml", "endpoints:\n  bad: {transport: grpc}\n")
		_, err := yaml.Load(path)
		assert.ErrorIs(t, err, relay.ErrUnknownTransport)
	})
}
