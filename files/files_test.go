package files_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/fwojciec/relay/files"
	"github.com/fwojciec/relay/mcp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// connect returns a client for a files server rooted at a fresh temp dir
// holding a small tree.
func connect(t *testing.T) *mcp.Client {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "# relay\nTODO: docs\n")
	writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, dir, "pkg/util.go", "package pkg\n\n// TODO: tests\nfunc Util() {}\n")
	writeFile(t, dir, "pkg/bin.dat", "TODO\x00binary")

	logger, _ := test.NewNullLogger()
	c, err := mcp.Connect(context.Background(), mcp.NewDirect(files.NewServer(dir, logger)), mcp.WithEndpoint("fs"), mcp.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func invoke(t *testing.T, c *mcp.Client, name, args string) (string, error) {
	t.Helper()
	raw, err := c.Invoke(context.Background(), name, json.RawMessage(args))
	if err != nil {
		return "", err
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return string(raw), nil
	}
	return s, nil
}

func TestServer_Capabilities(t *testing.T) {
	t.Parallel()

	c := connect(t)
	assert.Equal(t, files.Name, c.Server().Name)

	caps, err := c.Capabilities(context.Background())
	require.NoError(t, err)
	var names []string
	for _, cp := range caps {
		names = append(names, cp.Name)
		assert.NotEmpty(t, cp.Parameters)
	}
	assert.Equal(t, []string{"read", "glob", "grep"}, names)
}

func TestRead(t *testing.T) {
	t.Parallel()

	c := connect(t)

	tests := []struct {
		name    string
		args    string
		want    string
		wantErr string
	}{
		{"whole file", `{"path":"main.go"}`, "1\tpackage main\n2\t\n3\tfunc main() {}\n", ""},
		{"offset", `{"path":"main.go","offset":3}`, "3\tfunc main() {}\n", ""},
		{"limit", `{"path":"main.go","limit":1}`, "1\tpackage main\n", ""},
		{"nested", `{"path":"pkg/util.go","offset":3,"limit":1}`, "3\t// TODO: tests\n", ""},
		{"missing path", `{}`, "", "path is required"},
		{"missing file", `{"path":"nope.go"}`, "", "failed to open file"},
		{"escape", `{"path":"../outside"}`, "", "failed to open file"},
		{"bad args", `{"path":1}`, "", "invalid arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := invoke(t, c, "read", tt.args)
			if tt.wantErr != "" {
				var te *mcp.ToolError
				require.ErrorAs(t, err, &te)
				assert.Contains(t, te.Message, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGlob(t *testing.T) {
	t.Parallel()

	c := connect(t)

	tests := []struct {
		name    string
		pattern string
		want    string
		wantErr string
	}{
		{"recursive", "**/*.go", "main.go\npkg/util.go", ""},
		{"top level", "*.md", "README.md", ""},
		{"directory", "pkg/*", "pkg/bin.dat\npkg/util.go", ""},
		{"no match", "*.rs", files.NoMatches, ""},
		{"invalid", "[", "", "invalid glob pattern"},
		{"empty", "", "", "pattern is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			args, err := json.Marshal(map[string]string{"pattern": tt.pattern})
			require.NoError(t, err)
			got, err := invoke(t, c, "glob", string(args))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGrep(t *testing.T) {
	t.Parallel()

	c := connect(t)

	tests := []struct {
		name    string
		args    string
		want    string
		wantErr string
	}{
		{"all files skips binary", `{"pattern":"TODO"}`, "README.md:2:TODO: docs\npkg/util.go:3:// TODO: tests\n", ""},
		{"glob filter", `{"pattern":"TODO","glob":"**/*.go"}`, "pkg/util.go:3:// TODO: tests\n", ""},
		{"regex", `{"pattern":"^func \\w+\\(\\)"}`, "main.go:3:func main() {}\npkg/util.go:4:func Util() {}\n", ""},
		{"no match", `{"pattern":"FIXME"}`, files.NoMatches, ""},
		{"bad regex", `{"pattern":"("}`, "", "invalid regex pattern"},
		{"bad glob", `{"pattern":"x","glob":"["}`, "", "invalid glob pattern"},
		{"empty", `{"pattern":""}`, "", "pattern is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := invoke(t, c, "grep", tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGlob_Limit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for i := range files.MaxMatches + 10 {
		writeFile(t, dir, "many/"+strconv.Itoa(i)+".txt", "x\n")
	}
	logger, _ := test.NewNullLogger()
	c, err := mcp.Connect(context.Background(), mcp.NewDirect(files.NewServer(dir, logger)))
	require.NoError(t, err)
	defer c.Close()

	got, err := invoke(t, c, "glob", `{"pattern":"many/*.txt"}`)
	require.NoError(t, err)
	assert.Len(t, strings.Split(got, "\n"), files.MaxMatches)
}
