// Package files is a read-only filesystem endpoint: read, glob and grep,
// confined to a single root directory.
package files

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/relay/mcp"
	"github.com/sirupsen/logrus"
)

// Name is the server name reported during the handshake.
const Name = "files"

// Version is the server version reported during the handshake.
var Version = "1.0.0"

// MaxMatches caps the number of lines grep and glob return.
const MaxMatches = 500

// NoMatches is the text returned when glob or grep find nothing.
const NoMatches = "no matches found"

var errLimit = errors.New("match limit reached")

var (
	readSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "File path relative to the root"},
		"offset": {"type": "integer", "description": "Line number to start reading from (1-based)"},
		"limit": {"type": "integer", "description": "Maximum number of lines to read"}
	},
	"required": ["path"]
}`)
	globSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"pattern": {"type": "string", "description": "Glob pattern relative to the root (e.g. **/*.go)"}
	},
	"required": ["pattern"]
}`)
	grepSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"pattern": {"type": "string", "description": "Regular expression to search for"},
		"glob": {"type": "string", "description": "Only search files matching this glob (default **)"}
	},
	"required": ["pattern"]
}`)
)

// NewServer returns an MCP server exposing read, glob and grep over dir.
// Paths that escape dir are rejected.
func NewServer(dir string, log logrus.FieldLogger) *mcp.Server {
	fs := &fileSystem{dir: dir}
	s := mcp.NewServer(Name, Version, mcp.WithServerLogger(log))
	s.AddTool(mcp.Tool{
		Name:        "read",
		Description: "Read a text file, optionally from a line offset and up to a line limit. Lines are numbered.",
		InputSchema: readSchema,
		Handler:     fs.read,
	})
	s.AddTool(mcp.Tool{
		Name:        "glob",
		Description: "List files matching a glob pattern. Supports ** for recursive matching.",
		InputSchema: globSchema,
		Handler:     fs.glob,
	})
	s.AddTool(mcp.Tool{
		Name:        "grep",
		Description: "Search file contents with a regular expression. Returns path:line:content for each match.",
		InputSchema: grepSchema,
		Handler:     fs.grep,
	})
	return s
}

type fileSystem struct {
	dir string
}

func (f *fileSystem) open() (*os.Root, error) {
	root, err := os.OpenRoot(f.dir)
	if err != nil {
		return nil, fmt.Errorf("open root: %w", err)
	}
	return root, nil
}

func (f *fileSystem) read(_ context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Path   string `json:"path"`
		Offset int    `json:"offset"`
		Limit  int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}

	root, err := f.open()
	if err != nil {
		return nil, err
	}
	defer root.Close()

	file, err := root.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var b strings.Builder
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line, n := 0, 0
	for sc.Scan() {
		line++
		if a.Offset > 0 && line < a.Offset {
			continue
		}
		if a.Limit > 0 && n >= a.Limit {
			break
		}
		fmt.Fprintf(&b, "%d\t%s\n", line, sc.Text())
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return b.String(), nil
}

func (f *fileSystem) glob(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Pattern string `json:"pattern"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Pattern == "" {
		return nil, errors.New("pattern is required")
	}
	if !doublestar.ValidatePattern(a.Pattern) {
		return nil, fmt.Errorf("invalid glob pattern: %s", a.Pattern)
	}

	root, err := f.open()
	if err != nil {
		return nil, err
	}
	defer root.Close()

	var matches []string
	err = doublestar.GlobWalk(root.FS(), a.Pattern, func(path string, _ iofs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		matches = append(matches, path)
		if len(matches) >= MaxMatches {
			return errLimit
		}
		return nil
	}, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
	if err != nil && !errors.Is(err, errLimit) {
		return nil, fmt.Errorf("error matching pattern: %w", err)
	}
	if len(matches) == 0 {
		return NoMatches, nil
	}
	slices.Sort(matches)
	return strings.Join(matches, "\n"), nil
}

func (f *fileSystem) grep(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Pattern string `json:"pattern"`
		Glob    string `json:"glob"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Pattern == "" {
		return nil, errors.New("pattern is required")
	}
	re, err := regexp.Compile(a.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	if a.Glob == "" {
		a.Glob = "**"
	}
	if !doublestar.ValidatePattern(a.Glob) {
		return nil, fmt.Errorf("invalid glob pattern: %s", a.Glob)
	}

	root, err := f.open()
	if err != nil {
		return nil, err
	}
	defer root.Close()

	fsys := root.FS()
	var b strings.Builder
	n := 0
	err = doublestar.GlobWalk(fsys, a.Glob, func(path string, _ iofs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		n += grepFile(&b, fsys, path, re, MaxMatches-n)
		if n >= MaxMatches {
			return errLimit
		}
		return nil
	}, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
	if err != nil && !errors.Is(err, errLimit) {
		return nil, fmt.Errorf("error walking files: %w", err)
	}
	if b.Len() == 0 {
		return NoMatches, nil
	}
	return b.String(), nil
}

// grepFile writes up to limit matching lines of path to b and returns how
// many it wrote. Unreadable and binary files are skipped.
func grepFile(b *strings.Builder, fsys iofs.FS, path string, re *regexp.Regexp, limit int) int {
	file, err := fsys.Open(path)
	if err != nil {
		return 0
	}
	defer file.Close()

	br := bufio.NewReader(file)
	head, _ := br.Peek(512)
	if len(head) == 0 || bytes.IndexByte(head, 0) >= 0 {
		return 0
	}

	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line, n := 0, 0
	for sc.Scan() && n < limit {
		line++
		if re.MatchString(sc.Text()) {
			fmt.Fprintf(b, "%s:%d:%s\n", path, line, sc.Text())
			n++
		}
	}
	// Oversized lines end the scan early; partial results are kept.
	return n
}
