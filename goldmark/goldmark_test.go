package goldmark_test

import (
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/goldmark"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	// Force ANSI output so styled elements carry escape codes.
	lipgloss.SetColorProfile(termenv.ANSI)
	os.Exit(m.Run())
}

func TestRender_Contains(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		src   string
		width int
		want  []string
	}{
		{"plain paragraph", "hello world", 80, []string{"hello world"}},
		{"bold", "**bold**", 80, []string{"bold"}},
		{"italic", "*italic*", 80, []string{"italic"}},
		{"bold italic", "***bold italic***", 80, []string{"bold italic"}},
		{"strikethrough", "~~gone~~", 80, []string{"gone"}},
		{"inline code", "`add`", 80, []string{"add"}},
		{"fenced code keeps lines", "```go\nfmt.Println(\"hello world\")\n```", 20, []string{"go", `fmt.Println("hello world")`}},
		{"indented code", "paragraph\n\n    indented code\n    more code", 80, []string{"indented code", "more code"}},
		{"bullet list", "- one\n- two", 80, []string{"- one", "- two"}},
		{"ordered list keeps start", "3. third\n4. fourth", 80, []string{"3. third", "4. fourth"}},
		{"nested list", "- outer\n  - inner", 80, []string{"- outer", "  - inner"}},
		{"task list", "- [x] done\n- [ ] todo", 80, []string{"[x] done", "[ ] todo"}},
		{"link", "[docs](https://example.com)", 80, []string{"docs", "(https://example.com)"}},
		{"autolink", "see https://example.com/x", 80, []string{"https://example.com/x"}},
		{"image", "![alt text](https://example.com/img.png)", 80, []string{"alt text", "example.com/img.png"}},
		{"blockquote", "> quoted", 80, []string{"│ quoted"}},
		{"thematic break", "above\n\n---\n\nbelow", 80, []string{"above", "─", "below"}},
		{"width zero defaults", "hello world", 0, []string{"hello world"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ansi.Strip(goldmark.Render(tt.src, tt.width, relay.DefaultTheme()))
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}

func TestRender_Empty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", goldmark.Render("", 80, relay.DefaultTheme()))
	assert.Equal(t, "", goldmark.Render(" \n", 80, relay.DefaultTheme()))
}

func TestRender_HeadingIsStyled(t *testing.T) {
	t.Parallel()
	theme := relay.DefaultTheme()
	heading := goldmark.Render("# Result", 80, theme)
	paragraph := goldmark.Render("Result", 80, theme)
	assert.Equal(t, "Result", strings.TrimSpace(ansi.Strip(heading)))
	assert.NotEqual(t, heading, paragraph)
}

func TestRender_Wraps(t *testing.T) {
	t.Parallel()

	t.Run("paragraph", func(t *testing.T) {
		t.Parallel()
		long := "word1 word2 word3 word4 word5 word6 word7 word8 word9 word10 word11 word12"
		lines := strings.Split(ansi.Strip(goldmark.Render(long, 30, relay.DefaultTheme())), "\n")
		assert.Greater(t, len(lines), 1)
		for _, l := range lines {
			assert.LessOrEqual(t, ansi.StringWidth(l), 30)
		}
	})

	t.Run("list continuation is indented", func(t *testing.T) {
		t.Parallel()
		src := "- this is a very long list item that should wrap and have continuation lines properly indented"
		lines := strings.Split(ansi.Strip(goldmark.Render(src, 30, relay.DefaultTheme())), "\n")
		assert.True(t, strings.HasPrefix(lines[0], "- "))
		assert.Greater(t, len(lines), 1)
		for _, l := range lines[1:] {
			if strings.TrimSpace(l) != "" {
				assert.True(t, strings.HasPrefix(l, "  "), "continuation line should be indented: %q", l)
			}
		}
	})
}

func TestRender_Table(t *testing.T) {
	t.Parallel()
	src := "| op | result |\n|----|-------:|\n| add | 5 |\n| divide | error |\n"
	got := ansi.Strip(goldmark.Render(src, 80, relay.DefaultTheme()))
	for _, w := range []string{"op", "result", "add", "5", "divide", "error", "│"} {
		assert.Contains(t, got, w)
	}
	var rowLines int
	for _, l := range strings.Split(got, "\n") {
		if strings.Contains(l, "add") || strings.Contains(l, "divide") {
			rowLines++
		}
	}
	assert.Equal(t, 2, rowLines)
}

func TestRenderer_Reuse(t *testing.T) {
	t.Parallel()
	r := goldmark.New(relay.DefaultTheme(), 40)
	assert.Equal(t, "first", strings.TrimSpace(ansi.Strip(r.Render("first"))))
	assert.Equal(t, "second", strings.TrimSpace(ansi.Strip(r.Render("second"))))
}
