// Package goldmark renders the model's final answer, which is usually
// markdown, as ANSI-styled terminal text. Parsing is done by goldmark with
// the GFM extensions and styling by lipgloss.
package goldmark

import (
	"bytes"
	"strings"

	"github.com/fwojciec/relay"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

// Renderer turns markdown into styled terminal text.
type Renderer struct {
	parser parser.Parser
	styles styles
	width  int
}

// New returns a Renderer wrapping paragraphs at width columns. A width of
// zero or less means DefaultWidth.
func New(theme relay.Theme, width int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	return &Renderer{parser: md.Parser(), styles: newStyles(theme), width: width}
}

// Render returns source as styled text without a trailing newline.
// Code blocks and tables are not reflowed.
func (r *Renderer) Render(source string) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}
	src := []byte(source)
	doc := r.parser.Parse(text.NewReader(src))
	w := &writer{r: r, src: src}
	w.blocks(doc, r.width, 0)
	return strings.TrimRight(w.buf.String(), "\n")
}

// Render is a shorthand for New(theme, width).Render(source).
func Render(source string, width int, theme relay.Theme) string {
	return New(theme, width).Render(source)
}

type writer struct {
	r   *Renderer
	src []byte
	buf bytes.Buffer
}
