package goldmark

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fwojciec/relay"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
)

type styles struct {
	strong    lipgloss.Style
	emphasis  lipgloss.Style
	strike    lipgloss.Style
	code      lipgloss.Style
	heading   lipgloss.Style
	muted     lipgloss.Style
	link      lipgloss.Style
	tableHead lipgloss.Style
}

func newStyles(theme relay.Theme) styles {
	return styles{
		strong:    lipgloss.NewStyle().Bold(true),
		emphasis:  lipgloss.NewStyle().Italic(true),
		strike:    lipgloss.NewStyle().Strikethrough(true),
		code:      lipgloss.NewStyle().Foreground(color(theme.Capability)),
		heading:   lipgloss.NewStyle().Foreground(color(theme.Accent)).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(color(theme.Muted)).Faint(true),
		link:      lipgloss.NewStyle().Underline(true),
		tableHead: lipgloss.NewStyle().Bold(true).Padding(0, 1),
	}
}

func color(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

// blocks renders the block children of n. depth is the list nesting level.
func (w *writer) blocks(n ast.Node, width, depth int) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c, width, depth)
		if c.NextSibling() != nil && depth == 0 {
			w.buf.WriteByte('\n')
		}
	}
}

func (w *writer) block(n ast.Node, width, depth int) {
	s := w.r.styles
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		w.line(wrap(w.inline(n), width))
	case *ast.Heading:
		w.line(wrap(s.heading.Render(w.inline(n)), width))
	case *ast.FencedCodeBlock:
		if lang := string(n.Language(w.src)); lang != "" {
			w.line(s.muted.Render(lang))
		}
		w.code(n)
	case *ast.CodeBlock:
		w.code(n)
	case *ast.Blockquote:
		var inner writer
		inner.r, inner.src = w.r, w.src
		inner.blocks(n, width-2, 0)
		bar := s.muted.Render("│") + " "
		for _, l := range strings.Split(strings.TrimRight(inner.buf.String(), "\n"), "\n") {
			w.line(bar + l)
		}
	case *ast.List:
		w.list(n, width, depth)
	case *ast.ThematicBreak:
		w.line(s.muted.Render(strings.Repeat("─", min(width, 40))))
	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			w.buf.Write(seg.Value(w.src))
		}
	case *extast.Table:
		w.line(w.table(n))
	default:
		w.blocks(n, width, depth)
	}
}

func (w *writer) line(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte('\n')
}

func (w *writer) code(n ast.Node) {
	bar := w.r.styles.muted.Render("│") + " "
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		w.line(bar + strings.TrimRight(string(seg.Value(w.src)), "\n"))
	}
}

func (w *writer) list(n *ast.List, width, depth int) {
	indent := strings.Repeat("  ", depth)
	num := n.Start
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		marker := "- "
		if n.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		prefix := indent + marker
		pad := strings.Repeat(" ", len(prefix))
		first := true
		for ic := c.FirstChild(); ic != nil; ic = ic.NextSibling() {
			if sub, ok := ic.(*ast.List); ok {
				w.list(sub, width, depth+1)
				continue
			}
			var inner writer
			inner.r, inner.src = w.r, w.src
			inner.block(ic, max(width-len(prefix), 10), depth)
			for _, l := range strings.Split(strings.TrimRight(inner.buf.String(), "\n"), "\n") {
				if first {
					w.line(prefix + l)
					first = false
					continue
				}
				w.line(pad + l)
			}
		}
	}
}

// table renders a GFM table with lipgloss/table. Cell content is styled
// inline markdown; alignment follows the header row.
func (w *writer) table(n *extast.Table) string {
	var headers []string
	var rows [][]string
	for r := n.FirstChild(); r != nil; r = r.NextSibling() {
		var cells []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, w.inline(c))
		}
		if _, ok := r.(*extast.TableHeader); ok {
			headers = cells
			continue
		}
		rows = append(rows, cells)
	}
	s := w.r.styles
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			st := cell
			if row == table.HeaderRow {
				st = s.tableHead
			}
			if col < len(n.Alignments) {
				switch n.Alignments[col] {
				case extast.AlignRight:
					st = st.Align(lipgloss.Right)
				case extast.AlignCenter:
					st = st.Align(lipgloss.Center)
				}
			}
			return st
		}).
		String()
}

// inline renders the inline children of n.
func (w *writer) inline(n ast.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.span(c, &buf)
	}
	return buf.String()
}

func (w *writer) span(n ast.Node, buf *bytes.Buffer) {
	s := w.r.styles
	switch n := n.(type) {
	case *ast.Text:
		buf.Write(n.Segment.Value(w.src))
		switch {
		case n.HardLineBreak():
			buf.WriteByte('\n')
		case n.SoftLineBreak():
			buf.WriteByte(' ')
		}
	case *ast.String:
		buf.Write(n.Value)
	case *ast.Emphasis:
		if n.Level == 1 {
			buf.WriteString(s.emphasis.Render(w.inline(n)))
		} else {
			buf.WriteString(s.strong.Render(w.inline(n)))
		}
	case *extast.Strikethrough:
		buf.WriteString(s.strike.Render(w.inline(n)))
	case *extast.TaskCheckBox:
		if n.IsChecked {
			buf.WriteString("[x] ")
		} else {
			buf.WriteString("[ ] ")
		}
	case *ast.CodeSpan:
		buf.WriteString(s.code.Render(w.inline(n)))
	case *ast.Link:
		buf.WriteString(s.link.Render(w.inline(n)))
		buf.WriteString(" " + s.muted.Render("("+string(n.Destination)+")"))
	case *ast.Image:
		buf.WriteString(s.link.Render(w.inline(n)))
		buf.WriteString(" " + s.muted.Render("("+string(n.Destination)+")"))
	case *ast.AutoLink:
		buf.WriteString(s.link.Render(string(n.URL(w.src))))
	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			buf.Write(seg.Value(w.src))
		}
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.span(c, buf)
		}
	}
}

func wrap(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}
