package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/goldmark"
	"github.com/mattn/go-runewidth"
)

// transcript prints run progress to the user. Argument and result previews
// are cut to the terminal width; the final answer is rendered as markdown.
type transcript struct {
	w       io.Writer
	width   int
	verbose bool
	md      *goldmark.Renderer

	capability lipgloss.Style
	errStyle   lipgloss.Style
	success    lipgloss.Style
	muted      lipgloss.Style
}

func newTranscript(w io.Writer, theme relay.Theme, width int, verbose bool) *transcript {
	if width <= 0 {
		width = goldmark.DefaultWidth
	}
	fg := func(i int) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(strconv.Itoa(i))) }
	return &transcript{
		w:          w,
		width:      width,
		verbose:    verbose,
		md:         goldmark.New(theme, width),
		capability: fg(theme.Capability).Bold(true),
		errStyle:   fg(theme.Error),
		success:    fg(theme.Success),
		muted:      fg(theme.Muted),
	}
}

// handle is an event handler for agent.WithEventHandler.
func (t *transcript) handle(e relay.Event) {
	switch e := e.(type) {
	case relay.EventCapabilitiesDiscovered:
		if !t.verbose {
			return
		}
		names := make([]string, len(e.Capabilities))
		for i, c := range e.Capabilities {
			names[i] = c.Name
		}
		t.println(t.muted.Render("Available capabilities: ") + t.cut(strings.Join(names, ", "), 24))
		for _, s := range e.Shadowed {
			t.println(t.errStyle.Render(fmt.Sprintf("  %s from %s shadows %s", s.Name, s.Winner, s.Loser)))
		}
	case relay.EventModelTurn:
		if !t.verbose {
			return
		}
		if req, ok := e.Turn.(relay.InvocationsRequested); ok && req.Message.Text != "" {
			t.println(t.muted.Render(t.cut(req.Message.Text, 0)))
		}
	case relay.EventInvocationStarted:
		if !t.verbose {
			return
		}
		head := "→ " + e.Request.Name + " "
		t.println(t.capability.Render(head) + t.muted.Render(t.cut(string(e.Request.Arguments), runewidth.StringWidth(head))))
	case relay.EventInvocationFinished:
		if !t.verbose {
			return
		}
		if e.Result.IsError() {
			t.println("  " + t.errStyle.Render(t.cut("✗ "+string(e.Result.Err.Kind)+": "+e.Result.Err.Message, 2)))
			return
		}
		t.println("  " + t.success.Render(t.cut("← "+string(e.Result.Payload), 2)))
	case relay.EventFinalAnswer:
		if t.verbose {
			t.println("")
		}
		t.println(t.md.Render(e.Text))
	}
}

// cut flattens s to one line and truncates it to the width left after used
// columns.
func (t *transcript) cut(s string, used int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, max(t.width-used, 8), "…")
}

func (t *transcript) println(s string) {
	fmt.Fprintln(t.w, s)
}

// printCapabilities lists capabilities with their owning endpoint. Shadowed
// names are flagged with the endpoint they replaced.
func (t *transcript) printCapabilities(idx *relay.Index) {
	shadowed := make(map[string][]string)
	for _, s := range idx.Shadowed() {
		shadowed[s.Name] = append(shadowed[s.Name], s.Loser)
	}
	caps := idx.Capabilities()
	nameWidth := 0
	for _, c := range caps {
		nameWidth = max(nameWidth, runewidth.StringWidth(c.Name))
	}
	for _, c := range caps {
		name := runewidth.FillRight(c.Name, nameWidth)
		line := t.capability.Render(name) + "  " + t.muted.Render("["+c.Endpoint+"]")
		if desc := c.Description; desc != "" {
			used := nameWidth + runewidth.StringWidth(c.Endpoint) + 5
			line += " " + t.cut(desc, used)
		}
		t.println(line)
		if losers := shadowed[c.Name]; len(losers) > 0 {
			t.println(t.errStyle.Render("  shadows " + strings.Join(losers, ", ")))
		}
	}
}
