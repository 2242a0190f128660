package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/fwojciec/relay"
	"github.com/stretchr/testify/assert"
)

func TestTranscript_Handle(t *testing.T) {
	t.Parallel()

	add := relay.InvocationRequest{ID: "c1", Name: "add", Arguments: json.RawMessage(`{"a":2,"b":3}`)}
	events := []relay.Event{
		relay.EventCapabilitiesDiscovered{
			Capabilities: []relay.Capability{{Name: "add"}, {Name: "divide"}},
			Shadowed:     []relay.Shadow{{Name: "add", Winner: "b", Loser: "a"}},
		},
		relay.EventModelTurn{Turn: relay.InvocationsRequested{
			Requests: []relay.InvocationRequest{add},
			Message:  relay.AssistantMessage{Text: "Let me compute that."},
		}},
		relay.EventInvocationStarted{Request: add},
		relay.EventInvocationFinished{Result: relay.Succeeded(add, json.RawMessage(`5`))},
		relay.EventInvocationFinished{Result: relay.Failed(relay.InvocationRequest{ID: "c2", Name: "pow"}, relay.KindCapabilityNotFound, `capability "pow" not found`)},
		relay.EventFinalAnswer{Text: "The sum is **5**."},
	}

	t.Run("verbose", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		tr := newTranscript(&buf, relay.DefaultTheme(), 80, true)
		for _, e := range events {
			tr.handle(e)
		}
		out := ansi.Strip(buf.String())
		assert.Contains(t, out, "Available capabilities: add, divide")
		assert.Contains(t, out, "add from b shadows a")
		assert.Contains(t, out, "Let me compute that.")
		assert.Contains(t, out, `→ add {"a":2,"b":3}`)
		assert.Contains(t, out, "← 5")
		assert.Contains(t, out, `✗ capability_not_found: capability "pow" not found`)
		assert.Contains(t, out, "The sum is 5.")
	})

	t.Run("quiet prints only the answer", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		tr := newTranscript(&buf, relay.DefaultTheme(), 80, false)
		for _, e := range events {
			tr.handle(e)
		}
		assert.Equal(t, "The sum is 5.", strings.TrimSpace(ansi.Strip(buf.String())))
	})
}

func TestTranscript_TruncatesToWidth(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := newTranscript(&buf, relay.DefaultTheme(), 30, true)
	long := relay.InvocationRequest{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"` + strings.Repeat("x", 100) + `"}`)}
	tr.handle(relay.EventInvocationStarted{Request: long})
	line := strings.TrimRight(ansi.Strip(buf.String()), "\n")
	assert.LessOrEqual(t, ansi.StringWidth(line), 30)
	assert.True(t, strings.HasSuffix(line, "…"))
}

func TestTranscript_PrintCapabilities(t *testing.T) {
	t.Parallel()

	idx := relay.NewIndex(
		relay.Binding{Capability: relay.Capability{Name: "add", Endpoint: "a", Description: "Add two numbers"}},
		relay.Binding{Capability: relay.Capability{Name: "divide", Endpoint: "a"}},
		relay.Binding{Capability: relay.Capability{Name: "add", Endpoint: "b", Description: "Add, remotely"}},
	)
	var buf bytes.Buffer
	newTranscript(&buf, relay.DefaultTheme(), 80, true).printCapabilities(idx)
	lines := strings.Split(strings.TrimSpace(ansi.Strip(buf.String())), "\n")
	assert.Equal(t, []string{
		"add     [b] Add, remotely",
		"  shadows a",
		"divide  [a]",
	}, lines)
}
