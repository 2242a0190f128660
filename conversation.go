package relay

import (
	"fmt"
	"slices"
	"time"
)

// Conversation is the ordered history of one orchestration run. It is
// append-only: Extend returns a new value and never mutates the receiver's
// backing array.
type Conversation struct {
	Messages []Message
}

// NewConversation starts a conversation with the prompt.
func NewConversation(prompt string) Conversation {
	return Conversation{Messages: []Message{UserMessage{Text: prompt, Timestamp: time.Now()}}}
}

// Fold builds the follow-up conversation for a single round of tool use:
// the prompt, the model's invocation-request turn, then one result message
// per result in request order.
func Fold(prompt string, turn InvocationsRequested, results []InvocationResult) (Conversation, error) {
	return NewConversation(prompt).Extend(turn, results)
}

// Extend appends the model's invocation-request turn and one result message
// per request. results must correspond one-to-one, in order, to
// turn.Requests; a dropped, extra or reordered result is a validation error.
func (c Conversation) Extend(turn InvocationsRequested, results []InvocationResult) (Conversation, error) {
	if len(results) != len(turn.Requests) {
		return c, fmt.Errorf("got %d results for %d requests: %w", len(results), len(turn.Requests), ErrValidation)
	}
	am := turn.Message
	am.Requests = turn.Requests
	if err := ValidateMessage(am); err != nil {
		return c, err
	}
	msgs := slices.Clip(c.Messages)
	msgs = append(msgs, am)
	now := time.Now()
	for i, res := range results {
		req := turn.Requests[i]
		if res.ID != req.ID {
			return c, fmt.Errorf("result %d has id %q, want %q: %w", i, res.ID, req.ID, ErrValidation)
		}
		if err := res.Validate(); err != nil {
			return c, err
		}
		msgs = append(msgs, ResultMessage{
			CallID:    res.ID,
			Name:      req.Name,
			Content:   res.Content(),
			IsError:   res.IsError(),
			Timestamp: now,
		})
	}
	return Conversation{Messages: msgs}, nil
}

// Prompt returns the text of the first user message.
func (c Conversation) Prompt() string {
	for _, m := range c.Messages {
		if um, ok := m.(UserMessage); ok {
			return um.Text
		}
	}
	return ""
}
