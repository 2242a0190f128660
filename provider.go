package relay

import "context"

// Provider is a strategy pattern interface for language model backends.
// Complete performs one blocking round-trip.
type Provider interface {
	Complete(ctx context.Context, req Request) (AssistantMessage, error)
}

// Request carries model selection and generation parameters.
// The provider uses its own defaults when fields are zero/nil.
type Request struct {
	Model        string // model ID, provider-specific; empty = provider default
	SystemPrompt string
	Messages     []Message
	Capabilities []Capability
	MaxTokens    int      // 0 = provider default
	Temperature  *float64 // nil = provider default
}

// Gateway offers capabilities to the model and returns its Turn.
type Gateway interface {
	// Check verifies fatal preconditions such as credentials. It performs no I/O.
	Check() error
	// Offer sends a bare prompt.
	Offer(ctx context.Context, caps []Capability, prompt string) (Turn, error)
	// Continue sends the accumulated conversation.
	Continue(ctx context.Context, caps []Capability, conv Conversation) (Turn, error)
}
