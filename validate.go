package relay

import "fmt"

// Validate checks universal constraints on Request.
// Provider implementations may apply additional provider-specific validation.
func (r Request) Validate() error {
	if r.Temperature != nil {
		if *r.Temperature < 0 || *r.Temperature > 2 {
			return fmt.Errorf("temperature must be in [0, 2], got %g: %w", *r.Temperature, ErrValidation)
		}
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d: %w", r.MaxTokens, ErrValidation)
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("request has no messages: %w", ErrValidation)
	}
	seen := make(map[string]struct{}, len(r.Capabilities))
	for _, c := range r.Capabilities {
		if c.Name == "" {
			return fmt.Errorf("capability with empty name: %w", ErrValidation)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("capability %q offered twice: %w", c.Name, ErrValidation)
		}
		seen[c.Name] = struct{}{}
	}
	for _, m := range r.Messages {
		if err := ValidateMessage(m); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMessage checks the fields a message of each role must carry.
func ValidateMessage(msg Message) error {
	switch m := msg.(type) {
	case UserMessage:
		return nil
	case AssistantMessage:
		seen := make(map[string]struct{}, len(m.Requests))
		for i, req := range m.Requests {
			if req.ID == "" {
				return fmt.Errorf("invocation request %d has no id: %w", i, ErrValidation)
			}
			if req.Name == "" {
				return fmt.Errorf("invocation request %q has no name: %w", req.ID, ErrValidation)
			}
			if _, dup := seen[req.ID]; dup {
				return fmt.Errorf("invocation request id %q used twice: %w", req.ID, ErrValidation)
			}
			seen[req.ID] = struct{}{}
		}
		return nil
	case ResultMessage:
		if m.CallID == "" {
			return fmt.Errorf("result message has no call id: %w", ErrValidation)
		}
		return nil
	default:
		return fmt.Errorf("unknown message type %T: %w", msg, ErrValidation)
	}
}
