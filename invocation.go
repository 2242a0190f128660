package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// InvocationRequest is one capability call requested by the model.
type InvocationRequest struct {
	ID        string          // correlation id supplied by the model backend
	Name      string          // capability name
	Arguments json.RawMessage // argument bag, not checked against the schema here
}

// ErrorKind classifies a per-call failure.
type ErrorKind string

const (
	KindCapabilityNotFound ErrorKind = "capability_not_found"
	KindInvocationFailed   ErrorKind = "invocation_failed"
	KindTimeout            ErrorKind = "timeout"
)

// InvocationError is a per-call failure carried as data.
type InvocationError struct {
	Kind    ErrorKind
	Message string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is maps the kind onto the package sentinels so errors.Is works.
func (e *InvocationError) Is(target error) bool {
	switch e.Kind {
	case KindCapabilityNotFound:
		return target == ErrCapabilityNotFound
	case KindInvocationFailed:
		return target == ErrInvocationFailed
	case KindTimeout:
		return target == ErrTimeout
	}
	return false
}

// InvocationResult is the outcome of one InvocationRequest. Exactly one of
// Payload and Err is set.
type InvocationResult struct {
	ID      string
	Name    string
	Payload json.RawMessage
	Err     *InvocationError
}

// Succeeded builds a success result.
func Succeeded(req InvocationRequest, payload json.RawMessage) InvocationResult {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return InvocationResult{ID: req.ID, Name: req.Name, Payload: payload}
}

// Failed builds an error result of the given kind.
func Failed(req InvocationRequest, kind ErrorKind, msg string) InvocationResult {
	return InvocationResult{ID: req.ID, Name: req.Name, Err: &InvocationError{Kind: kind, Message: msg}}
}

// IsError reports whether the result carries an error.
func (r InvocationResult) IsError() bool { return r.Err != nil }

// Content renders the result as the text embedded in the conversation: the
// payload on success, {"error": message} on failure.
func (r InvocationResult) Content() string {
	if r.Err != nil {
		b, _ := json.Marshal(struct {
			Error string `json:"error"`
		}{r.Err.Message})
		return string(b)
	}
	return string(r.Payload)
}

// Validate checks that exactly one of Payload and Err is populated.
func (r InvocationResult) Validate() error {
	hasPayload := len(r.Payload) > 0
	hasErr := r.Err != nil
	switch {
	case hasPayload && hasErr:
		return fmt.Errorf("result %q carries both payload and error: %w", r.ID, ErrValidation)
	case !hasPayload && !hasErr:
		return fmt.Errorf("result %q carries neither payload nor error: %w", r.ID, ErrValidation)
	}
	if hasPayload && !json.Valid(r.Payload) {
		return fmt.Errorf("result %q payload is not valid JSON: %w", r.ID, ErrValidation)
	}
	return nil
}

// AsInvocationError extracts an *InvocationError from err, if any.
func AsInvocationError(err error) (*InvocationError, bool) {
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
