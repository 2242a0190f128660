package relay

import "time"

// Message is a sealed interface representing a conversation message.
// The unexported marker method prevents external implementations.
// Role() returns the message's role without requiring a type switch.
type Message interface {
	isMessage()
	Role() Role
}

// UserMessage carries the prompt.
type UserMessage struct {
	Text      string
	Timestamp time.Time
}

func (UserMessage) isMessage() {}

// Role returns RoleUser.
func (UserMessage) Role() Role { return RoleUser }

// AssistantMessage is one model response: text, invocation requests, or both.
type AssistantMessage struct {
	Text          string
	Requests      []InvocationRequest
	StopReason    StopReason
	RawStopReason string
	Usage         Usage
	Timestamp     time.Time
}

func (AssistantMessage) isMessage() {}

// Role returns RoleAssistant.
func (AssistantMessage) Role() Role { return RoleAssistant }

// ResultMessage carries one invocation result back to the model.
type ResultMessage struct {
	CallID    string
	Name      string
	Content   string // structured value serialized as text
	IsError   bool
	Timestamp time.Time
}

func (ResultMessage) isMessage() {}

// Role returns RoleResult.
func (ResultMessage) Role() Role { return RoleResult }

// Interface compliance checks.
var (
	_ Message = UserMessage{}
	_ Message = AssistantMessage{}
	_ Message = ResultMessage{}
)
