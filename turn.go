package relay

// Turn is the model's answer to one round-trip. It is a sealed interface:
// exactly one of FinalAnswer and InvocationsRequested.
type Turn interface {
	turn()
}

// FinalAnswer is a terminal text answer.
type FinalAnswer struct {
	Text    string
	Message AssistantMessage
}

func (FinalAnswer) turn() {}

// InvocationsRequested asks the caller to run Requests, in order, and report
// back. Message is the assistant message that carried the requests; it is
// threaded into the follow-up conversation verbatim.
type InvocationsRequested struct {
	Requests []InvocationRequest
	Message  AssistantMessage
}

func (InvocationsRequested) turn() {}

// TurnOf classifies an assistant message. A message with no invocation
// requests is a FinalAnswer, possibly with empty text.
func TurnOf(msg AssistantMessage) Turn {
	if len(msg.Requests) == 0 {
		return FinalAnswer{Text: msg.Text, Message: msg}
	}
	return InvocationsRequested{Requests: msg.Requests, Message: msg}
}

// Interface compliance checks.
var (
	_ Turn = FinalAnswer{}
	_ Turn = InvocationsRequested{}
)
