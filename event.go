package relay

// Event is a sealed interface representing orchestration progress.
// Events are purely informational: run-scoped failures come from the error
// return of the run, never from events.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventCapabilitiesDiscovered reports the capabilities offered to the model.
type EventCapabilitiesDiscovered struct {
	Capabilities []Capability
	Shadowed     []Shadow
}

func (EventCapabilitiesDiscovered) event() {}

// EventModelTurn reports a model response for the given round (0-based).
type EventModelTurn struct {
	Round int
	Turn  Turn
}

func (EventModelTurn) event() {}

// EventInvocationStarted signals that a capability call is about to run.
type EventInvocationStarted struct {
	Request InvocationRequest
}

func (EventInvocationStarted) event() {}

// EventInvocationFinished carries the result of a capability call.
type EventInvocationFinished struct {
	Result InvocationResult
}

func (EventInvocationFinished) event() {}

// EventFinalAnswer carries the terminal answer of the run.
type EventFinalAnswer struct {
	Text string
}

func (EventFinalAnswer) event() {}

// Interface compliance checks.
var (
	_ Event = EventCapabilitiesDiscovered{}
	_ Event = EventModelTurn{}
	_ Event = EventInvocationStarted{}
	_ Event = EventInvocationFinished{}
	_ Event = EventFinalAnswer{}
)
