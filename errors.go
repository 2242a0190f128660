package relay

import "errors"

// Sentinel errors for common failure modes.
//
// Run-scoped failures (configuration, discovery, model gateway) are returned
// wrapped around one of these. Per-call failures never leave the dispatcher as
// errors; they travel as an [InvocationError] inside an [InvocationResult].
var (
	// ErrConfiguration indicates a fatal configuration problem, such as a
	// duplicate endpoint identity or a missing credential.
	ErrConfiguration = errors.New("configuration error")

	// ErrDiscovery indicates an endpoint failed to advertise its capabilities.
	ErrDiscovery = errors.New("discovery error")

	// ErrCapabilityNotFound indicates the requested capability does not exist.
	ErrCapabilityNotFound = errors.New("capability not found")

	// ErrInvocationFailed indicates a capability rejected its arguments or the
	// transport call to its endpoint failed.
	ErrInvocationFailed = errors.New("invocation failed")

	// ErrTimeout indicates an I/O suspension point exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrModelGateway indicates the model backend round-trip failed.
	ErrModelGateway = errors.New("model gateway error")

	// ErrValidation indicates a request or message failed validation.
	ErrValidation = errors.New("validation error")

	// ErrUnknownTransport indicates an endpoint names a transport kind no
	// connector is registered for.
	ErrUnknownTransport = errors.New("unknown transport")
)
