package relay

import (
	"context"
	"encoding/json"
	"fmt"
)

// Capability is the schema of one callable operation advertised by an
// endpoint. It is what the model is offered.
type Capability struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema of the accepted arguments
	Endpoint    string          // id of the owning endpoint
}

// ServerInfo is what an endpoint reports about itself when a session opens.
type ServerInfo struct {
	Name    string
	Version string
}

// Session is a live connection to one endpoint. Sessions are short-lived and
// owned by exactly one caller; Close must be called on every exit path.
type Session interface {
	// Server returns the identity the endpoint reported during the handshake.
	Server() ServerInfo
	// Capabilities lists the capabilities the endpoint advertises.
	Capabilities(ctx context.Context) ([]Capability, error)
	// Invoke runs the named capability. A capability that rejects its input
	// returns a non-nil error just like a transport fault does.
	Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
	Close() error
}

// Connector opens sessions to endpoints of one or more transport kinds.
type Connector interface {
	Connect(ctx context.Context, ep Endpoint) (Session, error)
}

// ConnectorMux routes Connect to the connector registered for the endpoint's
// transport kind.
type ConnectorMux map[TransportKind]Connector

// Connect dispatches to the connector for ep.Transport.
func (m ConnectorMux) Connect(ctx context.Context, ep Endpoint) (Session, error) {
	c, ok := m[ep.Transport]
	if !ok {
		return nil, fmt.Errorf("endpoint %q: transport %q: %w", ep.ID, ep.Transport, ErrUnknownTransport)
	}
	return c.Connect(ctx, ep)
}

// Invoker executes a single capability with an argument bag.
type Invoker interface {
	Invoke(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// InvokerFunc adapts a function to [Invoker].
type InvokerFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return f(ctx, args)
}

// Remote returns an Invoker that opens a session to ep, invokes the named
// capability and closes the session before returning, whatever the outcome.
// Close errors are not reported: the invocation result is already final.
func Remote(c Connector, ep Endpoint, name string) Invoker {
	return InvokerFunc(func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		s, err := c.Connect(ctx, ep)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.Invoke(ctx, name, args)
	})
}
