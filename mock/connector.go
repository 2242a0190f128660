package mock

import (
	"context"
	"encoding/json"

	"github.com/fwojciec/relay"
)

// Interface compliance checks.
var (
	_ relay.Connector = (*Connector)(nil)
	_ relay.Session   = (*Session)(nil)
)

// Connector is a test double for relay.Connector.
// Set ConnectFn before calling Connect.
type Connector struct {
	ConnectFn func(ctx context.Context, ep relay.Endpoint) (relay.Session, error)
}

// Connect delegates to ConnectFn.
func (c *Connector) Connect(ctx context.Context, ep relay.Endpoint) (relay.Session, error) {
	return c.ConnectFn(ctx, ep)
}

// Session is a test double for relay.Session.
// CapabilitiesFn and InvokeFn panic when nil. ServerFn and CloseFn are
// nil-safe (zero value and no-op) because callers always close sessions.
type Session struct {
	ServerFn       func() relay.ServerInfo
	CapabilitiesFn func(ctx context.Context) ([]relay.Capability, error)
	InvokeFn       func(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
	CloseFn        func() error
}

// Server delegates to ServerFn. Returns the zero value when ServerFn is nil.
func (s *Session) Server() relay.ServerInfo {
	if s.ServerFn == nil {
		return relay.ServerInfo{}
	}
	return s.ServerFn()
}

// Capabilities delegates to CapabilitiesFn.
func (s *Session) Capabilities(ctx context.Context) ([]relay.Capability, error) {
	return s.CapabilitiesFn(ctx)
}

// Invoke delegates to InvokeFn.
func (s *Session) Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	return s.InvokeFn(ctx, name, args)
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Session) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}
