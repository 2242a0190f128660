package mcp

import (
	"context"
	"sync/atomic"
)

// Direct is an in-process [Transport] that hands frames straight to a
// [Handler].
type Direct struct {
	h      Handler
	closed atomic.Bool
}

// NewDirect returns a transport bound to h.
func NewDirect(h Handler) *Direct {
	return &Direct{h: h}
}

// RoundTrip passes frame to the handler.
func (d *Direct) RoundTrip(ctx context.Context, frame []byte) ([]byte, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.h.Handle(ctx, frame), nil
}

// Send passes a notification to the handler.
func (d *Direct) Send(ctx context.Context, frame []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	d.h.Handle(ctx, frame)
	return nil
}

// Close marks the transport closed.
func (d *Direct) Close() error {
	d.closed.Store(true)
	return nil
}
