// Package mock provides test doubles for relay interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/relay"
)

// Interface compliance checks.
var (
	_ relay.Provider = (*Provider)(nil)
	_ relay.Gateway  = (*Gateway)(nil)
)

// Provider is a test double for relay.Provider.
// Set CompleteFn before calling Complete.
type Provider struct {
	CompleteFn func(ctx context.Context, req relay.Request) (relay.AssistantMessage, error)
}

// Complete delegates to CompleteFn.
func (p *Provider) Complete(ctx context.Context, req relay.Request) (relay.AssistantMessage, error) {
	return p.CompleteFn(ctx, req)
}

// Gateway is a test double for relay.Gateway.
// OfferFn and ContinueFn panic when nil to catch missing setup. CheckFn is
// nil-safe and reports no error.
type Gateway struct {
	CheckFn    func() error
	OfferFn    func(ctx context.Context, caps []relay.Capability, prompt string) (relay.Turn, error)
	ContinueFn func(ctx context.Context, caps []relay.Capability, conv relay.Conversation) (relay.Turn, error)
}

// Check delegates to CheckFn. Returns nil when CheckFn is not set.
func (g *Gateway) Check() error {
	if g.CheckFn == nil {
		return nil
	}
	return g.CheckFn()
}

// Offer delegates to OfferFn.
func (g *Gateway) Offer(ctx context.Context, caps []relay.Capability, prompt string) (relay.Turn, error) {
	return g.OfferFn(ctx, caps, prompt)
}

// Continue delegates to ContinueFn.
func (g *Gateway) Continue(ctx context.Context, caps []relay.Capability, conv relay.Conversation) (relay.Turn, error) {
	return g.ContinueFn(ctx, caps, conv)
}
