// Package gateway wraps a model provider with the credential precondition,
// a per-round timeout and a single retry.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/relay"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds one model round-trip attempt.
const DefaultTimeout = 120 * time.Second

// DefaultSystemPrompt is sent when none is configured.
const DefaultSystemPrompt = "You are a helpful assistant. Use the available tools when they help answer the user."

// Gateway implements [relay.Gateway] on top of a [relay.Provider].
type Gateway struct {
	provider    relay.Provider
	creds       relay.Credentials
	model       string
	system      string
	maxTokens   int
	temperature *float64
	timeout     time.Duration
	retries     int
	log         logrus.FieldLogger
	tracer      trace.Tracer
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithModel selects the model; empty means the provider default.
func WithModel(m string) Option { return func(g *Gateway) { g.model = m } }

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(s string) Option { return func(g *Gateway) { g.system = s } }

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) Option { return func(g *Gateway) { g.maxTokens = n } }

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option { return func(g *Gateway) { g.temperature = &t } }

// WithTimeout bounds each attempt. Zero disables the bound.
func WithTimeout(d time.Duration) Option { return func(g *Gateway) { g.timeout = d } }

// WithRetries sets how many times a failed round is retried. The default is 1.
func WithRetries(n int) Option { return func(g *Gateway) { g.retries = n } }

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(g *Gateway) { g.log = l } }

// WithTracer sets the tracer used for per-round spans.
func WithTracer(t trace.Tracer) Option { return func(g *Gateway) { g.tracer = t } }

// New returns a Gateway for p authenticated by creds.
func New(p relay.Provider, creds relay.Credentials, opts ...Option) *Gateway {
	g := &Gateway{
		provider: p,
		creds:    creds,
		system:   DefaultSystemPrompt,
		timeout:  DefaultTimeout,
		retries:  1,
		log:      logrus.StandardLogger(),
		tracer:   otel.Tracer("github.com/fwojciec/relay/gateway"),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Check fails with [relay.ErrConfiguration] when credentials are missing.
func (g *Gateway) Check() error {
	return g.creds.Validate()
}

// Offer sends prompt with caps and returns the model's turn.
func (g *Gateway) Offer(ctx context.Context, caps []relay.Capability, prompt string) (relay.Turn, error) {
	return g.round(ctx, caps, relay.NewConversation(prompt).Messages)
}

// Continue sends the accumulated conversation.
func (g *Gateway) Continue(ctx context.Context, caps []relay.Capability, conv relay.Conversation) (relay.Turn, error) {
	return g.round(ctx, caps, conv.Messages)
}

func (g *Gateway) round(ctx context.Context, caps []relay.Capability, msgs []relay.Message) (relay.Turn, error) {
	if err := g.Check(); err != nil {
		return nil, err
	}
	req := relay.Request{
		Model:        g.model,
		SystemPrompt: g.system,
		Messages:     msgs,
		Capabilities: caps,
		MaxTokens:    g.maxTokens,
		Temperature:  g.temperature,
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", relay.ErrModelGateway, err)
	}

	ctx, span := g.tracer.Start(ctx, "gateway.round", trace.WithAttributes(
		attribute.String("relay.provider", g.creds.Provider),
		attribute.String("relay.model", g.model),
		attribute.Int("relay.messages", len(msgs)),
		attribute.Int("relay.capabilities", len(caps)),
	))
	defer span.End()

	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			g.log.WithError(lastErr).WithField("attempt", attempt+1).Warn("retrying model round")
		}
		msg, err := g.attempt(ctx, req)
		if err == nil {
			span.SetAttributes(
				attribute.Int("relay.requests", len(msg.Requests)),
				attribute.Int("relay.input_tokens", msg.Usage.InputTokens),
				attribute.Int("relay.output_tokens", msg.Usage.OutputTokens),
			)
			return relay.TurnOf(msg), nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, relay.ErrConfiguration) {
			break
		}
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return nil, fmt.Errorf("%w: %w", relay.ErrModelGateway, lastErr)
}

func (g *Gateway) attempt(ctx context.Context, req relay.Request) (relay.AssistantMessage, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	msg, err := g.provider.Complete(ctx, req)
	if err != nil {
		return relay.AssistantMessage{}, err
	}
	if err := relay.ValidateMessage(msg); err != nil {
		return relay.AssistantMessage{}, fmt.Errorf("malformed model response: %w", err)
	}
	return msg, nil
}

var _ relay.Gateway = (*Gateway)(nil)
