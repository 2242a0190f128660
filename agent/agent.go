// Package agent runs one orchestration: discover capabilities, offer them to
// the model, dispatch the requested invocations and thread the results back.
package agent

import (
	"context"
	"fmt"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/discovery"
	"github.com/fwojciec/relay/dispatch"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Discoverer queries endpoints for their capabilities.
type Discoverer interface {
	Discover(ctx context.Context, endpoints []relay.Endpoint) (discovery.Result, error)
}

// Interface compliance check.
var _ Discoverer = (*discovery.Client)(nil)

// Result is the outcome of a run.
type Result struct {
	Answer string
	// Conversation is the last conversation sent to the model. It holds only
	// the prompt when the model answered directly.
	Conversation relay.Conversation
	Rounds       int // model round-trips
	Usage        relay.Usage
	// Truncated is set when the round cap was reached while the model was
	// still requesting invocations. Answer then holds that turn's text.
	Truncated bool
}

// Orchestrator wires a gateway, a discoverer and the endpoint registry.
// It holds no per-run state and may run concurrently.
type Orchestrator struct {
	gw        relay.Gateway
	disc      Discoverer
	registry  *relay.Registry
	maxRounds int
	dispatch  []dispatch.Option
	onEvent   func(relay.Event)
	log       logrus.FieldLogger
	tracer    trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxRounds bounds how many invocation batches a run dispatches. The
// default is 1.
func WithMaxRounds(n int) Option {
	return func(o *Orchestrator) { o.maxRounds = n }
}

// WithDispatchOptions configures the dispatcher built for each run.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(o *Orchestrator) { o.dispatch = append(o.dispatch, opts...) }
}

// WithEventHandler sets a callback receiving progress events. If nil or not
// set, events are discarded.
func WithEventHandler(h func(relay.Event)) Option {
	return func(o *Orchestrator) { o.onEvent = h }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithTracer sets the tracer used for the run span.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// New returns an Orchestrator.
func New(gw relay.Gateway, disc Discoverer, registry *relay.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:        gw,
		disc:      disc,
		registry:  registry,
		maxRounds: 1,
		log:       logrus.StandardLogger(),
		tracer:    otel.Tracer("github.com/fwojciec/relay/agent"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxRounds < 1 {
		o.maxRounds = 1
	}
	return o
}

// discover checks credentials, then runs discovery and builds the index.
func (o *Orchestrator) discover(ctx context.Context) (*relay.Index, error) {
	if err := o.gw.Check(); err != nil {
		return nil, err
	}
	res, err := o.disc.Discover(ctx, o.registry.Endpoints())
	if err != nil {
		return nil, err
	}
	idx := res.Index()
	for _, s := range idx.Shadowed() {
		o.log.WithFields(logrus.Fields{
			"capability": s.Name,
			"endpoint":   s.Winner,
			"shadowed":   s.Loser,
		}).Warn("capability name advertised by more than one endpoint")
	}
	return idx, nil
}

// Run executes one orchestration for prompt. Credentials are checked before
// any I/O. Per-call failures are threaded to the model as data; only
// configuration, discovery and model gateway faults fail the run.
func (o *Orchestrator) Run(ctx context.Context, prompt string) (_ Result, err error) {
	ctx, span := o.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.Int("relay.endpoints", o.registry.Len()),
		attribute.Int("relay.max_rounds", o.maxRounds),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	idx, err := o.discover(ctx)
	if err != nil {
		return Result{}, err
	}
	caps := idx.Capabilities()
	span.SetAttributes(attribute.Int("relay.capabilities", len(caps)))
	o.emit(relay.EventCapabilitiesDiscovered{Capabilities: caps, Shadowed: idx.Shadowed()})
	o.log.WithField("capabilities", len(caps)).Debug("capabilities discovered")

	opts := append([]dispatch.Option{dispatch.WithLogger(o.log), dispatch.WithEventHandler(o.onEvent)}, o.dispatch...)
	d := dispatch.New(idx, opts...)

	res := Result{Conversation: relay.NewConversation(prompt)}
	turn, err := o.gw.Offer(ctx, caps, prompt)
	if err != nil {
		return Result{}, err
	}
	for round := 0; ; round++ {
		res.Rounds++
		o.emit(relay.EventModelTurn{Round: round, Turn: turn})

		switch t := turn.(type) {
		case relay.FinalAnswer:
			res.Usage = res.Usage.Add(t.Message.Usage)
			res.Answer = t.Text
			o.emit(relay.EventFinalAnswer{Text: t.Text})
			span.SetAttributes(attribute.Int("relay.rounds", res.Rounds))
			return res, nil
		case relay.InvocationsRequested:
			res.Usage = res.Usage.Add(t.Message.Usage)
			if round >= o.maxRounds {
				o.log.WithField("round", round).Warn("round limit reached with invocations pending")
				res.Answer = t.Message.Text
				res.Truncated = true
				o.emit(relay.EventFinalAnswer{Text: res.Answer})
				return res, nil
			}
			log := o.log.WithField("round", round)
			log.WithField("requests", len(t.Requests)).Debug("dispatching invocations")
			results := d.Dispatch(ctx, t.Requests)
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			conv, err := res.Conversation.Extend(t, results)
			if err != nil {
				return Result{}, err
			}
			res.Conversation = conv
			turn, err = o.gw.Continue(ctx, caps, conv)
			if err != nil {
				return Result{}, err
			}
		default:
			return Result{}, fmt.Errorf("unexpected turn %T: %w", turn, relay.ErrModelGateway)
		}
	}
}

func (o *Orchestrator) emit(e relay.Event) {
	if o.onEvent != nil {
		o.onEvent(e)
	}
}
