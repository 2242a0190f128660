// Package dispatch executes invocation requests against a capability index.
// Per-call failures never escape: every request yields exactly one result,
// in request order.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fwojciec/relay"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a single invocation.
const DefaultTimeout = 60 * time.Second

// Dispatcher runs invocation requests.
type Dispatcher struct {
	index       *relay.Index
	timeout     time.Duration
	concurrency int
	log         logrus.FieldLogger
	tracer      trace.Tracer

	mu      sync.Mutex
	onEvent func(relay.Event)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds each invocation. Zero disables the bound. An invoker
// that ignores its context is abandoned at the deadline and its late result
// discarded.
func WithTimeout(d time.Duration) Option {
	return func(x *Dispatcher) { x.timeout = d }
}

// WithConcurrency runs up to n invocations at once. Values below 2 keep the
// default sequential execution.
func WithConcurrency(n int) Option {
	return func(x *Dispatcher) { x.concurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(x *Dispatcher) { x.log = l }
}

// WithTracer sets the tracer used for per-invocation spans.
func WithTracer(t trace.Tracer) Option {
	return func(x *Dispatcher) { x.tracer = t }
}

// WithEventHandler receives EventInvocationStarted and
// EventInvocationFinished. Calls are serialized.
func WithEventHandler(h func(relay.Event)) Option {
	return func(x *Dispatcher) { x.onEvent = h }
}

// New returns a Dispatcher resolving names in idx.
func New(idx *relay.Index, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		index:       idx,
		timeout:     DefaultTimeout,
		concurrency: 1,
		log:         logrus.StandardLogger(),
		tracer:      otel.Tracer("github.com/fwojciec/relay/dispatch"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch returns one result per request, in request order. Requests run
// one at a time unless WithConcurrency allows more; a failing call never
// prevents or cancels the others.
func (d *Dispatcher) Dispatch(ctx context.Context, reqs []relay.InvocationRequest) []relay.InvocationResult {
	results := make([]relay.InvocationResult, len(reqs))
	if d.concurrency < 2 {
		for i, req := range reqs {
			results[i] = d.invoke(ctx, req)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = d.invoke(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) invoke(ctx context.Context, req relay.InvocationRequest) (res relay.InvocationResult) {
	ctx, span := d.tracer.Start(ctx, "dispatch.invoke", trace.WithAttributes(
		attribute.String("relay.capability", req.Name),
		attribute.String("relay.call_id", req.ID),
	))
	log := d.log.WithFields(logrus.Fields{"capability": req.Name, "call_id": req.ID})
	d.emit(relay.EventInvocationStarted{Request: req})
	start := time.Now()

	defer func() {
		if res.Err != nil {
			span.SetAttributes(attribute.String("relay.error_kind", string(res.Err.Kind)))
			span.SetStatus(codes.Error, res.Err.Message)
			log.WithField("kind", res.Err.Kind).Warn(res.Err.Message)
		} else {
			log.WithField("elapsed", time.Since(start)).Debug("invocation succeeded")
		}
		span.End()
		d.emit(relay.EventInvocationFinished{Result: res})
	}()

	b, err := d.index.Lookup(req.Name)
	if err != nil {
		return relay.Failed(req, relay.KindCapabilityNotFound, fmt.Sprintf("capability %q not found", req.Name))
	}
	if b.Capability.Endpoint != "" {
		span.SetAttributes(attribute.String("relay.endpoint", b.Capability.Endpoint))
		log = log.WithField("endpoint", b.Capability.Endpoint)
	}

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	payload, err := call(callCtx, b.Invoker, req)
	switch {
	case err == nil:
		return relay.Succeeded(req, payload)
	case errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		span.RecordError(err)
		return relay.Failed(req, relay.KindTimeout, fmt.Sprintf("capability %q timed out after %s", req.Name, d.timeout))
	default:
		span.RecordError(err)
		return relay.Failed(req, relay.KindInvocationFailed, err.Error())
	}
}

type outcome struct {
	payload json.RawMessage
	err     error
}

// call runs the invoker and returns when it finishes or ctx is done,
// whichever comes first.
func call(ctx context.Context, inv relay.Invoker, req relay.InvocationRequest) (json.RawMessage, error) {
	done := make(chan outcome, 1)
	go func() {
		payload, err := invoke(ctx, inv, req)
		done <- outcome{payload, err}
	}()
	select {
	case o := <-done:
		return o.payload, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// invoke runs the invoker, turning a panic into an error.
func invoke(ctx context.Context, inv relay.Invoker, req relay.InvocationRequest) (payload json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capability %q panicked: %v", req.Name, r)
		}
	}()
	out, err := inv.Invoke(ctx, req.Arguments)
	if err == nil && len(out) > 0 && !json.Valid(out) {
		return nil, fmt.Errorf("capability %q returned a payload that is not JSON", req.Name)
	}
	return out, err
}

func (d *Dispatcher) emit(e relay.Event) {
	if d.onEvent == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onEvent(e)
}
