// Package discovery connects to every registered endpoint, lists the
// capabilities each one advertises and binds them to invokers.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Policy decides what a failing endpoint does to the discovery pass.
type Policy string

const (
	// AllOrNothing fails the whole pass when any endpoint fails.
	AllOrNothing Policy = "all-or-nothing"
	// Partial skips failed endpoints and reports them in Result.Failures.
	Partial Policy = "partial"
)

// ParsePolicy parses a policy name. The empty string selects AllOrNothing.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AllOrNothing:
		return AllOrNothing, nil
	case Partial:
		return Partial, nil
	}
	return "", fmt.Errorf("unknown discovery policy %q: %w", s, relay.ErrConfiguration)
}

// DefaultTimeout bounds discovery of a single endpoint.
const DefaultTimeout = 20 * time.Second

// Failure is an endpoint that could not be discovered.
type Failure struct {
	Endpoint string
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("endpoint %q: %v", f.Endpoint, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Result is the outcome of a discovery pass. Bindings are in registry order,
// and within an endpoint in advertisement order.
type Result struct {
	Bindings []relay.Binding
	Failures []Failure
}

// Index builds the capability index for the pass.
func (r Result) Index() *relay.Index {
	return relay.NewIndex(r.Bindings...)
}

// Client discovers capabilities through a connector.
type Client struct {
	conn    relay.Connector
	policy  Policy
	timeout time.Duration
	log     logrus.FieldLogger
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithPolicy sets the failure policy. The default is AllOrNothing.
func WithPolicy(p Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithTimeout bounds discovery of each endpoint.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithTracer sets the tracer used for per-endpoint spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// NewClient returns a discovery client that opens sessions through conn.
// The same connector is used by the returned invokers.
func NewClient(conn relay.Connector, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		policy:  AllOrNothing,
		timeout: DefaultTimeout,
		log:     logrus.StandardLogger(),
		tracer:  otel.Tracer("github.com/fwojciec/relay/discovery"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Discover queries every endpoint concurrently. Under AllOrNothing any
// failure is returned as an error wrapping [relay.ErrDiscovery]; under
// Partial failures are only reported in the result. A cancelled ctx always
// fails the pass.
func (c *Client) Discover(ctx context.Context, endpoints []relay.Endpoint) (Result, error) {
	found := make([][]relay.Binding, len(endpoints))
	errs := make([]error, len(endpoints))

	var g errgroup.Group
	for i, ep := range endpoints {
		g.Go(func() error {
			found[i], errs[i] = c.discoverEndpoint(ctx, ep)
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i, ep := range endpoints {
		if errs[i] != nil {
			res.Failures = append(res.Failures, Failure{Endpoint: ep.ID, Err: errs[i]})
			continue
		}
		res.Bindings = append(res.Bindings, found[i]...)
	}

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("discovery interrupted: %w: %w", relay.ErrDiscovery, err)
	}
	if len(res.Failures) > 0 && c.policy != Partial {
		joined := make([]error, len(res.Failures))
		for i, f := range res.Failures {
			joined[i] = f
		}
		return res, fmt.Errorf("%w: %w", relay.ErrDiscovery, errors.Join(joined...))
	}
	for _, f := range res.Failures {
		c.log.WithField("endpoint", f.Endpoint).WithError(f.Err).Warn("endpoint skipped")
	}
	return res, nil
}

func (c *Client) discoverEndpoint(ctx context.Context, ep relay.Endpoint) (_ []relay.Binding, err error) {
	ctx, span := c.tracer.Start(ctx, "discovery.endpoint", trace.WithAttributes(
		attribute.String("relay.endpoint", ep.ID),
		attribute.String("relay.transport", string(ep.Transport)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	sel, err := newSelector(ep)
	if err != nil {
		return nil, err
	}

	s, err := c.conn.Connect(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := sel.checkVersion(s.Server()); err != nil {
		return nil, err
	}

	caps, err := s.Capabilities(ctx)
	if err != nil {
		return nil, err
	}

	log := c.log.WithFields(logrus.Fields{"endpoint": ep.ID, "server": s.Server().Name})
	bindings := make([]relay.Binding, 0, len(caps))
	for _, cp := range caps {
		cp.Endpoint = ep.ID
		keep, err := sel.keep(cp)
		if err != nil {
			return nil, err
		}
		if !keep {
			log.WithField("capability", cp.Name).Debug("capability filtered out")
			continue
		}
		bindings = append(bindings, relay.Binding{
			Capability: cp,
			Invoker:    relay.Remote(c.conn, ep, cp.Name),
		})
	}
	span.SetAttributes(attribute.Int("relay.capabilities", len(bindings)))
	log.WithField("capabilities", len(bindings)).Debug("endpoint discovered")
	return bindings, nil
}
