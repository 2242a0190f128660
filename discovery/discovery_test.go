package discovery_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/discovery"
	"github.com/fwojciec/relay/mock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func ep(id string) relay.Endpoint {
	return relay.Endpoint{ID: id, Transport: relay.TransportStdio, Command: "/bin/" + id}
}

// fleet fakes endpoints by id: each advertises the given capability names.
// An id present in broken fails to connect. closes counts Close calls.
type fleet struct {
	tools   map[string][]string
	version map[string]string
	broken  map[string]error
	closes  atomic.Int32
	opens   atomic.Int32
}

func (f *fleet) connector() *mock.Connector {
	return &mock.Connector{ConnectFn: func(_ context.Context, e relay.Endpoint) (relay.Session, error) {
		if err := f.broken[e.ID]; err != nil {
			return nil, err
		}
		f.opens.Add(1)
		return &mock.Session{
			ServerFn: func() relay.ServerInfo {
				return relay.ServerInfo{Name: e.ID, Version: f.version[e.ID]}
			},
			CapabilitiesFn: func(context.Context) ([]relay.Capability, error) {
				var caps []relay.Capability
				for _, n := range f.tools[e.ID] {
					caps = append(caps, relay.Capability{Name: n, Description: n + " numbers"})
				}
				return caps, nil
			},
			InvokeFn: func(_ context.Context, name string, _ json.RawMessage) (json.RawMessage, error) {
				return json.Marshal(e.ID + "/" + name)
			},
			CloseFn: func() error { f.closes.Add(1); return nil },
		}, nil
	}}
}

func names(bs []relay.Binding) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Capability.Endpoint + "/" + b.Capability.Name
	}
	return out
}

func quiet() discovery.Option {
	l, _ := test.NewNullLogger()
	return discovery.WithLogger(l)
}

func TestDiscover_AggregatesInRegistryOrder(t *testing.T) {
	t.Parallel()

	f := &fleet{tools: map[string][]string{
		"math":  {"add", "divide"},
		"manim": {"render"},
	}}
	c := discovery.NewClient(f.connector(), quiet())

	res, err := c.Discover(context.Background(), []relay.Endpoint{ep("math"), ep("manim")})
	require.NoError(t, err)
	assert.Equal(t, []string{"math/add", "math/divide", "manim/render"}, names(res.Bindings))
	assert.Empty(t, res.Failures)
	assert.Equal(t, f.opens.Load(), f.closes.Load(), "every discovery session is closed")

	out, err := res.Bindings[2].Invoker.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"manim/render"`, string(out))
}

func TestDiscover_Idempotent(t *testing.T) {
	t.Parallel()

	f := &fleet{tools: map[string][]string{"a": {"x", "y"}, "b": {"z"}}}
	c := discovery.NewClient(f.connector(), quiet())
	eps := []relay.Endpoint{ep("a"), ep("b")}

	first, err := c.Discover(context.Background(), eps)
	require.NoError(t, err)
	second, err := c.Discover(context.Background(), eps)
	require.NoError(t, err)
	assert.Equal(t, names(first.Bindings), names(second.Bindings))
}

func TestDiscover_Policies(t *testing.T) {
	t.Parallel()

	boom := errors.New("spawn failed")
	newFleet := func() *fleet {
		return &fleet{
			tools:  map[string][]string{"math": {"add"}, "manim": {"render"}},
			broken: map[string]error{"manim": boom},
		}
	}

	t.Run("all-or-nothing aborts on any failure", func(t *testing.T) {
		t.Parallel()
		c := discovery.NewClient(newFleet().connector(), quiet())
		res, err := c.Discover(context.Background(), []relay.Endpoint{ep("math"), ep("manim")})
		require.ErrorIs(t, err, relay.ErrDiscovery)
		assert.ErrorIs(t, err, boom)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, "manim", res.Failures[0].Endpoint)
	})

	t.Run("partial skips the failed endpoint", func(t *testing.T) {
		t.Parallel()
		c := discovery.NewClient(newFleet().connector(), quiet(), discovery.WithPolicy(discovery.Partial))
		res, err := c.Discover(context.Background(), []relay.Endpoint{ep("math"), ep("manim")})
		require.NoError(t, err)
		assert.Equal(t, []string{"math/add"}, names(res.Bindings))
		require.Len(t, res.Failures, 1)
		assert.ErrorIs(t, res.Failures[0], boom)
	})

	t.Run("partial still fails when the context is cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := discovery.NewClient(newFleet().connector(), quiet(), discovery.WithPolicy(discovery.Partial))
		_, err := c.Discover(ctx, []relay.Endpoint{ep("math")})
		assert.ErrorIs(t, err, relay.ErrDiscovery)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDiscover_LastDiscoveredWins(t *testing.T) {
	t.Parallel()

	f := &fleet{tools: map[string][]string{
		"math":  {"add", "render"},
		"manim": {"render"},
	}}
	res, err := discovery.NewClient(f.connector(), quiet()).Discover(context.Background(), []relay.Endpoint{ep("math"), ep("manim")})
	require.NoError(t, err)

	idx := res.Index()
	b, err := idx.Lookup("render")
	require.NoError(t, err)
	assert.Equal(t, "manim", b.Capability.Endpoint)
	assert.Equal(t, []relay.Shadow{{Name: "render", Winner: "manim", Loser: "math"}}, idx.Shadowed())
}

func TestDiscover_VersionConstraint(t *testing.T) {
	t.Parallel()

	f := &fleet{
		tools:   map[string][]string{"old": {"add"}, "new": {"mul"}},
		version: map[string]string{"old": "0.9.1", "new": "1.4.0"},
	}
	old, recent := ep("old"), ep("new")
	old.Version, recent.Version = ">= 1.0.0", ">= 1.0.0"

	c := discovery.NewClient(f.connector(), quiet(), discovery.WithPolicy(discovery.Partial))
	res, err := c.Discover(context.Background(), []relay.Endpoint{old, recent})
	require.NoError(t, err)
	assert.Equal(t, []string{"new/mul"}, names(res.Bindings))
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Error(), "does not satisfy")

	bad := ep("new")
	bad.Version = "not a range"
	res, err = c.Discover(context.Background(), []relay.Endpoint{bad})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0], relay.ErrConfiguration)
}

func TestDiscover_Filter(t *testing.T) {
	t.Parallel()

	f := &fleet{tools: map[string][]string{"math": {"add", "subtract", "multiply", "divide"}}}
	e := ep("math")
	e.Filter = `name != "subtract" && !name.startsWith("mul")`

	res, err := discovery.NewClient(f.connector(), quiet()).Discover(context.Background(), []relay.Endpoint{e})
	require.NoError(t, err)
	assert.Equal(t, []string{"math/add", "math/divide"}, names(res.Bindings))
}

func TestCompileFilter(t *testing.T) {
	t.Parallel()

	_, err := discovery.CompileFilter(`endpoint == "math"`)
	require.NoError(t, err)

	_, err = discovery.CompileFilter(`name + "x"`)
	assert.ErrorIs(t, err, relay.ErrConfiguration)

	_, err = discovery.CompileFilter(`name ==`)
	assert.ErrorIs(t, err, relay.ErrConfiguration)
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]discovery.Policy{
		"":               discovery.AllOrNothing,
		"all-or-nothing": discovery.AllOrNothing,
		"Partial":        discovery.Partial,
	} {
		got, err := discovery.ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := discovery.ParsePolicy("best-effort")
	assert.ErrorIs(t, err, relay.ErrConfiguration)
}

func TestDiscover_Spans(t *testing.T) {
	t.Parallel()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	f := &fleet{
		tools:  map[string][]string{"math": {"add"}},
		broken: map[string]error{"manim": errors.New("no such file")},
	}
	c := discovery.NewClient(f.connector(), quiet(), discovery.WithTracer(tp.Tracer("test")), discovery.WithPolicy(discovery.Partial))
	_, err := c.Discover(context.Background(), []relay.Endpoint{ep("math"), ep("manim")})
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	status := map[string]codes.Code{}
	for _, s := range spans {
		assert.Equal(t, "discovery.endpoint", s.Name())
		for _, a := range s.Attributes() {
			if a.Key == "relay.endpoint" {
				status[a.Value.AsString()] = s.Status().Code
			}
		}
	}
	assert.Equal(t, codes.Unset, status["math"])
	assert.Equal(t, codes.Error, status["manim"])
}
