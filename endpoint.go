package relay

import (
	"fmt"
	"maps"
)

// TransportKind names the transport used to reach an endpoint.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportNATS  TransportKind = "nats"
)

// Endpoint describes one capability provider. It is immutable once loaded.
type Endpoint struct {
	ID        string
	Transport TransportKind

	// Stdio transport.
	Command string
	Args    []string
	Env     map[string]string // overrides applied on top of the parent environment

	// NATS transport.
	URL     string
	Subject string

	// Version is an optional semver constraint the endpoint's advertised
	// server version must satisfy (e.g. ">= 1.0.0").
	Version string

	// Filter is an optional CEL expression over the capability (name,
	// description) selecting which advertised capabilities are kept.
	Filter string
}

// Validate checks that the endpoint carries the parameters its transport needs.
func (e Endpoint) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("endpoint id is required: %w", ErrConfiguration)
	}
	switch e.Transport {
	case TransportStdio:
		if e.Command == "" {
			return fmt.Errorf("endpoint %q: command is required for stdio transport: %w", e.ID, ErrConfiguration)
		}
	case TransportNATS:
		if e.URL == "" || e.Subject == "" {
			return fmt.Errorf("endpoint %q: url and subject are required for nats transport: %w", e.ID, ErrConfiguration)
		}
	case "":
		return fmt.Errorf("endpoint %q: transport is required: %w", e.ID, ErrConfiguration)
	default:
		return fmt.Errorf("endpoint %q: transport %q: %w", e.ID, e.Transport, ErrUnknownTransport)
	}
	return nil
}

// Registry is the fixed, ordered set of endpoints known to a process.
// Order is the configuration order and drives discovery iteration order.
type Registry struct {
	endpoints []Endpoint
	byID      map[string]int
}

// NewRegistry builds a Registry, failing fast on invalid descriptors or a
// duplicate identity.
func NewRegistry(endpoints ...Endpoint) (*Registry, error) {
	r := &Registry{
		endpoints: make([]Endpoint, 0, len(endpoints)),
		byID:      make(map[string]int, len(endpoints)),
	}
	for _, ep := range endpoints {
		if err := ep.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[ep.ID]; dup {
			return nil, fmt.Errorf("duplicate endpoint id %q: %w", ep.ID, ErrConfiguration)
		}
		r.byID[ep.ID] = len(r.endpoints)
		r.endpoints = append(r.endpoints, ep.clone())
	}
	return r, nil
}

// Endpoints returns the endpoints in configuration order.
func (r *Registry) Endpoints() []Endpoint {
	out := make([]Endpoint, len(r.endpoints))
	for i, ep := range r.endpoints {
		out[i] = ep.clone()
	}
	return out
}

// Endpoint returns the endpoint with the given id.
func (r *Registry) Endpoint(id string) (Endpoint, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Endpoint{}, false
	}
	return r.endpoints[i].clone(), true
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int { return len(r.endpoints) }

func (e Endpoint) clone() Endpoint {
	e.Args = append([]string(nil), e.Args...)
	e.Env = maps.Clone(e.Env)
	return e
}
