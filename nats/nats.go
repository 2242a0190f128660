// Package nats carries MCP frames over NATS request/reply. Each JSON-RPC
// request is one NATS request on the endpoint's subject.
package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/mcp"
	comms "github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Connector opens MCP sessions to NATS endpoints. Connections are shared per
// server URL and live until Close; sessions themselves are cheap.
type Connector struct {
	log  logrus.FieldLogger
	name string

	mu    sync.Mutex
	conns map[string]*comms.Conn
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the connector logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Connector) { c.log = l }
}

// WithName sets the client name reported to the NATS server.
func WithName(name string) Option {
	return func(c *Connector) { c.name = name }
}

// NewConnector returns a NATS connector.
func NewConnector(opts ...Option) *Connector {
	c := &Connector{
		log:   logrus.StandardLogger(),
		name:  "relay",
		conns: make(map[string]*comms.Conn),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect performs the MCP handshake with the endpoint's subject.
func (c *Connector) Connect(ctx context.Context, ep relay.Endpoint) (relay.Session, error) {
	if ep.Transport != relay.TransportNATS {
		return nil, fmt.Errorf("endpoint %q: nats connector cannot serve %q: %w", ep.ID, ep.Transport, relay.ErrUnknownTransport)
	}
	nc, err := c.conn(ep.URL)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", ep.ID, err)
	}
	log := c.log.WithFields(logrus.Fields{"endpoint": ep.ID, "transport": ep.Transport})
	s, err := mcp.Connect(ctx, &transport{nc: nc, subject: ep.Subject}, mcp.WithEndpoint(ep.ID), mcp.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", ep.ID, err)
	}
	return s, nil
}

func (c *Connector) conn(url string) (*comms.Conn, error) {
	if url == "" {
		url = comms.DefaultURL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if nc, ok := c.conns[url]; ok && !nc.IsClosed() {
		return nc, nil
	}
	log := c.log.WithField("url", url)
	nc, err := comms.Connect(url,
		comms.Name(c.name),
		comms.Timeout(10*time.Second),
		comms.ReconnectWait(2*time.Second),
		comms.MaxReconnects(60),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats disconnected")
			}
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			log.WithField("connected", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	c.conns[url] = nc
	return nc, nil
}

// Close drains every connection the connector opened.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for url, nc := range c.conns {
		if err := nc.Drain(); err != nil && !errors.Is(err, comms.ErrConnectionClosed) {
			errs = append(errs, fmt.Errorf("drain %s: %w", url, err))
		}
		delete(c.conns, url)
	}
	return errors.Join(errs...)
}

type transport struct {
	nc      *comms.Conn
	subject string
}

func (t *transport) RoundTrip(ctx context.Context, frame []byte) ([]byte, error) {
	msg, err := t.nc.RequestWithContext(ctx, t.subject, frame)
	if err != nil {
		if errors.Is(err, comms.ErrNoResponders) {
			return nil, fmt.Errorf("no endpoint listening on %q: %w", t.subject, err)
		}
		return nil, err
	}
	return msg.Data, nil
}

func (t *transport) Send(_ context.Context, frame []byte) error {
	return t.nc.Publish(t.subject, frame)
}

// Close is a no-op: the connection belongs to the Connector.
func (t *transport) Close() error {
	return nil
}

// Serve answers MCP requests arriving on subject with h, one at a time in
// arrival order. Unsubscribe the returned subscription to stop.
func Serve(ctx context.Context, nc *comms.Conn, subject string, h mcp.Handler, log logrus.FieldLogger) (*comms.Subscription, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("subject", subject)
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		resp := h.Handle(ctx, msg.Data)
		if resp == nil || msg.Reply == "" {
			return
		}
		if err := msg.Respond(resp); err != nil {
			log.WithError(err).Warn("respond failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	log.Info("serving mcp over nats")
	return sub, nil
}

// ListenAndServe connects to url as name and serves h on subject until ctx
// is done, then drains the subscription.
func ListenAndServe(ctx context.Context, url, name, subject string, h mcp.Handler, log logrus.FieldLogger) error {
	nc, err := comms.Connect(url, comms.Name(name))
	if err != nil {
		return fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	defer nc.Close()

	sub, err := Serve(ctx, nc, subject, h, log)
	if err != nil {
		return err
	}
	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("drain subscription: %w", err)
	}
	return nil
}

var (
	_ relay.Connector = (*Connector)(nil)
	_ mcp.Transport   = (*transport)(nil)
)
