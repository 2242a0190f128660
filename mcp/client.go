package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/fwojciec/relay"
	"github.com/sirupsen/logrus"
)

// ClientName is reported to endpoints during the handshake.
const ClientName = "relay"

// ClientVersion is reported alongside ClientName.
var ClientVersion = "0.1.0"

// Client is a [relay.Session] speaking MCP over a [Transport].
type Client struct {
	t        Transport
	endpoint string
	log      logrus.FieldLogger
	nextID   atomic.Int64
	server   relay.ServerInfo
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEndpoint tags discovered capabilities with the owning endpoint id.
func WithEndpoint(id string) ClientOption {
	return func(c *Client) { c.endpoint = id }
}

// WithLogger sets the logger used for protocol traces.
func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client that has not yet performed the handshake.
func NewClient(t Transport, opts ...ClientOption) *Client {
	c := &Client{t: t, log: logrus.StandardLogger()}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.WithField("endpoint", c.endpoint)
	return c
}

// Connect creates a client and performs the handshake. The transport is
// closed if the handshake fails.
func Connect(ctx context.Context, t Transport, opts ...ClientOption) (*Client, error) {
	c := NewClient(t, opts...)
	if err := c.Initialize(ctx); err != nil {
		_ = t.Close()
		return nil, err
	}
	return c, nil
}

// Initialize performs the initialize / initialized handshake.
func (c *Client) Initialize(ctx context.Context) error {
	var res initializeResult
	err := c.call(ctx, MethodInitialize, initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      implementation{Name: ClientName, Version: ClientVersion},
	}, &res)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	c.server = relay.ServerInfo{Name: res.ServerInfo.Name, Version: res.ServerInfo.Version}
	c.log.WithFields(logrus.Fields{
		"server":   c.server.Name,
		"version":  c.server.Version,
		"protocol": res.ProtocolVersion,
	}).Debug("mcp session initialized")
	return c.notify(ctx, MethodInitialized)
}

// Server returns the identity reported during the handshake.
func (c *Client) Server() relay.ServerInfo {
	return c.server
}

// Capabilities lists every tool the endpoint advertises, following
// pagination cursors.
func (c *Client) Capabilities(ctx context.Context) ([]relay.Capability, error) {
	var caps []relay.Capability
	cursor := ""
	for {
		var res listToolsResult
		if err := c.call(ctx, MethodToolsList, listToolsParams{Cursor: cursor}, &res); err != nil {
			return nil, fmt.Errorf("tools/list: %w", err)
		}
		for _, t := range res.Tools {
			schema := t.InputSchema
			if len(schema) == 0 {
				schema = json.RawMessage(`{"type":"object"}`)
			}
			caps = append(caps, relay.Capability{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
				Endpoint:    c.endpoint,
			})
		}
		if res.NextCursor == "" || res.NextCursor == cursor {
			return caps, nil
		}
		cursor = res.NextCursor
	}
}

// Invoke calls a tool. A tool-reported failure is returned as *ToolError.
func (c *Client) Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}
	var res CallToolResult
	if err := c.call(ctx, MethodToolsCall, callToolParams{Name: name, Arguments: args}, &res); err != nil {
		return nil, err
	}
	return res.Payload()
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.t.Close()
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	id := c.nextID.Add(1)
	frame, err := encodeRequest(json.RawMessage(strconv.FormatInt(id, 10)), method, params)
	if err != nil {
		return err
	}
	c.log.WithField("method", method).Trace("mcp request")
	raw, err := c.t.RoundTrip(ctx, frame)
	if err != nil {
		return err
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) notify(ctx context.Context, method string) error {
	frame, err := encodeRequest(nil, method, nil)
	if err != nil {
		return err
	}
	return c.t.Send(ctx, frame)
}

func encodeRequest(id json.RawMessage, method string, params any) ([]byte, error) {
	req := Request{JSONRPC: jsonrpcVersion, ID: id, Method: method}
	if params != nil {
		p, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode %s params: %w", method, err)
		}
		req.Params = p
	}
	return json.Marshal(req)
}

var _ relay.Session = (*Client)(nil)
