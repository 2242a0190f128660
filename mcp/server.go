package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// HandlerFunc implements one tool. A returned error becomes a tool result
// with isError set; its message is shown to the caller verbatim.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is a named capability served by a [Server].
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     HandlerFunc
}

// Handler answers a single JSON-RPC frame. It returns nil for notifications.
type Handler interface {
	Handle(ctx context.Context, frame []byte) []byte
}

// Server serves a fixed set of tools.
type Server struct {
	name    string
	version string
	log     logrus.FieldLogger

	mu    sync.RWMutex
	tools []Tool
	index map[string]int
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(l logrus.FieldLogger) ServerOption {
	return func(s *Server) { s.log = l }
}

// NewServer returns a server reporting the given identity.
func NewServer(name, version string, opts ...ServerOption) *Server {
	s := &Server{
		name:    name,
		version: version,
		log:     logrus.StandardLogger(),
		index:   make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddTool registers t, replacing any tool with the same name.
func (s *Server) AddTool(t Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[t.Name]; ok {
		s.tools[i] = t
		return
	}
	s.index[t.Name] = len(s.tools)
	s.tools = append(s.tools, t)
}

// Serve answers newline-delimited frames from r on w until r is exhausted
// or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := br.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			if resp := s.Handle(ctx, line); resp != nil {
				if _, werr := w.Write(append(resp, '\n')); werr != nil {
					return fmt.Errorf("write frame: %w", werr)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// Handle decodes one request frame and returns the encoded response.
func (s *Server) Handle(ctx context.Context, frame []byte) []byte {
	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		return encodeResponse(Response{ID: json.RawMessage("null"), Error: &Error{Code: CodeParseError, Message: "parse error"}})
	}
	log := s.log.WithField("method", req.Method)
	if req.IsNotification() {
		log.Trace("mcp notification")
		return nil
	}
	result, rpcErr := s.dispatch(ctx, req)
	if rpcErr != nil {
		log.WithField("code", rpcErr.Code).Debug(rpcErr.Message)
		return encodeResponse(Response{ID: req.ID, Error: rpcErr})
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return encodeResponse(Response{ID: req.ID, Error: &Error{Code: CodeInternalError, Message: err.Error()}})
	}
	return encodeResponse(Response{ID: req.ID, Result: raw})
}

func (s *Server) dispatch(ctx context.Context, req Request) (any, *Error) {
	switch req.Method {
	case MethodInitialize:
		return initializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      implementation{Name: s.name, Version: s.version},
		}, nil
	case MethodPing:
		return struct{}{}, nil
	case MethodToolsList:
		return s.listTools(), nil
	case MethodToolsCall:
		var p callToolParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return s.callTool(ctx, p)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}
	}
}

func (s *Server) listTools() listToolsResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := make([]toolDef, 0, len(s.tools))
	for _, t := range s.tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		defs = append(defs, toolDef{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return listToolsResult{Tools: defs}
}

func (s *Server) callTool(ctx context.Context, p callToolParams) (CallToolResult, *Error) {
	s.mu.RLock()
	i, ok := s.index[p.Name]
	var t Tool
	if ok {
		t = s.tools[i]
	}
	s.mu.RUnlock()
	if !ok {
		return CallToolResult{}, &Error{Code: CodeInvalidParams, Message: "unknown tool: " + p.Name}
	}

	args := p.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	v, err := t.Handler(ctx, args)
	if err != nil {
		s.log.WithField("capability", p.Name).WithError(err).Debug("tool failed")
		return CallToolResult{Content: []Content{{Type: "text", Text: err.Error()}}, IsError: true}, nil
	}
	res, err := toolResult(v)
	if err != nil {
		return CallToolResult{}, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return res, nil
}

// toolResult renders a handler value as a single text block. Objects are
// also returned as structured content.
func toolResult(v any) (CallToolResult, error) {
	switch x := v.(type) {
	case string:
		return CallToolResult{Content: []Content{{Type: "text", Text: x}}}, nil
	case json.RawMessage:
		return CallToolResult{Content: []Content{{Type: "text", Text: string(x)}}}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return CallToolResult{}, fmt.Errorf("encode tool result: %w", err)
	}
	res := CallToolResult{Content: []Content{{Type: "text", Text: string(raw)}}}
	if len(raw) > 0 && raw[0] == '{' {
		res.StructuredContent = raw
	}
	return res, nil
}

func decodeParams[T any](raw json.RawMessage, dst *T) *Error {
	if len(raw) == 0 {
		return &Error{Code: CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}
	return nil
}

func encodeResponse(resp Response) []byte {
	resp.JSONRPC = jsonrpcVersion
	b, err := json.Marshal(resp)
	if err != nil {
		b, _ = json.Marshal(Response{JSONRPC: jsonrpcVersion, ID: json.RawMessage("null"), Error: &Error{Code: CodeInternalError, Message: "encode response"}})
	}
	return b
}

var _ Handler = (*Server)(nil)
