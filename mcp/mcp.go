// Package mcp implements the Model Context Protocol subset relay needs:
// JSON-RPC 2.0 framing, the initialize handshake, tools/list and tools/call.
// It is transport agnostic; see [Transport]. [Stream] carries frames over a
// byte stream such as a child process's stdio, and [Direct] hands them to an
// in-process [Handler] so an endpoint can be embedded without a process or
// broker.
package mcp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the protocol revision sent during initialize.
const ProtocolVersion = "2025-06-18"

const jsonrpcVersion = "2.0"

// Method names.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is a JSON-RPC request or, when ID is empty, a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a JSON-RPC response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC protocol error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

type implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      implementation `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      implementation `json:"serverInfo"`
}

type toolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type listToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type listToolsResult struct {
	Tools      []toolDef `json:"tools"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Content is one block of a tool result. Only text blocks are produced;
// other block types are carried through opaquely.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallToolResult is the result of tools/call.
type CallToolResult struct {
	Content           []Content       `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

// Payload returns the JSON value a successful call produced, or a
// *ToolError when the tool reported failure.
//
// The value is, in order of preference: the structured content; the single
// text block parsed as JSON; the single text block as a JSON string; the
// content array itself.
//
// Text carries no type, so a plain-text result that is itself valid JSON
// (such as "123" or "true") comes back as that JSON value rather than as a
// string. Servers that need the distinction should return an object, which
// [Server] also sends as structured content.
func (r CallToolResult) Payload() (json.RawMessage, error) {
	if r.IsError {
		return nil, &ToolError{Message: r.text()}
	}
	if len(r.StructuredContent) > 0 {
		return r.StructuredContent, nil
	}
	if len(r.Content) == 1 && r.Content[0].Type == "text" {
		text := r.Content[0].Text
		if json.Valid([]byte(text)) {
			return json.RawMessage(text), nil
		}
		return json.Marshal(text)
	}
	content := r.Content
	if content == nil {
		content = []Content{}
	}
	return json.Marshal(content)
}

func (r CallToolResult) text() string {
	var s string
	for i, c := range r.Content {
		if c.Type != "text" {
			continue
		}
		if i > 0 && s != "" {
			s += "\n"
		}
		s += c.Text
	}
	if s == "" {
		return "tool reported an error without a message"
	}
	return s
}

// ToolError is a failure reported by the tool itself (isError: true), as
// opposed to a transport or protocol fault.
type ToolError struct {
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}
