// Package arith is a small arithmetic endpoint: add, subtract, multiply and
// divide over numbers or numeric strings.
package arith

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fwojciec/relay/mcp"
	"github.com/sirupsen/logrus"
)

// Name is the server name reported during the handshake.
const Name = "arith"

// Version is the server version reported during the handshake.
var Version = "1.0.0"

// ErrDivisionByZero is returned by divide when b is zero.
var ErrDivisionByZero = errors.New("Division by zero is not allowed")

var schema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"a": {"title": "A", "type": "number"},
		"b": {"title": "B", "type": "number"}
	},
	"required": ["a", "b"]
}`)

// NewServer returns an MCP server exposing the four operations.
func NewServer(log logrus.FieldLogger) *mcp.Server {
	s := mcp.NewServer(Name, Version, mcp.WithServerLogger(log))
	for _, op := range []struct {
		name, doc string
		fn        func(a, b float64) (float64, error)
	}{
		{"add", "Return a + b.", func(a, b float64) (float64, error) { return a + b, nil }},
		{"subtract", "Return a - b.", func(a, b float64) (float64, error) { return a - b, nil }},
		{"multiply", "Return a * b.", func(a, b float64) (float64, error) { return a * b, nil }},
		{"divide", "Return a / b, raising clean errors for zero division.", Divide},
	} {
		s.AddTool(mcp.Tool{
			Name:        op.name,
			Description: op.doc,
			InputSchema: schema,
			Handler:     binary(op.fn),
		})
	}
	return s
}

// Divide returns a / b.
func Divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	return a / b, nil
}

func binary(fn func(a, b float64) (float64, error)) mcp.HandlerFunc {
	return func(_ context.Context, args json.RawMessage) (any, error) {
		var in struct {
			A json.RawMessage `json:"a"`
			B json.RawMessage `json:"b"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		a, err := Number(in.A)
		if err != nil {
			return nil, err
		}
		b, err := Number(in.B)
		if err != nil {
			return nil, err
		}
		v, err := fn(a, b)
		if err != nil {
			return nil, err
		}
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, fmt.Errorf("result %v is not a finite number", v)
		}
		return v, nil
	}
}

// Number decodes a JSON number or a numeric string. Surrounding whitespace
// in strings is ignored.
func Number(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("Expected a numeric string, got %s", repr(s))
		}
		return f, nil
	}
	var f float64
	if len(raw) == 0 || string(raw) == "null" || json.Unmarshal(raw, &f) != nil {
		return 0, errors.New("Expected a number (int/float or numeric string)")
	}
	return f, nil
}

// repr quotes s with single quotes, switching to double quotes when s
// contains a single quote but no double quote.
func repr(s string) string {
	q := "'"
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		q = `"`
	}
	var b strings.Builder
	b.WriteString(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case string(r) == q:
			b.WriteString(`\` + q)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString(q)
	return b.String()
}
