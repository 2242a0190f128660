package exec_test

import (
	"testing"

	relayexec "github.com/fwojciec/relay/exec"
	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "listening on stdio", "listening on stdio"},
		{"color codes", "\x1b[33mWARN\x1b[0m slow start", "WARN slow start"},
		{"osc title", "\x1b]0;arith\x07ready", "ready"},
		{"control characters", "a\x01b\x07c\x7f", "abc"},
		{"tabs kept", "key\tvalue", "key\tvalue"},
		{"trailing CR", "done\r", "done"},
		{"progress redraw", "10%\r50%\rdone", "done"},
		{"shorter redraw keeps tail", "abcdef\rxy", "xycdef"},
		{"empty", "", ""},
		{"only escapes", "\x1b[31m\x1b[0m", ""},
		{"unicode", "\x1b[32m✓\x1b[0m ok", "✓ ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, relayexec.Sanitize(tt.in))
		})
	}
}
