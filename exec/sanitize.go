package exec

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Sanitize makes one line of endpoint stderr fit for a log record. Escape
// sequences and control characters other than tab are dropped. Carriage
// returns behave as on a terminal, so a progress bar collapses to the text
// left visible after its last redraw.
func Sanitize(line string) string {
	line = ansi.Strip(line)
	line = strings.TrimSuffix(line, "\r")

	var visible []rune
	col := 0
	for _, r := range line {
		switch {
		case r == '\r':
			col = 0
		case r == '\t' || r > 0x1F && r != 0x7F:
			if col < len(visible) {
				visible[col] = r
			} else {
				visible = append(visible, r)
			}
			col++
		}
	}
	return string(visible)
}
