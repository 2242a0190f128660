package relay

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so output
// automatically matches any color scheme.
type Theme struct {
	Prompt     int // Prompt echo
	Capability int // Capability names and invocation headers
	Error      int // Error results and diagnostics
	Success    int // Successful results
	Muted      int // Arguments, endpoint ids, secondary detail
	Accent     int // Headings, links
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		Prompt:     4,
		Capability: 3,
		Error:      1,
		Success:    2,
		Muted:      8,
		Accent:     5,
	}
}
