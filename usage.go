package relay

// Usage tracks token consumption reported by the model backend.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
	}
}
