package relay_test

import (
	"testing"

	"github.com/fwojciec/relay"
	"github.com/stretchr/testify/assert"
)

func TestDefaultTheme(t *testing.T) {
	t.Parallel()

	th := relay.DefaultTheme()
	for _, c := range []int{th.Prompt, th.Capability, th.Error, th.Success, th.Muted, th.Accent} {
		assert.GreaterOrEqual(t, c, 0)
		assert.LessOrEqual(t, c, 15)
	}
	assert.NotEqual(t, th.Error, th.Success)
}
