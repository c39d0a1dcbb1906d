package proc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPresenceRotator_NoRepeat(t *testing.T) {
	r := &presenceRotator{sources: []func() string{
		func() string { return "a" },
		func() string { return "" },
		func() string { return "b" },
	}}
	r.last = "a"
	for range 20 {
		assert.Equal(t, "b", r.pick())
	}
}

func TestPresenceRotator_Fallbacks(t *testing.T) {
	r := &presenceRotator{sources: []func() string{func() string { return "" }}}
	assert.Equal(t, "/music play", r.pick())

	r.sources = []func() string{func() string { return "only" }}
	r.last = "only"
	assert.Equal(t, "only", r.pick())
}

func TestPresenceRotator_Update(t *testing.T) {
	var got []string
	fail := false
	r := &presenceRotator{
		sources: []func() string{func() string { return "x" }},
		set: func(_ context.Context, text string) error {
			if fail {
				return errors.New("gateway closed")
			}
			got = append(got, text)
			return nil
		},
	}
	r.update(context.Background(), time.Second)
	assert.Equal(t, []string{"x"}, got)
	assert.Equal(t, "x", r.last)

	fail = true
	r.last = ""
	r.update(context.Background(), time.Second)
	assert.Empty(t, r.last)
}

func TestStatusTexts(t *testing.T) {
	assert.Empty(t, pendingStatus(0))
	assert.Equal(t, "3 pending notifications", pendingStatus(3))
	assert.Equal(t, "for 26h 5m", uptimeStatus(26*time.Hour+5*time.Minute+30*time.Second))
	assert.Empty(t, latencyStatus(0))
	assert.Equal(t, "at 42ms", latencyStatus(42*time.Millisecond))
}
