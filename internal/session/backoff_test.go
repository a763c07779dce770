package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconnectBackoffGrowsUpToCap(t *testing.T) {
	cfg := BackoffConfig{Initial: 100 * time.Millisecond, Cap: 5 * time.Second, Factor: 2, Jitter: 0}
	b := newReconnectBackoff(cfg)

	var last time.Duration
	for i := 0; i < 10; i++ {
		d := b.Next()
		assert.LessOrEqual(t, d, cfg.Cap)
		if i > 0 {
			assert.GreaterOrEqual(t, d, last)
		}
		last = d
	}
}

func TestReconnectBackoffResetReturnsToInitial(t *testing.T) {
	cfg := BackoffConfig{Initial: 100 * time.Millisecond, Cap: 5 * time.Second, Factor: 2, Jitter: 0}
	b := newReconnectBackoff(cfg)

	for i := 0; i < 5; i++ {
		b.Next()
	}
	b.Reset()

	d := b.Next()
	assert.InDelta(t, cfg.Initial, d, float64(10*time.Millisecond))
}

func TestDefaultBackoffConfigMatchesSpec(t *testing.T) {
	cfg := DefaultBackoffConfig()
	assert.Equal(t, 100*time.Millisecond, cfg.Initial)
	assert.Equal(t, 5*time.Second, cfg.Cap)
	assert.Equal(t, 2.0, cfg.Factor)
	assert.Equal(t, 0.25, cfg.Jitter)
}
