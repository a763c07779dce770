package session

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffConfig parameterizes reconnect backoff (spec §4.6): initial delay,
// multiplicative growth per attempt, a cap, and proportional jitter.
type BackoffConfig struct {
	Initial time.Duration
	Cap     time.Duration
	Factor  float64
	Jitter  float64
}

// DefaultBackoffConfig matches spec §4.6: 100ms initial, factor 2, 5s cap,
// ±25% jitter.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial: 100 * time.Millisecond,
		Cap:     5 * time.Second,
		Factor:  2,
		Jitter:  0.25,
	}
}

// reconnectBackoff wraps cenkalti/backoff/v4's exponential backoff,
// reset on every successful connect so a long-lived session doesn't carry
// stale growth into its next disconnect.
type reconnectBackoff struct {
	cfg  BackoffConfig
	boff *backoff.ExponentialBackOff
}

func newReconnectBackoff(cfg BackoffConfig) *reconnectBackoff {
	b := &reconnectBackoff{cfg: cfg}
	b.boff = b.newExponential()
	return b
}

func (b *reconnectBackoff) newExponential() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.cfg.Initial
	eb.MaxInterval = b.cfg.Cap
	eb.Multiplier = b.cfg.Factor
	eb.RandomizationFactor = b.cfg.Jitter
	eb.MaxElapsedTime = 0 // never stop retrying on its own; the session owns give-up policy
	eb.Reset()
	return eb
}

// Next returns the delay before the next reconnect attempt.
func (b *reconnectBackoff) Next() time.Duration {
	return b.boff.NextBackOff()
}

// Reset clears accumulated backoff growth after a successful connect.
func (b *reconnectBackoff) Reset() {
	b.boff.Reset()
}
