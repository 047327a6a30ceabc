package eventbus

import (
	"math/rand"
	"time"
)

// Backoff is the retry policy for failed envelopes.
type Backoff struct {
	// BaseDelay is the delay before the first retry. Default: 1s.
	BaseDelay time.Duration

	// MaxAttempts is the attempt count at which a still-failing
	// envelope moves to the dead-letter state. Default: 5.
	MaxAttempts int
}

// DefaultBackoff returns the default retry policy.
func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelay:   1 * time.Second,
		MaxAttempts: 5,
	}
}

// Delay computes how long to wait after the given attempt failed.
// attempt is 1-based (1 => BaseDelay). The delay doubles per prior
// attempt and carries a random jitter in [0, BaseDelay) on top, so
// simultaneous retries spread out instead of waking up together. The
// result never drops below the un-jittered exponential term.
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := b.BaseDelay
	if base <= 0 {
		base = 1 * time.Second
	}

	// exponential: base * 2^(attempt-1)
	delay := base << (attempt - 1)

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	jitter := time.Duration(rng.Int63n(int64(base)))

	return delay + jitter
}

// Exhausted reports whether an envelope that just finished the given
// attempt has used up its retries.
func (b Backoff) Exhausted(attempt int) bool {
	max := b.MaxAttempts
	if max <= 0 {
		max = 5
	}
	return attempt >= max
}
