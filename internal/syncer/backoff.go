package syncer

import (
	"context"
	"time"

	"github.com/roach88/maplesync/internal/nexon"
)

// Backoff bounds the retry policy for one network call: exponential delay
// starting at Base, doubling up to Cap, at most Attempts tries. Retries apply
// per individual call, never per whole character.
type Backoff struct {
	Base     time.Duration
	Cap      time.Duration
	Attempts int
}

// DefaultBackoff mirrors the API's observed throttling behavior.
var DefaultBackoff = Backoff{
	Base:     350 * time.Millisecond,
	Cap:      6 * time.Second,
	Attempts: 5,
}

// withRetry runs call until it succeeds, the error is not transient, the
// attempt budget is spent, or ctx ends. NotFound and Malformed come back
// immediately - retrying a response that will not change only burns quota.
func withRetry[T any](ctx context.Context, b Backoff, call func() (T, error)) (T, error) {
	var zero T
	if b.Attempts <= 0 {
		b = DefaultBackoff
	}

	delay := b.Base
	var lastErr error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		v, err := call()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !nexon.IsTransient(err) {
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > b.Cap {
			delay = b.Cap
		}
	}
	return zero, lastErr
}
