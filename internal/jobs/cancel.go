package jobs

import "sync/atomic"

// CancelToken is a single-use cooperative stop signal. Long-running work
// polls it at safe checkpoints and exits early once set; there is no reset.
type CancelToken struct {
	cancelled atomic.Bool
}

// NewCancelToken returns a fresh, unset token.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel sets the flag. Idempotent and safe from any goroutine.
func (t *CancelToken) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	return t.cancelled.Load()
}
