package hub

import (
	"math/rand/v2"
	"time"
)

// RetryPolicy maps a reconnect attempt index to the delay before that attempt.
// Attempts inside Schedule use the listed delay; later attempts draw uniformly
// from [JitterMin, JitterMax).
type RetryPolicy struct {
	Schedule  []time.Duration
	JitterMin time.Duration
	JitterMax time.Duration

	// Int64N returns a value in [0, n). Defaults to math/rand/v2.
	Int64N func(n int64) int64
}

// DefaultRetryPolicy returns the 3s, 5s, 10s, then [10s, 20s) schedule.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Schedule:  []time.Duration{3 * time.Second, 5 * time.Second, 10 * time.Second},
		JitterMin: 10 * time.Second,
		JitterMax: 20 * time.Second,
	}
}

// Delay returns the wait before attempt. It performs no I/O.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt < len(p.Schedule) {
		return p.Schedule[attempt]
	}
	span := int64(p.JitterMax - p.JitterMin)
	if span <= 0 {
		return p.JitterMin
	}
	n := p.Int64N
	if n == nil {
		n = rand.Int64N
	}
	return p.JitterMin + time.Duration(n(span))
}

// EscalateAt is the first attempt index that raises the disconnected notice.
func (p RetryPolicy) EscalateAt() int {
	return len(p.Schedule)
}

// RetryScheduler tracks one reconnect episode: the attempt counter and the
// latch that keeps the disconnected notice to a single emission.
// It is only touched from the reconnect path and is not safe for concurrent use.
type RetryScheduler struct {
	policy   RetryPolicy
	attempt  int
	notified bool
}

// NewRetryScheduler creates a scheduler at attempt 0.
func NewRetryScheduler(policy RetryPolicy) *RetryScheduler {
	return &RetryScheduler{policy: policy}
}

// Next returns the delay for the current attempt and advances the counter.
// notify is true exactly once per episode, on the first attempt at or past the
// escalation threshold.
func (s *RetryScheduler) Next() (delay time.Duration, attempt int, notify bool) {
	attempt = s.attempt
	delay = s.policy.Delay(attempt)
	if attempt >= s.policy.EscalateAt() && !s.notified {
		s.notified = true
		notify = true
	}
	s.attempt++
	return delay, attempt, notify
}

// Reset starts a new episode at attempt 0 and clears the latch.
func (s *RetryScheduler) Reset() {
	s.attempt = 0
	s.notified = false
}

// Attempt returns the index of the next attempt.
func (s *RetryScheduler) Attempt() int {
	return s.attempt
}

// Notified reports whether the current episode already escalated.
func (s *RetryScheduler) Notified() bool {
	return s.notified
}
