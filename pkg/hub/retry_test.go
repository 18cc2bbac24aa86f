package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultScheduleDelays(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 3*time.Second, policy.Delay(0))
	assert.Equal(t, 5*time.Second, policy.Delay(1))
	assert.Equal(t, 10*time.Second, policy.Delay(2))

	for attempt := 3; attempt < 200; attempt++ {
		d := policy.Delay(attempt)
		assert.GreaterOrEqual(t, d, 10*time.Second)
		assert.Less(t, d, 20*time.Second)
	}
}

func TestJitterBounds(t *testing.T) {
	policy := DefaultRetryPolicy()

	policy.Int64N = func(n int64) int64 { return 0 }
	assert.Equal(t, 10*time.Second, policy.Delay(3))

	policy.Int64N = func(n int64) int64 { return n - 1 }
	assert.Equal(t, 20*time.Second-time.Nanosecond, policy.Delay(7))
}

func TestNegativeAttemptUsesFirstDelay(t *testing.T) {
	assert.Equal(t, 3*time.Second, DefaultRetryPolicy().Delay(-4))
}

func TestSchedulerNotifiesOnce(t *testing.T) {
	s := NewRetryScheduler(DefaultRetryPolicy())

	var notified []int
	var delays []time.Duration
	for i := 0; i < 8; i++ {
		delay, attempt, notify := s.Next()
		assert.Equal(t, i, attempt)
		delays = append(delays, delay)
		if notify {
			notified = append(notified, attempt)
		}
	}

	assert.Equal(t, []int{3}, notified)
	assert.Equal(t, []time.Duration{3 * time.Second, 5 * time.Second, 10 * time.Second}, delays[:3])
	assert.True(t, s.Notified())
	assert.Equal(t, 8, s.Attempt())
}

func TestSchedulerResetStartsNewEpisode(t *testing.T) {
	s := NewRetryScheduler(DefaultRetryPolicy())
	for i := 0; i < 5; i++ {
		s.Next()
	}
	s.Reset()

	assert.Equal(t, 0, s.Attempt())
	assert.False(t, s.Notified())

	delay, attempt, notify := s.Next()
	assert.Equal(t, 3*time.Second, delay)
	assert.Equal(t, 0, attempt)
	assert.False(t, notify)

	s.Next()
	s.Next()
	_, _, notify = s.Next()
	assert.True(t, notify, "notice fires again in a new episode")
}
