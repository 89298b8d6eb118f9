package server

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limits Limits) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 14, 10, 30, 15, 0, time.UTC)}
	rl := NewRateLimiter(limits)
	rl.now = clock.now
	return rl, clock
}

func TestLimits_IsZero(t *testing.T) {
	assert.True(t, Limits{}.IsZero())
	assert.False(t, Limits{PerHour: 1}.IsZero())
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl, _ := newTestLimiter(Limits{})
	for range 100 {
		require.NoError(t, rl.Allow("client", 100))
	}
	u := rl.Usage("client")
	assert.Equal(t, 100, u.Day)
	assert.Equal(t, int64(10000), u.BytesDay)
}

func TestRateLimiter_PerMinute(t *testing.T) {
	rl, clock := newTestLimiter(Limits{PerMinute: 2})

	require.NoError(t, rl.Allow("a", 0))
	require.NoError(t, rl.Allow("a", 0))

	err := rl.Allow("a", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 45*time.Second, rle.RetryAfter)

	// Rejected requests are not counted.
	assert.Equal(t, 2, rl.Usage("a").Minute)

	clock.advance(45 * time.Second)
	assert.NoError(t, rl.Allow("a", 0), "new minute window")
}

func TestRateLimiter_PerHour(t *testing.T) {
	rl, clock := newTestLimiter(Limits{PerHour: 3})
	for range 3 {
		require.NoError(t, rl.Allow("a", 0))
		clock.advance(2 * time.Minute)
	}

	err := rl.Allow("a", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "hour", rle.Type)

	clock.advance(time.Hour)
	assert.NoError(t, rl.Allow("a", 0))
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	t.Run("requests", func(t *testing.T) {
		rl, clock := newTestLimiter(Limits{RequestsPerDay: 1})
		require.NoError(t, rl.Allow("a", 0))

		err := rl.Allow("a", 0)
		var qe *QuotaExceededError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, "requests", qe.Type)
		assert.Equal(t, int64(1), qe.Used)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), qe.Resets)

		clock.advance(24 * time.Hour)
		assert.NoError(t, rl.Allow("a", 0))
	})

	t.Run("data", func(t *testing.T) {
		rl, _ := newTestLimiter(Limits{BytesPerDay: 1000})
		require.NoError(t, rl.Allow("a", 600))

		err := rl.Allow("a", 500)
		var qe *QuotaExceededError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, "data", qe.Type)
		assert.Equal(t, int64(600), qe.Used)

		assert.NoError(t, rl.Allow("a", 400), "exactly at the quota is allowed")
	})
}

func TestRateLimiter_ClientsIndependent(t *testing.T) {
	rl, _ := newTestLimiter(Limits{PerMinute: 1})
	for i := range 5 {
		assert.NoError(t, rl.Allow(fmt.Sprintf("client-%d", i), 0))
	}
	assert.Error(t, rl.Allow("client-0", 0))
	assert.Equal(t, Usage{}, rl.Usage("unknown"))
}

func TestRateLimitErrors_Messages(t *testing.T) {
	err := error(&RateLimitError{Type: "minute", Limit: 5, RetryAfter: 30 * time.Second})
	assert.Equal(t, "rate limit exceeded for minute (limit: 5, retry after: 30s)", err.Error())

	resets := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	err = &QuotaExceededError{Type: "data", Limit: 10, Used: 9, Resets: resets}
	assert.Equal(t, "quota exceeded for data (used: 9, limit: 10, resets: 2026-01-02T00:00:00Z)", err.Error())
	assert.False(t, errors.Is(err, &RateLimitError{}))
}

func BenchmarkRateLimiter_Allow(b *testing.B) {
	rl := NewRateLimiter(Limits{PerMinute: 1 << 30})
	b.ResetTimer()
	for range b.N {
		_ = rl.Allow("bench", 0)
	}
}

func TestRateLimiter_EvictsClientsFromPreviousDays(t *testing.T) {
	rl, clock := newTestLimiter(Limits{PerMinute: 5})
	for i := range 50 {
		require.NoError(t, rl.Allow(fmt.Sprintf("10.0.0.%d", i), 10))
	}
	assert.Len(t, rl.usage, 50)

	clock.advance(10 * time.Minute)
	require.NoError(t, rl.Allow("10.0.0.1", 10))
	assert.Len(t, rl.usage, 50, "same day keeps every client")

	clock.advance(24 * time.Hour)
	require.NoError(t, rl.Allow("fresh", 10))
	assert.Len(t, rl.usage, 1)
	assert.Equal(t, 1, rl.Usage("fresh").Day)
	assert.Equal(t, Usage{}, rl.Usage("10.0.0.1"))
}
