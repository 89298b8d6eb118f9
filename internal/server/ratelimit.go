package server

import (
	"fmt"
	"sync"
	"time"
)

// Limits configures per-client request rates and daily quotas. Zero disables
// the corresponding check.
type Limits struct {
	PerMinute      int
	PerHour        int
	RequestsPerDay int
	BytesPerDay    int64
}

// IsZero reports whether no limit is configured.
func (l Limits) IsZero() bool { return l == Limits{} }

// sweepInterval bounds how often Allow scans for clients idle since before
// the current day.
const sweepInterval = time.Minute

// RateLimiter tracks request counts per client in fixed windows.
type RateLimiter struct {
	mu        sync.Mutex
	limits    Limits
	now       func() time.Time
	usage     map[string]*Usage
	lastSweep time.Time
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	Minute      int
	Hour        int
	Day         int
	BytesDay    int64
	minuteStart time.Time
	hourStart   time.Time
	dayStart    time.Time
}

// NewRateLimiter creates a limiter enforcing limits.
func NewRateLimiter(limits Limits) *RateLimiter {
	return &RateLimiter{limits: limits, now: time.Now, usage: make(map[string]*Usage)}
}

// Allow records a request of size bytes from client, or returns a
// *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= sweepInterval {
		rl.evictStale(now)
		rl.lastSweep = now
	}
	u, ok := rl.usage[client]
	if !ok {
		u = &Usage{}
		rl.usage[client] = u
	}
	u.roll(now)

	switch {
	case rl.limits.PerMinute > 0 && u.Minute >= rl.limits.PerMinute:
		return &RateLimitError{Type: "minute", Limit: rl.limits.PerMinute, RetryAfter: u.minuteStart.Add(time.Minute).Sub(now)}
	case rl.limits.PerHour > 0 && u.Hour >= rl.limits.PerHour:
		return &RateLimitError{Type: "hour", Limit: rl.limits.PerHour, RetryAfter: u.hourStart.Add(time.Hour).Sub(now)}
	case rl.limits.RequestsPerDay > 0 && u.Day >= rl.limits.RequestsPerDay:
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.limits.RequestsPerDay), Used: int64(u.Day), Resets: u.dayStart.AddDate(0, 0, 1)}
	case rl.limits.BytesPerDay > 0 && u.BytesDay+size > rl.limits.BytesPerDay:
		return &QuotaExceededError{Type: "data", Limit: rl.limits.BytesPerDay, Used: u.BytesDay, Resets: u.dayStart.AddDate(0, 0, 1)}
	}

	u.Minute++
	u.Hour++
	u.Day++
	u.BytesDay += size
	return nil
}

// evictStale drops clients whose day window has ended. Their counters would
// all roll to zero on the next request, so forgetting them changes nothing.
func (rl *RateLimiter) evictStale(now time.Time) {
	today := dayStart(now)
	for client, u := range rl.usage {
		if u.dayStart.Before(today) {
			delete(rl.usage, client)
		}
	}
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// roll starts new windows when now has left the current ones.
func (u *Usage) roll(now time.Time) {
	if m := now.Truncate(time.Minute); !m.Equal(u.minuteStart) {
		u.minuteStart, u.Minute = m, 0
	}
	if h := now.Truncate(time.Hour); !h.Equal(u.hourStart) {
		u.hourStart, u.Hour = h, 0
	}
	if d := dayStart(now); !d.Equal(u.dayStart) {
		u.dayStart, u.Day, u.BytesDay = d, 0, 0
	}
}

// Usage returns a copy of client's counters.
func (rl *RateLimiter) Usage(client string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.usage[client]; ok {
		return *u
	}
	return Usage{}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
