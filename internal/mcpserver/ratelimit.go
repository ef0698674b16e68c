package mcpserver

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter holds two limiters: one for every tool call and one for calls
// that write to the store
type rateLimiter struct {
	calls  *rate.Limiter
	writes *rate.Limiter
	now    func() time.Time
}

// perMinute allows a burst of n and refills n tokens a minute
func perMinute(n int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
}

func newRateLimiter(callsPerMinute, writesPerMinute int, now func() time.Time) *rateLimiter {
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{
		calls:  perMinute(callsPerMinute),
		writes: perMinute(writesPerMinute),
		now:    now,
	}
}

func (rl *rateLimiter) allowCall() bool {
	return rl.calls.AllowN(rl.now(), 1)
}

func (rl *rateLimiter) allowWrite() bool {
	return rl.writes.AllowN(rl.now(), 1)
}
