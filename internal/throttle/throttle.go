// Package throttle provides a minimum-interval gate for inbox polling.
// Denied calls are dropped, not queued: the caller reuses what it already has.
package throttle

import "time"

// DefaultInterval is the minimum time between two inbox fetches.
const DefaultInterval = 2 * time.Second

// Gate permits at most one fetch per Interval. The zero Gate with a zero
// Interval permits every call.
type Gate struct {
	Interval time.Duration
	Last     time.Time
}

// New returns a gate with the given interval; non-positive values fall back
// to DefaultInterval.
func New(interval time.Duration) Gate {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return Gate{Interval: interval}
}

// Allow reports whether a fetch may happen at now. When it returns true the
// gate records now as the last permitted fetch.
func (g *Gate) Allow(now time.Time) bool {
	if !g.Last.IsZero() && now.Sub(g.Last) < g.Interval {
		return false
	}
	g.Last = now
	return true
}

// Reset forgets the last fetch so the next Allow is permitted.
func (g *Gate) Reset() {
	g.Last = time.Time{}
}

// Remaining returns how long until the next fetch is permitted.
func (g *Gate) Remaining(now time.Time) time.Duration {
	if g.Last.IsZero() {
		return 0
	}
	if left := g.Interval - now.Sub(g.Last); left > 0 {
		return left
	}
	return 0
}
