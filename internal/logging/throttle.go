// SPDX-License-Identifier: EPL-2.0

package logging

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Throttle admits at most one event per interval. Callers check Allow before
// formatting a message so suppressed events cost nothing but a counter bump.
type Throttle struct {
	lim        *rate.Limiter
	suppressed atomic.Uint64
}

// NewThrottle returns a throttle passing one event per interval. A
// non-positive interval lets every event through.
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &Throttle{lim: rate.NewLimiter(limit, 1)}
}

// Allow reports whether an event may be logged now.
func (t *Throttle) Allow() bool {
	return t.AllowAt(time.Now())
}

// AllowAt is Allow with an explicit clock reading.
func (t *Throttle) AllowAt(now time.Time) bool {
	if t.lim.AllowN(now, 1) {
		return true
	}
	t.suppressed.Add(1)
	return false
}

// Suppressed returns and clears the number of events dropped since the last
// call.
func (t *Throttle) Suppressed() uint64 {
	return t.suppressed.Swap(0)
}
