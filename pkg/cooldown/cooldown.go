package cooldown

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUses is the number of uses allowed per window.
const DefaultUses = 2

type key struct {
	guildID string
	userID  string
}

type entry struct {
	lim    *rate.Limiter
	window time.Duration
}

// Limiter limits how often a user may run a command in a guild.
type Limiter struct {
	mu      sync.Mutex
	uses    int
	now     func() time.Time
	entries map[key]*entry
}

// NewLimiter creates a limiter allowing uses per window.
func NewLimiter(uses int, now func() time.Time) *Limiter {
	if uses <= 0 {
		uses = DefaultUses
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		uses:    uses,
		now:     now,
		entries: make(map[key]*entry),
	}
}

// Allow reports whether the user may go ahead. When they may not, it returns how long until they can.
// A window of zero disables the limit.
func (l *Limiter) Allow(guildID, userID string, window time.Duration) (bool, time.Duration) {
	if window <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// One use comes back per window, so no window-long span holds more than uses.
	now := l.now()
	limit := rate.Every(window)

	k := key{guildID: guildID, userID: userID}
	e, ok := l.entries[k]
	if !ok {
		e = &entry{lim: rate.NewLimiter(limit, l.uses), window: window}
		l.entries[k] = e
	} else if e.window != window {
		e.lim.SetLimitAt(now, limit)
		e.window = window
	}

	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, window
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Prune drops users whose limiter has fully refilled.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for k, e := range l.entries {
		if e.lim.TokensAt(now) >= float64(l.uses) {
			delete(l.entries, k)
			n++
		}
	}
	return n
}
