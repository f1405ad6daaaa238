package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle is a per-key token-bucket limiter for mutating routes. It is a
// coarse request throttle and sits in front of the password lockout, which
// only counts wrong answers.
type Throttle struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type throttleEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewThrottle returns a limiter allowing rps requests per second per key
// with the given burst. A non-positive rps disables throttling.
func NewThrottle(rps float64, burst int) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		entries: make(map[string]*throttleEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
}

func (t *Throttle) enabled() bool { return t != nil && t.rps > 0 }

// Allow takes one token from key's bucket.
func (t *Throttle) Allow(key string) bool {
	if !t.enabled() {
		return true
	}
	now := time.Now()

	t.mu.Lock()
	ent, ok := t.entries[key]
	if !ok {
		ent = &throttleEntry{lim: rate.NewLimiter(t.rps, t.burst)}
		t.entries[key] = ent
	}
	ent.lastSeen = now
	t.mu.Unlock()

	return ent.lim.AllowN(now, 1)
}

// Cleanup forgets keys idle for longer than the idle TTL.
func (t *Throttle) Cleanup() {
	cutoff := time.Now().Add(-t.idleTTL)

	t.mu.Lock()
	defer t.mu.Unlock()

	for k, ent := range t.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(t.entries, k)
		}
	}
}

func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// RunJanitor calls Cleanup every interval until ctx is done.
func (t *Throttle) RunJanitor(ctx context.Context, every time.Duration) {
	if !t.enabled() || every <= 0 {
		return
	}
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t.Cleanup()
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (t *Throttle) Middleware(key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !t.Allow(key(r)) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
