package adapthttp

import (
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// rateLimiter is a fixed-window counter keyed by client.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{windows: make(map[string]*window), now: time.Now}
}

// allow reports whether key is still under limit in the current window.
func (rl *rateLimiter) allow(key string, limit int, per time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		rl.windows[key] = &window{count: 1, resetAt: now.Add(per)}
		return true
	}
	w.count++
	return w.count <= limit
}

func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}
