package http

import (
	"sync"
	"sync/atomic"
	"time"
)

// rateLimiter is a fixed-window limiter keyed by client IP. Scanners submit
// in bursts when a team empties its pockets, so the window is generous.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
	limit   int
	window  time.Duration
	now     func() time.Time
	hits    int64

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	windowStart time.Time
	requests    int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		limit = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		clients:     make(map[string]*clientInfo),
		limit:       limit,
		window:      window,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
}

// startCleanup drops idle clients until stop is called.
func (rl *rateLimiter) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-10 * rl.window)
	removed := 0
	for ip, c := range rl.clients {
		if c.windowStart.Before(cutoff) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// allow reports whether clientIP may make another request in the current
// window.
func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[clientIP]
	if !ok || now.Sub(c.windowStart) >= rl.window {
		rl.clients[clientIP] = &clientInfo{windowStart: now, requests: 1}
		return true
	}

	c.requests++
	if c.requests > rl.limit {
		atomic.AddInt64(&rl.hits, 1)
		return false
	}
	return true
}

func (rl *rateLimiter) activeClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *rateLimiter) rejected() int64 {
	return atomic.LoadInt64(&rl.hits)
}
