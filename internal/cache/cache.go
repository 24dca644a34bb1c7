package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache is a keyed store of values that may disappear at any time.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically sweeps registered caches until its context ends.
type Janitor struct {
	interval time.Duration
	caches   []Cleaner
}

func NewJanitor(interval time.Duration, caches ...Cleaner) *Janitor {
	return &Janitor{interval: interval, caches: caches}
}

// Register adds a cache to the sweep list. Call before Run.
func (j *Janitor) Register(c Cleaner) {
	j.caches = append(j.caches, c)
}

// Sweep runs one cleanup pass and returns the number of entries removed.
func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	return total
}

// Run blocks, sweeping on every tick, and returns ctx.Err() on shutdown.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				slog.DebugContext(ctx, "Cache sweep", "removed", n)
			}
		}
	}
}
