package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"gmscanner/internal/core"
)

// Live serves lookups from the most recently loaded catalog and can reload
// it from its source while scans are in flight.
type Live struct {
	src     Source
	current atomic.Pointer[Catalog]
}

var (
	_ TokenFinder = (*Live)(nil)
	_ GroupReader = (*Live)(nil)
)

// NewLive loads the catalog once. A failed initial load is an error; later
// reload failures keep the previous catalog.
func NewLive(ctx context.Context, src Source) (*Live, error) {
	c, err := Load(ctx, src)
	if err != nil {
		return nil, err
	}
	l := &Live{src: src}
	l.current.Store(c)
	return l, nil
}

func (l *Live) FindToken(id string) (Match, bool) {
	return l.current.Load().FindToken(id)
}

func (l *Live) GroupInventory() map[string]core.GroupInfo {
	return l.current.Load().GroupInventory()
}

func (l *Live) Len() int {
	return l.current.Load().Len()
}

// Refresh reloads from the source and swaps the catalog in.
func (l *Live) Refresh(ctx context.Context) error {
	c, err := Load(ctx, l.src)
	if err != nil {
		return err
	}
	prev := l.current.Swap(c)
	if prev.Len() != c.Len() {
		slog.InfoContext(ctx, "Token catalog changed",
			"previous", prev.Len(),
			"current", c.Len())
	}
	return nil
}

// Run refreshes on every tick until ctx ends.
func (l *Live) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.Refresh(ctx); err != nil {
				slog.WarnContext(ctx, "Catalog refresh failed, keeping previous", "error", err)
			}
		}
	}
}
