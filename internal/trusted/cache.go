// Package trusted keeps the set of authors that belong to this deployment's
// own user population. Posts from these authors skip classification.
package trusted

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Source returns the authoritative list of trusted author DIDs.
type Source interface {
	FetchAuthors(ctx context.Context) ([]string, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]string, error)

// FetchAuthors calls f.
func (f SourceFunc) FetchAuthors(ctx context.Context) ([]string, error) {
	return f(ctx)
}

type authorSet map[string]struct{}

// defaultRefreshTimeout bounds a single listing fetch.
const defaultRefreshTimeout = 30 * time.Second

// Cache is an in-memory snapshot of trusted authors. The snapshot is replaced
// wholesale on every successful refresh and never mutated in place, so
// readers never observe a partially rebuilt set.
type Cache struct {
	source Source
	logger *slog.Logger

	set     atomic.Pointer[authorSet]
	refresh singleflight.Group
	timeout time.Duration
}

// NewCache creates an empty cache backed by source. Call Refresh before
// relying on lookups.
func NewCache(source Source, logger *slog.Logger) *Cache {
	c := &Cache{source: source, logger: logger, timeout: defaultRefreshTimeout}
	c.set.Store(&authorSet{})
	return c
}

// Refresh fetches the author listing and swaps it in. On error the current
// snapshot is kept. Concurrent callers share one fetch, which is detached from
// any single caller's cancellation and bounded by the refresh timeout; a
// cancelled caller stops waiting but the fetch completes for the others.
func (c *Cache) Refresh(ctx context.Context) error {
	ch := c.refresh.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return nil, c.load(fetchCtx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) load(ctx context.Context) error {
	dids, err := c.source.FetchAuthors(ctx)
	if err != nil {
		c.logger.Error("trusted author refresh failed, keeping current set",
			"size", c.Size(),
			"error", err,
		)
		return fmt.Errorf("fetch trusted authors: %w", err)
	}

	before := c.Size()
	after := c.Replace(dids)
	if after == 0 && before > 0 {
		c.logger.Warn("trusted author listing is empty", "previous_size", before)
	}
	c.logger.Info("trusted authors refreshed", "size", after, "delta", after-before)
	return nil
}

// Replace swaps in a new snapshot built from dids and returns its size.
func (c *Cache) Replace(dids []string) int {
	next := make(authorSet, len(dids))
	for _, did := range dids {
		did = strings.TrimSpace(did)
		if did != "" {
			next[did] = struct{}{}
		}
	}
	c.set.Store(&next)
	return len(next)
}

// IsTrusted reports whether did is in the current snapshot.
func (c *Cache) IsTrusted(did string) bool {
	_, ok := (*c.set.Load())[did]
	return ok
}

// IsTrustedWithRefresh looks did up and, on a miss, refreshes once before
// looking again. Concurrent misses share a single refresh.
func (c *Cache) IsTrustedWithRefresh(ctx context.Context, did string) (bool, error) {
	if c.IsTrusted(did) {
		return true, nil
	}

	err := c.Refresh(ctx)
	return c.IsTrusted(did), err
}

// Size returns the number of authors in the current snapshot.
func (c *Cache) Size() int {
	return len(*c.set.Load())
}

// Run refreshes the cache on every tick until ctx is cancelled. Failures are
// logged by Refresh and retried on the next tick.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}
