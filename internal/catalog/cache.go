package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/singleflight"
)

// SnapshotBuilder produces a complete catalog snapshot.
type SnapshotBuilder interface {
	Build(ctx context.Context) (*Snapshot, error)
}

// Cache owns the currently served snapshot and keeps it fresh.
type Cache struct {
	builder    SnapshotBuilder
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	interval   atomic.Int64
	sf         singleflight.Group // collapses overlapping refreshes

	mu       sync.Mutex
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// NewCache starts with an empty snapshot; call RefreshNow to populate it.
func NewCache(builder SnapshotBuilder, interval time.Duration) *Cache {
	c := &Cache{builder: builder}
	c.interval.Store(int64(interval))

	empty := emptySnapshot()
	empty.RefreshInterval = interval
	c.current.Store(empty)
	return c
}

// Current returns the installed snapshot. It never blocks on the upstream.
func (c *Cache) Current() *Snapshot {
	return c.current.Load()
}

func (c *Cache) RefreshInterval() time.Duration {
	return time.Duration(c.interval.Load())
}

// RefreshNow builds a new snapshot and installs it. On error the current
// snapshot stays in place. Callers arriving while a refresh is running wait
// for that refresh and share its result. A started refresh runs to
// completion even if ctx is cancelled.
func (c *Cache) RefreshNow(ctx context.Context) error {
	_, err, shared := c.sf.Do("refresh", func() (interface{}, error) {
		snapshot, err := c.builder.Build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		snapshot.Generation = c.generation.Add(1)
		snapshot.RefreshInterval = c.RefreshInterval()
		c.current.Store(snapshot)
		return nil, nil
	})
	if shared {
		log.Debug().Msg("Joined in-flight catalog refresh")
	}
	return err
}

// StartAutoRefresh refreshes the catalog every period until
// StopAutoRefresh. Calling it while the loop runs does nothing.
func (c *Cache) StartAutoRefresh(period time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}

	c.interval.Store(int64(period))
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	done := make(chan struct{})
	c.loopDone = done

	go c.refreshLoop(ctx, period, done)

	log.Info().Dur("period", period).Msg("Catalog auto refresh started")
}

// StopAutoRefresh stops the loop and waits for it to exit. A refresh already
// running is allowed to finish first. Stopping a stopped cache does nothing.
func (c *Cache) StopAutoRefresh() {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.cancel = nil
	done := c.loopDone
	c.mu.Unlock()

	<-done
	log.Info().Msg("Catalog auto refresh stopped")
}

func (c *Cache) refreshLoop(ctx context.Context, period time.Duration, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// cancellation is honoured between refreshes, never during one
		start := time.Now()
		if err := c.RefreshNow(context.Background()); err != nil {
			log.Error().Err(err).Msg("Scheduled catalog refresh failed, keeping previous snapshot")
		} else {
			log.Info().
				Uint64("generation", c.Current().Generation).
				Dur("duration", time.Since(start)).
				Msg("Catalog refreshed")
		}

		timer.Reset(period)
	}
}
