package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/smazurov/rtsp2web/internal/cache"
)

// Reaper periodically pauses connected streams nobody is reading. It only
// ever requests the transition; the worker releases its own handle between
// reads, so the sweep is safe against in-flight decode loops.
type Reaper struct {
	workers     []*Worker
	cache       *cache.Cache
	idleTimeout time.Duration
	interval    time.Duration
	logger      *slog.Logger
}

// NewReaper creates the idle sweep over the given workers.
func NewReaper(workers []*Worker, frameCache *cache.Cache, idleTimeout, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Reaper{
		workers:     workers,
		cache:       frameCache,
		idleTimeout: idleTimeout,
		interval:    interval,
		logger:      logger,
	}
}

// Run sweeps until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	if r.idleTimeout <= 0 {
		return // idling disabled
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reaper) sweep() {
	now := time.Now()
	for i, w := range r.workers {
		if w.Snapshot().Status != StatusConnected {
			continue
		}
		if now.Sub(r.cache.LastRead(i)) > r.idleTimeout {
			r.logger.Info("No recent readers, idling stream", "stream", i)
			w.RequestIdle()
		}
	}
}
