// Package stream contains the connection lifecycle core: one worker per
// configured source running a reconnect state machine, a reaper that idles
// unread streams, and the manager façade the HTTP layer talks to.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/rtsp2web/internal/cache"
	"github.com/smazurov/rtsp2web/internal/config"
	"github.com/smazurov/rtsp2web/internal/decoder"
	"github.com/smazurov/rtsp2web/internal/events"
)

// Info identifies one configured stream.
type Info struct {
	Index int
	Name  string
}

// Manager owns the workers, the frame cache, and the reaper. The stream set
// is fixed at construction for the life of the process.
type Manager struct {
	specs   []config.StreamSpec
	opts    Options
	workers []*Worker
	cache   *cache.Cache
	reaper  *Reaper
	logger  *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewManager builds the per-stream workers for the configured sources.
// enc may be nil to use the default JPEG encoder.
func NewManager(
	specs []config.StreamSpec,
	opts Options,
	dec decoder.Decoder,
	enc Encoder,
	bus *events.Bus,
	logger *slog.Logger,
) *Manager {
	frameCache := cache.New(len(specs))

	workers := make([]*Worker, len(specs))
	for i, spec := range specs {
		workers[i] = NewWorker(i, spec, opts, dec, enc, frameCache, bus, logger)
	}

	return &Manager{
		specs:   specs,
		opts:    opts,
		workers: workers,
		cache:   frameCache,
		reaper:  NewReaper(workers, frameCache, opts.IdleTimeout, opts.SweepInterval, logger),
		logger:  logger,
	}
}

// Start launches one goroutine per worker plus the reaper. Idempotent.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for _, w := range m.workers {
		m.wg.Add(1)
		go func(w *Worker) {
			defer m.wg.Done()
			w.Run(runCtx)
		}(w)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.reaper.Run(runCtx)
	}()

	m.logger.Info("Stream manager started", "streams", len(m.workers))
}

// ListStreams returns the configured streams in index order.
func (m *Manager) ListStreams() []Info {
	infos := make([]Info, len(m.specs))
	for i, spec := range m.specs {
		infos[i] = Info{Index: i, Name: spec.Name}
	}
	return infos
}

// GetFrame returns the freshest cached frame and the stream's state. The
// frame is nil if the stream has not produced one yet. Reading marks the
// stream as accessed and resumes it if it was idled.
func (m *Manager) GetFrame(index int) (*cache.Frame, Snapshot, error) {
	if err := m.checkIndex(index); err != nil {
		return nil, Snapshot{}, err
	}

	frame := m.cache.Read(index)
	m.workers[index].Resume()

	return frame, m.workers[index].Snapshot(), nil
}

// GetStatus returns the state snapshot for one stream without marking it
// as accessed.
func (m *Manager) GetStatus(index int) (Snapshot, error) {
	if err := m.checkIndex(index); err != nil {
		return Snapshot{}, err
	}
	return m.workers[index].Snapshot(), nil
}

// Statuses returns snapshots for all streams in index order.
func (m *Manager) Statuses() []Snapshot {
	snaps := make([]Snapshot, len(m.workers))
	for i, w := range m.workers {
		snaps[i] = w.Snapshot()
	}
	return snaps
}

// Shutdown stops all workers and waits for decoder handles to be released,
// bounded by ctx. One stuck stream cannot block the others from stopping,
// only the final wait.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.started || m.cancel == nil {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	m.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Stream manager stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown grace period expired: %w", ctx.Err())
	}
}

func (m *Manager) checkIndex(index int) error {
	if index < 0 || index >= len(m.workers) {
		return fmt.Errorf("%w: %d (have %d streams)", ErrInvalidIndex, index, len(m.workers))
	}
	return nil
}
