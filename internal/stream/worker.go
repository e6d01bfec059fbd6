package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/rtsp2web/internal/cache"
	"github.com/smazurov/rtsp2web/internal/config"
	"github.com/smazurov/rtsp2web/internal/decoder"
	"github.com/smazurov/rtsp2web/internal/events"
)

// Options holds the retry and pacing policy shared by all workers.
type Options struct {
	FPS              int
	MaxRetries       int           // retry attempts before entering cooldown
	RetryInterval    time.Duration // wait between retries
	ReconnectTimeout time.Duration // per-read deadline; a hung source fails after this
	CooldownInterval time.Duration // wait before retrying after exhausting retries
	ErrorThreshold   int           // consecutive errors before status reports "error"
	IdleTimeout      time.Duration // no reads for this long pauses the stream
	SweepInterval    time.Duration // reaper period
}

// Encoder transforms a raw decoded frame into the bytes served to clients.
// Returning an error counts as a read failure for retry purposes.
type Encoder func(raw []byte) ([]byte, error)

// EncodeJPEG is the default encoder. Sizing and quality are applied at the
// decoder, so the transform here is a structural check that the frame is a
// complete JPEG before it is published.
func EncodeJPEG(raw []byte) ([]byte, error) {
	if !decoder.ValidJPEG(raw) {
		return nil, fmt.Errorf("%w: not a complete JPEG (%d bytes)", ErrEncodeFailure, len(raw))
	}
	return raw, nil
}

// Worker owns one stream: its decoder handle, its state machine, and its
// cache slot. Exactly one worker exists per configured source and nothing
// else writes its slot.
type Worker struct {
	index  int
	spec   config.StreamSpec
	opts   Options
	dec    decoder.Decoder
	encode Encoder
	cache  *cache.Cache
	bus    *events.Bus
	logger *slog.Logger

	mu                sync.Mutex
	status            Status
	consecutiveErrors int
	retryCount        int
	lastFrameAt       time.Time

	idleReq atomic.Bool
	wake    chan struct{}
}

// NewWorker creates the worker for one configured stream.
func NewWorker(
	index int,
	spec config.StreamSpec,
	opts Options,
	dec decoder.Decoder,
	enc Encoder,
	frameCache *cache.Cache,
	bus *events.Bus,
	logger *slog.Logger,
) *Worker {
	if enc == nil {
		enc = EncodeJPEG
	}
	return &Worker{
		index:  index,
		spec:   spec,
		opts:   opts,
		dec:    dec,
		encode: enc,
		cache:  frameCache,
		bus:    bus,
		logger: logger.With("stream", index, "name", spec.Name),
		status: StatusConnecting,
		wake:   make(chan struct{}, 1),
	}
}

// Snapshot returns a consistent copy of the worker's state.
func (w *Worker) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		Index:             w.index,
		Name:              w.spec.Name,
		Status:            w.status,
		ConsecutiveErrors: w.consecutiveErrors,
		RetryCount:        w.retryCount,
		LastFrameAt:       w.lastFrameAt,
	}
}

// RequestIdle asks the worker to release its source after the in-flight
// read finishes. Only honored while connected; a worker already failing or
// idle ignores it.
func (w *Worker) RequestIdle() {
	w.mu.Lock()
	connected := w.status == StatusConnected
	w.mu.Unlock()
	if connected {
		w.idleReq.Store(true)
	}
}

// Resume wakes an idle worker. Idempotent: resuming an active worker is a
// no-op and never opens a second decoder handle.
func (w *Worker) Resume() {
	w.mu.Lock()
	idle := w.status == StatusIdle
	w.mu.Unlock()
	if !idle {
		return
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run drives the connection lifecycle until ctx is cancelled. All source
// errors are absorbed here; Run never returns one.
func (w *Worker) Run(ctx context.Context) {
	for ctx.Err() == nil {
		w.setStatus(StatusConnecting)

		handle, err := w.dec.Open(ctx, w.spec.URL)
		if err != nil {
			if !w.backoff(ctx, err) {
				return
			}
			continue
		}

		err = w.serve(ctx, handle)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errWentIdle) {
			// Parked and woken; reconnect immediately.
			continue
		}
		if !w.backoff(ctx, err) {
			return
		}
	}
}

// errWentIdle signals a session that ended by idling out rather than
// failing.
var errWentIdle = errors.New("stream went idle")

// serve runs one connected session: read, encode, publish, repeat, paced to
// the configured fps. Returns the failure that ended the session, or
// errWentIdle.
func (w *Worker) serve(ctx context.Context, handle decoder.Handle) error {
	defer func() {
		if err := handle.Close(); err != nil {
			w.logger.Warn("Failed to close decoder handle", "error", err)
		}
	}()

	period := time.Second
	if w.opts.FPS > 0 {
		period = time.Second / time.Duration(w.opts.FPS)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if w.idleReq.CompareAndSwap(true, false) {
			return w.park(ctx, handle)
		}

		readCtx, cancel := context.WithTimeout(ctx, w.opts.ReconnectTimeout)
		raw, err := handle.ReadFrame(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		encoded, err := w.encode(raw)
		if err != nil {
			return err
		}

		now := time.Now()
		w.cache.Write(w.index, &cache.Frame{Bytes: encoded, CapturedAt: now})
		w.markSuccess(now)
		w.bus.Publish(events.FrameDecodedEvent{
			StreamIndex: w.index,
			Bytes:       len(encoded),
			CapturedAt:  now,
		})

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// park releases the source and blocks until a reader resumes the stream or
// the process shuts down. The cached frame stays servable throughout.
func (w *Worker) park(ctx context.Context, handle decoder.Handle) error {
	if err := handle.Close(); err != nil {
		w.logger.Warn("Failed to close decoder handle", "error", err)
	}
	w.setStatus(StatusIdle)
	w.logger.Info("Stream idle, source released")

	select {
	case <-w.wake:
		w.logger.Info("Stream resumed by read request")
		return errWentIdle
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backoff records a failure, publishes it, and waits out the retry or
// cooldown interval. Returns false if ctx was cancelled during the wait.
func (w *Worker) backoff(ctx context.Context, cause error) bool {
	// An idle request aimed at the session that just failed must not park
	// the next one before it decodes a frame.
	w.idleReq.Store(false)

	kind := classify(cause)
	w.bus.Publish(events.DecodeErrorEvent{
		StreamIndex: w.index,
		Kind:        kind,
		Error:       cause.Error(),
		Timestamp:   time.Now(),
	})

	w.mu.Lock()
	w.consecutiveErrors++
	w.retryCount++
	cooldown := w.retryCount > w.opts.MaxRetries
	errCount := w.consecutiveErrors
	w.mu.Unlock()

	var next Status
	var wait time.Duration
	switch {
	case cooldown:
		next = StatusCooldown
		wait = w.opts.CooldownInterval
	case errCount >= w.opts.ErrorThreshold:
		next = StatusError
		wait = w.opts.RetryInterval
	default:
		next = StatusReconnecting
		wait = w.opts.RetryInterval
	}
	w.setStatus(next)

	w.logger.Warn("Stream attempt failed",
		"kind", kind, "error", cause, "errors", errCount, "next", string(next), "wait", wait)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return false
	}

	if cooldown {
		// Cooldown always re-attempts from a clean retry counter.
		w.mu.Lock()
		w.retryCount = 0
		w.mu.Unlock()
	}
	return true
}

// markSuccess resets the error accounting after a published frame.
func (w *Worker) markSuccess(at time.Time) {
	w.mu.Lock()
	w.consecutiveErrors = 0
	w.retryCount = 0
	w.lastFrameAt = at
	changed := w.status != StatusConnected
	old := w.status
	w.status = StatusConnected
	w.mu.Unlock()

	if changed {
		w.publishTransition(old, StatusConnected)
		w.logger.Info("Stream connected")
	}
}

// setStatus transitions the state machine and publishes the change.
func (w *Worker) setStatus(next Status) {
	w.mu.Lock()
	old := w.status
	w.status = next
	w.mu.Unlock()

	if old != next {
		w.publishTransition(old, next)
	}
}

func (w *Worker) publishTransition(old, next Status) {
	w.bus.Publish(events.StreamStateChangedEvent{
		StreamIndex: w.index,
		StreamName:  w.spec.Name,
		OldStatus:   string(old),
		NewStatus:   string(next),
		Timestamp:   time.Now(),
	})
}

// classify maps a failure onto the error taxonomy for events and metrics.
func classify(err error) string {
	switch {
	case errors.Is(err, decoder.ErrSourceUnreachable):
		return "unreachable"
	case errors.Is(err, decoder.ErrReadTimeout):
		return "timeout"
	case errors.Is(err, ErrEncodeFailure):
		return "encode"
	default:
		return "read"
	}
}
