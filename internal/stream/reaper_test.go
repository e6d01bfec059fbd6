package stream

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/smazurov/rtsp2web/internal/config"
	"github.com/smazurov/rtsp2web/internal/events"
)

func TestStreamIdlesWithoutReadersAndResumesOnRead(t *testing.T) {
	dec := newFakeDecoder()
	dec.script("rtsp://cam0", 0)

	opts := testPolicy()
	opts.IdleTimeout = 50 * time.Millisecond
	opts.SweepInterval = 10 * time.Millisecond

	m := NewManager(
		[]config.StreamSpec{{URL: "rtsp://cam0", Name: "cam0"}},
		opts, dec, nil, events.New(), slog.Default(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer func() { _ = m.Shutdown(context.Background()) }()

	waitFor(t, 2*time.Second, func() bool {
		s, _ := m.GetStatus(0)
		return s.Status == StatusConnected
	}, "stream to connect")

	// Nobody polls: the reaper must park the stream and the decoder
	// handle must be released, but the last frame stays servable.
	waitFor(t, 2*time.Second, func() bool {
		s, _ := m.GetStatus(0)
		return s.Status == StatusIdle
	}, "stream to idle out")

	if n := dec.active.Load(); n != 0 {
		t.Errorf("Expected decoder handle released while idle, %d open", n)
	}

	opensBefore := dec.openCount("rtsp://cam0")

	// A single read resumes the stream.
	frame, _, err := m.GetFrame(0)
	if err != nil {
		t.Fatalf("GetFrame failed: %v", err)
	}
	if frame == nil {
		t.Error("Expected last cached frame to remain servable while idle")
	}

	waitFor(t, 2*time.Second, func() bool {
		s, _ := m.GetStatus(0)
		return s.Status == StatusConnected
	}, "stream to resume after read")

	if got := dec.openCount("rtsp://cam0"); got != opensBefore+1 {
		t.Errorf("Expected exactly one reopen after resume, got %d", got-opensBefore)
	}
	if max := dec.maxActive.Load(); max > 1 {
		t.Errorf("Expected at most one live handle for the stream, saw %d", max)
	}
}

func TestResumeIsIdempotent(t *testing.T) {
	dec := newFakeDecoder()
	dec.script("rtsp://cam0", 0)

	opts := testPolicy()
	opts.IdleTimeout = 0 // reaper disabled; drive idle directly

	w, _, _ := newTestWorker(t, dec, opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	waitFor(t, time.Second, func() bool {
		return w.Snapshot().Status == StatusConnected
	}, "worker to connect")

	// Resuming an active worker is a no-op.
	before := dec.openCount("rtsp://cam0")
	w.Resume()
	w.Resume()
	time.Sleep(50 * time.Millisecond)
	if got := dec.openCount("rtsp://cam0"); got != before {
		t.Errorf("Resume on active worker reopened the source: %d -> %d opens", before, got)
	}

	w.RequestIdle()
	waitFor(t, time.Second, func() bool {
		return w.Snapshot().Status == StatusIdle
	}, "worker to idle")

	// Multiple resumes while idle open exactly one new handle.
	w.Resume()
	w.Resume()
	w.Resume()

	waitFor(t, time.Second, func() bool {
		return w.Snapshot().Status == StatusConnected
	}, "worker to resume")

	time.Sleep(50 * time.Millisecond)
	if max := dec.maxActive.Load(); max > 1 {
		t.Errorf("Expected at most one live handle, saw %d", max)
	}
}

func TestReaperIgnoresUnconnectedStreams(t *testing.T) {
	dec := newFakeDecoder()
	dec.script("rtsp://cam0", alwaysFail)

	opts := testPolicy()
	opts.IdleTimeout = 20 * time.Millisecond
	opts.SweepInterval = 5 * time.Millisecond

	m := NewManager(
		[]config.StreamSpec{{URL: "rtsp://cam0", Name: "cam0"}},
		opts, dec, nil, events.New(), slog.Default(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer func() { _ = m.Shutdown(context.Background()) }()

	// A stream that never connected must keep retrying, not idle out.
	time.Sleep(100 * time.Millisecond)
	s, _ := m.GetStatus(0)
	if s.Status == StatusIdle {
		t.Error("Reaper idled a stream that was never connected")
	}
}
