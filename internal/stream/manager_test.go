package stream

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/smazurov/rtsp2web/internal/config"
	"github.com/smazurov/rtsp2web/internal/events"
)

func newTestManager(t *testing.T, dec *fakeDecoder, opts Options, specs ...config.StreamSpec) *Manager {
	t.Helper()
	return NewManager(specs, opts, dec, nil, events.New(), slog.Default())
}

func TestManagerListStreams(t *testing.T) {
	dec := newFakeDecoder()
	m := newTestManager(t, dec, testPolicy(),
		config.StreamSpec{URL: "rtsp://cam0", Name: "Front door"},
		config.StreamSpec{URL: "rtsp://cam1", Name: "Backyard"},
	)

	infos := m.ListStreams()
	if len(infos) != 2 {
		t.Fatalf("Expected 2 streams, got %d", len(infos))
	}
	if infos[0].Index != 0 || infos[0].Name != "Front door" {
		t.Errorf("Unexpected stream 0: %+v", infos[0])
	}
	if infos[1].Index != 1 || infos[1].Name != "Backyard" {
		t.Errorf("Unexpected stream 1: %+v", infos[1])
	}
}

func TestManagerInvalidIndex(t *testing.T) {
	dec := newFakeDecoder()
	m := newTestManager(t, dec, testPolicy(),
		config.StreamSpec{URL: "rtsp://cam0", Name: "cam0"},
	)

	for _, index := range []int{-1, 1, 99} {
		if _, _, err := m.GetFrame(index); !errors.Is(err, ErrInvalidIndex) {
			t.Errorf("GetFrame(%d): expected ErrInvalidIndex, got %v", index, err)
		}
		if _, err := m.GetStatus(index); !errors.Is(err, ErrInvalidIndex) {
			t.Errorf("GetStatus(%d): expected ErrInvalidIndex, got %v", index, err)
		}
	}
}

func TestManagerOneFailingStreamDoesNotAffectOthers(t *testing.T) {
	// Scenario: stream 0 always succeeds, stream 1 always fails. Stream 0
	// must connect while stream 1 walks connecting -> reconnecting ->
	// cooldown on its own.
	dec := newFakeDecoder()
	dec.script("rtsp://cam0", 0)
	dec.script("rtsp://cam1", alwaysFail)

	m := newTestManager(t, dec, testPolicy(),
		config.StreamSpec{URL: "rtsp://cam0", Name: "cam0"},
		config.StreamSpec{URL: "rtsp://cam1", Name: "cam1"},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer func() { _ = m.Shutdown(context.Background()) }()

	waitFor(t, 2*time.Second, func() bool {
		s0, _ := m.GetStatus(0)
		return s0.Status == StatusConnected
	}, "healthy stream to connect")

	waitFor(t, 2*time.Second, func() bool {
		s1, _ := m.GetStatus(1)
		return s1.Status == StatusCooldown
	}, "failing stream to reach cooldown")

	// The failing neighbor must not have knocked stream 0 over.
	s0, _ := m.GetStatus(0)
	if s0.Status != StatusConnected {
		t.Errorf("Expected stream 0 to stay connected, got %s", s0.Status)
	}

	frame, snap, err := m.GetFrame(0)
	if err != nil {
		t.Fatalf("GetFrame(0) failed: %v", err)
	}
	if frame == nil {
		t.Fatal("Expected frame from connected stream")
	}
	if snap.Status != StatusConnected {
		t.Errorf("Expected connected snapshot, got %s", snap.Status)
	}

	// The failing stream reports status, never an error.
	frame1, snap1, err := m.GetFrame(1)
	if err != nil {
		t.Fatalf("GetFrame(1) must not fail for an unhealthy stream: %v", err)
	}
	if frame1 != nil {
		t.Error("Expected no frame from never-connected stream")
	}
	if snap1.Status == StatusConnected {
		t.Error("Failing stream must not report connected")
	}
}

func TestManagerGetFrameBeforeFirstFrame(t *testing.T) {
	dec := newFakeDecoder()
	dec.script("rtsp://cam0", alwaysFail)

	m := newTestManager(t, dec, testPolicy(),
		config.StreamSpec{URL: "rtsp://cam0", Name: "cam0"},
	)

	// Not started: worker still in its initial state.
	frame, snap, err := m.GetFrame(0)
	if err != nil {
		t.Fatalf("GetFrame failed: %v", err)
	}
	if frame != nil {
		t.Error("Expected absent frame before first decode")
	}
	if snap.Status != StatusConnecting {
		t.Errorf("Expected connecting status before first decode, got %s", snap.Status)
	}
}

func TestManagerShutdownReleasesAllHandles(t *testing.T) {
	dec := newFakeDecoder()
	dec.script("rtsp://cam0", 0)
	dec.script("rtsp://cam1", 0)

	m := newTestManager(t, dec, testPolicy(),
		config.StreamSpec{URL: "rtsp://cam0", Name: "cam0"},
		config.StreamSpec{URL: "rtsp://cam1", Name: "cam1"},
	)

	ctx := context.Background()
	m.Start(ctx)

	waitFor(t, 2*time.Second, func() bool {
		for _, s := range m.Statuses() {
			if s.Status != StatusConnected {
				return false
			}
		}
		return true
	}, "all streams to connect")

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if n := dec.active.Load(); n != 0 {
		t.Errorf("Expected all decoder handles released after shutdown, %d still open", n)
	}

	// Second shutdown is a no-op.
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Repeated shutdown should be a no-op, got %v", err)
	}
}

func TestManagerStatusesOrdered(t *testing.T) {
	dec := newFakeDecoder()
	m := newTestManager(t, dec, testPolicy(),
		config.StreamSpec{URL: "rtsp://cam0", Name: "a"},
		config.StreamSpec{URL: "rtsp://cam1", Name: "b"},
		config.StreamSpec{URL: "rtsp://cam2", Name: "c"},
	)

	snaps := m.Statuses()
	if len(snaps) != 3 {
		t.Fatalf("Expected 3 snapshots, got %d", len(snaps))
	}
	for i, want := range []string{"a", "b", "c"} {
		if snaps[i].Index != i || snaps[i].Name != want {
			t.Errorf("Snapshot %d: got index %d name %q", i, snaps[i].Index, snaps[i].Name)
		}
	}
}
