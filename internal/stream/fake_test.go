package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/rtsp2web/internal/decoder"
)

// testFrame is a minimal valid JPEG.
var testFrame = []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0xFF, 0xD9}

// alwaysFail marks a source that never opens.
const alwaysFail = -1

// fakeSource scripts one URL's behavior.
type fakeSource struct {
	failOpens int // fail this many opens before succeeding; alwaysFail = never succeed
	frame     []byte
}

// fakeDecoder is a scriptable Decoder keyed by URL. It tracks open handle
// counts so tests can assert handles are released and never duplicated.
type fakeDecoder struct {
	mu      sync.Mutex
	sources map[string]*fakeSource
	opens   map[string]int

	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{
		sources: make(map[string]*fakeSource),
		opens:   make(map[string]int),
	}
}

func (d *fakeDecoder) script(url string, failOpens int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[url] = &fakeSource{failOpens: failOpens, frame: testFrame}
}

func (d *fakeDecoder) openCount(url string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens[url]
}

func (d *fakeDecoder) Open(_ context.Context, url string) (decoder.Handle, error) {
	d.mu.Lock()
	src, ok := d.sources[url]
	d.opens[url]++
	count := d.opens[url]
	d.mu.Unlock()

	if !ok || src.failOpens == alwaysFail || count <= src.failOpens {
		return nil, decoder.ErrSourceUnreachable
	}

	n := d.active.Add(1)
	for {
		max := d.maxActive.Load()
		if n <= max || d.maxActive.CompareAndSwap(max, n) {
			break
		}
	}

	return &fakeHandle{dec: d, frame: src.frame}, nil
}

type fakeHandle struct {
	dec    *fakeDecoder
	frame  []byte
	closed atomic.Bool
}

func (h *fakeHandle) ReadFrame(ctx context.Context) ([]byte, error) {
	if h.closed.Load() {
		return nil, decoder.ErrReadFailure
	}
	select {
	case <-ctx.Done():
		return nil, decoder.ErrReadTimeout
	default:
	}
	return append([]byte(nil), h.frame...), nil
}

func (h *fakeHandle) Close() error {
	if h.closed.CompareAndSwap(false, true) {
		h.dec.active.Add(-1)
	}
	return nil
}

// testPolicy returns fast timings so lifecycle tests finish in milliseconds.
func testPolicy() Options {
	return Options{
		FPS:              100,
		MaxRetries:       3,
		RetryInterval:    10 * time.Millisecond,
		ReconnectTimeout: 100 * time.Millisecond,
		CooldownInterval: 50 * time.Millisecond,
		ErrorThreshold:   3,
		SweepInterval:    10 * time.Millisecond,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}
