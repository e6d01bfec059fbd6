package decoder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestHandle() *ffmpegHandle {
	return &ffmpegHandle{
		frames: make(chan []byte, 1),
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
}

func TestReadFrameKeepsLatest(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(jpeg([]byte{0x01}))
	stream.Write(jpeg([]byte{0x02}))
	last := jpeg([]byte{0x03})
	stream.Write(last)

	h := newTestHandle()
	go h.scanFrames(bytes.NewReader(stream.Bytes()))

	// Let the scanner consume the whole in-memory stream; with a slow
	// consumer only the freshest frame should survive.
	time.Sleep(50 * time.Millisecond)

	frame, err := h.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(frame, last) {
		t.Errorf("Expected freshest frame %v, got %v", last, frame)
	}
}

func TestReadFrameTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	h := newTestHandle()
	go h.scanFrames(pr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.ReadFrame(ctx)
	if !errors.Is(err, ErrReadTimeout) {
		t.Errorf("Expected ErrReadTimeout, got %v", err)
	}
}

func TestReadFrameUnreachableWhenNoFrameEverProduced(t *testing.T) {
	h := newTestHandle()
	go h.scanFrames(bytes.NewReader(nil)) // immediate EOF, no frames
	close(h.done)

	_, err := h.ReadFrame(context.Background())
	if !errors.Is(err, ErrSourceUnreachable) {
		t.Errorf("Expected ErrSourceUnreachable, got %v", err)
	}
}

func TestReadFrameFailureAfterFrames(t *testing.T) {
	h := newTestHandle()
	go h.scanFrames(bytes.NewReader(jpeg([]byte{0x01})))

	if _, err := h.ReadFrame(context.Background()); err != nil {
		t.Fatalf("First ReadFrame failed: %v", err)
	}

	close(h.done)

	_, err := h.ReadFrame(context.Background())
	if !errors.Is(err, ErrReadFailure) {
		t.Errorf("Expected ErrReadFailure after mid-stream death, got %v", err)
	}
}
