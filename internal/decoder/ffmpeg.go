package decoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/rtsp2web/internal/ffmpeg"
)

const (
	// Scanner sizing: a 1080p JPEG at high quality is well under 1MB;
	// 8MB leaves headroom for oversized sources.
	scanInitialBuf = 64 * 1024
	scanMaxBuf     = 8 * 1024 * 1024

	killTimeout = 5 * time.Second
)

// FFmpegOptions configures frame grabbing for all handles opened by one
// FFmpeg decoder.
type FFmpegOptions struct {
	FPS       int
	MaxWidth  int
	Quality   int
	Transport string
}

// FFmpeg is a Decoder that spawns one ffmpeg subprocess per open handle.
// ffmpeg does the RTSP transport, decode, scale, and JPEG encode; the handle
// splits the resulting MJPEG pipe into frames.
type FFmpeg struct {
	opts   FFmpegOptions
	logger *slog.Logger

	// procLogger receives ffmpeg's own stderr lines (module="ffmpeg").
	procLogger *slog.Logger
}

// NewFFmpeg creates an ffmpeg-backed decoder.
func NewFFmpeg(opts FFmpegOptions, logger, procLogger *slog.Logger) *FFmpeg {
	return &FFmpeg{opts: opts, logger: logger, procLogger: procLogger}
}

// Open spawns the grab subprocess for url. The subprocess connects
// asynchronously; a source that is down surfaces as ErrSourceUnreachable on
// the first ReadFrame.
func (d *FFmpeg) Open(ctx context.Context, url string) (Handle, error) {
	command := ffmpeg.BuildGrabCommand(&ffmpeg.GrabParams{
		URL:       url,
		Transport: d.opts.Transport,
		FPS:       d.opts.FPS,
		MaxWidth:  d.opts.MaxWidth,
		Quality:   d.opts.Quality,
	})

	args, err := ffmpeg.ParseCommand(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSourceUnreachable, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrSourceUnreachable, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	d.logger.Debug("Decoder process started", "pid", cmd.Process.Pid)

	h := &ffmpegHandle{
		cmd:    cmd,
		frames: make(chan []byte, 1),
		done:   make(chan struct{}),
		logger: d.logger,
	}

	go h.scanFrames(stdout)
	go h.logStderr(stderr, d.procLogger)
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	select {
	case <-ctx.Done():
		_ = h.Close()
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, ctx.Err())
	default:
	}

	return h, nil
}

// ffmpegHandle is one live grab subprocess.
type ffmpegHandle struct {
	cmd     *exec.Cmd
	frames  chan []byte
	done    chan struct{} // closed once the subprocess has exited
	waitErr error         // valid after done is closed
	gotAny  bool          // at least one frame ever produced
	logger  *slog.Logger

	closeOnce sync.Once
}

// ReadFrame returns the next frame from the pipe. Frames already buffered
// are served even if the subprocess has since died, so a final frame is
// never lost.
func (h *ffmpegHandle) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-h.frames:
		if !ok {
			return nil, h.exitError()
		}
		h.gotAny = true
		return frame, nil
	default:
	}

	select {
	case frame, ok := <-h.frames:
		if !ok {
			return nil, h.exitError()
		}
		h.gotAny = true
		return frame, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrReadTimeout, ctx.Err())
	case <-h.done:
		// Drain any frame the scanner published before the pipe closed.
		select {
		case frame, ok := <-h.frames:
			if ok {
				h.gotAny = true
				return frame, nil
			}
		default:
		}
		return nil, h.exitError()
	}
}

// exitError maps subprocess death onto the taxonomy: unreachable if the
// source never produced a frame, read failure otherwise.
func (h *ffmpegHandle) exitError() error {
	<-h.done
	if !h.gotAny {
		return fmt.Errorf("%w: ffmpeg exited: %v", ErrSourceUnreachable, h.waitErr)
	}
	return fmt.Errorf("%w: ffmpeg exited: %v", ErrReadFailure, h.waitErr)
}

// Close stops the subprocess: SIGINT first, SIGKILL if it does not exit
// within the kill timeout. Idempotent.
func (h *ffmpegHandle) Close() error {
	h.closeOnce.Do(func() {
		if h.cmd.Process == nil {
			return
		}
		if err := h.cmd.Process.Signal(syscall.SIGINT); err != nil && !isProcessDone(err) {
			h.logger.Warn("Failed to signal decoder process", "error", err)
		}
		select {
		case <-h.done:
		case <-time.After(killTimeout):
			h.logger.Warn("Decoder process did not exit, forcing kill", "pid", h.cmd.Process.Pid)
			if err := h.cmd.Process.Kill(); err != nil && !isProcessDone(err) {
				h.logger.Error("Failed to kill decoder process", "error", err)
			}
			<-h.done
		}
	})
	return nil
}

// scanFrames splits the MJPEG pipe into frames. Only the freshest frame is
// kept: if the consumer is slower than the source, older frames are dropped
// rather than backing up the pipe.
func (h *ffmpegHandle) scanFrames(r io.Reader) {
	defer close(h.frames)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scanInitialBuf), scanMaxBuf)
	scanner.Split(splitJPEG)

	for scanner.Scan() {
		frame := append([]byte(nil), scanner.Bytes()...)
		for {
			select {
			case h.frames <- frame:
			default:
				// Channel full: discard the stale frame and retry.
				select {
				case <-h.frames:
				default:
				}
				continue
			}
			break
		}
	}

	if err := scanner.Err(); err != nil {
		h.logger.Debug("Frame scanner stopped", "error", err)
	}
}

// logStderr re-emits ffmpeg's stderr through the logging system at the
// level ffmpeg tagged each line with.
func (h *ffmpegHandle) logStderr(r io.Reader, logger *slog.Logger) {
	if logger == nil {
		logger = h.logger
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		level, msg := ffmpeg.ParseLogLevel(scanner.Text())
		switch level {
		case "fatal", "error", "panic":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "debug", "verbose", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}
}

func isProcessDone(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
