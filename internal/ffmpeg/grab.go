// Package ffmpeg builds the ffmpeg command lines used to pull frames out of
// RTSP sources and parses ffmpeg's stderr output back into log levels.
package ffmpeg

import (
	"fmt"
	"strings"
)

// GrabParams represents all parameters needed to generate the frame-grab
// command for one RTSP source.
type GrabParams struct {
	// Input configuration
	URL       string // rtsp://...
	Transport string // tcp (default), udp

	// Output pacing and sizing
	FPS      int // frames per second emitted on the pipe
	MaxWidth int // frames wider than this are scaled down (0 = no scaling)

	// JPEG quality, 1-100 (as exposed to operators; mapped to ffmpeg's
	// 2-31 qscale internally where 2 is best)
	Quality int
}

// FFmpegBase returns the ffmpeg command with standard flags.
// Level-prefixed stderr ("-loglevel level+warning") lets the log parser
// recover per-line severity.
func FFmpegBase() string {
	return "ffmpeg -hide_banner -nostats -loglevel level+warning"
}

// BuildGrabCommand builds the command that connects to an RTSP source and
// emits an MJPEG stream on stdout, one JPEG per frame, paced to FPS.
func BuildGrabCommand(p *GrabParams) string {
	var cmd strings.Builder

	cmd.WriteString(FFmpegBase())

	transport := p.Transport
	if transport == "" {
		transport = "tcp"
	}
	cmd.WriteString(" -rtsp_transport " + transport)

	// Bound the initial connect/probe so a dead source fails fast instead
	// of blocking in ffmpeg's demuxer.
	cmd.WriteString(" -timeout 5000000")

	cmd.WriteString(fmt.Sprintf(" -i %q", p.URL))

	var filters []string
	if p.FPS > 0 {
		filters = append(filters, fmt.Sprintf("fps=%d", p.FPS))
	}
	if p.MaxWidth > 0 {
		// -2 keeps the height even, required by most pixel formats.
		filters = append(filters, fmt.Sprintf("scale='min(%d,iw)':-2", p.MaxWidth))
	}
	if len(filters) > 0 {
		cmd.WriteString(" -vf " + strings.Join(filters, ","))
	}

	cmd.WriteString(fmt.Sprintf(" -q:v %d", qualityToQScale(p.Quality)))
	cmd.WriteString(" -f image2pipe -c:v mjpeg pipe:1")

	return cmd.String()
}

// BuildSnapshotCommand builds the command that grabs exactly one frame from
// an RTSP source and writes it to outputPath as a JPEG.
func BuildSnapshotCommand(p *GrabParams, outputPath string) string {
	var cmd strings.Builder

	cmd.WriteString(FFmpegBase())

	transport := p.Transport
	if transport == "" {
		transport = "tcp"
	}
	cmd.WriteString(" -rtsp_transport " + transport)
	cmd.WriteString(" -timeout 5000000")
	cmd.WriteString(fmt.Sprintf(" -i %q", p.URL))

	if p.MaxWidth > 0 {
		cmd.WriteString(fmt.Sprintf(" -vf scale='min(%d,iw)':-2", p.MaxWidth))
	}

	cmd.WriteString(fmt.Sprintf(" -frames:v 1 -q:v %d", qualityToQScale(p.Quality)))
	cmd.WriteString(fmt.Sprintf(" -y %q", outputPath))

	return cmd.String()
}

// qualityToQScale maps a 1-100 quality (100 = best) onto ffmpeg's MJPEG
// qscale range 2-31 (2 = best).
func qualityToQScale(quality int) int {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	q := 2 + (100-quality)*29/99
	if q < 2 {
		q = 2
	}
	if q > 31 {
		q = 31
	}
	return q
}
