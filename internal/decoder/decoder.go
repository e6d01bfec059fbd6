// Package decoder provides the frame source capability: open an RTSP URL,
// read decoded frames one at a time, close it. The production implementation
// runs one ffmpeg subprocess per open handle; the stream workers only see
// this interface and can be tested against fakes.
package decoder

import "context"

// Handle is one open connection to a source. A Handle is owned by exactly
// one stream worker and is never shared.
type Handle interface {
	// ReadFrame blocks until the next frame is available, the context
	// expires, or the source fails. The returned bytes are owned by the
	// caller.
	ReadFrame(ctx context.Context) ([]byte, error)

	// Close releases the source connection. Safe to call more than once.
	Close() error
}

// Decoder opens source connections.
type Decoder interface {
	Open(ctx context.Context, url string) (Handle, error)
}
