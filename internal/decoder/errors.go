package decoder

import "errors"

// Source error taxonomy. Workers match on these to drive the reconnect
// state machine; none of them ever crosses the manager boundary as an
// error value, only as status.
var (
	// ErrSourceUnreachable means the source could not be opened, or died
	// before producing a single frame.
	ErrSourceUnreachable = errors.New("source unreachable")

	// ErrReadTimeout means no frame arrived within the caller's deadline.
	ErrReadTimeout = errors.New("source read timeout")

	// ErrReadFailure means the source failed mid-stream after having
	// produced at least one frame.
	ErrReadFailure = errors.New("source read failure")
)
