package stream

import "errors"

var (
	// ErrInvalidIndex is returned for stream indexes outside the
	// configured range. This is the only stream error that reaches
	// HTTP clients as an error rather than as status data.
	ErrInvalidIndex = errors.New("invalid stream index")

	// ErrEncodeFailure means a decoded frame could not be transformed
	// into the output format. Treated like a read failure for retry
	// accounting.
	ErrEncodeFailure = errors.New("frame encode failure")
)
