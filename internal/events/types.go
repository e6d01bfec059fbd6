// Package events provides the in-process event bus connecting stream
// workers to observers (metrics, logging) without coupling the packages.
package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeStreamStateChanged uint32 = iota + 1
	TypeFrameDecoded
	TypeDecodeError
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StreamStateChangedEvent is published on every worker state transition.
type StreamStateChangedEvent struct {
	StreamIndex int       `json:"stream_index"`
	StreamName  string    `json:"stream_name"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	Timestamp   time.Time `json:"timestamp"`
}

// Type returns the event type identifier for StreamStateChangedEvent.
func (e StreamStateChangedEvent) Type() uint32 { return TypeStreamStateChanged }

// FrameDecodedEvent is published for every frame written to the cache.
type FrameDecodedEvent struct {
	StreamIndex int       `json:"stream_index"`
	Bytes       int       `json:"bytes"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Type returns the event type identifier for FrameDecodedEvent.
func (e FrameDecodedEvent) Type() uint32 { return TypeFrameDecoded }

// DecodeErrorEvent is published for every failed open/read/encode attempt.
// Kind is one of: unreachable, timeout, read, encode.
type DecodeErrorEvent struct {
	StreamIndex int       `json:"stream_index"`
	Kind        string    `json:"kind"`
	Error       string    `json:"error"`
	Timestamp   time.Time `json:"timestamp"`
}

// Type returns the event type identifier for DecodeErrorEvent.
func (e DecodeErrorEvent) Type() uint32 { return TypeDecodeError }
