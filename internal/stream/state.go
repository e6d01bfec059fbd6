package stream

import "time"

// Status represents the current state of a stream's connection lifecycle.
type Status string

// Stream states.
const (
	StatusConnecting   Status = "connecting"   // Opening the source, no usable frame yet this session
	StatusConnected    Status = "connected"    // Frames flowing
	StatusReconnecting Status = "reconnecting" // Recent failure, retrying shortly
	StatusError        Status = "error"        // Failing repeatedly, still retrying underneath
	StatusCooldown     Status = "cooldown"     // Retries exhausted, parked for the cooldown wait
	StatusIdle         Status = "idle"         // No recent readers, source released, last frame kept
)

// Snapshot is a read-only view of a worker's state, safe to hand across
// goroutines.
type Snapshot struct {
	Index             int
	Name              string
	Status            Status
	ConsecutiveErrors int
	RetryCount        int
	LastFrameAt       time.Time // zero if no frame was ever decoded
}

// LastFrameAge returns the age of the newest frame, and false if no frame
// was ever decoded.
func (s Snapshot) LastFrameAge(now time.Time) (time.Duration, bool) {
	if s.LastFrameAt.IsZero() {
		return 0, false
	}
	return now.Sub(s.LastFrameAt), true
}
