package logging

import (
	"sync"
	"time"
)

// LogEntry is a single log record kept in the ring buffer.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer is a thread-safe circular buffer for log entries.
type RingBuffer struct {
	entries []LogEntry
	size    int
	head    int
	count   int
	mu      sync.RWMutex
}

// NewRingBuffer creates a ring buffer holding at most size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		entries: make([]LogEntry, size),
		size:    size,
	}
}

// Write adds an entry, overwriting the oldest one when full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.head] = entry
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}
}

// ReadAll returns all entries in chronological order.
func (rb *RingBuffer) ReadAll() []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.snapshot(rb.count)
}

// Last returns the newest n entries in chronological order. It returns
// everything when n exceeds the buffered count or is not positive.
func (rb *RingBuffer) Last(n int) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || n > rb.count {
		n = rb.count
	}
	return rb.snapshot(n)
}

// snapshot copies the newest n entries. Caller holds the lock.
func (rb *RingBuffer) snapshot(n int) []LogEntry {
	if n == 0 {
		return nil
	}

	result := make([]LogEntry, n)
	start := rb.head - n
	if rb.count < rb.size {
		// Buffer not full yet, oldest entry is at 0.
		start = rb.count - n
	}
	for i := range result {
		result[i] = rb.entries[((start+i)%rb.size+rb.size)%rb.size]
	}
	return result
}

// Count returns the number of buffered entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}
