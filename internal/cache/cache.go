// Package cache holds the freshest successfully decoded frame per stream.
//
// Each stream owns exactly one slot. The owning worker is the only writer;
// HTTP handlers are the readers. Frames are published by pointer swap so a
// reader can never observe a partially written frame, and reads never block
// on the decode loop.
package cache

import (
	"sync/atomic"
	"time"
)

// Frame is one encoded image together with its capture time.
// A Frame is immutable once published to the cache.
type Frame struct {
	Bytes      []byte
	CapturedAt time.Time
}

// slot is the per-stream storage: the frame pointer plus the last-read
// timestamp (unix nanos) used by the idle reaper.
type slot struct {
	frame    atomic.Pointer[Frame]
	lastRead atomic.Int64
}

// Cache stores one Frame slot per configured stream.
// The slot count is fixed at construction; callers index by stream index.
type Cache struct {
	slots []slot
}

// New creates a cache with n slots, one per configured stream.
func New(n int) *Cache {
	c := &Cache{slots: make([]slot, n)}
	now := time.Now().UnixNano()
	for i := range c.slots {
		// Streams start "recently read" so the reaper does not idle
		// them before the first client ever polls.
		c.slots[i].lastRead.Store(now)
	}
	return c
}

// Len returns the number of slots.
func (c *Cache) Len() int {
	return len(c.slots)
}

// Write publishes a new frame for the stream. Only the stream's owning
// worker may call Write for a given index.
func (c *Cache) Write(index int, f *Frame) {
	c.slots[index].frame.Store(f)
}

// Read returns the current frame for the stream, or nil if no frame has
// ever been produced. It also records the access for idle tracking.
func (c *Cache) Read(index int) *Frame {
	c.Touch(index)
	return c.slots[index].frame.Load()
}

// Peek returns the current frame without recording an access.
// Used by status reporting, which must not keep a stream awake.
func (c *Cache) Peek(index int) *Frame {
	return c.slots[index].frame.Load()
}

// Touch records a read access for the stream.
func (c *Cache) Touch(index int) {
	c.slots[index].lastRead.Store(time.Now().UnixNano())
}

// LastRead returns the time of the most recent access for the stream.
func (c *Cache) LastRead(index int) time.Time {
	return time.Unix(0, c.slots[index].lastRead.Load())
}
