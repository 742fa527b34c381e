// Package storagetest provides storage helpers for tests.
package storagetest

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"smart-cookbook/internal/storage"
)

// CountingBackend is an in-memory backend that counts writes per key.
type CountingBackend struct {
	*storage.MemoryBackend

	mu     sync.Mutex
	writes map[string]int
}

// NewCountingBackend creates an empty CountingBackend.
func NewCountingBackend() *CountingBackend {
	return &CountingBackend{
		MemoryBackend: storage.NewMemoryBackend(),
		writes:        make(map[string]int),
	}
}

// Set stores value and records the write.
func (c *CountingBackend) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.writes[key]++
	c.mu.Unlock()
	return c.MemoryBackend.Set(ctx, key, value)
}

// Writes returns how many times key was written.
func (c *CountingBackend) Writes(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[key]
}

// TotalWrites returns the number of writes across all keys.
func (c *CountingBackend) TotalWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.writes {
		n += w
	}
	return n
}

// NewGateway returns a gateway over a fresh CountingBackend with a discarded
// logger.
func NewGateway() (*storage.Gateway, *CountingBackend) {
	b := NewCountingBackend()
	return storage.NewGateway(b, storage.WithLogger(DiscardLogger())), b
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// BufferLogger returns a debug-level text logger writing into the returned
// buffer.
func BufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// Clock is a manually advanced clock.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a clock stopped at t.
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock by d, which may be negative.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
