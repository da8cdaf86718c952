// Package logbuf keeps the most recent log entries in memory so the ops
// server can serve them without touching process stdout.
package logbuf

import (
	"log/slog"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Buffer is a fixed-capacity ring of log entries.
type Buffer struct {
	mu    sync.Mutex
	ring  []Entry
	head  int // next write position
	count int
}

// New creates a buffer holding up to capacity entries.
func New(capacity int) *Buffer {
	return &Buffer{ring: make([]Entry, capacity)}
}

// Add appends an entry, evicting the oldest when full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	b.ring[b.head] = e
	b.head = (b.head + 1) % len(b.ring)
	if b.count < len(b.ring) {
		b.count++
	}
	b.mu.Unlock()
}

// Tail returns up to n of the newest entries at or above minLevel,
// oldest first. n <= 0 returns all matching entries.
func (b *Buffer) Tail(n int, minLevel slog.Level) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldest := 0
	if b.count == len(b.ring) {
		oldest = b.head
	}

	var out []Entry
	for i := 0; i < b.count; i++ {
		e := b.ring[(oldest+i)%len(b.ring)]
		if levelOf(e.Level) < minLevel {
			continue
		}
		out = append(out, e)
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func levelOf(s string) slog.Level {
	switch s {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
