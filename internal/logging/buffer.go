package logging

import (
	"sync"
	"time"
)

// LogEntry is one log record kept for streaming.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// EntryFilter selects log entries. A nil filter keeps everything.
type EntryFilter func(LogEntry) bool

// RingBuffer keeps the most recent entries, oldest first on read. Safe for
// concurrent use.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

// NewRingBuffer creates a buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{entries: make([]LogEntry, max(size, 1))}
}

// Write appends entry, evicting the oldest one when full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.next] = entry
	rb.next++
	if rb.next == len(rb.entries) {
		rb.next = 0
		rb.full = true
	}
}

// ReadAll returns every buffered entry in write order.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Read(nil)
}

// Read returns the buffered entries that pass keep, in write order.
func (rb *RingBuffer) Read(keep EntryFilter) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []LogEntry
	visit := func(batch []LogEntry) {
		for _, e := range batch {
			if keep == nil || keep(e) {
				out = append(out, e)
			}
		}
	}
	if rb.full {
		visit(rb.entries[rb.next:])
	}
	visit(rb.entries[:rb.next])
	return out
}

// Count returns the number of buffered entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.entries)
	}
	return rb.next
}

// MatchEntries builds a filter for a minimum level and an optional module.
// An unknown level name matches every level.
func MatchEntries(minLevel, module string) EntryFilter {
	threshold, hasLevel := ParseLevel(minLevel)
	if !hasLevel && module == "" {
		return nil
	}
	return func(e LogEntry) bool {
		if module != "" && e.Module != module {
			return false
		}
		if !hasLevel {
			return true
		}
		level, ok := ParseLevel(e.Level)
		return !ok || level >= threshold
	}
}
