// Package rolllog records the outcome of every atomic die rolled during an
// evaluation.
package rolllog

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is one atomic die outcome.
type Entry struct {
	Sides  int `json:"sides"`
	Result int `json:"result"`
}

// String renders the entry as "d6=4".
func (e Entry) String() string {
	return fmt.Sprintf("d%d=%d", e.Sides, e.Result)
}

// Log is an ordered, append-only record of die outcomes. It is safe for
// concurrent use, though a single evaluation only ever appends from one
// goroutine.
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

// New creates an empty log.
func New() *Log {
	return &Log{}
}

// Record appends one outcome.
func (l *Log) Record(sides, result int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Sides: sides, Result: result})
}

// Clear discards every recorded outcome.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Len returns the number of recorded outcomes.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot returns a copy of the recorded outcomes in roll order.
func (l *Log) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Format renders entries as "d6=4 d6=2 d8=7".
func Format(entries []Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}
