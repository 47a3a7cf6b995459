// Package session keeps the process-lifetime, in-memory record of
// pipeline outcomes. The log is append-only: entries are never mutated
// after creation, and nothing is persisted across restarts.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry records one pipeline invocation attempt, success or failure.
type Entry struct {
	ID           string
	Timestamp    time.Time
	Operation    string
	TargetFile   string
	Language     string
	Focus        string
	Success      bool
	Actionable   bool
	ErrorMessage string
}

// Log is the ordered, append-only session record plus a pointer to the
// most recent successful entry. Appends happen from concurrent request
// goroutines, so both live under one mutex; the append and the
// last-success update are a single critical section.
type Log struct {
	mu          sync.Mutex
	entries     []Entry
	lastSuccess *Entry
}

// NewLog creates an empty session log.
func NewLog() *Log {
	return &Log{}
}

// Append records an entry in arrival order. A missing ID or timestamp is
// filled in. When the entry is successful it also becomes the new
// last-success pointer. The stored entry is returned.
func (l *Log) Append(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, e)
	if e.Success {
		stored := l.entries[len(l.entries)-1]
		l.lastSuccess = &stored
	}
	return e
}

// Entries returns a copy of all entries in arrival order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (l *Log) Recent(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := len(l.entries)
	if n > 0 && n < count {
		count = n
	}
	out := make([]Entry, 0, count)
	for i := len(l.entries) - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// LastSuccess returns the most recent successful entry, if any.
func (l *Log) LastSuccess() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastSuccess == nil {
		return Entry{}, false
	}
	return *l.lastSuccess, true
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
