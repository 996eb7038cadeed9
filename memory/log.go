package memory

import (
	"strings"
	"sync"

	"github.com/hupe1980/agentloop/core"
)

// Compile-time interface assertion.
var _ core.Memory = (*Log)(nil)

// Log is a process-local, append-only core.Memory. Entries are copied on
// read so callers can never rewrite history.
//
// Concurrency: protected by RWMutex.
type Log struct {
	mu      sync.RWMutex
	entries []core.Entry
}

// New returns a log seeded with the given entries.
func New(entries ...core.Entry) *Log {
	l := &Log{}
	l.Add(entries...)

	return l
}

// Add appends entries in order.
func (l *Log) Add(entries ...core.Entry) {
	if len(entries) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entries...)
}

// Entries returns a copy of every entry in insertion order.
func (l *Log) Entries() []core.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]core.Entry, len(l.entries))
	copy(out, l.entries)

	return out
}

// Len reports the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}

// Last returns the most recent entry.
func (l *Log) Last() (core.Entry, bool) {
	return Last(l)
}

// Filter returns the entries whose type is one of types, in order.
func (l *Log) Filter(types ...string) []core.Entry {
	return Filter(l, types...)
}

// Search returns up to limit entries whose content contains query
// (case-insensitive), oldest first. An empty query matches everything; a
// limit <= 0 means no limit.
func (l *Log) Search(query string, limit int) []core.Entry {
	q := strings.ToLower(query)

	var out []core.Entry

	for _, e := range l.Entries() {
		if limit > 0 && len(out) >= limit {
			break
		}

		if q == "" || strings.Contains(strings.ToLower(e.Content), q) {
			out = append(out, e)
		}
	}

	return out
}

// Last returns the most recent entry of any core.Memory.
func Last(m core.Memory) (core.Entry, bool) {
	if m == nil {
		return core.Entry{}, false
	}

	entries := m.Entries()
	if len(entries) == 0 {
		return core.Entry{}, false
	}

	return entries[len(entries)-1], true
}

// Filter returns the entries of m whose type is one of types, in order.
func Filter(m core.Memory, types ...string) []core.Entry {
	if m == nil {
		return nil
	}

	want := make(map[string]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}

	var out []core.Entry

	for _, e := range m.Entries() {
		if _, ok := want[e.Type]; ok {
			out = append(out, e)
		}
	}

	return out
}

// Format renders entries as "type: content" lines, the shape used when a
// memory excerpt is embedded in a prompt.
func Format(entries []core.Entry) string {
	var b strings.Builder

	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}

		b.WriteString(e.Type)
		b.WriteString(": ")
		b.WriteString(e.Content)
	}

	return b.String()
}
