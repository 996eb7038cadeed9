package core

// Memory entry types used by the agent loop. Any other string is a valid
// custom tag (for example "<agent>_thought" for delegated reflections).
const (
	EntrySystem      = "system"
	EntryUser        = "user"
	EntryAssistant   = "assistant"
	EntryEnvironment = "environment"
	EntryError       = "error"
)

// Entry is a single item of the conversational log.
type Entry struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Memory is the append-only log of one agent run. Implementations must keep
// insertion order and must never remove or rewrite entries.
type Memory interface {
	// Add appends entries in the given order.
	Add(entries ...Entry)
	// Entries returns every appended entry in insertion order. The returned
	// slice is a copy.
	Entries() []Entry
	// Len reports the number of entries.
	Len() int
}
