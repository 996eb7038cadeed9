package memory

import (
	"sync"
	"testing"

	"github.com/hupe1980/agentloop/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AddAndEntries(t *testing.T) {
	l := New(core.Entry{Type: core.EntrySystem, Content: "rules"})
	l.Add(
		core.Entry{Type: core.EntryUser, Content: "hello"},
		core.Entry{Type: core.EntryAssistant, Content: "hi"},
	)

	require.Equal(t, 3, l.Len())

	entries := l.Entries()
	assert.Equal(t, "rules", entries[0].Content)
	assert.Equal(t, "hello", entries[1].Content)
	assert.Equal(t, "hi", entries[2].Content)

	// mutation safety (returned slice is a copy)
	entries[0].Content = "changed"
	assert.Equal(t, "rules", l.Entries()[0].Content)

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, core.EntryAssistant, last.Type)
}

func TestLog_FilterSearchFormat(t *testing.T) {
	l := New(
		core.Entry{Type: core.EntryUser, Content: "We need a reporting dashboard"},
		core.Entry{Type: core.EntryAssistant, Content: "Initial cost estimate: $50,000"},
		core.Entry{Type: core.EntrySystem, Content: "Deadline moved to Q3"},
		core.Entry{Type: core.EntryUser, Content: "Can we reduce the COST?"},
	)

	assert.Len(t, l.Filter(core.EntryUser, core.EntrySystem), 3)
	assert.Len(t, l.Search("cost", 0), 2)
	assert.Len(t, l.Search("cost", 1), 1)
	assert.Len(t, l.Search("", 0), 4)

	assert.Equal(t,
		"user: We need a reporting dashboard\nsystem: Deadline moved to Q3",
		Format([]core.Entry{l.Entries()[0], l.Entries()[2]}),
	)
}

func TestLog_EmptyHelpers(t *testing.T) {
	_, ok := Last(nil)
	assert.False(t, ok)

	_, ok = New().Last()
	assert.False(t, ok)
	assert.Nil(t, Filter(nil, core.EntryUser))
}

func TestLog_ConcurrentAccess(t *testing.T) {
	l := New()
	wg := sync.WaitGroup{}

	for i := 0; i < 25; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			l.Add(core.Entry{Type: core.EntryUser, Content: "x"})
			_ = l.Entries()
		}()
	}

	wg.Wait()
	assert.Equal(t, 25, l.Len())
}
