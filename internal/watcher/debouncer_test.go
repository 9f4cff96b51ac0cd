package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, d *Debouncer) []RefEvent {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for debounced events")
		return nil
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: a single event is added
	d.Add(RefEvent{Path: "HEAD", Operation: OpModify, Timestamp: time.Now()})

	// Then: the event passes through after the debounce window
	events := receive(t, d)
	require.Len(t, events, 1)
	assert.Equal(t, "HEAD", events[0].Path)
	assert.Equal(t, OpModify, events[0].Operation)
}

func TestDebouncer_BurstCoalesces(t *testing.T) {
	// Given: a debouncer with a window longer than the gap between events
	d := NewDebouncer(100 * time.Millisecond)
	defer d.Stop()

	// When: a rebase rewrites the same ref several times
	for i := 0; i < 5; i++ {
		d.Add(RefEvent{Path: "refs/heads/main", Operation: OpModify, Timestamp: time.Now()})
		time.Sleep(10 * time.Millisecond)
	}

	// Then: one event comes out
	events := receive(t, d)
	require.Len(t, events, 1)
	assert.Equal(t, "refs/heads/main", events[0].Path)
}

func TestDebouncer_CoalescingRules(t *testing.T) {
	tests := []struct {
		name  string
		ops   []Operation
		want  Operation
		empty bool
	}{
		{"create then delete cancels", []Operation{OpCreate, OpDelete}, 0, true},
		{"delete then create is modify", []Operation{OpDelete, OpCreate}, OpModify, false},
		{"modify then delete is delete", []Operation{OpModify, OpDelete}, OpDelete, false},
		{"create then modify keeps latest", []Operation{OpCreate, OpModify}, OpModify, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(30 * time.Millisecond)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(RefEvent{Path: "refs/heads/topic", Operation: op, Timestamp: time.Now()})
			}
			// A sentinel on another path guarantees a batch is emitted.
			d.Add(RefEvent{Path: "HEAD", Operation: OpModify, Timestamp: time.Now()})

			events := receive(t, d)
			got := map[string]Operation{}
			for _, e := range events {
				got[e.Path] = e.Operation
			}
			op, ok := got["refs/heads/topic"]
			if tt.empty {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, op)
		})
	}
}

func TestDebouncer_BatchSortedByPath(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(RefEvent{Path: "refs/heads/b", Operation: OpCreate})
	d.Add(RefEvent{Path: "HEAD", Operation: OpModify})
	d.Add(RefEvent{Path: "packed-refs", Operation: OpModify})

	events := receive(t, d)
	require.Len(t, events, 3)
	assert.Equal(t, "HEAD", events[0].Path)
	assert.Equal(t, "packed-refs", events[1].Path)
	assert.Equal(t, "refs/heads/b", events[2].Path)
}

func TestDebouncer_Stop_ClosesOutput(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	d.Stop()
	d.Stop()
	d.Add(RefEvent{Path: "HEAD"})

	_, ok := <-d.Output()
	assert.False(t, ok, "channel should be closed")
}
