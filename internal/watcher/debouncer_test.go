package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(name string, op Operation) FileEvent {
	return FileEvent{Name: name, Operation: op, Timestamp: time.Now()}
}

func nextBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

// =============================================================================
// TS01: Coalescing
// =============================================================================

func TestDebouncer_BurstBecomesOneBatch(t *testing.T) {
	// Given: a debouncer and a burst of events on two files
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	// When: the events arrive inside the window
	d.Add(ev("b.md", OpModify))
	d.Add(ev("a.md", OpCreate))
	d.Add(ev("b.md", OpModify))

	// Then: one sorted batch with one event per file
	batch := nextBatch(t, d)
	require.Len(t, batch, 2)
	assert.Equal(t, "a.md", batch[0].Name)
	assert.Equal(t, "b.md", batch[1].Name)
}

func TestDebouncer_MergeRules(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want []Operation // empty means cancelled
	}{
		{"create then modify", []Operation{OpCreate, OpModify}, []Operation{OpCreate}},
		{"delete then create", []Operation{OpDelete, OpCreate}, []Operation{OpModify}},
		{"modify then delete", []Operation{OpModify, OpDelete}, []Operation{OpDelete}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(20 * time.Millisecond)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(ev("doc.md", op))
			}

			batch := nextBatch(t, d)
			require.Len(t, batch, len(tt.want))
			assert.Equal(t, tt.want[0], batch[0].Operation)
		})
	}
}

func TestDebouncer_CreateThenDeleteCancels(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(ev("tmp.md", OpCreate))
	d.Add(ev("tmp.md", OpDelete))
	d.Add(ev("kept.md", OpModify))

	batch := nextBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "kept.md", batch[0].Name)
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(time.Hour)
	d.Add(ev("a.md", OpCreate))

	d.Stop()
	d.Stop()
	d.Add(ev("b.md", OpCreate))

	_, open := <-d.Output()
	assert.False(t, open)
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "UNKNOWN", Operation(99).String())
}
