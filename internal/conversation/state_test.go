package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qifbot/qifbot/internal/receipt"
)

func TestStore_GetDefaultsToIdle(t *testing.T) {
	store := NewStore()

	state, gen := store.Get(7)
	assert.Equal(t, Idle, state.Phase)
	assert.Equal(t, uint64(0), gen)
}

func TestStore_SetBumpsGeneration(t *testing.T) {
	store := NewStore()

	store.Set(7, State{Phase: AwaitingFile, FileName: "r.json"})

	state, gen := store.Get(7)
	assert.Equal(t, AwaitingFile, state.Phase)
	assert.Equal(t, "r.json", state.FileName)
	assert.Equal(t, uint64(1), gen)
}

// SetIf models slow asynchronous work: a result computed against an old
// generation must be discarded.
func TestStore_SetIfDiscardsStaleResults(t *testing.T) {
	store := NewStore()

	_, gen := store.Get(7)

	// The chat moves on (e.g. /cancel) while the work is in flight.
	store.Reset(7)

	assert.False(t, store.SetIf(7, gen, State{Phase: Ready}))
	state, _ := store.Get(7)
	assert.Equal(t, Idle, state.Phase)

	// With a fresh generation the transition applies.
	_, gen = store.Get(7)
	assert.True(t, store.SetIf(7, gen, State{Phase: Ready}))
	state, _ = store.Get(7)
	assert.Equal(t, Ready, state.Phase)
}

func TestStore_HandsOutCopies(t *testing.T) {
	store := NewStore()
	store.Set(7, State{
		Phase:   Ready,
		Decided: map[string]string{"a": "Expenses:X"},
		Items:   []Item{{ID: "a", Name: "Milk", Sum: 200}},
	})

	state, _ := store.Get(7)
	state.Decided["a"] = "mutated"
	state.Items[0].Name = "mutated"

	fresh, _ := store.Get(7)
	assert.Equal(t, "Expenses:X", fresh.Decided["a"])
	assert.Equal(t, "Milk", fresh.Items[0].Name)
}

func TestMaterializeItems(t *testing.T) {
	items := materializeItems([]receipt.Item{
		{Name: "Milk", Sum: 200},
		{Name: "Wine", Sum: 1500},
	})

	require.Len(t, items, 2)
	assert.Equal(t, "Milk", items[0].Name)
	assert.Equal(t, int64(1500), items[1].Sum)
	assert.NotEmpty(t, items[0].ID)
	assert.NotEqual(t, items[0].ID, items[1].ID, "ids must be unique")
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "unknown", Phase(99).String())
}
