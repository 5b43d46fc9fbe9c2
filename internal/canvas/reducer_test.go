package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addOp(id string) Operation {
	return Operation{
		Kind:    OpAdd,
		Element: &Element{ID: id, Type: TypeShape, Payload: map[string]interface{}{"x": 0.0}},
	}
}

func TestReducerAddUpdateDelete(t *testing.T) {
	var red Reducer
	state := NewState()

	red.ApplyOps(state, []Operation{
		addOp("e1"),
		{Kind: OpUpdate, TargetID: "e1", Payload: map[string]interface{}{"x": 5.0}},
		{Kind: OpDelete, TargetID: "e1"},
	})

	assert.Empty(t, state.Elements, "e1 must be gone after add/update/delete")
	assert.EqualValues(t, 0, state.Version, "incremental path never bumps version")
}

func TestReducerUpdateMergesPayload(t *testing.T) {
	var red Reducer
	state := NewState()

	red.ApplyOps(state, []Operation{addOp("e1")})
	red.ApplyOps(state, []Operation{
		{Kind: OpUpdate, TargetID: "e1", Payload: map[string]interface{}{"y": 7.0}},
	})

	require.Len(t, state.Elements, 1)
	assert.Equal(t, 0.0, state.Elements[0].Payload["x"], "existing keys survive a shallow merge")
	assert.Equal(t, 7.0, state.Elements[0].Payload["y"])
}

func TestReducerUnknownTargetIsNoop(t *testing.T) {
	var red Reducer
	state := NewState()
	red.ApplyOps(state, []Operation{addOp("e1")})

	red.ApplyOps(state, []Operation{
		{Kind: OpUpdate, TargetID: "ghost", Payload: map[string]interface{}{"x": 1.0}},
		{Kind: OpDelete, TargetID: "ghost"},
	})

	assert.Len(t, state.Elements, 1)
}

func TestReducerClear(t *testing.T) {
	var red Reducer
	state := NewState()
	red.ApplyOps(state, []Operation{addOp("e1"), addOp("e2")})

	red.ApplyOps(state, []Operation{{Kind: OpClear}})
	assert.Empty(t, state.Elements)
}

func TestReplaceStateVersionMonotonic(t *testing.T) {
	var red Reducer
	state := NewState()

	const n = 10
	for i := 0; i < n; i++ {
		err := red.ReplaceState(state, FullState{
			Elements:        []Element{{ID: "e1"}},
			ExpectedVersion: state.Version,
		}, "alice")
		require.NoError(t, err)
	}

	assert.EqualValues(t, n, state.Version, "N sequential replacements bump version by N")
	assert.Equal(t, "alice", state.LastModifiedBy)
	assert.False(t, state.LastModified.IsZero())
}

func TestReplaceStateStaleVersionRejected(t *testing.T) {
	var red Reducer
	state := NewState()

	require.NoError(t, red.ReplaceState(state, FullState{ExpectedVersion: 0}, "alice"))

	// Bob raced alice and still carries version 0.
	err := red.ReplaceState(state, FullState{
		Elements:        []Element{{ID: "bobs"}},
		ExpectedVersion: 0,
	}, "bob")
	require.ErrorIs(t, err, ErrVersionConflict)

	assert.EqualValues(t, 1, state.Version, "rejected replacement must not touch state")
	assert.Equal(t, "alice", state.LastModifiedBy)
	assert.Empty(t, state.Elements)
}
