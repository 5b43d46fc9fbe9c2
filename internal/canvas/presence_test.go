package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceCursorMostRecentWins(t *testing.T) {
	ps := NewPresenceStore()

	ps.SetCursor("r1", "u1", "Alice", Cursor{X: 1, Y: 1})
	ps.SetCursor("r1", "u1", "Alice", Cursor{X: 9, Y: 9})

	active := ps.ListActive("r1")
	require.Len(t, active, 1)
	assert.Equal(t, Cursor{X: 9, Y: 9}, active[0].Cursor)
}

func TestPresenceEditingLifecycle(t *testing.T) {
	ps := NewPresenceStore()

	ps.SetEditing("r1", "u1", "Alice", Editing{ElementID: "e1", Action: "resize", ElementType: "shape"})
	active := ps.ListActive("r1")
	require.Len(t, active, 1)
	require.NotNil(t, active[0].Editing)
	assert.Equal(t, "e1", active[0].Editing.ElementID)

	ps.ClearEditing("r1", "u1")
	active = ps.ListActive("r1")
	require.Len(t, active, 1)
	assert.Nil(t, active[0].Editing, "clearing editing keeps the presence entry")
}

func TestPresenceRemovedOnLeave(t *testing.T) {
	ps := NewPresenceStore()

	ps.SetCursor("r1", "u1", "Alice", Cursor{X: 1, Y: 2})
	ps.SetCursor("r1", "u2", "Bob", Cursor{X: 3, Y: 4})

	ps.Remove("r1", "u1")
	active := ps.ListActive("r1")
	require.Len(t, active, 1)
	assert.Equal(t, "u2", active[0].UserID)

	ps.Remove("r1", "u2")
	assert.Empty(t, ps.ListActive("r1"))
}

func TestPresenceRoomsAreIsolated(t *testing.T) {
	ps := NewPresenceStore()

	ps.SetCursor("r1", "u1", "Alice", Cursor{})
	ps.SetCursor("r2", "u1", "Alice", Cursor{})

	ps.RemoveRoom("r1")
	assert.Empty(t, ps.ListActive("r1"))
	assert.Len(t, ps.ListActive("r2"), 1)
}
