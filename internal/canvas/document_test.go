package canvas

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentLocalChangeRoundTrip(t *testing.T) {
	doc := NewDocument("site-a")

	update, err := doc.ApplyLocal(PartDrawings, "e1", "alice", json.RawMessage(`{"points":[1,2]}`))
	require.NoError(t, err)
	require.NotEmpty(t, update)

	entries := doc.Entries(PartDrawings)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, "alice", entries[0].Author)
}

func TestDocumentConvergence(t *testing.T) {
	// Build a pile of updates from two writers.
	writerA := NewDocument("site-a")
	writerB := NewDocument("site-b")

	var updates [][]byte
	parts := []Partition{PartDrawings, PartShapes, PartTexts, PartStickies}
	for i := 0; i < 40; i++ {
		doc := writerA
		if i%2 == 1 {
			doc = writerB
		}
		u, err := doc.ApplyLocal(parts[i%len(parts)], randomID(i), "user", json.RawMessage(`{"n":1}`))
		require.NoError(t, err)
		updates = append(updates, u)
	}

	// Replica 1 sees them in order; replica 2 shuffled, with duplicates.
	r1 := NewDocument("replica-1")
	for _, u := range updates {
		require.NoError(t, r1.Merge(u))
	}

	r2 := NewDocument("replica-2")
	shuffled := make([][]byte, len(updates))
	copy(shuffled, updates)
	rand.New(rand.NewSource(42)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	for _, u := range shuffled {
		require.NoError(t, r2.Merge(u))
		require.NoError(t, r2.Merge(u)) // duplicate delivery
	}

	s1, err := r1.EncodeState()
	require.NoError(t, err)
	s2, err := r2.EncodeState()
	require.NoError(t, err)
	assert.Equal(t, s1, s2, "replicas with the same update set must encode identically")
}

func TestDocumentMergeIsIdempotent(t *testing.T) {
	doc := NewDocument("site-a")
	u, err := doc.ApplyLocal(PartShapes, "s1", "bob", json.RawMessage(`{"w":10}`))
	require.NoError(t, err)

	other := NewDocument("site-b")
	require.NoError(t, other.Merge(u))
	require.NoError(t, other.Merge(u))
	require.NoError(t, other.Merge(u))

	assert.Equal(t, 1, other.Len())
}

func TestDocumentStateTransfersBetweenReplicas(t *testing.T) {
	doc := NewDocument("site-a")
	for i := 0; i < 5; i++ {
		_, err := doc.ApplyLocal(PartDrawings, randomID(i), "alice", json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	state, err := doc.EncodeState()
	require.NoError(t, err)

	// A full state encoding is itself a valid update.
	fresh := NewDocument("site-b")
	require.NoError(t, fresh.Merge(state))

	freshState, err := fresh.EncodeState()
	require.NoError(t, err)
	assert.Equal(t, state, freshState)
}

func randomID(i int) string {
	return string(rune('a'+i%26)) + string(rune('0'+i/26))
}
