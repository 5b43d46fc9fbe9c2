package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PryCoder/flowdesk/internal/canvas"
	"github.com/PryCoder/flowdesk/internal/directory"
	"github.com/PryCoder/flowdesk/internal/room"
	"github.com/PryCoder/flowdesk/internal/snapshot"
)

// Tests drive handleEvent directly on one goroutine, the same way the
// Run loop does, so no pumps or sockets are needed.

func newTestHub() *Hub {
	dir := directory.NewMemoryDirectory(false)
	dir.AddMember("board", "alice", directory.Membership{
		Role:        canvas.RoleEmployee,
		Permissions: canvas.Permissions{CanDraw: true, CanEdit: true},
	})
	dir.AddMember("board", "bob", directory.Membership{
		Role: canvas.RoleEmployee, // viewer: no draw, no edit
	})
	dir.AddMember("board", "mona", directory.Membership{
		Role:        canvas.RoleEmployee,
		Permissions: canvas.Permissions{CanDraw: true, CanEdit: true, IsModerator: true},
	})

	presence := canvas.NewPresenceStore()
	registry := room.NewRegistry(snapshot.NewMemoryProvider(time.Hour), presence, 100)
	return NewHub(registry, presence, dir)
}

func newTestClient(h *Hub, userID string) *Client {
	c := &Client{
		hub:         h,
		send:        make(chan []byte, 64),
		ConnID:      userID + "-conn",
		UserID:      userID,
		Username:    userID,
		DisplayName: userID,
	}
	h.clients[c] = true
	return c
}

func event(t *testing.T, name string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(Envelope{Event: name, Data: raw})
	require.NoError(t, err)
	return frame
}

// recv pops the next frame queued for a client, failing if none is there.
func recv(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case frame := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	default:
		t.Fatal("expected a queued frame, got none")
		return Envelope{}
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func join(t *testing.T, h *Hub, c *Client, roomID string) {
	t.Helper()
	h.handleEvent(c, event(t, EvtJoinRoom, joinPayload{RoomID: roomID}))
	env := recv(t, c)
	require.Equal(t, EvtRoomState, env.Event)
}

func TestJoinRepliesWithRoomState(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")

	h.handleEvent(alice, event(t, EvtJoinRoom, joinPayload{RoomID: "board"}))

	env := recv(t, alice)
	require.Equal(t, EvtRoomState, env.Event)

	var state roomStatePayload
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.Equal(t, "board", state.RoomID)
	require.Len(t, state.Participants, 1)
	assert.Equal(t, "alice", state.You.UserID)
	assert.True(t, state.You.Permissions.CanDraw)
}

func TestJoinUnknownRoomRejected(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")

	h.handleEvent(alice, event(t, EvtJoinRoom, joinPayload{RoomID: "nope"}))

	env := recv(t, alice)
	require.Equal(t, EvtError, env.Event)
	var p errorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "room-not-found", p.Code)
	assert.Equal(t, 0, h.registry.Count(), "no room is activated for a failed join")
}

func TestDrawBroadcastsToOthersOnly(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	join(t, h, alice, "board")
	join(t, h, bob, "board")
	drain(alice)
	drain(bob)

	h.handleEvent(alice, event(t, EvtDraw, appendPayload{Payload: json.RawMessage(`{"points":[1,2]}`)}))

	env := recv(t, bob)
	require.Equal(t, EvtStrokeAdded, env.Event)
	var p updatePayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "alice", p.UserID)
	assert.NotEmpty(t, p.Update)

	assert.Empty(t, alice.send, "origin does not receive its own stroke back")
}

func TestDeniedDrawGetsRejectionAndNoEffect(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	join(t, h, alice, "board")
	join(t, h, bob, "board")
	drain(alice)
	drain(bob)

	h.handleEvent(bob, event(t, EvtDraw, appendPayload{Payload: json.RawMessage(`{"points":[3]}`)}))

	env := recv(t, bob)
	require.Equal(t, EvtOpRejected, env.Event)
	var p rejectedPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "permission-denied", p.Reason)

	assert.Empty(t, alice.send, "a denied op is never broadcast")
	r, _ := h.registry.Get("board")
	assert.Equal(t, 0, r.Document().Len())
}

func TestMoveWithoutEditLeavesElements(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	join(t, h, alice, "board")
	join(t, h, bob, "board")
	drain(alice)
	drain(bob)

	// Alice places an element via the reducer path.
	h.handleEvent(alice, event(t, EvtReplaceState, canvas.FullState{
		Elements:        []canvas.Element{{ID: "e1", Type: canvas.TypeShape}},
		ExpectedVersion: 0,
	}))
	drain(alice)
	drain(bob)

	h.handleEvent(bob, event(t, EvtMoveObject, objectPayload{
		TargetID: "e1",
		Payload:  map[string]interface{}{"x": 50.0},
	}))

	env := recv(t, bob)
	assert.Equal(t, EvtOpRejected, env.Event)

	r, _ := h.registry.Get("board")
	require.Len(t, r.State().Elements, 1)
	assert.Nil(t, r.State().Elements[0].Payload)
}

func TestReplaceStateConflictSurfacesToOrigin(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")
	mona := newTestClient(h, "mona")
	join(t, h, alice, "board")
	join(t, h, mona, "board")
	drain(alice)
	drain(mona)

	h.handleEvent(alice, event(t, EvtReplaceState, canvas.FullState{ExpectedVersion: 0}))
	drain(alice)
	drain(mona)

	// Mona still thinks the canvas is at version 0.
	h.handleEvent(mona, event(t, EvtReplaceState, canvas.FullState{ExpectedVersion: 0}))

	env := recv(t, mona)
	require.Equal(t, EvtOpRejected, env.Event)
	var p rejectedPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "version-conflict", p.Reason)
	assert.Empty(t, alice.send, "a conflicting replacement is never broadcast")
}

func TestChatEchoesToEveryoneIncludingOrigin(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	join(t, h, alice, "board")
	join(t, h, bob, "board")
	drain(alice)
	drain(bob)

	h.handleEvent(alice, event(t, EvtChat, chatPayload{Text: "hello"}))

	for _, c := range []*Client{alice, bob} {
		env := recv(t, c)
		require.Equal(t, EvtChatMessage, env.Event)
		var msg canvas.ChatMessage
		require.NoError(t, json.Unmarshal(env.Data, &msg))
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, "alice", msg.UserID)
	}
}

func TestCursorMoveUpdatesPresenceAndBroadcasts(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	join(t, h, alice, "board")
	join(t, h, bob, "board")
	drain(alice)
	drain(bob)

	h.handleEvent(alice, event(t, EvtCursorMove, cursorPayload{Cursor: canvas.Cursor{X: 10, Y: 20}}))

	env := recv(t, bob)
	require.Equal(t, EvtCursorUpdate, env.Event)
	var p cursorEventPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, canvas.Cursor{X: 10, Y: 20}, p.Cursor)

	active := h.presence.ListActive("board")
	require.Len(t, active, 1)
	assert.Equal(t, "alice", active[0].UserID)
}

func TestLeaveDrainsRoomAndClearsPresence(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	join(t, h, alice, "board")
	join(t, h, bob, "board")
	drain(alice)
	drain(bob)

	h.handleEvent(alice, event(t, EvtCursorMove, cursorPayload{Cursor: canvas.Cursor{X: 1, Y: 1}}))
	drain(bob)

	h.handleEvent(alice, event(t, EvtLeaveRoom, struct{}{}))

	env := recv(t, bob)
	require.Equal(t, EvtUserLeft, env.Event)
	var p userEventPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, 1, p.TotalUsers)

	assert.Empty(t, h.presence.ListActive("board"), "presence for the leaver is gone")
	assert.Equal(t, 1, h.registry.Count())

	h.handleEvent(bob, event(t, EvtLeaveRoom, struct{}{}))
	assert.Equal(t, 0, h.registry.Count(), "last leave drains the room")
}

func TestClearIsModeratorGated(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")
	mona := newTestClient(h, "mona")
	join(t, h, alice, "board")
	join(t, h, mona, "board")
	drain(alice)
	drain(mona)

	h.handleEvent(alice, event(t, EvtClear, struct{}{}))
	env := recv(t, alice)
	assert.Equal(t, EvtOpRejected, env.Event)

	h.handleEvent(mona, event(t, EvtClear, struct{}{}))
	env = recv(t, alice)
	assert.Equal(t, EvtCanvasCleared, env.Event)
}

func TestOpsBeforeJoinRejected(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")

	h.handleEvent(alice, event(t, EvtDraw, appendPayload{Payload: json.RawMessage(`{}`)}))

	env := recv(t, alice)
	require.Equal(t, EvtError, env.Event)
	var p errorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "not-joined", p.Code)
}

func TestSlowConsumerEvictionKeepsFrameOrder(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	mona := newTestClient(h, "mona")
	join(t, h, alice, "board")
	join(t, h, bob, "board")
	join(t, h, mona, "board")
	drain(alice)
	drain(bob)

	// mona's buffer is already full, so the next fan-out evicts her.
	for i := 0; i < cap(mona.send); i++ {
		mona.send <- []byte("{}")
	}

	h.handleEvent(alice, event(t, EvtChat, chatPayload{Text: "hi"}))

	env := recv(t, bob)
	require.Equal(t, EvtChatMessage, env.Event, "the triggering frame arrives first")
	env = recv(t, bob)
	require.Equal(t, EvtUserLeft, env.Event, "the eviction's departure frame follows it")
	var p userEventPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "mona", p.UserID)
	_, ok := h.clients[mona]
	assert.False(t, ok, "the slow consumer is gone")
}

func TestSyncDocumentMergesAndFansOut(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	join(t, h, alice, "board")
	join(t, h, bob, "board")
	drain(alice)
	drain(bob)

	offline := canvas.NewDocument("alice-laptop")
	update, err := offline.ApplyLocal(canvas.PartDrawings, "e1", "alice", json.RawMessage(`{"id":"s1"}`))
	require.NoError(t, err)

	h.handleEvent(alice, event(t, EvtSyncDocument, syncPayload{Update: update}))

	env := recv(t, alice)
	require.Equal(t, EvtDocumentSynced, env.Event, "the origin gets the full document back")
	var p documentSyncedPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.Len(t, p.Document[canvas.PartDrawings], 1)

	env = recv(t, bob)
	require.Equal(t, EvtDocumentSynced, env.Event, "the other replicas learn the synced entries")

	h.handleEvent(bob, event(t, EvtSyncDocument, syncPayload{Update: update}))
	env = recv(t, bob)
	assert.Equal(t, EvtOpRejected, env.Event, "viewers cannot inject entries through resync")
}
