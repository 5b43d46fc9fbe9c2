package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PryCoder/flowdesk/internal/canvas"
	"github.com/PryCoder/flowdesk/internal/directory"
	"github.com/PryCoder/flowdesk/internal/room"
)

type inboundMessage struct {
	client *Client
	raw    []byte
}

// Hub is the connection gateway: it terminates the event streams, maps
// connections to rooms and fans server events out.
//
// Run is the single task loop for every room on this process. All room
// mutation happens on it, so operations for one room are applied in
// arrival order and broadcasts leave in that same order — the maps below
// are race-free by design, the same way the clients map is in a classic
// websocket hub.
type Hub struct {
	registry *room.Registry
	presence *canvas.PresenceStore
	dir      directory.Directory

	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	inbound    chan *inboundMessage

	log *logrus.Entry
}

func NewHub(registry *room.Registry, presence *canvas.PresenceStore, dir directory.Directory) *Hub {
	return &Hub{
		registry:   registry,
		presence:   presence,
		dir:        dir,
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *inboundMessage, 256),
		log:        logrus.WithField("component", "ws_hub"),
	}
}

// Run owns all hub state. Start it exactly once.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.leaveRoom(client)
				delete(h.clients, client)
				close(client.send)
			}

		case msg := <-h.inbound:
			if _, ok := h.clients[msg.client]; !ok {
				continue // raced with an eviction
			}
			h.handleEvent(msg.client, msg.raw)
		}
	}
}

func (h *Hub) handleEvent(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(c, "bad-envelope", "malformed event frame")
		return
	}

	switch env.Event {
	case EvtJoinRoom:
		h.handleJoin(c, env.Data)
	case EvtLeaveRoom:
		h.leaveRoom(c)

	case EvtDraw:
		h.handleAppend(c, env.Data, canvas.ActionDraw, canvas.PartDrawings, EvtStrokeAdded)
	case EvtAddShape:
		h.handleAppend(c, env.Data, canvas.ActionAddShape, canvas.PartShapes, EvtShapeAdded)
	case EvtAddText:
		h.handleAppend(c, env.Data, canvas.ActionAddText, canvas.PartTexts, EvtTextAdded)
	case EvtAddSticky:
		h.handleAppend(c, env.Data, canvas.ActionAddSticky, canvas.PartStickies, EvtStickyAdded)

	case EvtMoveObject:
		h.handleObjectOp(c, env.Data, canvas.ActionMove)
	case EvtDeleteObject:
		h.handleObjectOp(c, env.Data, canvas.ActionDelete)
	case EvtReplaceState:
		h.handleReplaceState(c, env.Data)
	case EvtClear:
		h.handleClear(c)

	case EvtCursorMove:
		h.handleCursor(c, env.Data)
	case EvtEditingStart:
		h.handleEditing(c, env.Data, true)
	case EvtEditingStop:
		h.handleEditing(c, env.Data, false)
	case EvtChat:
		h.handleChat(c, env.Data)
	case EvtSyncDocument:
		h.handleSync(c, env.Data)

	default:
		h.sendError(c, "unknown-event", "unknown event: "+env.Event)
	}
}

func (h *Hub) handleJoin(c *Client, data json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		h.sendError(c, "bad-payload", "join-room requires room_id")
		return
	}

	if c.roomID == p.RoomID {
		return
	}
	if c.roomID != "" {
		h.leaveRoom(c)
	}

	// The directory seeds room existence and our capabilities. Its
	// absence verdict is final: no room record, no session.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	membership, err := h.dir.Membership(ctx, p.RoomID, c.UserID)
	cancel()
	if err != nil {
		if errors.Is(err, directory.ErrRoomNotFound) {
			h.sendError(c, "room-not-found", "room does not exist: "+p.RoomID)
		} else {
			h.log.WithError(err).WithField("room_id", p.RoomID).Error("Directory lookup failed")
			h.sendError(c, "directory-unavailable", "could not verify room membership")
		}
		return
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	r, created := h.registry.GetOrCreate(ctx, p.RoomID)
	cancel()
	if created {
		h.log.WithField("room_id", p.RoomID).Info("Room activated")
	}

	total := r.AddParticipant(&room.Participant{
		UserID:       c.UserID,
		DisplayName:  c.DisplayName,
		Role:         membership.Role,
		ConnectionID: c.ConnID,
		Permissions:  membership.Permissions,
	})

	subs, ok := h.rooms[p.RoomID]
	if !ok {
		subs = make(map[*Client]bool)
		h.rooms[p.RoomID] = subs
	}
	subs[c] = true
	c.roomID = p.RoomID

	// Catch-up reply goes to the joiner before any subsequent live
	// traffic, because both travel the same task loop.
	you, _ := r.Participant(c.UserID)
	state := roomStatePayload{
		RoomID:       r.ID,
		Participants: r.Participants(),
		Presence:     h.presence.ListActive(r.ID),
		ChatHistory:  r.ChatTail(50),
		Canvas:       r.State(),
		Document:     documentPartitions(r),
		You:          *you,
	}
	h.sendTo(c, EvtRoomState, state)

	h.broadcast(r.ID, EvtUserJoined, userEventPayload{
		UserID:     c.UserID,
		UserName:   c.DisplayName,
		TotalUsers: total,
	}, c)
}

// leaveRoom detaches the client from its room, announces the departure
// and drains the room if it just emptied. Runs synchronously in the
// same tick as the disconnect notification.
func (h *Hub) leaveRoom(c *Client) {
	if c.roomID == "" {
		return
	}
	roomID := c.roomID
	c.roomID = ""

	if subs, ok := h.rooms[roomID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}

	r, ok := h.registry.Get(roomID)
	if !ok {
		return
	}
	remaining := r.RemoveParticipant(c.UserID)
	h.presence.Remove(roomID, c.UserID)

	h.broadcast(roomID, EvtUserLeft, userEventPayload{
		UserID:     c.UserID,
		UserName:   c.DisplayName,
		TotalUsers: remaining,
	}, nil)

	if remaining == 0 {
		if h.registry.RemoveIfEmpty(roomID) {
			h.log.WithField("room_id", roomID).Info("Room drained")
		}
	}
}

func (h *Hub) handleAppend(c *Client, data json.RawMessage, action canvas.Action, part canvas.Partition, outEvent string) {
	r, ok := h.clientRoom(c)
	if !ok {
		return
	}

	var p appendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.sendError(c, "bad-payload", "malformed payload")
		return
	}

	update, err := r.AppendLocal(c.UserID, action, part, p.Payload)
	if err != nil {
		h.rejectOrError(c, string(action), err)
		return
	}

	h.broadcast(r.ID, outEvent, updatePayload{
		UserID:    c.UserID,
		Update:    update,
		Timestamp: time.Now().UTC(),
	}, c)
}

func (h *Hub) handleObjectOp(c *Client, data json.RawMessage, action canvas.Action) {
	r, ok := h.clientRoom(c)
	if !ok {
		return
	}

	var p objectPayload
	if err := json.Unmarshal(data, &p); err != nil || p.TargetID == "" {
		h.sendError(c, "bad-payload", "object operations require target_id")
		return
	}

	op := canvas.Operation{TargetID: p.TargetID, OriginUser: c.UserID}
	outEvent := ""
	switch action {
	case canvas.ActionMove:
		op.Kind = canvas.OpUpdate
		op.Payload = p.Payload
		outEvent = EvtObjectMoved
	case canvas.ActionDelete:
		op.Kind = canvas.OpDelete
		outEvent = EvtObjectDeleted
	}

	if err := r.ApplyOperations(c.UserID, action, []canvas.Operation{op}); err != nil {
		h.rejectOrError(c, string(action), err)
		return
	}

	h.broadcast(r.ID, outEvent, objectEventPayload{
		UserID:    c.UserID,
		TargetID:  p.TargetID,
		Payload:   p.Payload,
		Timestamp: time.Now().UTC(),
	}, c)
}

func (h *Hub) handleReplaceState(c *Client, data json.RawMessage) {
	r, ok := h.clientRoom(c)
	if !ok {
		return
	}

	var full canvas.FullState
	if err := json.Unmarshal(data, &full); err != nil {
		h.sendError(c, "bad-payload", "malformed full state")
		return
	}

	if err := r.ReplaceState(c.UserID, full); err != nil {
		if errors.Is(err, canvas.ErrVersionConflict) {
			h.sendTo(c, EvtOpRejected, rejectedPayload{
				Action: EvtReplaceState,
				Reason: "version-conflict",
			})
			return
		}
		h.rejectOrError(c, EvtReplaceState, err)
		return
	}

	h.broadcast(r.ID, EvtStateReplaced, stateReplacedPayload{
		UserID:  c.UserID,
		Version: r.State().Version,
	}, c)
}

func (h *Hub) handleClear(c *Client) {
	r, ok := h.clientRoom(c)
	if !ok {
		return
	}

	if err := r.Clear(c.UserID); err != nil {
		h.rejectOrError(c, string(canvas.ActionClear), err)
		return
	}

	h.broadcast(r.ID, EvtCanvasCleared, objectEventPayload{
		UserID:    c.UserID,
		Timestamp: time.Now().UTC(),
	}, c)
}

func (h *Hub) handleCursor(c *Client, data json.RawMessage) {
	if c.roomID == "" {
		return
	}
	var p cursorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return // cursor spam is not worth an error frame
	}

	h.presence.SetCursor(c.roomID, c.UserID, c.DisplayName, p.Cursor)
	if r, ok := h.registry.Get(c.roomID); ok {
		r.SetCursor(c.UserID, p.Cursor)
	}

	h.broadcast(c.roomID, EvtCursorUpdate, cursorEventPayload{
		UserID:   c.UserID,
		UserName: c.DisplayName,
		Cursor:   p.Cursor,
	}, c)
}

func (h *Hub) handleEditing(c *Client, data json.RawMessage, start bool) {
	if c.roomID == "" {
		return
	}

	var out editingEventPayload
	out.UserID = c.UserID

	if start {
		var p editingPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		e := canvas.Editing{ElementID: p.ElementID, Action: p.Action, ElementType: p.ElementType}
		h.presence.SetEditing(c.roomID, c.UserID, c.DisplayName, e)
		out.Editing = &e
	} else {
		h.presence.ClearEditing(c.roomID, c.UserID)
	}

	h.broadcast(c.roomID, EvtEditingUpdate, out, c)
}

func (h *Hub) handleChat(c *Client, data json.RawMessage) {
	r, ok := h.clientRoom(c)
	if !ok {
		return
	}

	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Text == "" {
		h.sendError(c, "bad-payload", "chat requires text")
		return
	}

	msg, err := r.AppendChat(c.UserID, c.DisplayName, p.Text)
	if err != nil {
		h.sendError(c, "not-joined", err.Error())
		return
	}

	// Chat echoes back to the origin too, unlike canvas events.
	h.broadcast(r.ID, EvtChatMessage, msg, nil)
}

// handleSync lets a participant who was briefly offline fold their
// local entries back into the shared document. The reply carries the
// full document: the origin learns what it missed and the other
// replicas learn what the origin drew while away.
func (h *Hub) handleSync(c *Client, data json.RawMessage) {
	r, ok := h.clientRoom(c)
	if !ok {
		return
	}

	var p syncPayload
	if err := json.Unmarshal(data, &p); err != nil || len(p.Update) == 0 {
		h.sendError(c, "bad-payload", "sync-document requires update")
		return
	}

	if err := r.MergeRemote(c.UserID, p.Update); err != nil {
		h.rejectOrError(c, EvtSyncDocument, err)
		return
	}

	synced := documentSyncedPayload{UserID: c.UserID, Document: documentPartitions(r)}
	h.sendTo(c, EvtDocumentSynced, synced)
	h.broadcast(r.ID, EvtDocumentSynced, synced, c)
}

func documentPartitions(r *room.Room) map[canvas.Partition][]canvas.LogEntry {
	return map[canvas.Partition][]canvas.LogEntry{
		canvas.PartDrawings: r.Document().Entries(canvas.PartDrawings),
		canvas.PartShapes:   r.Document().Entries(canvas.PartShapes),
		canvas.PartTexts:    r.Document().Entries(canvas.PartTexts),
		canvas.PartStickies: r.Document().Entries(canvas.PartStickies),
	}
}

func (h *Hub) clientRoom(c *Client) (*room.Room, bool) {
	if c.roomID == "" {
		h.sendError(c, "not-joined", "join a room first")
		return nil, false
	}
	r, ok := h.registry.Get(c.roomID)
	if !ok {
		h.sendError(c, "room-not-found", "room is no longer active")
		return nil, false
	}
	return r, true
}

func (h *Hub) rejectOrError(c *Client, action string, err error) {
	switch {
	case errors.Is(err, canvas.ErrDenied):
		// The document was never touched; tell the origin explicitly
		// so clients can stop offering the affordance.
		h.sendTo(c, EvtOpRejected, rejectedPayload{Action: action, Reason: "permission-denied"})
	case errors.Is(err, room.ErrNotParticipant):
		h.sendError(c, "not-joined", "join a room first")
	default:
		h.log.WithError(err).WithField("action", action).Error("Operation failed")
		h.sendError(c, "internal", "operation failed")
	}
}

// broadcast fans an event out to every subscriber of a room, minus the
// excluded origin. Frames leave in task-loop order, so per-room FIFO
// holds for every receiver that keeps up; a receiver that can't keep up
// is evicted rather than allowed to stall the room.
func (h *Hub) broadcast(roomID, event string, payload interface{}, exclude *Client) {
	subs, ok := h.rooms[roomID]
	if !ok {
		return
	}
	frame := mustEnvelope(event, payload)
	var slow []*Client
	for client := range subs {
		if client == exclude {
			continue
		}
		if !client.enqueue(frame) {
			slow = append(slow, client)
		}
	}
	// Evictions run after the fan-out so the departure frames they
	// trigger never overtake this one at the remaining receivers.
	for _, client := range slow {
		h.evict(client)
	}
}

func (h *Hub) sendTo(c *Client, event string, payload interface{}) {
	if !c.enqueue(mustEnvelope(event, payload)) {
		h.evict(c)
	}
}

func (h *Hub) sendError(c *Client, code, message string) {
	h.sendTo(c, EvtError, errorPayload{Code: code, Message: message})
}

// evict force-disconnects a slow consumer. Closing send stops the write
// pump, which closes the socket, which makes the read pump exit; the
// room cleanup happens here, eagerly, not on the eventual unregister.
func (h *Hub) evict(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.leaveRoom(c)
	delete(h.clients, c)
	close(c.send)
	h.log.WithField("conn_id", c.ConnID).Warn("Evicted slow consumer")
}
