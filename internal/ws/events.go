package ws

import (
	"encoding/json"
	"time"

	"github.com/PryCoder/flowdesk/internal/canvas"
	"github.com/PryCoder/flowdesk/internal/room"
)

// Envelope is the wire frame for every room-scoped event, in either
// direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound events.
const (
	EvtJoinRoom     = "join-room"
	EvtLeaveRoom    = "leave-room"
	EvtDraw         = "draw"
	EvtAddShape     = "add-shape"
	EvtAddText      = "add-text"
	EvtAddSticky    = "add-sticky"
	EvtMoveObject   = "move-object"
	EvtDeleteObject = "delete-object"
	EvtReplaceState = "replace-state"
	EvtClear        = "clear"
	EvtCursorMove   = "cursor-move"
	EvtEditingStart = "editing-start"
	EvtEditingStop  = "editing-stop"
	EvtChat         = "chat"
	EvtSyncDocument = "sync-document"
)

// Outbound events.
const (
	EvtRoomState      = "room-state"
	EvtUserJoined     = "user-joined"
	EvtUserLeft       = "user-left"
	EvtStrokeAdded    = "stroke-added"
	EvtShapeAdded     = "shape-added"
	EvtTextAdded      = "text-added"
	EvtStickyAdded    = "sticky-added"
	EvtObjectMoved    = "object-moved"
	EvtObjectDeleted  = "object-deleted"
	EvtCanvasCleared  = "canvas-cleared"
	EvtStateReplaced  = "state-replaced"
	EvtCursorUpdate   = "cursor-update"
	EvtEditingUpdate  = "editing-update"
	EvtChatMessage    = "chat-message"
	EvtDocumentSynced = "document-synced"
	EvtOpRejected     = "op-rejected"
	EvtError          = "error"
)

type joinPayload struct {
	RoomID string `json:"room_id"`
}

type appendPayload struct {
	Payload json.RawMessage `json:"payload"`
}

type objectPayload struct {
	TargetID string                 `json:"target_id"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

type cursorPayload struct {
	Cursor canvas.Cursor `json:"cursor"`
}

type editingPayload struct {
	ElementID   string `json:"element_id"`
	Action      string `json:"action"`
	ElementType string `json:"element_type"`
}

type chatPayload struct {
	Text string `json:"text"`
}

type syncPayload struct {
	Update json.RawMessage `json:"update"`
}

// roomStatePayload is the catch-up bundle sent to a newly joined
// participant before any live traffic reaches them.
type roomStatePayload struct {
	RoomID       string                                 `json:"room_id"`
	Participants []room.Participant                     `json:"participants"`
	Presence     []canvas.Presence                      `json:"presence"`
	ChatHistory  []canvas.ChatMessage                   `json:"chat_history"`
	Canvas       *canvas.State                          `json:"canvas"`
	Document     map[canvas.Partition][]canvas.LogEntry `json:"document"`
	You          room.Participant                       `json:"you"`
}

type userEventPayload struct {
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	TotalUsers int    `json:"total_users"`
}

type updatePayload struct {
	UserID    string          `json:"user_id"`
	Update    json.RawMessage `json:"update"`
	Timestamp time.Time       `json:"timestamp"`
}

type objectEventPayload struct {
	UserID    string                 `json:"user_id"`
	TargetID  string                 `json:"target_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type cursorEventPayload struct {
	UserID   string        `json:"user_id"`
	UserName string        `json:"user_name"`
	Cursor   canvas.Cursor `json:"cursor"`
}

type editingEventPayload struct {
	UserID  string          `json:"user_id"`
	Editing *canvas.Editing `json:"editing"` // nil means editing stopped
}

// documentSyncedPayload carries the full document after a resync merge,
// so every replica converges regardless of what it missed.
type documentSyncedPayload struct {
	UserID   string                                 `json:"user_id"`
	Document map[canvas.Partition][]canvas.LogEntry `json:"document"`
}

type stateReplacedPayload struct {
	UserID  string `json:"user_id"`
	Version int64  `json:"version"`
}

type rejectedPayload struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mustEnvelope(event string, data interface{}) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("{}")
	}
	out, _ := json.Marshal(Envelope{Event: event, Data: raw})
	return out
}
