package canvas

import (
	"time"
)

// ElementType identifies what kind of primitive sits on the canvas.
type ElementType string

const (
	TypeStroke ElementType = "stroke"
	TypeShape  ElementType = "shape"
	TypeText   ElementType = "text"
	TypeSticky ElementType = "sticky"
)

// Element is one drawable primitive. The payload is type-specific
// (points for a stroke, geometry for a shape, content for text/sticky)
// and is treated as opaque by everything except the clients.
type Element struct {
	ID        string                 `json:"id"`
	Type      ElementType            `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedBy string                 `json:"created_by"`
	Timestamp time.Time              `json:"timestamp"`
}

// State is the authoritative mirror of a room's canvas used by the
// non-CRDT operation path. Only the Reducer mutates it.
type State struct {
	Elements       []Element              `json:"elements"`
	Background     string                 `json:"background"`
	Zoom           float64                `json:"zoom"`
	Viewport       map[string]interface{} `json:"viewport"`
	Version        int64                  `json:"version"`
	LastModifiedBy string                 `json:"last_modified_by"`
	LastModified   time.Time              `json:"last_modified"`
}

// NewState returns an empty canvas at version 0.
func NewState() *State {
	return &State{
		Elements: make([]Element, 0),
		Zoom:     1.0,
	}
}

// OpKind enumerates the incremental mutations. Keeping this a closed set
// (instead of dispatching on raw event strings) lets the reducer switch
// exhaustively.
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
	OpClear  OpKind = "clear"
)

// Operation is a single incremental mutation against State.Elements.
// Operations are transient: applied in arrival order, then discarded.
type Operation struct {
	Kind       OpKind                 `json:"kind"`
	TargetID   string                 `json:"target_id,omitempty"`
	Element    *Element               `json:"element,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OriginUser string                 `json:"origin_user"`
}

// FullState is the input shape for a whole-canvas replacement.
type FullState struct {
	Elements        []Element              `json:"elements"`
	Background      string                 `json:"background"`
	Zoom            float64                `json:"zoom"`
	Viewport        map[string]interface{} `json:"viewport"`
	ExpectedVersion int64                  `json:"expected_version"`
}
