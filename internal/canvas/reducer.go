package canvas

import (
	"errors"
	"time"
)

// ErrVersionConflict is returned when a full-state replacement carries a
// stale expected version. The caller should surface a conflict to the
// origin client and leave the state untouched.
var ErrVersionConflict = errors.New("canvas: state version conflict")

// Reducer applies validated mutations to a room's authoritative canvas
// state. It never does I/O and never blocks — callers are expected to run
// it inside the room's task loop so operations for one room never
// interleave.
type Reducer struct{}

// ApplyOps folds a batch of incremental operations into the state, in
// array order. The version counter is deliberately NOT bumped here:
// incremental ops are the low-latency drawing path and clients do not
// fence on version for them.
func (Reducer) ApplyOps(s *State, ops []Operation) {
	for _, op := range ops {
		switch op.Kind {
		case OpAdd:
			if op.Element != nil {
				s.Elements = append(s.Elements, *op.Element)
			}
		case OpUpdate:
			for i := range s.Elements {
				if s.Elements[i].ID == op.TargetID {
					mergePayload(&s.Elements[i], op.Payload)
					break
				}
			}
			// Unknown target is a no-op: the element may have been
			// deleted by an earlier op in the same batch.
		case OpDelete:
			for i := range s.Elements {
				if s.Elements[i].ID == op.TargetID {
					s.Elements = append(s.Elements[:i], s.Elements[i+1:]...)
					break
				}
			}
		case OpClear:
			s.Elements = make([]Element, 0)
		}
	}
}

// ReplaceState swaps in a full canvas snapshot from a client. The caller
// must supply the version it last saw; a stale value means another client
// replaced the state in between, and we reject instead of silently
// overwriting their work.
func (Reducer) ReplaceState(s *State, full FullState, userID string) error {
	if full.ExpectedVersion != s.Version {
		return ErrVersionConflict
	}

	s.Elements = full.Elements
	if s.Elements == nil {
		s.Elements = make([]Element, 0)
	}
	s.Background = full.Background
	if full.Zoom != 0 {
		s.Zoom = full.Zoom
	}
	s.Viewport = full.Viewport
	s.Version++
	s.LastModifiedBy = userID
	s.LastModified = time.Now().UTC()
	return nil
}

func mergePayload(el *Element, patch map[string]interface{}) {
	if el.Payload == nil {
		el.Payload = make(map[string]interface{}, len(patch))
	}
	for k, v := range patch {
		el.Payload[k] = v
	}
}
