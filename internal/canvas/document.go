package canvas

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Partition names one of the type-partitioned logs inside a Document.
// Each primitive kind appends to its own log, so two users adding
// different things never contend for the same position.
type Partition string

const (
	PartDrawings Partition = "drawings"
	PartShapes   Partition = "shapes"
	PartTexts    Partition = "texts"
	PartStickies Partition = "stickies"
)

// LogEntry is one immutable append to a partition log. The (Lamport,
// Site, ID) triple gives every entry a total order that all replicas
// agree on, which is what makes EncodeState deterministic.
type LogEntry struct {
	ID      string          `json:"id"`
	Site    string          `json:"site"`
	Lamport uint64          `json:"lamport"`
	Part    Partition       `json:"part"`
	Author  string          `json:"author"`
	Payload json.RawMessage `json:"payload"`
}

// Document is the conflict-free replicated log set behind a room's
// drawing surface. Replicas converge because the entry set is grow-only
// and merging is a union keyed by entry ID: order and duplication of
// incoming updates cannot change the final set.
type Document struct {
	mu      sync.RWMutex
	site    string
	clock   uint64
	entries map[string]LogEntry
}

// NewDocument creates an empty replica. The site id disambiguates
// entries created concurrently with the same Lamport value.
func NewDocument(site string) *Document {
	return &Document{
		site:    site,
		entries: make(map[string]LogEntry),
	}
}

// ApplyLocal records a change made on this replica and returns the
// encoded update to broadcast to the other replicas.
func (d *Document) ApplyLocal(part Partition, id, author string, payload json.RawMessage) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.clock++
	entry := LogEntry{
		ID:      id,
		Site:    d.site,
		Lamport: d.clock,
		Part:    part,
		Author:  author,
		Payload: payload,
	}
	d.entries[entry.ID] = entry

	update, err := json.Marshal([]LogEntry{entry})
	if err != nil {
		return nil, fmt.Errorf("canvas: encode local update: %w", err)
	}
	return update, nil
}

// Merge folds a remote update into this replica. Updates may arrive out
// of order or more than once; both are harmless because entries are
// keyed by ID and never change after creation.
func (d *Document) Merge(update []byte) error {
	var entries []LogEntry
	if err := json.Unmarshal(update, &entries); err != nil {
		return fmt.Errorf("canvas: decode update: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if _, seen := d.entries[e.ID]; !seen {
			d.entries[e.ID] = e
		}
		if e.Lamport > d.clock {
			d.clock = e.Lamport
		}
	}
	return nil
}

// EncodeState serializes the whole replica. Two replicas holding the
// same entry set produce byte-identical output regardless of the order
// the entries arrived in.
func (d *Document) EncodeState() ([]byte, error) {
	d.mu.RLock()
	all := make([]LogEntry, 0, len(d.entries))
	for _, e := range d.entries {
		all = append(all, e)
	}
	d.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Lamport != all[j].Lamport {
			return all[i].Lamport < all[j].Lamport
		}
		if all[i].Site != all[j].Site {
			return all[i].Site < all[j].Site
		}
		return all[i].ID < all[j].ID
	})

	data, err := json.Marshal(all)
	if err != nil {
		return nil, fmt.Errorf("canvas: encode state: %w", err)
	}
	return data, nil
}

// Entries returns the materialized log for one partition in the agreed
// total order. Used to seed a newly joined client.
func (d *Document) Entries(part Partition) []LogEntry {
	d.mu.RLock()
	out := make([]LogEntry, 0)
	for _, e := range d.entries {
		if e.Part == part {
			out = append(out, e)
		}
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Lamport != out[j].Lamport {
			return out[i].Lamport < out[j].Lamport
		}
		if out[i].Site != out[j].Site {
			return out[i].Site < out[j].Site
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len reports the total number of entries across all partitions.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
