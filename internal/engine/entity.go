// Package engine reconciles establishment listings from heterogeneous
// sources into a single deduplicated, change-tracked dataset. It is pure
// computation over in-memory collections: no I/O, no clocks, no errors.
// Malformed fields degrade to nil instead of failing a record.
package engine

// TimestampLayout renders sync timestamps as ISO-8601 with millisecond
// precision. Lexical comparison of two such strings orders them in time.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Entity is the canonical establishment record. Optional fields are nil when
// the source did not provide a usable value; a missing coordinate is nil,
// never zero, so it stays distinguishable from an establishment at 0,0.
type Entity struct {
	ID         string   `json:"id"`
	Name       *string  `json:"name,omitempty"`
	Address    *string  `json:"address,omitempty"`
	City       *string  `json:"city,omitempty"`
	Source     *string  `json:"source,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
	Categories []string `json:"categories"`
	Filter     []int    `json:"filter"`
	CreatedAt  *string  `json:"createdAt,omitempty"`
	UpdatedAt  string   `json:"updatedAt"`
	RemovedAt  *string  `json:"removedAt"`
}

// RawEntity is the loosely typed pre-canonical record emitted by a source
// adapter. Field values are whatever the upstream JSON carried; NormalizeShape
// coerces them into the canonical Entity shape.
type RawEntity struct {
	ID         string
	Name       any
	Address    any
	City       any
	Source     any
	Lat        any
	Lng        any
	Categories any
	Filter     any
	UpdatedAt  string
}

// DuplicatePair records two entities that share an identity key but failed
// the merge-compatibility check. Both sides are deep clones kept for operator
// review; the duplicate never enters the canonical set.
type DuplicatePair struct {
	Original  Entity `json:"original"`
	Duplicate Entity `json:"duplicate"`
}

// FieldChange describes one tracked field that differs between two snapshots
// of the same entity.
type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// ModificationEntry pairs the previous and current snapshot of a modified
// entity with its field-level diff.
type ModificationEntry struct {
	ID      string        `json:"id"`
	Before  Entity        `json:"before"`
	After   Entity        `json:"after"`
	Changes []FieldChange `json:"changes"`
}

// Changelog partitions one sync cycle's outcome against the prior snapshot.
type Changelog struct {
	Added    []Entity
	Removed  []Entity
	Modified []ModificationEntry
}

// Changelog record statuses. A cycle is written as pending before entity
// persistence starts and flipped to completed afterwards, so a crash
// mid-write leaves a detectable partial cycle. Only completed records feed
// the tombstone baseline.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Stats summarizes one sync cycle.
type Stats struct {
	Total      int `json:"total"`
	Added      int `json:"added"`
	Removed    int `json:"removed"`
	Modified   int `json:"modified"`
	Duplicates int `json:"duplicates"`
}

// ChangelogRecord is the persisted form of one sync cycle.
type ChangelogRecord struct {
	Date     string              `json:"date"`
	Status   string              `json:"status"`
	Added    []Entity            `json:"added"`
	Removed  []Entity            `json:"removed"`
	Modified []ModificationEntry `json:"modified"`
	Stats    Stats               `json:"stats"`
}

// Clone returns a deep copy: pointer fields and slices share no memory with
// the receiver.
func (e Entity) Clone() Entity {
	clone := e
	clone.Name = cloneStringPtr(e.Name)
	clone.Address = cloneStringPtr(e.Address)
	clone.City = cloneStringPtr(e.City)
	clone.Source = cloneStringPtr(e.Source)
	clone.Lat = cloneFloatPtr(e.Lat)
	clone.Lng = cloneFloatPtr(e.Lng)
	clone.CreatedAt = cloneStringPtr(e.CreatedAt)
	clone.RemovedAt = cloneStringPtr(e.RemovedAt)
	if e.Categories != nil {
		clone.Categories = append([]string(nil), e.Categories...)
	}
	if e.Filter != nil {
		clone.Filter = append([]int(nil), e.Filter...)
	}
	return clone
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
