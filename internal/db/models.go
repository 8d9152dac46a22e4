package db

import (
	"encoding/json"
	"time"
)

// Establishment maps certified.establishments. Timestamps are stored as the
// ISO-8601 text the engine compares lexically, not as timestamptz, so the
// stored value round-trips byte for byte.
type Establishment struct {
	ID         string          `gorm:"column:id;type:text;primaryKey"`
	Name       *string         `gorm:"column:name;type:text"`
	Address    *string         `gorm:"column:address;type:text"`
	City       *string         `gorm:"column:city;type:text"`
	Source     *string         `gorm:"column:source;type:text"`
	Lat        *float64        `gorm:"column:lat;type:double precision"`
	Lng        *float64        `gorm:"column:lng;type:double precision"`
	Categories json.RawMessage `gorm:"column:categories;type:jsonb"`
	Filter     json.RawMessage `gorm:"column:filter;type:jsonb"`
	CreatedAt  *string         `gorm:"column:created_at;type:text"`
	UpdatedAt  string          `gorm:"column:updated_at;type:text;not null"`
	RemovedAt  *string         `gorm:"column:removed_at;type:text"`
}

func (Establishment) TableName() string { return "certified.establishments" }

// ChangelogEntry maps certified.changelog_entries. Entries are written with
// status pending before the snapshot is persisted and completed after, so a
// crash between the two leaves a visible marker.
type ChangelogEntry struct {
	ChangelogID int64           `gorm:"column:changelog_id;primaryKey;autoIncrement"`
	Date        string          `gorm:"column:date;type:text;not null;unique"`
	Status      string          `gorm:"column:status;type:text;not null;default:pending"`
	Added       json.RawMessage `gorm:"column:added;type:jsonb;not null"`
	Removed     json.RawMessage `gorm:"column:removed;type:jsonb;not null"`
	Modified    json.RawMessage `gorm:"column:modified;type:jsonb;not null"`
	Stats       json.RawMessage `gorm:"column:stats;type:jsonb;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ChangelogEntry) TableName() string { return "certified.changelog_entries" }

// DuplicatePairRow maps certified.duplicate_pairs, the review queue of
// same-key entities the merge stage refused to combine. Replaced wholesale
// on every sync.
type DuplicatePairRow struct {
	DuplicatePairID int64           `gorm:"column:duplicate_pair_id;primaryKey;autoIncrement"`
	SyncDate        string          `gorm:"column:sync_date;type:text;not null"`
	Original        json.RawMessage `gorm:"column:original;type:jsonb;not null"`
	Duplicate       json.RawMessage `gorm:"column:duplicate;type:jsonb;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (DuplicatePairRow) TableName() string { return "certified.duplicate_pairs" }

func autoMigrateModels() []any {
	return []any{
		&Establishment{},
		&ChangelogEntry{},
		&DuplicatePairRow{},
	}
}
