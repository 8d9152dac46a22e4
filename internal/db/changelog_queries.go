package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/YouuSer/certified/internal/engine"
)

// InsertChangelog records a sync's diff with status pending and returns the
// row id. The caller marks it completed once the snapshot write lands; a
// pending row left behind marks an interrupted sync and is excluded from
// tombstone replay.
func (p *Pool) InsertChangelog(ctx context.Context, record engine.ChangelogRecord) (int64, error) {
	added, err := marshalJSONColumn(record.Added)
	if err != nil {
		return 0, fmt.Errorf("marshal added: %w", err)
	}
	removed, err := marshalJSONColumn(record.Removed)
	if err != nil {
		return 0, fmt.Errorf("marshal removed: %w", err)
	}
	modified, err := marshalJSONColumn(record.Modified)
	if err != nil {
		return 0, fmt.Errorf("marshal modified: %w", err)
	}
	stats, err := json.Marshal(record.Stats)
	if err != nil {
		return 0, fmt.Errorf("marshal stats: %w", err)
	}

	const q = `
INSERT INTO certified.changelog_entries (date, status, added, removed, modified, stats)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING changelog_id
`

	var id int64
	if err := p.QueryRow(ctx, q, record.Date, engine.StatusPending, added, removed, modified, stats).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert changelog entry: %w", err)
	}
	return id, nil
}

// CompleteChangelog flips a pending entry to completed.
func (p *Pool) CompleteChangelog(ctx context.Context, changelogID int64) error {
	const q = `
UPDATE certified.changelog_entries
SET status = $1
WHERE changelog_id = $2
`
	tag, err := p.Exec(ctx, q, engine.StatusCompleted, changelogID)
	if err != nil {
		return fmt.Errorf("complete changelog entry %d: %w", changelogID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("changelog entry %d not found", changelogID)
	}
	return nil
}

// ListChangelog returns every entry ordered oldest first, the order the
// tombstone replay consumes.
func (p *Pool) ListChangelog(ctx context.Context) ([]engine.ChangelogRecord, error) {
	return p.listChangelog(ctx, "ASC", 0)
}

// ListRecentChangelog returns the newest entries first, capped at limit.
func (p *Pool) ListRecentChangelog(ctx context.Context, limit int) ([]engine.ChangelogRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	return p.listChangelog(ctx, "DESC", limit)
}

func (p *Pool) listChangelog(ctx context.Context, order string, limit int) ([]engine.ChangelogRecord, error) {
	q := fmt.Sprintf(`
SELECT date, status, added, removed, modified, stats
FROM certified.changelog_entries
ORDER BY date %s
`, order)
	args := []any{}
	if limit > 0 {
		q += "LIMIT $1"
		args = append(args, limit)
	}

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list changelog entries: %w", err)
	}
	defer rows.Close()

	var records []engine.ChangelogRecord
	for rows.Next() {
		var (
			record   engine.ChangelogRecord
			added    []byte
			removed  []byte
			modified []byte
			stats    []byte
		)
		if err := rows.Scan(&record.Date, &record.Status, &added, &removed, &modified, &stats); err != nil {
			return nil, fmt.Errorf("scan changelog entry: %w", err)
		}
		if err := json.Unmarshal(added, &record.Added); err != nil {
			return nil, fmt.Errorf("decode added for %s: %w", record.Date, err)
		}
		if err := json.Unmarshal(removed, &record.Removed); err != nil {
			return nil, fmt.Errorf("decode removed for %s: %w", record.Date, err)
		}
		if err := json.Unmarshal(modified, &record.Modified); err != nil {
			return nil, fmt.Errorf("decode modified for %s: %w", record.Date, err)
		}
		if err := json.Unmarshal(stats, &record.Stats); err != nil {
			return nil, fmt.Errorf("decode stats for %s: %w", record.Date, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changelog entries: %w", err)
	}
	return records, nil
}
