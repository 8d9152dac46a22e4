package db

import (
	"context"
	"database/sql"
	"fmt"
)

// SnapshotStats is the read model behind the stats endpoint.
type SnapshotStats struct {
	ActiveEstablishments  int            `json:"active_establishments"`
	RemovedEstablishments int            `json:"removed_establishments"`
	BySource              map[string]int `json:"by_source"`
	DuplicatePairs        int            `json:"duplicate_pairs"`
	ChangelogEntries      int            `json:"changelog_entries"`
	LastSyncDate          *string        `json:"last_sync_date,omitempty"`
	LastSyncStatus        *string        `json:"last_sync_status,omitempty"`
}

// SnapshotStats aggregates counts over the stored snapshot and changelog.
func (p *Pool) SnapshotStats(ctx context.Context) (SnapshotStats, error) {
	stats := SnapshotStats{BySource: map[string]int{}}

	const countsQ = `
SELECT
	COUNT(*) FILTER (WHERE removed_at IS NULL),
	COUNT(*) FILTER (WHERE removed_at IS NOT NULL),
	(SELECT COUNT(*) FROM certified.duplicate_pairs),
	(SELECT COUNT(*) FROM certified.changelog_entries)
FROM certified.establishments
`
	if err := p.QueryRow(ctx, countsQ).Scan(
		&stats.ActiveEstablishments,
		&stats.RemovedEstablishments,
		&stats.DuplicatePairs,
		&stats.ChangelogEntries,
	); err != nil {
		return SnapshotStats{}, fmt.Errorf("aggregate snapshot counts: %w", err)
	}

	const sourceQ = `
SELECT COALESCE(source, 'unknown'), COUNT(*)
FROM certified.establishments
WHERE removed_at IS NULL
GROUP BY COALESCE(source, 'unknown')
`
	rows, err := p.Query(ctx, sourceQ)
	if err != nil {
		return SnapshotStats{}, fmt.Errorf("aggregate source counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			source string
			count  int
		)
		if err := rows.Scan(&source, &count); err != nil {
			return SnapshotStats{}, fmt.Errorf("scan source count: %w", err)
		}
		stats.BySource[source] = count
	}
	if err := rows.Err(); err != nil {
		return SnapshotStats{}, fmt.Errorf("iterate source counts: %w", err)
	}

	const lastSyncQ = `
SELECT date, status
FROM certified.changelog_entries
ORDER BY date DESC
LIMIT 1
`
	var (
		lastDate   sql.NullString
		lastStatus sql.NullString
	)
	err = p.QueryRow(ctx, lastSyncQ).Scan(&lastDate, &lastStatus)
	switch {
	case err == nil:
		stats.LastSyncDate = nullableString(lastDate)
		stats.LastSyncStatus = nullableString(lastStatus)
	case IsNoRows(err):
	default:
		return SnapshotStats{}, fmt.Errorf("read last sync: %w", err)
	}

	return stats, nil
}
