package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/YouuSer/certified/internal/engine"
)

// ReplaceDuplicatePairs swaps the duplicate review queue for the latest
// sync's pairs in one transaction. Pairs from earlier syncs are superseded:
// anything still conflicting shows up again in the new set.
func (p *Pool) ReplaceDuplicatePairs(ctx context.Context, syncDate string, pairs []engine.DuplicatePair) error {
	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return fmt.Errorf("begin duplicate pairs transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM certified.duplicate_pairs`); err != nil {
		return fmt.Errorf("clear duplicate pairs: %w", err)
	}

	const q = `
INSERT INTO certified.duplicate_pairs (sync_date, original, duplicate)
VALUES ($1, $2, $3)
`
	for _, pair := range pairs {
		original, err := json.Marshal(pair.Original)
		if err != nil {
			return fmt.Errorf("marshal original entity: %w", err)
		}
		duplicate, err := json.Marshal(pair.Duplicate)
		if err != nil {
			return fmt.Errorf("marshal duplicate entity: %w", err)
		}
		if _, err := tx.Exec(ctx, q, syncDate, original, duplicate); err != nil {
			return fmt.Errorf("insert duplicate pair: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit duplicate pairs transaction: %w", err)
	}
	return nil
}

// ListDuplicatePairs returns the current review queue.
func (p *Pool) ListDuplicatePairs(ctx context.Context) ([]engine.DuplicatePair, error) {
	const q = `
SELECT original, duplicate
FROM certified.duplicate_pairs
ORDER BY duplicate_pair_id
`
	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list duplicate pairs: %w", err)
	}
	defer rows.Close()

	var pairs []engine.DuplicatePair
	for rows.Next() {
		var (
			pair      engine.DuplicatePair
			original  []byte
			duplicate []byte
		)
		if err := rows.Scan(&original, &duplicate); err != nil {
			return nil, fmt.Errorf("scan duplicate pair: %w", err)
		}
		if err := json.Unmarshal(original, &pair.Original); err != nil {
			return nil, fmt.Errorf("decode original entity: %w", err)
		}
		if err := json.Unmarshal(duplicate, &pair.Duplicate); err != nil {
			return nil, fmt.Errorf("decode duplicate entity: %w", err)
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate pairs: %w", err)
	}
	return pairs, nil
}
