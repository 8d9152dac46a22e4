package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/YouuSer/certified/internal/engine"
)

// ListEntities returns the stored snapshot. With includeRemoved the result
// contains tombstoned rows too; the reconciliation run always reads the full
// set so removals already reported are not re-detected.
func (p *Pool) ListEntities(ctx context.Context, includeRemoved bool) ([]engine.Entity, error) {
	q := `
SELECT id, name, address, city, source, lat, lng, categories, filter, created_at, updated_at, removed_at
FROM certified.establishments
`
	if !includeRemoved {
		q += "WHERE removed_at IS NULL\n"
	}
	q += "ORDER BY id"

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list establishments: %w", err)
	}
	defer rows.Close()

	var entities []engine.Entity
	for rows.Next() {
		entity, err := scanEstablishment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan establishment: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate establishments: %w", err)
	}
	return entities, nil
}

// UpsertEntities writes the post-sync snapshot in one transaction. Rows keep
// their id as the conflict key; removed entities arrive with removed_at set
// and stay in the table as tombstones.
func (p *Pool) UpsertEntities(ctx context.Context, entities []engine.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `
INSERT INTO certified.establishments
	(id, name, address, city, source, lat, lng, categories, filter, created_at, updated_at, removed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	address = EXCLUDED.address,
	city = EXCLUDED.city,
	source = EXCLUDED.source,
	lat = EXCLUDED.lat,
	lng = EXCLUDED.lng,
	categories = EXCLUDED.categories,
	filter = EXCLUDED.filter,
	created_at = EXCLUDED.created_at,
	updated_at = EXCLUDED.updated_at,
	removed_at = EXCLUDED.removed_at
`

	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		categories, err := marshalJSONColumn(e.Categories)
		if err != nil {
			return fmt.Errorf("marshal categories for %s: %w", e.ID, err)
		}
		filter, err := marshalJSONColumn(e.Filter)
		if err != nil {
			return fmt.Errorf("marshal filter for %s: %w", e.ID, err)
		}
		if _, err := tx.Exec(ctx, q,
			e.ID, e.Name, e.Address, e.City, e.Source, e.Lat, e.Lng,
			categories, filter, e.CreatedAt, e.UpdatedAt, e.RemovedAt,
		); err != nil {
			return fmt.Errorf("upsert establishment %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert transaction: %w", err)
	}
	return nil
}

func scanEstablishment(rows *Rows) (engine.Entity, error) {
	var (
		e          engine.Entity
		name       sql.NullString
		address    sql.NullString
		city       sql.NullString
		source     sql.NullString
		lat        sql.NullFloat64
		lng        sql.NullFloat64
		categories []byte
		filter     []byte
		createdAt  sql.NullString
		removedAt  sql.NullString
	)

	if err := rows.Scan(
		&e.ID, &name, &address, &city, &source, &lat, &lng,
		&categories, &filter, &createdAt, &e.UpdatedAt, &removedAt,
	); err != nil {
		return engine.Entity{}, err
	}

	e.Name = nullableString(name)
	e.Address = nullableString(address)
	e.City = nullableString(city)
	e.Source = nullableString(source)
	e.Lat = nullableFloat(lat)
	e.Lng = nullableFloat(lng)
	e.CreatedAt = nullableString(createdAt)
	e.RemovedAt = nullableString(removedAt)

	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &e.Categories); err != nil {
			return engine.Entity{}, fmt.Errorf("decode categories: %w", err)
		}
	}
	if len(filter) > 0 {
		if err := json.Unmarshal(filter, &e.Filter); err != nil {
			return engine.Entity{}, fmt.Errorf("decode filter: %w", err)
		}
	}
	return e, nil
}

func marshalJSONColumn(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte("[]"), nil
	}
	return b, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
