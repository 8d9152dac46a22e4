// Package refresh orchestrates one reconciliation run: fetch both sources,
// canonicalize, merge, diff against the stored snapshot, and persist the
// result with its changelog entry.
package refresh

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/YouuSer/certified/internal/engine"
	"github.com/YouuSer/certified/internal/globaltime"
)

// Store is the persistence surface a run needs.
type Store interface {
	ListEntities(ctx context.Context, includeRemoved bool) ([]engine.Entity, error)
	UpsertEntities(ctx context.Context, entities []engine.Entity) error
	InsertChangelog(ctx context.Context, record engine.ChangelogRecord) (int64, error)
	CompleteChangelog(ctx context.Context, changelogID int64) error
	ListChangelog(ctx context.Context) ([]engine.ChangelogRecord, error)
	ReplaceDuplicatePairs(ctx context.Context, syncDate string, pairs []engine.DuplicatePair) error
}

// Fetcher retrieves the full pre-canonical batch from all upstream sources.
type Fetcher interface {
	FetchAll(ctx context.Context, syncTimestamp string) ([]engine.RawEntity, error)
}

type Service struct {
	store   Store
	fetcher Fetcher
	logger  zerolog.Logger
}

func NewService(store Store, fetcher Fetcher, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Result summarizes one completed run.
type Result struct {
	Date  string       `json:"date"`
	Stats engine.Stats `json:"stats"`
}

// Run executes a full sync. The changelog entry is written as pending before
// the snapshot and marked completed after, so an interrupted run is visible
// and excluded from tombstone replay. On any error nothing later in the
// sequence is written.
func (s *Service) Run(ctx context.Context) (Result, error) {
	if s == nil || s.store == nil || s.fetcher == nil {
		return Result{}, fmt.Errorf("refresh service is not initialized")
	}

	syncDate := globaltime.Stamp()
	logger := s.logger.With().Str("sync_date", syncDate).Logger()
	logger.Info().Msg("starting refresh run")

	raw, err := s.fetcher.FetchAll(ctx, syncDate)
	if err != nil {
		return Result{}, fmt.Errorf("fetch sources: %w", err)
	}
	logger.Info().Int("raw_records", len(raw)).Msg("fetched all source partitions")

	candidates := make([]engine.Entity, 0, len(raw))
	for _, r := range raw {
		candidates = append(candidates, engine.NormalizeShape(r))
	}

	deduplicated, duplicatePairs := engine.Deduplicate(candidates)
	logger.Info().
		Int("candidates", len(candidates)).
		Int("deduplicated", len(deduplicated)).
		Int("duplicate_pairs", len(duplicatePairs)).
		Msg("merged same-key entities")

	previous, err := s.store.ListEntities(ctx, true)
	if err != nil {
		return Result{}, fmt.Errorf("load previous snapshot: %w", err)
	}

	stamped, changelog := engine.ComputeChangelog(deduplicated, previous, syncDate)

	history, err := s.store.ListChangelog(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load changelog history: %w", err)
	}
	changelog.Removed = engine.FilterTombstonedRemovals(changelog.Removed, history)

	stats := engine.Stats{
		Total:      len(stamped),
		Added:      len(changelog.Added),
		Removed:    len(changelog.Removed),
		Modified:   len(changelog.Modified),
		Duplicates: len(duplicatePairs),
	}

	record := engine.ChangelogRecord{
		Date:     syncDate,
		Status:   engine.StatusPending,
		Added:    changelog.Added,
		Removed:  changelog.Removed,
		Modified: changelog.Modified,
		Stats:    stats,
	}
	changelogID, err := s.store.InsertChangelog(ctx, record)
	if err != nil {
		return Result{}, fmt.Errorf("record changelog entry: %w", err)
	}

	snapshot := make([]engine.Entity, 0, len(stamped)+len(changelog.Removed))
	snapshot = append(snapshot, stamped...)
	snapshot = append(snapshot, changelog.Removed...)
	if err := s.store.UpsertEntities(ctx, snapshot); err != nil {
		return Result{}, fmt.Errorf("persist snapshot: %w", err)
	}

	if err := s.store.ReplaceDuplicatePairs(ctx, syncDate, duplicatePairs); err != nil {
		return Result{}, fmt.Errorf("persist duplicate pairs: %w", err)
	}

	if err := s.store.CompleteChangelog(ctx, changelogID); err != nil {
		return Result{}, fmt.Errorf("complete changelog entry: %w", err)
	}

	logger.Info().
		Int("total", stats.Total).
		Int("added", stats.Added).
		Int("removed", stats.Removed).
		Int("modified", stats.Modified).
		Int("duplicates", stats.Duplicates).
		Msg("refresh run completed")

	return Result{Date: syncDate, Stats: stats}, nil
}
