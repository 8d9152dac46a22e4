package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/YouuSer/certified/internal/engine"
	"github.com/YouuSer/certified/internal/globaltime"
)

type stubStore struct {
	entities  []engine.Entity
	changelog []engine.ChangelogRecord

	upserted      []engine.Entity
	inserted      []engine.ChangelogRecord
	completedIDs  []int64
	replacedPairs []engine.DuplicatePair
	replacedDate  string

	insertErr error
	upsertErr error
}

func (s *stubStore) ListEntities(_ context.Context, includeRemoved bool) ([]engine.Entity, error) {
	if includeRemoved {
		return s.entities, nil
	}
	var active []engine.Entity
	for _, e := range s.entities {
		if e.RemovedAt == nil {
			active = append(active, e)
		}
	}
	return active, nil
}

func (s *stubStore) UpsertEntities(_ context.Context, entities []engine.Entity) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserted = entities
	return nil
}

func (s *stubStore) InsertChangelog(_ context.Context, record engine.ChangelogRecord) (int64, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.inserted = append(s.inserted, record)
	return int64(len(s.inserted)), nil
}

func (s *stubStore) CompleteChangelog(_ context.Context, changelogID int64) error {
	s.completedIDs = append(s.completedIDs, changelogID)
	return nil
}

func (s *stubStore) ListChangelog(_ context.Context) ([]engine.ChangelogRecord, error) {
	return s.changelog, nil
}

func (s *stubStore) ReplaceDuplicatePairs(_ context.Context, syncDate string, pairs []engine.DuplicatePair) error {
	s.replacedDate = syncDate
	s.replacedPairs = pairs
	return nil
}

type stubFetcher struct {
	raw []engine.RawEntity
	err error
}

func (f *stubFetcher) FetchAll(_ context.Context, syncTimestamp string) ([]engine.RawEntity, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]engine.RawEntity, len(f.raw))
	copy(out, f.raw)
	for i := range out {
		out[i].UpdatedAt = syncTimestamp
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func TestRunFirstSync(t *testing.T) {
	globaltime.SetMockTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := &stubStore{}
	fetcher := &stubFetcher{raw: []engine.RawEntity{
		{ID: "ach-1", Name: "Le Gourmet", City: "Paris", Source: "Achahada", Lat: "48.8566", Lng: "2.3522", Categories: []any{"Restaurant"}, Filter: []any{1}},
		{ID: "avs-1", Name: "Le Gourmet", City: "Paris", Source: "AVS", Lat: "48.8566", Lng: "2.3522", Categories: []any{"Restaurant"}, Filter: []any{1}},
		{ID: "ach-2", Name: "Boucherie Amine", City: "Lyon", Source: "Achahada", Lat: "45.7640", Lng: "4.8357", Categories: []any{"Boucherie"}, Filter: []any{2}},
	}}

	result, err := NewService(store, fetcher, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Date != "2024-03-01T12:00:00.000Z" {
		t.Fatalf("sync date = %q", result.Date)
	}
	if result.Stats.Total != 2 {
		t.Fatalf("total = %d, want 2 (cross-source same-key pair is flagged, incoming discarded)", result.Stats.Total)
	}
	if result.Stats.Added != 2 || result.Stats.Removed != 0 || result.Stats.Modified != 0 {
		t.Fatalf("stats = %+v", result.Stats)
	}
	if result.Stats.Duplicates != 1 {
		t.Fatalf("duplicates = %d, want 1 flagged pair", result.Stats.Duplicates)
	}

	if len(store.inserted) != 1 {
		t.Fatalf("inserted changelog entries = %d", len(store.inserted))
	}
	entry := store.inserted[0]
	if entry.Status != engine.StatusPending {
		t.Fatalf("changelog inserted with status %q, want pending", entry.Status)
	}
	if len(store.completedIDs) != 1 || store.completedIDs[0] != 1 {
		t.Fatalf("completed ids = %v", store.completedIDs)
	}

	if len(store.upserted) != 2 {
		t.Fatalf("upserted = %d entities", len(store.upserted))
	}
	for _, e := range store.upserted {
		if e.UpdatedAt != result.Date {
			t.Fatalf("entity %s updatedAt = %q", e.ID, e.UpdatedAt)
		}
		if e.CreatedAt == nil || *e.CreatedAt != result.Date {
			t.Fatalf("entity %s createdAt = %v", e.ID, e.CreatedAt)
		}
		if e.RemovedAt != nil {
			t.Fatalf("entity %s unexpectedly removed", e.ID)
		}
	}

	if store.replacedDate != result.Date {
		t.Fatalf("duplicate pairs replaced for %q", store.replacedDate)
	}
	if len(store.replacedPairs) != 1 {
		t.Fatalf("replaced pairs = %d", len(store.replacedPairs))
	}
}

func TestRunMergesSameSourceDuplicates(t *testing.T) {
	globaltime.SetMockTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := &stubStore{}
	fetcher := &stubFetcher{raw: []engine.RawEntity{
		{ID: "ach-1", Name: "Le Gourmet", City: "Paris", Source: "Achahada", Lat: "48.8566", Lng: "2.3522", Categories: []any{"Restaurant"}, Filter: []any{1}},
		{ID: "ach-9", Name: "Le Gourmet", City: "Paris", Source: "Achahada", Lat: "48.8566", Lng: "2.3522", Categories: []any{"Boucherie"}, Filter: []any{2}},
	}}

	result, err := NewService(store, fetcher, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Stats.Total != 1 {
		t.Fatalf("total = %d, want 1 merged entity", result.Stats.Total)
	}
	if result.Stats.Duplicates != 0 {
		t.Fatalf("duplicates = %d, compatible entities merge silently", result.Stats.Duplicates)
	}
	merged := store.upserted[0]
	if len(merged.Categories) != 2 || len(merged.Filter) != 2 {
		t.Fatalf("merged categories=%v filter=%v", merged.Categories, merged.Filter)
	}
}

func TestRunRemovalAndTombstoneSuppression(t *testing.T) {
	globaltime.SetMockTime(time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	previousDate := "2024-03-01T12:00:00.000Z"
	gone := engine.Entity{
		ID:        "ach-gone",
		Name:      strPtr("Ferme"),
		Source:    strPtr("Achahada"),
		CreatedAt: strPtr(previousDate),
		UpdatedAt: previousDate,
	}
	kept := engine.Entity{
		ID:        "ach-1",
		Name:      strPtr("Le Gourmet"),
		Source:    strPtr("Achahada"),
		CreatedAt: strPtr(previousDate),
		UpdatedAt: previousDate,
	}

	store := &stubStore{entities: []engine.Entity{kept, gone}}
	fetcher := &stubFetcher{raw: []engine.RawEntity{
		{ID: "ach-1", Name: "Le Gourmet", Source: "Achahada"},
	}}

	result, err := NewService(store, fetcher, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Stats.Removed != 1 {
		t.Fatalf("first disappearance must report removal, stats = %+v", result.Stats)
	}

	var tombstone *engine.Entity
	for i := range store.upserted {
		if store.upserted[i].ID == "ach-gone" {
			tombstone = &store.upserted[i]
		}
	}
	if tombstone == nil {
		t.Fatal("removed entity must be persisted as a tombstone row")
	}
	if tombstone.RemovedAt == nil || *tombstone.RemovedAt != result.Date {
		t.Fatalf("tombstone removedAt = %v", tombstone.RemovedAt)
	}

	// Second run: same state, removal already on record. The tombstone
	// filter must keep it out of the new changelog.
	globaltime.SetMockTime(time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC))
	store2 := &stubStore{
		entities: append([]engine.Entity{kept}, *tombstone),
		changelog: []engine.ChangelogRecord{{
			Date:    result.Date,
			Status:  engine.StatusCompleted,
			Removed: []engine.Entity{*tombstone},
		}},
	}

	result2, err := NewService(store2, fetcher, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if result2.Stats.Removed != 0 {
		t.Fatalf("already-reported removal must be suppressed, stats = %+v", result2.Stats)
	}
	for _, e := range store2.upserted {
		if e.ID == "ach-gone" {
			t.Fatal("suppressed removal must not be re-upserted")
		}
	}
}

func TestRunFetchFailureWritesNothing(t *testing.T) {
	store := &stubStore{}
	fetcher := &stubFetcher{err: errors.New("upstream down")}

	if _, err := NewService(store, fetcher, zerolog.Nop()).Run(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if len(store.inserted) != 0 || store.upserted != nil {
		t.Fatal("nothing may be written when fetch fails")
	}
}

func TestRunChangelogInsertFailureStopsRun(t *testing.T) {
	store := &stubStore{insertErr: errors.New("insert failed")}
	fetcher := &stubFetcher{raw: []engine.RawEntity{
		{ID: "ach-1", Name: "Le Gourmet", Source: "Achahada"},
	}}

	if _, err := NewService(store, fetcher, zerolog.Nop()).Run(context.Background()); err == nil {
		t.Fatal("expected insert error")
	}
	if store.upserted != nil {
		t.Fatal("snapshot must not be written when the changelog insert fails")
	}
	if len(store.completedIDs) != 0 {
		t.Fatal("no entry to complete")
	}
}
