package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/YouuSer/certified/internal/auth"
	"github.com/YouuSer/certified/internal/db"
	"github.com/YouuSer/certified/internal/engine"
	"github.com/YouuSer/certified/internal/globaltime"
	"github.com/YouuSer/certified/internal/refresh"
)

type fakeStore struct {
	entities      []engine.Entity
	changelog     []engine.ChangelogRecord
	pairs         []engine.DuplicatePair
	stats         db.SnapshotStats
	listCalls     int
	lastIncludeRm bool
}

func (s *fakeStore) ListEntities(_ context.Context, includeRemoved bool) ([]engine.Entity, error) {
	s.listCalls++
	s.lastIncludeRm = includeRemoved
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

func (s *fakeStore) ListRecentChangelog(_ context.Context, limit int) ([]engine.ChangelogRecord, error) {
	if limit < len(s.changelog) {
		return s.changelog[:limit], nil
	}
	return s.changelog, nil
}

func (s *fakeStore) ListDuplicatePairs(_ context.Context) ([]engine.DuplicatePair, error) {
	return s.pairs, nil
}

func (s *fakeStore) SnapshotStats(_ context.Context) (db.SnapshotStats, error) {
	return s.stats, nil
}

type fakeRefresher struct {
	runs int
	err  error
}

func (r *fakeRefresher) Run(_ context.Context) (refresh.Result, error) {
	r.runs++
	if r.err != nil {
		return refresh.Result{}, r.err
	}
	return refresh.Result{Date: "2024-03-01T12:00:00.000Z"}, nil
}

func strPtr(s string) *string { return &s }

func newTestServer(store Store, refresher Refresher, opts Options) *Server {
	return NewServer(store, refresher, zerolog.Nop(), opts)
}

func doRequest(s *Server, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = s.httpErrorHandler
	s.registerRoutes(e)

	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeJSend(t *testing.T, rec *httptest.ResponseRecorder) jsendResponse {
	t.Helper()
	var resp jsendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestEstablishmentsRefreshesStaleSnapshot(t *testing.T) {
	globaltime.SetMockTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := &fakeStore{entities: []engine.Entity{
		{ID: "ach-1", Name: strPtr("Le Gourmet"), UpdatedAt: "2024-03-01T12:00:00.000Z"},
		{ID: "ach-2", Name: strPtr("Ferme"), UpdatedAt: "2024-03-01T12:00:00.000Z", RemovedAt: strPtr("2024-03-01T12:00:00.000Z")},
	}}
	refresher := &fakeRefresher{}
	s := newTestServer(store, refresher, Options{CacheTTL: time.Hour})

	rec := doRequest(s, http.MethodGet, "/api/v1/establishments", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if refresher.runs != 1 {
		t.Fatalf("first request must refresh, runs = %d", refresher.runs)
	}
	if store.lastIncludeRm {
		t.Fatal("removed entities must be excluded by default")
	}

	// Within the TTL the cached snapshot is served without another run.
	rec = doRequest(s, http.MethodGet, "/api/v1/establishments", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if refresher.runs != 1 {
		t.Fatalf("cached request must not refresh, runs = %d", refresher.runs)
	}

	// Past the TTL the next request refreshes again.
	globaltime.SetMockTime(time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC))
	rec = doRequest(s, http.MethodGet, "/api/v1/establishments", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if refresher.runs != 2 {
		t.Fatalf("stale request must refresh, runs = %d", refresher.runs)
	}
}

func TestEstablishmentsServesStoredDataWhenRefreshFails(t *testing.T) {
	globaltime.SetMockTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := &fakeStore{entities: []engine.Entity{
		{ID: "ach-1", Name: strPtr("Le Gourmet"), UpdatedAt: "2024-02-01T12:00:00.000Z"},
	}}
	refresher := &fakeRefresher{err: errors.New("upstream down")}
	s := newTestServer(store, refresher, Options{CacheTTL: time.Hour})

	rec := doRequest(s, http.MethodGet, "/api/v1/establishments", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stale data must still be served, status = %d", rec.Code)
	}
	resp := decodeJSend(t, rec)
	if resp.Status != "success" {
		t.Fatalf("status = %q", resp.Status)
	}
	if store.listCalls != 1 {
		t.Fatalf("list calls = %d", store.listCalls)
	}
}

func TestEstablishmentsIncludeRemovedParam(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store, &fakeRefresher{}, Options{})

	rec := doRequest(s, http.MethodGet, "/api/v1/establishments?include_removed=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !store.lastIncludeRm {
		t.Fatal("include_removed=true must reach the store")
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/establishments?include_removed=banana", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid boolean must fail validation, status = %d", rec.Code)
	}
}

func TestChangelogLimitValidation(t *testing.T) {
	s := newTestServer(&fakeStore{}, nil, Options{})

	rec := doRequest(s, http.MethodGet, "/api/v1/changelog?limit=0", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/changelog", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestManualRefreshAuth(t *testing.T) {
	hash, err := auth.HashToken("refresh-me")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}

	refresher := &fakeRefresher{}
	s := newTestServer(&fakeStore{}, refresher, Options{RefreshTokenHash: hash})

	rec := doRequest(s, http.MethodPost, "/api/v1/refresh", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", rec.Code)
	}

	rec = doRequest(s, http.MethodPost, "/api/v1/refresh", map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d", rec.Code)
	}
	if refresher.runs != 0 {
		t.Fatalf("unauthorized requests must not refresh, runs = %d", refresher.runs)
	}

	rec = doRequest(s, http.MethodPost, "/api/v1/refresh", map[string]string{"Authorization": "Bearer refresh-me"})
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d: %s", rec.Code, rec.Body.String())
	}
	if refresher.runs != 1 {
		t.Fatalf("runs = %d", refresher.runs)
	}
}

func TestManualRefreshUnconfigured(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeRefresher{}, Options{})

	rec := doRequest(s, http.MethodPost, "/api/v1/refresh", map[string]string{"Authorization": "Bearer anything"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthAndStats(t *testing.T) {
	store := &fakeStore{stats: db.SnapshotStats{ActiveEstablishments: 7}}
	s := newTestServer(store, nil, Options{})

	rec := doRequest(s, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	resp := decodeJSend(t, rec)
	if resp.Status != "success" {
		t.Fatalf("stats jsend status = %q", resp.Status)
	}
}
