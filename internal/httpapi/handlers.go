package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/YouuSer/certified/internal/auth"
	"github.com/YouuSer/certified/internal/globaltime"
)

const (
	defaultChangelogLimit = 30
	maxChangelogLimit     = 365
)

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "certified",
		"time":    globaltime.UTC(),
	})
}

// handleEstablishments serves the current snapshot. A stale snapshot
// triggers a synchronous refresh first; if that fails the stored data is
// served anyway.
func (s *Server) handleEstablishments(c echo.Context) error {
	includeRemoved, err := parseBoolParam(c.QueryParam("include_removed"), false)
	if err != nil {
		return failValidation(c, map[string]string{"include_removed": err.Error()})
	}

	if err := s.ensureFresh(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("refresh before serving failed, serving stored snapshot")
	}

	entities, err := s.store.ListEntities(c.Request().Context(), includeRemoved)
	if err != nil {
		s.logger.Error().Err(err).Msg("list establishments failed")
		return internalError(c, "Failed to load establishments")
	}

	return success(c, map[string]any{
		"items":           entities,
		"count":           len(entities),
		"include_removed": includeRemoved,
	})
}

func (s *Server) handleChangelog(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultChangelogLimit, 1, maxChangelogLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	records, err := s.store.ListRecentChangelog(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list changelog failed")
		return internalError(c, "Failed to load changelog")
	}

	return success(c, map[string]any{
		"items": records,
		"limit": limit,
	})
}

func (s *Server) handleDuplicates(c echo.Context) error {
	pairs, err := s.store.ListDuplicatePairs(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list duplicate pairs failed")
		return internalError(c, "Failed to load duplicate pairs")
	}

	return success(c, map[string]any{
		"items": pairs,
		"count": len(pairs),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.store.SnapshotStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

// handleRefresh forces a sync regardless of cache age. It is guarded by a
// bearer token checked against the configured bcrypt hash.
func (s *Server) handleRefresh(c echo.Context) error {
	if s.opts.RefreshTokenHash == "" {
		return fail(c, http.StatusServiceUnavailable, "Manual refresh is not configured", nil)
	}
	if s.refresher == nil {
		return fail(c, http.StatusServiceUnavailable, "Refresh is not available", nil)
	}

	token := bearerToken(c.Request().Header.Get("Authorization"))
	if !auth.VerifyToken(token, s.opts.RefreshTokenHash) {
		return fail(c, http.StatusUnauthorized, "Invalid or missing refresh token", nil)
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	result, err := s.refresher.Run(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("manual refresh failed")
		return internalError(c, "Refresh failed")
	}
	s.lastRefresh = globaltime.UTC()

	return success(c, result)
}

// ensureFresh runs a sync when the last one is older than the cache TTL.
// The mutex single-flights concurrent callers: the first one refreshes, the
// rest wait and then see a fresh timestamp.
func (s *Server) ensureFresh(ctx context.Context) error {
	if s.refresher == nil {
		return nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if !s.lastRefresh.IsZero() && globaltime.UTC().Sub(s.lastRefresh) < s.opts.CacheTTL {
		return nil
	}

	if _, err := s.refresher.Run(ctx); err != nil {
		return fmt.Errorf("refresh snapshot: %w", err)
	}
	s.lastRefresh = globaltime.UTC()
	return nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	trimmed := strings.TrimSpace(header)
	if len(trimmed) <= len(prefix) || !strings.EqualFold(trimmed[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(trimmed[len(prefix):])
}

func parseBoolParam(raw string, defaultValue bool) (bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(trimmed)
	if err != nil {
		return false, fmt.Errorf("must be a boolean")
	}
	return value, nil
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
