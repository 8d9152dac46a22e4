package engine

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/YouuSer/certified/internal/sanitize"
)

// NormalizeShape coerces a loosely typed raw record into the canonical Entity
// shape. It is pure and never fails: unparseable coordinates become nil,
// unusable filter codes and categories are dropped, and text fields are run
// through the sanitizer.
func NormalizeShape(raw RawEntity) Entity {
	return Entity{
		ID:         raw.ID,
		Name:       sanitize.Text(raw.Name),
		Address:    sanitize.Text(raw.Address),
		City:       sanitize.Text(raw.City),
		Source:     sanitize.Text(raw.Source),
		Lat:        parseCoordinate(raw.Lat),
		Lng:        parseCoordinate(raw.Lng),
		Categories: normalizeCategories(raw.Categories),
		Filter:     normalizeFilters(raw.Filter),
		UpdatedAt:  raw.UpdatedAt,
	}
}

// parseCoordinate accepts a number or a numeric string. Non-finite or
// unparseable values yield nil, never NaN and never a zero default.
func parseCoordinate(value any) *float64 {
	switch v := value.(type) {
	case float64:
		return finiteFloat(v)
	case float32:
		return finiteFloat(float64(v))
	case int:
		return finiteFloat(float64(v))
	case int64:
		return finiteFloat(float64(v))
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		return finiteFloat(parsed)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil
		}
		return finiteFloat(parsed)
	default:
		return nil
	}
}

func finiteFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// normalizeFilters accepts an array, a single number, or a numeric string and
// returns a deduplicated slice of integral filter codes in first-seen order.
func normalizeFilters(value any) []int {
	var raw []any
	switch v := value.(type) {
	case nil:
		return []int{}
	case []any:
		raw = v
	case []int:
		raw = make([]any, 0, len(v))
		for _, code := range v {
			raw = append(raw, code)
		}
	default:
		raw = []any{v}
	}

	filters := make([]int, 0, len(raw))
	seen := make(map[int]struct{}, len(raw))
	for _, item := range raw {
		code, ok := parseFilterCode(item)
		if !ok {
			continue
		}
		if _, exists := seen[code]; exists {
			continue
		}
		seen[code] = struct{}{}
		filters = append(filters, code)
	}
	return filters
}

func parseFilterCode(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return integralCode(v)
	case float32:
		return integralCode(float64(v))
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return integralCode(parsed)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return integralCode(parsed)
	default:
		return 0, false
	}
}

func integralCode(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// normalizeCategories accepts an array or a single string and returns a
// deduplicated slice of non-empty trimmed labels in first-seen order.
func normalizeCategories(value any) []string {
	var raw []any
	switch v := value.(type) {
	case nil:
		return []string{}
	case []any:
		raw = v
	case []string:
		raw = make([]any, 0, len(v))
		for _, label := range v {
			raw = append(raw, label)
		}
	default:
		raw = []any{v}
	}

	categories := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		label, ok := item.(string)
		if !ok {
			continue
		}
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if _, exists := seen[label]; exists {
			continue
		}
		seen[label] = struct{}{}
		categories = append(categories, label)
	}
	return categories
}
