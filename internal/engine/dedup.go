package engine

import (
	"math"
	"strconv"
	"strings"
)

// coordinateTolerance is the maximum degree delta at which two coordinates
// are considered the same location (~11m at the equator).
const coordinateTolerance = 1e-4

// missingKeyPart stands in for an absent name, city, or coordinate when
// deriving an identity key. Coordinate-less entries sharing a name and city
// therefore collapse to one key; the compatibility check is the safety valve
// that keeps unrelated ones from merging silently.
const missingKeyPart = "undefined"

// IdentityKey derives the dedup grouping key: lowercased name and city plus
// both coordinates rounded to 4 decimals. The key is intentionally coarse so
// near-duplicate listings across sources land in the same group.
func IdentityKey(e Entity) string {
	parts := []string{
		keyText(e.Name),
		keyText(e.City),
		keyCoordinate(e.Lat),
		keyCoordinate(e.Lng),
	}
	return strings.Join(parts, "|")
}

func keyText(value *string) string {
	if value == nil {
		return missingKeyPart
	}
	return strings.ToLower(strings.TrimSpace(*value))
}

func keyCoordinate(value *float64) string {
	if value == nil {
		return missingKeyPart
	}
	return strconv.FormatFloat(*value, 'f', 4, 64)
}

// Compatible reports whether two entities sharing an identity key describe
// the same establishment and may be merged: same source and name, city and
// address equal or missing on either side, and coordinates within tolerance.
// A coordinate present on one side but absent on the other is incompatible.
func Compatible(a, b Entity) bool {
	if !textEqual(a.Source, b.Source) {
		return false
	}
	if !textEqual(a.Name, b.Name) {
		return false
	}
	if !textEqualOrMissing(a.City, b.City) {
		return false
	}
	if !textEqualOrMissing(a.Address, b.Address) {
		return false
	}
	return coordinatesClose(a.Lat, b.Lat) && coordinatesClose(a.Lng, b.Lng)
}

func textEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return strings.EqualFold(strings.TrimSpace(*a), strings.TrimSpace(*b))
}

func textEqualOrMissing(a, b *string) bool {
	if isBlank(a) || isBlank(b) {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(*a), strings.TrimSpace(*b))
}

func isBlank(value *string) bool {
	return value == nil || strings.TrimSpace(*value) == ""
}

func coordinatesClose(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return math.Abs(*a-*b) <= coordinateTolerance
}

// MergeInto folds a compatible incoming entity into target: category and
// filter sets are unioned, a non-empty incoming name wins, blank fields are
// filled from the incoming side, and updatedAt advances to the later of the
// two timestamps.
func MergeInto(target *Entity, incoming Entity) {
	target.Filter = unionInts(target.Filter, incoming.Filter)
	target.Categories = unionStrings(target.Categories, incoming.Categories)

	if !isBlank(incoming.Name) {
		target.Name = cloneStringPtr(incoming.Name)
	}
	if isBlank(target.Address) && !isBlank(incoming.Address) {
		target.Address = cloneStringPtr(incoming.Address)
	}
	if isBlank(target.City) && !isBlank(incoming.City) {
		target.City = cloneStringPtr(incoming.City)
	}
	if isBlank(target.Source) && !isBlank(incoming.Source) {
		target.Source = cloneStringPtr(incoming.Source)
	}
	if target.Lat == nil && incoming.Lat != nil {
		target.Lat = cloneFloatPtr(incoming.Lat)
	}
	if target.Lng == nil && incoming.Lng != nil {
		target.Lng = cloneFloatPtr(incoming.Lng)
	}
	if incoming.UpdatedAt > target.UpdatedAt {
		target.UpdatedAt = incoming.UpdatedAt
	}
}

func unionInts(existing, incoming []int) []int {
	merged := append([]int(nil), existing...)
	seen := make(map[int]struct{}, len(existing)+len(incoming))
	for _, v := range existing {
		seen[v] = struct{}{}
	}
	for _, v := range incoming {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
	}
	return merged
}

func unionStrings(existing, incoming []string) []string {
	merged := append([]string(nil), existing...)
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, v := range existing {
		seen[v] = struct{}{}
	}
	for _, v := range incoming {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
	}
	return merged
}

// Deduplicate walks the normalized batch once, keeping the first entity seen
// per identity key. Later entities with the same key are merged in when
// compatible; otherwise the collision is recorded as a DuplicatePair and the
// incoming record is discarded from the canonical set.
func Deduplicate(entities []Entity) ([]Entity, []DuplicatePair) {
	index := make(map[string]int, len(entities))
	deduplicated := make([]Entity, 0, len(entities))
	duplicates := []DuplicatePair{}

	for _, entity := range entities {
		key := IdentityKey(entity)
		at, seen := index[key]
		if !seen {
			index[key] = len(deduplicated)
			deduplicated = append(deduplicated, entity.Clone())
			continue
		}

		if Compatible(deduplicated[at], entity) {
			MergeInto(&deduplicated[at], entity)
			continue
		}

		duplicates = append(duplicates, DuplicatePair{
			Original:  deduplicated[at].Clone(),
			Duplicate: entity.Clone(),
		})
	}

	return deduplicated, duplicates
}
