package engine

// ComputeChangelog compares a freshly deduplicated batch against the prior
// persisted snapshot. It returns a stamped copy of current (updatedAt set to
// syncTimestamp, removedAt cleared, createdAt inherited from the previous
// snapshot or first-written) plus the added/removed/modified partitions.
// Neither input slice is mutated; removals are clones of previous entries
// carrying removedAt = updatedAt = syncTimestamp.
func ComputeChangelog(current, previous []Entity, syncTimestamp string) ([]Entity, Changelog) {
	previousByID := make(map[string]Entity, len(previous))
	for _, prev := range previous {
		if prev.ID == "" {
			continue
		}
		previousByID[prev.ID] = prev
	}

	seen := make(map[string]struct{}, len(current))
	stamped := make([]Entity, 0, len(current))
	log := Changelog{
		Added:    []Entity{},
		Removed:  []Entity{},
		Modified: []ModificationEntry{},
	}

	for _, entity := range current {
		e := entity.Clone()
		e.UpdatedAt = syncTimestamp
		e.RemovedAt = nil

		prev, matched := previousByID[e.ID]
		if matched {
			e.CreatedAt = cloneStringPtr(prev.CreatedAt)
		} else if e.CreatedAt == nil {
			ts := syncTimestamp
			e.CreatedAt = &ts
		}
		seen[e.ID] = struct{}{}

		if !matched {
			log.Added = append(log.Added, e.Clone())
		} else if changes := fieldChanges(prev, e); len(changes) > 0 {
			log.Modified = append(log.Modified, ModificationEntry{
				ID:      e.ID,
				Before:  prev.Clone(),
				After:   e.Clone(),
				Changes: changes,
			})
		}

		stamped = append(stamped, e)
	}

	for _, prev := range previous {
		if prev.ID == "" {
			continue
		}
		if _, ok := seen[prev.ID]; ok {
			continue
		}
		removed := prev.Clone()
		removed.UpdatedAt = syncTimestamp
		ts := syncTimestamp
		removed.RemovedAt = &ts
		log.Removed = append(log.Removed, removed)
	}

	return stamped, log
}

// fieldChanges diffs the tracked fields of two snapshots of the same entity.
// Coordinates tolerate floating-point noise; categories and filter compare as
// sets, order-independent.
func fieldChanges(before, after Entity) []FieldChange {
	var changes []FieldChange

	text := func(field string, b, a *string) {
		if !sameText(b, a) {
			changes = append(changes, FieldChange{Field: field, Before: anyText(b), After: anyText(a)})
		}
	}
	text("name", before.Name, after.Name)
	text("address", before.Address, after.Address)
	text("city", before.City, after.City)
	text("source", before.Source, after.Source)

	if !coordinatesClose(before.Lat, after.Lat) {
		changes = append(changes, FieldChange{Field: "lat", Before: anyCoordinate(before.Lat), After: anyCoordinate(after.Lat)})
	}
	if !coordinatesClose(before.Lng, after.Lng) {
		changes = append(changes, FieldChange{Field: "lng", Before: anyCoordinate(before.Lng), After: anyCoordinate(after.Lng)})
	}
	if !sameStringSet(before.Categories, after.Categories) {
		changes = append(changes, FieldChange{Field: "categories", Before: before.Categories, After: after.Categories})
	}
	if !sameIntSet(before.Filter, after.Filter) {
		changes = append(changes, FieldChange{Field: "filter", Before: before.Filter, After: after.Filter})
	}

	return changes
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func anyText(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func anyCoordinate(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

func sameIntSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}
