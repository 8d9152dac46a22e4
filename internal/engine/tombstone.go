package engine

// FilterTombstonedRemovals prunes removals that history already accounts for.
// It replays the stored changelog in the order given (chronological from the
// store) into a set of currently tombstoned ids: an id removed by a completed
// cycle enters the set, an id re-added by a later completed cycle leaves it.
// It then drops any fresh removal whose id is already tombstoned or appears
// more than once within the current batch. Pending cycles are skipped: a
// half-applied cycle must not suppress a legitimate later removal report.
func FilterTombstonedRemovals(removed []Entity, history []ChangelogRecord) []Entity {
	tombstoned := make(map[string]struct{})
	for _, record := range history {
		if record.Status != StatusCompleted {
			continue
		}
		for _, added := range record.Added {
			delete(tombstoned, added.ID)
		}
		for _, entry := range record.Removed {
			if entry.ID == "" {
				continue
			}
			tombstoned[entry.ID] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(removed))
	filtered := make([]Entity, 0, len(removed))
	for _, entity := range removed {
		if _, ok := tombstoned[entity.ID]; ok {
			continue
		}
		if _, ok := seen[entity.ID]; ok {
			continue
		}
		seen[entity.ID] = struct{}{}
		filtered = append(filtered, entity)
	}
	return filtered
}
