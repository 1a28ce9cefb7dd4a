package event

import "time"

// Dataset is the full set of events persisted for one city
type Dataset []*Event

// WithStatus returns the records whose Status equals status, preserving order
func (d Dataset) WithStatus(status Status) Dataset {
	filtered := make(Dataset, 0, len(d))
	for _, evt := range d {
		if evt.Status == status {
			filtered = append(filtered, evt)
		}
	}
	return filtered
}

// MergeStats summarizes how a fresh batch changed a prior dataset
type MergeStats struct {
	Existing int `json:"existing"` // records loaded from the prior dataset
	Fresh    int `json:"fresh"`    // records extracted this run, before dedup
	New      int `json:"new"`      // URLs not present before this run
	Updated  int `json:"updated"`  // URLs present before whose fields changed
	Total    int `json:"total"`    // records in the merged dataset
}

// Merge combines a prior dataset with a freshly scraped batch.
//
// Records are concatenated (existing first), deduplicated by URL keeping the
// last occurrence, and every survivor has its Status recomputed against now.
// A nil existing dataset means no prior history. The inputs are not modified.
func Merge(existing Dataset, fresh []*Event, now time.Time) Dataset {
	combined := make([]*Event, 0, len(existing)+len(fresh))
	combined = append(combined, existing...)
	combined = append(combined, fresh...)

	last := make(map[string]int, len(combined))
	for i, evt := range combined {
		last[evt.URL] = i
	}

	merged := make(Dataset, 0, len(last))
	for i, evt := range combined {
		if last[evt.URL] != i {
			continue
		}
		c := *evt
		c.Refresh(now)
		merged = append(merged, &c)
	}

	return merged
}

// Summarize reports what Merge did with the given inputs and result
func Summarize(existing Dataset, fresh []*Event, merged Dataset) MergeStats {
	stats := MergeStats{
		Existing: len(existing),
		Fresh:    len(fresh),
		Total:    len(merged),
	}

	previous := make(map[string]*Event, len(existing))
	for _, evt := range existing {
		previous[evt.URL] = evt
	}

	counted := make(map[string]bool, len(fresh))
	for _, evt := range fresh {
		if counted[evt.URL] {
			continue
		}
		counted[evt.URL] = true

		prev, ok := previous[evt.URL]
		switch {
		case !ok:
			stats.New++
		case len(DetectChanges(prev, evt)) > 0:
			stats.Updated++
		}
	}

	return stats
}

// FieldChange describes one field that differs between two observations of an event
type FieldChange struct {
	Field    string `json:"field"` // "date", "name", "venue", "category"
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// DetectChanges compares two observations of the same event.
// Status is derived and never reported.
func DetectChanges(previous, current *Event) []FieldChange {
	var changes []FieldChange

	if previous.RawDate != current.RawDate {
		changes = append(changes, FieldChange{Field: "date", OldValue: previous.RawDate, NewValue: current.RawDate})
	}
	if previous.Name != current.Name {
		changes = append(changes, FieldChange{Field: "name", OldValue: previous.Name, NewValue: current.Name})
	}
	if previous.Venue != current.Venue {
		changes = append(changes, FieldChange{Field: "venue", OldValue: previous.Venue, NewValue: current.Venue})
	}
	if previous.Category != current.Category {
		changes = append(changes, FieldChange{Field: "category", OldValue: previous.Category, NewValue: current.Category})
	}

	return changes
}
