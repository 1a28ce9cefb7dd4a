// Package filter narrows a city's dataset for display and export.
//
// Criteria combine with AND; within a list (venues, categories) any entry may match:
//   - Date range (from/to dates, inclusive)
//   - Name search (substring matching, case-insensitive)
//   - Venues (substring matching, case-insensitive)
//   - Categories (substring matching, case-insensitive)
//   - Weekends only (Saturday/Sunday)
//
// Date criteria use the event's resolved Date (see event.Merge), so a filter
// must run after statuses are refreshed. Events whose date could not be parsed
// are never excluded by date criteria.
//
// Example usage:
//
//	from, to, _ := filter.ParseDateRange("Feb 14-16", now)
//	f := &filter.Filter{DateFrom: from, DateTo: to, Categories: []string{"comedy"}}
//	filtered := f.Apply(dataset)
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/city-events/internal/event"
)

// Filter represents event filtering criteria
type Filter struct {
	// Date range filtering
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`

	// Name filtering (case-insensitive substring match)
	Search string `json:"search,omitempty"`

	// Venue filtering (case-insensitive substring match)
	Venues []string `json:"venues,omitempty"`

	// Category filtering (case-insensitive substring match)
	Categories []string `json:"categories,omitempty"`

	// Weekend-only filtering (Saturday/Sunday)
	WeekendsOnly bool `json:"weekends_only,omitempty"`
}

// IsEmpty checks if the filter has any active criteria.
// Returns true if the filter would match all events.
func (f *Filter) IsEmpty() bool {
	return f.DateFrom == nil &&
		f.DateTo == nil &&
		f.Search == "" &&
		len(f.Venues) == 0 &&
		len(f.Categories) == 0 &&
		!f.WeekendsOnly
}

// Matches checks if an event matches all active filter criteria.
// An empty filter matches all events.
func (f *Filter) Matches(evt *event.Event) bool {
	if f.IsEmpty() {
		return true
	}

	if !evt.Date.IsZero() {
		if f.DateFrom != nil && evt.Date.Before(*f.DateFrom) {
			return false
		}
		if f.DateTo != nil && evt.Date.After(*f.DateTo) {
			return false
		}
		if f.WeekendsOnly {
			weekday := evt.Date.Weekday()
			if weekday != time.Saturday && weekday != time.Sunday {
				return false
			}
		}
	}

	if f.Search != "" && !containsFold(evt.Name, f.Search) {
		return false
	}
	if !matchesAny(evt.Venue, f.Venues) {
		return false
	}
	if !matchesAny(evt.Category, f.Categories) {
		return false
	}

	return true
}

// Apply returns the events that match all criteria, preserving order.
// If the filter is empty, returns the original slice unchanged.
func (f *Filter) Apply(events event.Dataset) event.Dataset {
	if f.IsEmpty() {
		return events
	}

	filtered := make(event.Dataset, 0, len(events))
	for _, evt := range events {
		if f.Matches(evt) {
			filtered = append(filtered, evt)
		}
	}

	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Format: "From: Feb 14, 2026 | To: Feb 16, 2026 | Venues: Hall | Weekends only"
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if f.DateFrom != nil {
		parts = append(parts, fmt.Sprintf("From: %s", f.DateFrom.Format("Jan 2, 2006")))
	}
	if f.DateTo != nil {
		parts = append(parts, fmt.Sprintf("To: %s", f.DateTo.Format("Jan 2, 2006")))
	}
	if f.Search != "" {
		parts = append(parts, fmt.Sprintf("Name: %s", f.Search))
	}
	if len(f.Venues) > 0 {
		parts = append(parts, fmt.Sprintf("Venues: %s", strings.Join(f.Venues, ", ")))
	}
	if len(f.Categories) > 0 {
		parts = append(parts, fmt.Sprintf("Categories: %s", strings.Join(f.Categories, ", ")))
	}
	if f.WeekendsOnly {
		parts = append(parts, "Weekends only")
	}

	return strings.Join(parts, " | ")
}

// matchesAny reports whether value contains any needle; no needles matches everything
func matchesAny(value string, needles []string) bool {
	if len(needles) == 0 {
		return true
	}
	for _, n := range needles {
		if containsFold(value, n) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}
