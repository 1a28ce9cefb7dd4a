package cli

import (
	"sort"
	"strings"

	"github.com/pfrederiksen/city-events/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate  SortOrder = "date"
	SortByName  SortOrder = "name"
	SortByVenue SortOrder = "venue"
)

func (o SortOrder) valid() bool {
	switch o {
	case SortByDate, SortByName, SortByVenue:
		return true
	}
	return false
}

// sortEvents sorts events in place. Dates must already be resolved (see event.Merge).
func sortEvents(events []*event.Event, sortOrder SortOrder) {
	switch sortOrder {
	case SortByDate:
		sort.SliceStable(events, func(i, j int) bool {
			return compareByDate(events[i], events[j])
		})
	case SortByName:
		sort.SliceStable(events, func(i, j int) bool {
			a, b := strings.ToLower(events[i].Name), strings.ToLower(events[j].Name)
			if a != b {
				return a < b
			}
			return compareByDate(events[i], events[j])
		})
	case SortByVenue:
		sort.SliceStable(events, func(i, j int) bool {
			a, b := strings.ToLower(events[i].Venue), strings.ToLower(events[j].Venue)
			if a != b {
				return a < b
			}
			return compareByDate(events[i], events[j])
		})
	}
}

// compareByDate compares two events by their date
// Returns true if event i should come before event j
func compareByDate(i, j *event.Event) bool {
	// If both dates are valid, compare them
	if !i.Date.IsZero() && !j.Date.IsZero() {
		if !i.Date.Equal(j.Date) {
			return i.Date.Before(j.Date)
		}
		return strings.ToLower(i.Name) < strings.ToLower(j.Name)
	}

	// Unparseable dates sink to the bottom
	if !i.Date.IsZero() {
		return true
	}
	if !j.Date.IsZero() {
		return false
	}

	return strings.ToLower(i.Name) < strings.ToLower(j.Name)
}
