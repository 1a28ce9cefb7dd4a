package event

import (
	"strconv"
	"strings"
	"time"
)

// Listing pages never print a year, so one is appended before parsing.
// Order matters: the weekday form is tried first.
var dateLayouts = []string{
	"Mon, 2 Jan 2006", // "Sun, 9 Feb onwards"
	"2 Jan 2006",      // "9 Feb"
}

// NormalizeDate parses a listing display date into a calendar date in referenceYear.
// A trailing "onwards" is ignored. Returns time.Time{} (zero value) when the text
// matches none of the known layouts; callers treat that as a valid outcome.
//
// Known limitation: the year is always referenceYear, so a January event scraped
// in December normalizes to the January already past.
func NormalizeDate(rawDate string, referenceYear int) time.Time {
	clean, _, _ := strings.Cut(rawDate, " onwards")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return time.Time{}
	}

	suffix := " " + strconv.Itoa(referenceYear)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, clean+suffix)
		if err == nil {
			return t
		}
	}

	return time.Time{}
}

// Classify maps a normalized date to a Status relative to the day containing now.
// An event dated today is still upcoming.
func Classify(date time.Time, now time.Time) Status {
	if date.IsZero() {
		return StatusUnknown
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(today) {
		return StatusExpired
	}
	return StatusUpcoming
}
