package event

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the derived lifecycle state of an event relative to today
type Status string

const (
	StatusUpcoming Status = "Upcoming"
	StatusExpired  Status = "Expired"
	StatusUnknown  Status = "Unknown"
)

// ErrInvalidStatus is returned by ParseStatus for names outside the Status set
var ErrInvalidStatus = errors.New("invalid status")

// ParseStatus accepts a status name case-insensitively
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusUpcoming, StatusExpired, StatusUnknown} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %s (must be 'upcoming', 'expired' or 'unknown')", ErrInvalidStatus, s)
}

// Event represents one event card observed on a city listing page
type Event struct {
	Name     string `json:"name"`
	RawDate  string `json:"date"` // Display date exactly as found on the page
	Venue    string `json:"venue"`
	City     string `json:"city"`
	Category string `json:"category"`
	URL      string `json:"url"` // Identity key, always absolute
	Status   Status `json:"status"`

	// Date is the normalized form of RawDate. The zero value means unparseable.
	// It is never persisted; see Resolve.
	Date time.Time `json:"-"`

	resolved bool
}

// NewEvent creates an Event with Date and Status derived from rawDate and now
func NewEvent(name, rawDate, venue, category, city, url string, now time.Time) *Event {
	evt := &Event{
		Name:     name,
		RawDate:  rawDate,
		Venue:    venue,
		City:     city,
		Category: category,
		URL:      url,
	}
	evt.Refresh(now)
	return evt
}

// Resolve normalizes RawDate against now's year unless this record already
// carries a date computed during the current run.
func (e *Event) Resolve(now time.Time) time.Time {
	if !e.resolved {
		e.Date = NormalizeDate(e.RawDate, now.Year())
		e.resolved = true
	}
	return e.Date
}

// Refresh recomputes Status. Any stored Status is ignored.
func (e *Event) Refresh(now time.Time) {
	e.Status = Classify(e.Resolve(now), now)
}

// ID returns a short deterministic identifier derived from the URL
func (e *Event) ID() string {
	return GenerateID(e.URL)
}

// GenerateID creates a deterministic ID for an event URL
func GenerateID(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return fmt.Sprintf("%x", h.Sum(nil))
}
