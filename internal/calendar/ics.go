// Package calendar exports upcoming events of a dataset as iCalendar.
package calendar

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/emersion/go-ical"

	"github.com/pfrederiksen/city-events/internal/event"
)

const productID = "-//city-events//city-events//EN"

// ErrNoEvents is returned when a dataset has no upcoming event with a known date
var ErrNoEvents = errors.New("no upcoming events")

// Build creates a calendar holding one all-day VEVENT per upcoming event.
// Statuses are recomputed against now; events without a parseable date are skipped.
func Build(dataset event.Dataset, now time.Time) (*ical.Calendar, int) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	cal.Props.SetText(ical.PropMethod, "PUBLISH")

	count := 0
	for _, evt := range event.Merge(nil, dataset, now) {
		if evt.Status != event.StatusUpcoming {
			continue
		}
		cal.Children = append(cal.Children, vevent(evt, now).Component)
		count++
	}
	return cal, count
}

// Write encodes the upcoming events of dataset to w
func Write(w io.Writer, dataset event.Dataset, now time.Time) error {
	cal, n := Build(dataset, now)
	if n == 0 {
		return ErrNoEvents
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

func vevent(evt *event.Event, now time.Time) *ical.Event {
	ve := ical.NewEvent()

	uid := evt.ID()
	if u, err := url.Parse(evt.URL); err == nil && u.Host != "" {
		uid = fmt.Sprintf("%s@%s", uid, u.Host)
	}
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

	start := time.Date(evt.Date.Year(), evt.Date.Month(), evt.Date.Day(), 0, 0, 0, 0, time.UTC)
	ve.Props.SetDate(ical.PropDateTimeStart, start)
	ve.Props.SetDate(ical.PropDateTimeEnd, start.AddDate(0, 0, 1))

	ve.Props.SetText(ical.PropSummary, evt.Name)

	location := evt.Venue
	if evt.City != "" {
		location = fmt.Sprintf("%s, %s", evt.Venue, evt.City)
	}
	ve.Props.SetText(ical.PropLocation, location)

	description := fmt.Sprintf("Date: %s\nCategory: %s\n\nTickets: %s", evt.RawDate, evt.Category, evt.URL)
	ve.Props.SetText(ical.PropDescription, description)

	if evt.Category != "" {
		ve.Props.SetText(ical.PropCategories, evt.Category)
	}

	link := ical.NewProp(ical.PropURL)
	link.Value = evt.URL
	ve.Props.Set(link)

	ve.Props.SetText(ical.PropStatus, "CONFIRMED")
	ve.Props.SetText(ical.PropTransparency, "TRANSPARENT")

	return ve
}
