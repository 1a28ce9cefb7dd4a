// Package cli implements the command-line interface for city-events.
//
// The cli package provides the Cobra-based CLI: scrape runs one extraction for a
// city, serve exposes the HTTP trigger, list prints a stored dataset (text/JSON,
// sorted by date/name/venue) and export-ics writes upcoming events as an
// iCalendar file. Settings come from the config package; persistent flags are
// bound into the same viper instance so they take precedence over the file and
// the environment.
package cli
