package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/city-events/internal/city"
	"github.com/pfrederiksen/city-events/internal/event"
	"github.com/pfrederiksen/city-events/internal/pipeline"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ListResult contains a city's dataset as printed by list
type ListResult struct {
	City      string         `json:"city"`
	CheckedAt time.Time      `json:"checked_at"`
	Count     int            `json:"count"`
	Events    []*event.Event `json:"events"`
}

// WriteList writes a dataset listing in the specified format
func WriteList(w io.Writer, result *ListResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeListText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteRun writes a scrape result in the specified format
func WriteRun(w io.Writer, result *pipeline.Result, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		fmt.Fprintf(w, "Events for %s successfully fetched!\n", city.Capitalize(result.City))
		fmt.Fprintf(w, "%d events saved (%d new, %d updated, %d extracted this run)\n",
			result.Count, result.Stats.New, result.Stats.Updated, result.Stats.Fresh)
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeListText outputs a listing as human-readable text
func writeListText(w io.Writer, result *ListResult, verbose bool) error {
	if result.Count == 0 {
		fmt.Fprintf(w, "No events found for %s.\n", result.City)
		return nil
	}

	fmt.Fprintf(w, "%s (%d events):\n", result.City, result.Count)
	for _, evt := range result.Events {
		fmt.Fprintf(w, "  [%s] %s: %s @ %s\n", evt.Status, evt.RawDate, evt.Name, evt.Venue)
		if verbose {
			if evt.Category != "" {
				fmt.Fprintf(w, "       Category: %s\n", evt.Category)
			}
			fmt.Fprintf(w, "       URL: %s\n", evt.URL)
			fmt.Fprintf(w, "       ID: %s\n", evt.ID()[:12])
		}
	}
	fmt.Fprintf(w, "\nTotal: %d events\n", result.Count)

	return nil
}
