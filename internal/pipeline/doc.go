// Package pipeline runs one scrape of a city listing end to end.
//
// A run renders the listing page, extracts event cards, merges them into the city's
// persisted dataset and writes the merged dataset back. Runs for the same city are
// serialized by the Orchestrator; the persisted dataset has a single writer.
package pipeline
