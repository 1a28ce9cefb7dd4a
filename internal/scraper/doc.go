// Package scraper provides page rendering and HTML extraction for city event listings.
//
// The scraper package renders a city's listing page (through a headless browser, or
// plain HTTP for static pages) and extracts event cards from the anchor elements that
// link to individual events. Card fields are read by a pluggable FieldExtractor so
// markup drift on the listing site is isolated to one strategy.
package scraper
