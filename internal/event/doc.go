// Package event provides types and functions for managing scraped city event listings.
//
// The event package handles record representation, date normalization for the
// year-less display dates used by listing pages, status classification relative to
// the current day, and the identity-keyed merge that folds a freshly scraped batch
// into a previously persisted dataset. Each record is identified by its absolute
// listing URL, enabling reliable tracking across runs.
package event
