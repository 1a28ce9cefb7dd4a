package scraper

import "strings"

// CardFields are the raw field values read from one event card
type CardFields struct {
	Date     string
	Name     string
	Venue    string
	Category string
}

// FieldExtractor maps the text fragments of a card to its fields.
// ok is false when the fragments do not look like an event card.
type FieldExtractor interface {
	ExtractFields(fragments []string) (fields CardFields, ok bool)
}

const (
	minCardFragments  = 3 // below this a link has no card structure at all
	cardFieldCount    = 4 // date, name, venue, category
	promotedLabelText = "promoted"
)

// PositionalFields reads fields by position: date, name, venue, category.
// A leading "Promoted" label shifts every read one position right.
type PositionalFields struct{}

// ExtractFields implements FieldExtractor
func (PositionalFields) ExtractFields(fragments []string) (CardFields, bool) {
	if len(fragments) < minCardFragments {
		return CardFields{}, false
	}

	start := 0
	if strings.EqualFold(fragments[0], promotedLabelText) {
		start = 1
	}

	if len(fragments) < start+cardFieldCount {
		return CardFields{}, false
	}

	return CardFields{
		Date:     fragments[start],
		Name:     fragments[start+1],
		Venue:    fragments[start+2],
		Category: fragments[start+3],
	}, true
}
