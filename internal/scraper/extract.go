package scraper

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pfrederiksen/city-events/internal/city"
	"github.com/pfrederiksen/city-events/internal/event"
	"github.com/pfrederiksen/city-events/internal/logger"
)

const (
	// DefaultOrigin is prepended to root-relative event links
	DefaultOrigin = "https://in.bookmyshow.com"

	// EventLinkSelector matches anchors that point at an event page
	EventLinkSelector = `a[href*="/events/"]`

	// Navigation and category links share the /events/ prefix but go through explore
	exploreMarker = "explore"
)

// Extractor turns rendered listing HTML into event records
type Extractor struct {
	origin string
	fields FieldExtractor
}

// NewExtractor creates an Extractor resolving links against origin.
// A nil fields strategy defaults to PositionalFields.
func NewExtractor(origin string, fields FieldExtractor) *Extractor {
	if origin == "" {
		origin = DefaultOrigin
	}
	if fields == nil {
		fields = PositionalFields{}
	}
	return &Extractor{
		origin: strings.TrimRight(origin, "/"),
		fields: fields,
	}
}

// Extract returns one record per event card in document order. Duplicate URLs
// are kept. Malformed HTML never fails; it yields whatever cards can be found,
// possibly none.
func (x *Extractor) Extract(page string, cityKey string, now time.Time) []*event.Event {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		logger.Warn("Could not parse listing HTML", logger.Fields{"city": cityKey, "error": err.Error()})
		return []*event.Event{}
	}

	displayCity := city.Capitalize(cityKey)
	events := make([]*event.Event, 0)

	doc.Find(EventLinkSelector).Each(func(i int, card *goquery.Selection) {
		link, _ := card.Attr("href")
		if strings.Contains(link, exploreMarker) {
			return
		}

		f, ok := x.fields.ExtractFields(textFragments(card))
		if !ok {
			return
		}

		evt := event.NewEvent(f.Name, f.Date, f.Venue, f.Category, displayCity, x.resolve(link), now)
		events = append(events, evt)
	})

	return events
}

// resolve makes a root-relative link absolute
func (x *Extractor) resolve(link string) string {
	if strings.HasPrefix(link, "/") {
		return x.origin + link
	}
	return link
}

// textFragments collects trimmed, non-empty text nodes below sel in document order
func textFragments(sel *goquery.Selection) []string {
	var fragments []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				fragments = append(fragments, s)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
	}
	return fragments
}
