// Package city holds the fixed set of cities whose listing pages can be scraped.
package city

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultCity is used when a caller does not name a city
const DefaultCity = "jaipur"

// ErrUnsupportedCity is returned for any city outside the allow-list
var ErrUnsupportedCity = errors.New("unsupported city")

// City is one supported listing page
type City struct {
	Key string // lower-case identifier, e.g. "delhi"
	URL string // listing page to render
}

var listings = map[string]string{
	"jaipur":    "https://in.bookmyshow.com/explore/events-jaipur",
	"mumbai":    "https://in.bookmyshow.com/explore/events-mumbai",
	"delhi":     "https://in.bookmyshow.com/explore/events-national-capital-region-ncr",
	"bangalore": "https://in.bookmyshow.com/explore/events-bengaluru",
	"gurgaon":   "https://in.bookmyshow.com/explore/events-gurugram",
}

// Lookup validates name against the allow-list. Matching is case-insensitive
// and ignores surrounding whitespace.
func Lookup(name string) (City, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	u, ok := listings[key]
	if !ok {
		return City{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedCity, name, strings.Join(Supported(), ", "))
	}
	return City{Key: key, URL: u}, nil
}

// Supported returns the allow-list in sorted order
func Supported() []string {
	keys := make([]string, 0, len(listings))
	for k := range listings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DisplayName capitalizes the first letter and lower-cases the rest
func (c City) DisplayName() string {
	return Capitalize(c.Key)
}

// FileName is the dataset file for this city
func (c City) FileName() string {
	return fmt.Sprintf("events_%s.xlsx", c.Key)
}

// Capitalize returns s with its first letter upper-cased and the rest lower-cased
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}
