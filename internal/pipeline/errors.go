package pipeline

import (
	"errors"

	"github.com/pfrederiksen/city-events/internal/city"
)

var (
	// ErrExtractionFailed means the listing page could not be rendered.
	// Nothing was written; re-running may succeed.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrPersistenceFailed means the merged dataset could not be written.
	// The previous dataset is unchanged.
	ErrPersistenceFailed = errors.New("persistence failed")
)

// Category classifies a run error for callers that report failures
type Category string

const (
	CategoryNone        Category = ""
	CategoryBadInput    Category = "bad_input"
	CategoryExtraction  Category = "extraction_failed"
	CategoryPersistence Category = "persistence_failed"
	CategoryInternal    Category = "internal"
)

// CategoryOf maps an error returned by Run to its Category
func CategoryOf(err error) Category {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, city.ErrUnsupportedCity):
		return CategoryBadInput
	case errors.Is(err, ErrExtractionFailed):
		return CategoryExtraction
	case errors.Is(err, ErrPersistenceFailed):
		return CategoryPersistence
	default:
		return CategoryInternal
	}
}
