package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pfrederiksen/city-events/internal/city"
	"github.com/pfrederiksen/city-events/internal/event"
	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/scraper"
	"github.com/pfrederiksen/city-events/internal/storage"
)

// State is a step of a run
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateExtracting State = "extracting"
	StateMerging    State = "merging"
	StatePersisting State = "persisting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// FetchSlack is added on top of the navigation and selector waits when
// bounding a whole render
const FetchSlack = 15 * time.Second

// DefaultFetchTimeout bounds a whole render, navigation and selector wait included
const DefaultFetchTimeout = scraper.Timeout + scraper.SelectorTimeout + FetchSlack

// Store loads and saves a city's dataset
type Store interface {
	Load(cityKey string) (event.Dataset, error)
	Save(cityKey string, dataset event.Dataset) error
}

// Result describes a completed run
type Result struct {
	RunID   string           `json:"run_id"`
	City    string           `json:"city"`
	Count   int              `json:"count"` // records in the persisted dataset
	Stats   event.MergeStats `json:"stats"`
	State   State            `json:"state"`
	Elapsed time.Duration    `json:"elapsed"`
}

// Orchestrator sequences renderer, extractor, merge and store
type Orchestrator struct {
	renderer     scraper.Renderer
	extractor    *scraper.Extractor
	store        Store
	fetchTimeout time.Duration
	locks        CityLocks
}

// New creates an Orchestrator. A zero fetchTimeout uses DefaultFetchTimeout.
func New(renderer scraper.Renderer, extractor *scraper.Extractor, store Store, fetchTimeout time.Duration) *Orchestrator {
	if extractor == nil {
		extractor = scraper.NewExtractor("", nil)
	}
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Orchestrator{
		renderer:     renderer,
		extractor:    extractor,
		store:        store,
		fetchTimeout: fetchTimeout,
	}
}

type run struct {
	id    string
	city  city.City
	state State
}

func (r *run) enter(state State, fields logger.Fields) {
	r.state = state
	if fields == nil {
		fields = logger.Fields{}
	}
	fields["run_id"] = r.id
	fields["city"] = r.city.Key
	fields["state"] = string(state)
	logger.Info("Run state changed", fields)
}

// Run scrapes one city and replaces its dataset with the merged result.
// now is the reference time for date normalization and status.
//
// Errors wrap city.ErrUnsupportedCity, ErrExtractionFailed or
// ErrPersistenceFailed. Zero extracted records is not an error.
func (o *Orchestrator) Run(ctx context.Context, cityName string, now time.Time) (*Result, error) {
	c, err := city.Lookup(cityName)
	if err != nil {
		logger.IncrCounter("runs.bad_input")
		return nil, err
	}

	unlock := o.locks.Lock(c.Key)
	defer unlock()

	start := time.Now()
	r := &run{id: uuid.NewString(), city: c, state: StateIdle}

	result, err := o.run(ctx, r, now)
	elapsed := time.Since(start)
	logger.RecordTiming("run", elapsed)

	if err != nil {
		r.enter(StateFailed, logger.Fields{"error": err.Error(), "category": string(CategoryOf(err))})
		logger.IncrCounter("runs.failed")
		return nil, err
	}

	result.Elapsed = elapsed
	logger.IncrCounter("runs.success")
	logger.SetGauge("dataset.records."+c.Key, float64(result.Count))
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, r *run, now time.Time) (*Result, error) {
	r.enter(StateFetching, logger.Fields{"url": r.city.URL})

	fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
	page, err := o.renderer.Render(fetchCtx, r.city.URL)
	cancel()
	if err == nil && page == "" {
		err = scraper.ErrEmptyPage
	}
	if err != nil {
		logger.Error("Failed to retrieve content", logger.Fields{"run_id": r.id, "city": r.city.Key}, err)
		return nil, fmt.Errorf("%w: rendering %s: %v", ErrExtractionFailed, r.city.URL, err)
	}

	r.enter(StateExtracting, logger.Fields{"bytes": len(page)})
	fresh := o.extractor.Extract(page, r.city.Key, now)
	if len(fresh) == 0 {
		logger.Warn("No events found on listing page", logger.Fields{"run_id": r.id, "city": r.city.Key})
	}

	r.enter(StateMerging, logger.Fields{"fresh": len(fresh)})
	existing := o.loadExisting(r)
	merged := event.Merge(existing, fresh, now)
	stats := event.Summarize(existing, fresh, merged)

	r.enter(StatePersisting, logger.Fields{"records": len(merged)})
	if err := o.store.Save(r.city.Key, merged); err != nil {
		logger.Error("Error saving dataset", logger.Fields{"run_id": r.id, "city": r.city.Key}, err)
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	r.enter(StateDone, logger.Fields{
		"records": len(merged),
		"new":     stats.New,
		"updated": stats.Updated,
	})

	return &Result{
		RunID: r.id,
		City:  r.city.Key,
		Count: len(merged),
		Stats: stats,
		State: StateDone,
	}, nil
}

// loadExisting returns the prior dataset, or nil when there is none or it
// cannot be read. An unreadable dataset is replaced by this run's output.
func (o *Orchestrator) loadExisting(r *run) event.Dataset {
	existing, err := o.store.Load(r.city.Key)
	switch {
	case err == nil:
		logger.Info("Merging with existing dataset", logger.Fields{"run_id": r.id, "city": r.city.Key, "existing": len(existing)})
		return existing
	case errors.Is(err, storage.ErrNotFound):
		logger.Info("No existing dataset, starting fresh", logger.Fields{"run_id": r.id, "city": r.city.Key})
		return nil
	default:
		logger.Warn("Existing dataset unreadable, starting fresh", logger.Fields{"run_id": r.id, "city": r.city.Key, "error": err.Error()})
		logger.IncrCounter("dataset.unreadable")
		return nil
	}
}
