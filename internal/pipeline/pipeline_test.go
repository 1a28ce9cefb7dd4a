package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pfrederiksen/city-events/internal/city"
	"github.com/pfrederiksen/city-events/internal/event"
	"github.com/pfrederiksen/city-events/internal/scraper"
	"github.com/pfrederiksen/city-events/internal/storage"
)

var runNow = time.Date(2026, time.February, 10, 12, 0, 0, 0, time.Local)

type fakeRenderer struct {
	html  string
	err   error
	calls int32
	urls  []string
	mu    sync.Mutex
	delay time.Duration
}

func (f *fakeRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.urls = append(f.urls, pageURL)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.html, f.err
}

type memStore struct {
	mu       sync.Mutex
	data     map[string]event.Dataset
	loadErr  error
	saveErr  error
	saves    int
	inflight int32
	overlap  bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]event.Dataset)}
}

func (m *memStore) Load(cityKey string) (event.Dataset, error) {
	if atomic.AddInt32(&m.inflight, 1) > 1 {
		m.overlap = true
	}
	defer atomic.AddInt32(&m.inflight, -1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	d, ok := m.data[cityKey]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return d, nil
}

func (m *memStore) Save(cityKey string, dataset event.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data[cityKey] = dataset
	return nil
}

const oneCard = `<html><body>
<a href="/events/gig-night/ET1"><div>Sun, 9 Feb</div><div>Gig Night</div><div>City Hall</div><div>Music</div></a>
</body></html>`

func TestRun(t *testing.T) {
	tests := []struct {
		name         string
		city         string
		renderer     *fakeRenderer
		store        func() *memStore
		wantCategory Category
		wantCount    int
		wantSaves    int
	}{
		{
			name:      "first scrape creates dataset",
			city:      "jaipur",
			renderer:  &fakeRenderer{html: oneCard},
			store:     newMemStore,
			wantCount: 1,
			wantSaves: 1,
		},
		{
			name:         "unsupported city",
			city:         "paris",
			renderer:     &fakeRenderer{html: oneCard},
			store:        newMemStore,
			wantCategory: CategoryBadInput,
		},
		{
			name:         "renderer error",
			city:         "mumbai",
			renderer:     &fakeRenderer{err: errors.New("net::ERR_TIMED_OUT")},
			store:        newMemStore,
			wantCategory: CategoryExtraction,
		},
		{
			name:         "renderer returns nothing",
			city:         "mumbai",
			renderer:     &fakeRenderer{html: ""},
			store:        newMemStore,
			wantCategory: CategoryExtraction,
		},
		{
			name:     "unwritable store",
			city:     "delhi",
			renderer: &fakeRenderer{html: oneCard},
			store: func() *memStore {
				m := newMemStore()
				m.saveErr = errors.New("permission denied")
				return m
			},
			wantCategory: CategoryPersistence,
		},
		{
			name:     "unreadable existing dataset degrades to fresh",
			city:     "delhi",
			renderer: &fakeRenderer{html: oneCard},
			store: func() *memStore {
				m := newMemStore()
				m.loadErr = errors.New("dataset schema mismatch")
				return m
			},
			wantCount: 1,
			wantSaves: 1,
		},
		{
			name:      "zero records still persists",
			city:      "gurgaon",
			renderer:  &fakeRenderer{html: "<html><body>No events</body></html>"},
			store:     newMemStore,
			wantCount: 0,
			wantSaves: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store()
			o := New(tt.renderer, nil, store, time.Second)

			result, err := o.Run(context.Background(), tt.city, runNow)

			if got := CategoryOf(err); got != tt.wantCategory {
				t.Fatalf("CategoryOf(Run() error) = %q, want %q (err: %v)", got, tt.wantCategory, err)
			}
			if store.saves != tt.wantSaves {
				t.Errorf("saves = %d, want %d", store.saves, tt.wantSaves)
			}
			if tt.wantCategory != CategoryNone {
				if result != nil {
					t.Errorf("Run() returned result %+v alongside error", result)
				}
				return
			}
			if result.Count != tt.wantCount {
				t.Errorf("Count = %d, want %d", result.Count, tt.wantCount)
			}
			if result.State != StateDone {
				t.Errorf("State = %s, want %s", result.State, StateDone)
			}
			if result.RunID == "" {
				t.Error("RunID is empty")
			}
		})
	}
}

func TestRun_BadInputSkipsRenderer(t *testing.T) {
	r := &fakeRenderer{html: oneCard}
	o := New(r, nil, newMemStore(), time.Second)

	_, err := o.Run(context.Background(), "atlantis", runNow)
	if !errors.Is(err, city.ErrUnsupportedCity) {
		t.Fatalf("Run() error = %v, want ErrUnsupportedCity", err)
	}
	if r.calls != 0 {
		t.Errorf("renderer called %d times for unsupported city", r.calls)
	}
}

func TestRun_RendersCityURL(t *testing.T) {
	r := &fakeRenderer{html: oneCard}
	o := New(r, nil, newMemStore(), time.Second)

	if _, err := o.Run(context.Background(), "Delhi", runNow); err != nil {
		t.Fatal(err)
	}
	if len(r.urls) != 1 || r.urls[0] != "https://in.bookmyshow.com/explore/events-national-capital-region-ncr" {
		t.Errorf("rendered %v", r.urls)
	}
}

func TestRun_FetchTimeout(t *testing.T) {
	r := &fakeRenderer{html: oneCard, delay: time.Second}
	store := newMemStore()
	o := New(r, nil, store, 20*time.Millisecond)

	_, err := o.Run(context.Background(), "jaipur", runNow)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("Run() error = %v, want ErrExtractionFailed", err)
	}
	if store.saves != 0 {
		t.Error("dataset written after fetch timeout")
	}
}

func TestRun_MergesWithHistory(t *testing.T) {
	store := newMemStore()
	store.data["jaipur"] = event.Dataset{
		{Name: "Gig Night", RawDate: "Sat, 8 Feb", Venue: "Old Hall", City: "Jaipur", Category: "Music",
			URL: "https://in.bookmyshow.com/events/gig-night/ET1", Status: event.StatusUpcoming},
		{Name: "Past Show", RawDate: "1 Feb", Venue: "Club", City: "Jaipur", Category: "Comedy",
			URL: "https://in.bookmyshow.com/events/past/ET0", Status: event.StatusUpcoming},
	}

	o := New(&fakeRenderer{html: oneCard}, nil, store, time.Second)
	result, err := o.Run(context.Background(), "jaipur", runNow)
	if err != nil {
		t.Fatal(err)
	}

	if result.Count != 2 {
		t.Fatalf("Count = %d, want 2", result.Count)
	}
	if result.Stats.Updated != 1 || result.Stats.New != 0 {
		t.Errorf("Stats = %+v, want 1 updated 0 new", result.Stats)
	}

	saved := store.data["jaipur"]
	if saved[0].URL != "https://in.bookmyshow.com/events/past/ET0" || saved[0].Status != event.StatusExpired {
		t.Errorf("history record = %+v, want expired past show first", saved[0])
	}
	if saved[1].Venue != "City Hall" || saved[1].RawDate != "Sun, 9 Feb" {
		t.Errorf("rescraped record = %+v, want fresh fields", saved[1])
	}
}

func TestRun_SerializesSameCity(t *testing.T) {
	store := newMemStore()
	o := New(&fakeRenderer{html: oneCard, delay: 20 * time.Millisecond}, nil, store, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.Run(context.Background(), "jaipur", runNow); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if store.overlap {
		t.Error("concurrent runs for the same city overlapped")
	}
	if store.saves != 4 {
		t.Errorf("saves = %d, want 4", store.saves)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	// The single card is dated the day before runNow
	o := New(&fakeRenderer{html: oneCard}, scraper.NewExtractor(scraper.DefaultOrigin, scraper.PositionalFields{}), store, time.Second)

	result, err := o.Run(context.Background(), "jaipur", runNow)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("Count = %d, want 1", result.Count)
	}

	loaded, err := store.Load("jaipur")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("reloaded %d records, want 1", len(loaded))
	}

	evt := loaded[0]
	if evt.Name != "Gig Night" || evt.RawDate != "Sun, 9 Feb" || evt.Venue != "City Hall" ||
		evt.Category != "Music" || evt.City != "Jaipur" || evt.URL != "https://in.bookmyshow.com/events/gig-night/ET1" {
		t.Errorf("reloaded record = %+v", evt)
	}
	if evt.Status != event.StatusExpired {
		t.Errorf("stored Status = %s, want Expired", evt.Status)
	}

	refreshed := event.Merge(loaded, nil, runNow)
	if refreshed[0].Status != event.StatusExpired {
		t.Errorf("recomputed Status = %s, want Expired", refreshed[0].Status)
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		err  error
		want Category
	}{
		{nil, CategoryNone},
		{city.ErrUnsupportedCity, CategoryBadInput},
		{ErrExtractionFailed, CategoryExtraction},
		{ErrPersistenceFailed, CategoryPersistence},
		{errors.New("boom"), CategoryInternal},
	}
	for _, tt := range tests {
		if got := CategoryOf(tt.err); got != tt.want {
			t.Errorf("CategoryOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCityLocks_IndependentCities(t *testing.T) {
	var locks CityLocks

	releaseA := locks.Lock("jaipur")
	done := make(chan struct{})
	go func() {
		release := locks.Lock("mumbai")
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for another city blocked")
	}
	releaseA()
}
