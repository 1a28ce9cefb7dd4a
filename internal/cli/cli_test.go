package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pfrederiksen/city-events/internal/city"
	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/event"
	"github.com/pfrederiksen/city-events/internal/pipeline"
	"github.com/pfrederiksen/city-events/internal/scraper"
	"github.com/pfrederiksen/city-events/internal/storage"
)

var cliNow = time.Date(2026, time.February, 10, 12, 0, 0, 0, time.Local)

type stubRenderer struct {
	page string
	err  error
}

func (s stubRenderer) Render(ctx context.Context, url string) (string, error) {
	return s.page, s.err
}

// useRenderer swaps the renderer factory and clock for one test
func useRenderer(t *testing.T, r scraper.Renderer) {
	t.Helper()
	origRenderer, origNow := newRenderer, now
	newRenderer = func(*config.Config) scraper.Renderer { return r }
	now = func() time.Time { return cliNow }
	t.Cleanup(func() {
		newRenderer, now = origRenderer, origNow
	})
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), err
}

func fixturePage(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/fixtures/listing_jaipur.html")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	return string(data)
}

func TestScrapeListExport(t *testing.T) {
	useRenderer(t, stubRenderer{page: fixturePage(t)})
	dir := t.TempDir()

	out, err := execute(t, "scrape", "--data-dir", dir)
	if err != nil {
		t.Fatalf("scrape error = %v", err)
	}
	if !strings.Contains(out, "Events for Jaipur successfully fetched!") {
		t.Errorf("scrape output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "events_jaipur.xlsx")); err != nil {
		t.Fatalf("dataset not written: %v", err)
	}

	out, err = execute(t, "list", "jaipur", "--data-dir", dir, "--format", "json")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	var listed ListResult
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	if listed.Count != 3 {
		t.Errorf("list count = %d, want 3", listed.Count)
	}
	if listed.City != "Jaipur" {
		t.Errorf("list city = %q, want Jaipur", listed.City)
	}

	out, err = execute(t, "list", "--data-dir", dir, "--category", "comedy", "--dates", "Feb 14-16", "--format", "json")
	if err != nil {
		t.Fatalf("list with filters error = %v", err)
	}
	listed = ListResult{}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	if listed.Count != 1 || listed.Events[0].Name != "Laugh Riot" {
		t.Errorf("filtered list = %+v, want only Laugh Riot", listed.Events)
	}

	out, err = execute(t, "list", "--data-dir", dir, "--status", "expired")
	if err != nil {
		t.Fatalf("list --status error = %v", err)
	}
	if !strings.Contains(out, "Sunburn Arena") || strings.Contains(out, "Heritage Walk") {
		t.Errorf("expired listing = %q", out)
	}

	icsPath := filepath.Join(t.TempDir(), "jaipur.ics")
	if _, err := execute(t, "export-ics", "--data-dir", dir, "--out", icsPath); err != nil {
		t.Fatalf("export-ics error = %v", err)
	}
	data, err := os.ReadFile(icsPath)
	if err != nil {
		t.Fatalf("reading exported calendar: %v", err)
	}
	if !strings.Contains(string(data), "BEGIN:VCALENDAR") || !strings.Contains(string(data), "Pink City Heritage Walk") {
		t.Errorf("calendar missing expected content:\n%s", data)
	}
	if strings.Contains(string(data), "Sunburn Arena") {
		t.Error("calendar includes an expired event")
	}
}

func TestScrape_Failures(t *testing.T) {
	tests := []struct {
		name     string
		renderer scraper.Renderer
		args     []string
		wantCode int
	}{
		{
			name:     "unsupported city",
			renderer: stubRenderer{},
			args:     []string{"scrape", "paris"},
			wantCode: ExitBadInput,
		},
		{
			name:     "render failure",
			renderer: stubRenderer{err: errors.New("navigation timeout")},
			args:     []string{"scrape", "mumbai"},
			wantCode: ExitExtraction,
		},
		{
			name:     "empty page",
			renderer: stubRenderer{},
			args:     []string{"scrape", "delhi"},
			wantCode: ExitExtraction,
		},
		{
			name:     "bad format",
			renderer: stubRenderer{},
			args:     []string{"scrape", "--format", "xml"},
			wantCode: ExitBadInput,
		},
		{
			name:     "bad renderer config",
			renderer: stubRenderer{},
			args:     []string{"scrape", "--renderer", "curl"},
			wantCode: ExitBadInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useRenderer(t, tt.renderer)
			dir := t.TempDir()

			_, err := execute(t, append(tt.args, "--data-dir", dir)...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if got := exitCode(err); got != tt.wantCode {
				t.Errorf("exitCode(%v) = %d, want %d", err, got, tt.wantCode)
			}

			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("failed run left files behind: %v", entries)
			}
		})
	}
}

func TestList_Errors(t *testing.T) {
	useRenderer(t, stubRenderer{})
	dir := t.TempDir()

	if _, err := execute(t, "list", "mumbai", "--data-dir", dir); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("list of missing dataset error = %v, want ErrNotFound", err)
	}
	if _, err := execute(t, "list", "--data-dir", dir, "--sort", "price"); exitCode(err) != ExitBadInput {
		t.Errorf("list --sort price exit = %d, want %d", exitCode(err), ExitBadInput)
	}
	if _, err := execute(t, "list", "--data-dir", dir, "--dates", "someday"); exitCode(err) != ExitBadInput {
		t.Errorf("list --dates someday exit = %d, want %d", exitCode(err), ExitBadInput)
	}
	if _, err := execute(t, "list", "--data-dir", dir, "--status", "soon"); exitCode(err) != ExitBadInput {
		t.Errorf("list --status soon exit = %d, want %d", exitCode(err), ExitBadInput)
	}
}

func TestBindFlags(t *testing.T) {
	v := viper.New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("data-dir", "", "")
	if err := flags.Parse([]string{"--data-dir", "/tmp/events"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	err := bindFlags(v, flags, map[string]string{
		"data_dir":    "data-dir",
		"server.addr": "addr",
	})
	if err != nil {
		t.Fatalf("bindFlags() error = %v", err)
	}
	if got := v.GetString("data_dir"); got != "/tmp/events" {
		t.Errorf("data_dir = %q, want /tmp/events", got)
	}
	if v.IsSet("server.addr") {
		t.Error("server.addr bound although the flag set has no addr flag")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	useRenderer(t, stubRenderer{})
	_, err := execute(t, "serve", "--data-dir", t.TempDir(), "--renderer", "curl", "--addr", "127.0.0.1:0")
	if exitCode(err) != ExitBadInput {
		t.Errorf("serve with bad renderer exit = %d (%v), want %d", exitCode(err), err, ExitBadInput)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{fmt.Errorf("x: %w", city.ErrUnsupportedCity), ExitBadInput},
		{fmt.Errorf("x: %w", pipeline.ErrExtractionFailed), ExitExtraction},
		{fmt.Errorf("x: %w", pipeline.ErrPersistenceFailed), ExitPersistence},
		{usageError{errors.New("bad flag")}, ExitBadInput},
		{errors.New("boom"), ExitError},
	}

	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSortEvents(t *testing.T) {
	mk := func(name, venue, date string) *event.Event {
		e := &event.Event{Name: name, Venue: venue, RawDate: date, URL: name}
		e.Refresh(cliNow)
		return e
	}

	tests := []struct {
		name  string
		order SortOrder
		want  []string
	}{
		{"by date", SortByDate, []string{"b", "c", "a", "d"}},
		{"by name", SortByName, []string{"a", "b", "c", "d"}},
		{"by venue", SortByVenue, []string{"d", "c", "b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := []*event.Event{
				mk("a", "Zoo", "20 Mar"),
				mk("b", "Yard", "Sun, 1 Feb"),
				mk("c", "Hall", "14 Feb onwards"),
				mk("d", "Arena", "TBA"),
			}
			sortEvents(events, tt.order)

			got := make([]string, len(events))
			for i, e := range events {
				got[i] = e.Name
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("sortEvents(%s) = %v, want %v", tt.order, got, tt.want)
			}
		})
	}
}

func TestWriteListText(t *testing.T) {
	var buf bytes.Buffer
	err := WriteList(&buf, &ListResult{City: "Gurgaon"}, FormatText, false)
	if err != nil {
		t.Fatalf("WriteList() error = %v", err)
	}
	if got := buf.String(); got != "No events found for Gurgaon.\n" {
		t.Errorf("WriteList() = %q", got)
	}

	buf.Reset()
	evt := &event.Event{Name: "Show", RawDate: "14 Feb", Venue: "Hall", Category: "Music", URL: "https://x/events/show", Status: event.StatusUpcoming}
	err = WriteList(&buf, &ListResult{City: "Gurgaon", Count: 1, Events: []*event.Event{evt}}, FormatText, true)
	if err != nil {
		t.Fatalf("WriteList() error = %v", err)
	}
	for _, want := range []string{"Gurgaon (1 events):", "[Upcoming] 14 Feb: Show @ Hall", "Category: Music", "URL: https://x/events/show"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("WriteList() output missing %q:\n%s", want, buf.String())
		}
	}
}
