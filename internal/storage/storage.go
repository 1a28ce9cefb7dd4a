package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pfrederiksen/city-events/internal/city"
	"github.com/pfrederiksen/city-events/internal/event"
)

// ErrNotFound is returned by Load when a city has no dataset yet
var ErrNotFound = errors.New("dataset not found")

const sheetName = "Events"

// Persisted columns, in order. Nothing derived beyond Status is written.
var columns = []string{"Event Name", "Date", "Venue", "City", "Category", "Event URL", "Status"}

// Status is recomputed on every merge, so a sheet without it still loads
const statusColumn = "Status"

// Storage handles persistence of city datasets
type Storage struct {
	dataDir string
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
	}, nil
}

// Path returns the dataset file for a city key
func (s *Storage) Path(cityKey string) string {
	return filepath.Join(s.dataDir, city.City{Key: cityKey}.FileName())
}

// Load reads a city's dataset. Statuses are returned as stored; callers must
// recompute them before use.
func (s *Storage) Load(cityKey string) (event.Dataset, error) {
	path := s.Path(cityKey)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("workbook %s has no header row", path)
	}

	index, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	dataset := make(event.Dataset, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		cell := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		dataset = append(dataset, &event.Event{
			Name:     cell("Event Name"),
			RawDate:  cell("Date"),
			Venue:    cell("Venue"),
			City:     cell("City"),
			Category: cell("Category"),
			URL:      cell("Event URL"),
			Status:   event.Status(cell(statusColumn)),
		})
	}

	return dataset, nil
}

// Save replaces a city's dataset. The workbook is written to a temporary file
// in the data directory and renamed over the old one, so on failure the
// previous dataset is left untouched.
func (s *Storage) Save(cityKey string, dataset event.Dataset) (err error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, evt := range dataset {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		row := []interface{}{evt.Name, evt.RawDate, evt.Venue, evt.City, evt.Category, evt.URL, string(evt.Status)}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	path := s.Path(cityKey)
	tmp, err := os.CreateTemp(s.dataDir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing dataset: %w", err)
	}

	return nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	var missing []string
	for _, c := range columns {
		if c == statusColumn {
			continue
		}
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("dataset schema mismatch: missing columns %s", strings.Join(missing, ", "))
	}
	return index, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
