// Package storage provides spreadsheet persistence for per-city event datasets.
//
// The storage package keeps one .xlsx workbook per city (events_<city>.xlsx) with a
// fixed column set: Event Name, Date, Venue, City, Category, Event URL, Status.
// Workbooks are replaced atomically so a failed save never leaves a partial file.
// The default storage location is ~/.local/share/city-events/.
package storage
