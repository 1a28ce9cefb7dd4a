// Package server exposes the scrape trigger and dataset reads over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pfrederiksen/city-events/internal/calendar"
	"github.com/pfrederiksen/city-events/internal/city"
	"github.com/pfrederiksen/city-events/internal/event"
	"github.com/pfrederiksen/city-events/internal/filter"
	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/pipeline"
	"github.com/pfrederiksen/city-events/internal/storage"
)

// Runner runs one scrape for a city
type Runner interface {
	Run(ctx context.Context, cityName string, now time.Time) (*pipeline.Result, error)
}

// Reader loads a persisted dataset
type Reader interface {
	Load(cityKey string) (event.Dataset, error)
}

// Server serves the HTTP trigger interface
type Server struct {
	runner  Runner
	reader  Reader
	metrics http.Handler
	now     func() time.Time
	router  chi.Router
}

// New creates a Server. metrics may be nil to disable /metrics.
func New(runner Runner, reader Reader, metrics http.Handler) *Server {
	s := &Server{
		runner:  runner,
		reader:  reader,
		metrics: metrics,
		now:     time.Now,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Get("/cities", s.handleCities)
	r.Post("/run-scraper", s.handleRun)
	r.Get("/events/{city}", s.handleEvents)
	r.Get("/events/{city}/calendar.ics", s.handleCalendar)

	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logger.Fields{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		logger.Info("HTTP server shutting down", nil)
		return srv.Shutdown(shutdownCtx)
	}
}

type runRequest struct {
	City string `json:"city"`
}

type runResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Details string            `json:"details"`
	Count   int               `json:"count"`
	RunID   string            `json:"run_id"`
	Stats   *event.MergeStats `json:"stats"`
}

type errorResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:   "error",
			Message:  "Invalid request body",
			Category: string(pipeline.CategoryBadInput),
		})
		return
	}
	if req.City == "" {
		req.City = city.DefaultCity
	}

	c, err := city.Lookup(req.City)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:   "error",
			Message:  fmt.Sprintf("Invalid city selected: %s", req.City),
			Category: string(pipeline.CategoryBadInput),
		})
		return
	}

	// A client disconnect must not abort a run that is already underway
	result, err := s.runner.Run(context.WithoutCancel(r.Context()), c.Key, s.now())
	if err != nil {
		category := pipeline.CategoryOf(err)
		writeJSON(w, statusFor(category), errorResponse{
			Status:   "error",
			Message:  fmt.Sprintf("Scraper failed: %v", err),
			Category: string(category),
		})
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		Status:  "success",
		Message: fmt.Sprintf("Events for %s successfully fetched!", c.DisplayName()),
		Details: fmt.Sprintf("%d events saved (%d new, %d updated)", result.Count, result.Stats.New, result.Stats.Updated),
		Count:   result.Count,
		RunID:   result.RunID,
		Stats:   &result.Stats,
	})
}

func statusFor(category pipeline.Category) int {
	switch category {
	case pipeline.CategoryBadInput:
		return http.StatusBadRequest
	case pipeline.CategoryExtraction:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"cities": city.Supported()})
}

// loadCity loads, refreshes and filters a dataset, writing the error response itself
func (s *Server) loadCity(w http.ResponseWriter, r *http.Request) (city.City, event.Dataset, bool) {
	c, err := city.Lookup(chi.URLParam(r, "city"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": err.Error()})
		return city.City{}, nil, false
	}

	dataset, err := s.reader.Load(c.Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": fmt.Sprintf("no events stored for %s", c.DisplayName())})
			return c, nil, false
		}
		logger.Error("Loading dataset failed", logger.Fields{"city": c.Key}, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "dataset unreadable"})
		return c, nil, false
	}

	now := s.now()
	f, err := queryFilter(r, now)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": err.Error()})
		return c, nil, false
	}

	return c, f.Apply(event.Merge(nil, dataset, now)), true
}

// queryFilter reads dates, q, venue, category and weekends query parameters
func queryFilter(r *http.Request, now time.Time) (*filter.Filter, error) {
	query := r.URL.Query()
	f := &filter.Filter{
		Search:       query.Get("q"),
		Venues:       query["venue"],
		Categories:   query["category"],
		WeekendsOnly: query.Get("weekends") == "true",
	}
	if dates := query.Get("dates"); dates != "" {
		from, to, err := filter.ParseDateRange(dates, now)
		if err != nil {
			return nil, err
		}
		f.DateFrom, f.DateTo = from, to
	}
	return f, nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	c, dataset, ok := s.loadCity(w, r)
	if !ok {
		return
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := event.ParseStatus(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: err.Error(), Category: string(pipeline.CategoryBadInput)})
			return
		}
		dataset = dataset.WithStatus(status)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"city":   c.DisplayName(),
		"count":  len(dataset),
		"events": dataset,
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	c, dataset, ok := s.loadCity(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := calendar.Write(&buf, dataset, s.now()); err != nil {
		if errors.Is(err, calendar.ErrNoEvents) {
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": fmt.Sprintf("no upcoming events for %s", c.DisplayName())})
			return
		}
		logger.Error("Encoding calendar failed", logger.Fields{"city": c.Key}, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "calendar export failed"})
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="events_%s.ics"`, c.Key))
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Writing response failed", nil, err)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Info("HTTP request", logger.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		})
	})
}
