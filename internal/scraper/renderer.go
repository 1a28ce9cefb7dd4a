package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// UserAgent is a desktop Chrome string; the listing site serves a reduced page to bots
	UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Timeout bounds page navigation
	Timeout = 60 * time.Second

	// SelectorTimeout bounds the wait for the first event link after navigation
	SelectorTimeout = 15 * time.Second

	maxPageBytes = 16 << 20
)

// ErrEmptyPage is returned when a renderer produced no content
var ErrEmptyPage = errors.New("renderer returned no content")

// Renderer produces the rendered HTML of a page
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// HTTPRenderer fetches pages without executing JavaScript.
// It serves static mirrors of the listing page and tests.
type HTTPRenderer struct {
	client    *http.Client
	userAgent string
}

// NewHTTPRenderer creates an HTTPRenderer with the given request timeout
func NewHTTPRenderer(timeout time.Duration) *HTTPRenderer {
	if timeout <= 0 {
		timeout = Timeout
	}
	return &HTTPRenderer{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: UserAgent,
	}
}

// Render implements Renderer
func (r *HTTPRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}
	if len(body) == 0 {
		return "", ErrEmptyPage
	}

	return string(body), nil
}
