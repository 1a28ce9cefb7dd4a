package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/pfrederiksen/city-events/internal/logger"
)

// BrowserConfig configures BrowserRenderer
type BrowserConfig struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome.
	// Empty launches a local Chrome for each render.
	RemoteURL string

	Headless        bool
	UserAgent       string
	Timeout         time.Duration // navigation bound
	SelectorTimeout time.Duration // secondary wait for the first event link
}

func (c *BrowserConfig) defaults() {
	if c.UserAgent == "" {
		c.UserAgent = UserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = Timeout
	}
	if c.SelectorTimeout <= 0 {
		c.SelectorTimeout = SelectorTimeout
	}
}

// BrowserRenderer renders JavaScript-heavy listing pages in headless Chrome
type BrowserRenderer struct {
	cfg BrowserConfig
}

// NewBrowserRenderer creates a BrowserRenderer
func NewBrowserRenderer(cfg BrowserConfig) *BrowserRenderer {
	cfg.defaults()
	return &BrowserRenderer{cfg: cfg}
}

// Render navigates to pageURL and returns the document HTML once at least one
// event link is present. If no event link appears within SelectorTimeout the
// page is returned as it is.
func (r *BrowserRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout+r.cfg.SelectorTimeout)
	defer cancel()

	browser, release, err := r.connect(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	page, err := stealth.Page(browser)
	if err != nil {
		return "", fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.cfg.UserAgent}); err != nil {
		logger.Warn("Could not override user agent", logger.Fields{"error": err.Error()})
	}

	navCtx, cancelNav := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancelNav()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return "", fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		logger.Warn("Page did not finish loading before navigation timeout", logger.Fields{"url": pageURL, "error": err.Error()})
	}

	selCtx, cancelSel := context.WithTimeout(ctx, r.cfg.SelectorTimeout)
	defer cancelSel()

	if _, err := page.Context(selCtx).Element(EventLinkSelector); err != nil {
		logger.Warn("Timeout waiting for event cards, page might be empty or structure changed", logger.Fields{
			"url":     pageURL,
			"timeout": r.cfg.SelectorTimeout.String(),
		})
	}

	content, err := page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	if content == "" {
		return "", ErrEmptyPage
	}

	return content, nil
}

// connect attaches to a remote Chrome or launches a local one. The returned
// release func closes whatever connect started.
func (r *BrowserRenderer) connect(ctx context.Context) (*rod.Browser, func(), error) {
	if r.cfg.RemoteURL != "" {
		b := rod.New().ControlURL(r.cfg.RemoteURL).Context(ctx)
		if err := b.Connect(); err != nil {
			return nil, nil, fmt.Errorf("browser: connect %s: %w", r.cfg.RemoteURL, err)
		}
		return b, func() {}, nil
	}

	l := launcher.New().
		Headless(r.cfg.Headless).
		Set("disable-blink-features", "AutomationControlled")

	wsURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("browser: launch: %w", err)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, nil, fmt.Errorf("browser: connect: %w", err)
	}

	return b, func() {
		if err := b.Close(); err != nil {
			logger.Debug("Browser close failed", logger.Fields{"error": err.Error()})
		}
		l.Kill()
	}, nil
}
