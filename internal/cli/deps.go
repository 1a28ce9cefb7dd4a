package cli

import (
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/pipeline"
	"github.com/pfrederiksen/city-events/internal/scraper"
	"github.com/pfrederiksen/city-events/internal/storage"
)

// newRenderer builds the page renderer selected by configuration.
// Tests replace it to avoid network and Chrome.
var newRenderer = func(cfg *config.Config) scraper.Renderer {
	if cfg.Renderer == config.RendererHTTP {
		return scraper.NewHTTPRenderer(cfg.Fetch.Timeout)
	}
	return scraper.NewBrowserRenderer(scraper.BrowserConfig{
		RemoteURL:       cfg.Browser.RemoteURL,
		Headless:        cfg.Browser.Headless,
		Timeout:         cfg.Fetch.Timeout,
		SelectorTimeout: cfg.Fetch.SelectorTimeout,
	})
}

// deps holds the components shared by subcommands
type deps struct {
	cfg   *config.Config
	store *storage.Storage
}

// loadDeps reads configuration, installs the logger and opens storage.
// Logs go to logOut so stdout stays clean for command output.
func loadDeps(v *viper.Viper, logOut io.Writer) (*deps, error) {
	cfg, err := config.Load(v, flagConfig)
	if err != nil {
		return nil, usageError{err}
	}

	level := logger.ParseLevel(cfg.Log.Level)
	if flagVerbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.New(level, logOut))

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	logger.Debug("Configuration loaded", logger.Fields{
		"data_dir": cfg.DataDir,
		"renderer": cfg.Renderer,
		"origin":   cfg.Site.Origin,
	})

	return &deps{cfg: cfg, store: store}, nil
}

// orchestrator wires renderer, extractor and storage into a pipeline
func (d *deps) orchestrator() *pipeline.Orchestrator {
	extractor := scraper.NewExtractor(d.cfg.Site.Origin, scraper.PositionalFields{})
	fetchTimeout := d.cfg.Fetch.Timeout + d.cfg.Fetch.SelectorTimeout + pipeline.FetchSlack
	return pipeline.New(newRenderer(d.cfg), extractor, d.store, fetchTimeout)
}
