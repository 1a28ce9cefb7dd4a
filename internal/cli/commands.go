package cli

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pfrederiksen/city-events/internal/calendar"
	"github.com/pfrederiksen/city-events/internal/city"
	"github.com/pfrederiksen/city-events/internal/event"
	"github.com/pfrederiksen/city-events/internal/filter"
	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/server"
)

// now is swapped in tests
var now = time.Now

// cityArg returns the optional positional city, defaulting when absent
func cityArg(args []string) string {
	if len(args) == 0 {
		return city.DefaultCity
	}
	return args[0]
}

func newScrapeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape [city]",
		Short: "Scrape one city's listing page and merge it into its dataset",
		Long: fmt.Sprintf(`Render the listing page for a city, extract its events and merge them
into the city's spreadsheet. Supported cities: %s (default %s).`,
			strings.Join(city.Supported(), ", "), city.DefaultCity),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat()
			if err != nil {
				return err
			}
			d, err := loadDeps(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Sync()

			result, err := d.orchestrator().Run(cmd.Context(), cityArg(args), now())
			if err != nil {
				return err
			}
			return WriteRun(cmd.OutOrStdout(), result, format)
		},
	}
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP scrape trigger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(d.orchestrator(), d.store, logger.MetricsHandler())
			return srv.ListenAndServe(ctx, d.cfg.Server.Addr)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from server.addr)")

	return cmd
}

func newListCmd(v *viper.Viper) *cobra.Command {
	var (
		status    string
		sortOrder string
		q         filterFlags
	)

	cmd := &cobra.Command{
		Use:   "list [city]",
		Short: "Print a city's stored events with statuses recomputed for today",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat()
			if err != nil {
				return err
			}
			order := SortOrder(strings.ToLower(sortOrder))
			if !order.valid() {
				return usageError{fmt.Errorf("invalid sort: %s (must be 'date', 'name' or 'venue')", sortOrder)}
			}
			statusFilter, err := parseStatus(status)
			if err != nil {
				return err
			}
			t := now()
			f, err := q.build(t)
			if err != nil {
				return err
			}

			d, err := loadDeps(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			c, err := city.Lookup(cityArg(args))
			if err != nil {
				return err
			}
			stored, err := d.store.Load(c.Key)
			if err != nil {
				return fmt.Errorf("loading %s: %w", c.DisplayName(), err)
			}

			dataset := f.Apply(event.Merge(nil, stored, t))
			if statusFilter != "" {
				dataset = dataset.WithStatus(statusFilter)
			}
			if !f.IsEmpty() {
				logger.Debug("Filter applied", logger.Fields{"filter": f.String(), "matched": len(dataset)})
			}
			sortEvents(dataset, order)

			return WriteList(cmd.OutOrStdout(), &ListResult{
				City:      c.DisplayName(),
				CheckedAt: t.UTC(),
				Count:     len(dataset),
				Events:    dataset,
			}, format, flagVerbose)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show events with this status: upcoming, expired or unknown")
	cmd.Flags().StringVar(&sortOrder, "sort", string(SortByDate), "Sort order: date, name or venue")
	q.register(cmd)

	return cmd
}

func newExportCmd(v *viper.Viper) *cobra.Command {
	var (
		out string
		q   filterFlags
	)

	cmd := &cobra.Command{
		Use:   "export-ics [city]",
		Short: "Write a city's upcoming events as an iCalendar file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := now()
			f, err := q.build(t)
			if err != nil {
				return err
			}

			d, err := loadDeps(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			c, err := city.Lookup(cityArg(args))
			if err != nil {
				return err
			}
			dataset, err := d.store.Load(c.Key)
			if err != nil {
				return fmt.Errorf("loading %s: %w", c.DisplayName(), err)
			}

			var buf bytes.Buffer
			if err := calendar.Write(&buf, f.Apply(event.Merge(nil, dataset, t)), t); err != nil {
				return fmt.Errorf("exporting %s: %w", c.DisplayName(), err)
			}

			if out == "" || out == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			logger.Info("Calendar exported", logger.Fields{"city": c.Key, "path": out})
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	q.register(cmd)

	return cmd
}

// parseStatus validates the --status flag; empty means no status filter
func parseStatus(s string) (event.Status, error) {
	if s == "" {
		return "", nil
	}
	st, err := event.ParseStatus(s)
	if err != nil {
		return "", usageError{err}
	}
	return st, nil
}

// filterFlags collects the dataset filter flags shared by list and export-ics
type filterFlags struct {
	dates      string
	search     string
	venues     []string
	categories []string
	weekends   bool
}

func (q *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.dates, "dates", "", "Date range, e.g. 'Feb 14-16', 'Feb 28 - Mar 2' or 'March'")
	cmd.Flags().StringVar(&q.search, "search", "", "Only events whose name contains this text")
	cmd.Flags().StringSliceVar(&q.venues, "venue", nil, "Only events at a venue containing this text (repeatable)")
	cmd.Flags().StringSliceVar(&q.categories, "category", nil, "Only events in a category containing this text (repeatable)")
	cmd.Flags().BoolVar(&q.weekends, "weekends", false, "Only events on Saturday or Sunday")
}

func (q *filterFlags) build(t time.Time) (*filter.Filter, error) {
	f := &filter.Filter{
		Search:       q.search,
		Venues:       q.venues,
		Categories:   q.categories,
		WeekendsOnly: q.weekends,
	}
	if q.dates != "" {
		from, to, err := filter.ParseDateRange(q.dates, t)
		if err != nil {
			return nil, usageError{err}
		}
		f.DateFrom, f.DateTo = from, to
	}
	return f, nil
}
