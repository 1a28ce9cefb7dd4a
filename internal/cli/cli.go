package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pfrederiksen/city-events/internal/pipeline"
)

// Process exit codes. Each failure category gets its own code so cron jobs
// and wrappers can tell a bad city name from a site outage.
const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitBadInput    = 2
	ExitExtraction  = 3
	ExitPersistence = 4
)

var (
	flagConfig   string
	flagDataDir  string
	flagLogLevel string
	flagRenderer string
	flagFormat   string
	flagVerbose  bool
)

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "city-events",
		Short: "Scrape city event listings into per-city spreadsheets",
		Long: `A tool that renders a city's event listing page, extracts the event cards
and merges them into a per-city Excel dataset, keeping history across runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (YAML, TOML or JSON)")
	pf.StringVar(&flagDataDir, "data-dir", "", "Directory holding events_<city>.xlsx files")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&flagRenderer, "renderer", "", "Page renderer: browser or http")
	pf.StringVar(&flagFormat, "format", "text", "Output format: text or json")
	pf.BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging and output")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return bindFlags(v, cmd.Flags(), map[string]string{
			"data_dir":    "data-dir",
			"log.level":   "log-level",
			"renderer":    "renderer",
			"server.addr": "addr",
		})
	}

	cmd.AddCommand(
		newScrapeCmd(v),
		newServeCmd(v),
		newListCmd(v),
		newExportCmd(v),
	)

	return cmd
}

// bindFlags binds command-line flags to viper keys. Flags the running
// command does not define are skipped.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", name, err)
		}
	}
	return nil
}

// usageError marks invalid flag values
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	var usage usageError
	if errors.As(err, &usage) {
		return ExitBadInput
	}

	switch pipeline.CategoryOf(err) {
	case pipeline.CategoryNone:
		return ExitSuccess
	case pipeline.CategoryBadInput:
		return ExitBadInput
	case pipeline.CategoryExtraction:
		return ExitExtraction
	case pipeline.CategoryPersistence:
		return ExitPersistence
	default:
		return ExitError
	}
}

// parseFormat validates the --format flag
func parseFormat() (OutputFormat, error) {
	format := OutputFormat(flagFormat)
	if format != FormatText && format != FormatJSON {
		return "", usageError{fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)}
	}
	return format, nil
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
