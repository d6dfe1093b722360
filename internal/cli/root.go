// Package cli implements the shoppersense command line: bulk CSV import into
// a persistent store and one-shot analytics reports.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"shoppersense/internal/config"
	"shoppersense/internal/observability"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	StoreDriver string
	StoreDSN    string
	CSVFile     string
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shoppersense",
		Short: "ShopperSense retail analytics",
		Long:  "Import retail transactions and compute KPIs, segments, bundles and trends from the command line.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.StoreDriver, "store-driver", "", "store driver (memory|sqlite3|mysql), overrides STORE_DRIVER")
	cmd.PersistentFlags().StringVar(&opts.StoreDSN, "store-dsn", "", "store DSN, overrides STORE_DSN")
	cmd.PersistentFlags().StringVar(&opts.CSVFile, "csv-file", "", "CSV file served by the memory driver, overrides CSV_FILE")

	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))

	return cmd
}

// config loads the environment configuration and applies the flag overrides.
func (o *RootOptions) config() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.StoreDriver != "" {
		cfg.Store.Driver = o.StoreDriver
	}
	if o.StoreDSN != "" {
		cfg.Store.DSN = o.StoreDSN
	}
	if o.CSVFile != "" {
		cfg.Store.CSVFile = o.CSVFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// logger writes text logs to w. Without --verbose only warnings surface.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	return observability.NewLoggerTo(w, config.LoggerConfig{Level: level, Format: "text"})
}
