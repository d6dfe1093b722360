package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"shoppersense/internal/app"
	"shoppersense/internal/ingest"
	"shoppersense/internal/services"
)

const defaultChunkSize = 500

// ImportSummary aggregates the per-chunk import results.
type ImportSummary struct {
	File string `json:"file"`
	services.ImportResult
	Unparsed int `json:"unparsed"`
}

func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var chunkSize int

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a transactions CSV into the store",
		Long: `Import a transactions CSV into a persistent store.

Headers are matched by name and common aliases. Rows that cannot be parsed
or fail validation are skipped, and rows already stored are counted as
duplicates, so the same file can be imported twice.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, rootOpts, args[0], chunkSize)
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", defaultChunkSize, "rows per insert batch")

	return cmd
}

func runImport(cmd *cobra.Command, opts *RootOptions, path string, chunkSize int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	cfg, err := opts.config()
	if err != nil {
		return err
	}
	if cfg.Store.Driver == "memory" {
		return fmt.Errorf("import needs a persistent store, got driver %q", cfg.Store.Driver)
	}

	ctx := cmd.Context()
	logger := opts.logger(cmd.ErrOrStderr())

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := ingest.ReadCSV(ctx, f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	logger.Debug("csv parsed", "file", path, "rows", len(parsed.Transactions), "skipped", parsed.Skipped)

	// The store is only written here; no seed file.
	storeCfg := cfg.Store
	storeCfg.CSVFile = ""
	repo, err := app.OpenRepository(ctx, storeCfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	analytics := services.NewAnalytics(repo, nil, logger)
	summary := ImportSummary{File: path, Unparsed: parsed.Skipped}

	txs := parsed.Transactions
	bar := progressbar.NewOptions(len(txs),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("importing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(opts.Format == "text"),
	)

	for start := 0; start < len(txs); start += chunkSize {
		end := min(start+chunkSize, len(txs))
		res, err := analytics.ImportTransactions(ctx, txs[start:end])
		if err != nil {
			return fmt.Errorf("import rows %d-%d: %w", start+1, end, err)
		}
		summary.Received += res.Received
		summary.Inserted += res.Inserted
		summary.Duplicates += res.Duplicates
		summary.Invalid += res.Invalid
		_ = bar.Add(end - start)
	}
	_ = bar.Finish()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(summary, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s: %d received, %d inserted, %d duplicates, %d invalid, %d unparsed\n",
			summary.File, summary.Received, summary.Inserted, summary.Duplicates, summary.Invalid, summary.Unparsed)
		return err
	})
}
