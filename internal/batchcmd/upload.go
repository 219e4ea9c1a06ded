package batchcmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediabatch/internal/feed"
	"mediabatch/internal/pipeline"
	"mediabatch/internal/report"
	"mediabatch/internal/scaleflex"
)

// NewUploadCmd builds the upload pipeline command.
func NewUploadCmd() *cobra.Command {
	var (
		inputPath  string
		outputPath string
		delimiter  string
		limit      int
		delay      time.Duration
		reportDir  string
		verbose    bool

		cols feed.ColumnMap

		apiKey       string
		projectToken string
		folder       string
		preset       string
		sandbox      bool
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Bulk-upload product images from a feed to the Scaleflex DAM",
		Long: `Upload every image referenced by a product feed (CSV or Parquet) to the
Scaleflex DAM by URL, attaching per-row metadata, and write the feed back
out with delivery URL, preset URL and status columns appended.

Rows with an empty image URL are skipped; rows the backend rejects are
recorded as failed without stopping the run.`,
		Example: `  # Dry run against a pipe-delimited feed, no API calls
  mediabatch upload --input feed.csv --delimiter "|" --sandbox

  # Live run with metadata columns and a delivery preset
  mediabatch upload --input feed.csv --source-column image_link \
    --brand-column brand --title-column title --preset amz_hero \
    --folder /Products/2026`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return fmt.Errorf("--input is required")
			}
			if outputPath == "" {
				outputPath = defaultOutputPath(inputPath)
			}
			sep, err := parseDelimiter(delimiter)
			if err != nil {
				return err
			}

			if apiKey == "" {
				apiKey = os.Getenv("SCALEFLEX_API_KEY")
			}
			if projectToken == "" {
				projectToken = os.Getenv("SCALEFLEX_PROJECT_TOKEN")
			}

			opts := scaleflex.Options{
				APIKey:       apiKey,
				ProjectToken: projectToken,
				Folder:       folder,
				Preset:       preset,
				Sandbox:      sandbox,
			}

			return executeUpload(cmd.Context(), uploadParams{
				inputPath:  inputPath,
				outputPath: outputPath,
				delimiter:  sep,
				columns:    cols,
				limit:      limit,
				delay:      delay,
				reportDir:  reportDir,
				verbose:    verbose,
				options:    opts,
			})
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "Path to the input feed (.csv or .parquet, required)")
	cmd.Flags().StringVar(&outputPath, "output", "", "Path for the output CSV (default: <input>_processed.csv)")
	cmd.Flags().StringVar(&delimiter, "delimiter", ",", "CSV delimiter (e.g. \",\" or \"|\")")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows to process (0 for all)")
	cmd.Flags().DurationVar(&delay, "delay", pipeline.DefaultDelay, "Minimum delay between API calls")
	cmd.Flags().StringVar(&reportDir, "report-dir", "reports", "Directory for the YAML run report")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	cmd.Flags().StringVar(&cols.Source, "source-column", "image_link", "Feed column holding image URLs")
	cmd.Flags().StringVar(&cols.Brand, "brand-column", "", "Feed column holding brand names")
	cmd.Flags().StringVar(&cols.Title, "title-column", "", "Feed column holding product titles")
	cmd.Flags().StringVar(&cols.Description, "description-column", "", "Feed column holding product descriptions")
	cmd.Flags().StringVar(&cols.EAN, "ean-column", "", "Feed column holding EAN codes")
	cmd.Flags().StringVar(&cols.GTIN, "gtin-column", "", "Feed column holding GTIN codes")
	cmd.Flags().StringVar(&cols.ProductID, "product-id-column", "", "Feed column holding product IDs")

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Filerobot API key (default: SCALEFLEX_API_KEY)")
	cmd.Flags().StringVar(&projectToken, "project-token", "", "Filerobot project token (default: SCALEFLEX_PROJECT_TOKEN)")
	cmd.Flags().StringVar(&folder, "folder", "/Products", "Destination folder in the DAM")
	cmd.Flags().StringVar(&preset, "preset", "", "Delivery preset appended to CDN URLs as ?p=<preset>")
	cmd.Flags().BoolVar(&sandbox, "sandbox", false, "Skip all API calls and synthesize placeholder results")

	return cmd
}

type uploadParams struct {
	inputPath  string
	outputPath string
	delimiter  rune
	columns    feed.ColumnMap
	limit      int
	delay      time.Duration
	reportDir  string
	verbose    bool
	options    scaleflex.Options
}

func executeUpload(ctx context.Context, p uploadParams) error {
	setupLogging(p.verbose)

	slog.Info("Starting upload run",
		"input", p.inputPath,
		"output", p.outputPath,
		"sandbox", p.options.Sandbox,
		"limit", p.limit)

	client, err := scaleflex.NewClient(p.options)
	if err != nil {
		return err
	}

	table, err := feed.NewLoader(p.inputPath, p.delimiter).Load()
	if err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}
	slog.Info("Feed loaded", "rows", len(table.Rows), "columns", len(table.Columns))

	resolved, err := p.columns.Resolve(table)
	if err != nil {
		return err
	}

	items := feed.BuildItems(table, resolved, p.limit)
	if p.limit > 0 && p.limit < len(table.Rows) {
		slog.Info("Row limit applied", "processing", len(items), "total", len(table.Rows))
	}

	// The sandbox path never leaves the process, so there is nothing
	// to throttle.
	delay := p.delay
	if p.options.Sandbox {
		delay = 0
	}

	summary := pipeline.NewRunner(delay).Run(ctx, items, client)

	if err := feed.WriteCSV(p.outputPath, feed.AppendResults(table, summary), p.delimiter); err != nil {
		return err
	}
	slog.Info("Output feed written", "path", p.outputPath)

	rep := report.New("upload", scaleflex.DefaultBaseURL, p.options.Preset, p.options.Sandbox, summary)
	reportPath, err := rep.Save(p.reportDir)
	if err != nil {
		fmt.Printf("Warning: failed to save run report: %v\n", err)
	} else {
		fmt.Printf("Run report saved to: %s\n", reportPath)
	}

	printRunSummary("Upload", summary)
	fmt.Printf("Output saved to: %s\n", p.outputPath)

	return nil
}

// defaultOutputPath derives <stem>_processed.csv next to the input.
func defaultOutputPath(inputPath string) string {
	stem := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	return stem + "_processed.csv"
}

// parseDelimiter validates a single-rune CSV delimiter flag.
func parseDelimiter(s string) (rune, error) {
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return runes[0], nil
}
