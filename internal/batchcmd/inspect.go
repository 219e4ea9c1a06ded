package batchcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediabatch/internal/feed"
)

// NewInspectCmd builds the feed inspection command.
func NewInspectCmd() *cobra.Command {
	var (
		feedPath  string
		delimiter string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print feed columns and sample rows",
		Long: `Inspect a product feed (.csv or .parquet) before a run: list its
column names and print the first rows, for checking column mappings.`,
		Example: `  # Check a pipe-delimited feed
  mediabatch inspect --feed feed.csv --delimiter "|" --limit 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if feedPath == "" {
				return fmt.Errorf("--feed is required")
			}
			sep, err := parseDelimiter(delimiter)
			if err != nil {
				return err
			}
			return executeInspect(feedPath, sep, limit)
		},
	}

	cmd.Flags().StringVar(&feedPath, "feed", "", "Path to the feed file (required)")
	cmd.Flags().StringVar(&delimiter, "delimiter", ",", "CSV delimiter (e.g. \",\" or \"|\")")
	cmd.Flags().IntVar(&limit, "limit", 5, "Number of rows to print (0 for all)")

	return cmd
}

func executeInspect(feedPath string, delimiter rune, limit int) error {
	table, err := feed.NewLoader(feedPath, delimiter).Load()
	if err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}

	fmt.Printf("Feed: %s\n", feedPath)
	fmt.Printf("Rows: %d\n", len(table.Rows))
	fmt.Printf("Columns: %s\n", strings.Join(table.Columns, ", "))

	n := len(table.Rows)
	if limit > 0 && limit < n {
		n = limit
	}

	for i := 0; i < n; i++ {
		fmt.Printf("\n--- Row %d ---\n", i)
		for j, col := range table.Columns {
			fmt.Printf("  %s: %s\n", col, table.Rows[i][j])
		}
	}

	return nil
}
