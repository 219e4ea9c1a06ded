package batchcmd

import (
	"fmt"
	"log/slog"
	"os"

	"mediabatch/internal/pipeline"
)

// setupLogging installs the default slog handler for a run.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// printRunSummary prints the aggregate counts for a completed run.
func printRunSummary(name string, summary *pipeline.Summary) {
	fmt.Println("\n========================================")
	fmt.Printf("%s Summary\n", name)
	fmt.Println("========================================")
	fmt.Printf("Total items:  %d\n", summary.Processed)
	fmt.Printf("Succeeded:    %d\n", summary.Succeeded)
	fmt.Printf("Failed:       %d\n", summary.Failed)
	fmt.Printf("Skipped:      %d\n", summary.Skipped)
	fmt.Println("========================================")
}
