package batchcmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mediabatch/internal/feed"
	"mediabatch/internal/photoroom"
	"mediabatch/internal/pipeline"
	"mediabatch/internal/report"
)

// NewRemoveBGCmd builds the background-removal pipeline command.
func NewRemoveBGCmd() *cobra.Command {
	var (
		inputDir  string
		delay     time.Duration
		reportDir string
		verbose   bool

		opts photoroom.Options
	)

	cmd := &cobra.Command{
		Use:   "removebg",
		Short: "Remove backgrounds from a directory of images via the Photoroom API",
		Long: `Send every supported image (.jpg, .jpeg, .png, .webp) in a directory
through the Photoroom background-removal API and write the processed
images to an output directory.

The basic v1/segment endpoint supports preset sizes; --v2 targets the
v2/edit endpoint (Plus plan) with custom output dimensions and padding.
Sandbox mode marks the API key as a sandbox credential; calls still
reach the live endpoint and count against sandbox quota.`,
		Example: `  # Amazon-style white background, 2000x2000, 85% product fill
  mediabatch removebg --input-dir ./input --output-dir ./output \
    --v2 --format jpg --bg-color FFFFFF --output-size 2000x2000 --padding 0.075

  # Basic plan, transparent background
  mediabatch removebg --input-dir ./input --output-dir ./output --size hd`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputDir == "" {
				return fmt.Errorf("--input-dir is required")
			}
			if opts.APIKey == "" {
				opts.APIKey = os.Getenv("PHOTOROOM_API_KEY")
			}
			return executeRemoveBG(cmd.Context(), inputDir, opts, delay, reportDir, verbose)
		},
	}

	cmd.Flags().StringVar(&inputDir, "input-dir", "", "Directory of input images (required)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "output_images", "Directory for processed images")
	cmd.Flags().DurationVar(&delay, "delay", pipeline.DefaultDelay, "Minimum delay between API calls")
	cmd.Flags().StringVar(&reportDir, "report-dir", "reports", "Directory for the YAML run report")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	cmd.Flags().StringVar(&opts.APIKey, "api-key", "", "Photoroom API key (default: PHOTOROOM_API_KEY)")
	cmd.Flags().BoolVar(&opts.Sandbox, "sandbox", false, "Use the sandbox credential (calls still reach the API)")
	cmd.Flags().BoolVar(&opts.UseV2, "v2", false, "Use the v2/edit endpoint (Plus plan)")
	cmd.Flags().StringVar(&opts.Format, "format", "png", "Output format: png, jpg or webp")
	cmd.Flags().StringVar(&opts.BGColor, "bg-color", "", "Background color (hex or HTML name; empty for transparent)")
	cmd.Flags().BoolVar(&opts.Crop, "crop", false, "Crop output to the cutout border")
	cmd.Flags().StringVar(&opts.Size, "size", "", "v1 output size: preview, medium, hd or full")
	cmd.Flags().BoolVar(&opts.Despill, "despill", false, "v1: remove green-screen color reflections")
	cmd.Flags().StringVar(&opts.OutputSize, "output-size", "", "v2 output dimensions, e.g. 2000x2000")
	cmd.Flags().IntVar(&opts.MaxWidth, "max-width", 0, "v2 maximum output width in pixels")
	cmd.Flags().IntVar(&opts.MaxHeight, "max-height", 0, "v2 maximum output height in pixels")
	cmd.Flags().Float64Var(&opts.Padding, "padding", 0, "v2 padding around the subject (0-0.49)")

	return cmd
}

func executeRemoveBG(ctx context.Context, inputDir string, opts photoroom.Options, delay time.Duration, reportDir string, verbose bool) error {
	setupLogging(verbose)

	endpoint := photoroom.V1BaseURL
	if opts.UseV2 {
		endpoint = photoroom.V2BaseURL
	}

	slog.Info("Starting background removal run",
		"input", inputDir,
		"output", opts.OutputDir,
		"endpoint", endpoint,
		"sandbox", opts.Sandbox)

	client, err := photoroom.NewClient(opts)
	if err != nil {
		return err
	}

	items, err := feed.ListImages(inputDir)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Printf("No images found in %s\n", inputDir)
		return nil
	}
	slog.Info("Found images to process", "count", len(items))

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	summary := pipeline.NewRunner(delay).Run(ctx, items, client)

	rep := report.New("removebg", endpoint, "", opts.Sandbox, summary)
	reportPath, err := rep.Save(reportDir)
	if err != nil {
		fmt.Printf("Warning: failed to save run report: %v\n", err)
	} else {
		fmt.Printf("Run report saved to: %s\n", reportPath)
	}

	printRunSummary("Background removal", summary)
	fmt.Printf("Output saved to: %s\n", opts.OutputDir)

	return nil
}
