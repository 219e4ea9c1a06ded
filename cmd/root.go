package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mediabatch/internal/batchcmd"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mediabatch",
		Short: "Bulk media processing through external image APIs",
		Long: `Mediabatch runs product image feeds and image directories through
external processing APIs in bulk.

The upload pipeline pushes feed images to the Scaleflex DAM by URL and
records the delivery URLs; the removebg pipeline strips image
backgrounds through the Photoroom API.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	// Add subcommands
	cmd.AddCommand(batchcmd.NewUploadCmd())
	cmd.AddCommand(batchcmd.NewRemoveBGCmd())
	cmd.AddCommand(batchcmd.NewInspectCmd())

	return cmd
}
