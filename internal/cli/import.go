package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"price-advisor/internal/app"
)

var (
	importFile   string
	importOwner  string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a CSV of sales records",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importFile == "" || importOwner == "" {
			return fmt.Errorf("--file and --owner must be provided")
		}

		opts := app.ImportOptions{
			Path:   importFile,
			Owner:  importOwner,
			DryRun: importDryRun,
		}

		return getApp().Import(cmd.Context(), opts)
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "Path to the sales CSV file")
	importCmd.Flags().StringVar(&importOwner, "owner", "", "Owner the imported records belong to")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse and validate without writing to storage")
}
