package cli

import (
	"github.com/spf13/cobra"

	"price-advisor/internal/app"
)

var (
	exportOwner     string
	exportProduct   string
	exportCSVPath   string
	exportPNGPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored analyses as CSV and/or a product chart as PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Owner:     exportOwner,
			Product:   exportProduct,
			CSVPath:   exportCSVPath,
			PNGPath:   exportPNGPath,
			MaxPoints: exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOwner, "owner", "", "Owner whose data to export")
	exportCmd.Flags().StringVar(&exportProduct, "product", "", "Product to chart (required with --png)")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write the analyses CSV")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write the price history chart")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum chart points (defaults to config)")
}
