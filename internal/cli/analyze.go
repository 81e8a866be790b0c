package cli

import (
	"github.com/spf13/cobra"

	"price-advisor/internal/app"
)

var (
	analyzeOwner  string
	analyzeTarget string
	analyzeAll    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Recompute elasticity analyses from stored sales",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.AnalyzeOptions{
			Owner:  analyzeOwner,
			Target: analyzeTarget,
			All:    analyzeAll,
		}

		return getApp().Analyze(cmd.Context(), opts)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOwner, "owner", "", "Owner whose sales to analyze")
	analyzeCmd.Flags().StringVar(&analyzeTarget, "target", "", "Optimization target: revenue or profit (defaults to config)")
	analyzeCmd.Flags().BoolVar(&analyzeAll, "all", false, "Analyze every owner with stored sales")
}
