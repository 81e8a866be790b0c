package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"price-advisor/internal/app"
)

var (
	simulateFile   string
	simulateTarget string
	simulateCost   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "对本地 CSV 离线运行弹性分析",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateFile == "" {
			return errors.New("--file 必须提供")
		}

		opts := app.SimulateOptions{
			Path:   simulateFile,
			Target: simulateTarget,
			Cost:   simulateCost,
		}

		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateFile, "file", "", "本地销售 CSV 文件路径")
	simulateCmd.Flags().StringVar(&simulateTarget, "target", "", "优化目标 revenue 或 profit")
	simulateCmd.Flags().Float64Var(&simulateCost, "cost", 0, "单位成本，用于 profit 目标")
}
