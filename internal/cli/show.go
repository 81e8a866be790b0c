package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"price-advisor/internal/app"
)

var (
	showOwner string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display an owner's stored analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showOwner == "" {
			return fmt.Errorf("--owner must be provided")
		}

		opts := app.ShowOptions{
			Owner: showOwner,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showOwner, "owner", "", "Owner whose analyses to display")
}
