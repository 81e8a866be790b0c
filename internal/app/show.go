package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints an owner's stored analyses.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Owner == "" {
		return errors.New("--owner is required")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show analyses")
	}
	if closeStore != nil {
		defer closeStore()
	}

	analyses, err := store.ListAnalyses(ctx, opts.Owner)
	if err != nil {
		return err
	}
	if len(analyses) == 0 {
		fmt.Fprintln(os.Stdout, "no analyses found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Product\tCategory\tCurrent\tRecommended\tElasticity\tR2\tType\tExpChange%\tTarget\tUpdated (UTC)")

	for _, analysis := range analyses {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			analysis.ProductName,
			analysis.Category,
			formatDecimal(analysis.CurrentPrice, 2),
			formatDecimal(analysis.RecommendedPrice, 2),
			formatFloat(analysis.ElasticityScore, 4),
			formatFloat(analysis.RSquared, 3),
			analysis.ProductType,
			formatFloat(analysis.ExpectedRevenueChange, 2),
			analysis.OptimizationTarget,
			analysis.CreatedAt.UTC().Format(time.RFC3339),
		)
	}

	writer.Flush()
	return nil
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func formatFloat(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}
