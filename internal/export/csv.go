package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"price-advisor/internal/storage"
)

var analysesHeader = []string{
	"product_name",
	"category",
	"current_price",
	"recommended_price",
	"price_change_pct",
	"elasticity_score",
	"product_type",
	"expected_revenue_change",
	"optimization_target",
	"created_at",
}

// WriteAnalysesCSV renders stored analyses as CSV, one row per product.
// The price change column is derived from the stored prices.
func WriteAnalysesCSV(w io.Writer, analyses []storage.ProductAnalysis) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(analysesHeader); err != nil {
		return err
	}

	for _, analysis := range analyses {
		record := []string{
			analysis.ProductName,
			analysis.Category,
			analysis.CurrentPrice.StringFixed(2),
			analysis.RecommendedPrice.StringFixed(2),
			priceChangePct(analysis).StringFixed(2),
			strconv.FormatFloat(analysis.ElasticityScore, 'f', 4, 64),
			analysis.ProductType,
			strconv.FormatFloat(analysis.ExpectedRevenueChange, 'f', 2, 64),
			analysis.OptimizationTarget,
			analysis.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func priceChangePct(analysis storage.ProductAnalysis) decimal.Decimal {
	if analysis.CurrentPrice.IsZero() {
		return decimal.Zero
	}
	return analysis.RecommendedPrice.
		Sub(analysis.CurrentPrice).
		Div(analysis.CurrentPrice).
		Mul(decimal.NewFromInt(100))
}
