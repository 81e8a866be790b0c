package export

import (
	"errors"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"price-advisor/internal/storage"
)

// ErrNotEnoughHistory indicates a product has too few sales to chart.
var ErrNotEnoughHistory = errors.New("export: at least two sales are required to chart a product")

// WritePriceHistoryPNG renders one product's price and volume history as a
// PNG chart. Long histories are downsampled to maxPoints evenly spaced
// records, always keeping the first and last.
func WritePriceHistoryPNG(w io.Writer, product string, records []storage.SaleRecord, maxPoints int) error {
	if len(records) < 2 {
		return ErrNotEnoughHistory
	}

	records = downsampleRecords(records, maxPoints)

	x := make([]time.Time, len(records))
	prices := make([]float64, len(records))
	quantities := make([]float64, len(records))
	for i, rec := range records {
		x[i] = rec.SoldAt
		prices[i] = rec.Price.InexactFloat64()
		quantities[i] = float64(rec.Quantity)
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  product,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Units Sold",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: prices,
			},
			chart.TimeSeries{
				Name:    "Units Sold",
				XValues: x,
				YValues: quantities,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

func downsampleRecords(records []storage.SaleRecord, max int) []storage.SaleRecord {
	if max <= 0 || len(records) <= max {
		return records
	}

	result := make([]storage.SaleRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}
