package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"price-advisor/internal/export"
	"price-advisor/internal/storage"
)

// Export renders stored analyses as CSV and/or one product's sales history
// as a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.PNGPath != "" && opts.Product == "" {
		return errors.New("--product is required when exporting a chart")
	}
	if opts.Owner == "" {
		return errors.New("--owner is required")
	}

	maxPoints := opts.MaxPoints
	if maxPoints <= 0 {
		maxPoints = a.Config.Export.MaxChartPoints
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.CSVPath != "" {
		analyses, err := store.ListAnalyses(ctx, opts.Owner)
		if err != nil {
			return err
		}
		if len(analyses) == 0 {
			a.Logger.Info().Str("owner", opts.Owner).Msg("no analyses found for export")
		}
		if err := writeAnalysesCSVFile(opts.CSVPath, analyses); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Int("rows", len(analyses)).Msg("analyses exported")
	}

	if opts.PNGPath != "" {
		records, err := store.ListProductSales(ctx, opts.Owner, opts.Product)
		if err != nil {
			return err
		}
		if err := writeChartPNGFile(opts.PNGPath, opts.Product, records, maxPoints); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Str("product", opts.Product).Int("points", len(records)).Msg("price history chart exported")
	}

	return nil
}

func writeAnalysesCSVFile(path string, analyses []storage.ProductAnalysis) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return export.WriteAnalysesCSV(file, analyses)
}

func writeChartPNGFile(path, product string, records []storage.SaleRecord, maxPoints int) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return export.WritePriceHistoryPNG(file, product, records, maxPoints)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
