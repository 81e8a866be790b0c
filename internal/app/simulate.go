package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"price-advisor/internal/elasticity"
	"price-advisor/internal/ingest"
	"price-advisor/internal/service"
	"price-advisor/internal/storage"
)

// Simulate 对本地 CSV 文件离线运行一次完整的弹性分析，不读写数据库。
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.Path == "" {
		return errors.New("--file is required")
	}
	if opts.Cost < 0 {
		return errors.New("--cost cannot be negative")
	}

	target, err := a.Config.ResolveTarget(opts.Target)
	if err != nil {
		return err
	}

	file, err := os.Open(opts.Path)
	if err != nil {
		return fmt.Errorf("open simulation file: %w", err)
	}
	defer file.Close()

	result, err := ingest.ParseSales(file, "local", ingest.Options{MaxRows: a.Config.Export.MaxUploadRows})
	if err != nil {
		return err
	}
	for _, rowErr := range result.Errors {
		a.Logger.Warn().Int("line", rowErr.Line).Str("reason", rowErr.Reason).Msg("跳过无法解析的行")
	}

	groups := elasticity.GroupByProduct(service.ObservationsFromRecords(result.Records))
	names := elasticity.ProductNames(groups)
	if len(names) == 0 {
		fmt.Fprintln(os.Stdout, "no usable rows found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Product\tObs\tElasticity\tR2\tType\tCurrent\tOptimal\tExpChange%")

	for _, name := range names {
		est, opt := service.AnalyzeSeries(groups[name], target, opts.Cost)
		if est == nil {
			fmt.Fprintf(writer, "%s\t%d\t-\t-\t-\t-\t-\t-\n", name, len(groups[name]))
			continue
		}
		fmt.Fprintf(
			writer,
			"%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			name,
			est.Observations,
			formatFloat(est.Elasticity, 4),
			formatFloat(est.RSquared, 3),
			storage.ProductTypeFor(est.Elastic),
			formatFloat(est.CurrentPrice, 2),
			formatFloat(opt.OptimalPrice, 2),
			formatFloat(opt.ExpectedChangePct, 2),
		)
	}

	writer.Flush()
	return nil
}
