package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"price-advisor/internal/metrics"
	"price-advisor/internal/service"
)

// Analyze recomputes elasticity analyses for one owner, or for every owner
// with stored sales when opts.All is set.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	if !opts.All && opts.Owner == "" {
		return errors.New("--owner is required unless --all is set")
	}

	target, err := a.Config.ResolveTarget(opts.Target)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn 未配置，无法分析")
	}
	if closeStore != nil {
		defer closeStore()
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	analyzer := service.New(a.Config, store, store, nil, metrics.NewRegistry(), a.Logger)

	if opts.All {
		refreshed, err := analyzer.RefreshAll(ctx, target)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "refreshed analyses for %d owner(s) with target %s\n", refreshed, target)
		return nil
	}

	summary, err := analyzer.AnalyzeOwner(ctx, opts.Owner, target)
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

func printSummary(summary service.Summary) {
	fmt.Fprintf(os.Stdout,
		"owner %s: analyzed %d of %d product(s), skipped %d, failed %d (target %s, %.1fms)\n",
		summary.Owner,
		summary.Analyzed,
		summary.Products,
		summary.Skipped,
		summary.Failed,
		summary.Target,
		summary.ElapsedMS,
	)
}
