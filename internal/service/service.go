package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-advisor/internal/cache"
	"price-advisor/internal/config"
	"price-advisor/internal/elasticity"
	"price-advisor/internal/logging"
	"price-advisor/internal/metrics"
	"price-advisor/internal/storage"
)

// Analyzer orchestrates elasticity analysis runs: it loads an owner's sales,
// fits every product group, and stores one analysis row per product.
type Analyzer struct {
	sales    storage.SaleStore
	analyses storage.AnalysisStore
	cache    *cache.AnalysisCache
	metrics  *metrics.Registry
	logger   zerolog.Logger

	workers int
	locker  storage.AdvisoryLocker
	lockKey int64
}

// Summary reports one analysis run.
type Summary struct {
	Owner     string  `json:"owner"`
	Products  int     `json:"products"`
	Analyzed  int     `json:"analyzed"`
	Skipped   int     `json:"skipped"`
	Failed    int     `json:"failed"`
	Target    string  `json:"target"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

// New constructs the analysis service.
func New(cfg *config.Config, sales storage.SaleStore, analyses storage.AnalysisStore, analysisCache *cache.AnalysisCache, reg *metrics.Registry, logger zerolog.Logger) *Analyzer {
	workers := cfg.Analysis.Workers
	if workers < 1 {
		workers = 1
	}

	var locker storage.AdvisoryLocker
	if l, ok := sales.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Analyzer{
		sales:    sales,
		analyses: analyses,
		cache:    analysisCache,
		metrics:  reg,
		logger:   logging.Component(logger, "service"),
		workers:  workers,
		locker:   locker,
		lockKey:  cfg.Analysis.RefreshLockKey,
	}
}

// AnalyzeOwner runs elasticity analysis over every product an owner has
// sales for and upserts the resulting rows. Products without a usable
// estimate are skipped, never treated as errors.
func (a *Analyzer) AnalyzeOwner(ctx context.Context, owner string, target elasticity.Target) (Summary, error) {
	start := time.Now()

	records, err := a.sales.ListSalesForAnalysis(ctx, owner)
	if err != nil {
		return Summary{}, fmt.Errorf("load sales: %w", err)
	}

	groups := elasticity.GroupByProduct(ObservationsFromRecords(records))
	names := elasticity.ProductNames(groups)

	results := make([]*storage.ProductAnalysis, len(names))
	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, series []elasticity.Observation) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			results[i] = analyzeProduct(owner, series, target)
		}(i, groups[name])
	}
	wg.Wait()
	if ctx.Err() != nil {
		return Summary{}, ctx.Err()
	}

	summary := Summary{Owner: owner, Products: len(names), Target: target.String()}
	for _, analysis := range results {
		if analysis == nil {
			summary.Skipped++
			continue
		}
		if upsertErr := a.analyses.UpsertAnalysis(ctx, *analysis); upsertErr != nil {
			if errors.Is(upsertErr, storage.ErrNotConfigured) {
				return summary, upsertErr
			}
			a.logger.Error().Err(upsertErr).
				Str("owner", owner).
				Str("product", analysis.ProductName).
				Msg("failed to upsert analysis")
			summary.Failed++
			continue
		}
		summary.Analyzed++
	}

	if summary.Analyzed > 0 {
		a.cache.InvalidateOwner(ctx, owner)
	}

	elapsed := time.Since(start)
	summary.ElapsedMS = float64(elapsed.Microseconds()) / 1000
	a.metrics.ObserveAnalysis(summary.Target, summary.Analyzed, summary.Skipped, elapsed)

	a.logger.Info().
		Str("owner", owner).
		Str("target", summary.Target).
		Int("products", summary.Products).
		Int("analyzed", summary.Analyzed).
		Int("skipped", summary.Skipped).
		Msg("analysis run complete")

	return summary, nil
}

// RefreshAll re-runs analysis for every owner with stored sales, guarded by
// an advisory lock so concurrent replicas do not duplicate the sweep.
func (a *Analyzer) RefreshAll(ctx context.Context, target elasticity.Target) (int, error) {
	unlock, proceed, err := a.acquireLock(ctx)
	if err != nil {
		return 0, err
	}
	if !proceed {
		a.logger.Debug().Msg("skip refresh because advisory lock held elsewhere")
		return 0, nil
	}
	if unlock != nil {
		defer unlock()
	}

	owners, err := a.sales.DistinctOwners(ctx)
	if err != nil {
		return 0, fmt.Errorf("list owners: %w", err)
	}

	refreshed := 0
	for _, owner := range owners {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		summary, runErr := a.AnalyzeOwner(ctx, owner, target)
		if runErr != nil {
			a.logger.Error().Err(runErr).Str("owner", owner).Msg("refresh failed for owner")
			continue
		}
		refreshed++
		a.logger.Debug().
			Str("owner", owner).
			Int("analyzed", summary.Analyzed).
			Int("skipped", summary.Skipped).
			Msg("owner analyses refreshed")
	}
	return refreshed, nil
}

// AnalyzeSeries fits a single product series without touching storage. The
// second result is only meaningful when the estimate is non-nil.
func AnalyzeSeries(series []elasticity.Observation, target elasticity.Target, costPerUnit float64) (*elasticity.EstimateResult, elasticity.OptimizationResult) {
	est := elasticity.Estimate(series)
	if est == nil {
		return nil, elasticity.OptimizationResult{}
	}
	opt := elasticity.Optimize(est.Elasticity, est.CurrentPrice, est.CurrentQuantity, costPerUnit, target)
	return est, opt
}

// ObservationsFromRecords converts stored sales rows into the series form
// the estimator consumes, preserving record order.
func ObservationsFromRecords(records []storage.SaleRecord) []elasticity.Observation {
	obs := make([]elasticity.Observation, 0, len(records))
	for _, rec := range records {
		obs = append(obs, elasticity.Observation{
			ProductName: rec.ProductName,
			Category:    rec.Category,
			Price:       rec.Price.InexactFloat64(),
			Quantity:    float64(rec.Quantity),
			SoldAt:      rec.SoldAt,
		})
	}
	return obs
}

func analyzeProduct(owner string, series []elasticity.Observation, target elasticity.Target) *storage.ProductAnalysis {
	est, opt := AnalyzeSeries(series, target, 0)
	if est == nil {
		return nil
	}

	return &storage.ProductAnalysis{
		OwnerID:               owner,
		ProductName:           est.ProductName,
		Category:              est.Category,
		CurrentPrice:          decimal.NewFromFloat(est.CurrentPrice),
		RecommendedPrice:      decimal.NewFromFloat(opt.OptimalPrice),
		ElasticityScore:       est.Elasticity,
		RSquared:              est.RSquared,
		ProductType:           storage.ProductTypeFor(est.Elastic),
		ExpectedRevenueChange: opt.ExpectedChangePct,
		OptimizationTarget:    target.String(),
		Observations:          est.Observations,
	}
}

func (a *Analyzer) acquireLock(ctx context.Context) (func(), bool, error) {
	if a.lockKey == 0 || a.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := a.locker.TryAdvisoryLock(ctx, a.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
