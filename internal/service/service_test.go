package service

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-advisor/internal/config"
	"price-advisor/internal/elasticity"
	"price-advisor/internal/metrics"
	"price-advisor/internal/storage"
)

type fakeStores struct {
	sales     []storage.SaleRecord
	analyses  map[string]storage.ProductAnalysis
	upserts   int
	upsertErr error
}

var (
	_ storage.SaleStore     = (*fakeStores)(nil)
	_ storage.AnalysisStore = (*fakeStores)(nil)
)

func newFakeStores() *fakeStores {
	return &fakeStores{analyses: make(map[string]storage.ProductAnalysis)}
}

func analysisKey(owner, product string) string {
	return owner + "|" + product
}

func (f *fakeStores) InsertSale(_ context.Context, rec storage.SaleRecord) (storage.SaleRecord, error) {
	rec.ID = int64(len(f.sales) + 1)
	f.sales = append(f.sales, rec)
	return rec, nil
}

func (f *fakeStores) InsertSales(_ context.Context, records []storage.SaleRecord) (int64, error) {
	f.sales = append(f.sales, records...)
	return int64(len(records)), nil
}

func (f *fakeStores) ListSales(_ context.Context, owner, product string, limit int) ([]storage.SaleRecord, error) {
	out := make([]storage.SaleRecord, 0)
	for _, rec := range f.sales {
		if rec.OwnerID != owner {
			continue
		}
		if product != "" && rec.ProductName != product {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStores) ListSalesForAnalysis(_ context.Context, owner string) ([]storage.SaleRecord, error) {
	out := make([]storage.SaleRecord, 0)
	for _, rec := range f.sales {
		if rec.OwnerID == owner {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStores) ListProductSales(ctx context.Context, owner, product string) ([]storage.SaleRecord, error) {
	return f.ListSales(ctx, owner, product, 0)
}

func (f *fakeStores) DeleteSale(_ context.Context, owner string, id int64) error {
	for i, rec := range f.sales {
		if rec.OwnerID == owner && rec.ID == id {
			f.sales = append(f.sales[:i], f.sales[i+1:]...)
			return nil
		}
	}
	return errors.New("sale not found")
}

func (f *fakeStores) CountSales(_ context.Context, owner string) (int64, error) {
	var count int64
	for _, rec := range f.sales {
		if rec.OwnerID == owner {
			count++
		}
	}
	return count, nil
}

func (f *fakeStores) DistinctOwners(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	owners := make([]string, 0)
	for _, rec := range f.sales {
		if !seen[rec.OwnerID] {
			seen[rec.OwnerID] = true
			owners = append(owners, rec.OwnerID)
		}
	}
	sort.Strings(owners)
	return owners, nil
}

func (f *fakeStores) UpsertAnalysis(_ context.Context, analysis storage.ProductAnalysis) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.analyses[analysisKey(analysis.OwnerID, analysis.ProductName)] = analysis
	f.upserts++
	return nil
}

func (f *fakeStores) ListAnalyses(_ context.Context, owner string) ([]storage.ProductAnalysis, error) {
	out := make([]storage.ProductAnalysis, 0)
	for _, analysis := range f.analyses {
		if analysis.OwnerID == owner {
			out = append(out, analysis)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductName < out[j].ProductName })
	return out, nil
}

func (f *fakeStores) GetAnalysis(_ context.Context, owner, product string) (storage.ProductAnalysis, error) {
	analysis, ok := f.analyses[analysisKey(owner, product)]
	if !ok {
		return storage.ProductAnalysis{}, errors.New("analysis not found")
	}
	return analysis, nil
}

func (f *fakeStores) DeleteAnalyses(_ context.Context, owner string) error {
	for key, analysis := range f.analyses {
		if analysis.OwnerID == owner {
			delete(f.analyses, key)
		}
	}
	return nil
}

func (f *fakeStores) CountAnalyses(_ context.Context, owner string) (int64, error) {
	var count int64
	for _, analysis := range f.analyses {
		if analysis.OwnerID == owner {
			count++
		}
	}
	return count, nil
}

func testDay(n int) time.Time {
	return time.Date(2024, time.January, n, 0, 0, 0, 0, time.UTC)
}

func sale(owner, product string, price float64, qty int64, soldAt time.Time) storage.SaleRecord {
	return storage.SaleRecord{
		OwnerID:     owner,
		ProductName: product,
		Category:    "tools",
		Price:       decimal.NewFromFloat(price),
		Quantity:    qty,
		SoldAt:      soldAt,
	}
}

func newTestAnalyzer(workers int, stores *fakeStores) *Analyzer {
	cfg := &config.Config{}
	cfg.Analysis.Workers = workers
	return New(cfg, stores, stores, nil, metrics.NewRegistry(), zerolog.Nop())
}

func closeTo(got, want, tol float64) bool {
	if want == 0 {
		return math.Abs(got) <= tol
	}
	return math.Abs(got-want)/math.Abs(want) <= tol
}

func TestAnalyzeOwnerComputesAndStores(t *testing.T) {
	stores := newFakeStores()
	stores.sales = []storage.SaleRecord{
		sale("alice", "widget", 50, 200, testDay(1)),
		sale("alice", "widget", 100, 50, testDay(2)),
		sale("alice", "gadget", 10, 5, testDay(1)),
	}
	analyzer := newTestAnalyzer(2, stores)

	summary, err := analyzer.AnalyzeOwner(context.Background(), "alice", elasticity.TargetRevenue)
	if err != nil {
		t.Fatalf("AnalyzeOwner 返回错误: %v", err)
	}
	if summary.Products != 2 || summary.Analyzed != 1 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Fatalf("期望 products=2 analyzed=1 skipped=1 failed=0, 实际 %+v", summary)
	}
	if summary.Target != "revenue" {
		t.Fatalf("期望 target=revenue, 实际 %q", summary.Target)
	}

	row, ok := stores.analyses[analysisKey("alice", "widget")]
	if !ok {
		t.Fatalf("widget 的分析结果未写入存储")
	}
	if row.OwnerID != "alice" || row.Category != "tools" {
		t.Fatalf("分析行标签不正确: %+v", row)
	}
	if !closeTo(row.ElasticityScore, -2, 1e-9) {
		t.Fatalf("期望弹性 -2, 实际 %v", row.ElasticityScore)
	}
	if row.ProductType != storage.ProductTypeElastic {
		t.Fatalf("期望 product_type=elastic, 实际 %q", row.ProductType)
	}
	if got := row.CurrentPrice.InexactFloat64(); !closeTo(got, 100, 1e-9) {
		t.Fatalf("期望当前价格 100, 实际 %v", got)
	}
	if got := row.RecommendedPrice.InexactFloat64(); !closeTo(got, 85, 1e-9) {
		t.Fatalf("期望推荐价格 85, 实际 %v", got)
	}
	wantPct := (85*50*math.Pow(0.85, -2) - 100*50) / (100 * 50) * 100
	if !closeTo(row.ExpectedRevenueChange, wantPct, 1e-9) {
		t.Fatalf("期望收入变化 %v%%, 实际 %v%%", wantPct, row.ExpectedRevenueChange)
	}
	if row.OptimizationTarget != "revenue" || row.Observations != 2 {
		t.Fatalf("分析行元数据不正确: %+v", row)
	}
	if _, ok := stores.analyses[analysisKey("alice", "gadget")]; ok {
		t.Fatalf("单条观测的产品不应产生分析行")
	}
}

func TestAnalyzeOwnerUpsertOverwrites(t *testing.T) {
	stores := newFakeStores()
	stores.sales = []storage.SaleRecord{
		sale("alice", "widget", 50, 200, testDay(1)),
		sale("alice", "widget", 100, 50, testDay(2)),
	}
	analyzer := newTestAnalyzer(1, stores)
	ctx := context.Background()

	if _, err := analyzer.AnalyzeOwner(ctx, "alice", elasticity.TargetRevenue); err != nil {
		t.Fatalf("第一次分析失败: %v", err)
	}
	if _, err := analyzer.AnalyzeOwner(ctx, "alice", elasticity.TargetProfit); err != nil {
		t.Fatalf("第二次分析失败: %v", err)
	}

	if len(stores.analyses) != 1 {
		t.Fatalf("重复分析应覆盖而非新增, 实际 %d 行", len(stores.analyses))
	}
	if stores.upserts != 2 {
		t.Fatalf("期望两次 upsert, 实际 %d", stores.upserts)
	}
	row := stores.analyses[analysisKey("alice", "widget")]
	if row.OptimizationTarget != "profit" {
		t.Fatalf("覆盖后目标应为 profit, 实际 %q", row.OptimizationTarget)
	}
	if got := row.RecommendedPrice.InexactFloat64(); !closeTo(got, 90, 1e-9) {
		t.Fatalf("profit 目标下期望推荐价格 90, 实际 %v", got)
	}
}

func TestAnalyzeOwnerWithoutSales(t *testing.T) {
	stores := newFakeStores()
	analyzer := newTestAnalyzer(2, stores)

	summary, err := analyzer.AnalyzeOwner(context.Background(), "bob", elasticity.TargetRevenue)
	if err != nil {
		t.Fatalf("空数据不应报错: %v", err)
	}
	if summary.Products != 0 || summary.Analyzed != 0 || summary.Skipped != 0 {
		t.Fatalf("空数据应产生零计数, 实际 %+v", summary)
	}
	if stores.upserts != 0 {
		t.Fatalf("空数据不应写入任何分析行")
	}
}

func TestAnalyzeOwnerDeterministicAcrossWorkerCounts(t *testing.T) {
	seed := func(stores *fakeStores) {
		products := []string{"anvil", "bolt", "clamp", "drill", "easel", "file"}
		for i, name := range products {
			base := float64(10 + i)
			stores.sales = append(stores.sales, sale("alice", name, base, 120, testDay(1)))
			if i%2 == 0 {
				stores.sales = append(stores.sales, sale("alice", name, base*2, 45, testDay(2)))
			}
		}
	}

	first := newFakeStores()
	seed(first)
	second := newFakeStores()
	seed(second)

	a := newTestAnalyzer(1, first)
	b := newTestAnalyzer(8, second)
	ctx := context.Background()

	sa, err := a.AnalyzeOwner(ctx, "alice", elasticity.TargetRevenue)
	if err != nil {
		t.Fatalf("单 worker 分析失败: %v", err)
	}
	sb, err := b.AnalyzeOwner(ctx, "alice", elasticity.TargetRevenue)
	if err != nil {
		t.Fatalf("多 worker 分析失败: %v", err)
	}

	if sa.Analyzed != 3 || sa.Skipped != 3 {
		t.Fatalf("期望 analyzed=3 skipped=3, 实际 %+v", sa)
	}
	if sa.Analyzed != sb.Analyzed || sa.Skipped != sb.Skipped || sa.Products != sb.Products {
		t.Fatalf("不同 worker 数的计数应一致: %+v vs %+v", sa, sb)
	}
	if !reflect.DeepEqual(first.analyses, second.analyses) {
		t.Fatalf("不同 worker 数的分析结果应完全一致")
	}
}

func TestAnalyzeOwnerCountsUpsertFailures(t *testing.T) {
	stores := newFakeStores()
	stores.sales = []storage.SaleRecord{
		sale("alice", "widget", 50, 200, testDay(1)),
		sale("alice", "widget", 100, 50, testDay(2)),
	}
	stores.upsertErr = errors.New("boom")
	analyzer := newTestAnalyzer(1, stores)

	summary, err := analyzer.AnalyzeOwner(context.Background(), "alice", elasticity.TargetRevenue)
	if err != nil {
		t.Fatalf("单行写入失败不应中止整个运行: %v", err)
	}
	if summary.Analyzed != 0 || summary.Failed != 1 {
		t.Fatalf("期望 analyzed=0 failed=1, 实际 %+v", summary)
	}
}

func TestAnalyzeOwnerAbortsWhenStoreNotConfigured(t *testing.T) {
	stores := newFakeStores()
	stores.sales = []storage.SaleRecord{
		sale("alice", "widget", 50, 200, testDay(1)),
		sale("alice", "widget", 100, 50, testDay(2)),
	}
	stores.upsertErr = storage.ErrNotConfigured
	analyzer := newTestAnalyzer(1, stores)

	_, err := analyzer.AnalyzeOwner(context.Background(), "alice", elasticity.TargetRevenue)
	if !errors.Is(err, storage.ErrNotConfigured) {
		t.Fatalf("存储未配置时应返回 ErrNotConfigured, 实际 %v", err)
	}
}

func TestRefreshAllSweepsEveryOwner(t *testing.T) {
	stores := newFakeStores()
	stores.sales = []storage.SaleRecord{
		sale("alice", "widget", 50, 200, testDay(1)),
		sale("alice", "widget", 100, 50, testDay(2)),
		sale("bob", "hammer", 10, 100, testDay(1)),
		sale("bob", "hammer", 40, 50, testDay(2)),
	}
	analyzer := newTestAnalyzer(2, stores)

	refreshed, err := analyzer.RefreshAll(context.Background(), elasticity.TargetRevenue)
	if err != nil {
		t.Fatalf("RefreshAll 返回错误: %v", err)
	}
	if refreshed != 2 {
		t.Fatalf("期望刷新 2 个 owner, 实际 %d", refreshed)
	}
	if _, ok := stores.analyses[analysisKey("alice", "widget")]; !ok {
		t.Fatalf("alice 的分析结果缺失")
	}
	if _, ok := stores.analyses[analysisKey("bob", "hammer")]; !ok {
		t.Fatalf("bob 的分析结果缺失")
	}
}

func TestAnalyzeSeriesStandalone(t *testing.T) {
	series := []elasticity.Observation{
		{ProductName: "widget", Price: 50, Quantity: 200, SoldAt: testDay(1)},
		{ProductName: "widget", Price: 100, Quantity: 50, SoldAt: testDay(2)},
	}

	est, opt := AnalyzeSeries(series, elasticity.TargetProfit, 40)
	if est == nil {
		t.Fatalf("两条观测应产生估计结果")
	}
	if !closeTo(opt.OptimalPrice, 90, 1e-9) {
		t.Fatalf("profit 目标下期望最优价格 90, 实际 %v", opt.OptimalPrice)
	}

	est, opt = AnalyzeSeries(series[:1], elasticity.TargetProfit, 40)
	if est != nil {
		t.Fatalf("单条观测不应产生估计结果")
	}
	if opt.OptimalPrice != 0 || opt.ExpectedChangePct != 0 {
		t.Fatalf("无估计时优化结果应为零值, 实际 %+v", opt)
	}
}

func TestObservationsFromRecords(t *testing.T) {
	records := []storage.SaleRecord{
		sale("alice", "widget", 49.99, 12, testDay(3)),
		sale("alice", "gadget", 5, 7, testDay(1)),
	}

	obs := ObservationsFromRecords(records)
	if len(obs) != 2 {
		t.Fatalf("期望 2 条观测, 实际 %d", len(obs))
	}
	if obs[0].ProductName != "widget" || obs[1].ProductName != "gadget" {
		t.Fatalf("观测应维持记录顺序")
	}
	if !closeTo(obs[0].Price, 49.99, 1e-9) || obs[0].Quantity != 12 {
		t.Fatalf("观测数值转换不正确: %+v", obs[0])
	}
	if !obs[0].SoldAt.Equal(testDay(3)) {
		t.Fatalf("观测日期转换不正确")
	}
}
