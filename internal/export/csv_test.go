package export

import (
	"bytes"
	"encoding/csv"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"price-advisor/internal/storage"
)

func testAnalysis(product string, current, recommended float64) storage.ProductAnalysis {
	return storage.ProductAnalysis{
		OwnerID:               "alice",
		ProductName:           product,
		Category:              "tools",
		CurrentPrice:          decimal.NewFromFloat(current),
		RecommendedPrice:      decimal.NewFromFloat(recommended),
		ElasticityScore:       -2,
		RSquared:              0.98,
		ProductType:           storage.ProductTypeElastic,
		ExpectedRevenueChange: 17.65,
		OptimizationTarget:    "revenue",
		Observations:          12,
		CreatedAt:             time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC),
	}
}

func TestWriteAnalysesCSV(t *testing.T) {
	var buf bytes.Buffer
	analyses := []storage.ProductAnalysis{testAnalysis("widget", 100, 85)}

	if err := WriteAnalysesCSV(&buf, analyses); err != nil {
		t.Fatalf("WriteAnalysesCSV 返回错误: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("导出的 CSV 无法解析: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("期望表头加一行数据, 实际 %d 行", len(rows))
	}

	wantHeader := []string{
		"product_name", "category", "current_price", "recommended_price",
		"price_change_pct", "elasticity_score", "product_type",
		"expected_revenue_change", "optimization_target", "created_at",
	}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Fatalf("表头不匹配: %v", rows[0])
	}

	wantRow := []string{
		"widget", "tools", "100.00", "85.00", "-15.00", "-2.0000",
		"elastic", "17.65", "revenue", "2024-03-05T09:30:00Z",
	}
	if !reflect.DeepEqual(rows[1], wantRow) {
		t.Fatalf("数据行不匹配: %v", rows[1])
	}
}

func TestWriteAnalysesCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnalysesCSV(&buf, nil); err != nil {
		t.Fatalf("空列表导出失败: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("导出的 CSV 无法解析: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("空列表应只导出表头, 实际 %d 行", len(rows))
	}
}

func TestWriteAnalysesCSVZeroCurrentPrice(t *testing.T) {
	var buf bytes.Buffer
	analysis := testAnalysis("widget", 0, 85)
	analysis.CurrentPrice = decimal.Zero

	if err := WriteAnalysesCSV(&buf, []storage.ProductAnalysis{analysis}); err != nil {
		t.Fatalf("WriteAnalysesCSV 返回错误: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("导出的 CSV 无法解析: %v", err)
	}
	if got := rows[1][4]; got != "0.00" {
		t.Fatalf("当前价格为零时变化百分比应为 0.00, 实际 %q", got)
	}
}
