package export

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"price-advisor/internal/storage"
)

func chartRecord(price float64, qty int64, day int) storage.SaleRecord {
	return storage.SaleRecord{
		OwnerID:     "alice",
		ProductName: "widget",
		Price:       decimal.NewFromFloat(price),
		Quantity:    qty,
		SoldAt:      time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestWritePriceHistoryPNG(t *testing.T) {
	records := []storage.SaleRecord{
		chartRecord(10, 100, 1),
		chartRecord(12, 90, 2),
		chartRecord(11, 95, 3),
	}

	var buf bytes.Buffer
	if err := WritePriceHistoryPNG(&buf, "widget", records, 2000); err != nil {
		t.Fatalf("渲染图表失败: %v", err)
	}

	pngMagic := []byte{0x89, 'P', 'N', 'G'}
	if buf.Len() < len(pngMagic) || !bytes.Equal(buf.Bytes()[:len(pngMagic)], pngMagic) {
		t.Fatalf("输出不是 PNG 格式")
	}
}

func TestWritePriceHistoryPNGNeedsTwoRecords(t *testing.T) {
	var buf bytes.Buffer
	err := WritePriceHistoryPNG(&buf, "widget", []storage.SaleRecord{chartRecord(10, 100, 1)}, 2000)
	if !errors.Is(err, ErrNotEnoughHistory) {
		t.Fatalf("单条记录应返回 ErrNotEnoughHistory, 实际 %v", err)
	}
}

func TestDownsampleRecords(t *testing.T) {
	records := make([]storage.SaleRecord, 0, 11)
	for day := 1; day <= 11; day++ {
		records = append(records, chartRecord(float64(day), 10, day))
	}

	sampled := downsampleRecords(records, 5)
	if len(sampled) != 5 {
		t.Fatalf("期望抽样后 5 条, 实际 %d", len(sampled))
	}
	if !sampled[0].SoldAt.Equal(records[0].SoldAt) {
		t.Fatalf("抽样应保留首条记录")
	}
	if !sampled[len(sampled)-1].SoldAt.Equal(records[len(records)-1].SoldAt) {
		t.Fatalf("抽样应保留末条记录")
	}

	untouched := downsampleRecords(records, 50)
	if len(untouched) != len(records) {
		t.Fatalf("低于上限时不应抽样")
	}
}
