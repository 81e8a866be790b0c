package ingest

import (
	"errors"
	"strings"
	"testing"
)

func TestParseSalesHappyPath(t *testing.T) {
	csv := "product_name,category,price,quantity,sale_date\n" +
		"Widget,Tools,19.99,12,2024-03-01\n" +
		"Widget,Tools,21.50,9,2024/03/02\n"

	res, err := ParseSales(strings.NewReader(csv), "owner-1", Options{})
	if err != nil {
		t.Fatalf("合法上传不应报错: %v", err)
	}
	if len(res.Records) != 2 || len(res.Errors) != 0 {
		t.Fatalf("期望 2 条记录 0 条错误, 实际 %d/%d", len(res.Records), len(res.Errors))
	}

	rec := res.Records[0]
	if rec.OwnerID != "owner-1" {
		t.Fatalf("记录应归属上传者, 实际 %q", rec.OwnerID)
	}
	if rec.ProductName != "Widget" || rec.Category != "Tools" {
		t.Fatalf("产品字段解析错误: %+v", rec)
	}
	if rec.Price.String() != "19.99" || rec.Quantity != 12 {
		t.Fatalf("价格/数量解析错误: %s/%d", rec.Price.String(), rec.Quantity)
	}
	if rec.SoldAt.Format("2006-01-02") != "2024-03-01" {
		t.Fatalf("日期解析错误: %v", rec.SoldAt)
	}
}

func TestParseSalesHeaderAliases(t *testing.T) {
	csv := "\ufeffProduct,Qty,Unit_Price,Date\n" +
		"Gadget,3,5.00,01/15/2024\n"

	res, err := ParseSales(strings.NewReader(csv), "o", Options{})
	if err != nil {
		t.Fatalf("别名表头应被识别: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("期望 1 条记录, 实际 %d", len(res.Records))
	}
	if res.Records[0].Category != "" {
		t.Fatalf("缺少分类列时应为空, 实际 %q", res.Records[0].Category)
	}
}

func TestParseSalesCollectsRowErrors(t *testing.T) {
	csv := "product_name,price,quantity,sale_date\n" +
		"Widget,19.99,12,2024-03-01\n" +
		",10.00,5,2024-03-02\n" +
		"Widget,free,5,2024-03-03\n" +
		"Widget,-2,5,2024-03-04\n" +
		"Widget,10.00,2.5,2024-03-05\n" +
		"Widget,10.00,-1,2024-03-06\n" +
		"Widget,10.00,5,someday\n"

	res, err := ParseSales(strings.NewReader(csv), "o", Options{})
	if err != nil {
		t.Fatalf("行级错误不应中止解析: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("期望仅 1 条有效记录, 实际 %d", len(res.Records))
	}
	if len(res.Errors) != 6 {
		t.Fatalf("期望 6 条行错误, 实际 %d: %+v", len(res.Errors), res.Errors)
	}
	if res.Errors[0].Line != 3 {
		t.Fatalf("行号应从表头后开始计数, 实际 %d", res.Errors[0].Line)
	}
	reasons := map[string]bool{}
	for _, re := range res.Errors {
		reasons[re.Reason] = true
	}
	for _, want := range []string{"missing product name", "invalid price", "price must be positive", "invalid quantity", "quantity cannot be negative", "unrecognised sale date"} {
		if !reasons[want] {
			t.Fatalf("缺少期望的错误原因 %q: %+v", want, res.Errors)
		}
	}
}

func TestParseSalesUnusableHeader(t *testing.T) {
	csv := "foo,bar\n1,2\n"
	if _, err := ParseSales(strings.NewReader(csv), "o", Options{}); err == nil {
		t.Fatal("缺少必需列应报错")
	}
}

func TestParseSalesEmptyUpload(t *testing.T) {
	if _, err := ParseSales(strings.NewReader(""), "o", Options{}); !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("空上传应返回 ErrEmptyUpload, 实际 %v", err)
	}
}

func TestParseSalesRowLimit(t *testing.T) {
	csv := "product_name,price,quantity,sale_date\n" +
		"A,1.00,1,2024-03-01\n" +
		"B,1.00,1,2024-03-02\n" +
		"C,1.00,1,2024-03-03\n"

	if _, err := ParseSales(strings.NewReader(csv), "o", Options{MaxRows: 2}); err == nil {
		t.Fatal("超出行数上限应报错")
	}
	if _, err := ParseSales(strings.NewReader(csv), "o", Options{MaxRows: 3}); err != nil {
		t.Fatalf("行数未超限不应报错: %v", err)
	}
}
