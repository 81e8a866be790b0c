package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"price-advisor/internal/storage"
)

// RowError describes one rejected upload line.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Result carries the accepted records and the lines that were rejected.
type Result struct {
	Records []storage.SaleRecord
	Errors  []RowError
}

// Options tunes upload parsing.
type Options struct {
	// MaxRows aborts parsing when an upload exceeds it; 0 means unlimited.
	MaxRows int
}

// ErrEmptyUpload signals an upload without a header row.
var ErrEmptyUpload = errors.New("ingest: empty upload")

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01-02T15:04:05Z07:00",
	"02-Jan-2006",
}

// ParseSales reads a sales CSV upload into owner-scoped records. Malformed
// rows are collected per line instead of aborting the upload; structural
// problems (unreadable input, unusable header, row limit) abort with an
// error. Callers decide how to treat an upload where no row was accepted.
func ParseSales(r io.Reader, owner string, opts Options) (Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return Result{}, ErrEmptyUpload
	}
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}

	cols, err := mapHeader(header)
	if err != nil {
		return Result{}, err
	}

	out := Result{Records: make([]storage.SaleRecord, 0, 64)}
	line := 1
	rows := 0
	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		line++
		if readErr != nil {
			out.Errors = append(out.Errors, RowError{Line: line, Reason: "unreadable row"})
			continue
		}

		rows++
		if opts.MaxRows > 0 && rows > opts.MaxRows {
			return Result{}, fmt.Errorf("upload exceeds %d rows", opts.MaxRows)
		}

		rec, rowErr := parseRow(record, cols, owner)
		if rowErr != nil {
			out.Errors = append(out.Errors, RowError{Line: line, Reason: rowErr.Error()})
			continue
		}
		out.Records = append(out.Records, rec)
	}

	return out, nil
}

type columns struct {
	product  int
	category int
	price    int
	quantity int
	date     int
}

func mapHeader(header []string) (columns, error) {
	cols := columns{product: -1, category: -1, price: -1, quantity: -1, date: -1}
	for i, raw := range header {
		switch strings.ToLower(cell(strings.TrimPrefix(raw, "\ufeff"))) {
		case "product_name", "product", "name":
			if cols.product == -1 {
				cols.product = i
			}
		case "category", "product_category":
			if cols.category == -1 {
				cols.category = i
			}
		case "price", "unit_price", "sale_price":
			if cols.price == -1 {
				cols.price = i
			}
		case "quantity", "qty", "units", "units_sold":
			if cols.quantity == -1 {
				cols.quantity = i
			}
		case "sale_date", "date", "sold_at":
			if cols.date == -1 {
				cols.date = i
			}
		}
	}
	if cols.product == -1 || cols.price == -1 || cols.quantity == -1 || cols.date == -1 {
		return cols, errors.New("ingest: header must include product, price, quantity and sale date columns")
	}
	return cols, nil
}

func parseRow(record []string, cols columns, owner string) (storage.SaleRecord, error) {
	get := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return cell(record[idx])
	}

	name := get(cols.product)
	if name == "" {
		return storage.SaleRecord{}, errors.New("missing product name")
	}

	price, err := decimal.NewFromString(get(cols.price))
	if err != nil {
		return storage.SaleRecord{}, errors.New("invalid price")
	}
	if price.Sign() <= 0 {
		return storage.SaleRecord{}, errors.New("price must be positive")
	}

	qty, err := strconv.ParseInt(get(cols.quantity), 10, 64)
	if err != nil {
		return storage.SaleRecord{}, errors.New("invalid quantity")
	}
	if qty < 0 {
		return storage.SaleRecord{}, errors.New("quantity cannot be negative")
	}

	soldAt, ok := parseDate(get(cols.date))
	if !ok {
		return storage.SaleRecord{}, errors.New("unrecognised sale date")
	}

	return storage.SaleRecord{
		OwnerID:     owner,
		ProductName: name,
		Category:    get(cols.category),
		Price:       price,
		Quantity:    qty,
		SoldAt:      soldAt,
	}, nil
}

func cell(raw string) string {
	return strings.TrimSpace(strings.Trim(raw, "\""))
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseSaleDate parses a sale date in any of the accepted upload layouts.
func ParseSaleDate(raw string) (time.Time, error) {
	ts, ok := parseDate(strings.TrimSpace(raw))
	if !ok {
		return time.Time{}, fmt.Errorf("unrecognised sale date %q", raw)
	}
	return ts, nil
}
