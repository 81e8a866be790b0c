package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product classification vocabulary persisted with each analysis.
const (
	ProductTypeElastic   = "elastic"
	ProductTypeInelastic = "inelastic"
)

// ProductTypeFor maps the estimator classification onto the stored vocabulary.
func ProductTypeFor(elastic bool) string {
	if elastic {
		return ProductTypeElastic
	}
	return ProductTypeInelastic
}

// SaleRecord is one persisted sales observation scoped to its owner.
type SaleRecord struct {
	ID          int64           `json:"id"`
	OwnerID     string          `json:"-"`
	ProductName string          `json:"product_name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	SoldAt      time.Time       `json:"sold_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ProductAnalysis is the stored outcome of one product's elasticity run.
// A single row exists per (owner, product); reruns overwrite it in place.
type ProductAnalysis struct {
	OwnerID               string          `json:"-"`
	ProductName           string          `json:"product_name"`
	Category              string          `json:"category"`
	CurrentPrice          decimal.Decimal `json:"current_price"`
	RecommendedPrice      decimal.Decimal `json:"recommended_price"`
	ElasticityScore       float64         `json:"elasticity_score"`
	RSquared              float64         `json:"r_squared"`
	ProductType           string          `json:"product_type"`
	ExpectedRevenueChange float64         `json:"expected_revenue_change"`
	OptimizationTarget    string          `json:"optimization_target"`
	Observations          int             `json:"observations"`
	CreatedAt             time.Time       `json:"created_at"`
}
