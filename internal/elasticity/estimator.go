package elasticity

import (
	"math"
	"sort"
	"time"
)

// Observation is a single dated price/quantity record for one product.
// Supplied by the caller and never mutated here.
type Observation struct {
	ProductName string
	Category    string
	Price       float64
	Quantity    float64
	SoldAt      time.Time
}

// EstimateResult describes the fitted price elasticity for one product series
// together with a first-pass price recommendation.
type EstimateResult struct {
	ProductName      string
	Category         string
	Elasticity       float64
	RSquared         float64
	Elastic          bool
	CurrentPrice     float64
	CurrentQuantity  float64
	RecommendedPrice float64
	RevenueChangePct float64
	Observations     int
}

// Estimate fits an ordinary least squares regression of ln(quantity) on
// ln(price) and derives a price recommendation from the fitted slope.
//
// The series is sorted ascending by sale date before fitting, preserving
// input order for equal dates. Observations whose price or quantity has no
// finite logarithm are excluded from the regression set. Fewer than two
// observations, fewer than two usable ones after exclusion, or zero price
// variance all yield nil rather than an error.
//
// Product name and category are taken from the first observation as
// supplied; current price and quantity come from the latest-dated one. When
// the current revenue baseline is zero, RevenueChangePct is reported as 0
// instead of a non-finite value.
func Estimate(series []Observation) *EstimateResult {
	if len(series) < 2 {
		return nil
	}

	sorted := make([]Observation, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SoldAt.Before(sorted[j].SoldAt)
	})

	logP := make([]float64, 0, len(sorted))
	logQ := make([]float64, 0, len(sorted))
	for _, obs := range sorted {
		lp := math.Log(obs.Price)
		lq := math.Log(obs.Quantity)
		if !finite(lp) || !finite(lq) {
			continue
		}
		logP = append(logP, lp)
		logQ = append(logQ, lq)
	}
	if len(logP) < 2 {
		return nil
	}

	// identical prices leave the regression undefined, and rounding in the
	// mean can hide that from the exact-zero denominator check below
	uniform := true
	for i := 1; i < len(logP); i++ {
		if logP[i] != logP[0] {
			uniform = false
			break
		}
	}
	if uniform {
		return nil
	}

	n := float64(len(logP))
	var mp, mq float64
	for i := range logP {
		mp += logP[i]
		mq += logQ[i]
	}
	mp /= n
	mq /= n

	var sxy, sxx float64
	for i := range logP {
		sxy += (logP[i] - mp) * (logQ[i] - mq)
		sxx += (logP[i] - mp) * (logP[i] - mp)
	}
	if sxx == 0 {
		return nil
	}
	slope := sxy / sxx

	var ssr, sst float64
	for i := range logP {
		pred := mq + slope*(logP[i]-mp)
		ssr += (logQ[i] - pred) * (logQ[i] - pred)
		sst += (logQ[i] - mq) * (logQ[i] - mq)
	}
	rsq := 0.0
	if sst != 0 {
		rsq = 1 - ssr/sst
	}

	elastic := math.Abs(slope) > 1

	latest := sorted[len(sorted)-1]
	factor := 1.10
	if elastic {
		factor = 0.90
	}
	recommended := latest.Price * factor

	changePct := 0.0
	if latest.Price > 0 && latest.Quantity > 0 {
		predicted := latest.Quantity * math.Pow(recommended/latest.Price, slope)
		baseline := latest.Price * latest.Quantity
		changePct = (recommended*predicted - baseline) / baseline * 100
	}

	return &EstimateResult{
		ProductName:      series[0].ProductName,
		Category:         series[0].Category,
		Elasticity:       slope,
		RSquared:         rsq,
		Elastic:          elastic,
		CurrentPrice:     latest.Price,
		CurrentQuantity:  latest.Quantity,
		RecommendedPrice: recommended,
		RevenueChangePct: changePct,
		Observations:     len(logP),
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
