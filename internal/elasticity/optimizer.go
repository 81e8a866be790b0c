package elasticity

import (
	"fmt"
	"math"
	"strings"
)

// Target selects the objective a price candidate is scored against.
type Target string

const (
	TargetRevenue Target = "revenue"
	TargetProfit  Target = "profit"
)

// ParseTarget maps user input onto a known optimization target. An empty
// string resolves to TargetRevenue.
func ParseTarget(raw string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(TargetRevenue):
		return TargetRevenue, nil
	case string(TargetProfit):
		return TargetProfit, nil
	default:
		return "", fmt.Errorf("unknown optimization target %q", raw)
	}
}

func (t Target) String() string {
	return string(t)
}

// OptimizationResult carries the candidate price and the predicted change in
// the chosen objective, in percent.
type OptimizationResult struct {
	OptimalPrice      float64
	ExpectedChangePct float64
}

// Optimize evaluates a single candidate price offset chosen by elasticity
// magnitude and target, scoring it with the constant elasticity demand model.
// It is a fixed-offset policy, not a search.
//
// Offsets: revenue lowers an elastic price by 15% and raises an inelastic one
// by 15%; profit lowers by 10% and raises by 20%. A non-positive baseline for
// the chosen objective (zero current revenue, or profit at or below zero)
// reports ExpectedChangePct as 0 rather than a division error.
func Optimize(elasticity, currentPrice, currentQuantity, costPerUnit float64, target Target) OptimizationResult {
	elastic := math.Abs(elasticity) > 1

	var factor float64
	switch {
	case target == TargetProfit && elastic:
		factor = 0.90
	case target == TargetProfit:
		factor = 1.20
	case elastic:
		factor = 0.85
	default:
		factor = 1.15
	}

	candidate := currentPrice * factor
	if currentPrice <= 0 {
		return OptimizationResult{OptimalPrice: candidate}
	}
	predicted := currentQuantity * math.Pow(candidate/currentPrice, elasticity)

	if target == TargetProfit {
		baseline := (currentPrice - costPerUnit) * currentQuantity
		if baseline <= 0 {
			return OptimizationResult{OptimalPrice: candidate}
		}
		projected := (candidate - costPerUnit) * predicted
		return OptimizationResult{
			OptimalPrice:      candidate,
			ExpectedChangePct: (projected - baseline) / baseline * 100,
		}
	}

	baseline := currentPrice * currentQuantity
	if baseline <= 0 {
		return OptimizationResult{OptimalPrice: candidate}
	}
	return OptimizationResult{
		OptimalPrice:      candidate,
		ExpectedChangePct: (candidate*predicted - baseline) / baseline * 100,
	}
}
