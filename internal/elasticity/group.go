package elasticity

import "sort"

// GroupByProduct partitions observations into per-product series keyed by
// product name, preserving input order within each group.
func GroupByProduct(obs []Observation) map[string][]Observation {
	groups := make(map[string][]Observation, 8)
	for _, o := range obs {
		groups[o.ProductName] = append(groups[o.ProductName], o)
	}
	return groups
}

// ProductNames returns the group keys sorted ascending so callers can walk a
// grouping deterministically.
func ProductNames(groups map[string][]Observation) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
