// Package basket collapses a multi-underlying basket into the single reference
// value that drives a product's payoff.
package basket

import (
	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/pkg/formulas"
)

// NoDriver marks resolutions of averaging baskets, where no single underlying drives the payoff.
const NoDriver = -1

// Resolution is the basket-level reference value plus the indices that produced it.
type Resolution struct {
	Type                     domain.BasketType `json:"basket_type"`
	ReferencePerformancePct  float64           `json:"reference_performance_pct"` // ratio, 0.08 = +8%
	ReferenceLevel           float64           `json:"reference_level"`           // 1 + ReferencePerformancePct
	DrivingIndex             int               `json:"driving_index"`
	WorstIndex               int               `json:"worst_index"`
	BestIndex                int               `json:"best_index"`
	PerUnderlyingPerformance []float64         `json:"per_underlying_performance"`
}

// HasDriver reports whether one underlying drives the payoff.
func (r *Resolution) HasDriver() bool {
	return r.DrivingIndex != NoDriver
}

// ReferenceLevelPct is the reference level expressed in percent of initial (108 for +8%).
func (r *Resolution) ReferenceLevelPct() float64 {
	return formulas.RatioToPct(r.ReferenceLevel)
}

// Driver returns the driving underlying, or nil for averaging baskets.
func (r *Resolution) Driver(b *domain.Basket) *domain.Underlying {
	if !r.HasDriver() || b == nil || r.DrivingIndex >= len(b.Underlyings) {
		return nil
	}
	return b.Underlyings[r.DrivingIndex]
}

// Resolve computes the reference performance and level of b.
//
// Performance is recomputed from prices rather than read from the cached field,
// and worst/best indices are always derived here; ties go to the lowest index.
func Resolve(b *domain.Basket) (*Resolution, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	levels := make([]float64, len(b.Underlyings))
	perf := make([]float64, len(b.Underlyings))
	for i, u := range b.Underlyings {
		levels[i] = u.Level()
		perf[i] = u.Performance()
	}

	res := &Resolution{
		Type:                     b.Type,
		WorstIndex:               formulas.ArgMin(perf),
		BestIndex:                formulas.ArgMax(perf),
		PerUnderlyingPerformance: perf,
	}

	switch b.Type {
	case domain.BasketSingle:
		res.DrivingIndex = 0
	case domain.BasketWorstOf:
		res.DrivingIndex = res.WorstIndex
	case domain.BasketBestOf:
		res.DrivingIndex = res.BestIndex
	case domain.BasketAverage, domain.BasketEquallyWeighted:
		res.DrivingIndex = NoDriver
	}

	// Levels are kept as price ratios so 60/100 compares exactly against a 60% barrier.
	if res.HasDriver() {
		res.ReferenceLevel = levels[res.DrivingIndex]
		res.ReferencePerformancePct = perf[res.DrivingIndex]
	} else {
		res.ReferenceLevel = formulas.Mean(levels)
		res.ReferencePerformancePct = formulas.Mean(perf)
	}
	return res, nil
}
