package formulas

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// ArgMin returns the index of the smallest value, the first one on ties.
// Returns -1 for an empty slice.
func ArgMin(data []float64) int {
	if len(data) == 0 {
		return -1
	}
	return floats.MinIdx(data)
}

// ArgMax returns the index of the largest value, the first one on ties.
// Returns -1 for an empty slice.
func ArgMax(data []float64) int {
	if len(data) == 0 {
		return -1
	}
	return floats.MaxIdx(data)
}

// Sum adds all values
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return floats.Sum(data)
}
