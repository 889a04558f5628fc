package bench

import (
	"slices"
	"time"
)

// Metrics summarizes a set of durations.
type Metrics struct {
	Avg, Min, Median, P90, P99, Max time.Duration
}

type durations []time.Duration

// Metrics calculates the summary. It is zero for an empty set.
func (ds durations) Metrics() Metrics {
	if len(ds) == 0 {
		return Metrics{}
	}

	sorted := slices.Sorted(slices.Values(ds))

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return Metrics{
		Avg:    total / time.Duration(len(sorted)),
		Min:    sorted[0],
		Median: median(sorted),
		P90:    percentile(sorted, 90),
		P99:    percentile(sorted, 99),
		Max:    sorted[len(sorted)-1],
	}
}

// median of a sorted, non-empty slice.
func median(sorted []time.Duration) time.Duration {
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// percentile uses the nearest rank below. The slice must be sorted and non-empty.
func percentile(sorted []time.Duration, p float64) time.Duration {
	index := int(float64(len(sorted)-1) * (p / 100.0))
	return sorted[index]
}
