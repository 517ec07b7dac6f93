// Package timeseries holds the pure computations behind yieldscope's derived
// metrics: the trailing-window mean attached during ingestion and the ordinary
// least squares elasticity estimate refreshed by recompute.
package timeseries

import (
	"yieldscope/internal/domain"
)

// FieldFunc selects the optional numeric field a rolling window aggregates.
type FieldFunc func(*domain.Sample) *float64

// TrailingMean computes a trailing simple moving average of one optional field.
//
// Samples must be sorted ascending by timestamp; the caller sorts, this
// function does not. The result is a parallel slice aligned index-for-index
// with the input: out[i] is the mean of every present field value among
// samples whose timestamp falls in [samples[i].Timestamp - windowSeconds,
// samples[i].Timestamp], or nil when no value in that window is present.
//
// The window is causal and advances with two pointers, so each sample enters
// and leaves it exactly once. Duplicate timestamps are retained as separate
// window entries. A single present value yields a mean equal to itself.
func TrailingMean(samples []*domain.Sample, windowSeconds int64, field FieldFunc) []*float64 {
	out := make([]*float64, len(samples))

	var (
		sum   float64
		count int
		head  int
	)

	for i, s := range samples {
		// Evict everything strictly older than the window. A sample exactly
		// at Timestamp-windowSeconds stays in.
		cutoff := s.Timestamp - windowSeconds
		for head < i && samples[head].Timestamp < cutoff {
			if v := field(samples[head]); v != nil {
				sum -= *v
				count--
			}
			head++
		}

		if v := field(s); v != nil {
			sum += *v
			count++
		}

		if count > 0 {
			mean := sum / float64(count)
			out[i] = &mean
		}
	}

	return out
}
