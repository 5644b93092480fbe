package bench

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// Aggregate folds samples into one ResultRecord per (backend, scenario) pair.
// It is a pure function of its input: sample arrival order is irrelevant and
// aggregating the same set twice yields identical records.
//
// Percentile convention: nearest-rank on the sorted duration slice,
// sorted[ceil(p/100*n)-1]. This is fixed here deliberately instead of using a
// library percentile (stats.Percentile interpolates, HdrHistogram quantizes
// into buckets) so the result document is reproducible bit-for-bit from the
// same samples.
func Aggregate(samples []Sample) map[string]map[string]ResultRecord {
	type key struct{ backend, scenario string }

	durations := make(map[key][]float64)
	errors := make(map[key]int)
	for _, s := range samples {
		k := key{s.Backend, s.Scenario}
		if s.Succeeded {
			durations[k] = append(durations[k], s.DurationsMs...)
		} else {
			errors[k]++
			// touch the key so all-failed cells still appear in the output
			if _, ok := durations[k]; !ok {
				durations[k] = nil
			}
		}
	}

	out := make(map[string]map[string]ResultRecord)
	for k, ds := range durations {
		rec := ResultRecord{Count: len(ds), Errors: errors[k]}
		if len(ds) > 0 {
			sorted := append([]float64(nil), ds...)
			sort.Float64s(sorted)
			rec.MeanMs, _ = stats.Mean(sorted)
			rec.MinMs = sorted[0]
			rec.MaxMs = sorted[len(sorted)-1]
			rec.P50Ms = NearestRank(sorted, 50)
			rec.P95Ms = NearestRank(sorted, 95)
			rec.P99Ms = NearestRank(sorted, 99)
		}
		if _, ok := out[k.backend]; !ok {
			out[k.backend] = make(map[string]ResultRecord)
		}
		out[k.backend][k.scenario] = rec
	}
	return out
}

// NearestRank returns the p-th percentile of sorted (ascending) using the
// nearest-rank method. sorted must be non-empty.
func NearestRank(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
