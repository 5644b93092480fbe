package bench

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(backend, scen string, durations ...float64) Sample {
	return Sample{
		Backend:     backend,
		Scenario:    scen,
		StartedAt:   time.Unix(0, 0),
		DurationsMs: durations,
		Succeeded:   true,
	}
}

func TestNearestRank(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.Equal(t, 5.0, NearestRank(sorted, 50))
	assert.Equal(t, 10.0, NearestRank(sorted, 95))
	assert.Equal(t, 10.0, NearestRank(sorted, 99))
	assert.Equal(t, 1.0, NearestRank(sorted, 1))
	assert.Equal(t, 10.0, NearestRank(sorted, 100))

	assert.Equal(t, 7.0, NearestRank([]float64{7}, 50))
}

func TestAggregateBasic(t *testing.T) {
	out := Aggregate([]Sample{
		sample("pg", "bulk-insert", 3, 1, 2),
		sample("pg", "bulk-insert", 5, 4),
	})

	rec := out["pg"]["bulk-insert"]
	assert.Equal(t, 5, rec.Count)
	assert.Equal(t, 0, rec.Errors)
	assert.InDelta(t, 3.0, rec.MeanMs, 1e-9)
	assert.Equal(t, 1.0, rec.MinMs)
	assert.Equal(t, 5.0, rec.MaxMs)
	assert.Equal(t, 3.0, rec.P50Ms)
	assert.Equal(t, 5.0, rec.P95Ms)
	assert.Equal(t, 5.0, rec.P99Ms)
}

func TestAggregateIdempotent(t *testing.T) {
	samples := []Sample{
		sample("pg", "a", 1, 2, 3),
		sample("mysql", "a", 4, 5),
		Failed("mysql", "b", time.Unix(0, 0), errors.New("boom")),
	}
	assert.Equal(t, Aggregate(samples), Aggregate(samples))
}

func TestAggregateArrivalOrderIrrelevant(t *testing.T) {
	a := sample("pg", "x", 1, 2)
	b := sample("pg", "x", 3, 4)
	assert.Equal(t, Aggregate([]Sample{a, b}), Aggregate([]Sample{b, a}))
}

func TestAggregateFailedSamplesExcludedFromStats(t *testing.T) {
	failed := Failed("pg", "x", time.Unix(0, 0), errors.New("connection refused"))
	// A failed sample may carry partial durations; they must not count.
	failed.DurationsMs = []float64{1000}

	out := Aggregate([]Sample{sample("pg", "x", 2, 2), failed})
	rec := out["pg"]["x"]
	assert.Equal(t, 2, rec.Count)
	assert.Equal(t, 1, rec.Errors)
	assert.Equal(t, 2.0, rec.MaxMs)
}

func TestAggregateAllFailedCellStillPresent(t *testing.T) {
	err := errors.New("unreachable")
	out := Aggregate([]Sample{
		Failed("mongo", "bulk-insert", time.Unix(0, 0), err),
		Failed("mongo", "bulk-insert", time.Unix(0, 0), err),
	})

	rec, ok := out["mongo"]["bulk-insert"]
	require.True(t, ok, "failed cells must be marked, not omitted")
	assert.Equal(t, 0, rec.Count)
	assert.Equal(t, 2, rec.Errors)
	assert.Equal(t, 0.0, rec.MeanMs)
}
