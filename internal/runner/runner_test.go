package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbbench/internal/driver"
	"dbbench/internal/driver/drivertest"
	"dbbench/internal/scenario"
	"dbbench/internal/workload"
)

func testScenario(op driver.Op, reps int) scenario.Scenario {
	return scenario.Scenario{
		Name:        "test-" + string(op),
		Category:    "test",
		Op:          op,
		Cardinality: 10,
		Repetitions: reps,
	}
}

func TestRunSuccess(t *testing.T) {
	d := &drivertest.Driver{BackendName: "fake", Elapsed: 2 * time.Millisecond}
	ds := workload.NewDataset(1, 100)
	sc := testScenario(driver.OpSelectSimple, 5)

	s := Run(context.Background(), d, sc, ds, 3)

	require.True(t, s.Succeeded)
	assert.Len(t, s.DurationsMs, 5, "succeeded sample has exactly repetitions durations")
	for _, ms := range s.DurationsMs {
		assert.Equal(t, 2.0, ms)
	}
	assert.Equal(t, "fake", s.Backend)
	assert.Equal(t, 8, d.ExecCount(driver.OpSelectSimple), "warm-up executions run but are not measured")
	assert.Equal(t, 0, d.OpenHandles(), "handle released after the run")
}

func TestRunConnectFailure(t *testing.T) {
	d := &drivertest.Driver{ConnectErr: errors.New("refused")}
	s := Run(context.Background(), d, testScenario(driver.OpSelectSimple, 3), workload.NewDataset(1, 10), 0)

	assert.False(t, s.Succeeded)
	assert.Contains(t, s.Error, "refused")
	assert.Empty(t, s.DurationsMs)
}

func TestRunStopsOnFirstOperationFailure(t *testing.T) {
	d := &drivertest.Driver{
		// Two warm-up executions succeed, then everything fails: the first
		// measured repetition errors out and no more are attempted.
		FailExecuteAfter: 2,
	}
	sc := testScenario(driver.OpInsertOne, 5)
	s := Run(context.Background(), d, sc, workload.NewDataset(1, 10), 2)

	assert.False(t, s.Succeeded)
	assert.NotEmpty(t, s.Error)
	assert.Empty(t, s.DurationsMs)
	assert.Equal(t, 2, d.ExecCount(driver.OpInsertOne))
	assert.Equal(t, 0, d.OpenHandles())
}

func TestRunFailureMidwayKeepsSampleFailed(t *testing.T) {
	d := &drivertest.Driver{FailExecuteAfter: 4}
	sc := testScenario(driver.OpInsertOne, 10)
	s := Run(context.Background(), d, sc, workload.NewDataset(1, 10), 1)

	assert.False(t, s.Succeeded)
	// Partial durations may be retained for inspection but the sample is
	// flagged so aggregation ignores them.
	assert.Less(t, len(s.DurationsMs), 10)
}

func TestRunCreatesIndexesWhenRequired(t *testing.T) {
	d := &drivertest.Driver{}
	sc := testScenario(driver.OpSelectSimple, 1)
	sc.RequiresIndex = true

	s := Run(context.Background(), d, sc, workload.NewDataset(1, 10), 0)
	require.True(t, s.Succeeded)
	assert.True(t, d.Indexed())
}

func TestPayloadKeysDisjointAcrossClients(t *testing.T) {
	ds := workload.NewDataset(1, 1000)
	sc := testScenario(driver.OpDeleteByKey, 10)
	sc.Cardinality = ds.OrderCount()

	seen := map[int64]bool{}
	total := sc.Repetitions
	for client := 0; client < 5; client++ {
		for i := 0; i < total; i++ {
			p := payloadFor(sc, ds, client, i, total)
			assert.False(t, seen[p.Key], "key %d reused", p.Key)
			seen[p.Key] = true
		}
	}
}

func TestPayloadKeysStayInsideCardinality(t *testing.T) {
	ds := workload.NewDataset(1, 1000)
	sc := testScenario(driver.OpUpdateByKey, 10)
	sc.Cardinality = 7

	total := sc.Repetitions
	for client := 0; client < 3; client++ {
		for i := 0; i < total; i++ {
			p := payloadFor(sc, ds, client, i, total)
			assert.GreaterOrEqual(t, p.Key, int64(1))
			assert.LessOrEqual(t, p.Key, int64(7), "keys cycle within the scenario keyspace")
		}
	}
}

func TestPayloadBatchRangesDisjointPerRepetition(t *testing.T) {
	ds := workload.NewDataset(1, 100)
	sc := testScenario(driver.OpInsertBatch, 3)
	sc.Cardinality = 100

	ids := map[int64]bool{}
	for i := 0; i < 3; i++ {
		p := payloadFor(sc, ds, 0, i, 3)
		require.Len(t, p.Customers, 100)
		for _, c := range p.Customers {
			assert.False(t, ids[c.ID])
			ids[c.ID] = true
		}
	}
}
