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
	"dbbench/internal/workload"
)

func TestRunConcurrentAllClientsSucceed(t *testing.T) {
	d := &drivertest.Driver{Elapsed: time.Millisecond}
	ds := workload.NewDataset(1, 1000)
	sc := testScenario(driver.OpSelectSimple, 4)

	res := RunConcurrent(context.Background(), d, sc, ds, 8, 1, time.Minute)

	require.Len(t, res.Samples, 8)
	for i, s := range res.Samples {
		assert.True(t, s.Succeeded, "client %d", i)
		assert.Equal(t, i+1, s.Client, "samples stay in client order")
		assert.Len(t, s.DurationsMs, 4)
	}
	assert.Equal(t, int64(8*4), res.Operations)
	assert.Greater(t, res.OpsPerSec, 0.0)
	assert.Greater(t, res.WallClock, time.Duration(0))
	assert.Greater(t, res.Latency.P95Ms, 0.0)
	assert.Equal(t, 0, d.OpenHandles(), "every client released its handle")
	assert.Equal(t, 8, d.Connects(), "one handle per client, never shared")
}

func TestRunConcurrentSingleClientMatchesRunner(t *testing.T) {
	ds := workload.NewDataset(1, 1000)
	sc := testScenario(driver.OpSelectSimple, 6)

	single := Run(context.Background(), &drivertest.Driver{Elapsed: 3 * time.Millisecond}, sc, ds, 2)
	conc := RunConcurrent(context.Background(), &drivertest.Driver{Elapsed: 3 * time.Millisecond}, sc, ds, 1, 2, time.Minute)

	require.True(t, single.Succeeded)
	require.Len(t, conc.Samples, 1)
	require.True(t, conc.Samples[0].Succeeded)
	// Reported durations come from the driver's internal timing, so with one
	// client the harness measures exactly what the runner measures.
	assert.Equal(t, single.DurationsMs, conc.Samples[0].DurationsMs)
}

func TestRunConcurrentIsolatesConnectFailure(t *testing.T) {
	d := &drivertest.Driver{
		Elapsed:          time.Millisecond,
		ConnectErrOnCall: map[int]error{2: errors.New("refused")},
	}
	ds := workload.NewDataset(1, 1000)
	sc := testScenario(driver.OpInsertOne, 3)

	res := RunConcurrent(context.Background(), d, sc, ds, 4, 0, time.Minute)

	require.Len(t, res.Samples, 4)
	failed, succeeded := 0, 0
	for _, s := range res.Samples {
		if s.Succeeded {
			succeeded++
			assert.Len(t, s.DurationsMs, 3)
		} else {
			failed++
			assert.Contains(t, s.Error, "refused")
		}
	}
	assert.Equal(t, 1, failed, "only the client that could not connect fails")
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, int64(9), res.Operations)
}

func TestRunConcurrentIndexProbeConnectFailureSkipsIndexes(t *testing.T) {
	// The first Connect is the index-building probe; when it fails the batch
	// still runs, unindexed, and every client gets its own later connection.
	d := &drivertest.Driver{
		Elapsed:          time.Millisecond,
		ConnectErrOnCall: map[int]error{1: errors.New("refused")},
	}
	ds := workload.NewDataset(1, 1000)
	sc := testScenario(driver.OpSelectSimple, 2)
	sc.RequiresIndex = true

	res := RunConcurrent(context.Background(), d, sc, ds, 2, 0, time.Minute)

	require.Len(t, res.Samples, 2)
	for _, s := range res.Samples {
		assert.True(t, s.Succeeded)
	}
	assert.Equal(t, 0, d.IndexBuilds())
	assert.Equal(t, 3, d.Connects())
	assert.Equal(t, 0, d.OpenHandles())
}

func TestRunConcurrentBatchDeadline(t *testing.T) {
	d := &drivertest.Driver{Delay: 30 * time.Millisecond}
	ds := workload.NewDataset(1, 1000)
	sc := testScenario(driver.OpSelectSimple, 1000)

	res := RunConcurrent(context.Background(), d, sc, ds, 2, 0, 50*time.Millisecond)

	require.Len(t, res.Samples, 2)
	for _, s := range res.Samples {
		assert.False(t, s.Succeeded)
		assert.Contains(t, s.Error, "deadline")
		assert.Empty(t, s.DurationsMs, "partial durations are discarded on timeout")
	}
	assert.Equal(t, 0, d.OpenHandles())
}
