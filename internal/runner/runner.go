// Package runner executes scenarios against a backend driver: the
// single-client scenario runner here, and the multi-client concurrency
// harness in concurrent.go.
package runner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"dbbench/internal/bench"
	"dbbench/internal/driver"
	"dbbench/internal/scenario"
	"dbbench/internal/workload"
)

// DefaultWarmup is the number of unmeasured executions that prime caches and
// connections before measurement starts.
const DefaultWarmup = 3

// liveID hands out row keys for live inserts. It starts far above any
// generated dataset key so measured inserts never collide with seeded rows or
// with each other, across all clients of a run.
var liveID atomic.Int64

func init() { liveID.Store(1 << 40) }

// Run executes one scenario with a single client and returns its sample.
// The handle is acquired here and released on every path; a failed execution
// flags the sample and stops further repetitions, so a sample is either fully
// measured or failed — never a partial average.
func Run(ctx context.Context, d driver.Driver, sc scenario.Scenario, ds *workload.Dataset, warmup int) bench.Sample {
	startedAt := time.Now()

	h, err := d.Connect(ctx)
	if err != nil {
		return bench.Failed(d.Name(), sc.Name, startedAt, err)
	}
	defer h.Close(context.Background())

	if sc.RequiresIndex {
		if err := d.CreateIndexes(ctx, h); err != nil {
			return bench.Failed(d.Name(), sc.Name, startedAt, err)
		}
	}

	durations, err := measure(ctx, d, h, sc, ds, warmup, 0, nil)
	sample := bench.Sample{
		Backend:     d.Name(),
		Scenario:    sc.Name,
		StartedAt:   startedAt,
		DurationsMs: durations,
		Succeeded:   err == nil,
	}
	if err != nil {
		sample.Error = err.Error()
		log.Warn().Str("backend", d.Name()).Str("scenario", sc.Name).Err(err).
			Msg("scenario failed")
	}
	return sample
}

// measure performs warmup unmeasured executions followed by the scenario's
// measured repetitions, recording each elapsed duration in milliseconds.
// record, when non-nil, additionally observes each measured latency (the
// concurrency harness feeds these into per-client histograms). On error the
// durations recorded so far are returned alongside it.
func measure(ctx context.Context, d driver.Driver, h driver.Handle, sc scenario.Scenario, ds *workload.Dataset, warmup, client int, record func(time.Duration)) ([]float64, error) {
	var durations []float64
	total := warmup + sc.Repetitions
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return durations, err
		}
		p := payloadFor(sc, ds, client, i, total)
		elapsed, err := d.Execute(ctx, h, sc.Op, p)
		if err != nil {
			return durations, err
		}
		if i >= warmup {
			durations = append(durations, float64(elapsed.Nanoseconds())/1e6)
			if record != nil {
				record(elapsed)
			}
		}
	}
	return durations, nil
}

// payloadFor builds the inputs for execution i of total on behalf of client.
// Keyed operations spread (client, i) across the scenario's keyspace so
// concurrent clients target distinct rows while the keyspace lasts.
func payloadFor(sc scenario.Scenario, ds *workload.Dataset, client, i, total int) *driver.Payload {
	seq := client*total + i
	switch sc.Op {
	case driver.OpInsertOne:
		c := ds.Customer(int(liveID.Add(1)))
		c.Email = uuid.NewString() + "@email.com"
		return &driver.Payload{Customer: &c}
	case driver.OpInsertBatch:
		// Each repetition inserts a fresh, disjoint key range with the same
		// deterministic shape.
		return &driver.Payload{Customers: ds.Customers(seq*sc.Cardinality, sc.Cardinality)}
	case driver.OpSelectSimple:
		return &driver.Payload{City: workload.Cities()[i%len(workload.Cities())], Limit: sc.Cardinality}
	case driver.OpSelectJoined:
		return &driver.Payload{Limit: sc.Cardinality}
	case driver.OpUpdateByKey, driver.OpDeleteByKey:
		// The scenario's cardinality is the keyspace the keys cycle through;
		// the battery sizes it to the seeded table being targeted.
		span := sc.Cardinality
		if span <= 0 {
			span = 1
		}
		return &driver.Payload{Key: int64(seq%span) + 1}
	default:
		return &driver.Payload{}
	}
}
