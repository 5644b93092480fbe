package runner

import (
	"context"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/rs/zerolog/log"

	"dbbench/internal/bench"
	"dbbench/internal/driver"
	"dbbench/internal/scenario"
	"dbbench/internal/workload"
)

// DefaultBatchTimeout bounds one whole concurrent batch when the
// configuration does not override it.
const DefaultBatchTimeout = 60 * time.Second

// Histogram bounds: 1µs to 60s at 3 significant figures, matching the
// per-operation I/O ceiling with headroom.
const maxTrackableMicros = 60_000_000

// ConcurrentResult is the outcome of one concurrency-harness batch.
type ConcurrentResult struct {
	// Samples holds one entry per client, in client order.
	Samples []bench.Sample
	// WallClock spans the first client start to the last client finish.
	WallClock  time.Duration
	Operations int64
	OpsPerSec  float64
	// Latency summarizes the per-client histograms merged after join.
	Latency bench.LatencySummary
}

// RunConcurrent launches clients simulated clients, each with its own handle,
// all starting only after every successful connection is established so
// staggered startup never skews the measurement. Each client writes a sample
// into its own slot; nothing measured is shared until after the join.
//
// A client that cannot connect contributes a failed sample and the batch
// proceeds without it. A client still running when the batch deadline fires
// is recorded as failed with a timeout detail and its partial durations are
// discarded.
func RunConcurrent(ctx context.Context, d driver.Driver, sc scenario.Scenario, ds *workload.Dataset, clients, warmup int, timeout time.Duration) ConcurrentResult {
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}
	batchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if sc.RequiresIndex {
		if h, err := d.Connect(batchCtx); err != nil {
			log.Warn().Str("backend", d.Name()).Err(err).Msg("index creation connect failed")
		} else {
			err = d.CreateIndexes(batchCtx, h)
			h.Close(context.Background())
			if err != nil {
				log.Warn().Str("backend", d.Name()).Err(err).Msg("index creation failed")
			}
		}
	}

	samples := make([]bench.Sample, clients)
	hists := make([]*hdrhistogram.Histogram, clients)
	starts := make([]time.Time, clients)
	ends := make([]time.Time, clients)

	var connected sync.WaitGroup
	start := make(chan struct{})
	var wg sync.WaitGroup

	connected.Add(clients)
	wg.Add(clients)
	for i := 0; i < clients; i++ {
		go func(client int) {
			defer wg.Done()
			startedAt := time.Now()

			h, err := d.Connect(batchCtx)
			connected.Done()
			if err != nil {
				samples[client] = bench.Failed(d.Name(), sc.Name, startedAt, err)
				samples[client].Client = client + 1
				return
			}
			defer h.Close(context.Background())

			<-start
			hist := hdrhistogram.New(1, maxTrackableMicros, 3)
			starts[client] = time.Now()
			durations, err := measure(batchCtx, d, h, sc, ds, warmup, client, func(elapsed time.Duration) {
				hist.RecordValue(elapsed.Microseconds())
			})
			ends[client] = time.Now()

			s := bench.Sample{
				Backend:     d.Name(),
				Scenario:    sc.Name,
				Client:      client + 1,
				StartedAt:   startedAt,
				DurationsMs: durations,
				Succeeded:   err == nil,
			}
			if err != nil {
				if batchCtx.Err() != nil {
					// Deadline hit mid-flight; partial measurements are
					// statistically misleading and are dropped.
					err = &driver.TimeoutError{Backend: d.Name(), Client: client + 1}
					s.DurationsMs = nil
				}
				s.Error = err.Error()
			} else {
				hists[client] = hist
			}
			samples[client] = s
		}(i)
	}

	// Every client has attempted its connection before anyone starts issuing
	// operations.
	connected.Wait()
	close(start)
	wg.Wait()

	return summarize(samples, hists, starts, ends)
}

func summarize(samples []bench.Sample, hists []*hdrhistogram.Histogram, starts, ends []time.Time) ConcurrentResult {
	res := ConcurrentResult{Samples: samples}

	var first, last time.Time
	for i := range samples {
		if starts[i].IsZero() {
			continue
		}
		if first.IsZero() || starts[i].Before(first) {
			first = starts[i]
		}
		if ends[i].After(last) {
			last = ends[i]
		}
		if samples[i].Succeeded {
			res.Operations += int64(len(samples[i].DurationsMs))
		}
	}
	if !first.IsZero() {
		res.WallClock = last.Sub(first)
	}
	if res.WallClock > 0 {
		res.OpsPerSec = float64(res.Operations) / res.WallClock.Seconds()
	}

	merged := hdrhistogram.New(1, maxTrackableMicros, 3)
	for _, h := range hists {
		if h != nil {
			merged.Merge(h)
		}
	}
	if merged.TotalCount() > 0 {
		res.Latency = bench.LatencySummary{
			MeanMs: merged.Mean() / 1000,
			P50Ms:  float64(merged.ValueAtQuantile(50)) / 1000,
			P95Ms:  float64(merged.ValueAtQuantile(95)) / 1000,
			P99Ms:  float64(merged.ValueAtQuantile(99)) / 1000,
			MaxMs:  float64(merged.Max()) / 1000,
		}
	}
	return res
}
