// Package orchestrator sequences the scenario battery across all registered
// backends and assembles the result document. Backends run in parallel with
// each other; within one backend the battery runs strictly in order, so one
// backend's load never perturbs another's isolated measurement.
package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"dbbench/internal/bench"
	"dbbench/internal/config"
	"dbbench/internal/driver"
	"dbbench/internal/runner"
	"dbbench/internal/scenario"
	"dbbench/internal/workload"
)

// seedBatchSize bounds how many generated rows are materialized at once while
// loading a backend.
const seedBatchSize = 500

type Orchestrator struct {
	cfg     *config.Config
	drivers map[string]driver.Driver
	battery []scenario.Scenario
}

// New builds an orchestrator over the registered drivers. Adding a backend to
// a run means adding an entry to drivers; nothing here branches on backend
// identity except logging.
func New(cfg *config.Config, drivers map[string]driver.Driver) *Orchestrator {
	battery := scenario.Filter(
		scenario.Battery(cfg.Settings.DatasetSize, cfg.Settings.Repetitions),
		cfg.Settings.Scenarios,
	)
	return &Orchestrator{cfg: cfg, drivers: drivers, battery: battery}
}

type backendOutcome struct {
	samples    []bench.Sample
	throughput []bench.ThroughputRow
	rows       map[string]int64
	skipReason string
}

// Run executes the battery and returns the finished report. A backend that
// fails connect or schema setup is fully skipped — every one of its scenarios
// recorded as failed with the same root cause — and the run proceeds; only
// configuration and output problems are fatal, and those surface as errors
// from the caller's Write, not from here.
func (o *Orchestrator) Run(ctx context.Context) (*bench.Report, error) {
	report := &bench.Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Config:    o.cfg.Settings,
		Skipped:   map[string]string{},
		Stats:     map[string]bench.BackendStats{},
	}

	ds := workload.NewDataset(o.cfg.Settings.Seed, o.cfg.Settings.DatasetSize)

	ids := make([]string, 0, len(o.drivers))
	for id := range o.drivers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	log.Info().Str("run_id", report.RunID).Strs("backends", ids).
		Int("scenarios", len(o.battery)).Int("dataset_size", ds.Size()).
		Msg("starting run")

	outcomes := make([]backendOutcome, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, d := i, o.drivers[id]
		g.Go(func() error {
			outcomes[i] = o.runBackend(ctx, d, ds)
			return nil
		})
	}
	g.Wait()

	var all []bench.Sample
	for i, id := range ids {
		out := outcomes[i]
		all = append(all, out.samples...)
		report.Throughput = append(report.Throughput, out.throughput...)
		if out.skipReason != "" {
			report.Skipped[id] = out.skipReason
		}
		stats := bench.BackendStats{Rows: out.rows}
		report.Stats[id] = stats
	}

	report.Results = bench.Aggregate(all)
	o.applyIndexImpact(report)
	report.FinishedAt = time.Now()
	o.logSummary(report, ids)
	return report, nil
}

func (o *Orchestrator) runBackend(ctx context.Context, d driver.Driver, ds *workload.Dataset) backendOutcome {
	var out backendOutcome
	logger := log.With().Str("backend", d.Name()).Logger()

	probe, err := d.Connect(ctx)
	if err == nil {
		err = d.ApplySchema(ctx, probe)
	}
	if err != nil {
		if probe != nil {
			probe.Close(context.Background())
		}
		logger.Error().Err(err).Msg("backend skipped")
		out.skipReason = err.Error()
		now := time.Now()
		for _, sc := range o.battery {
			out.samples = append(out.samples, bench.Failed(d.Name(), sc.Name, now, err))
		}
		return out
	}
	defer probe.Close(context.Background())

	s := &o.cfg.Settings
	prevCategory := ""
	var prepErr error
	for _, sc := range o.battery {
		if sc.Category != prevCategory {
			prevCategory = sc.Category
			prepErr = o.prepare(ctx, d, probe, ds, sc.Seeded)
			if prepErr != nil {
				logger.Error().Err(prepErr).Str("category", sc.Category).
					Msg("category preparation failed")
			}
		}
		if prepErr != nil {
			out.samples = append(out.samples, bench.Failed(d.Name(), sc.Name, time.Now(), prepErr))
			continue
		}

		logger.Info().Str("scenario", sc.Name).Msg("running scenario")
		if sc.Concurrent {
			res := runner.RunConcurrent(ctx, d, sc, ds,
				s.ConcurrentClients, s.Warmup, s.BatchTimeoutDuration())
			out.samples = append(out.samples, res.Samples...)
			out.throughput = append(out.throughput, bench.ThroughputRow{
				Backend:     d.Name(),
				Scenario:    sc.Name,
				Clients:     s.ConcurrentClients,
				WallClockMs: float64(res.WallClock.Nanoseconds()) / 1e6,
				Operations:  res.Operations,
				OpsPerSec:   res.OpsPerSec,
				Latency:     res.Latency,
			})
		} else {
			out.samples = append(out.samples, runner.Run(ctx, d, sc, ds, s.Warmup))
		}
	}

	out.rows = map[string]int64{}
	for _, table := range driver.Tables {
		if n, err := d.CountRows(ctx, probe, table); err == nil {
			out.rows[table] = n
		}
	}
	return out
}

// prepare resets the backend at a category boundary and, for seeded
// categories, loads the full generated dataset in referential order.
func (o *Orchestrator) prepare(ctx context.Context, d driver.Driver, h driver.Handle, ds *workload.Dataset, seeded bool) error {
	if err := d.Reset(ctx, h); err != nil {
		return err
	}
	if !seeded {
		return nil
	}
	if err := ds.EachCustomerBatch(seedBatchSize, func(batch []workload.Customer) error {
		_, err := d.Execute(ctx, h, driver.OpInsertBatch, &driver.Payload{Customers: batch})
		return err
	}); err != nil {
		return err
	}
	if err := ds.EachProductBatch(seedBatchSize, func(batch []workload.Product) error {
		_, err := d.Execute(ctx, h, driver.OpInsertBatch, &driver.Payload{Products: batch})
		return err
	}); err != nil {
		return err
	}
	return ds.EachOrderBatch(seedBatchSize, func(batch []workload.Order) error {
		_, err := d.Execute(ctx, h, driver.OpInsertBatch, &driver.Payload{Orders: batch})
		return err
	})
}

// applyIndexImpact derives the no-index/indexed comparison for each backend
// that measured both halves of the pair.
func (o *Orchestrator) applyIndexImpact(report *bench.Report) {
	for id, records := range report.Results {
		noIdx, ok1 := records[scenario.SelectSimpleNoIndex]
		idx, ok2 := records[scenario.SelectSimpleIndexed]
		if !ok1 || !ok2 || noIdx.Count == 0 || idx.Count == 0 || noIdx.MeanMs <= 0 {
			continue
		}
		improvement := (noIdx.MeanMs - idx.MeanMs) / noIdx.MeanMs * 100
		stats := report.Stats[id]
		stats.IndexImprovementPercent = &improvement
		report.Stats[id] = stats
	}
}

func (o *Orchestrator) logSummary(report *bench.Report, ids []string) {
	for _, id := range ids {
		if reason, skipped := report.Skipped[id]; skipped {
			log.Warn().Str("backend", id).Str("reason", reason).Msg("backend skipped")
			continue
		}
		for _, sc := range o.battery {
			rec, ok := report.Results[id][sc.Name]
			if !ok {
				continue
			}
			log.Info().Str("backend", id).Str("scenario", sc.Name).
				Int("count", rec.Count).Int("errors", rec.Errors).
				Float64("mean_ms", rec.MeanMs).Float64("p95_ms", rec.P95Ms).
				Msg("result")
		}
		if stats, ok := report.Stats[id]; ok && stats.IndexImprovementPercent != nil {
			log.Info().Str("backend", id).
				Float64("improvement_percent", *stats.IndexImprovementPercent).
				Msg("index impact")
		}
	}
}
