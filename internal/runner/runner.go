// Package runner executes a single benchmark configuration against a compute
// session and reports elapsed time, throughput, and stage timings. It never
// writes results.csv — per-run persistence belongs to the lifecycle script.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/akarX23/iisc-deas-project-1/internal/benchconfig"
)

// SessionSpec sizes the compute session for one configuration.
type SessionSpec struct {
	NumWorkers     int
	MemPerWorker   int // GB
	CoresPerWorker int
}

// Session is a live compute session. Clean runs the external data-cleaning
// job over the dataset; Release tears the session down. Both are external
// collaborators — the benchmark harness implements neither the session
// construction nor the cleaning transformation.
type Session interface {
	Clean(ctx context.Context, ds *Dataset) error
	Release(ctx context.Context) error
}

// SessionBuilder acquires sessions sized by a SessionSpec.
type SessionBuilder interface {
	Acquire(ctx context.Context, spec SessionSpec) (Session, error)
}

// Report is the outcome of one benchmark run.
type Report struct {
	Name      string        `json:"name"`
	TotalRows int           `json:"total_rows"`
	Rows      int           `json:"rows"`
	Elapsed   time.Duration `json:"elapsed"`
	// Throughput is rows/sec. When Elapsed rounds to zero the value is +Inf
	// and ThroughputDefined is false — undefined, never a fault.
	Throughput        float64       `json:"throughput"`
	ThroughputDefined bool          `json:"throughput_defined"`
	Stages            []StageTiming `json:"stages"`
}

func (r Report) String() string {
	tp := "undefined (elapsed time too small)"
	if r.ThroughputDefined {
		tp = fmt.Sprintf("%.2f rows/sec", r.Throughput)
	}
	return fmt.Sprintf(
		"Benchmark %s completed\nRows:       %d of %d\nTime:       %.2f seconds\nThroughput: %s\nStages:\n%s",
		r.Name, r.Rows, r.TotalRows, r.Elapsed.Seconds(), tp, formatStages(r.Stages),
	)
}

// Runner runs benchmark configurations one at a time.
type Runner struct {
	builder     SessionBuilder
	datasetPath string
	logger      *slog.Logger

	// newCollector is swappable for tests; nil means the default stopwatch.
	newCollector func(Session) MetricsCollector
}

func New(builder SessionBuilder, datasetPath string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{builder: builder, datasetPath: datasetPath, logger: logger}
}

// Run executes cfg: acquire a session sized per the configuration, load and
// sample the dataset, bracket the cleaning job with the metrics collector,
// and report. The session is always released, including on error.
func (r *Runner) Run(ctx context.Context, cfg benchconfig.RunConfig) (*Report, error) {
	sess, err := r.builder.Acquire(ctx, SessionSpec{
		NumWorkers:     cfg.NumWorkers,
		MemPerWorker:   cfg.MemPerWorker,
		CoresPerWorker: cfg.CoresPerWorker,
	})
	if err != nil {
		return nil, fmt.Errorf("acquiring session: %w", err)
	}
	defer func() {
		if rerr := sess.Release(context.WithoutCancel(ctx)); rerr != nil {
			r.logger.Warn("releasing session", "error", rerr)
		}
	}()

	ds, err := LoadDataset(r.datasetPath)
	if err != nil {
		return nil, err
	}

	sample := ds.Sample(cfg.DatasetScale)
	r.logger.Info("processing sample",
		"name", cfg.Name,
		"rows", sample.TotalRows(),
		"total_rows", ds.TotalRows(),
		"scale", cfg.DatasetScale,
	)

	collector := r.collectorFor(sess)

	start := time.Now()
	collector.Begin()
	cleanErr := sess.Clean(ctx, sample)
	collector.End()
	elapsed := time.Since(start)

	if cleanErr != nil {
		return nil, fmt.Errorf("running data cleaning: %w", cleanErr)
	}

	report := buildReport(cfg.Name, sample.TotalRows(), ds.TotalRows(), elapsed, collector.Stages())
	r.logger.Info("benchmark completed",
		"name", report.Name,
		"rows", report.Rows,
		"elapsed_s", report.Elapsed.Seconds(),
		"throughput", report.Throughput,
	)
	return report, nil
}

func (r *Runner) collectorFor(sess Session) MetricsCollector {
	if r.newCollector != nil {
		return r.newCollector(sess)
	}
	return newStopwatchCollector(sess)
}

func buildReport(name string, rows, totalRows int, elapsed time.Duration, stages []StageTiming) *Report {
	rep := &Report{
		Name:      name,
		TotalRows: totalRows,
		Rows:      rows,
		Elapsed:   elapsed,
		Stages:    stages,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		rep.Throughput = float64(rows) / secs
		rep.ThroughputDefined = true
	} else {
		rep.Throughput = math.Inf(1)
	}
	return rep
}
