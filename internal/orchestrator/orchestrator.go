// Package orchestrator runs benchmark batches: it writes the handoff file,
// delegates sequential execution to the lifecycle runner, and folds the
// outcome (log, exit code, aggregated results) into a single result value.
// It knows nothing about HTTP; the console layers streaming on top of the
// onLine callback.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akarX23/iisc-deas-project-1/internal/benchconfig"
	"github.com/akarX23/iisc-deas-project-1/internal/results"
)

// Sentinels for batch-level failures.
var (
	ErrProcess = errors.New("process failure")
	ErrBusy    = errors.New("a benchmark batch is already running")
)

// History records batch runs; implemented by the run-history store. A nil
// History disables recording.
type History interface {
	RecordStart(id string, numConfigs int, startedAt time.Time) error
	RecordFinish(id string, exitCode int, status string, finishedAt time.Time) error
}

// BatchResult is the full outcome of one batch invocation. Once execution has
// started, failures are folded into Status rather than returned as errors.
type BatchResult struct {
	ID       string         `json:"id"`
	OK       bool           `json:"ok"`
	Status   string         `json:"status"`
	ExitCode int            `json:"exit_code"`
	Log      []string       `json:"log"`
	Results  *results.Table `json:"results,omitempty"`
}

type Orchestrator struct {
	handoffPath string
	resultsGlob string
	lifecycle   LifecycleRunner
	aggregator  *results.Aggregator
	history     History
	logger      *slog.Logger

	// One batch at a time: the lifecycle script owns exclusive compute and
	// container resources while it runs.
	mu sync.Mutex
}

func New(handoffPath, resultsGlob string, lifecycle LifecycleRunner, agg *results.Aggregator, history History, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		handoffPath: handoffPath,
		resultsGlob: resultsGlob,
		lifecycle:   lifecycle,
		aggregator:  agg,
		history:     history,
		logger:      logger,
	}
}

// RunBatch executes configs sequentially through the lifecycle runner. Output
// lines are forwarded to onLine (may be nil) as they arrive and buffered into
// the result. The call blocks until the child process exits.
//
// Pre-flight rejections (invalid configs, a batch already running) come back
// as errors before any output is produced; everything after that is reported
// through the result so callers streaming the output still get a terminal
// status.
func (o *Orchestrator) RunBatch(ctx context.Context, configs []benchconfig.RunConfig, onLine func(string)) (BatchResult, error) {
	if err := benchconfig.ValidateConfigs(configs); err != nil {
		return BatchResult{}, err
	}

	if !o.mu.TryLock() {
		return BatchResult{}, ErrBusy
	}
	defer o.mu.Unlock()

	id := uuid.NewString()
	res := BatchResult{ID: id, ExitCode: -1}

	if o.history != nil {
		if err := o.history.RecordStart(id, len(configs), time.Now()); err != nil {
			o.logger.Warn("recording batch start", "batch_id", id, "error", err)
		}
	}
	defer func() {
		if o.history == nil {
			return
		}
		status := "failed"
		if res.OK {
			status = "succeeded"
		}
		if err := o.history.RecordFinish(id, res.ExitCode, status, time.Now()); err != nil {
			o.logger.Warn("recording batch finish", "batch_id", id, "error", err)
		}
	}()

	if err := benchconfig.WriteHandoff(o.handoffPath, configs); err != nil {
		res.Status = err.Error()
		return res, nil
	}

	o.logger.Info("starting benchmark batch", "batch_id", id, "configs", len(configs))

	collect := func(line string) {
		res.Log = append(res.Log, line)
		if onLine != nil {
			onLine(line)
		}
	}

	exitCode, err := o.lifecycle.Invoke(ctx, o.handoffPath, collect)
	if err != nil {
		res.Status = fmt.Sprintf("%v: %v", ErrProcess, err)
		return res, nil
	}
	res.ExitCode = exitCode

	if exitCode != 0 {
		res.Status = fmt.Sprintf("benchmark script failed with exit code %d", exitCode)
		o.logger.Error("benchmark batch failed", "batch_id", id, "exit_code", exitCode)
		return res, nil
	}

	res.OK = true
	res.Status = fmt.Sprintf("all %d benchmark configuration(s) completed", len(configs))
	o.logger.Info("benchmark batch completed", "batch_id", id)

	table, err := o.aggregator.Aggregate(o.resultsGlob)
	if err != nil {
		// A clean run with no readable results is still a clean run; note it
		// and move on.
		res.Status += "; " + err.Error()
		return res, nil
	}
	res.Results = table
	return res, nil
}
