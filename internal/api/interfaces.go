package api

import (
	"context"

	"github.com/akarX23/iisc-deas-project-1/internal/benchconfig"
	"github.com/akarX23/iisc-deas-project-1/internal/orchestrator"
	"github.com/akarX23/iisc-deas-project-1/internal/results"
	"github.com/akarX23/iisc-deas-project-1/internal/store"
)

// BatchService abstracts the batch orchestrator for the run endpoints. An
// error means the batch was rejected before producing any output.
type BatchService interface {
	RunBatch(ctx context.Context, configs []benchconfig.RunConfig, onLine func(string)) (orchestrator.BatchResult, error)
}

// ResultsService abstracts the results aggregator.
type ResultsService interface {
	Aggregate(globPattern string) (*results.Table, error)
}

// HistoryReader lists past batch runs.
type HistoryReader interface {
	ListBatches() ([]*store.Batch, error)
}
