package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/akarX23/iisc-deas-project-1/internal/benchconfig"
	"github.com/akarX23/iisc-deas-project-1/internal/orchestrator"
	"github.com/akarX23/iisc-deas-project-1/internal/results"
	"github.com/akarX23/iisc-deas-project-1/internal/store"
)

type MockBatchService struct {
	mock.Mock
	// lines to emit through onLine before returning
	Lines []string
}

func (m *MockBatchService) RunBatch(ctx context.Context, configs []benchconfig.RunConfig, onLine func(string)) (orchestrator.BatchResult, error) {
	args := m.Called(ctx, configs)
	if err := args.Error(1); err != nil {
		return orchestrator.BatchResult{}, err
	}
	for _, l := range m.Lines {
		if onLine != nil {
			onLine(l)
		}
	}
	return args.Get(0).(orchestrator.BatchResult), nil
}

type MockResultsService struct {
	mock.Mock
}

func (m *MockResultsService) Aggregate(globPattern string) (*results.Table, error) {
	args := m.Called(globPattern)
	if t := args.Get(0); t != nil {
		return t.(*results.Table), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockHistoryReader struct {
	mock.Mock
}

func (m *MockHistoryReader) ListBatches() ([]*store.Batch, error) {
	args := m.Called()
	if b := args.Get(0); b != nil {
		return b.([]*store.Batch), args.Error(1)
	}
	return nil, args.Error(1)
}
