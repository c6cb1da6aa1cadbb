package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/akarX23/iisc-deas-project-1/internal/benchconfig"
	"github.com/akarX23/iisc-deas-project-1/internal/orchestrator"
	"github.com/akarX23/iisc-deas-project-1/internal/results"
	"github.com/akarX23/iisc-deas-project-1/internal/store"
	"github.com/akarX23/iisc-deas-project-1/internal/testutil"
)

func newTestServer(t *testing.T) (*Server, *MockBatchService, *MockResultsService, *MockHistoryReader) {
	t.Helper()
	batches := &MockBatchService{}
	agg := &MockResultsService{}
	history := &MockHistoryReader{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(testutil.TestConfig(t), batches, agg, history, logger)
	return srv, batches, agg, history
}

func validConfigJSON(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal([]benchconfig.RunConfig{
		{Name: "A", NumWorkers: 1, MemPerWorker: 4, CoresPerWorker: 2, DatasetScale: 0.5, LogDir: "./logs/a"},
	})
	require.NoError(t, err)
	return string(data)
}

func TestLoadConfigsDefault(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/configs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp configResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.True(t, resp.OK)
	assert.Contains(t, resp.Content, "BASE")
}

func TestValidateConfigsWritesHandoff(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := testutil.JSONRequest(t, "POST", "/api/configs/validate", configRequest{Content: validConfigJSON(t)})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp configResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.True(t, resp.OK)
	assert.Contains(t, resp.Status, "1 configuration(s)")

	_, err := os.Stat(srv.cfg.HandoffPath)
	assert.NoError(t, err)
}

func TestValidateConfigsMissingField(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := testutil.JSONRequest(t, "POST", "/api/configs/validate",
		configRequest{Content: `[{"name":"A","num_workers":1}]`})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp configResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Status, "missing required field")

	_, err := os.Stat(srv.cfg.HandoffPath)
	assert.True(t, os.IsNotExist(err))
}

func TestSaveConfigsRoundTrip(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := testutil.JSONRequest(t, "PUT", "/api/configs", configRequest{Content: validConfigJSON(t)})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// A subsequent load returns what was saved.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/configs", nil))
	var resp configResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Contains(t, resp.Content, `"name": "A"`)
}

func TestSaveConfigsInvalid(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := testutil.JSONRequest(t, "PUT", "/api/configs", configRequest{Content: `{"not":"an array"}`})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var apiErr APIError
	testutil.DecodeJSON(t, rec, &apiErr)
	assert.Equal(t, ErrCodeConfigInvalid, apiErr.Code)
}

func TestRunBatchStreamsSSE(t *testing.T) {
	srv, batches, _, _ := newTestServer(t)
	batches.Lines = []string{"starting", "finished"}
	batches.On("RunBatch", mock.Anything, mock.Anything).Return(orchestrator.BatchResult{
		ID: "b1", OK: true, Status: "all 1 benchmark configuration(s) completed", ExitCode: 0,
		Results: &results.Table{
			Columns: []string{"name", "E2E_time", "log_dir"},
			Rows:    []map[string]string{{"name": "A", "E2E_time": "5.0", "log_dir": "./logs/a"}},
		},
	}, nil)

	req := testutil.JSONRequest(t, "POST", "/api/runs", configRequest{Content: validConfigJSON(t)})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	events := testutil.ParseSSE(t, rec)
	require.Len(t, events, 3)

	for i, want := range []string{"starting", "finished"} {
		assert.Equal(t, "log", events[i].Name)
		var log struct {
			Line string `json:"line"`
		}
		events[i].Decode(t, &log)
		assert.Equal(t, want, log.Line)
	}

	assert.Equal(t, "done", events[2].Name)
	var done donePayload
	events[2].Decode(t, &done)
	assert.True(t, done.OK)
	assert.Equal(t, "b1", done.ID)
	assert.Equal(t, 0, done.ExitCode)
	assert.Contains(t, done.Rendered, "E2E_time")
	batches.AssertExpectations(t)
}

func TestRunBatchFailureStreamsDone(t *testing.T) {
	srv, batches, _, _ := newTestServer(t)
	batches.On("RunBatch", mock.Anything, mock.Anything).Return(orchestrator.BatchResult{
		ID: "b2", OK: false, Status: "benchmark script failed with exit code 1", ExitCode: 1,
	}, nil)

	req := testutil.JSONRequest(t, "POST", "/api/runs", configRequest{Content: validConfigJSON(t)})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	events := testutil.ParseSSE(t, rec)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "done", last.Name)
	var done donePayload
	last.Decode(t, &done)
	assert.False(t, done.OK)
	assert.Equal(t, 1, done.ExitCode)
	assert.Empty(t, done.Rendered)
}

func TestRunBatchBusyReturnsConflict(t *testing.T) {
	srv, batches, _, _ := newTestServer(t)
	batches.On("RunBatch", mock.Anything, mock.Anything).Return(orchestrator.BatchResult{}, orchestrator.ErrBusy)

	req := testutil.JSONRequest(t, "POST", "/api/runs", configRequest{Content: validConfigJSON(t)})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var apiErr APIError
	testutil.DecodeJSON(t, rec, &apiErr)
	assert.Equal(t, ErrCodeBusy, apiErr.Code)
}

func TestRunBatchRejectsInvalidConfigBeforeStreaming(t *testing.T) {
	srv, batches, _, _ := newTestServer(t)

	req := testutil.JSONRequest(t, "POST", "/api/runs", configRequest{Content: `[{"name":"A"}]`})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var apiErr APIError
	testutil.DecodeJSON(t, rec, &apiErr)
	assert.Equal(t, ErrCodeConfigInvalid, apiErr.Code)
	batches.AssertNotCalled(t, "RunBatch", mock.Anything, mock.Anything)
}

func TestLoadResults(t *testing.T) {
	srv, _, agg, _ := newTestServer(t)
	agg.On("Aggregate", srv.cfg.ResultsGlob).Return(&results.Table{
		Columns: []string{"name", "E2E_time", "log_dir"},
		Rows:    []map[string]string{{"name": "A", "E2E_time": "5.0", "log_dir": "./logs/a"}},
	}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/results", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Columns  []string            `json:"columns"`
		Rows     []map[string]string `json:"rows"`
		Rendered string              `json:"rendered"`
	}
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, []string{"name", "E2E_time", "log_dir"}, resp.Columns)
	assert.Contains(t, resp.Rendered, "5.0")
	agg.AssertExpectations(t)
}

func TestLoadResultsCustomPattern(t *testing.T) {
	srv, _, agg, _ := newTestServer(t)
	agg.On("Aggregate", "/srv/logs/*").Return(nil, results.ErrNoResults)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/results?pattern=%2Fsrv%2Flogs%2F%2A", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var apiErr APIError
	testutil.DecodeJSON(t, rec, &apiErr)
	assert.Equal(t, ErrCodeNoResults, apiErr.Code)
	agg.AssertExpectations(t)
}

func TestListRuns(t *testing.T) {
	srv, _, _, history := newTestServer(t)
	finished := time.Now()
	history.On("ListBatches").Return([]*store.Batch{
		{ID: "b1", NumConfigs: 2, Status: "succeeded", ExitCode: 0, StartedAt: finished.Add(-time.Minute), FinishedAt: &finished},
	}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var batches []*store.Batch
	testutil.DecodeJSON(t, rec, &batches)
	require.Len(t, batches, 1)
	assert.Equal(t, "b1", batches[0].ID)
	assert.Equal(t, "succeeded", batches[0].Status)
}

func TestHealthz(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboardServed(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Spark Pipeline Benchmark")
}
