package runner

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akarX23/iisc-deas-project-1/internal/benchconfig"
)

type fakeSession struct {
	cleanErr    error
	cleanedRows int
	released    bool
}

func (s *fakeSession) Clean(ctx context.Context, ds *Dataset) error {
	s.cleanedRows = ds.TotalRows()
	return s.cleanErr
}

func (s *fakeSession) Release(ctx context.Context) error {
	s.released = true
	return nil
}

type fakeBuilder struct {
	sess       *fakeSession
	acquireErr error
	lastSpec   SessionSpec
}

func (b *fakeBuilder) Acquire(ctx context.Context, spec SessionSpec) (Session, error) {
	b.lastSpec = spec
	if b.acquireErr != nil {
		return nil, b.acquireErr
	}
	return b.sess, nil
}

func writeDataset(t *testing.T, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("id,value\n")
	for i := 0; i < rows; i++ {
		b.WriteString(strconv.Itoa(i) + ",v\n")
	}
	path := filepath.Join(t.TempDir(), "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func baseConfig() benchconfig.RunConfig {
	return benchconfig.RunConfig{
		Name: "A", NumWorkers: 1, MemPerWorker: 4, CoresPerWorker: 2,
		DatasetScale: 0.5, LogDir: "./logs/a",
	}
}

func TestRunSamplesAndReports(t *testing.T) {
	path := writeDataset(t, 1000)
	builder := &fakeBuilder{sess: &fakeSession{}}
	r := New(builder, path, nil)

	rep, err := r.Run(context.Background(), baseConfig())
	require.NoError(t, err)

	assert.Equal(t, "A", rep.Name)
	assert.Equal(t, 1000, rep.TotalRows)
	assert.Equal(t, 500, rep.Rows)
	assert.Equal(t, 500, builder.sess.cleanedRows)
	assert.True(t, builder.sess.released)
	assert.Equal(t, SessionSpec{NumWorkers: 1, MemPerWorker: 4, CoresPerWorker: 2}, builder.lastSpec)
	assert.NotEmpty(t, rep.Stages)
}

func TestRunUnreadableDataset(t *testing.T) {
	builder := &fakeBuilder{sess: &fakeSession{}}
	r := New(builder, filepath.Join(t.TempDir(), "missing.csv"), nil)

	_, err := r.Run(context.Background(), baseConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataAccess)
	// The session was acquired before the load, so it must still be released.
	assert.True(t, builder.sess.released)
}

func TestRunCleanFailureReleasesSession(t *testing.T) {
	path := writeDataset(t, 10)
	builder := &fakeBuilder{sess: &fakeSession{cleanErr: errors.New("executor lost")}}
	r := New(builder, path, nil)

	_, err := r.Run(context.Background(), baseConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executor lost")
	assert.True(t, builder.sess.released)
}

func TestRunAcquireFailure(t *testing.T) {
	builder := &fakeBuilder{acquireErr: errors.New("no capacity")}
	r := New(builder, "unused.csv", nil)

	_, err := r.Run(context.Background(), baseConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquiring session")
}

func TestBuildReportThroughput(t *testing.T) {
	rep := buildReport("A", 500, 1000, 2*time.Second, nil)
	assert.True(t, rep.ThroughputDefined)
	assert.InDelta(t, 250.0, rep.Throughput, 1e-9)
}

func TestBuildReportZeroElapsed(t *testing.T) {
	rep := buildReport("A", 500, 1000, 0, nil)
	assert.False(t, rep.ThroughputDefined)
	assert.True(t, math.IsInf(rep.Throughput, 1))
	// Rendering must not blow up on the undefined case.
	assert.Contains(t, rep.String(), "undefined")
}

func TestSampleFloorBehavior(t *testing.T) {
	ds := &Dataset{Header: []string{"id"}, Rows: make([][]string, 7)}

	tests := []struct {
		scale float64
		want  int
	}{
		{1.0, 7},
		{0.5, 3},  // floor(3.5)
		{0.99, 6}, // floor(6.93)
		{0.01, 0},
	}
	for _, tt := range tests {
		got := ds.Sample(tt.scale).TotalRows()
		assert.Equal(t, tt.want, got, "scale %v", tt.scale)
		assert.LessOrEqual(t, got, ds.TotalRows())
	}
}

func TestLoadDatasetEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := LoadDataset(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataAccess)
}

func TestDatasetWriteCSVRoundTrip(t *testing.T) {
	ds := &Dataset{
		Header: []string{"id", "value"},
		Rows:   [][]string{{"1", "a"}, {"2", "b"}},
	}
	path := filepath.Join(t.TempDir(), "sample.csv")
	require.NoError(t, ds.WriteCSV(path))

	back, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, ds.Header, back.Header)
	assert.Equal(t, ds.Rows, back.Rows)
}
