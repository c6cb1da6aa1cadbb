package sparkcluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/akarX23/iisc-deas-project-1/internal/config"
	"github.com/akarX23/iisc-deas-project-1/internal/runner"
)

// SubmitOptions configures how the cleaning job is submitted to a Spark
// master.
type SubmitOptions struct {
	Master       string
	DriverMemory string
	JobScript    string
	HTTPProxy    *config.ProxySetting
	HTTPSProxy   *config.ProxySetting
	// SparkSubmit is the submit binary; empty means "spark-submit" on PATH.
	SparkSubmit string
}

// sparkMeasurePackage is pulled in so the job can dump a stage breakdown.
const sparkMeasurePackage = "ch.cern.sparkmeasure:spark-measure_2.13:0.27"

// LocalSessionBuilder builds sessions against an already-running master (a
// local[*] one in the common case). No containers are provisioned.
type LocalSessionBuilder struct {
	Opts   SubmitOptions
	Logger *slog.Logger
}

func (b *LocalSessionBuilder) Acquire(ctx context.Context, spec runner.SessionSpec) (runner.Session, error) {
	return &submitSession{opts: b.Opts, spec: spec, logger: orDefault(b.Logger)}, nil
}

// DockerSessionBuilder provisions a Docker Spark cluster sized per the
// session spec and submits against it. Release tears the cluster down.
type DockerSessionBuilder struct {
	Client *Client
	Opts   SubmitOptions
	Image  string
	Logger *slog.Logger
}

func (b *DockerSessionBuilder) Acquire(ctx context.Context, spec runner.SessionSpec) (runner.Session, error) {
	cluster, err := b.Client.Provision(ctx, ClusterSpec{
		Name:           "sparkbench-" + uuid.NewString()[:8],
		NumWorkers:     spec.NumWorkers,
		MemPerWorkerGB: spec.MemPerWorker,
		CoresPerWorker: spec.CoresPerWorker,
		Image:          b.Image,
	})
	if err != nil {
		return nil, fmt.Errorf("provisioning cluster: %w", err)
	}

	opts := b.Opts
	opts.Master = cluster.MasterURL
	return &submitSession{opts: opts, spec: spec, cluster: cluster, logger: orDefault(b.Logger)}, nil
}

// submitSession runs the cleaning job through spark-submit. It implements
// runner.Session and, once a job has run, runner.StageMetricsProvider.
type submitSession struct {
	opts    SubmitOptions
	spec    runner.SessionSpec
	cluster *Cluster
	logger  *slog.Logger
	stages  []runner.StageTiming
}

func (s *submitSession) Clean(ctx context.Context, ds *runner.Dataset) error {
	workDir, err := os.MkdirTemp("", "sparkbench-job-")
	if err != nil {
		return fmt.Errorf("creating job workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	samplePath := filepath.Join(workDir, "sample.csv")
	if err := ds.WriteCSV(samplePath); err != nil {
		return err
	}
	metricsPath := filepath.Join(workDir, "stage_metrics.json")

	args := submitArgs(s.opts, s.spec, samplePath, metricsPath)
	bin := s.opts.SparkSubmit
	if bin == "" {
		bin = "spark-submit"
	}

	s.logger.Info("submitting cleaning job", "master", s.opts.Master, "rows", ds.TotalRows())
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("spark-submit: %w (output: %s)", err, tail(string(out), 2048))
	}

	s.stages = loadStageMetrics(metricsPath, s.logger)
	return nil
}

func (s *submitSession) StageTimings() []runner.StageTiming {
	return s.stages
}

func (s *submitSession) Release(ctx context.Context) error {
	if s.cluster == nil {
		return nil
	}
	return s.cluster.Teardown(ctx)
}

// submitArgs builds the spark-submit argument list for one run.
func submitArgs(opts SubmitOptions, spec runner.SessionSpec, inputPath, metricsPath string) []string {
	args := []string{
		"--master", opts.Master,
		"--driver-memory", opts.DriverMemory,
		"--conf", fmt.Sprintf("spark.executor.memory=%dg", spec.MemPerWorker),
		"--conf", fmt.Sprintf("spark.executor.cores=%d", spec.CoresPerWorker),
		"--conf", "spark.jars.packages=" + sparkMeasurePackage,
	}
	if javaOpts := proxyJavaOpts(opts.HTTPProxy, opts.HTTPSProxy); javaOpts != "" {
		args = append(args, "--conf", "spark.driver.extraJavaOptions="+javaOpts)
	}
	args = append(args, opts.JobScript, "--input", inputPath, "--metrics-out", metricsPath)
	return args
}

// proxyJavaOpts renders the JVM proxy flags for the driver, or "" when no
// proxy is configured.
func proxyJavaOpts(httpProxy, httpsProxy *config.ProxySetting) string {
	opts := ""
	if httpProxy != nil {
		opts = fmt.Sprintf("-Dhttp.proxyHost=%s -Dhttp.proxyPort=%d", httpProxy.Host, httpProxy.Port)
	}
	if httpsProxy != nil {
		if opts != "" {
			opts += " "
		}
		opts += fmt.Sprintf("-Dhttps.proxyHost=%s -Dhttps.proxyPort=%d", httpsProxy.Host, httpsProxy.Port)
	}
	return opts
}

// loadStageMetrics reads the sparkmeasure dump the job writes. A missing or
// unreadable file only costs the stage breakdown, never the run.
func loadStageMetrics(path string, logger *slog.Logger) []runner.StageTiming {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("reading stage metrics", "path", path, "error", err)
		}
		return nil
	}

	var raw []struct {
		Stage      string  `json:"stage"`
		DurationMs float64 `json:"duration_ms"`
		Rows       int     `json:"rows"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warn("parsing stage metrics", "path", path, "error", err)
		return nil
	}

	stages := make([]runner.StageTiming, 0, len(raw))
	for _, r := range raw {
		stages = append(stages, runner.StageTiming{
			Stage:    r.Stage,
			Duration: time.Duration(r.DurationMs * float64(time.Millisecond)),
			Rows:     r.Rows,
		})
	}
	return stages
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
