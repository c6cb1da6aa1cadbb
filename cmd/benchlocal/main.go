// benchlocal runs one benchmark configuration against a local Spark master
// without Docker or the console. It prints the report, then keeps the session
// alive (for poking at the Spark UI) until interrupted; the session is
// released before exit on both the interrupt and error paths.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/akarX23/iisc-deas-project-1/internal/benchconfig"
	"github.com/akarX23/iisc-deas-project-1/internal/config"
	"github.com/akarX23/iisc-deas-project-1/internal/runner"
	"github.com/akarX23/iisc-deas-project-1/internal/sparkcluster"
)

func main() {
	cfgPath := flag.String("config", "", "path to benchd.yaml")
	scale := flag.Float64("scale", 1.0, "dataset scale in (0, 1]")
	workers := flag.Int("workers", 1, "number of workers")
	memPerWorker := flag.Int("mem", 2, "memory per worker (GB)")
	coresPerWorker := flag.Int("cores", 2, "cores per worker")
	wait := flag.Bool("wait", true, "keep the session alive until Ctrl+C after the run")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	runCfg := benchconfig.RunConfig{
		Name:           "LOCAL",
		NumWorkers:     *workers,
		MemPerWorker:   *memPerWorker,
		CoresPerWorker: *coresPerWorker,
		DatasetScale:   *scale,
		LogDir:         "./logs/local",
	}
	if err := benchconfig.ValidateConfigs([]benchconfig.RunConfig{runCfg}); err != nil {
		logger.Error("invalid flags", "error", err)
		os.Exit(1)
	}

	// Ctrl+C cancels the run and, below, releases the session before exit.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	builder := &sparkcluster.LocalSessionBuilder{
		Opts: sparkcluster.SubmitOptions{
			Master:       cfg.Spark.MasterHost,
			DriverMemory: cfg.Spark.DriverMemory,
			JobScript:    cfg.Spark.JobScript,
			HTTPProxy:    cfg.Spark.HTTPProxy,
			HTTPSProxy:   cfg.Spark.HTTPSProxy,
		},
		Logger: logger,
	}

	if err := runLocal(ctx, builder, cfg, runCfg, *wait, logger); err != nil {
		logger.Error("benchmark failed", "error", err)
		os.Exit(1)
	}
}

// runLocal acquires the session itself (rather than through runner.Run's
// per-run acquire/release) so it can hold the session open after the report
// for inspection, while still guaranteeing release on interrupt.
func runLocal(ctx context.Context, builder runner.SessionBuilder, cfg *config.Config, runCfg benchconfig.RunConfig, wait bool, logger *slog.Logger) error {
	sess, err := builder.Acquire(ctx, runner.SessionSpec{
		NumWorkers:     runCfg.NumWorkers,
		MemPerWorker:   runCfg.MemPerWorker,
		CoresPerWorker: runCfg.CoresPerWorker,
	})
	if err != nil {
		return fmt.Errorf("acquiring session: %w", err)
	}
	defer func() {
		logger.Info("stopping spark session...")
		if err := sess.Release(context.Background()); err != nil {
			logger.Warn("releasing session", "error", err)
		} else {
			logger.Info("spark session stopped")
		}
	}()

	held := &heldSessionBuilder{sess: sess}
	rep, err := runner.New(held, cfg.Spark.DatasetPath, logger).Run(ctx, runCfg)
	if err != nil {
		return err
	}

	fmt.Println(rep)

	if wait {
		fmt.Println("press Ctrl+C to stop and exit")
		<-ctx.Done()
	}
	return nil
}

// heldSessionBuilder hands the already-acquired session to the runner and
// absorbs the runner's release so the caller keeps control of teardown.
type heldSessionBuilder struct {
	sess runner.Session
}

func (b *heldSessionBuilder) Acquire(ctx context.Context, spec runner.SessionSpec) (runner.Session, error) {
	return noRelease{b.sess}, nil
}

type noRelease struct {
	runner.Session
}

func (noRelease) Release(ctx context.Context) error { return nil }

func (n noRelease) StageTimings() []runner.StageTiming {
	if p, ok := n.Session.(runner.StageMetricsProvider); ok {
		return p.StageTimings()
	}
	return nil
}
