package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akarX23/iisc-deas-project-1/internal/api"
	"github.com/akarX23/iisc-deas-project-1/internal/config"
	"github.com/akarX23/iisc-deas-project-1/internal/orchestrator"
	"github.com/akarX23/iisc-deas-project-1/internal/results"
	"github.com/akarX23/iisc-deas-project-1/internal/sparkcluster"
	"github.com/akarX23/iisc-deas-project-1/internal/store"
)

func main() {
	cfgPath := flag.String("config", "", "path to benchd.yaml")
	usePTY := flag.Bool("pty", false, "run the benchmark script under a pty for line-buffered output")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The lifecycle script manages Docker itself; a failed ping is only a
	// warning so the console stays usable for browsing results.
	if dc, err := sparkcluster.New(); err == nil {
		if err := dc.Ping(ctx); err != nil {
			logger.Warn("docker ping failed — benchmark runs will not work until Docker is up", "error", err)
		} else {
			logger.Info("docker connection OK")
		}
		dc.Close()
	} else {
		logger.Warn("docker client unavailable", "error", err)
	}

	script := orchestrator.NewScriptRunner(cfg.ScriptPath, logger)
	script.UsePTY = *usePTY
	agg := results.New(logger)
	orch := orchestrator.New(cfg.HandoffPath, cfg.ResultsGlob, script, agg, st, logger)

	srv := api.NewServer(cfg, orch, agg, st, logger)

	httpServer := &http.Server{
		Addr:        cfg.Listen,
		Handler:     srv.Handler(),
		ReadTimeout: 30 * time.Second,
		// A batch run streams for as long as the benchmarks take.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigCh
		logger.Info("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.Listen)
	fmt.Fprintf(os.Stderr, "\n  benchmark console ready at http://%s\n\n", cfg.Listen)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
