package testutil

import (
	"path/filepath"
	"testing"

	"github.com/akarX23/iisc-deas-project-1/internal/config"
)

// TestConfig returns a Config whose file paths live under a per-test temp
// directory.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	tmp := t.TempDir()
	return &config.Config{
		Listen:      "127.0.0.1:0",
		ConfigFile:  filepath.Join(tmp, "benchmark_configs.json"),
		HandoffPath: filepath.Join(tmp, "handoff.json"),
		ScriptPath:  filepath.Join(tmp, "run_benchmarks.sh"),
		ResultsGlob: filepath.Join(tmp, "logs", "*"),
		DBPath:      filepath.Join(tmp, "benchd.db"),
		Spark: config.Spark{
			MasterHost:   "local[*]",
			DatasetPath:  filepath.Join(tmp, "train.csv"),
			DriverMemory: "4g",
			JobScript:    "./data_science/main.py",
		},
	}
}
