package config

import (
	"net/url"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ProxySetting is the host/port pair parsed from an http_proxy style URL.
type ProxySetting struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Spark holds the session-level settings handed to the session builder.
type Spark struct {
	MasterHost   string `yaml:"master_host"`
	DatasetPath  string `yaml:"dataset_path"`
	DriverMemory string `yaml:"driver_memory"`
	JobScript    string `yaml:"job_script"`

	HTTPProxy  *ProxySetting `yaml:"-"`
	HTTPSProxy *ProxySetting `yaml:"-"`
}

type Config struct {
	Listen      string `yaml:"listen"`
	ConfigFile  string `yaml:"config_file"`
	HandoffPath string `yaml:"handoff_path"`
	ScriptPath  string `yaml:"script_path"`
	ResultsGlob string `yaml:"results_glob"`
	DBPath      string `yaml:"db_path"`
	Spark       Spark  `yaml:"spark"`
}

// Load reads the optional YAML file at yamlPath, then applies environment
// overrides. A missing file is not an error; the defaults stand. The returned
// Config is built once at process start and passed by reference everywhere —
// nothing else in the tree reads the environment.
func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		Listen:      "0.0.0.0:7860",
		ConfigFile:  "benchmark_configs.json",
		HandoffPath: "/tmp/ui_benchmark_config.json",
		ScriptPath:  "./run_benchmarks.sh",
		ResultsGlob: "./logs/*",
		DBPath:      "./benchd.db",
		Spark: Spark{
			MasterHost:   "local[*]",
			DatasetPath:  "./train.csv",
			DriverMemory: "16g",
			JobScript:    "./data_science/main.py",
		},
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BENCHD_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("BENCHD_CONFIG_FILE"); v != "" {
		cfg.ConfigFile = v
	}
	if v := os.Getenv("BENCHD_HANDOFF_PATH"); v != "" {
		cfg.HandoffPath = v
	}
	if v := os.Getenv("BENCHD_SCRIPT_PATH"); v != "" {
		cfg.ScriptPath = v
	}
	if v := os.Getenv("BENCHD_RESULTS_GLOB"); v != "" {
		cfg.ResultsGlob = v
	}
	if v := os.Getenv("BENCHD_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SPARK_MASTER_HOST"); v != "" {
		cfg.Spark.MasterHost = v
	}
	if v := os.Getenv("DATASET_PATH"); v != "" {
		cfg.Spark.DatasetPath = v
	}
	if v := os.Getenv("DRIVER_MEMORY"); v != "" {
		cfg.Spark.DriverMemory = v
	}
	if v := os.Getenv("BENCHD_JOB_SCRIPT"); v != "" {
		cfg.Spark.JobScript = v
	}
	cfg.Spark.HTTPProxy = ParseProxy(os.Getenv("http_proxy"))
	cfg.Spark.HTTPSProxy = ParseProxy(os.Getenv("https_proxy"))
}

// ParseProxy extracts host and port from a proxy URL. It returns nil when the
// variable is unset or the URL yields no hostname, so callers can treat "no
// proxy" and "unusable proxy" the same way.
func ParseProxy(proxyURL string) *ProxySetting {
	if proxyURL == "" {
		return nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	port := 0
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	return &ProxySetting{Host: u.Hostname(), Port: port}
}
