package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// #region config

// Config holds the controller's configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Runtime struct {
		URL            string        `yaml:"url"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"runtime"`
	Models struct {
		Dir string `yaml:"dir"` // root of versioned model artifacts
	} `yaml:"models"`
	Drift struct {
		WindowSize int     `yaml:"window_size"`
		Threshold  float64 `yaml:"threshold"`
	} `yaml:"drift"`
	Analyzer struct {
		PruneThreshold    float64  `yaml:"prune_threshold"`
		MaxPruneRatio     float64  `yaml:"max_prune_ratio"`
		HighSparsity      float64  `yaml:"high_sparsity_threshold"`
		ProtectedPrefixes []string `yaml:"protected_prefixes"`
	} `yaml:"analyzer"`
	Evolution struct {
		Cooldown       time.Duration `yaml:"cooldown"`
		MaxSubsetSize  int           `yaml:"max_subset_size"`
		LatencyTarget  float64       `yaml:"latency_target_percent"`
		MemoryTarget   float64       `yaml:"memory_target_percent"`
	} `yaml:"evolution"`
}

// #endregion config

// #region load

// Load reads configuration from the given YAML file and applies
// environment overrides. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("open config file: %w", err)
			}
		} else {
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
				return nil, fmt.Errorf("decode config file: %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Default returns the controller defaults. Policy constants (drift weights,
// prune thresholds, cooldown) mirror the shipped tuning and are overridable
// per deployment.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8090"
	cfg.Database.Path = "seslm.db"
	cfg.Runtime.URL = "http://localhost:8501"
	cfg.Runtime.RequestTimeout = 120 * time.Second
	cfg.Models.Dir = "models/optimized"
	cfg.Drift.WindowSize = 20
	cfg.Drift.Threshold = 0.35
	cfg.Analyzer.PruneThreshold = 0.15
	cfg.Analyzer.MaxPruneRatio = 0.40
	cfg.Analyzer.HighSparsity = 0.70
	cfg.Analyzer.ProtectedPrefixes = []string{"embedding", "output", "classifier", "safety", "shared"}
	cfg.Evolution.Cooldown = 600 * time.Second
	cfg.Evolution.MaxSubsetSize = 5
	cfg.Evolution.LatencyTarget = 20.0
	cfg.Evolution.MemoryTarget = 30.0
	return cfg
}

// #endregion load

// #region env

// applyEnv overrides file values from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("SESLM_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SESLM_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("SESLM_RUNTIME_URL"); v != "" {
		c.Runtime.URL = v
	}
	if v := os.Getenv("SESLM_MODELS_DIR"); v != "" {
		c.Models.Dir = v
	}
}

// #endregion env
