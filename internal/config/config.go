package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the pipeline tuning knobs. Values come from defaults,
// then an optional YAML file, then environment variables, in that
// order of precedence.
type Config struct {
	Fetch    FetchConfig    `yaml:"fetch"`
	Classify ClassifyConfig `yaml:"classify"`
	Sync     SyncConfig     `yaml:"sync"`
	Oracle   OracleConfig   `yaml:"oracle"`
}

type FetchConfig struct {
	PageSize    int `yaml:"page_size"`
	MaxPages    int `yaml:"max_pages"`
	PageRetries int `yaml:"page_retries"`

	// Timeout bounds every individual store HTTP request.
	Timeout time.Duration `yaml:"timeout"`
}

type ClassifyConfig struct {
	BatchSize  int `yaml:"batch_size"`
	SampleSize int `yaml:"sample_size"`
}

type SyncConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MinInterval time.Duration `yaml:"min_interval"`
	Concurrency int           `yaml:"concurrency"`

	// StrictCreateCheck controls whether a list-shaped create response
	// is treated as a permission failure. Shopify's current API only
	// returns a list when the token lacks write_products scope, but the
	// heuristic is kept configurable in case that changes.
	StrictCreateCheck *bool `yaml:"strict_create_check"`
}

type OracleConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// Default returns the built-in configuration.
func Default() Config {
	strict := true
	return Config{
		Fetch: FetchConfig{
			PageSize:    250,
			MaxPages:    100,
			PageRetries: 3,
			Timeout:     30 * time.Second,
		},
		Classify: ClassifyConfig{
			BatchSize:  200,
			SampleSize: 50,
		},
		Sync: SyncConfig{
			MaxRetries:  3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    10 * time.Second,
			MinInterval: 500 * time.Millisecond,
			Concurrency: 1,

			StrictCreateCheck: &strict,
		},
		Oracle: OracleConfig{
			Provider:    "openai",
			Temperature: 0.3,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when path is empty or the file does not exist), and
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CLASSIFIER_PROVIDER"); v != "" {
		cfg.Oracle.Provider = v
	}
	if v := os.Getenv("CLASSIFIER_MODEL"); v != "" {
		cfg.Oracle.Model = v
	}
	if v, ok := envInt("FETCH_PAGE_SIZE"); ok {
		cfg.Fetch.PageSize = v
	}
	if v, ok := envInt("FETCH_MAX_PAGES"); ok {
		cfg.Fetch.MaxPages = v
	}
	if v, ok := envInt("CLASSIFY_BATCH_SIZE"); ok {
		cfg.Classify.BatchSize = v
	}
	if v, ok := envDuration("SYNC_MIN_INTERVAL"); ok {
		cfg.Sync.MinInterval = v
	}
	if v, ok := envInt("SYNC_CONCURRENCY"); ok {
		cfg.Sync.Concurrency = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func (c Config) validate() error {
	if c.Fetch.PageSize < 1 || c.Fetch.PageSize > 250 {
		return fmt.Errorf("fetch.page_size must be between 1 and 250, got %d", c.Fetch.PageSize)
	}
	if c.Fetch.MaxPages < 1 {
		return fmt.Errorf("fetch.max_pages must be positive, got %d", c.Fetch.MaxPages)
	}
	if c.Classify.BatchSize < 1 {
		return fmt.Errorf("classify.batch_size must be positive, got %d", c.Classify.BatchSize)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be positive, got %d", c.Sync.Concurrency)
	}
	return nil
}
