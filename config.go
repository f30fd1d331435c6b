package stride

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/hyperengineering/stride/internal/logging"
	"github.com/hyperengineering/stride/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STRIDE_"

const maxConfigFileSize = 1 << 20

// Config configures the Stride engine.
type Config struct {
	// DBPath is the path to the SQLite database.
	// Defaults to ~/.stride/stride.db.
	DBPath string `koanf:"db_path"`

	// Workers is the number of background analysis workers.
	// Defaults to 4.
	Workers int `koanf:"workers"`

	// QueueSize bounds pending background analyses; excess work is dropped.
	// Defaults to 64.
	QueueSize int `koanf:"queue_size"`

	// SimilarityTimeout bounds a similarity scan. Candidates scored before
	// the deadline are returned as a partial result. Zero disables it.
	SimilarityTimeout time.Duration `koanf:"similarity_timeout"`

	Log    logging.Config `koanf:"log"`
	Tuning Tuning         `koanf:"tuning"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DBPath:            store.DefaultDBPath(),
		Workers:           4,
		QueueSize:         64,
		SimilarityTimeout: 30 * time.Second,
		Log:               logging.DefaultConfig(),
		Tuning:            DefaultTuning(),
	}
}

// ConfigFromEnv reads configuration from environment variables.
//
//	STRIDE_DB_PATH     → DBPath
//	STRIDE_WORKERS     → Workers
//	STRIDE_LOG_LEVEL   → Log.Level
//	STRIDE_LOG_FORMAT  → Log.Format
func ConfigFromEnv() Config {
	workers, _ := strconv.Atoi(os.Getenv("STRIDE_WORKERS"))
	return Config{
		DBPath:  os.Getenv("STRIDE_DB_PATH"),
		Workers: workers,
		Log: logging.Config{
			Level:  os.Getenv("STRIDE_LOG_LEVEL"),
			Format: os.Getenv("STRIDE_LOG_FORMAT"),
		},
	}
}

// WithDefaults fills in default values for unset fields.
// DBPath resolution: explicit DBPath > STRIDE_DB_PATH env > default path.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	c.DBPath = store.ResolveDBPath(c.DBPath)
	if c.Workers == 0 {
		c.Workers = defaults.Workers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaults.QueueSize
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	c.Tuning = c.Tuning.WithDefaults()

	return c
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return &ValidationError{Field: "DBPath", Message: "required: path to SQLite database"}
	}
	if c.Workers < 1 {
		return &ValidationError{Field: "Workers", Message: "must be at least 1"}
	}
	if c.QueueSize < 1 {
		return &ValidationError{Field: "QueueSize", Message: "must be at least 1"}
	}
	if c.SimilarityTimeout < 0 {
		return &ValidationError{Field: "SimilarityTimeout", Message: "must be non-negative"}
	}
	if err := c.Log.Validate(); err != nil {
		return &ValidationError{Field: "Log", Message: err.Error()}
	}
	return c.Tuning.Validate()
}

// LoadConfig loads configuration from an optional YAML file, then applies
// STRIDE_* environment overrides, defaults and validation.
//
// Precedence (highest to lowest):
//  1. Environment variables (STRIDE_WORKERS, STRIDE_TUNING_SIMILARITY_THRESHOLD, ...)
//  2. YAML config file at path (skipped when path is empty)
//  3. DefaultConfig
//
// Environment keys map to config keys by stripping the prefix and
// lowercasing; a leading section name becomes a dotted path:
//
//	STRIDE_DB_PATH                      -> db_path
//	STRIDE_LOG_LEVEL                    -> log.level
//	STRIDE_TUNING_SIMILARITY_THRESHOLD  -> tuning.similarity_threshold
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return Config{}, fmt.Errorf("stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return Config{}, &ValidationError{Field: "config", Message: "file exceeds 1MB"}
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// configSections are the nested keys an environment variable may address.
var configSections = []string{"log", "tuning"}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range configSections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}
