// Package config provides configuration loading for batchflow.
//
// Configuration is resolved in precedence order: command-line flags,
// BATCHFLOW_* environment variables, a batchflow.yaml config file, then
// built-in defaults. Viper handles the layering; this package owns the
// defaults and the typed view.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved batchflow configuration.
type Config struct {
	// WorkDir is the root of the loader tree. Job targets are resolved
	// relative to it and child processes run with it as their working
	// directory.
	WorkDir string `mapstructure:"work_dir"`

	// LogsDir receives run report artifacts and rotated log files.
	LogsDir string `mapstructure:"logs_dir"`

	// ManifestPath optionally points at a job-set manifest. Empty means
	// the built-in job set runs unmodified.
	ManifestPath string `mapstructure:"manifest_path"`

	// Interpreter runs script targets (e.g. "python3"). Empty executes
	// targets directly.
	Interpreter string `mapstructure:"interpreter"`

	// MaxParallel caps concurrent jobs inside a priority tier.
	MaxParallel int `mapstructure:"max_parallel"`

	// LaunchRate limits job launches per second. Zero disables limiting.
	LaunchRate float64 `mapstructure:"launch_rate"`

	// DBPath is the SQLite status database location.
	DBPath string `mapstructure:"db_path"`

	// RequiredEnv lists environment variables that must be set before
	// any job runs.
	RequiredEnv []string `mapstructure:"required_env"`

	// RequiredTools lists executables that must be on PATH.
	RequiredTools []string `mapstructure:"required_tools"`

	Server  ServerConfig  `mapstructure:"server"`
	S3      S3Config      `mapstructure:"s3"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// S3Config controls optional report archival to S3.
type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// LoggingConfig controls the structured log output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load resolves the configuration from defaults, an optional config
// file, and BATCHFLOW_* environment variables.
//
// configFile, when non-empty, names an explicit config file and a read
// failure is fatal. When empty, batchflow.yaml is searched in the
// current directory and under $HOME/.config/batchflow, and absence is
// fine.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BATCHFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("batchflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/batchflow")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field invariants flags and files cannot express.
func (c *Config) Validate() error {
	if c.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1, got %d", c.MaxParallel)
	}
	if c.LaunchRate < 0 {
		return fmt.Errorf("launch_rate must be non-negative, got %v", c.LaunchRate)
	}
	if c.WorkDir == "" {
		return fmt.Errorf("work_dir must not be empty")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("work_dir", ".")
	v.SetDefault("logs_dir", "logs")
	v.SetDefault("manifest_path", "")
	v.SetDefault("interpreter", "python3")
	v.SetDefault("max_parallel", 4)
	v.SetDefault("launch_rate", 0.0)
	v.SetDefault("db_path", "batchflow.db")
	v.SetDefault("required_env", []string{"BATCHFLOW_DB_URL"})
	v.SetDefault("required_tools", []string{"python3"})

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", "localhost:8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "batchflow/reports")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
}
