// Package engconfig provides configuration management for the
// graphine engine binary. It is adapted from the teacher's viper-based
// pkg/config: a single Config struct loaded from YAML with environment
// override and defaults, generalized from the teacher's
// analysis/database/storage sections to the engine's
// workspace/scheduler/storage/telemetry/log sections.
package engconfig

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for a graphine engine run.
type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	RunLog    RunLogConfig    `mapstructure:"run_log"`
}

// WorkspaceConfig names the CSR bundle tree the engine reads and
// writes, and the app-specific parameters a kernel needs (e.g. BFS's
// root_id).
type WorkspaceConfig struct {
	Path   string `mapstructure:"path"`
	RootID uint64 `mapstructure:"root_id"`
}

// SchedulerConfig widths the three worker pools and the buffer budget,
// mirroring internal/scheduler.Config one-to-one.
type SchedulerConfig struct {
	NumLoadWorkers      int `mapstructure:"num_load_workers"`
	NumComputeWorkers   int `mapstructure:"num_compute_workers"`
	NumDischargeWorkers int `mapstructure:"num_discharge_workers"`
	NumCores            int `mapstructure:"num_cores"`
	BufferSize          int `mapstructure:"buffer_size"`
}

// StorageConfig selects the backing store for the workspace's bundle
// tree: local disk, or a Tencent COS bucket for cross-machine sharing.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // "local" or "cos"
	LocalPath string `mapstructure:"local_path"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
}

// TelemetryConfig configures the OpenTelemetry tracer the engine uses
// to span each fragment's PEval/IncEval->Discharge cycle.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	SamplerRatio   float64 `mapstructure:"sampler_ratio"`
}

// LogConfig configures the engine's Logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
}

// RunLogConfig optionally enables the gorm-backed run ledger.
type RunLogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"` // "sqlite", "postgres", "mysql"
	DSN     string `mapstructure:"dsn"`
}

// Load reads configuration from configPath, falling back to defaults
// for anything the file and environment do not set.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("graphine")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/graphine")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no config file: defaults and environment only
		} else if os.IsNotExist(err) {
			// explicit path didn't exist: defaults and environment only
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("graphine")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadFromReader loads configuration from raw bytes, useful for tests.
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workspace.path", "./workspace")

	v.SetDefault("scheduler.num_load_workers", 2)
	v.SetDefault("scheduler.num_compute_workers", 4)
	v.SetDefault("scheduler.num_discharge_workers", 2)
	v.SetDefault("scheduler.num_cores", 4)
	v.SetDefault("scheduler.buffer_size", 8)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./workspace")
	v.SetDefault("storage.scheme", "https")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "graphine")
	v.SetDefault("telemetry.sampler_ratio", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")

	v.SetDefault("run_log.enabled", false)
	v.SetDefault("run_log.driver", "sqlite")
}

// Validate enforces the scheduler's and workspace's baseline
// invariants before a run is allowed to start.
func (c *Config) Validate() error {
	if c.Workspace.Path == "" {
		return fmt.Errorf("workspace path is required")
	}
	if c.Scheduler.NumLoadWorkers < 1 || c.Scheduler.NumComputeWorkers < 1 || c.Scheduler.NumDischargeWorkers < 1 {
		return fmt.Errorf("worker counts must each be at least 1")
	}
	if c.Scheduler.NumCores < 1 {
		return fmt.Errorf("num_cores must be at least 1")
	}
	if c.Scheduler.BufferSize < 1 {
		return fmt.Errorf("buffer_size must be at least 1")
	}
	if c.Storage.Type != "local" && c.Storage.Type != "cos" {
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	return nil
}
