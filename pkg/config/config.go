// Package config implements the four-level configuration hierarchy used by
// cmd/modelsyncd to configure a Dispatcher: built-in defaults, then a
// YAML file, then environment variables (MODELSYNC_ prefix), then
// programmatic CLI-flag overrides applied last by the caller. The shape is
// lifted directly from the teacher's pkg/core/brain.go
// (DefaultConfig/ConfigFromFile/ConfigFromEnv/LoadConfig/Validate), scaled
// down from QubicDB's many nested sub-configs to the handful of knobs the
// engine actually exposes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig groups the Dispatcher knobs spec.md names as external
// interfaces: the clean_memory ticker interval and a critical-error
// logging flag.
type EngineConfig struct {
	// GCIntervalSeconds is spec.md's gc_interval_seconds. Zero disables the
	// automatic background clean_memory pass.
	GCIntervalSeconds int `yaml:"gcIntervalSeconds"`

	// LogCriticalErrors is loaded from YAML and the environment, but
	// nothing reads it: dispatch.Config has no matching field, and no
	// CriticalError is logged whatever its value.
	LogCriticalErrors bool `yaml:"logCriticalErrors"`
}

// LoggingConfig controls the slog handler the demo binaries construct.
type LoggingConfig struct {
	// Level is one of debug|info|warn|error.
	Level string `yaml:"level"`
	// JSON selects a JSON handler instead of the default text handler.
	JSON bool `yaml:"json"`
}

// IntrospectConfig controls the optional MCP introspection server.
type IntrospectConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config is the full configuration surface for cmd/modelsyncd.
// cmd/modelsync-cli does not use it; it takes its GC interval from its own
// flag.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Logging    LoggingConfig    `yaml:"logging"`
	Introspect IntrospectConfig `yaml:"introspect"`
}

// GCInterval converts Engine.GCIntervalSeconds to a time.Duration.
func (c *Config) GCInterval() time.Duration {
	return time.Duration(c.Engine.GCIntervalSeconds) * time.Second
}

// DefaultConfig returns the built-in baseline every other layer overlays.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			GCIntervalSeconds: 300,
			LogCriticalErrors: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
		Introspect: IntrospectConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8989",
		},
	}
}

// FromFile overlays a YAML config file onto DefaultConfig.
func FromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv applies environment variable overrides to cfg, creating a
// default Config first if cfg is nil.
//
// Environment variable mapping (all optional, prefix MODELSYNC_):
//
//	MODELSYNC_GC_INTERVAL_SECONDS → Engine.GCIntervalSeconds
//	MODELSYNC_LOG_CRITICAL_ERRORS → Engine.LogCriticalErrors ("true"/"false")
//	MODELSYNC_LOG_LEVEL           → Logging.Level
//	MODELSYNC_LOG_JSON            → Logging.JSON             ("true"/"false")
//	MODELSYNC_INTROSPECT_ENABLED  → Introspect.Enabled        ("true"/"false")
//	MODELSYNC_INTROSPECT_ADDR     → Introspect.Addr
func FromEnv(cfg *Config) *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	setEnvInt("MODELSYNC_GC_INTERVAL_SECONDS", &cfg.Engine.GCIntervalSeconds)
	setEnvBool("MODELSYNC_LOG_CRITICAL_ERRORS", &cfg.Engine.LogCriticalErrors)
	setEnvStr("MODELSYNC_LOG_LEVEL", &cfg.Logging.Level)
	setEnvBool("MODELSYNC_LOG_JSON", &cfg.Logging.JSON)
	setEnvBool("MODELSYNC_INTROSPECT_ENABLED", &cfg.Introspect.Enabled)
	setEnvStr("MODELSYNC_INTROSPECT_ADDR", &cfg.Introspect.Addr)

	return cfg
}

// Load implements the full hierarchy: defaults, then (if configPath is
// non-empty) a YAML file, then environment variables. The caller applies
// CLI-flag overrides on top of the returned Config (see CLIOverrides).
func Load(configPath string) (*Config, error) {
	var cfg *Config
	var err error

	if configPath != "" {
		cfg, err = FromFile(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = DefaultConfig()
	}

	return FromEnv(cfg), nil
}

// Validate performs structural validation, returning a descriptive error
// for the first invalid field encountered.
func (c *Config) Validate() error {
	if c.Engine.GCIntervalSeconds < 0 {
		return fmt.Errorf("engine.gcIntervalSeconds must not be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug|info|warn|error")
	}
	if c.Introspect.Enabled && c.Introspect.Addr == "" {
		return fmt.Errorf("introspect.addr must not be empty when introspect.enabled is true")
	}
	return nil
}

// CLIOverrides carries optional values set via command-line flags.
// Pointer fields are nil when the flag was not explicitly provided,
// matching the teacher's CLIOverrides convention of distinguishing
// "not set" from "set to the zero value."
type CLIOverrides struct {
	GCIntervalSeconds *int
	LogLevel          *string
	IntrospectEnabled *bool
	IntrospectAddr    *string
}

// ApplyCLIOverrides layers non-nil CLIOverrides fields onto cfg, the final and
// highest-priority layer of the hierarchy.
func ApplyCLIOverrides(cfg *Config, o CLIOverrides) {
	if o.GCIntervalSeconds != nil {
		cfg.Engine.GCIntervalSeconds = *o.GCIntervalSeconds
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.IntrospectEnabled != nil {
		cfg.Introspect.Enabled = *o.IntrospectEnabled
	}
	if o.IntrospectAddr != nil {
		cfg.Introspect.Addr = *o.IntrospectAddr
	}
}

func setEnvStr(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setEnvBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func setEnvInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}
