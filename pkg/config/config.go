// Package config provides configuration structures and loading logic for the
// governance service.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/polisai/neurogov/internal/governance"
	"github.com/polisai/neurogov/pkg/domain"
	"github.com/polisai/neurogov/pkg/dreamnet"
	"github.com/polisai/neurogov/pkg/ecoshard"
)

// Config holds the global configuration for the governance service.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Consensus ConsensusConfig `yaml:"consensus"`
	Safety    SafetyConfig    `yaml:"safety"`
	Shard     ShardConfig     `yaml:"shard"`
	Dreamnet  DreamnetConfig  `yaml:"dreamnet"`
	Admin     AdminConfig     `yaml:"admin"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ConsensusConfig seeds the consensus engine.
type ConsensusConfig struct {
	Threshold float64        `yaml:"threshold"`
	Weights   map[string]int `yaml:"weights"`
}

// SafetyConfig seeds the safety kernel bounds, keyed by axis name.
type SafetyConfig struct {
	Axes map[string]governance.Bounds `yaml:"axes"`
}

// ShardConfig points at the telemetry shard ingested at startup.
type ShardConfig struct {
	Path string `yaml:"path"`
}

// DreamnetConfig holds the carbon budget for sleep-gated compute.
type DreamnetConfig struct {
	CarbonLimit float64 `yaml:"carbon_limit"`
}

// AdminConfig holds configuration for the admin HTTP server.
type AdminConfig struct {
	Address string `yaml:"address"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	Environment  string `yaml:"environment"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	weights := make(map[string]int, len(domain.StakeholderRoles()))
	for _, role := range domain.StakeholderRoles() {
		weights[role.String()] = 1
	}
	axes := make(map[string]governance.Bounds, domain.AxisCount)
	for axis, b := range governance.DefaultBounds() {
		axes[axis.String()] = b
	}

	return &Config{
		Logging:   LoggingConfig{Level: "info"},
		Consensus: ConsensusConfig{Threshold: domain.DefaultConsensusThreshold, Weights: weights},
		Safety:    SafetyConfig{Axes: axes},
		Shard:     ShardConfig{Path: ecoshard.DefaultPath},
		Dreamnet:  DreamnetConfig{CarbonLimit: dreamnet.DefaultCarbonLimit},
		Admin:     AdminConfig{Address: ":19190"},
		Telemetry: TelemetryConfig{ServiceName: "neurogov"},
	}
}

// Load reads configuration from a file and applies environment variable overrides.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by admin/operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse expands environment variables in data and decodes it over cfg.
// Map sections merge key by key with the values already in cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := []byte(os.ExpandEnv(string(data)))
	return yaml.Unmarshal(expanded, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("NEUROGOV_ADMIN_ADDR"); val != "" {
		cfg.Admin.Address = val
	}
	if val := os.Getenv("NEUROGOV_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("NEUROGOV_SHARD_PATH"); val != "" {
		cfg.Shard.Path = val
	}
	if val := os.Getenv("NEUROGOV_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("NEUROGOV_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
}

// Validate performs validation of the entire configuration.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}
	if err := c.Consensus.Validate(); err != nil {
		return fmt.Errorf("consensus configuration: %w", err)
	}
	if err := c.Safety.Validate(); err != nil {
		return fmt.Errorf("safety configuration: %w", err)
	}
	if c.Dreamnet.CarbonLimit <= 0 {
		return fmt.Errorf("dreamnet configuration: %w: carbon_limit must be positive", domain.ErrConfigInvalid)
	}
	if strings.TrimSpace(c.Admin.Address) == "" {
		c.Admin.Address = ":19190"
	}
	return nil
}

// Validate performs validation of logging configuration.
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
		return nil
	default:
		return fmt.Errorf("%w: invalid log level %q, supported levels: debug, info, warn, error", domain.ErrConfigInvalid, c.Level)
	}
}

// Validate checks the threshold range and that every weight names a known role.
func (c *ConsensusConfig) Validate() error {
	if math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0,1]", domain.ErrConfigInvalid, c.Threshold)
	}
	var errs []error
	for name, w := range c.Weights {
		if _, err := domain.ParseStakeholderRole(name); err != nil {
			errs = append(errs, err)
			continue
		}
		if w < 0 {
			errs = append(errs, fmt.Errorf("%w: weight for %s is negative", domain.ErrConfigInvalid, name))
		}
	}
	return errors.Join(errs...)
}

// Validate checks that every axis is canonical and its range is ordered.
func (c *SafetyConfig) Validate() error {
	var errs []error
	for name, b := range c.Axes {
		if _, err := domain.ParseAxis(name); err != nil {
			errs = append(errs, err)
			continue
		}
		if math.IsNaN(b.Min) || math.IsNaN(b.Max) || b.Min > b.Max {
			errs = append(errs, fmt.Errorf("%w: axis %s range [%v, %v]", domain.ErrConfigInvalid, name, b.Min, b.Max))
		}
	}
	return errors.Join(errs...)
}

// RoleWeights returns the configured weights keyed by role. Call after Validate.
func (c *ConsensusConfig) RoleWeights() map[domain.StakeholderRole]int {
	out := make(map[domain.StakeholderRole]int, len(c.Weights))
	for name, w := range c.Weights {
		if role, err := domain.ParseStakeholderRole(name); err == nil {
			out[role] = w
		}
	}
	return out
}

// AxisBounds returns the configured bounds keyed by axis. Call after Validate.
func (c *SafetyConfig) AxisBounds() map[domain.Axis]governance.Bounds {
	out := make(map[domain.Axis]governance.Bounds, len(c.Axes))
	for name, b := range c.Axes {
		if axis, err := domain.ParseAxis(name); err == nil {
			out[axis] = b
		}
	}
	return out
}
