// Package config defines all configuration for the risk engine harness.
// Config is loaded from a YAML file with sensitive/deployment fields
// overridable via RISKENGINE_* environment variables, the same
// viper-based layering the teacher's bot config uses.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"pretrade-risk-engine/internal/aggregation"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure consumed by cmd/riskenginectl.
type Config struct {
	Instruments InstrumentsConfig `mapstructure:"instruments"`
	Metrics     []MetricConfig    `mapstructure:"metrics"`
	Limits      []LimitConfig     `mapstructure:"limits"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Sharding    ShardingConfig    `mapstructure:"sharding"`
}

// InstrumentsConfig points at the instrument reference-data file (spec §6
// external collaborator).
type InstrumentsConfig struct {
	Path string `mapstructure:"path"`
}

// MetricConfig describes one (metric_id, grouping, operator, stage)
// registration — the recognized configuration surface of spec §6.
//
//   - Operator: one of "sum", "signed_sum", "count", "set_cardinality".
//   - Stage: one of "active", "working", "filled".
//   - Grouping: an ordered subset of the closed dimension set
//     (portfolio_id, strategy_id, symbol, underlyer, side, security_type).
//   - Discriminator: only meaningful for set_cardinality; one of the same
//     dimension names.
type MetricConfig struct {
	ID       string   `mapstructure:"id"`
	Operator string   `mapstructure:"operator"`
	Stage    string   `mapstructure:"stage"`
	Grouping []string `mapstructure:"grouping"`

	// Value selects the per-order contribution for "sum"/"signed_sum":
	// one of "notional", "delta_exposure", "signed_delta_exposure",
	// "vega_exposure", "signed_vega_exposure". Ignored for "count"
	// (always 1) and "set_cardinality".
	Value string `mapstructure:"value"`

	// Discriminator is the grouping dimension a set_cardinality metric
	// counts distinct occurrences of.
	Discriminator string `mapstructure:"discriminator"`
}

// LimitConfig binds a numeric cap to a (metric_id, bucket_key) pair.
// BucketKey lists one segment per grouping dimension, in the metric's
// grouping order; Build joins them into a bucket key with
// aggregation.NewGroupKey.
type LimitConfig struct {
	MetricID  string   `mapstructure:"metric_id"`
	BucketKey []string `mapstructure:"bucket_key"`
	Cap       string   `mapstructure:"cap"`
}

// LoggingConfig controls the shared slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig controls the read-only websocket dashboard.
type TelemetryConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ShardingConfig controls how many independent engine instances the
// sharded runner fans order-key space across.
type ShardingConfig struct {
	Shards int `mapstructure:"shards"`
}

// Load reads config from a YAML file with env var overrides. Env prefix
// is RISKENGINE_, with "." replaced by "_" the same way the teacher's
// config replaces POLY_ fields.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("RISKENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and rejects an unrecognized operator,
// stage, or grouping dimension before the engine is built from it.
func (c *Config) Validate() error {
	if c.Instruments.Path == "" {
		return fmt.Errorf("instruments.path is required")
	}
	if c.Sharding.Shards < 0 {
		return fmt.Errorf("sharding.shards must be >= 0 (0 means unsharded)")
	}

	ids := make(map[string]bool, len(c.Metrics))
	for _, m := range c.Metrics {
		if m.ID == "" {
			return fmt.Errorf("metrics: id is required")
		}
		if ids[m.ID] {
			return fmt.Errorf("metrics: duplicate id %q", m.ID)
		}
		ids[m.ID] = true

		switch m.Operator {
		case "sum", "signed_sum":
			switch m.Value {
			case "notional", "delta_exposure", "signed_delta_exposure", "vega_exposure", "signed_vega_exposure":
			default:
				return fmt.Errorf("metrics[%s]: %s requires a recognized value (notional, delta_exposure, signed_delta_exposure, vega_exposure, signed_vega_exposure)", m.ID, m.Operator)
			}
		case "count", "set_cardinality":
		default:
			return fmt.Errorf("metrics[%s]: unrecognized operator %q", m.ID, m.Operator)
		}
		switch m.Stage {
		case "active", "working", "filled":
		default:
			return fmt.Errorf("metrics[%s]: unrecognized stage %q", m.ID, m.Stage)
		}
		for _, dim := range m.Grouping {
			if !validDimension(dim) {
				return fmt.Errorf("metrics[%s]: unrecognized grouping dimension %q", m.ID, dim)
			}
		}
		if m.Operator == "set_cardinality" && !validDimension(m.Discriminator) {
			return fmt.Errorf("metrics[%s]: set_cardinality requires a valid discriminator", m.ID)
		}
	}

	for _, l := range c.Limits {
		if l.MetricID == "" {
			return fmt.Errorf("limits: metric_id is required")
		}
		if !ids[l.MetricID] {
			return fmt.Errorf("limits: metric_id %q is not a registered metric", l.MetricID)
		}
	}
	return nil
}

func validDimension(dim string) bool {
	switch aggregation.Dimension(dim) {
	case aggregation.DimPortfolio, aggregation.DimStrategy, aggregation.DimSymbol,
		aggregation.DimUnderlyer, aggregation.DimSide, aggregation.DimSecurityType:
		return true
	default:
		return false
	}
}
