// Package config provides the file-backed configuration store for code
// generation: global defaults plus named pattern definitions, loaded
// with viper so values can come from YAML, environment, or both.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"codemint/internal/domain/codegen"
)

// fileDefaults mirrors the generator section of the config file.
type fileDefaults struct {
	Type          string        `mapstructure:"type"`
	Location      string        `mapstructure:"location"`
	SequenceWidth int           `mapstructure:"sequence_width"`
	DateFormat    string        `mapstructure:"date_format"`
	TimeFormat    string        `mapstructure:"time_format"`
	TotalLength   int           `mapstructure:"total_length"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Pattern       string        `mapstructure:"pattern"`
}

// filePattern mirrors one named pattern definition. Pointer fields
// distinguish "absent" from zero so unset values inherit the defaults.
type filePattern struct {
	Template      string         `mapstructure:"template"`
	Sequential    *bool          `mapstructure:"sequential"`
	Type          *string        `mapstructure:"type"`
	Location      *string        `mapstructure:"location"`
	SequenceWidth *int           `mapstructure:"sequence_width"`
	DateFormat    *string        `mapstructure:"date_format"`
	TimeFormat    *string        `mapstructure:"time_format"`
	TotalLength   *int           `mapstructure:"total_length"`
	MaxAttempts   *int           `mapstructure:"max_attempts"`
	RetryDelay    *time.Duration `mapstructure:"retry_delay"`
}

// Store is a codegen.ConfigStore backed by a loaded config file.
// Loaded once at startup; lookups afterwards are read-only.
type Store struct {
	defaults codegen.Defaults
	patterns map[string]codegen.PatternDefinition
}

// Ensure compile-time interface compliance.
var _ codegen.ConfigStore = (*Store)(nil)

// Load reads the generator configuration. An empty path loads built-in
// defaults plus CODEMINT_* environment overrides only.
func Load(path string) (*Store, error) {
	v := viper.New()
	v.SetEnvPrefix("CODEMINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	builtin := codegen.BuiltinDefaults()
	v.SetDefault("generator.type", builtin.Type)
	v.SetDefault("generator.location", builtin.Location)
	v.SetDefault("generator.sequence_width", builtin.SequenceWidth)
	v.SetDefault("generator.date_format", builtin.DateFormat)
	v.SetDefault("generator.time_format", builtin.TimeFormat)
	v.SetDefault("generator.total_length", builtin.TotalLength)
	v.SetDefault("generator.max_attempts", builtin.MaxAttempts)
	v.SetDefault("generator.retry_delay", builtin.RetryDelay)
	v.SetDefault("generator.pattern", builtin.Pattern)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var d fileDefaults
	if err := v.UnmarshalKey("generator", &d); err != nil {
		return nil, fmt.Errorf("unmarshal generator config: %w", err)
	}

	raw := map[string]filePattern{}
	if err := v.UnmarshalKey("generator.patterns", &raw); err != nil {
		return nil, fmt.Errorf("unmarshal pattern definitions: %w", err)
	}

	patterns := make(map[string]codegen.PatternDefinition, len(raw))
	for key, p := range raw {
		patterns[key] = codegen.PatternDefinition{
			Template:      p.Template,
			Sequential:    p.Sequential,
			Type:          p.Type,
			Location:      p.Location,
			SequenceWidth: p.SequenceWidth,
			DateFormat:    p.DateFormat,
			TimeFormat:    p.TimeFormat,
			TotalLength:   p.TotalLength,
			MaxAttempts:   p.MaxAttempts,
			RetryDelay:    p.RetryDelay,
		}
	}

	return &Store{
		defaults: codegen.Defaults{
			Type:          d.Type,
			Location:      d.Location,
			SequenceWidth: d.SequenceWidth,
			DateFormat:    d.DateFormat,
			TimeFormat:    d.TimeFormat,
			TotalLength:   d.TotalLength,
			MaxAttempts:   d.MaxAttempts,
			RetryDelay:    d.RetryDelay,
			Pattern:       d.Pattern,
		},
		patterns: patterns,
	}, nil
}

// Defaults implements codegen.ConfigStore.
func (s *Store) Defaults() codegen.Defaults { return s.defaults }

// Pattern implements codegen.ConfigStore.
func (s *Store) Pattern(key string) (codegen.PatternDefinition, bool) {
	def, ok := s.patterns[key]
	return def, ok
}

// Keys returns the defined pattern keys, for diagnostics.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.patterns))
	for k := range s.patterns {
		keys = append(keys, k)
	}
	return keys
}
