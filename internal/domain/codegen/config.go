// Package codegen provides the code generation service: effective
// configuration resolution, sequence reservation with retry, formatting
// and usage confirmation.
package codegen

import (
	"fmt"
	"strings"
	"time"

	"codemint/internal/core/apperror"
	"codemint/internal/core/pattern"
)

// Defaults are the global generation settings from the configuration
// store. Named pattern definitions and per-call overrides layer on top.
type Defaults struct {
	Type          string
	Location      string
	SequenceWidth int
	DateFormat    string
	TimeFormat    string
	TotalLength   int // 0 disables length normalization
	MaxAttempts   int
	RetryDelay    time.Duration
	Pattern       string
}

// BuiltinDefaults returns the base layer every configuration starts from.
func BuiltinDefaults() Defaults {
	return Defaults{
		Type:          "DOC",
		Location:      "MAIN",
		SequenceWidth: 4,
		DateFormat:    "ymd",
		TimeFormat:    "His",
		TotalLength:   0,
		MaxAttempts:   5,
		RetryDelay:    50 * time.Millisecond,
		Pattern:       "{TYPE}-{DATE}-{SEQUENCE}",
	}
}

// PatternDefinition is a named pattern from the configuration store.
// Nil fields inherit from Defaults.
type PatternDefinition struct {
	Template      string
	Sequential    *bool
	Type          *string
	Location      *string
	SequenceWidth *int
	DateFormat    *string
	TimeFormat    *string
	TotalLength   *int
	MaxAttempts   *int
	RetryDelay    *time.Duration
}

// ConfigStore provides named pattern definitions and global defaults.
// The file-backed implementation lives in infrastructure/config.
type ConfigStore interface {
	// Defaults returns the complete global defaults.
	Defaults() Defaults

	// Pattern looks up a named pattern definition.
	Pattern(key string) (PatternDefinition, bool)
}

// Overrides are per-call settings. Nil fields inherit from the layers
// below.
type Overrides struct {
	Type          *string
	Location      *string
	SequenceWidth *int
	DateFormat    *string
	TimeFormat    *string
	TotalLength   *int
	MaxAttempts   *int
	RetryDelay    *time.Duration
	Sequential    *bool
}

// OverridesFromMap builds Overrides from loosely-typed input (JSON
// bodies). Unknown keys are a hard error rather than silently ignored.
func OverridesFromMap(m map[string]any) (Overrides, error) {
	var ov Overrides

	for key, raw := range m {
		var err error
		switch key {
		case "type":
			ov.Type, err = stringValue(key, raw)
		case "location":
			ov.Location, err = stringValue(key, raw)
		case "sequence_width":
			ov.SequenceWidth, err = intValue(key, raw)
		case "date_format":
			ov.DateFormat, err = stringValue(key, raw)
		case "time_format":
			ov.TimeFormat, err = stringValue(key, raw)
		case "total_length":
			ov.TotalLength, err = intValue(key, raw)
		case "max_attempts":
			ov.MaxAttempts, err = intValue(key, raw)
		case "retry_delay":
			ov.RetryDelay, err = durationValue(key, raw)
		case "sequential":
			ov.Sequential, err = boolValue(key, raw)
		default:
			return Overrides{}, apperror.NewConfiguration("unknown override key").WithDetail("key", key)
		}
		if err != nil {
			return Overrides{}, err
		}
	}

	return ov, nil
}

func stringValue(key string, raw any) (*string, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, apperror.NewConfiguration("override must be a string").WithDetail("key", key)
	}
	return &s, nil
}

func intValue(key string, raw any) (*int, error) {
	switch v := raw.(type) {
	case int:
		return &v, nil
	case float64:
		n := int(v)
		if float64(n) != v {
			return nil, apperror.NewConfiguration("override must be an integer").WithDetail("key", key)
		}
		return &n, nil
	default:
		return nil, apperror.NewConfiguration("override must be an integer").WithDetail("key", key)
	}
}

func durationValue(key string, raw any) (*time.Duration, error) {
	switch v := raw.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, apperror.NewConfiguration("override must be a duration").WithDetail("key", key)
		}
		return &d, nil
	case float64:
		d := time.Duration(v) * time.Millisecond
		return &d, nil
	default:
		return nil, apperror.NewConfiguration("override must be a duration").WithDetail("key", key)
	}
}

func boolValue(key string, raw any) (*bool, error) {
	b, ok := raw.(bool)
	if !ok {
		return nil, apperror.NewConfiguration("override must be a boolean").WithDetail("key", key)
	}
	return &b, nil
}

// GenerationConfig is the immutable per-call snapshot one Generate or
// ConfirmUsage invocation runs against.
type GenerationConfig struct {
	Type          string
	Location      string
	SequenceWidth int
	DateFormat    string
	TimeFormat    string
	TotalLength   int
	MaxAttempts   int
	RetryDelay    time.Duration
	Sequential    bool
	Pattern       *pattern.Pattern
}

// resolveConfig layers built-in defaults, store defaults, the named
// pattern definition (when selector names one) and per-call overrides,
// in that precedence order.
//
// The selector is a named pattern key, a raw template (recognized by a
// '{' character), or empty for the store's default pattern.
func resolveConfig(store ConfigStore, selector string, ov Overrides) (GenerationConfig, error) {
	d := store.Defaults()

	template := d.Pattern
	var def PatternDefinition
	var sequential *bool

	switch {
	case selector == "":
		// default pattern
	case strings.Contains(selector, "{"):
		template = selector
	default:
		named, ok := store.Pattern(selector)
		if !ok {
			return GenerationConfig{}, apperror.NewConfiguration("pattern is not defined").WithDetail("pattern_key", selector)
		}
		def = named
		if def.Template != "" {
			template = def.Template
		}
		sequential = def.Sequential
	}

	cfg := GenerationConfig{
		Type:          strings.ToUpper(coalesce(def.Type, d.Type)),
		Location:      strings.ToUpper(coalesce(def.Location, d.Location)),
		SequenceWidth: coalesce(def.SequenceWidth, d.SequenceWidth),
		DateFormat:    coalesce(def.DateFormat, d.DateFormat),
		TimeFormat:    coalesce(def.TimeFormat, d.TimeFormat),
		TotalLength:   coalesce(def.TotalLength, d.TotalLength),
		MaxAttempts:   coalesce(def.MaxAttempts, d.MaxAttempts),
		RetryDelay:    coalesce(def.RetryDelay, d.RetryDelay),
	}

	applyOverrides(&cfg, ov)
	if ov.Sequential != nil {
		sequential = ov.Sequential
	}

	p, err := pattern.Compile(template)
	if err != nil {
		return GenerationConfig{}, apperror.NewConfiguration("invalid pattern template").
			WithDetail("template", template).
			WithCause(err)
	}
	cfg.Pattern = p

	// Sequencing defaults to whether the pattern carries a SEQUENCE
	// placeholder; an explicit flag wins.
	if sequential != nil {
		cfg.Sequential = *sequential
	} else {
		cfg.Sequential = p.Has(pattern.KindSequence)
	}

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	return cfg, nil
}

func applyOverrides(cfg *GenerationConfig, ov Overrides) {
	if ov.Type != nil {
		cfg.Type = strings.ToUpper(*ov.Type)
	}
	if ov.Location != nil {
		cfg.Location = strings.ToUpper(*ov.Location)
	}
	if ov.SequenceWidth != nil {
		cfg.SequenceWidth = *ov.SequenceWidth
	}
	if ov.DateFormat != nil {
		cfg.DateFormat = *ov.DateFormat
	}
	if ov.TimeFormat != nil {
		cfg.TimeFormat = *ov.TimeFormat
	}
	if ov.TotalLength != nil {
		cfg.TotalLength = *ov.TotalLength
	}
	if ov.MaxAttempts != nil {
		cfg.MaxAttempts = *ov.MaxAttempts
	}
	if ov.RetryDelay != nil {
		cfg.RetryDelay = *ov.RetryDelay
	}
}

func coalesce[T any](override *T, fallback T) T {
	if override != nil {
		return *override
	}
	return fallback
}

// StaticStore is a ConfigStore over in-memory values. Useful for tests
// and embedded use.
type StaticStore struct {
	GlobalDefaults Defaults
	Patterns       map[string]PatternDefinition
}

// Defaults implements ConfigStore.
func (s *StaticStore) Defaults() Defaults { return s.GlobalDefaults }

// Pattern implements ConfigStore.
func (s *StaticStore) Pattern(key string) (PatternDefinition, bool) {
	def, ok := s.Patterns[key]
	return def, ok
}

var _ ConfigStore = (*StaticStore)(nil)

// String formats the config for debug logs.
func (c GenerationConfig) String() string {
	return fmt.Sprintf("type=%s location=%s sequential=%t pattern=%q", c.Type, c.Location, c.Sequential, c.Pattern.Template())
}
