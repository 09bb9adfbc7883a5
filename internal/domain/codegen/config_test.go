package codegen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codemint/internal/core/apperror"
)

func strPtr(s string) *string         { return &s }
func intPtr(n int) *int               { return &n }
func boolPtr(b bool) *bool            { return &b }
func durPtr(d time.Duration) *time.Duration { return &d }

func testStore() *StaticStore {
	return &StaticStore{
		GlobalDefaults: BuiltinDefaults(),
		Patterns: map[string]PatternDefinition{
			"invoice": {
				Template:      "INV-{DATE:Y}-{SEQUENCE:6}",
				Type:          strPtr("inv"),
				SequenceWidth: intPtr(6),
			},
			"tracking": {
				Template:   "TRK-{UUID}",
				Sequential: boolPtr(false),
			},
		},
	}
}

func TestResolveConfig_LayeringPrecedence(t *testing.T) {
	cfg, err := resolveConfig(testStore(), "invoice", Overrides{
		Location: strPtr("west"),
	})
	require.NoError(t, err)

	assert.Equal(t, "INV", cfg.Type, "named pattern overrides default type, upper-cased")
	assert.Equal(t, "WEST", cfg.Location, "per-call override wins, upper-cased")
	assert.Equal(t, 6, cfg.SequenceWidth)
	assert.Equal(t, "INV-{DATE:Y}-{SEQUENCE:6}", cfg.Pattern.Template())
	assert.True(t, cfg.Sequential, "pattern with SEQUENCE defaults to sequential")
}

func TestResolveConfig_ExplicitSequentialFlagWins(t *testing.T) {
	cfg, err := resolveConfig(testStore(), "tracking", Overrides{})
	require.NoError(t, err)
	assert.False(t, cfg.Sequential)

	cfg, err = resolveConfig(testStore(), "invoice", Overrides{Sequential: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, cfg.Sequential, "per-call flag overrides the placeholder heuristic")
}

func TestResolveConfig_RawTemplateSelector(t *testing.T) {
	cfg, err := resolveConfig(testStore(), "{TYPE}/{SEQUENCE}", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "{TYPE}/{SEQUENCE}", cfg.Pattern.Template())
}

func TestResolveConfig_UnknownPatternKey(t *testing.T) {
	_, err := resolveConfig(testStore(), "missing", Overrides{})
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))
}

func TestResolveConfig_InvalidTemplate(t *testing.T) {
	_, err := resolveConfig(testStore(), "{RANDOM}", Overrides{})
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))
}

func TestOverridesFromMap(t *testing.T) {
	ov, err := OverridesFromMap(map[string]any{
		"type":           "ord",
		"sequence_width": float64(5),
		"retry_delay":    "20ms",
		"sequential":     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ord", *ov.Type)
	assert.Equal(t, 5, *ov.SequenceWidth)
	assert.Equal(t, 20*time.Millisecond, *ov.RetryDelay)
	assert.True(t, *ov.Sequential)
}

func TestOverridesFromMap_UnknownKeyRejected(t *testing.T) {
	_, err := OverridesFromMap(map[string]any{"colour": "red"})
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err), "unknown override keys are a hard error")
}

func TestOverridesFromMap_WrongType(t *testing.T) {
	_, err := OverridesFromMap(map[string]any{"sequence_width": "five"})
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))

	_, err = OverridesFromMap(map[string]any{"sequence_width": 4.5})
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))
}
