package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
generator:
  type: ORD
  location: HQ
  sequence_width: 4
  retry_delay: 25ms
  pattern: "{TYPE}-{DATE:ymd}-{SEQUENCE}"
  patterns:
    invoice:
      template: "INV-{DATE:Y}-{SEQUENCE:6}"
      type: INV
      max_attempts: 10
    tracking:
      template: "TRK-{UUID}"
      sequential: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codemint.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsAndPatterns(t *testing.T) {
	store, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	d := store.Defaults()
	assert.Equal(t, "ORD", d.Type)
	assert.Equal(t, "HQ", d.Location)
	assert.Equal(t, 4, d.SequenceWidth)
	assert.Equal(t, 25*time.Millisecond, d.RetryDelay)
	assert.Equal(t, "{TYPE}-{DATE:ymd}-{SEQUENCE}", d.Pattern)
	assert.Equal(t, 5, d.MaxAttempts, "unset values fall back to built-ins")

	inv, ok := store.Pattern("invoice")
	require.True(t, ok)
	assert.Equal(t, "INV-{DATE:Y}-{SEQUENCE:6}", inv.Template)
	require.NotNil(t, inv.Type)
	assert.Equal(t, "INV", *inv.Type)
	require.NotNil(t, inv.MaxAttempts)
	assert.Equal(t, 10, *inv.MaxAttempts)
	assert.Nil(t, inv.Sequential, "unset sequential flag stays nil")

	trk, ok := store.Pattern("tracking")
	require.True(t, ok)
	require.NotNil(t, trk.Sequential)
	assert.False(t, *trk.Sequential)

	_, ok = store.Pattern("missing")
	assert.False(t, ok)
}

func TestLoad_NoFileUsesBuiltins(t *testing.T) {
	store, err := Load("")
	require.NoError(t, err)

	d := store.Defaults()
	assert.Equal(t, "DOC", d.Type)
	assert.Equal(t, "{TYPE}-{DATE}-{SEQUENCE}", d.Pattern)
	assert.Empty(t, store.Keys())
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
