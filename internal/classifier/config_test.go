package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classifier.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfig_OverridesThresholdsAndKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
trusted_label: origin
thresholds:
  positive_weight: 3
  high_confidence_override: -6
  entity_min_score: 0
  medium_floor: -2
  min_medium_terms: 3
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "origin", cfg.TrustedLabel)
	assert.Equal(t, 3, cfg.Thresholds.PositiveWeight)
	assert.Equal(t, -6, cfg.Thresholds.HighConfidenceOverride)
	assert.Equal(t, 3, cfg.Thresholds.MinMediumTerms)
	assert.Equal(t, DefaultConfig().HighConfidence, cfg.HighConfidence)
}

func TestLoadConfig_ReplacesLists(t *testing.T) {
	path := writeConfig(t, `
high_confidence: ["sourdough starter"]
negative_signals:
  - name: pizza
    pattern: '\bpizza\b'
    weight: -5
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	c, err := New(cfg)
	require.NoError(t, err)

	assert.True(t, c.Classify("", "Fed my sourdough starter").Include)
	assert.False(t, c.Classify("", "Fed my sourdough starter before pizza night").Include)
	assert.Equal(t, ReasonNoMatch, c.Classify("", "Visited the dispensary").Reason)
}

func TestLoadConfig_RejectsPositiveNegativeWeight(t *testing.T) {
	path := writeConfig(t, `
negative_signals:
  - name: bad
    pattern: 'x'
    weight: 1
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_RejectsBadPattern(t *testing.T) {
	path := writeConfig(t, `
negative_signals:
  - name: bad
    pattern: '(unclosed'
    weight: -1
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "thresholds: [not, a, map")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
