package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Edge Case Tests - scenarios that could cause silent failures or
// unexpected behavior: zero-value merge semantics, validation boundaries,
// unreadable files, JSON round-tripping.

// =============================================================================
// Config Merge Edge Cases
// =============================================================================

// TestLoad_ZeroValuesNotMerged documents that explicit zero values in a
// project config file don't override defaults - mergeWith only copies
// non-zero fields, so there is no way to explicitly set an int field back
// to zero via YAML.
func TestLoad_ZeroValuesNotMerged(t *testing.T) {
	tmpDir := t.TempDir()
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	configContent := `
version: 1
retrieval:
  top_k: 0
cache:
  result_capacity: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".ragctl.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Retrieval.TopK, "zero should not override default top_k")
	assert.Equal(t, 256, cfg.Cache.ResultCapacity, "zero should not override default result_capacity")
}

// TestLoad_PartialSectionMerge tests that setting one field in a section
// doesn't reset its siblings to zero.
func TestLoad_PartialSectionMerge(t *testing.T) {
	tmpDir := t.TempDir()
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	configContent := `
version: 1
bm25:
  k1: 2.0
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".ragctl.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.BM25.K1)
	assert.Equal(t, 0.75, cfg.BM25.B, "sibling field should keep its default")
}

// =============================================================================
// Validation Boundary Edge Cases
// =============================================================================

func TestLoad_NegativeValues_Validated(t *testing.T) {
	tmpDir := t.TempDir()
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	configContent := `
version: 1
retry:
  max_retries: -1
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".ragctl.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)
	require.Error(t, err)
	require.Nil(t, cfg)
	assert.Contains(t, err.Error(), "max_retries must be non-negative")
}

func TestConfig_Validate_BoundaryValues(t *testing.T) {
	// Exact boundary values (0 and 1 for ratios) must be accepted, not
	// just the interior of the range.
	cfg := NewConfig()
	cfg.BM25.B = 0
	assert.NoError(t, cfg.Validate())
	cfg.BM25.B = 1
	assert.NoError(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Rerank.MMRLambda = 0
	assert.NoError(t, cfg.Validate())
	cfg.Rerank.MMRLambda = 1
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_CaseInsensitiveEnums(t *testing.T) {
	cfg := NewConfig()
	cfg.Store.Distance = "COSINE"
	cfg.Rerank.Strategy = "MMR"
	cfg.Assemble.Ordering = "SANDWICH"
	cfg.Server.LogLevel = "DEBUG"
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// Config File Permission Edge Cases
// =============================================================================

func TestLoad_UnreadableConfigFile_ReturnsError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("test requires non-root user")
	}

	tmpDir := t.TempDir()
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	configPath := filepath.Join(tmpDir, ".ragctl.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1"), 0o000))
	defer os.Chmod(configPath, 0o644)

	cfg, err := Load(tmpDir)
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read")
}

// =============================================================================
// Config JSON Marshaling Edge Cases
// =============================================================================

func TestConfig_JSON_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Retrieval.TopK = 25
	cfg.Rerank.Strategy = "mmr"
	cfg.BM25.K1 = 1.5

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var parsed Config
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, 25, parsed.Retrieval.TopK)
	assert.Equal(t, "mmr", parsed.Rerank.Strategy)
	assert.Equal(t, 1.5, parsed.BM25.K1)
}

func TestConfig_UnmarshalJSON_InvalidJSON_ReturnsError(t *testing.T) {
	invalidJSON := []byte("{invalid json")
	var cfg Config
	err := json.Unmarshal(invalidJSON, &cfg)
	require.Error(t, err)
}

// =============================================================================
// User Config Discovery Edge Cases
// =============================================================================

func TestGetUserConfigPath_FallsBackToHomeDir(t *testing.T) {
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Unsetenv("XDG_CONFIG_HOME")
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "ragctl", "config.yaml"), GetUserConfigPath())
}

func TestLoadUserConfig_MissingFile_ReturnsNilNil(t *testing.T) {
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
