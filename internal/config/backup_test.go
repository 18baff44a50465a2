package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempXDG(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Cleanup(func() { os.Setenv("XDG_CONFIG_HOME", origXDG) })
	return tmpDir
}

func TestBackupUserConfig(t *testing.T) {
	tmpDir := withTempXDG(t)
	configDir := filepath.Join(tmpDir, "ragctl")
	configPath := filepath.Join(configDir, "config.yaml")

	t.Run("no config exists", func(t *testing.T) {
		backupPath, err := BackupUserConfig()
		require.NoError(t, err)
		assert.Empty(t, backupPath)
	})

	t.Run("backup existing config", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(configDir, 0755))
		testContent := "version: 1\nrerank:\n  strategy: mmr\n"
		require.NoError(t, os.WriteFile(configPath, []byte(testContent), 0644))

		backupPath, err := BackupUserConfig()
		require.NoError(t, err)
		require.NotEmpty(t, backupPath)

		backupContent, err := os.ReadFile(backupPath)
		require.NoError(t, err)
		assert.Equal(t, testContent, string(backupContent))
		assert.True(t, filepath.IsAbs(backupPath))
	})
}

func TestListUserConfigBackups(t *testing.T) {
	tmpDir := withTempXDG(t)
	configDir := filepath.Join(tmpDir, "ragctl")
	configPath := filepath.Join(configDir, "config.yaml")
	require.NoError(t, os.MkdirAll(configDir, 0755))

	t.Run("no backups exist", func(t *testing.T) {
		backups, err := ListUserConfigBackups()
		require.NoError(t, err)
		assert.Empty(t, backups)
	})

	t.Run("list multiple backups", func(t *testing.T) {
		timestamps := []string{"20260101-100000", "20260101-110000", "20260101-120000"}
		for _, ts := range timestamps {
			backupName := filepath.Join(configDir, "config.yaml.bak."+ts)
			require.NoError(t, os.WriteFile(backupName, []byte("test"), 0644))
			time.Sleep(10 * time.Millisecond)
		}

		backups, err := ListUserConfigBackups()
		require.NoError(t, err)
		assert.Len(t, backups, 3)

		for i := 1; i < len(backups); i++ {
			info1, err1 := os.Stat(backups[i-1])
			info2, err2 := os.Stat(backups[i])
			require.NoError(t, err1)
			require.NoError(t, err2)
			assert.False(t, info1.ModTime().Before(info2.ModTime()))
		}
	})

	t.Run("cleanup old backups", func(t *testing.T) {
		require.NoError(t, os.WriteFile(configPath, []byte("test config"), 0644))

		for i := 0; i < 4; i++ {
			_, err := BackupUserConfig()
			require.NoError(t, err)
			time.Sleep(10 * time.Millisecond)
		}

		backups, err := ListUserConfigBackups()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(backups), MaxBackups)
	})
}

func TestRestoreUserConfig(t *testing.T) {
	tmpDir := withTempXDG(t)
	configDir := filepath.Join(tmpDir, "ragctl")
	configPath := filepath.Join(configDir, "config.yaml")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1\n"), 0644))

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)

	require.NoError(t, os.WriteFile(configPath, []byte("version: 2\n"), 0644))
	require.NoError(t, RestoreUserConfig(backupPath))

	restored, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(restored))
}

func TestMergeNewDefaults(t *testing.T) {
	t.Run("adds missing fields", func(t *testing.T) {
		cfg := &Config{Version: 1}

		added := cfg.MergeNewDefaults()

		assert.Equal(t, 60, cfg.Retrieval.RRFConstant)
		assert.Equal(t, 256, cfg.Cache.ResultCapacity)
		assert.Equal(t, 2.0, cfg.Retry.BackoffMultiplier)
		assert.Equal(t, 1, cfg.Circuit.HalfOpenRequests)
		assert.Equal(t, 10, cfg.Agent.MaxIterations)
		assert.Contains(t, added, "retrieval.rrf_constant")
		assert.Contains(t, added, "cache.result_capacity")
		assert.Contains(t, added, "agent.max_iterations")
	})

	t.Run("preserves existing values", func(t *testing.T) {
		cfg := &Config{
			Version:   1,
			Retrieval: RetrievalConfig{RRFConstant: 80},
			Cache:     CacheConfig{ResultCapacity: 512},
			Agent:     AgentConfig{MaxIterations: 5},
		}

		added := cfg.MergeNewDefaults()

		assert.Equal(t, 80, cfg.Retrieval.RRFConstant)
		assert.Equal(t, 512, cfg.Cache.ResultCapacity)
		assert.Equal(t, 5, cfg.Agent.MaxIterations)
		assert.NotContains(t, added, "retrieval.rrf_constant")
		assert.NotContains(t, added, "cache.result_capacity")
		assert.NotContains(t, added, "agent.max_iterations")
	})

	t.Run("returns empty for complete config", func(t *testing.T) {
		cfg := NewConfig()
		added := cfg.MergeNewDefaults()
		assert.Empty(t, added)
	})
}

func TestWriteYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := &Config{
		Version: 1,
		Rerank:  RerankConfig{Strategy: "mmr"},
	}

	require.NoError(t, cfg.WriteYAML(configPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Contains(t, string(data), "strategy: mmr")
}
