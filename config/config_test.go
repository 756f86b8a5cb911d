package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecBudgets(t *testing.T) {
	cfg := Default()
	require.Equal(t, 200*time.Millisecond, cfg.Timeouts.CacheProbe)
	require.Equal(t, 700*time.Millisecond, cfg.Timeouts.MulticastWindow)
	require.Equal(t, 500*time.Millisecond, cfg.Timeouts.MetadataHTTP)
	require.Equal(t, 1500*time.Millisecond, cfg.Timeouts.TotalBudget)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverlaysPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := "timeouts:\n  cache_probe_ms: 50\nself_name: TESTBOX\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 50*time.Millisecond, cfg.Timeouts.CacheProbe)
	require.Equal(t, "TESTBOX", cfg.SelfName)
	// Untouched fields keep their defaults.
	require.Equal(t, 700*time.Millisecond, cfg.Timeouts.MulticastWindow)
	require.Equal(t, 139, cfg.SMBPort)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bogus_field: 1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.SMBPort = 70000
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptySelfName(t *testing.T) {
	cfg := Default()
	cfg.SelfName = ""
	require.Error(t, cfg.Validate())
}
