package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.Data.Dir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Pretty)
	assert.True(t, cfg.Scan.OnStartup)
	assert.False(t, cfg.Scan.WatchPaths)
	assert.Equal(t, 2*time.Second, cfg.Scan.WatchDebounce)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERIESMGR_DATA_DIR", "/var/lib/seriesmgr")
	t.Setenv("SERIESMGR_LOGGING_LEVEL", "debug")
	t.Setenv("SERIESMGR_SCAN_WATCHPATHS", "true")
	t.Setenv("SERIESMGR_SCAN_WATCHDEBOUNCE", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/seriesmgr", cfg.Data.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Scan.WatchPaths)
	assert.Equal(t, 5*time.Second, cfg.Scan.WatchDebounce)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("SERIESMGR_LOGGING_LEVEL", "verbose")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Data:    DataConfig{Dir: "./data"},
		Logging: LoggingConfig{Level: "info"},
		Scan:    ScanConfig{WatchDebounce: time.Second},
	}
	assert.NoError(t, valid.Validate())

	emptyDir := valid
	emptyDir.Data.Dir = ""
	assert.Error(t, emptyDir.Validate())

	badLevel := valid
	badLevel.Logging.Level = "loud"
	assert.Error(t, badLevel.Validate())

	zeroDebounce := valid
	zeroDebounce.Scan.WatchDebounce = 0
	assert.Error(t, zeroDebounce.Validate())

	hugeDebounce := valid
	hugeDebounce.Scan.WatchDebounce = 2 * time.Minute
	assert.Error(t, hugeDebounce.Validate())
}
