package observability

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loic-fejoz/hqfbp/pkg/config"
)

func TestSetupLoggerBuildsConsoleLogger(t *testing.T) {
	logger, err := SetupLogger(config.LogConfig{
		Level:   "debug",
		Format:  "console",
		Outputs: []string{"stdout"},
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NoError(t, logger.Sync())
}

func TestSetupLoggerWritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := SetupLogger(config.LogConfig{
		Level:   "info",
		Format:  "json",
		Outputs: []string{dir + "/hqfbp.log"},
		Rotation: config.RotationConfig{
			Enable:     true,
			MaxSizeMB:  10,
			MaxBackups: 1,
			MaxAgeDays: 7,
		},
	})
	require.NoError(t, err)
	logger.Info("test entry")
	require.NoError(t, logger.Sync())
}
