package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.Equal(t, "gzip,h,crc32", cfg.Encodings)
	assert.Equal(t, 236, cfg.MaxPayloadSize)
}

func TestLoadWithoutConfigFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Encodings, cfg.Encodings)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hqfbp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("src_callsign: F4ABC\nmax_payload_size: 64\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "F4ABC", cfg.SrcCallsign)
	assert.Equal(t, 64, cfg.MaxPayloadSize)
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "verbose"
	require.Error(t, cfg.validate())
}

func TestValidateRejectsNegativeMaxPayloadSize(t *testing.T) {
	cfg := Default()
	cfg.MaxPayloadSize = -1
	require.Error(t, cfg.validate())
}
