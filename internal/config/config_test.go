package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiosk.yaml")
	yml := `
store:
  backend: memory
recognition:
  sample_every: 5
  matcher: first
overlay:
  tick: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Store.Capacity)
	assert.Equal(t, 5, cfg.Recognition.SampleEvery)
	assert.Equal(t, "first", cfg.Recognition.Matcher)
	assert.Equal(t, 250*time.Millisecond, cfg.Overlay.Tick)
	assert.Equal(t, 5, cfg.Overlay.GifTicks)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "Unknown backend", mutate: func(c *Config) { c.Store.Backend = "sqlite" }},
		{name: "Zero capacity", mutate: func(c *Config) { c.Store.Capacity = 0 }},
		{name: "One buffer", mutate: func(c *Config) { c.Camera.MaxBuffers = 1 }},
		{name: "FFmpeg without input", mutate: func(c *Config) { c.Camera.Driver = "ffmpeg" }},
		{name: "Odd pixel size", mutate: func(c *Config) { c.Camera.BitsPerPixel = 12 }},
		{name: "Zero sampling", mutate: func(c *Config) { c.Recognition.SampleEvery = 0 }},
		{name: "Unknown matcher", mutate: func(c *Config) { c.Recognition.Matcher = "knn" }},
		{name: "Python without command", mutate: func(c *Config) {
			c.Recognition.Detector = "python"
			c.Recognition.WorkerCmd = nil
		}},
		{name: "Zero overlay stage", mutate: func(c *Config) { c.Overlay.FinishTicks = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiosk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [unterminated"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}
