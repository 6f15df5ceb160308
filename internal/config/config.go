// Package config loads the kiosk configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete kiosk configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Camera      CameraConfig      `yaml:"camera"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Overlay     OverlayConfig     `yaml:"overlay"`
	Deferred    DeferredConfig    `yaml:"deferred"`
	UI          UIConfig          `yaml:"ui"`
	Log         LogConfig         `yaml:"log"`
}

// StoreConfig selects the face blob backend.
type StoreConfig struct {
	Backend  string `yaml:"backend"`  // badger, postgres, memory
	Path     string `yaml:"path"`     // badger directory
	DSN      string `yaml:"dsn"`      // postgres connection string
	Capacity int    `yaml:"capacity"` // face slots
}

// CameraConfig sizes the capture session.
type CameraConfig struct {
	Driver        string        `yaml:"driver"` // synthetic, ffmpeg
	Input         string        `yaml:"input"`  // video file for the ffmpeg driver
	FPS           float64       `yaml:"fps"`
	MaxBuffers    int           `yaml:"max_buffers"`
	BitsPerPixel  int           `yaml:"bits_per_pixel"`
	Width         int           `yaml:"width"`  // used when the driver reports no size
	Height        int           `yaml:"height"` // used when the driver reports no size
	Align         int           `yaml:"align"`
	HeapBudget    int           `yaml:"heap_budget"` // bytes, 0 = unlimited
	StartTimeout  time.Duration `yaml:"start_timeout"`
}

// RecognitionConfig tunes the frame sampler and the matcher.
type RecognitionConfig struct {
	SampleEvery        int           `yaml:"sample_every"`
	Matcher            string        `yaml:"matcher"` // cosine, first
	MatchThreshold     float64       `yaml:"match_threshold"`
	HandoffTimeout     time.Duration `yaml:"handoff_timeout"`
	DisplayLockTimeout time.Duration `yaml:"display_lock_timeout"`
	Detector           string        `yaml:"detector"`   // synthetic, python
	WorkerCmd          []string      `yaml:"worker_cmd"` // python detector command line
}

// OverlayConfig times the making overlay.
type OverlayConfig struct {
	Tick        time.Duration `yaml:"tick"`
	GifTicks    int           `yaml:"gif_ticks"`
	FinishTicks int           `yaml:"finish_ticks"`
}

// DeferredConfig holds the delay of each deferred action.
type DeferredConfig struct {
	RecognizedDelay time.Duration `yaml:"recognized_delay"`
	DeleteDelay     time.Duration `yaml:"delete_delay"`
	BackDelay       time.Duration `yaml:"back_delay"`
}

// UIConfig sets the UI loop period.
type UIConfig struct {
	Tick time.Duration `yaml:"tick"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:  "badger",
			Path:     "data/faces",
			Capacity: 3,
		},
		Camera: CameraConfig{
			Driver:       "synthetic",
			FPS:          30,
			MaxBuffers:   3,
			BitsPerPixel: 16,
			Width:        1280,
			Height:       960,
			Align:        64,
			StartTimeout: time.Second,
		},
		Recognition: RecognitionConfig{
			SampleEvery:        10,
			Matcher:            "cosine",
			MatchThreshold:     0.4,
			HandoffTimeout:     250 * time.Millisecond,
			DisplayLockTimeout: 100 * time.Millisecond,
			Detector:           "synthetic",
			WorkerCmd:          []string{"python3", "-u", "python/worker.py"},
		},
		Overlay: OverlayConfig{
			Tick:        time.Second,
			GifTicks:    5,
			FinishTicks: 2,
		},
		Deferred: DeferredConfig{
			RecognizedDelay: 100 * time.Millisecond,
			DeleteDelay:     50 * time.Millisecond,
			BackDelay:       50 * time.Millisecond,
		},
		UI:  UIConfig{Tick: 5 * time.Millisecond},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "badger", "postgres", "memory":
	default:
		return fmt.Errorf("store.backend %q must be badger, postgres or memory", c.Store.Backend)
	}
	if c.Store.Backend == "badger" && c.Store.Path == "" {
		return errors.New("store.path is required for the badger backend")
	}
	if c.Store.Capacity < 1 {
		return fmt.Errorf("store.capacity must be at least 1, got %d", c.Store.Capacity)
	}

	switch c.Camera.Driver {
	case "synthetic":
	case "ffmpeg":
		if c.Camera.Input == "" {
			return errors.New("camera.input is required for the ffmpeg driver")
		}
	default:
		return fmt.Errorf("camera.driver %q must be synthetic or ffmpeg", c.Camera.Driver)
	}
	if c.Camera.MaxBuffers < 2 {
		return fmt.Errorf("camera.max_buffers must be at least 2, got %d", c.Camera.MaxBuffers)
	}
	if c.Camera.BitsPerPixel <= 0 || c.Camera.BitsPerPixel%8 != 0 {
		return fmt.Errorf("camera.bits_per_pixel must be a positive multiple of 8, got %d", c.Camera.BitsPerPixel)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera size %dx%d is invalid", c.Camera.Width, c.Camera.Height)
	}

	if c.Recognition.SampleEvery < 1 {
		return fmt.Errorf("recognition.sample_every must be at least 1, got %d", c.Recognition.SampleEvery)
	}
	switch c.Recognition.Matcher {
	case "cosine", "first":
	default:
		return fmt.Errorf("recognition.matcher %q must be cosine or first", c.Recognition.Matcher)
	}
	switch c.Recognition.Detector {
	case "synthetic":
	case "python":
		if len(c.Recognition.WorkerCmd) == 0 {
			return errors.New("recognition.worker_cmd is required for the python detector")
		}
	default:
		return fmt.Errorf("recognition.detector %q must be synthetic or python", c.Recognition.Detector)
	}

	if c.Overlay.Tick <= 0 || c.Overlay.GifTicks < 1 || c.Overlay.FinishTicks < 1 {
		return errors.New("overlay tick and stage lengths must be positive")
	}
	if c.UI.Tick <= 0 {
		return errors.New("ui.tick must be positive")
	}
	return nil
}
