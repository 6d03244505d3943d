// Package config loads the workspace settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mgmeyers/pdfworkspace/pdfutils"
	"github.com/mgmeyers/pdfworkspace/render"
	"github.com/mgmeyers/pdfworkspace/storage"
	"github.com/mgmeyers/pdfworkspace/upload"
	"github.com/mgmeyers/pdfworkspace/viewport"
)

type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Upload   UploadConfig   `yaml:"upload"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Render   render.Config  `yaml:"render"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type StorageConfig struct {
	Dir    string `yaml:"dir"`
	Bucket string `yaml:"bucket"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type UploadConfig struct {
	OwnerID  string `yaml:"owner_id"`
	MaxBytes int64  `yaml:"max_bytes"`
	Timeout  string `yaml:"timeout"`
}

type ViewerConfig struct {
	DefaultColor string  `yaml:"default_color"`
	ZoomStep     float64 `yaml:"zoom_step"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "pdfworkspace")
	}
	return ".pdfworkspace"
}

func DefaultConfig() *Config {
	dataDir := DefaultDataDir()

	return &Config{
		Storage: StorageConfig{
			Dir:    filepath.Join(dataDir, "objects"),
			Bucket: storage.DefaultBucket,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dataDir, "lessons.db"),
		},
		Upload: UploadConfig{
			MaxBytes: upload.DefaultMaxBytes,
			Timeout:  "2m",
		},
		Viewer: ViewerConfig{
			DefaultColor: pdfutils.DefaultColor,
			ZoomStep:     viewport.DefaultZoomStep,
		},
		Render: render.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file on top of the defaults. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if owner := os.Getenv("PDFWS_OWNER_ID"); owner != "" {
		c.Upload.OwnerID = owner
	}

	// relocates both stores together
	if dir := os.Getenv("PDFWS_DATA_DIR"); dir != "" {
		c.Storage.Dir = filepath.Join(dir, "objects")
		c.Database.Path = filepath.Join(dir, "lessons.db")
	}
}

// UploadTimeout returns the upload deadline, zero when unset or unparsable.
func (c *Config) UploadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Upload.Timeout)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) Validate() error {
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage dir not configured")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path not configured")
	}

	if c.Upload.MaxBytes <= 0 || c.Upload.MaxBytes > upload.DefaultMaxBytes {
		return fmt.Errorf("upload max_bytes must be in (0, %d], got %d", upload.DefaultMaxBytes, c.Upload.MaxBytes)
	}

	if c.Upload.Timeout != "" {
		if _, err := time.ParseDuration(c.Upload.Timeout); err != nil {
			return fmt.Errorf("invalid upload timeout %q: %w", c.Upload.Timeout, err)
		}
	}

	if _, err := pdfutils.NormalizeColor(c.Viewer.DefaultColor); err != nil {
		return fmt.Errorf("invalid default color %q: %w", c.Viewer.DefaultColor, err)
	}

	if c.Viewer.ZoomStep <= 0 || c.Viewer.ZoomStep > viewport.MaxScale-viewport.MinScale {
		return fmt.Errorf("zoom step %v out of range", c.Viewer.ZoomStep)
	}

	return nil
}
