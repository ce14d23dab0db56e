package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Store selects and locates the fingerprint store backend.
type Store struct {
	Kind                  string `toml:"kind"`
	Location              string `toml:"location"`
	Database              string `toml:"database"`
	Collection            string `toml:"collection"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
	LockPath              string `toml:"lock_path"`
}

// Hashing tunes the hash pipeline and the video hashers.
type Hashing struct {
	Workers              int    `toml:"workers"`
	DigestSize           int    `toml:"digest_size"`
	VideoStrategy        string `toml:"video_strategy"`
	VideoSamples         int    `toml:"video_samples"`
	BarcodeMaxHeight     int    `toml:"barcode_max_height"`
	FFmpegBinary         string `toml:"ffmpeg_binary"`
	FFprobeBinary        string `toml:"ffprobe_binary"`
	FFmpegTimeoutSeconds int    `toml:"ffmpeg_timeout_seconds"`
}

// Dedup controls duplicate detection and the trash move.
type Dedup struct {
	TrashDir         string `toml:"trash_dir"`
	KeepLargest      bool   `toml:"keep_largest"`
	MatchCaptureTime bool   `toml:"match_capture_time"`
	Threshold        int    `toml:"threshold"`
}

// Watch configures the filesystem watcher.
type Watch struct {
	Roots       []string `toml:"roots"`
	QueueSize   int      `toml:"queue_size"`
	DebounceMS  int      `toml:"debounce_ms"`
	MetricsAddr string   `toml:"metrics_addr"`
}

// Server configures the JSON API adapter.
type Server struct {
	Bind string `toml:"bind"`
}

// Logging configures the process logger.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the full configuration tree.
type Config struct {
	Store   Store   `toml:"store"`
	Hashing Hashing `toml:"hashing"`
	Dedup   Dedup   `toml:"dedup"`
	Watch   Watch   `toml:"watch"`
	Server  Server  `toml:"server"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediadna/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file
// is not an error; defaults and environment overrides still apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediadna.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// ConnectTimeout returns the store connect timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Store.ConnectTimeoutSeconds) * time.Second
}

// FFmpegTimeout bounds a single ffmpeg or ffprobe invocation.
func (c *Config) FFmpegTimeout() time.Duration {
	return time.Duration(c.Hashing.FFmpegTimeoutSeconds) * time.Second
}

// DebounceInterval is the per-path quiet period of the watcher.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// FileBackend reports whether the store lives in a local file or directory.
func (c *Config) FileBackend() bool {
	return c.Store.Kind != KindMongoDB
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
