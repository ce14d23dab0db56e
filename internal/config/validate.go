package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateHashing(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStore() error {
	switch c.Store.Kind {
	case KindSQLite, KindMongoDB, KindBadger:
	default:
		return fmt.Errorf("store.kind %q is not one of sqlite, mongodb, badger", c.Store.Kind)
	}
	if c.Store.Location == "" {
		return errors.New("store.location must be set")
	}
	if c.Store.ConnectTimeoutSeconds <= 0 {
		return errors.New("store.connect_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateHashing() error {
	switch c.Hashing.DigestSize {
	case 16, 32, 64:
	default:
		return fmt.Errorf("hashing.digest_size must be 16, 32 or 64 bytes, got %d", c.Hashing.DigestSize)
	}
	switch c.Hashing.VideoStrategy {
	case VideoSample, VideoBarcode, VideoOff:
	default:
		return fmt.Errorf("hashing.video_strategy %q is not one of sample, barcode, off", c.Hashing.VideoStrategy)
	}
	if c.Hashing.VideoSamples <= 0 {
		return errors.New("hashing.video_samples must be positive")
	}
	if c.Hashing.BarcodeMaxHeight <= 0 {
		return errors.New("hashing.barcode_max_height must be positive")
	}
	if c.Hashing.FFmpegTimeoutSeconds <= 0 {
		return errors.New("hashing.ffmpeg_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.QueueSize <= 0 {
		return errors.New("watch.queue_size must be positive")
	}
	if c.Watch.DebounceMS < 0 {
		return errors.New("watch.debounce_ms must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognised", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	return nil
}
