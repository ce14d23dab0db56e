package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnv()
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeHashing()
	if err := c.normalizeDedup(); err != nil {
		return err
	}
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv("MEDIADNA_DB_KIND"); ok && strings.TrimSpace(value) != "" {
		c.Store.Kind = value
	}
	if value, ok := os.LookupEnv("MEDIADNA_DB_LOCATION"); ok && strings.TrimSpace(value) != "" {
		c.Store.Location = value
	}
	if value, ok := os.LookupEnv("LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
}

func (c *Config) normalizeStore() error {
	c.Store.Kind = strings.ToLower(strings.TrimSpace(c.Store.Kind))
	switch c.Store.Kind {
	case "", "relational", "sql":
		c.Store.Kind = KindSQLite
	case "mongo", "document":
		c.Store.Kind = KindMongoDB
	case "embedded", "file":
		c.Store.Kind = KindBadger
	}

	c.Store.Location = strings.TrimSpace(c.Store.Location)
	if c.Store.Location == "" {
		c.Store.Location = DefaultLocation(c.Store.Kind)
	}
	if strings.TrimSpace(c.Store.Database) == "" {
		c.Store.Database = defaultDatabase
	}
	if strings.TrimSpace(c.Store.Collection) == "" {
		c.Store.Collection = defaultCollection
	}

	var err error
	if c.FileBackend() {
		if c.Store.Location, err = expandPath(c.Store.Location); err != nil {
			return fmt.Errorf("store.location: %w", err)
		}
	}

	if strings.TrimSpace(c.Store.LockPath) == "" {
		if c.FileBackend() {
			c.Store.LockPath = c.Store.Location + ".lock"
		} else {
			c.Store.LockPath = filepath.Join(os.TempDir(), "mediadna-"+c.Store.Database+".lock")
		}
	}
	if c.Store.LockPath, err = expandPath(c.Store.LockPath); err != nil {
		return fmt.Errorf("store.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeHashing() {
	if c.Hashing.Workers <= 0 {
		c.Hashing.Workers = runtime.NumCPU()
	}
	c.Hashing.VideoStrategy = strings.ToLower(strings.TrimSpace(c.Hashing.VideoStrategy))
	if c.Hashing.VideoStrategy == "" {
		c.Hashing.VideoStrategy = VideoSample
	}
	if strings.TrimSpace(c.Hashing.FFmpegBinary) == "" {
		c.Hashing.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(c.Hashing.FFprobeBinary) == "" {
		c.Hashing.FFprobeBinary = "ffprobe"
	}
}

func (c *Config) normalizeDedup() error {
	if strings.TrimSpace(c.Dedup.TrashDir) == "" {
		c.Dedup.TrashDir = defaultTrashDir
	}
	var err error
	if c.Dedup.TrashDir, err = expandPath(c.Dedup.TrashDir); err != nil {
		return fmt.Errorf("dedup.trash_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWatch() error {
	for i, root := range c.Watch.Roots {
		expanded, err := expandPath(root)
		if err != nil {
			return fmt.Errorf("watch.roots[%d]: %w", i, err)
		}
		c.Watch.Roots[i] = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// OverrideStore replaces the backend kind and/or location, as the CLI flags
// do, and re-derives the defaults that depend on them.
func (c *Config) OverrideStore(kind, location string) error {
	kind = strings.TrimSpace(kind)
	location = strings.TrimSpace(location)
	if kind == "" && location == "" {
		return nil
	}
	if kind != "" {
		c.Store.Kind = kind
		if location == "" {
			c.Store.Location = ""
		}
	}
	if location != "" {
		c.Store.Location = location
	}
	c.Store.LockPath = ""
	if err := c.normalizeStore(); err != nil {
		return err
	}
	return c.validateStore()
}
