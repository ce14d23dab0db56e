package mediadna

import (
	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/hasher"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/storage"
)

type Config struct {
	Store       storage.Store
	StoreConfig storage.Config
	Logger      *logger.Logger
	Workers     int
	TrashDir    string
	Hashers     []hasher.Hasher
	Hashing     hasher.Config
	KeepLargest bool
	Progress    ProgressFunc
}

type Option func(*Config)

// WithStore uses an already opened store. The service will not close it.
func WithStore(store storage.Store) Option {
	return func(c *Config) {
		c.Store = store
	}
}

func WithStoreConfig(cfg storage.Config) Option {
	return func(c *Config) {
		c.StoreConfig = cfg
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithTrashDir(dir string) Option {
	return func(c *Config) {
		c.TrashDir = dir
	}
}

// WithHashers replaces the default hasher set.
func WithHashers(hs ...hasher.Hasher) Option {
	return func(c *Config) {
		c.Hashers = hs
	}
}

func WithHashingConfig(cfg hasher.Config) Option {
	return func(c *Config) {
		c.Hashing = cfg
	}
}

// WithVideoStrategy picks sample, barcode or off.
func WithVideoStrategy(strategy string) Option {
	return func(c *Config) {
		c.Hashing.VideoStrategy = strategy
	}
}

func WithKeepLargest(keep bool) Option {
	return func(c *Config) {
		c.KeepLargest = keep
	}
}

// WithProgress registers a callback invoked once per file seen by AddPaths.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

func defaultConfig() *Config {
	return &Config{
		StoreConfig: storage.Config{
			Kind:     storage.KindSQLite,
			Location: storage.DefaultSQLiteFile,
		},
		TrashDir: "Trash",
		Hashing:  hasher.DefaultConfig(),
	}
}
