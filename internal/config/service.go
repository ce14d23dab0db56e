package config

import (
	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/hasher"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/storage"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/video"
)

// StoreConfig maps the store section onto the storage backend options.
func (c *Config) StoreConfig(log *logger.Logger) storage.Config {
	return storage.Config{
		Kind:           c.Store.Kind,
		Location:       c.Store.Location,
		Database:       c.Store.Database,
		Collection:     c.Store.Collection,
		ConnectTimeout: c.ConnectTimeout(),
		Logger:         log,
	}
}

// HashingConfig maps the hashing section onto the hasher options.
func (c *Config) HashingConfig(log *logger.Logger) hasher.Config {
	return hasher.Config{
		DigestSize:       c.Hashing.DigestSize,
		VideoStrategy:    c.Hashing.VideoStrategy,
		VideoSamples:     c.Hashing.VideoSamples,
		BarcodeMaxHeight: c.Hashing.BarcodeMaxHeight,
		Tool: video.Tool{
			FFmpeg:  c.Hashing.FFmpegBinary,
			FFprobe: c.Hashing.FFprobeBinary,
			Timeout: c.FFmpegTimeout(),
		},
		Logger: log,
	}
}

// ServiceOptions returns the mediadna options described by the
// configuration. Callers append their own options to override them.
func (c *Config) ServiceOptions(log *logger.Logger) []mediadna.Option {
	return []mediadna.Option{
		mediadna.WithLogger(log),
		mediadna.WithStoreConfig(c.StoreConfig(log)),
		mediadna.WithHashingConfig(c.HashingConfig(log)),
		mediadna.WithWorkers(c.Hashing.Workers),
		mediadna.WithTrashDir(c.Dedup.TrashDir),
		mediadna.WithKeepLargest(c.Dedup.KeepLargest),
	}
}

// LoggerConfig builds the process logger configuration.
func (c *Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = logger.ParseLevel(c.Logging.Level)
	lc.Format = c.Logging.Format
	return lc
}
