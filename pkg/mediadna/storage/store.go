// Package storage persists file records and answers exact duplicate
// queries. Three interchangeable backends implement Store: a relational
// one (sqlite through gorm), a document store (MongoDB) and an embedded
// key-value file (badger).
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

var (
	ErrDuplicateKey = errors.New("record already exists")
	ErrNoTokens     = errors.New("record has no tokens")
	ErrUnavailable  = errors.New("store unavailable")
	ErrLocked       = errors.New("index is locked by another process")
)

// Backend kinds.
const (
	KindSQLite  = "sqlite"
	KindMongoDB = "mongodb"
	KindBadger  = "badger"
)

type Store interface {
	Contains(ctx context.Context, path string) (bool, error)
	// Insert fails with ErrDuplicateKey if the path is already stored and
	// with ErrNoTokens if the record carries no token.
	Insert(ctx context.Context, rec models.FileRecord) error
	// Remove is a no-op for unknown paths.
	Remove(ctx context.Context, path string) error
	Clear(ctx context.Context) error
	All(ctx context.Context) ([]models.FileRecord, error)
	Count(ctx context.Context) (int, error)
	FindDuplicates(ctx context.Context, matchCaptureTime bool) ([]models.DuplicateCluster, error)
	Close() error
}

// Config selects a backend. Location is a file path for sqlite and badger
// and a connection URI for mongodb.
type Config struct {
	Kind           string
	Location       string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	Logger         *logger.Logger
}

// Open connects to the configured backend. Failing to reach it is fatal
// for the caller and wrapped in ErrUnavailable.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	switch cfg.Kind {
	case KindSQLite, "":
		return OpenSQLite(ctx, cfg.Location)
	case KindMongoDB:
		return OpenMongo(ctx, cfg)
	case KindBadger:
		return OpenBadger(cfg.Location, cfg.Logger)
	}
	return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}

func validateRecord(rec models.FileRecord) error {
	if rec.Path == "" {
		return errors.New("record has no path")
	}
	if len(rec.Tokens) == 0 {
		return fmt.Errorf("%w: %s", ErrNoTokens, rec.Path)
	}
	return nil
}
