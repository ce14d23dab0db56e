package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/cluster"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

const DefaultBadgerDir = "db.badger"

var filePrefix = []byte("file/")

type badgerRecord struct {
	Tokens   []string        `json:"tokens"`
	Metadata models.Metadata `json:"metadata"`
}

// Badger is the embedded-file backend. Records are JSON values under
// file/<path> keys; duplicate grouping happens in memory.
type Badger struct {
	db *badger.DB
}

func OpenBadger(dir string, log *logger.Logger) (*Badger, error) {
	if dir == "" {
		dir = DefaultBadgerDir
	}
	if log == nil {
		log = logger.GetLogger()
	}
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening badger at %s: %v", ErrUnavailable, dir, err)
	}
	return &Badger{db: db}, nil
}

// badgerLogger demotes badger's chatty info lines to debug.
type badgerLogger struct {
	*logger.Logger
}

func (l badgerLogger) Infof(format string, args ...any) { l.Debugf(format, args...) }

func fileKey(path string) []byte {
	return append(append([]byte{}, filePrefix...), path...)
}

func (b *Badger) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Badger) Contains(ctx context.Context, path string) (bool, error) {
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(fileKey(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (b *Badger) Insert(ctx context.Context, rec models.FileRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	val, err := json.Marshal(badgerRecord{
		Tokens:   models.TokenKeys(models.UniqueTokens(rec.Tokens)),
		Metadata: rec.Metadata,
	})
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	key := fileKey(rec.Path)
	return b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, rec.Path)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, val)
	})
}

func (b *Badger) Remove(ctx context.Context, path string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(fileKey(path))
	})
}

func (b *Badger) Clear(ctx context.Context) error {
	return b.db.DropPrefix(filePrefix)
}

func (b *Badger) Count(ctx context.Context) (int, error) {
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = filePrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (b *Badger) All(ctx context.Context) ([]models.FileRecord, error) {
	var out []models.FileRecord
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = filePrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			path := string(item.Key()[len(filePrefix):])
			var rec badgerRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decoding %s: %w", path, err)
			}
			toks, err := models.ParseTokens(rec.Tokens)
			if err != nil {
				return err
			}
			if rec.Metadata == nil {
				rec.Metadata = models.Metadata{}
			}
			out = append(out, models.FileRecord{Path: path, Tokens: toks, Metadata: rec.Metadata})
		}
		return nil
	})
	return out, err
}

func (b *Badger) FindDuplicates(ctx context.Context, matchCaptureTime bool) ([]models.DuplicateCluster, error) {
	records, err := b.All(ctx)
	if err != nil {
		return nil, err
	}
	return cluster.Exact(records, matchCaptureTime), nil
}
