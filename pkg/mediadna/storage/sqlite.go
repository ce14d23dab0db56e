package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/himanishpuri/MediaDNA/pkg/mediadna/cluster"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

const (
	DefaultSQLiteFile = "db.sqlite"
	queryBatch        = 500
)

type fileRow struct {
	Path      string `gorm:"primaryKey"`
	Metadata  string
	CreatedAt time.Time
}

func (fileRow) TableName() string { return "files" }

type tokenRow struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Path     string `gorm:"index:idx_token_path"`
	Token    string `gorm:"index:idx_token"`
	Position int
}

func (tokenRow) TableName() string { return "tokens" }

// SQLite is the relational backend.
type SQLite struct {
	DB *gorm.DB
	db *sql.DB
}

func OpenSQLite(ctx context.Context, dbPath string) (*SQLite, error) {
	if dbPath == "" {
		dbPath = DefaultSQLiteFile
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating db dir: %v", ErrUnavailable, err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: opening sqlite db: %v", ErrUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// one writer at a time keeps sqlite away from SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.WithContext(ctx).AutoMigrate(&fileRow{}, &tokenRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &SQLite{DB: db, db: sqlDB}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Contains(ctx context.Context, path string) (bool, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&fileRow{}).Where("path = ?", path).Count(&n).Error; err != nil {
		return false, fmt.Errorf("querying file: %w", err)
	}
	return n > 0, nil
}

func (s *SQLite) Insert(ctx context.Context, rec models.FileRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	tokens := models.UniqueTokens(rec.Tokens)
	rows := make([]tokenRow, len(tokens))
	for i, t := range tokens {
		rows[i] = tokenRow{Path: rec.Path, Token: t.Key(), Position: i}
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&fileRow{Path: rec.Path, Metadata: string(meta)}).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateKey, rec.Path)
			}
			return fmt.Errorf("creating file: %w", err)
		}
		if err := tx.CreateInBatches(rows, queryBatch).Error; err != nil {
			return fmt.Errorf("batch insert tokens: %w", err)
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}

func (s *SQLite) Remove(ctx context.Context, path string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("path = ?", path).Delete(&tokenRow{}).Error; err != nil {
			return err
		}
		return tx.Where("path = ?", path).Delete(&fileRow{}).Error
	})
}

func (s *SQLite) Clear(ctx context.Context) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM tokens").Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM files").Error
	})
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&fileRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting files: %w", err)
	}
	return int(n), nil
}

func (s *SQLite) All(ctx context.Context) ([]models.FileRecord, error) {
	var files []fileRow
	if err := s.DB.WithContext(ctx).Order("path").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	var tokens []tokenRow
	if err := s.DB.WithContext(ctx).Order("path, position").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	return assemble(files, tokens)
}

func (s *SQLite) FindDuplicates(ctx context.Context, matchCaptureTime bool) ([]models.DuplicateCluster, error) {
	db := s.DB.WithContext(ctx)

	var keys []string
	err := db.Model(&tokenRow{}).
		Group("token").
		Having("COUNT(DISTINCT path) > 1").
		Order("token").
		Pluck("token", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("grouping tokens: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	owners := make(map[string][]string, len(keys))
	pathSet := make(map[string]struct{})
	for start := 0; start < len(keys); start += queryBatch {
		end := min(start+queryBatch, len(keys))
		var rows []tokenRow
		if err := db.Where("token IN ?", keys[start:end]).Order("path").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("batch querying tokens: %w", err)
		}
		for _, r := range rows {
			owners[r.Token] = append(owners[r.Token], r.Path)
			pathSet[r.Path] = struct{}{}
		}
	}

	paths := make([]string, 0, len(pathSet))
	for p := range pathSet {
		paths = append(paths, p)
	}
	records, err := s.load(ctx, paths)
	if err != nil {
		return nil, err
	}

	clusters := make([]models.DuplicateCluster, 0, len(keys))
	for _, k := range keys {
		var items []models.FileRecord
		for _, p := range owners[k] {
			if rec, ok := records[p]; ok {
				items = append(items, rec)
			}
		}
		clusters = append(clusters, models.DuplicateCluster{Token: k, Items: items})
	}
	return cluster.Finalize(clusters, matchCaptureTime), nil
}

// load fetches complete records for the given paths.
func (s *SQLite) load(ctx context.Context, paths []string) (map[string]models.FileRecord, error) {
	db := s.DB.WithContext(ctx)
	out := make(map[string]models.FileRecord, len(paths))
	for start := 0; start < len(paths); start += queryBatch {
		batch := paths[start:min(start+queryBatch, len(paths))]
		var files []fileRow
		if err := db.Where("path IN ?", batch).Find(&files).Error; err != nil {
			return nil, fmt.Errorf("batch querying files: %w", err)
		}
		var tokens []tokenRow
		if err := db.Where("path IN ?", batch).Order("path, position").Find(&tokens).Error; err != nil {
			return nil, fmt.Errorf("batch querying tokens: %w", err)
		}
		recs, err := assemble(files, tokens)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			out[r.Path] = r
		}
	}
	return out, nil
}

func assemble(files []fileRow, tokens []tokenRow) ([]models.FileRecord, error) {
	byPath := make(map[string][]string, len(files))
	for _, t := range tokens {
		byPath[t.Path] = append(byPath[t.Path], t.Token)
	}

	out := make([]models.FileRecord, 0, len(files))
	for _, f := range files {
		md := models.Metadata{}
		if f.Metadata != "" {
			if err := json.Unmarshal([]byte(f.Metadata), &md); err != nil {
				return nil, fmt.Errorf("decoding metadata of %s: %w", f.Path, err)
			}
		}
		toks, err := models.ParseTokens(byPath[f.Path])
		if err != nil {
			return nil, err
		}
		out = append(out, models.FileRecord{Path: f.Path, Tokens: toks, Metadata: md})
	}
	return out, nil
}
