package mediadna

import (
	"context"

	"github.com/himanishpuri/MediaDNA/pkg/mediadna/dedup"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

type Service interface {
	AddPaths(ctx context.Context, roots []string) (AddSummary, error)
	AddFile(ctx context.Context, path string) (Outcome, error)
	RemovePaths(ctx context.Context, roots []string) (int, error)
	RemoveFile(ctx context.Context, path string) error
	Prune(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Records(ctx context.Context) ([]models.FileRecord, error)
	Count(ctx context.Context) (int, error)
	FindDuplicates(ctx context.Context, opts FindOptions) ([]models.DuplicateCluster, error)
	DeleteDuplicates(ctx context.Context, clusters []models.DuplicateCluster) dedup.Report
	// IsIndexed reports whether path has a record.
	IsIndexed(ctx context.Context, path string) (bool, error)
	// DeleteFile moves an indexed file to the trash and drops its record.
	// It returns false for paths that are not indexed.
	DeleteFile(ctx context.Context, path string) bool
	Close() error
}
