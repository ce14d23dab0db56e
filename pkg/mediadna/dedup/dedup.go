// Package dedup resolves duplicate clusters by moving all but one member
// of each cluster into a trash directory and dropping their records.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/himanishpuri/MediaDNA/internal/metrics"
	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/storage"
	"github.com/himanishpuri/MediaDNA/pkg/models"
	"github.com/himanishpuri/MediaDNA/pkg/utils"
)

const DefaultTrashDir = "Trash"

// ErrStaleRecord means the file reached the trash but its record could not
// be dropped. Prune clears such records later.
var ErrStaleRecord = errors.New("file moved to trash but its record remains")

// Action moves files to TrashDir and forgets them in Store.
type Action struct {
	Store       storage.Store
	TrashDir    string
	KeepLargest bool
	Logger      *logger.Logger
}

// Failure is one file that could not be trashed.
type Failure struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

type Report struct {
	Attempted int       `json:"attempted"`
	Deleted   int       `json:"deleted"`
	Kept      []string  `json:"kept"`
	Failures  []Failure `json:"failures,omitempty"`
	// StaleRecords lists trashed files whose record removal failed. They
	// count as deleted.
	StaleRecords []string `json:"stale_records,omitempty"`
}

func (a *Action) log() *logger.Logger {
	if a.Logger == nil {
		return logger.GetLogger()
	}
	return a.Logger
}

func (a *Action) trashDir() string {
	if a.TrashDir == "" {
		return DefaultTrashDir
	}
	return a.TrashDir
}

// Delete trashes one file and reports success. Display tooling uses it as
// its delete callback.
func (a *Action) Delete(ctx context.Context, path string) bool {
	if _, err := a.Trash(ctx, path); err != nil {
		a.log().Warnf("delete %s: %v", path, err)
		return errors.Is(err, ErrStaleRecord)
	}
	return true
}

// Trash moves path into the trash directory, then removes its record. A
// name already taken in the trash gets a unique suffix. It returns the new
// location. When only the record removal fails the error wraps
// ErrStaleRecord and the returned location is valid.
func (a *Action) Trash(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := a.trashDir()
	if err := utils.MakeDir(dir); err != nil {
		return "", fmt.Errorf("create trash dir: %w", err)
	}

	dst := utils.UniquePath(dir, filepath.Base(path))
	if err := utils.MoveFile(path, dst); err != nil {
		metrics.RecordMove(false)
		return "", err
	}
	metrics.RecordMove(true)

	if a.Store != nil {
		if err := a.Store.Remove(ctx, path); err != nil {
			return dst, fmt.Errorf("%w: moved to %s: %v", ErrStaleRecord, dst, err)
		}
	}
	a.log().Debugf("trashed %s -> %s", path, dst)
	return dst, nil
}

// Run keeps one member per cluster and trashes the rest. A member kept by
// an earlier cluster is never trashed later, and a member already handled
// in this run is not tried again.
func (a *Action) Run(ctx context.Context, clusters []models.DuplicateCluster) Report {
	var rep Report
	kept := make(map[string]bool)
	handled := make(map[string]bool)

	for _, c := range clusters {
		if ctx.Err() != nil {
			break
		}

		var candidates []models.FileRecord
		for _, it := range c.Items {
			if !handled[it.Path] {
				candidates = append(candidates, it)
			}
		}
		if len(candidates) < 2 {
			continue
		}

		keepers := make(map[string]bool)
		for _, it := range candidates {
			if kept[it.Path] {
				keepers[it.Path] = true
			}
		}
		if len(keepers) == 0 {
			keeper := a.pickKeeper(candidates)
			keepers[keeper] = true
			kept[keeper] = true
			rep.Kept = append(rep.Kept, keeper)
		}

		for _, it := range candidates {
			if keepers[it.Path] {
				continue
			}
			handled[it.Path] = true
			rep.Attempted++
			_, err := a.Trash(ctx, it.Path)
			switch {
			case errors.Is(err, ErrStaleRecord):
				a.log().Warnf("trash %s: %v", it.Path, err)
				rep.StaleRecords = append(rep.StaleRecords, it.Path)
			case err != nil:
				a.log().Warnf("trash %s: %v", it.Path, err)
				rep.Failures = append(rep.Failures, Failure{Path: it.Path, Err: err.Error()})
				continue
			}
			rep.Deleted++
		}
	}

	if err := ctx.Err(); err != nil {
		a.log().Warnf("dedup interrupted after %d moves: %v", rep.Deleted, err)
	}
	return rep
}

// pickKeeper returns the first member, or the largest file when
// KeepLargest is set (ties go to the earlier member).
func (a *Action) pickKeeper(items []models.FileRecord) string {
	best := items[0]
	if !a.KeepLargest {
		return best.Path
	}
	for _, it := range items[1:] {
		if it.Metadata.FileSize() > best.Metadata.FileSize() {
			best = it
		}
	}
	return best.Path
}
