// Package pipeline walks directory trees and hashes files with a pool of
// workers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/himanishpuri/MediaDNA/internal/metrics"
	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/classify"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/hasher"
	"github.com/himanishpuri/MediaDNA/pkg/models"
	"github.com/himanishpuri/MediaDNA/pkg/utils"
)

var (
	// ErrUnreadable means the file vanished or could not be read.
	ErrUnreadable = errors.New("file unreadable")
	// ErrUnhashable means no hasher produced a token.
	ErrUnhashable = errors.New("no hasher produced a token")
)

// Outcome is the result of hashing one path.
type Outcome struct {
	Path   string
	Record models.FileRecord
	Err    error
}

type Pipeline struct {
	hashers []hasher.Hasher
	workers int
	log     *logger.Logger
}

// New builds a pipeline. workers <= 0 means one per CPU.
func New(hashers []hasher.Hasher, workers int, log *logger.Logger) *Pipeline {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pipeline{hashers: hashers, workers: workers, log: log}
}

func (p *Pipeline) Workers() int { return p.workers }

// HashFile classifies path once and runs every applicable hasher on its own
// open handle. Tokens and metadata are merged in hasher order; the first
// hasher to set a metadata key wins.
func (p *Pipeline) HashFile(ctx context.Context, path string) (models.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if !info.Mode().IsRegular() {
		return models.FileRecord{}, fmt.Errorf("%w: %s is not a regular file", ErrUnreadable, path)
	}

	ft := classify.Classify(path)
	rec := models.FileRecord{Path: path, Metadata: models.Metadata{}}

	for _, h := range p.hashers {
		if !h.IsApplicable(ft) {
			continue
		}
		res, err := p.runHasher(ctx, h, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return models.FileRecord{}, ctxErr
			}
			if errors.Is(err, hasher.ErrCorrupt) {
				p.log.Debugf("%s hasher skipped %s: %v", h.Name(), path, err)
				continue
			}
			return models.FileRecord{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		rec.Tokens = append(rec.Tokens, res.Tokens...)
		rec.Metadata.Merge(res.Metadata)
	}

	rec.Tokens = models.UniqueTokens(rec.Tokens)
	if len(rec.Tokens) == 0 {
		return models.FileRecord{}, fmt.Errorf("%w: %s (%s)", ErrUnhashable, path, ft.MIME)
	}
	return rec, nil
}

func (p *Pipeline) runHasher(ctx context.Context, h hasher.Hasher, path string) (hasher.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return hasher.Result{}, err
	}
	defer f.Close()

	start := time.Now()
	res, err := h.Hash(ctx, f)
	metrics.RecordHasher(h.Name(), time.Since(start), err)
	return res, err
}

// Run hashes paths with the worker pool. Workers share nothing but the
// channels. The output closes once paths is drained or ctx is done.
func (p *Pipeline) Run(ctx context.Context, paths <-chan string) <-chan Outcome {
	out := make(chan Outcome, p.workers)
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case path, ok := <-paths:
					if !ok {
						return
					}
					rec, err := p.HashFile(ctx, path)
					select {
					case out <- Outcome{Path: path, Record: rec, Err: err}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Walk streams absolute paths of regular files under root. Directories in
// exclude are not descended into. The error channel carries at most one
// error, for a root that cannot be walked.
func Walk(ctx context.Context, root string, exclude ...string) (<-chan string, <-chan error) {
	paths := make(chan string, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(paths)
		defer close(errc)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errc <- err
			return
		}
		var skip []string
		for _, e := range exclude {
			if e == "" {
				continue
			}
			if abs, err := filepath.Abs(e); err == nil {
				skip = append(skip, abs)
			}
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == absRoot {
					return err
				}
				return nil
			}
			if d.IsDir() {
				for _, s := range skip {
					if utils.IsWithin(path, s) {
						return filepath.SkipDir
					}
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			select {
			case paths <- path:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errc <- err
		}
	}()

	return paths, errc
}
