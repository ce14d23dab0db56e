package mediadna

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/MediaDNA/internal/metrics"
	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/cluster"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/dedup"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/hasher"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/pipeline"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/storage"
	"github.com/himanishpuri/MediaDNA/pkg/models"
	"github.com/himanishpuri/MediaDNA/pkg/utils"
)

// mediaService is the default implementation of the Service interface.
type mediaService struct {
	store     storage.Store
	ownsStore bool
	pipe      *pipeline.Pipeline
	dedup     *dedup.Action
	log       *logger.Logger
	config    *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Hashing.Logger == nil {
		cfg.Hashing.Logger = cfg.Logger
	}
	if len(cfg.Hashers) == 0 {
		cfg.Hashers = hasher.Default(cfg.Hashing)
	}

	trash, err := filepath.Abs(cfg.TrashDir)
	if err != nil {
		return nil, fmt.Errorf("resolving trash dir: %w", err)
	}
	cfg.TrashDir = trash

	store := cfg.Store
	owns := false
	if store == nil {
		if cfg.StoreConfig.Logger == nil {
			cfg.StoreConfig.Logger = cfg.Logger
		}
		store, err = storage.Open(context.Background(), cfg.StoreConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		owns = true
	}

	return &mediaService{
		store:     store,
		ownsStore: owns,
		pipe:      pipeline.New(cfg.Hashers, cfg.Workers, cfg.Logger),
		dedup: &dedup.Action{
			Store:       store,
			TrashDir:    cfg.TrashDir,
			KeepLargest: cfg.KeepLargest,
			Logger:      cfg.Logger,
		},
		log:    cfg.Logger,
		config: cfg,
	}, nil
}

func (s *mediaService) Close() error {
	if !s.ownsStore {
		return nil
	}
	return s.store.Close()
}

// AddPaths walks every root, skips files already stored, hashes the rest in
// the worker pool and inserts the records one at a time. A cancelled
// context leaves only fully inserted records behind.
func (s *mediaService) AddPaths(ctx context.Context, roots []string) (AddSummary, error) {
	var summary AddSummary
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	walked := make(chan string, 64)
	var rootErrs []error
	walkDone := make(chan struct{})
	go func() {
		defer close(walked)
		defer close(walkDone)
		for _, root := range roots {
			paths, errc := pipeline.Walk(ctx, root, s.config.TrashDir)
			for p := range paths {
				select {
				case walked <- p:
				case <-ctx.Done():
				}
			}
			if err := <-errc; err != nil && ctx.Err() == nil {
				s.log.Warnf("cannot walk %s: %v", root, err)
				rootErrs = append(rootErrs, fmt.Errorf("%s: %w", root, err))
			}
		}
	}()

	var present, lookupFailed atomic.Int64
	fresh := make(chan string, 64)
	filterDone := make(chan struct{})
	go func() {
		defer close(filterDone)
		defer close(fresh)
		for p := range walked {
			ok, err := s.store.Contains(ctx, p)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.log.Warnf("lookup %s: %v", p, err)
				lookupFailed.Add(1)
				s.progress(p, OutcomeFailed)
				continue
			}
			if ok {
				present.Add(1)
				metrics.RecordFile(string(OutcomeAlreadyPresent))
				s.progress(p, OutcomeAlreadyPresent)
				continue
			}
			select {
			case fresh <- p:
			case <-ctx.Done():
			}
		}
	}()

	for o := range s.pipe.Run(ctx, fresh) {
		outcome := s.insert(ctx, o, &summary)
		summary.record(outcome)
		metrics.RecordFile(string(outcome))
		s.progress(o.Path, outcome)
	}
	<-filterDone
	<-walkDone

	summary.AlreadyPresent += int(present.Load())
	summary.Failed += int(lookupFailed.Load())

	s.refreshGauge(ctx)
	s.log.Infof("add finished in %s: %s", time.Since(start).Round(time.Millisecond), summary)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, errors.Join(rootErrs...)
}

// insert stores one pipeline outcome and classifies it.
func (s *mediaService) insert(ctx context.Context, o pipeline.Outcome, summary *AddSummary) Outcome {
	if o.Err != nil {
		return classifyErr(o.Path, o.Err, s.log)
	}
	summary.Hashed++
	if err := s.store.Insert(ctx, o.Record); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			s.log.Debugf("already stored: %s", o.Path)
			return OutcomeDuplicateKey
		case errors.Is(err, storage.ErrNoTokens):
			return OutcomeUnhashable
		default:
			s.log.Errorf("insert %s: %v", o.Path, err)
			return OutcomeFailed
		}
	}
	return OutcomeInserted
}

func classifyErr(path string, err error, log *logger.Logger) Outcome {
	switch {
	case errors.Is(err, pipeline.ErrUnreadable):
		log.Warnf("skip %s: %v", path, err)
		return OutcomeUnreadable
	case errors.Is(err, pipeline.ErrUnhashable):
		log.Debugf("skip %s: %v", path, err)
		return OutcomeUnhashable
	default:
		log.Warnf("skip %s: %v", path, err)
		return OutcomeFailed
	}
}

func (s *mediaService) progress(path string, o Outcome) {
	if s.config.Progress != nil {
		s.config.Progress(path, o)
	}
}

// AddFile indexes a single file with the same skip rules as AddPaths.
func (s *mediaService) AddFile(ctx context.Context, path string) (Outcome, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return OutcomeFailed, err
	}
	if utils.IsWithin(abs, s.config.TrashDir) {
		return OutcomeSkipped, nil
	}

	ok, err := s.store.Contains(ctx, abs)
	if err != nil {
		return OutcomeFailed, err
	}
	if ok {
		return OutcomeAlreadyPresent, nil
	}

	rec, err := s.pipe.HashFile(ctx, abs)
	var summary AddSummary
	outcome := s.insert(ctx, pipeline.Outcome{Path: abs, Record: rec, Err: err}, &summary)
	metrics.RecordFile(string(outcome))
	if outcome == OutcomeInserted {
		s.log.Infof("indexed %s", abs)
	}
	return outcome, nil
}

// RemovePaths drops every record at or beneath the given roots.
func (s *mediaService) RemovePaths(ctx context.Context, roots []string) (int, error) {
	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		a, err := filepath.Abs(r)
		if err != nil {
			return 0, err
		}
		abs = append(abs, a)
	}

	records, err := s.store.All(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, rec := range records {
		for _, root := range abs {
			if utils.IsWithin(rec.Path, root) {
				if err := s.store.Remove(ctx, rec.Path); err != nil {
					return removed, fmt.Errorf("remove %s: %w", rec.Path, err)
				}
				removed++
				break
			}
		}
	}
	s.refreshGauge(ctx)
	return removed, nil
}

func (s *mediaService) RemoveFile(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return s.store.Remove(ctx, abs)
}

// Prune drops records whose file no longer exists.
func (s *mediaService) Prune(ctx context.Context) (int, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, rec := range records {
		if utils.FileExists(rec.Path) {
			continue
		}
		if err := s.store.Remove(ctx, rec.Path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", rec.Path, err)
		}
		s.log.Debugf("pruned %s", rec.Path)
		removed++
	}
	s.refreshGauge(ctx)
	return removed, nil
}

func (s *mediaService) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	metrics.SetStoreRecords(0)
	return nil
}

func (s *mediaService) Records(ctx context.Context) ([]models.FileRecord, error) {
	return s.store.All(ctx)
}

func (s *mediaService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// FindDuplicates uses the store's exact grouping for a negative threshold
// and perceptual clustering otherwise.
func (s *mediaService) FindDuplicates(ctx context.Context, opts FindOptions) ([]models.DuplicateCluster, error) {
	start := time.Now()
	var (
		clusters []models.DuplicateCluster
		err      error
	)
	if opts.Threshold < 0 {
		clusters, err = s.store.FindDuplicates(ctx, opts.MatchCaptureTime)
	} else {
		var records []models.FileRecord
		records, err = s.store.All(ctx)
		if err == nil {
			clusters = cluster.Similar(records, opts.Threshold, opts.MatchCaptureTime)
		}
	}
	if err != nil {
		return nil, err
	}
	metrics.RecordFind(len(clusters), time.Since(start))
	s.log.Debugf("found %d duplicate clusters (threshold %d)", len(clusters), opts.Threshold)
	return clusters, nil
}

func (s *mediaService) DeleteDuplicates(ctx context.Context, clusters []models.DuplicateCluster) dedup.Report {
	rep := s.dedup.Run(ctx, clusters)
	s.log.Infof("Deleted %d/%d files", rep.Deleted, rep.Attempted)
	s.refreshGauge(ctx)
	return rep
}

// IsIndexed reports whether path has a record in the store.
func (s *mediaService) IsIndexed(ctx context.Context, path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	return s.store.Contains(ctx, abs)
}

// DeleteFile trashes one indexed file. Paths without a record are refused
// so the callback can only act on clustering output.
func (s *mediaService) DeleteFile(ctx context.Context, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	ok, err := s.store.Contains(ctx, abs)
	if err != nil {
		s.log.Warnf("delete %s: %v", abs, err)
		return false
	}
	if !ok {
		s.log.Warnf("delete %s: not in the index", abs)
		return false
	}
	if !s.dedup.Delete(ctx, abs) {
		return false
	}
	s.refreshGauge(ctx)
	return true
}

func (s *mediaService) refreshGauge(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if n, err := s.store.Count(ctx); err == nil {
		metrics.SetStoreRecords(n)
	}
}
