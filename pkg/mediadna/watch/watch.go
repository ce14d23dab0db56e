// Package watch keeps the fingerprint store in step with directory trees
// using fsnotify.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/himanishpuri/MediaDNA/internal/metrics"
	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna"
	"github.com/himanishpuri/MediaDNA/pkg/utils"
)

const (
	DefaultDebounce  = 500 * time.Millisecond
	DefaultQueueSize = 256
)

// Indexer is the part of mediadna.Service the watcher drives.
type Indexer interface {
	AddFile(ctx context.Context, path string) (mediadna.Outcome, error)
	RemoveFile(ctx context.Context, path string) error
	RemovePaths(ctx context.Context, roots []string) (int, error)
}

type Options struct {
	Debounce  time.Duration
	QueueSize int
	// Exclude lists directories that are never registered, such as the
	// trash directory.
	Exclude []string
	Logger  *logger.Logger
}

type Watcher struct {
	fs      *fsnotify.Watcher
	idx     Indexer
	opts    Options
	log     *logger.Logger
	queue   chan string
	mu      sync.Mutex
	pending map[string]*time.Timer
	dirs    map[string]struct{}
	closed  bool
	dropped atomic.Int64
}

func New(idx Indexer, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	exclude := make([]string, 0, len(opts.Exclude))
	for _, ex := range opts.Exclude {
		if abs, err := filepath.Abs(ex); err == nil {
			exclude = append(exclude, abs)
		}
	}
	opts.Exclude = exclude

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{
		fs:      fsw,
		idx:     idx,
		opts:    opts,
		log:     opts.Logger,
		queue:   make(chan string, opts.QueueSize),
		pending: make(map[string]*time.Timer),
		dirs:    make(map[string]struct{}),
	}, nil
}

// Add registers root and every directory beneath it.
func (w *Watcher) Add(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", abs)
	}
	_, err = w.addTree(abs, false)
	return err
}

// addTree registers every directory under root. With enqueue set the
// regular files found on the way are scheduled for indexing, which covers
// files written before the watch on a new directory was in place.
func (w *Watcher) addTree(root string, enqueue bool) (int, error) {
	registered := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.log.Debugf("watch walk %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if w.excluded(path) {
				return filepath.SkipDir
			}
			if err := w.fs.Add(path); err != nil {
				if path == root {
					return err
				}
				w.log.Warnf("cannot watch %s: %v", path, err)
				return nil
			}
			w.mu.Lock()
			w.dirs[path] = struct{}{}
			w.mu.Unlock()
			registered++
			return nil
		}
		if enqueue && d.Type().IsRegular() {
			w.schedule(path)
		}
		return nil
	})
	if registered > 0 {
		w.log.Debugf("watching %d directories under %s", registered, root)
	}
	return registered, err
}

func (w *Watcher) excluded(path string) bool {
	for _, ex := range w.opts.Exclude {
		if utils.IsWithin(path, ex) {
			return true
		}
	}
	return false
}

// Run dispatches events until ctx is done. Debounced paths are handled one
// at a time by a single consumer.
func (w *Watcher) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.consume(ctx)
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-w.fs.Events:
			if !ok {
				break loop
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				break loop
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.log.Warnf("watch queue overflowed, some changes were missed")
				continue
			}
			w.log.Errorf("watcher error: %v", err)
		}
	}

	w.mu.Lock()
	w.closed = true
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
	w.mu.Unlock()
	close(w.queue)
	<-done

	return w.fs.Close()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := ev.Name
	if w.excluded(path) {
		return
	}
	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if _, err := w.addTree(path, true); err != nil {
				w.log.Warnf("cannot watch %s: %v", path, err)
			}
			return
		}
		w.schedule(path)
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.schedule(path)
	}
}

// schedule (re)starts the debounce timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.opts.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if _, ok := w.pending[path]; !ok {
		return
	}
	delete(w.pending, path)

	select {
	case w.queue <- path:
	default:
		w.dropped.Add(1)
		w.log.Warnf("watch queue full, dropping %s", path)
		metrics.RecordWatchEvent("dropped")
	}
}

// Dropped returns how many settled paths were discarded because the queue
// was full. Those paths stay unindexed until they change again.
func (w *Watcher) Dropped() int64 { return w.dropped.Load() }

func (w *Watcher) consume(ctx context.Context) {
	for path := range w.queue {
		if ctx.Err() != nil {
			continue
		}
		w.sync(ctx, path)
	}
}

// sync makes the store agree with the file system for one path. A file
// that still exists is re-indexed, anything else is forgotten.
func (w *Watcher) sync(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		w.forget(ctx, path)
		return
	}

	if err := w.idx.RemoveFile(ctx, path); err != nil {
		w.log.Warnf("remove %s: %v", path, err)
	}
	outcome, err := w.idx.AddFile(ctx, path)
	if err != nil {
		w.log.Warnf("index %s: %v", path, err)
		return
	}
	metrics.RecordWatchEvent("index")
	w.log.Debugf("watch %s: %s", path, outcome)
}

func (w *Watcher) forget(ctx context.Context, path string) {
	w.mu.Lock()
	_, wasDir := w.dirs[path]
	if wasDir {
		for d := range w.dirs {
			if utils.IsWithin(d, path) {
				delete(w.dirs, d)
			}
		}
	}
	w.mu.Unlock()

	metrics.RecordWatchEvent("remove")
	if wasDir {
		n, err := w.idx.RemovePaths(ctx, []string{path})
		if err != nil {
			w.log.Warnf("remove %s: %v", path, err)
			return
		}
		w.log.Infof("directory %s gone, dropped %d records", path, n)
		return
	}
	if err := w.idx.RemoveFile(ctx, path); err != nil {
		w.log.Warnf("remove %s: %v", path, err)
	}
}

// Directories returns the number of registered directories.
func (w *Watcher) Directories() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}
