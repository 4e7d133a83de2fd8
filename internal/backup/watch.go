package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for events to settle.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc is invoked once per settled burst of events with the
// source-relative paths that changed.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher reruns a callback when any configured item under the source
// directory changes. fsnotify is not recursive, so every directory inside a
// directory item is added individually and new ones are added as they appear.
type Watcher struct {
	mu        sync.Mutex
	fsw       *fsnotify.Watcher
	opts      Options
	items     map[string]bool
	onChange  ChangeFunc
	logger    *zap.Logger
	debounce  time.Duration
	pending   map[string]struct{}
	lastEvent time.Time
	running   bool
	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewWatcher creates a watcher for opts.SourceDir. It does not start watching
// until Start is called.
func NewWatcher(opts Options, debounce time.Duration, logger *zap.Logger, onChange ChangeFunc) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	info, err := os.Stat(opts.SourceDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, opts.SourceDir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotDir, opts.SourceDir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	items := make(map[string]bool, len(opts.Items))
	for _, item := range opts.Items {
		items[filepath.ToSlash(filepath.Clean(item))] = true
	}

	return &Watcher{
		fsw:      fsw,
		opts:     opts,
		items:    items,
		onChange: onChange,
		logger:   logger,
		debounce: debounce,
		pending:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start registers the watches and begins the event loop in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.fsw.Add(w.opts.SourceDir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", w.opts.SourceDir, err)
	}
	for item := range w.items {
		path := filepath.Join(w.opts.SourceDir, filepath.FromSlash(item))
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			w.addTree(path)
		}
	}

	go w.run(ctx)
	return nil
}

// Stop ends the event loop, waits for it to exit and releases the fsnotify
// watcher. It is safe to call without Start and more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}

	w.closeOnce.Do(func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close watcher", zap.Error(err))
		}
	})
}

// WatchedDirs returns the directories currently registered with fsnotify.
func (w *Watcher) WatchedDirs() []string {
	dirs := w.fsw.WatchList()
	sort.Strings(dirs)
	return dirs
}

// addTree watches root and every non-symlink directory below it.
func (w *Watcher) addTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := max(w.debounce/5, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// relevant returns the source-relative path of an event if it falls inside
// a configured item.
func (w *Watcher) relevant(name string) (string, bool) {
	rel, err := filepath.Rel(w.opts.SourceDir, name)
	if err != nil || !filepath.IsLocal(rel) {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	top, _, _ := strings.Cut(rel, "/")
	if w.items[rel] || w.items[top] {
		return rel, true
	}
	for item := range w.items {
		if strings.HasPrefix(rel, item+"/") {
			return rel, true
		}
	}
	return "", false
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	rel, ok := w.relevant(event.Name)
	if !ok {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name)
		}
	}
	w.logger.Debug("watch event", zap.String("path", rel), zap.String("op", event.Op.String()))

	w.mu.Lock()
	w.pending[rel] = struct{}{}
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

// flush fires the callback once events have been quiet for the debounce window.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 || time.Since(w.lastEvent) < w.debounce {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(changed)
	if w.onChange != nil {
		w.onChange(ctx, changed)
	}
}
