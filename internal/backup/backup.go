// Package backup copies a fixed set of files and directories from the
// assistant's live config directory into a sync directory.
//
// Symbolic links are never followed or copied, missing items are reported
// rather than treated as errors, and the first failing copy aborts the run.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent copies when Options.Workers is unset.
const DefaultWorkers = 4

// Action is the outcome recorded for a single path.
type Action string

const (
	// ActionCopied means the destination was (re)written from the source.
	ActionCopied Action = "copied"

	// ActionUnchanged means the destination already held identical bytes.
	ActionUnchanged Action = "unchanged"

	// ActionWouldCopy is recorded instead of copying during a dry run.
	ActionWouldCopy Action = "would_copy"

	// ActionSkippedSymlink means the source path is a symbolic link.
	ActionSkippedSymlink Action = "skipped_symlink"

	// ActionSkippedSpecial means the source is neither a file, directory nor symlink.
	ActionSkippedSpecial Action = "skipped_special"

	// ActionMissing means a configured item does not exist in the source directory.
	ActionMissing Action = "missing"

	// ActionExcluded means the path matched an exclude pattern.
	ActionExcluded Action = "excluded"
)

// Options configures a backup run.
type Options struct {
	// SourceDir is the live config directory (e.g. ~/.claude).
	SourceDir string

	// DestDir is the sync directory items are copied into.
	DestDir string

	// Items are top-level entries relative to SourceDir.
	Items []string

	// Exclude holds glob patterns matched against slash paths relative to SourceDir.
	Exclude []string

	// Workers bounds concurrent file copies.
	Workers int

	// DryRun records what would be copied without touching the destination.
	DryRun bool
}

// Entry records what happened to one path.
type Entry struct {
	Item   string `json:"item" yaml:"item"`
	Path   string `json:"path" yaml:"path"`
	Action Action `json:"action" yaml:"action"`
	Bytes  int64  `json:"bytes,omitempty" yaml:"bytes,omitempty"`
}

// Result is the outcome of a backup run, sorted by path.
type Result struct {
	Entries []Entry `json:"entries" yaml:"entries"`
}

// Counts tallies entries by action.
func (r *Result) Counts() map[Action]int {
	counts := make(map[Action]int)
	for _, e := range r.Entries {
		counts[e.Action]++
	}
	return counts
}

// Paths returns the relative paths recorded with the given action.
func (r *Result) Paths(action Action) []string {
	var out []string
	for _, e := range r.Entries {
		if e.Action == action {
			out = append(out, e.Path)
		}
	}
	return out
}

// Changed reports whether any file was written.
func (r *Result) Changed() bool {
	return r.Counts()[ActionCopied] > 0
}

// task is a single regular file scheduled for copying.
type task struct {
	item string
	rel  string // slash path relative to SourceDir
	src  string
	dst  string
}

// plan walks the configured items and splits them into copy tasks and
// entries that need no copying (missing, symlink, excluded, special).
func plan(opts Options) ([]task, []Entry, error) {
	if opts.DestDir == "" {
		return nil, nil, ErrDestRequired
	}
	info, err := os.Stat(opts.SourceDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrSourceMissing, opts.SourceDir)
		}
		return nil, nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrSourceNotDir, opts.SourceDir)
	}

	matcher, err := NewMatcher(opts.Exclude)
	if err != nil {
		return nil, nil, err
	}

	var tasks []task
	var entries []Entry
	for _, item := range opts.Items {
		clean := filepath.Clean(item)
		if !filepath.IsLocal(clean) {
			return nil, nil, fmt.Errorf("%w: %q", ErrInvalidItem, item)
		}
		itemTasks, itemEntries, err := planItem(opts, matcher, clean)
		if err != nil {
			return nil, nil, fmt.Errorf("plan %s: %w", item, err)
		}
		tasks = append(tasks, itemTasks...)
		entries = append(entries, itemEntries...)
	}
	return tasks, entries, nil
}

func planItem(opts Options, matcher *Matcher, item string) ([]task, []Entry, error) {
	slashItem := filepath.ToSlash(item)
	src := filepath.Join(opts.SourceDir, item)

	info, err := os.Lstat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, []Entry{{Item: slashItem, Path: slashItem, Action: ActionMissing}}, nil
		}
		return nil, nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, []Entry{{Item: slashItem, Path: slashItem, Action: ActionSkippedSymlink}}, nil
	}
	if matcher.Match(slashItem) {
		return nil, []Entry{{Item: slashItem, Path: slashItem, Action: ActionExcluded}}, nil
	}
	if info.Mode().IsRegular() {
		return []task{{
			item: slashItem,
			rel:  slashItem,
			src:  src,
			dst:  filepath.Join(opts.DestDir, item),
		}}, nil, nil
	}
	if !info.IsDir() {
		return nil, []Entry{{Item: slashItem, Path: slashItem, Action: ActionSkippedSpecial}}, nil
	}

	var tasks []task
	var entries []Entry
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == src {
			return nil
		}
		relOS, err := filepath.Rel(opts.SourceDir, path)
		if err != nil {
			return err
		}
		rel := filepath.ToSlash(relOS)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			entries = append(entries, Entry{Item: slashItem, Path: rel, Action: ActionSkippedSymlink})
		case matcher.Match(rel):
			entries = append(entries, Entry{Item: slashItem, Path: rel, Action: ActionExcluded})
			if d.IsDir() {
				return filepath.SkipDir
			}
		case d.IsDir():
		case d.Type().IsRegular():
			tasks = append(tasks, task{
				item: slashItem,
				rel:  rel,
				src:  path,
				dst:  filepath.Join(opts.DestDir, relOS),
			})
		default:
			entries = append(entries, Entry{Item: slashItem, Path: rel, Action: ActionSkippedSpecial})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return tasks, entries, nil
}

// Run performs the backup. The first copy failure cancels outstanding work
// and is returned along with nil Result.
func Run(ctx context.Context, opts Options, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tasks, entries, err := plan(opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("backup planned",
		zap.String("source", opts.SourceDir),
		zap.String("dest", opts.DestDir),
		zap.Int("files", len(tasks)),
		zap.Int("skipped", len(entries)))

	if opts.DryRun {
		for _, t := range tasks {
			entries = append(entries, Entry{Item: t.item, Path: t.rel, Action: ActionWouldCopy})
		}
		return newResult(entries), nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, t := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := checkDestParents(opts.DestDir, t.dst); err != nil {
				return fmt.Errorf("copy %s: %w", t.rel, err)
			}
			n, changed, err := copyFile(t.src, t.dst)
			if err != nil {
				return fmt.Errorf("copy %s: %w", t.rel, err)
			}
			e := Entry{Item: t.item, Path: t.rel, Action: ActionUnchanged}
			if changed {
				e.Action = ActionCopied
				e.Bytes = n
			}
			logger.Debug("backup file", zap.String("path", t.rel), zap.String("action", string(e.Action)))

			mu.Lock()
			entries = append(entries, e)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return newResult(entries), nil
}

func newResult(entries []Entry) *Result {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return &Result{Entries: entries}
}
