package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/ccsync/ccsync/internal/worker"
)

// State describes how a destination file relates to its source.
type State string

const (
	// StateInSync means source and destination bytes match.
	StateInSync State = "in_sync"

	// StateModified means the destination exists with different bytes.
	StateModified State = "modified"

	// StateNew means the destination file does not exist yet.
	StateNew State = "new"
)

// Diff is the status of one file that a backup would copy.
type Diff struct {
	Path       string `json:"path" yaml:"path"`
	State      State  `json:"state" yaml:"state"`
	SourceHash string `json:"source_sha256,omitempty" yaml:"source_sha256,omitempty"`
	DestHash   string `json:"dest_sha256,omitempty" yaml:"dest_sha256,omitempty"`
}

// Status compares every file a backup would copy against the destination
// without writing anything. Hashing fans out across opts.Workers.
func Status(ctx context.Context, opts Options) ([]Diff, error) {
	tasks, _, err := plan(opts)
	if err != nil {
		return nil, err
	}

	pool := worker.NewPool[task, Diff](opts.Workers)
	results := pool.Process(ctx, tasks, func(_ context.Context, t task) (Diff, error) {
		return diffTask(t)
	})

	diffs := make([]Diff, 0, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("status %s: %w", tasks[i].rel, r.Err)
		}
		diffs = append(diffs, r.Value)
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Path < diffs[j].Path })
	return diffs, nil
}

func diffTask(t task) (Diff, error) {
	d := Diff{Path: t.rel}

	srcHash, err := digestHex(t.src)
	if err != nil {
		return d, err
	}
	d.SourceHash = srcHash

	info, err := os.Lstat(t.dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		d.State = StateNew
		return d, nil
	case err != nil:
		return d, err
	case !info.Mode().IsRegular():
		d.State = StateModified
		return d, nil
	}

	dstHash, err := digestHex(t.dst)
	if err != nil {
		return d, err
	}
	d.DestHash = dstHash
	if dstHash == srcHash {
		d.State = StateInSync
	} else {
		d.State = StateModified
	}
	return d, nil
}

// OutOfSync filters diffs down to the ones a backup would change.
func OutOfSync(diffs []Diff) []Diff {
	var out []Diff
	for _, d := range diffs {
		if d.State != StateInSync {
			out = append(out, d)
		}
	}
	return out
}
