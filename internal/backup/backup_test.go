package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture lays out a fake ~/.claude with a mix of files, directories and links.
func fixture(t *testing.T) (src, dst string) {
	t.Helper()
	root := t.TempDir()
	src = filepath.Join(root, "home", ".claude")
	dst = filepath.Join(root, "repo", "claude")

	mustWrite(t, filepath.Join(src, "CLAUDE.md"), "# global instructions\n")
	mustWrite(t, filepath.Join(src, "settings.json"), `{"model":"opus"}`)
	mustWrite(t, filepath.Join(src, "skills", "ffmpeg", "SKILL.md"), "loudnorm two-pass\n")
	mustWrite(t, filepath.Join(src, "skills", "torch", "SKILL.md"), "check tensor shapes\n")
	mustWrite(t, filepath.Join(src, "skills", ".DS_Store"), "junk")
	mustWrite(t, filepath.Join(src, "commands", "handoff.md"), "summarize and reset\n")
	mustWrite(t, filepath.Join(src, "outside.md"), "linked target\n")
	require.NoError(t, os.Symlink(filepath.Join(src, "outside.md"), filepath.Join(src, "skills", "linked.md")))
	require.NoError(t, os.Symlink(filepath.Join(src, "commands"), filepath.Join(src, "agents")))
	return src, dst
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func defaultOpts(src, dst string) Options {
	return Options{
		SourceDir: src,
		DestDir:   dst,
		Items:     []string{"CLAUDE.md", "settings.json", "skills", "commands", "agents", "hooks"},
		Exclude:   []string{"**/.DS_Store"},
		Workers:   2,
	}
}

func actions(r *Result) map[string]Action {
	out := make(map[string]Action, len(r.Entries))
	for _, e := range r.Entries {
		out[e.Path] = e.Action
	}
	return out
}

func TestRun_CopiesRegularFilesByteIdentical(t *testing.T) {
	src, dst := fixture(t)

	res, err := Run(context.Background(), defaultOpts(src, dst), nil)
	require.NoError(t, err)

	for _, rel := range []string{
		"CLAUDE.md",
		"settings.json",
		"skills/ffmpeg/SKILL.md",
		"skills/torch/SKILL.md",
		"commands/handoff.md",
	} {
		want, err := os.ReadFile(filepath.Join(src, rel))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(dst, rel))
		require.NoError(t, err, rel)
		assert.Equal(t, want, got, rel)
	}

	want := map[string]Action{
		"CLAUDE.md":              ActionCopied,
		"agents":                 ActionSkippedSymlink,
		"commands/handoff.md":    ActionCopied,
		"hooks":                  ActionMissing,
		"settings.json":          ActionCopied,
		"skills/.DS_Store":       ActionExcluded,
		"skills/ffmpeg/SKILL.md": ActionCopied,
		"skills/linked.md":       ActionSkippedSymlink,
		"skills/torch/SKILL.md":  ActionCopied,
	}
	if diff := cmp.Diff(want, actions(res)); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, res.Changed())
}

func TestRun_NeverCopiesSymlinks(t *testing.T) {
	src, dst := fixture(t)

	_, err := Run(context.Background(), defaultOpts(src, dst), nil)
	require.NoError(t, err)

	_, err = os.Lstat(filepath.Join(dst, "agents"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "top-level symlink item must not appear in dest")
	_, err = os.Lstat(filepath.Join(dst, "skills", "linked.md"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "nested symlink must not appear in dest")
}

func TestRun_EntriesSortedByPath(t *testing.T) {
	src, dst := fixture(t)
	res, err := Run(context.Background(), defaultOpts(src, dst), nil)
	require.NoError(t, err)

	for i := 1; i < len(res.Entries); i++ {
		if res.Entries[i-1].Path > res.Entries[i].Path {
			t.Fatalf("entries not sorted: %q before %q", res.Entries[i-1].Path, res.Entries[i].Path)
		}
	}
}

func TestRun_SecondRunUnchanged(t *testing.T) {
	src, dst := fixture(t)
	opts := defaultOpts(src, dst)

	_, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	res, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.Equal(t, 5, res.Counts()[ActionUnchanged])

	mustWrite(t, filepath.Join(src, "CLAUDE.md"), "# edited\n")
	res, err = Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"CLAUDE.md"}, res.Paths(ActionCopied))
}

func TestRun_OverwritesSameSizeDifferentContent(t *testing.T) {
	src, dst := fixture(t)
	mustWrite(t, filepath.Join(dst, "settings.json"), `{"model":"haik"}`)

	res, err := Run(context.Background(), defaultOpts(src, dst), nil)
	require.NoError(t, err)
	assert.Equal(t, ActionCopied, actions(res)["settings.json"])

	got, err := os.ReadFile(filepath.Join(dst, "settings.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"model":"opus"}`, string(got))
}

func TestRun_PreservesPermissions(t *testing.T) {
	src, dst := fixture(t)
	script := filepath.Join(src, "hooks", "notify.sh")
	mustWrite(t, script, "#!/bin/sh\necho hi\n")
	require.NoError(t, os.Chmod(script, 0o750))

	_, err := Run(context.Background(), defaultOpts(src, dst), nil)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dst, "hooks", "notify.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
}

func TestRun_LeavesDestinationExtras(t *testing.T) {
	src, dst := fixture(t)
	extra := filepath.Join(dst, "skills", "retired", "SKILL.md")
	mustWrite(t, extra, "kept\n")

	_, err := Run(context.Background(), defaultOpts(src, dst), nil)
	require.NoError(t, err)

	_, err = os.Stat(extra)
	assert.NoError(t, err)
}

func TestRun_DryRunTouchesNothing(t *testing.T) {
	src, dst := fixture(t)
	opts := defaultOpts(src, dst)
	opts.DryRun = true

	res, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Counts()[ActionWouldCopy])
	assert.Zero(t, res.Counts()[ActionCopied])
	_, err = os.Stat(dst)
	assert.True(t, errors.Is(err, os.ErrNotExist), "dry run must not create the destination")
}

func TestRun_FirstFailureAborts(t *testing.T) {
	src, dst := fixture(t)
	// A regular file where the skills directory should go makes every
	// skills copy fail.
	mustWrite(t, filepath.Join(dst, "skills"), "not a directory")

	res, err := Run(context.Background(), defaultOpts(src, dst), nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "skills/")
}

func TestRun_RefusesLinkedDestinationDirectory(t *testing.T) {
	src, dst := fixture(t)
	outside := filepath.Join(filepath.Dir(dst), "outside")
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(dst, "skills")))

	res, err := Run(context.Background(), defaultOpts(src, dst), nil)
	require.ErrorIs(t, err, ErrDestEscapes)
	assert.Nil(t, res)

	entries, err := os.ReadDir(outside)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing may be written through the link")
}

func TestRun_LinkedDestinationRootAllowed(t *testing.T) {
	src, dst := fixture(t)
	target := filepath.Join(filepath.Dir(dst), "real")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.Symlink(target, dst))

	_, err := Run(context.Background(), defaultOpts(src, dst), nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(target, "skills", "ffmpeg", "SKILL.md"))
}

func TestRun_Validation(t *testing.T) {
	src, dst := fixture(t)

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"missing source", Options{SourceDir: filepath.Join(src, "nope"), DestDir: dst}, ErrSourceMissing},
		{"source is file", Options{SourceDir: filepath.Join(src, "CLAUDE.md"), DestDir: dst}, ErrSourceNotDir},
		{"no dest", Options{SourceDir: src}, ErrDestRequired},
		{"escaping item", Options{SourceDir: src, DestDir: dst, Items: []string{"../etc"}}, ErrInvalidItem},
		{"absolute item", Options{SourceDir: src, DestDir: dst, Items: []string{"/etc/passwd"}}, ErrInvalidItem},
		{"bad glob", Options{SourceDir: src, DestDir: dst, Exclude: []string{"[unclosed"}}, ErrInvalidPattern},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.opts, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Run() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRun_CancelledContext(t *testing.T) {
	src, dst := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, defaultOpts(src, dst), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResult_Counts(t *testing.T) {
	r := &Result{Entries: []Entry{
		{Path: "a", Action: ActionCopied},
		{Path: "b", Action: ActionCopied},
		{Path: "c", Action: ActionMissing},
	}}
	assert.Equal(t, map[Action]int{ActionCopied: 2, ActionMissing: 1}, r.Counts())
	assert.Equal(t, []string{"a", "b"}, r.Paths(ActionCopied))
	assert.Nil(t, r.Paths(ActionExcluded))
}
