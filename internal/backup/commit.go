package backup

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Author signs backup commits.
type Author struct {
	Name  string
	Email string
}

// Commit stages everything under destDir in the git repository that
// contains it and records a commit. ErrNothingToCommit is returned when the
// index has no changes after staging.
func Commit(destDir, message string, author Author, when time.Time) (string, error) {
	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return "", fmt.Errorf("resolve destination: %w", err)
	}

	repo, err := gogit.PlainOpenWithOptions(absDest, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%w: %s", ErrNotGitRepository, destDir)
		}
		return "", fmt.Errorf("open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}

	rel, err := repoRelative(wt.Filesystem.Root(), absDest)
	if err != nil {
		return "", err
	}
	if rel == "." {
		err = wt.AddWithOptions(&gogit.AddOptions{All: true})
	} else {
		_, err = wt.Add(rel)
	}
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", rel, err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("worktree status: %w", err)
	}
	if !hasStagedChanges(status) {
		return "", ErrNothingToCommit
	}

	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  when,
		},
	})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return hash.String(), nil
}

// repoRelative returns dest relative to the worktree root in slash form.
// Both sides are symlink-resolved so temp dirs under /var -> /private/var
// still line up.
func repoRelative(root, dest string) (string, error) {
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	if d, err := filepath.EvalSymlinks(dest); err == nil {
		dest = d
	}
	rel, err := filepath.Rel(root, dest)
	if err != nil {
		return "", fmt.Errorf("destination outside worktree: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

func hasStagedChanges(status gogit.Status) bool {
	for _, s := range status {
		if s.Staging != gogit.Unmodified && s.Staging != gogit.Untracked {
			return true
		}
	}
	return false
}
