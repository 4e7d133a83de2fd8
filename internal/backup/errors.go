package backup

import "errors"

// Sentinel errors for the backup package. Callers match with errors.Is.
var (
	// ErrSourceMissing is returned when the configured source directory does not exist.
	ErrSourceMissing = errors.New("source directory does not exist")

	// ErrSourceNotDir is returned when the source path is not a directory.
	ErrSourceNotDir = errors.New("source path is not a directory")

	// ErrDestRequired is returned when no destination directory is configured.
	ErrDestRequired = errors.New("destination directory is required")

	// ErrInvalidItem is returned for items that are absolute or escape the source directory.
	ErrInvalidItem = errors.New("item must be a relative path inside the source directory")

	// ErrDestEscapes is returned when a directory under the destination is a
	// symbolic link, so writing through it would land outside the destination.
	ErrDestEscapes = errors.New("destination path crosses a symbolic link")

	// ErrInvalidPattern is returned when an exclude glob does not compile.
	ErrInvalidPattern = errors.New("invalid exclude pattern")

	// ErrNotGitRepository is returned when --commit is used outside a git repository.
	ErrNotGitRepository = errors.New("destination is not inside a git repository")

	// ErrNothingToCommit is returned when the destination has no staged changes.
	ErrNothingToCommit = errors.New("nothing to commit")
)
