package handoff

import "errors"

// Sentinel errors for the handoff package. Callers match with errors.Is.
var (
	// ErrEmptyInput is returned when the hook receives nothing on stdin.
	ErrEmptyInput = errors.New("empty hook input")

	// ErrTranscriptMissing is returned when the transcript path is unset or absent.
	ErrTranscriptMissing = errors.New("transcript not found")

	// ErrNoUsage is returned when no transcript record carries a usage block.
	ErrNoUsage = errors.New("no usage record in transcript")

	// ErrNoSession is returned when a marker is requested for an unidentified session.
	ErrNoSession = errors.New("session id is required")

	// ErrMarkerNotFound is returned when consuming an unknown or already consumed marker.
	ErrMarkerNotFound = errors.New("handoff marker not found")
)
