package handoff

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Settings tune a Check.
type Settings struct {
	// Threshold is the whole percentage that must be exceeded.
	Threshold int
	// DefaultWindow is used when the input carries no window size.
	DefaultWindow int
	// MarkerDir, when set, receives a pending marker for exceeded sessions.
	MarkerDir string
}

// Report is the outcome of one hook invocation.
type Report struct {
	Budget
	Session    string `json:"session,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	// Note explains why usage is zero when no usage record was found.
	Note    string `json:"note,omitempty"`
	Printed bool   `json:"printed"`
	Marker  string `json:"marker,omitempty"`
}

// Check runs the hook pipeline: read the last usage record, evaluate it,
// write one line to logger and print the handoff block to stdout only when
// the threshold is exceeded. A missing transcript or one without usage
// counts as zero tokens.
func Check(ctx context.Context, in Input, s Settings, logger *zap.Logger, stdout io.Writer) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	window := in.ContextWindow.ContextWindowSize
	if window <= 0 {
		window = s.DefaultWindow
	}

	rep := Report{Session: in.Session(), Transcript: in.TranscriptPath}
	usage, err := LastUsage(in.TranscriptPath)
	switch {
	case err == nil:
	case errors.Is(err, ErrTranscriptMissing):
		rep.Note = "transcript missing"
	case errors.Is(err, ErrNoUsage):
		rep.Note = "no usage record"
	default:
		rep.Note = err.Error()
	}
	rep.Budget = Evaluate(usage, window, s.Threshold)

	var markerErr, writeErr error
	if rep.Exceeded() {
		if _, err := io.WriteString(stdout, Message(rep.Budget)); err != nil {
			writeErr = err
		} else {
			rep.Printed = true
		}

		// Sessions without an id or transcript cannot be told apart.
		if s.MarkerDir != "" && rep.Session != "" {
			path, _, err := WriteMarker(s.MarkerDir, rep.Session, rep.Budget)
			if err != nil {
				markerErr = err
			} else {
				rep.Marker = path
			}
		}
	}

	fields := []zap.Field{
		zap.String("session", rep.Session),
		zap.String("transcript", rep.Transcript),
		zap.Int("tokens", rep.Tokens),
		zap.Int("window", rep.Window),
		zap.Int("percent", rep.Percent),
		zap.Int("threshold", rep.Threshold),
		zap.String("level", string(rep.Level())),
		zap.Bool("triggered", rep.Printed),
	}
	if rep.Note != "" {
		fields = append(fields, zap.String("note", rep.Note))
	}
	if rep.Marker != "" {
		fields = append(fields, zap.String("marker", rep.Marker))
	}
	if markerErr != nil {
		fields = append(fields, zap.NamedError("marker_error", markerErr))
	}
	if writeErr != nil {
		fields = append(fields, zap.NamedError("stdout_error", writeErr))
	}
	logger.Info("handoff check", fields...)

	if writeErr != nil {
		return rep, fmt.Errorf("write handoff message: %w", writeErr)
	}
	return rep, nil
}
