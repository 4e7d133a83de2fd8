// Package logging builds the zap loggers used by ccsync.
//
// Diagnostics always go to stderr: the handoff hook's stdout is read back by
// the assistant, so nothing but command output may be written there.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a human-readable console logger writing to w.
// Debug entries are only emitted when verbose is set.
func New(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)
	return zap.New(core)
}

// NewStderr is New bound to os.Stderr.
func NewStderr(verbose bool) *zap.Logger {
	return New(os.Stderr, verbose)
}

// FileLogger appends JSON lines to a single log file.
type FileLogger struct {
	*zap.Logger
	file *os.File
}

// OpenFile opens (creating parents as needed) an append-only JSON-lines log.
// Close must be called to flush and release the file.
func OpenFile(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.CallerKey = ""
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(f),
		zapcore.InfoLevel,
	)
	return &FileLogger{Logger: zap.New(core), file: f}, nil
}

// Close syncs buffered entries and closes the file.
func (l *FileLogger) Close() error {
	_ = l.Sync()
	return l.file.Close()
}
