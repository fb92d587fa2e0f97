// Package logging provides the zap-backed implementation of core.Logger
// every component in the engine takes as a constructor argument; there is
// no process-wide logger.
package logging

import (
	"strings"

	"github.com/opensqt/gridbot/internal/core"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a *zap.SugaredLogger to satisfy core.Logger.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a Logger at the given level, writing JSON to stdout in
// production-style configs and console-formatted output otherwise.
func New(level string, development bool) (*Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}

	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{s: zl.Sugar()}, nil
}

// NewNop returns a Logger that discards everything, for tests that need a
// core.Logger but don't care about its output.
func NewNop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(level) {
	case "", "INFO":
		return zapcore.InfoLevel, nil
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "WARN":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	case "FATAL":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, &InvalidLevelError{Level: level}
	}
}

// InvalidLevelError reports an unrecognized log level string.
type InvalidLevelError struct{ Level string }

func (e *InvalidLevelError) Error() string {
	return "logging: invalid level " + e.Level
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.s.Debugw(msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.s.Infow(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.s.Warnw(msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.s.Errorw(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...interface{}) { l.s.Fatalw(msg, fields...) }

func (l *Logger) WithField(key string, value interface{}) core.Logger {
	return &Logger{s: l.s.With(key, value)}
}

func (l *Logger) WithFields(fields map[string]interface{}) core.Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{s: l.s.With(args...)}
}

// Sync flushes any buffered log entries; call it before process exit.
func (l *Logger) Sync() error {
	err := l.s.Sync()
	if err != nil && (strings.Contains(err.Error(), "inappropriate ioctl") || strings.Contains(err.Error(), "invalid argument")) {
		return nil // stdout/stderr sync on a non-file fd, not a real failure
	}
	return err
}

var _ core.Logger = (*Logger)(nil)
