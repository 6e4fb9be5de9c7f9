// Package logging wraps log/slog with the field-and-context conventions
// used across the rest of the module: structured fields, component/
// operation tagging, and an error-aware helper that understands the
// envelope package's typed VerifyError.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config controls logger construction.
type Config struct {
	Level      string // "debug", "info", "warn", "error"
	Format     string // "json" or "text"
	Output     io.Writer
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns the conventional production configuration: JSON
// output to stderr at info level.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		Output:     os.Stderr,
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// Field is a single structured logging attribute.
type Field struct {
	Key   string
	Value interface{}
}

// Logger wraps *slog.Logger with this package's field and component
// conventions.
type Logger struct {
	slog *slog.Logger
}

// NewLogger constructs a Logger from cfg.
func NewLogger(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &Logger{slog: slog.New(handler)}
}

func (l *Logger) clone(h *slog.Logger) *Logger {
	return &Logger{slog: h}
}

// WithFields returns a derived Logger with fields attached to every
// subsequent log call.
func (l *Logger) WithFields(fields ...Field) *Logger {
	args := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	return l.clone(l.slog.With(args...))
}

// WithComponent tags logs with the subsystem they originate from, e.g.
// "envelope", "revocation", "fswalk".
func (l *Logger) WithComponent(name string) *Logger {
	return l.WithFields(Field{"component", name})
}

// WithOperation tags logs with the operation in progress, e.g. "sign",
// "verify", "issue_revocation".
func (l *Logger) WithOperation(name string) *Logger {
	return l.WithFields(Field{"operation", name})
}

// WithError attaches an error to subsequent log calls. When err carries a
// stable error code (as envelope.VerifyError does), the
// code is logged as its own field so alerting can match on it without
// parsing message text.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	if coded, ok := err.(interface{ ErrorCodeString() string }); ok {
		return l.WithFields(Field{"error", err.Error()}, Field{"error_code", coded.ErrorCodeString()})
	}
	return l.WithFields(Field{"error", err.Error()})
}

// WithContext attaches nothing yet beyond future-proofing the call
// signature with ctx; reserved so call sites can pass a context.Context
// consistently even though this logger does not currently read trace IDs
// out of it.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return l
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *Logger) log(level slog.Level, msg string, fields []Field) {
	args := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	l.slog.Log(context.Background(), level, msg, args...)
}

// LogSign records the outcome of a Builder.Sign call.
func (l *Logger) LogSign(skillName, skillVersion string, err error) {
	logger := l.WithComponent("envelope").WithOperation("sign").WithFields(
		Field{"skill_name", skillName}, Field{"skill_version", skillVersion})
	if err != nil {
		logger.WithError(err).Error("sign failed")
		return
	}
	logger.Info("sign succeeded")
}

// LogVerify records the outcome of a Verifier.Verify call.
func (l *Logger) LogVerify(skillName string, trustLevel string, valid bool, duration time.Duration) {
	l.WithComponent("envelope").WithOperation("verify").WithFields(
		Field{"skill_name", skillName},
		Field{"trust_level", trustLevel},
		Field{"valid", valid},
		Field{"duration_ms", duration.Milliseconds()},
	).Info("verify completed")
}

// LogRevocation records the outcome of a revocation decision.
func (l *Logger) LogRevocation(skillName string, decisionTrustLevel string, errorCode string, warningCode string) {
	logger := l.WithComponent("revocation").WithFields(Field{"skill_name", skillName}, Field{"trust_level", decisionTrustLevel})
	switch {
	case errorCode != "":
		logger.WithFields(Field{"error_code", errorCode}).Warn("revocation check rejected skill")
	case warningCode != "":
		logger.WithFields(Field{"warning_code", warningCode}).Warn("revocation check degraded trust")
	default:
		logger.Debug("revocation check passed")
	}
}

var globalLogger = NewLogger(DefaultConfig())

// SetGlobalLogger replaces the package-level default logger.
func SetGlobalLogger(l *Logger) { globalLogger = l }

// GetGlobalLogger returns the package-level default logger.
func GetGlobalLogger() *Logger { return globalLogger }

// ParseLevel validates a level string, returning an error for anything
// other than debug/info/warn/error.
func ParseLevel(s string) error {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging: unrecognized level %q", s)
	}
}
