// SPDX-License-Identifier: MIT
//
// Package log is the process-wide leveled logger. It keeps a small
// printf-style surface (Debugf, Infof, ...) over a zap sugared logger so
// cold-path code can log without threading a logger through every
// constructor. Nothing in the audio callback may call into this package.
package log

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

var (
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar  atomic.Pointer[zap.SugaredLogger]
	cached atomic.Uint32
)

func init() {
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

func newCore(w io.Writer) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: " ",
	}
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	sugar.Store(zap.New(newCore(w)).Sugar())
}

// SetLevel sets the global logging level.
func SetLevel(l LogLevel) {
	cached.Store(uint32(l))
	level.SetLevel(l.zapLevel())
}

// GetLevel gets the current global logging level.
func GetLevel() LogLevel {
	return LogLevel(cached.Load())
}

// Sync flushes buffered entries. Call before exit.
func Sync() error {
	return sugar.Load().Sync()
}

func Debugf(format string, v ...any) { sugar.Load().Debugf(format, v...) }
func Infof(format string, v ...any)  { sugar.Load().Infof(format, v...) }
func Warnf(format string, v ...any)  { sugar.Load().Warnf(format, v...) }
func Errorf(format string, v ...any) { sugar.Load().Errorf(format, v...) }

// Fatalf logs regardless of level and exits the process.
func Fatalf(format string, v ...any) { sugar.Load().Fatalf(format, v...) }

func Debug(v ...any) { sugar.Load().Debug(v...) }
func Info(v ...any)  { sugar.Load().Info(v...) }
func Warn(v ...any)  { sugar.Load().Warn(v...) }
func Error(v ...any) { sugar.Load().Error(v...) }

// Fatal logs regardless of level and exits the process.
func Fatal(v ...any) { sugar.Load().Fatal(v...) }

// Infow logs a message with structured key/value context.
func Infow(msg string, keysAndValues ...any) { sugar.Load().Infow(msg, keysAndValues...) }

// Debugw logs a debug message with structured key/value context.
func Debugw(msg string, keysAndValues ...any) { sugar.Load().Debugw(msg, keysAndValues...) }
