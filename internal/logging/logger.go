// File: internal/logging/logger.go
// Author: momentics <momentics@gmail.com>
//
// Process-wide zap logger with optional rotating file output, plus prefixed
// component loggers embedded by the reactor and descriptor handles.

package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
	atom   = zap.NewAtomicLevel()
)

// Configure (re)builds the process-wide logger from opts.
func Configure(opts *Options) {
	if opts == nil {
		opts = NewOptions()
	}
	atom.SetLevel(opts.Level)

	loggerOpts := make([]zap.Option, 0, 2)
	if opts.LineNum {
		loggerOpts = append(loggerOpts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	writers := make([]zapcore.WriteSyncer, 0, 2)
	if !opts.NoStderr {
		writers = append(writers, zapcore.AddSync(os.Stderr))
	}
	if opts.File != "" {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}))
	}
	var out zapcore.WriteSyncer
	if len(writers) == 0 {
		out = zapcore.AddSync(nopWriter{})
	} else {
		out = zapcore.NewMultiWriteSyncer(writers...)
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(newEncoderConfig()), out, atom)

	mu.Lock()
	logger = zap.New(core, loggerOpts...)
	mu.Unlock()
}

// SetLevel changes the level of the process-wide logger.
func SetLevel(l zapcore.Level) { atom.SetLevel(l) }

// Sync flushes buffered entries.
func Sync() error {
	return get().Sync()
}

func get() *zap.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	Configure(NewOptions())
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func newEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "linenum",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Log is the logging surface embedded by components.
type Log interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// PrefixLog tags every message with a component prefix.
type PrefixLog struct {
	prefix string
}

// NewLog returns a Log whose messages are prefixed with "[prefix] ".
func NewLog(prefix string) *PrefixLog {
	return &PrefixLog{prefix: prefix}
}

func (l *PrefixLog) msg(m string) string {
	var b strings.Builder
	b.Grow(len(l.prefix) + len(m) + 3)
	b.WriteString("[")
	b.WriteString(l.prefix)
	b.WriteString("] ")
	b.WriteString(m)
	return b.String()
}

func (l *PrefixLog) Debug(msg string, fields ...zap.Field) { get().Debug(l.msg(msg), fields...) }
func (l *PrefixLog) Info(msg string, fields ...zap.Field)  { get().Info(l.msg(msg), fields...) }
func (l *PrefixLog) Warn(msg string, fields ...zap.Field)  { get().Warn(l.msg(msg), fields...) }
func (l *PrefixLog) Error(msg string, fields ...zap.Field) { get().Error(l.msg(msg), fields...) }
