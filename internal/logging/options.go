package logging

import "go.uber.org/zap/zapcore"

type Options struct {
	Level    zapcore.Level
	LineNum  bool
	NoStderr bool
	// File enables rotating file output when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func NewOptions() *Options {
	return &Options{
		Level:      zapcore.InfoLevel,
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// ParseLevel maps a textual level ("debug", "info"...) onto a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	return zapcore.ParseLevel(s)
}
