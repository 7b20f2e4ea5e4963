// Package logging builds the zap loggers used across afterburner.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, encoding and destination.
type Config struct {
	Verbose bool
	Format  string    // "console" or "json"
	Output  io.Writer // defaults to os.Stderr
}

// New creates a logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Format == "" {
		cfg.Format = "console"
	}
	if cfg.Format != "console" && cfg.Format != "json" {
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level := zapcore.InfoLevel
	if cfg.Verbose {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(out), level)
	return zap.New(core), nil
}

// newEncoder creates JSON or console encoder.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// ForRun returns a child logger tagged with the run id and repository.
func ForRun(l *zap.Logger, runID, repoPath string) *zap.Logger {
	return l.With(zap.String("run_id", runID), zap.String("repo", repoPath))
}
