// Package telemetry implements the Mesh's observability surface: a zap
// structured logger, a prometheus metrics registry, and the bounded
// TraceEvent pipeline feeding the JSONL audit sink (spec.md §4's
// cross-cutting "Telemetry & Tracing" concern; ambient stack grounded on
// the teacher's log/nolog.go and metrics/metrics.go).
package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a production zap.Logger: JSON encoding, ISO8601
// timestamps, stderr output. Mirrors the teacher's preference for zap
// over the standard library's log package.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// NewNoopLogger returns a logger that discards everything, for tests and
// contexts where a *zap.Logger is required but not wanted (the teacher's
// log/nolog.go plays the same role for its logger interface).
func NewNoopLogger() *zap.Logger {
	return zap.NewNop()
}
