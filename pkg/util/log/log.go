// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log is a small structured logging facade. Entries carry the
// logtags of their context and are formatted as redactable strings before
// being handed to a zap logger.
package log

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// Severity identifies the importance of a log entry.
type Severity int32

const (
	// Severity_INFO is used for informational messages.
	Severity_INFO Severity = iota + 1
	// Severity_WARNING is used for unexpected but recoverable conditions.
	Severity_WARNING
	// Severity_ERROR is used for failures.
	Severity_ERROR
)

func (s Severity) String() string {
	switch s {
	case Severity_INFO:
		return "INFO"
	case Severity_WARNING:
		return "WARNING"
	case Severity_ERROR:
		return "ERROR"
	}
	return "UNKNOWN"
}

type loggingT struct {
	logger         atomic.Pointer[zap.Logger]
	verbosity      atomic.Int32
	redactableLogs atomic.Bool
}

var mainLog loggingT

func init() {
	mainLog.logger.Store(zap.NewNop())
}

// SetLogger installs the zap logger that receives all entries. It returns a
// function that restores the previous logger.
func SetLogger(l *zap.Logger) (restore func()) {
	if l == nil {
		l = zap.NewNop()
	}
	prev := mainLog.logger.Swap(l)
	return func() { mainLog.logger.Store(prev) }
}

// SetVerbosity sets the global verbosity level consulted by V and VEventf.
func SetVerbosity(level int32) (restore func()) {
	prev := mainLog.verbosity.Swap(level)
	return func() { mainLog.verbosity.Store(prev) }
}

// SetRedactableLogs controls whether redaction markers are kept in the
// emitted messages.
func SetRedactableLogs(enabled bool) {
	mainLog.redactableLogs.Store(enabled)
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level int32) bool {
	return mainLog.verbosity.Load() >= level
}

// Infof logs to the INFO severity.
func Infof(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_INFO, format, args)
}

// Warningf logs to the WARNING severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_WARNING, format, args)
}

// Errorf logs to the ERROR severity.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_ERROR, format, args)
}

// VEventf logs an INFO entry if the verbosity is at least the given level.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	if V(level) {
		addStructured(ctx, Severity_INFO, format, args)
	}
}
