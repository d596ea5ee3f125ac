// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"go.uber.org/zap"
)

// FormatWithContextTags formats the string and prepends the context
// tags.
//
// Redaction markers are *not* inserted. The resulting
// string is generally unsafe for reporting.
func FormatWithContextTags(ctx context.Context, format string, args ...interface{}) string {
	var buf strings.Builder
	formatTags(ctx, &buf)
	fmt.Fprintf(&buf, format, args...)
	return buf.String()
}

func formatTags(ctx context.Context, buf *strings.Builder) {
	tags := logtags.FromContext(ctx)
	if tags == nil {
		return
	}
	buf.WriteByte('[')
	for i, t := range tags.Get() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(t.Key())
		if v := t.ValueStr(); v != "" {
			buf.WriteByte('=')
			buf.WriteString(v)
		}
	}
	buf.WriteString("] ")
}

// makeMessage renders the entry. Arguments not marked safe are enclosed in
// redaction markers, which are stripped unless redactable logs are enabled.
func makeMessage(ctx context.Context, format string, args []interface{}) string {
	var buf strings.Builder
	formatTags(ctx, &buf)
	msg := redact.Sprintf(format, args...)
	if mainLog.redactableLogs.Load() {
		buf.WriteString(string(msg))
	} else {
		buf.WriteString(msg.StripMarkers())
	}
	return buf.String()
}

// addStructured creates a structured log entry and writes it to the
// installed zap logger.
func addStructured(ctx context.Context, sev Severity, format string, args []interface{}) {
	l := mainLog.logger.Load()
	msg := makeMessage(ctx, format, args)
	switch sev {
	case Severity_WARNING:
		l.Warn(msg)
	case Severity_ERROR:
		l.Error(msg)
	default:
		l.Info(msg)
	}
}

// NewZapLogger returns the production zap logger used by command line tools.
func NewZapLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
