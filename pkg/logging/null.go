package logging

import "context"

// NullLogger drops every entry. Runs use it when logging is disabled and
// library callers pass no logger.
type NullLogger struct{}

// Discard is the shared NullLogger
var Discard Logger = NullLogger{}

var _ Logger = NullLogger{}

// NewNullLogger returns the null logger
func NewNullLogger() Logger {
	return Discard
}

func (NullLogger) Debug(ctx context.Context, msg string, fields Fields) {}

func (NullLogger) Info(ctx context.Context, msg string, fields Fields) {}

func (NullLogger) Warn(ctx context.Context, msg string, fields Fields) {}

func (NullLogger) Error(ctx context.Context, msg string, err error, fields Fields) {}

// WithFields returns the receiver; there is nothing to annotate
func (l NullLogger) WithFields(fields Fields) Logger {
	return l
}

func (NullLogger) Close() error {
	return nil
}
