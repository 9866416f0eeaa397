// Package sink fans committed audit records out to secondary destinations
// (logs, Kafka). Sinks run after the transaction has committed; their
// failures are logged and never affect the save that produced the records.
package sink

import (
	"context"
	"log/slog"

	"chronicle/audit"
)

// Sink receives batches of committed audit records.
type Sink interface {
	Write(ctx context.Context, records []audit.Record) error
}

// Logger writes one structured log line per record.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Write(ctx context.Context, records []audit.Record) error {
	for _, rec := range records {
		l.logger.InfoContext(ctx, "audit record",
			"id", rec.ID,
			"change_type", rec.ChangeType,
			"object_type", rec.ObjectType,
			"table", rec.TableName,
			"identity", rec.IdentityJSON,
		)
	}
	return nil
}
