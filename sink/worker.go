package sink

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"chronicle/audit"
)

// Worker consumes committed record batches from an inbox and fans each
// batch out to every sink concurrently. It keeps background delivery
// testable without wiring queue implementations.
type Worker struct {
	sinks  []Sink
	inbox  chan []audit.Record
	logger *slog.Logger
}

func NewWorker(buffer int, logger *slog.Logger, sinks ...Sink) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		sinks:  sinks,
		inbox:  make(chan []audit.Record, buffer),
		logger: logger,
	}
}

// Publish hands a committed batch to the worker. It never blocks the save
// path: when the inbox is full the batch is dropped and the drop is logged.
// The records themselves are already durable in the audit store.
func (w *Worker) Publish(records []audit.Record) {
	if len(records) == 0 {
		return
	}
	select {
	case w.inbox <- records:
	default:
		w.logger.Warn("sink inbox full, dropping batch", "records", len(records))
	}
}

// Run delivers batches until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case records := <-w.inbox:
			w.deliver(ctx, records)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, records []audit.Record) {
	// Sinks are independent: one failing destination must not starve the
	// others, so the group only aggregates errors for logging.
	var g errgroup.Group
	for _, s := range w.sinks {
		g.Go(func() error {
			return s.Write(ctx, records)
		})
	}
	if err := g.Wait(); err != nil {
		w.logger.Error("sink delivery failed", "error", err, "records", len(records))
	}
}
