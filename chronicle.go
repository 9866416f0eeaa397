// Package chronicle intercepts the save operation of a unit-of-work
// persistence session and, inside the same transaction as the caller's own
// writes, appends one immutable audit record per row-level change.
package chronicle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chronicle/actor"
	"chronicle/audit"
	"chronicle/tracking"
)

// Engine is the persistence/tracking engine the interceptor drives. The
// contract encodes the save ordering this library exists for:
//
//   - Changes reports pending mutations with their own value snapshots and
//     must be called before any flush, because original values are only
//     available pre-commit.
//   - AcceptChanges marks the flushed mutations clean WITHOUT re-running
//     change detection; re-detecting after a flush would either lose or
//     double-apply the already-written mutations.
//   - RunInTx provides the ambient transaction both the flush and the
//     audit appends run in.
type Engine interface {
	Changes() []tracking.Change
	Flush(ctx context.Context) (int64, error)
	AcceptChanges()
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher receives the committed records after the transaction closes.
// sink.Worker implements it.
type Publisher interface {
	Publish(records []audit.Record)
}

// Interceptor coordinates the audited save. Construct with New; zero value
// is not usable.
type Interceptor struct {
	engine    Engine
	store     audit.Store
	actors    actor.Resolver
	publisher Publisher
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	now       func() time.Time
	strict    bool
}

func New(engine Engine, store audit.Store, opts ...Option) *Interceptor {
	ic := &Interceptor{
		engine: engine,
		store:  store,
		actors: actor.Anonymous{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer("chronicle"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ic)
	}
	return ic
}

// Save collects the pending changes, flushes them together with their audit
// records in one transaction, and returns the number of rows affected by
// the base flush. Any failure inside the transaction, including a failed
// audit append, rolls the whole transaction back; there is no
// partial-commit outcome.
func (ic *Interceptor) Save(ctx context.Context) (int64, error) {
	start := ic.now()
	ctx, span := ic.tracer.Start(ctx, "chronicle.Save")
	defer span.End()

	// Collect first: the tracker's original values are unavailable once
	// the flush has been accepted.
	changes := ic.engine.Changes()
	span.SetAttributes(attribute.Int("chronicle.changes", len(changes)))

	var affected int64
	var records []audit.Record
	err := ic.engine.RunInTx(ctx, func(ctx context.Context) error {
		n, err := ic.engine.Flush(ctx)
		if err != nil {
			return fmt.Errorf("flush base mutations: %w", err)
		}
		affected = n

		// Mandatory ordering: mark the flushed mutations clean before
		// anything else touches the tracker, and never re-detect.
		ic.engine.AcceptChanges()

		records, err = ic.synthesize(ctx, changes)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := ic.store.Append(ctx, rec); err != nil {
				return fmt.Errorf("append audit record for %s: %w", rec.TableName, err)
			}
		}
		return ctx.Err()
	})
	if err != nil {
		ic.metrics.IncrementSave("failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return 0, err
	}

	for _, rec := range records {
		ic.metrics.IncrementAuditRecord(rec.ChangeType)
	}
	ic.metrics.IncrementSave("committed")
	ic.metrics.ObserveSaveDuration(ic.now().Sub(start))

	if ic.publisher != nil {
		ic.publisher.Publish(records)
	}
	ic.logger.DebugContext(ctx, "save committed",
		"affected", affected, "audit_records", len(records))
	return affected, nil
}

// synthesize builds one audit record per collected change, in collection
// order, resolving the acting user once per save.
func (ic *Interceptor) synthesize(ctx context.Context, changes []tracking.Change) ([]audit.Record, error) {
	var actorID *uuid.UUID
	if id, ok := ic.actors.CurrentUser(ctx); ok {
		actorID = &id
	}
	at := ic.now()

	records := make([]audit.Record, 0, len(changes))
	for _, change := range changes {
		rec, err := audit.Synthesize(change, actorID, at)
		switch {
		case errors.Is(err, audit.ErrNoopChange):
			ic.metrics.IncrementNoopChange()
			if ic.strict {
				return nil, fmt.Errorf("%s (%s): %w", rec.ObjectType, rec.TableName, err)
			}
			// Informational: the record is still written so the trail
			// stays complete; the mismatch points at the caller's
			// mutation code.
			ic.logger.WarnContext(ctx, "modified change with identical images",
				"object_type", rec.ObjectType, "table", rec.TableName, "identity", rec.IdentityJSON)
		case err != nil:
			return nil, fmt.Errorf("synthesize audit record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
