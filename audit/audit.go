// Package audit defines the persisted audit record and the pure synthesis
// step that turns a pending change into one. Records are append-only: this
// package never mutates or deletes what it has written.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"chronicle/fieldjson"
	"chronicle/schema"
	"chronicle/tracking"
)

// ErrNoopChange reports a Modified change whose before and after images
// serialize identically. It signals a change-tracking inconsistency in the
// caller's mutation code, not a failure of this package; the synthesized
// record is still returned alongside it.
var ErrNoopChange = errors.New("modified change has identical before and after images")

// Record is one immutable audit row describing a single row-level change.
type Record struct {
	ID           uuid.UUID  `json:"id"`
	ActorID      *uuid.UUID `json:"actor_id,omitempty"`
	ChangeType   string     `json:"change_type"`
	ObjectType   string     `json:"object_type"`
	FromJSON     string     `json:"from_json"`
	ToJSON       string     `json:"to_json"`
	TableName    string     `json:"table_name"`
	IdentityJSON string     `json:"identity_json"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Store persists audit records. Implementations are append-only; the
// coordinator calls Append within the same transaction as the base
// mutations via the tx-in-context helper.
type Store interface {
	Append(ctx context.Context, record Record) error
}

// Synthesize builds the audit record for one pending change. It performs
// no I/O. For Added changes the from-image is the empty object; for
// Deleted changes the to-image is. A Modified change that serializes
// identically on both sides yields the record plus ErrNoopChange.
func Synthesize(change tracking.Change, actorID *uuid.UUID, at time.Time) (Record, error) {
	from := fieldjson.Empty
	if change.Kind != tracking.KindAdded {
		from = fieldjson.Serialize(change.Before)
	}
	to := fieldjson.Empty
	if change.Kind != tracking.KindDeleted {
		to = fieldjson.Serialize(change.After)
	}

	rec := Record{
		ID:           uuid.New(),
		ActorID:      actorID,
		ChangeType:   change.Kind.String(),
		ObjectType:   change.Model.Name,
		FromJSON:     from,
		ToJSON:       to,
		TableName:    change.Model.Table,
		IdentityJSON: Identity(change.Model, identityValues(change)),
		CreatedAt:    at.UTC(),
	}

	if change.Kind == tracking.KindModified && from == to {
		return rec, ErrNoopChange
	}
	return rec, nil
}

// Identity serializes only the model's declared key fields out of a full
// value snapshot, in key declaration order. A model with no key fields
// yields the canonical empty object.
func Identity(model *schema.Model, values []fieldjson.Field) string {
	keys := model.KeyFields()
	if len(keys) == 0 {
		return fieldjson.Empty
	}
	subset := make([]fieldjson.Field, 0, len(keys))
	for _, k := range keys {
		for _, v := range values {
			if v.Name == k.Name {
				subset = append(subset, v)
				break
			}
		}
	}
	return fieldjson.Serialize(subset)
}

// identityValues picks the snapshot the row identity must come from:
// original values for deletes, current values otherwise.
func identityValues(change tracking.Change) []fieldjson.Field {
	if change.Kind == tracking.KindDeleted {
		return change.Before
	}
	return change.After
}
