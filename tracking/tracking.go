// Package tracking implements a unit-of-work change tracker: entities are
// attached to a Tracker, mutated in place, and the tracker reports pending
// inserts, updates and deletes as ordered before/after field snapshots.
package tracking

import (
	"fmt"
	"reflect"

	"chronicle/fieldjson"
	"chronicle/schema"
)

// State is the tracking state of one entry.
type State int

const (
	Detached State = iota
	Unchanged
	Added
	Modified
	Deleted
)

func (s State) String() string {
	switch s {
	case Detached:
		return "Detached"
	case Unchanged:
		return "Unchanged"
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Kind classifies a pending change.
type Kind int

const (
	KindAdded Kind = iota
	KindModified
	KindDeleted
)

func (k Kind) String() string {
	switch k {
	case KindAdded:
		return "Added"
	case KindModified:
		return "Modified"
	case KindDeleted:
		return "Deleted"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Wrapper marks lazy-loading or interception wrappers around an entity.
// The tracker unwraps through it so audit output always names the logical
// model type, never the wrapper.
type Wrapper interface {
	UnwrapEntity() any
}

// Change is one pending row-level mutation, snapshotted so it stays valid
// after the tracker has been flushed and accepted.
type Change struct {
	Kind  Kind
	Model *schema.Model
	// Before holds the original field values; nil for Added.
	Before []fieldjson.Field
	// After holds the current field values; nil for Deleted.
	After []fieldjson.Field
}

// Entry is one tracked entity.
type Entry struct {
	entity   any // as handed to the tracker, possibly a Wrapper
	logical  any // unwrapped entity the snapshots read from
	model    *schema.Model
	state    State
	original []fieldjson.Field
}

func (e *Entry) Entity() any          { return e.entity }
func (e *Entry) State() State         { return e.state }
func (e *Entry) Model() *schema.Model { return e.model }

// Tracker records entity state per unit of work. It is not safe for
// concurrent use; each save cycle owns its tracker, matching the
// one-session-per-unit-of-work model.
type Tracker struct {
	registry *schema.Registry
	entries  []*Entry
	index    map[any]*Entry
}

func NewTracker(registry *schema.Registry) *Tracker {
	return &Tracker{
		registry: registry,
		index:    make(map[any]*Entry),
	}
}

// Attach starts tracking an existing (already persisted) entity as
// Unchanged, snapshotting its current values as the originals.
func (t *Tracker) Attach(entity any) error {
	_, err := t.track(entity, Unchanged)
	return err
}

// Add starts tracking a new entity pending insertion.
func (t *Tracker) Add(entity any) error {
	_, err := t.track(entity, Added)
	return err
}

// Remove marks a tracked entity for deletion. Removing a pending Added
// entity detaches it instead: it was never persisted, so there is nothing
// to delete or audit.
func (t *Tracker) Remove(entity any) error {
	e, ok := t.index[entity]
	if !ok {
		return fmt.Errorf("remove %T: entity is not tracked", entity)
	}
	if e.state == Added {
		e.state = Detached
		delete(t.index, entity)
		return nil
	}
	e.state = Deleted
	return nil
}

// Detach stops tracking an entity without persisting anything.
func (t *Tracker) Detach(entity any) {
	if e, ok := t.index[entity]; ok {
		e.state = Detached
		delete(t.index, entity)
	}
}

// Entries returns all live entries in registration order.
func (t *Tracker) Entries() []*Entry {
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.state != Detached {
			out = append(out, e)
		}
	}
	return out
}

// DetectChanges compares every Unchanged entry's current values against
// its original snapshot and promotes differing entries to Modified.
func (t *Tracker) DetectChanges() {
	for _, e := range t.entries {
		if e.state != Unchanged {
			continue
		}
		if !fieldjson.Equal(e.original, t.snapshot(e)) {
			e.state = Modified
		}
	}
}

// Changes runs change detection and returns one Change per entry whose
// state is neither Unchanged nor Detached, in registration order. The
// returned changes carry their own value snapshots: they stay authoritative
// after the flush invalidates the live tracking state, which is what makes
// the accept-without-detect step in the save pipeline safe.
func (t *Tracker) Changes() []Change {
	t.DetectChanges()
	changes := make([]Change, 0, len(t.entries))
	for _, e := range t.entries {
		switch e.state {
		case Added:
			changes = append(changes, Change{
				Kind:  KindAdded,
				Model: e.model,
				After: t.snapshot(e),
			})
		case Modified:
			changes = append(changes, Change{
				Kind:   KindModified,
				Model:  e.model,
				Before: e.original,
				After:  t.snapshot(e),
			})
		case Deleted:
			changes = append(changes, Change{
				Kind:   KindDeleted,
				Model:  e.model,
				Before: e.original,
			})
		}
	}
	return changes
}

// AcceptChanges marks every entry clean without re-running change
// detection: Added and Modified entries become Unchanged with fresh
// original snapshots, Deleted entries are detached. Callers must invoke
// this immediately after flushing, before any further detection pass, or
// already-flushed mutations would be re-perceived as pending.
func (t *Tracker) AcceptChanges() {
	for _, e := range t.entries {
		switch e.state {
		case Added, Modified:
			e.state = Unchanged
			e.original = t.snapshot(e)
		case Deleted:
			e.state = Detached
			delete(t.index, e.entity)
		}
	}
}

func (t *Tracker) track(entity any, state State) (*Entry, error) {
	if e, ok := t.index[entity]; ok {
		return e, fmt.Errorf("track %T: entity already tracked as %s", entity, e.state)
	}
	logical := unwrap(entity)
	model, err := t.registry.Model(logical)
	if err != nil {
		return nil, fmt.Errorf("track %T: %w", entity, err)
	}
	if reflect.ValueOf(logical).Kind() != reflect.Pointer {
		return nil, fmt.Errorf("track %T: entities must be pointers so mutations are observable", entity)
	}
	e := &Entry{
		entity:  entity,
		logical: logical,
		model:   model,
		state:   state,
	}
	if state != Added {
		e.original = t.snapshot(e)
	}
	t.entries = append(t.entries, e)
	t.index[entity] = e
	return e, nil
}

// snapshot reads the entry's persisted fields in model declaration order.
func (t *Tracker) snapshot(e *Entry) []fieldjson.Field {
	rv := reflect.ValueOf(e.logical).Elem()
	fields := make([]fieldjson.Field, 0, len(e.model.Fields))
	for _, f := range e.model.Fields {
		fields = append(fields, fieldjson.Field{
			Name:  f.Name,
			Value: rv.Field(f.Index).Interface(),
		})
	}
	return fields
}

func unwrap(entity any) any {
	for {
		w, ok := entity.(Wrapper)
		if !ok {
			return entity
		}
		entity = w.UnwrapEntity()
	}
}
