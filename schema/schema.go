// Package schema resolves entity struct types to their storage metadata:
// table name, column names, and declared key fields. It is the library's
// stand-in for an ORM's model catalog.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/jinzhu/inflection"
)

// ErrNotMapped is returned when a type cannot be resolved to a table.
// Stores and engines return it (optionally wrapped) so callers can
// classify the failure with errors.Is.
var ErrNotMapped = errors.New("type is not a mapped entity")

// Tabler overrides the derived table name for an entity type.
type Tabler interface {
	TableName() string
}

// Field describes one persisted struct field.
type Field struct {
	// Name is the Go field name; snapshots and audit serializations use it.
	Name string
	// Column is the storage column name, from the db tag or derived as
	// snake_case of Name.
	Column string
	// Index is the field's index within the struct.
	Index int
	// Key marks the field as (part of) the primary key.
	Key bool
}

// Model is the resolved metadata for one entity type.
type Model struct {
	// Type is the logical struct type (never a wrapper).
	Type reflect.Type
	// Name is the fully-qualified type name, e.g. "models.Customer".
	Name string
	// Table is the resolved physical table name.
	Table string
	// Fields holds persisted fields in declaration order.
	Fields []Field
}

// KeyFields returns the declared key fields in declaration order. A model
// may legitimately declare none; identity serialization then yields the
// empty object.
func (m *Model) KeyFields() []Field {
	keys := make([]Field, 0, 1)
	for _, f := range m.Fields {
		if f.Key {
			keys = append(keys, f)
		}
	}
	return keys
}

// Field looks up a persisted field by Go name.
func (m *Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Registry caches Model metadata per entity type. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[reflect.Type]*Model
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[reflect.Type]*Model)}
}

// Model resolves the metadata for an entity instance or reflect.Type.
// Pointer types are unwrapped to their element struct.
func (r *Registry) Model(entity any) (*Model, error) {
	if entity == nil {
		return nil, fmt.Errorf("resolve model for nil entity: %w", ErrNotMapped)
	}
	t, ok := entity.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(entity)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("resolve model for %s: %w", t, ErrNotMapped)
	}

	r.mu.RLock()
	m, hit := r.models[t]
	r.mu.RUnlock()
	if hit {
		return m, nil
	}

	m, err := buildModel(t)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.models[t] = m
	r.mu.Unlock()
	return m, nil
}

func buildModel(t reflect.Type) (*Model, error) {
	m := &Model{
		Type:  t,
		Name:  t.String(),
		Table: tableName(t),
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		column, key, skip := parseTag(sf.Tag.Get("db"))
		if skip {
			continue
		}
		if column == "" {
			column = toSnake(sf.Name)
		}
		m.Fields = append(m.Fields, Field{
			Name:   sf.Name,
			Column: column,
			Index:  i,
			Key:    key,
		})
	}
	if len(m.Fields) == 0 {
		return nil, fmt.Errorf("resolve model for %s: no persisted fields: %w", t, ErrNotMapped)
	}
	return m, nil
}

// parseTag splits a `db:"column,opts"` tag. A bare "-" excludes the field.
func parseTag(tag string) (column string, key, skip bool) {
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	column = parts[0]
	for _, opt := range parts[1:] {
		if opt == "pk" {
			key = true
		}
	}
	return column, key, false
}

func tableName(t reflect.Type) string {
	if tabler, ok := reflect.New(t).Interface().(Tabler); ok {
		return tabler.TableName()
	}
	return inflection.Plural(toSnake(t.Name()))
}

func toSnake(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// Break before an upper rune that starts a new word, including
			// the tail of an acronym run (HTTPServer -> http_server).
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && !unicode.IsUpper(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
