// Package fieldjson renders ordered field snapshots into the textual form
// stored in audit records. The format is JSON-shaped but deliberately not
// JSON: a space follows the opening brace and precedes the closing one,
// field order is the order the snapshot was taken in, and string values are
// quoted without escaping. The format is frozen because already-written
// history depends on it, so it is produced by hand here rather than through
// a marshaller.
package fieldjson

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Field is one named value in a snapshot. Snapshots are slices, not maps,
// because the enumeration order of the source properties must survive.
type Field struct {
	Name  string
	Value any
}

// Empty is the canonical serialization of a snapshot with no fields.
var Empty = Serialize(nil)

// Serialize renders a snapshot as `{ "k1":v1, "k2":v2 }`. Numeric values
// are emitted unquoted, nil values as the literal null, and everything else
// as its string form in double quotes.
//
// Known limitation: embedded quotes and control characters in string values
// are not escaped, so such values produce malformed output. This mirrors
// the historical on-disk format and must not be "fixed" silently.
func Serialize(fields []Field) string {
	var b strings.Builder
	b.WriteString("{ ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('"')
		b.WriteString(f.Name)
		b.WriteString(`":`)
		b.WriteString(Render(f.Value))
	}
	b.WriteString(" }")
	if len(fields) == 0 {
		// Normalize the zero-field case to a single interior space.
		return "{ }"
	}
	return b.String()
}

// Render converts a single value to its serialized text.
func Render(v any) string {
	if v == nil {
		return "null"
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "null"
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	default:
		return `"` + fmt.Sprint(rv.Interface()) + `"`
	}
}

// Equal reports whether two snapshots serialize to the same text. Used by
// change detection so that "changed" means exactly "the audit trail would
// differ".
func Equal(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || Render(a[i].Value) != Render(b[i].Value) {
			return false
		}
	}
	return true
}
