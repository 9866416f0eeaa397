package fieldjson_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chronicle/fieldjson"
)

func TestSerialize_NumericAndStringRendering(t *testing.T) {
	tests := []struct {
		name   string
		fields []fieldjson.Field
		want   string
	}{
		{
			name: "ints unquoted, strings quoted",
			fields: []fieldjson.Field{
				{Name: "Age", Value: 30},
				{Name: "Name", Value: "Ann"},
			},
			want: `{ "Age":30, "Name":"Ann" }`,
		},
		{
			name:   "floats unquoted",
			fields: []fieldjson.Field{{Name: "Score", Value: 3.5}},
			want:   `{ "Score":3.5 }`,
		},
		{
			name:   "nil renders as null",
			fields: []fieldjson.Field{{Name: "Note", Value: nil}},
			want:   `{ "Note":null }`,
		},
		{
			name:   "nil pointer renders as null",
			fields: []fieldjson.Field{{Name: "Note", Value: (*string)(nil)}},
			want:   `{ "Note":null }`,
		},
		{
			name: "unsigned and wide ints",
			fields: []fieldjson.Field{
				{Name: "A", Value: uint8(7)},
				{Name: "B", Value: int64(-9000000000)},
			},
			want: `{ "A":7, "B":-9000000000 }`,
		},
		{
			name:   "pointer to number dereferences",
			fields: []fieldjson.Field{{Name: "N", Value: ptr(42)}},
			want:   `{ "N":42 }`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fieldjson.Serialize(tt.fields))
		})
	}
}

func TestSerialize_EmptySnapshotIsCanonical(t *testing.T) {
	assert.Equal(t, "{ }", fieldjson.Serialize(nil))
	assert.Equal(t, "{ }", fieldjson.Serialize([]fieldjson.Field{}))
	assert.Equal(t, "{ }", fieldjson.Empty)
}

func TestSerialize_Deterministic(t *testing.T) {
	fields := []fieldjson.Field{
		{Name: "Id", Value: 7},
		{Name: "Name", Value: "Ann"},
		{Name: "Score", Value: 1.25},
	}
	first := fieldjson.Serialize(fields)
	second := fieldjson.Serialize(fields)
	assert.Equal(t, first, second)
}

func TestSerialize_OrderIsPreserved(t *testing.T) {
	forward := fieldjson.Serialize([]fieldjson.Field{
		{Name: "A", Value: 1}, {Name: "B", Value: 2},
	})
	reversed := fieldjson.Serialize([]fieldjson.Field{
		{Name: "B", Value: 2}, {Name: "A", Value: 1},
	})
	assert.Equal(t, `{ "A":1, "B":2 }`, forward)
	assert.Equal(t, `{ "B":2, "A":1 }`, reversed)
}

func TestSerialize_StringsAreNotEscaped(t *testing.T) {
	// Documented limitation: embedded quotes pass through verbatim.
	got := fieldjson.Serialize([]fieldjson.Field{{Name: "Q", Value: `say "hi"`}})
	assert.Equal(t, `{ "Q":"say "hi"" }`, got)
}

func TestEqual(t *testing.T) {
	a := []fieldjson.Field{{Name: "Id", Value: 7}}
	b := []fieldjson.Field{{Name: "Id", Value: int64(7)}}
	c := []fieldjson.Field{{Name: "Id", Value: 8}}

	assert.True(t, fieldjson.Equal(a, b), "same rendered text compares equal")
	assert.False(t, fieldjson.Equal(a, c))
	assert.False(t, fieldjson.Equal(a, nil))
}

func ptr[T any](v T) *T { return &v }
