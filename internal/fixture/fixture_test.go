package fixture

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seedgraph/internal/batch"
	"github.com/roach88/seedgraph/internal/engine"
	"github.com/roach88/seedgraph/internal/schema"
)

func TestLoad_YAML(t *testing.T) {
	set, err := Load("testdata/library.yaml")
	require.NoError(t, err)

	require.Len(t, set.Registry.Descriptors(), 3)
	require.Len(t, set.Records, 4)

	book, ok := set.Registry.Lookup("book")
	require.True(t, ok)
	fk, ok := book.ForeignKey("shelf_code")
	require.True(t, ok)
	assert.Equal(t, "shelf", fk.References.Table)

	s1, ok := set.Record("s1")
	require.True(t, ok)
	floor, _ := s1.Get("floor")
	assert.Equal(t, int32(2), floor, "values are coerced to the field kind")

	b1, ok := set.Record("b1")
	require.True(t, ok)
	assert.Len(t, b1.References(), 2)
}

func TestLoad_CUE(t *testing.T) {
	set, err := Load("testdata/library.cue")
	require.NoError(t, err)

	require.Len(t, set.Records, 3)
	one, ok := set.Record("book-One")
	require.True(t, ok)
	title, _ := one.Get("title")
	assert.Equal(t, "One", title)
	require.Len(t, one.References(), 1)
	assert.Same(t, mustRecord(t, set, "ann"), one.References()[0].Target)

	author, ok := set.Registry.Lookup("author")
	require.True(t, ok)
	assert.Equal(t, schema.KeyAuto, author.KeyKind)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/nope.yaml")
	assert.Error(t, err)
}

func TestParseYAML_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseYAML([]byte("tabels: []\n"))
	assert.Error(t, err)
}

func TestBuild_Errors(t *testing.T) {
	base := func() *File {
		return &File{Tables: []Table{
			{Name: "a", Key: "id", KeyKind: "auto", Fields: []Field{{Name: "id", Kind: "int64"}}},
			{Name: "b", Key: "id", KeyKind: "auto", Fields: []Field{{Name: "id", Kind: "int64"}, {Name: "a_id", Kind: "int32"}}},
		}}
	}

	tests := []struct {
		name   string
		modify func(f *File)
	}{
		{"unknown kind", func(f *File) { f.Tables[0].Fields[0].Kind = "decimal" }},
		{"unknown key kind", func(f *File) { f.Tables[0].KeyKind = "serial" }},
		{"narrowing reference", func(f *File) { f.Tables[1].References = []Reference{{Field: "a_id", Table: "a"}} }},
		{"unknown table", func(f *File) { f.Records = []Record{{Table: "zzz", Name: "x"}} }},
		{"unnamed record", func(f *File) { f.Records = []Record{{Table: "a"}} }},
		{"duplicate name", func(f *File) { f.Records = []Record{{Table: "a", Name: "x"}, {Table: "a", Name: "x"}} }},
		{"unknown field", func(f *File) { f.Records = []Record{{Table: "a", Name: "x", Values: map[string]any{"nope": 1}}} }},
		{"bad value", func(f *File) { f.Records = []Record{{Table: "a", Name: "x", Values: map[string]any{"id": "abc"}}} }},
		{"unknown ref target", func(f *File) {
			f.Records = []Record{{Table: "b", Name: "x", Refs: map[string]string{"a_id": "missing"}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base()
			tt.modify(f)
			_, err := f.Build()
			assert.Error(t, err)
		})
	}
}

func TestBuild_NarrowingRefIsIntegrityError(t *testing.T) {
	f := &File{
		Tables: []Table{
			{Name: "a", Key: "id", KeyKind: "auto", Fields: []Field{{Name: "id", Kind: "int64"}}},
			{Name: "b", Key: "id", KeyKind: "auto", Fields: []Field{{Name: "id", Kind: "int64"}, {Name: "a_id", Kind: "int32"}}},
		},
		Records: []Record{
			{Table: "a", Name: "x"},
			{Table: "b", Name: "y", Refs: map[string]string{"a_id": "x"}},
		},
	}
	_, err := f.Build()
	assert.True(t, schema.IsIntegrityError(err))
}

func TestLoad_PersistsThroughEngine(t *testing.T) {
	set, err := Load("testdata/library.yaml")
	require.NoError(t, err)

	sink := batch.NewMemorySink()
	p := engine.New(sink, sink,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithValueFunc(NewGenerator(7).Value),
	)
	report, err := p.Persist(context.Background(), set.Handles()...)
	require.NoError(t, err)
	assert.Len(t, report.Writes, 4)

	b1 := mustRecord(t, set, "b1")
	b2 := mustRecord(t, set, "b2")
	code, _ := mustRecord(t, set, "s1").Get("code")
	assert.Equal(t, "A", code)
	for _, b := range []*schema.Record{b1, b2} {
		v, _ := b.Get("shelf_code")
		assert.Equal(t, "A", v)
		v, _ = b.Get("author_id")
		assert.Equal(t, int64(1), v)
	}

	title, _ := b1.Get("title")
	assert.Equal(t, "First", title, "declared values are not regenerated")
	title, _ = b2.Get("title")
	assert.Equal(t, "title 1", title)
}

func TestGenerator_Deterministic(t *testing.T) {
	desc := &schema.Descriptor{Table: "t"}
	fields := []schema.Field{
		{Name: "i", Kind: schema.KindInt32},
		{Name: "l", Kind: schema.KindInt64},
		{Name: "u", Kind: schema.KindUUID},
		{Name: "b", Kind: schema.KindBool},
		{Name: "f", Kind: schema.KindFloat64},
		{Name: "ts", Kind: schema.KindTime},
		{Name: "raw", Kind: schema.KindBytes},
	}

	a, b := NewGenerator(42), NewGenerator(42)
	for _, f := range fields {
		va, err := a.Value(desc, f)
		require.NoError(t, err)
		vb, err := b.Value(desc, f)
		require.NoError(t, err)
		assert.Equal(t, va, vb, f.Name)
	}
}

func TestGenerator_Kinds(t *testing.T) {
	g := NewGenerator(1)
	desc := &schema.Descriptor{Table: "t"}

	v, err := g.Value(desc, schema.Field{Name: "n", Kind: schema.KindInt32})
	require.NoError(t, err)
	assert.IsType(t, int32(0), v)

	v, err = g.Value(desc, schema.Field{Name: "id", Kind: schema.KindUUID})
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), v.(uuid.UUID).Version())

	v, err = g.Value(desc, schema.Field{Name: "at", Kind: schema.KindTime})
	require.NoError(t, err)
	assert.False(t, v.(time.Time).Before(epoch))

	v, err = g.Value(desc, schema.Field{Name: "label", Kind: schema.KindString, MaxLength: 3})
	require.NoError(t, err)
	assert.Len(t, v, 3)

	_, err = g.Value(desc, schema.Field{Name: "bad", Kind: schema.KindInvalid})
	assert.Error(t, err)
}

func TestGenerator_StringsCountPerColumn(t *testing.T) {
	g := NewGenerator(1)
	a := &schema.Descriptor{Table: "a"}
	f := schema.Field{Name: "title", Kind: schema.KindString}

	v1, _ := g.Value(a, f)
	v2, _ := g.Value(a, f)
	v3, _ := g.Value(&schema.Descriptor{Table: "b"}, f)
	assert.Equal(t, []any{"title 1", "title 2", "title 1"}, []any{v1, v2, v3})
}

func mustRecord(t *testing.T, set *Set, name string) *schema.Record {
	t.Helper()
	r, ok := set.Record(name)
	require.True(t, ok, name)
	return r
}
