package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seedgraph/internal/resolver"
	"github.com/roach88/seedgraph/internal/schema"
)

func TestCursor_ExactReads(t *testing.T) {
	c := NewCursor([]any{"id", int64(1), "id", int64(2)})

	got, err := c.Next(2)
	require.NoError(t, err)
	assert.Equal(t, []any{"id", int64(1)}, got)

	got, err = c.Next(0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = c.Next(2)
	require.NoError(t, err)
	assert.Equal(t, []any{"id", int64(2)}, got)

	assert.Equal(t, 4, c.Pos())
	assert.NoError(t, c.Close())
}

func TestCursor_ShortStreamIsDesync(t *testing.T) {
	c := NewCursor([]any{"id"})
	_, err := c.Next(2)
	assert.ErrorIs(t, err, ErrDesync)
	assert.Equal(t, 0, c.Pos(), "failed read consumes nothing")

	_, err = c.Next(-1)
	assert.ErrorIs(t, err, ErrDesync)
}

func TestCursor_LeftoverIsDesync(t *testing.T) {
	c := NewCursor([]any{"id", int64(1)})
	assert.ErrorIs(t, c.Close(), ErrDesync)
	assert.Equal(t, 2, c.Remaining())
}

func TestColumn_Resolve(t *testing.T) {
	v, err := Value("name", "x").Resolve()
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	cell := &Lazy{}
	col := LazyColumn("code", cell)
	_, err = col.Resolve()
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.False(t, cell.Resolved())

	cell.Set("BCD")
	v, err = col.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "BCD", v)

	sym := SymbolColumn("parent_id", Symbol{ID: 1, Table: "parent", Column: "id"})
	assert.True(t, sym.IsSymbol())
	_, err = sym.Resolve()
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.Equal(t, "@parent_id_1", sym.Symbol.String())
}

func TestMemorySink_GeneratedKeysFlowToDependents(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()

	require.NoError(t, s.Insert("parent", []Column{Value("name", "p")}))
	sym, err := s.SelectGeneratedKey("parent", "id")
	require.NoError(t, err)
	require.NoError(t, s.Insert("child", []Column{SymbolColumn("parent_id", sym)}))
	_, err = s.SelectGeneratedKey("child", "id")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Pending())

	tokens, err := s.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"id", int64(1), "id", int64(1)}, tokens)
	assert.Equal(t, 0, s.Pending(), "buffer cleared")

	children := s.Rows("child")
	require.Len(t, children, 1)
	assert.Equal(t, int64(1), children[0]["parent_id"])

	// The next batch continues the key sequence and restarts symbol ids.
	require.NoError(t, s.Insert("parent", []Column{Value("name", "q")}))
	sym, err = s.SelectGeneratedKey("parent", "id")
	require.NoError(t, err)
	assert.Equal(t, 1, sym.ID)
	tokens, err = s.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"id", int64(2)}, tokens)
	assert.Equal(t, 2, s.Executions())
}

func TestMemorySink_ManualKeyIsEchoed(t *testing.T) {
	s := NewMemorySink()
	require.NoError(t, s.Insert("t", []Column{Value("id", int64(77))}))
	_, err := s.SelectGeneratedKey("t", "id")
	require.NoError(t, err)
	tokens, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"id", int64(77)}, tokens)
}

func TestMemorySink_FailedBatchAppliesNothing(t *testing.T) {
	s := NewMemorySink()
	require.NoError(t, s.Insert("t", []Column{Value("id", int64(1))}))
	require.NoError(t, s.Insert("t", []Column{LazyColumn("code", &Lazy{})}))

	_, err := s.Execute(context.Background())
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.Empty(t, s.Rows("t"))
	assert.Equal(t, 0, s.Pending())
}

func TestMemorySink_KeySelectWithoutInsert(t *testing.T) {
	s := NewMemorySink()
	_, err := s.SelectGeneratedKey("t", "id")
	require.NoError(t, err)
	_, err = s.Execute(context.Background())
	assert.Error(t, err)
}

func TestMemorySink_UnknownSymbol(t *testing.T) {
	s := NewMemorySink()
	require.NoError(t, s.Insert("child", []Column{SymbolColumn("parent_id", Symbol{ID: 9, Table: "parent", Column: "id"})}))
	_, err := s.Execute(context.Background())
	assert.Error(t, err)
}

func TestMemorySink_RawStatementsRecorded(t *testing.T) {
	s := NewMemorySink()
	require.NoError(t, s.AddRawStatement("PRAGMA defer_foreign_keys = ON"))
	tokens, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tokens)
	assert.Equal(t, []string{"PRAGMA defer_foreign_keys = ON"}, s.RawStatements())
}

func TestMemorySink_InitialCount(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()
	idRef := resolver.FieldRef{Table: "t", Field: schema.Field{Name: "id", Kind: schema.KindInt64}}
	codeRef := resolver.FieldRef{Table: "t", Field: schema.Field{Name: "code", Kind: schema.KindString}}

	c, err := s.InitialCount(ctx, idRef, 1)
	require.NoError(t, err)
	assert.Equal(t, "1", c.String())

	require.NoError(t, s.Insert("t", []Column{Value("id", int64(5)), Value("code", "BA")}))
	require.NoError(t, s.Insert("t", []Column{Value("id", int64(-3)), Value("code", "C")}))
	_, err = s.Execute(ctx)
	require.NoError(t, err)

	c, err = s.InitialCount(ctx, idRef, 1)
	require.NoError(t, err)
	assert.Equal(t, "6", c.String())

	c, err = s.InitialCount(ctx, codeRef, 1)
	require.NoError(t, err)
	assert.Equal(t, "27", c.String(), "BA is 26")
}
