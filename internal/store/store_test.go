package store

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seedgraph/internal/engine"
	"github.com/roach88/seedgraph/internal/schema"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func quiet() engine.Option {
	return engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func parentChild() (parent, child *schema.Descriptor) {
	parent = &schema.Descriptor{
		Table:   "parent",
		Fields:  []schema.Field{{Name: "id", Kind: schema.KindInt64}, {Name: "name", Kind: schema.KindString}},
		Key:     "id",
		KeyKind: schema.KeyAuto,
	}
	child = &schema.Descriptor{
		Table: "child",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.KindInt64},
			{Name: "parent_id", Kind: schema.KindInt64},
		},
		Key:         "id",
		KeyKind:     schema.KeyAuto,
		ForeignKeys: []schema.ForeignKey{{Field: "parent_id", References: parent}},
	}
	return parent, child
}

// ============================================================================
// Open
// ============================================================================

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='seedgraph_batches'").Scan(&name)
	if err != nil {
		t.Errorf("journal table not found after idempotent opens: %v", err)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"user_version": "1",
	} {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestOpenDriver_UnknownDialect(t *testing.T) {
	_, err := OpenDriver("oracle", "")
	assert.Error(t, err)
}

// ============================================================================
// Tables
// ============================================================================

func TestCreationOrder_ReferencedFirst(t *testing.T) {
	parent, child := parentChild()
	order := CreationOrder(child, parent)
	require.Len(t, order, 2)
	assert.Equal(t, "parent", order[0].Table)
	assert.Equal(t, "child", order[1].Table)
}

func TestCreationOrder_Cycle(t *testing.T) {
	a := &schema.Descriptor{Table: "a", Fields: []schema.Field{{Name: "id", Kind: schema.KindInt64}, {Name: "b_id", Kind: schema.KindInt64}}, Key: "id", KeyKind: schema.KeyAuto}
	b := &schema.Descriptor{Table: "b", Fields: []schema.Field{{Name: "id", Kind: schema.KindInt64}, {Name: "a_id", Kind: schema.KindInt64}}, Key: "id", KeyKind: schema.KeyAuto}
	a.ForeignKeys = []schema.ForeignKey{{Field: "b_id", References: b}}
	b.ForeignKeys = []schema.ForeignKey{{Field: "a_id", References: a}}

	order := CreationOrder(a, b)
	require.Len(t, order, 2)
	assert.Equal(t, "b", order[0].Table)
	assert.Equal(t, "a", order[1].Table)
}

func TestEnsureTables(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, child := parentChild()

	require.NoError(t, s.EnsureTables(ctx, child))
	require.NoError(t, s.EnsureTables(ctx, child), "idempotent")

	n, err := s.Count(ctx, "parent")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// ============================================================================
// Bind
// ============================================================================

func TestBind_ParentChild(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	parent, child := parentChild()
	require.NoError(t, s.EnsureTables(ctx, parent, child))

	par := schema.NewRecord(parent, "p").With("name", "first")
	kid := schema.NewRecord(child, "k").MustRef("parent_id", par)

	report, err := s.Bind(ctx, []schema.RecordHandle{kid}, quiet())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Tokens)

	parentID, _ := par.Get("id")
	childID, _ := kid.Get("id")
	fkID, _ := kid.Get("parent_id")
	assert.Equal(t, int64(1), parentID)
	assert.Equal(t, int64(1), childID)
	assert.Equal(t, parentID, fkID)

	rows, err := s.Rows(ctx, "child")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["parent_id"])

	journal, err := s.Journal(ctx)
	require.NoError(t, err)
	require.Len(t, journal, 1)
	assert.Equal(t, 2, journal[0].Records)
	assert.Equal(t, "child,parent", journal[0].Tables)
}

func TestBind_LaterBatchReferencesStoredRecords(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	parent, child := parentChild()
	require.NoError(t, s.EnsureTables(ctx, parent, child))

	par := schema.NewRecord(parent, "p").With("name", "first")
	_, err := s.Bind(ctx, []schema.RecordHandle{par}, quiet())
	require.NoError(t, err)

	second := schema.NewRecord(parent, "q").With("name", "second")
	k1 := schema.NewRecord(child, "k1").MustRef("parent_id", par)
	k2 := schema.NewRecord(child, "k2").MustRef("parent_id", second)
	report, err := s.Bind(ctx, []schema.RecordHandle{k1, k2}, quiet())
	require.NoError(t, err)
	assert.Len(t, report.Writes, 3, "stored parent is not written again")

	n, err := s.Count(ctx, "parent")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, _ := k2.Get("parent_id")
	assert.Equal(t, int64(2), v)
	v, _ = k1.Get("parent_id")
	assert.Equal(t, int64(1), v)

	journal, err := s.Journal(ctx)
	require.NoError(t, err)
	require.Len(t, journal, 2)
	assert.Equal(t, []int64{1, 2}, []int64{journal[0].Seq, journal[1].Seq})
}

func TestBind_BatchNumbersContinueAfterReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")
	parent, _ := parentChild()

	for i := 0; i < 2; i++ {
		s, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, s.EnsureTables(ctx, parent))
		report, err := s.Bind(ctx, []schema.RecordHandle{schema.NewRecord(parent, "p").With("name", "x")}, quiet())
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), report.Batch)
		require.NoError(t, s.Close())
	}
}

func TestBind_DeferredKeysContinueAfterStoredMaximum(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	tag := &schema.Descriptor{
		Table:   "tag",
		Fields:  []schema.Field{{Name: "code", Kind: schema.KindString, MaxLength: 3}},
		Key:     "code",
		KeyKind: schema.KeyManual,
	}
	require.NoError(t, s.EnsureTables(ctx, tag))
	_, err := s.DB().ExecContext(ctx, `INSERT INTO tag (code) VALUES ('Z')`)
	require.NoError(t, err)

	a := schema.NewRecord(tag, "a")
	b := schema.NewRecord(tag, "b")
	_, err = s.Bind(ctx, []schema.RecordHandle{a, b}, quiet())
	require.NoError(t, err)

	codeA, _ := a.Get("code")
	codeB, _ := b.Get("code")
	assert.Equal(t, "BA", codeA)
	assert.Equal(t, "BB", codeB)
}

func TestBind_CycleLeavesNull(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	a := &schema.Descriptor{Table: "a", Fields: []schema.Field{{Name: "id", Kind: schema.KindInt64}, {Name: "b_id", Kind: schema.KindInt64}}, Key: "id", KeyKind: schema.KeyAuto}
	b := &schema.Descriptor{Table: "b", Fields: []schema.Field{{Name: "id", Kind: schema.KindInt64}, {Name: "a_id", Kind: schema.KindInt64}}, Key: "id", KeyKind: schema.KeyAuto}
	a.ForeignKeys = []schema.ForeignKey{{Field: "b_id", References: b}}
	b.ForeignKeys = []schema.ForeignKey{{Field: "a_id", References: a}}
	require.NoError(t, s.EnsureTables(ctx, a, b))

	ra := schema.NewRecord(a, "a")
	rb := schema.NewRecord(b, "b").MustRef("a_id", ra)
	ra.MustRef("b_id", rb)

	report, err := s.Bind(ctx, []schema.RecordHandle{ra}, quiet())
	require.NoError(t, err)
	require.Len(t, report.Broken, 1)

	rows, err := s.Rows(ctx, "b")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0]["a_id"])

	rows, err = s.Rows(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows[0]["b_id"])
}

func TestBind_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	parent, child := parentChild()
	require.NoError(t, s.EnsureTables(ctx, parent)) // no child table

	par := schema.NewRecord(parent, "p").With("name", "x")
	kid := schema.NewRecord(child, "k").MustRef("parent_id", par)
	_, err := s.Bind(ctx, []schema.RecordHandle{kid}, quiet())
	require.Error(t, err)

	n, err := s.Count(ctx, "parent")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "parent insert rolled back")

	journal, err := s.Journal(ctx)
	require.NoError(t, err)
	assert.Empty(t, journal)
}

// ============================================================================
// Transactions
// ============================================================================

func TestWithTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, err := s.DB().ExecContext(ctx, `CREATE TABLE t (n INTEGER)`)
	require.NoError(t, err)

	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t (n) VALUES (1)`)
		return err
	}))

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO t (n) VALUES (2)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx *sql.Tx) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO t (n) VALUES (3)`)
			panic("kaboom")
		})
	})

	n, err := s.Count(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
