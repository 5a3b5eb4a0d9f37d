package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seedgraph/internal/engine"
	"github.com/roach88/seedgraph/internal/testutil"
)

func libraryTrace() []TraceEvent {
	return []TraceEvent{
		{Run: 1, Batch: 1, Index: 0, Table: "author", Record: "author/ann", Key: int64(1)},
		{Run: 1, Batch: 1, Index: 1, Table: "shelf", Record: "shelf/s1", Key: "A"},
		{Run: 1, Batch: 1, Index: 2, Table: "book", Record: "book/b1", Key: int64(1)},
	}
}

func TestAssertWriteOrder_Correct(t *testing.T) {
	err := assertWriteOrder(libraryTrace(), Assertion{Type: AssertWriteOrder, Tables: []string{"author", "book"}})
	assert.NoError(t, err, "intervening tables are allowed")
}

func TestAssertWriteOrder_WrongOrder(t *testing.T) {
	err := assertWriteOrder(libraryTrace(), Assertion{Type: AssertWriteOrder, Tables: []string{"book", "shelf"}})
	require.Error(t, err)

	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, AssertWriteOrder, assertErr.Type)
	assert.Contains(t, assertErr.Actual, "book (pos 3) should be before shelf (pos 2)")
}

func TestAssertWriteOrder_MissingTable(t *testing.T) {
	err := assertWriteOrder(libraryTrace(), Assertion{Type: AssertWriteOrder, Tables: []string{"author", "loan"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no write to loan")
}

func TestAssertRowCount(t *testing.T) {
	state := map[string][]map[string]any{"book": {{"id": int64(1)}, {"id": int64(2)}}}

	assert.NoError(t, assertRowCount(state, Assertion{Table: "book", Count: 2}))
	assert.NoError(t, assertRowCount(state, Assertion{Table: "loan", Count: 0}), "absent table has no rows")
	assert.Error(t, assertRowCount(state, Assertion{Table: "book", Count: 1}))
}

func TestAssertFinalState(t *testing.T) {
	state := map[string][]map[string]any{
		"book": {
			{"id": int64(1), "title": "First", "author_id": int64(1), "shelf_code": "A"},
			{"id": int64(2), "title": "title 1", "author_id": int64(1), "shelf_code": "A"},
		},
	}

	tests := []struct {
		name    string
		where   map[string]any
		expect  map[string]any
		wantErr string
	}{
		{name: "match", where: map[string]any{"id": 1}, expect: map[string]any{"title": "First"}},
		{name: "empty expect", where: map[string]any{"title": "title 1"}},
		{name: "not found", where: map[string]any{"id": 9}, wantErr: "row not found"},
		{name: "ambiguous", where: map[string]any{"author_id": 1}, wantErr: "2 rows matched"},
		{name: "value mismatch", where: map[string]any{"id": 2}, expect: map[string]any{"title": "First"}, wantErr: `field "title" = title 1`},
		{name: "missing column", where: map[string]any{"id": 2}, expect: map[string]any{"isbn": "x"}, wantErr: `field "isbn" not present`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(state, Assertion{Type: AssertFinalState, Table: "book", Where: tt.where, Expect: tt.expect})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertBrokenEdge(t *testing.T) {
	result := NewResult()
	result.Broken = []engine.BrokenEdge{{Table: "b", Record: "b/second", Field: "a_id", Target: "a/first"}}

	assert.NoError(t, assertBrokenEdge(result, Assertion{Record: "b/second", Field: "a_id"}))

	err := assertBrokenEdge(result, Assertion{Record: "a/first", Field: "b_id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a/first.b_id left empty")
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs value", nil, int64(0), false},
		{"int vs int64", 2, int64(2), true},
		{"int vs int32", 2, int32(2), true},
		{"int mismatch", 2, int64(3), false},
		{"int vs float", 2, 2.0, true},
		{"int vs string", 2, "2", false},
		{"bool vs bool", true, true, true},
		{"bool vs sqlite int", true, int64(1), true},
		{"false vs sqlite int", false, int64(1), false},
		{"float vs float", 1.5, 1.5, true},
		{"string vs string", "A", "A", true},
		{"string vs uuid", testutil.GUID(1).String(), testutil.GUID(1), true},
		{"string mismatch", "A", "B", false},
		{"bytes", []byte("x"), []byte("x"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateValuesEqual(tt.expected, tt.actual))
		})
	}
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	result := NewResult()
	result.Trace = libraryTrace()
	result.State["book"] = []map[string]any{{"id": int64(1)}}

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertWriteOrder, Tables: []string{"author", "book"}},
		{Type: AssertRowCount, Table: "book", Count: 3},
		{Type: "bogus"},
	})
	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "assertions[1]")
	assert.Contains(t, failures[1], `unknown assertion type "bogus"`)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertWriteOrder,
		Expected: "tables in order: [book author]",
		Actual:   "book (pos 3) should be before author (pos 1)",
		Trace:    libraryTrace(),
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: write_order")
	assert.Contains(t, msg, "Expected: tables in order")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[run 1 #1] shelf/s1 key=A")
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "code=A AND id=1", formatWhereClause(map[string]any{"id": 1, "code": "A"}))
}
