package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/seedgraph/internal/batch"
)

// RecordingSink wraps a batch.Sink and keeps a log of every call.
//
// Each queued statement is logged as a short line ("insert child
// [id parent_id]", "key child.id", "raw VACUUM"), and each Execute adds an
// "execute" line. The token stream of the last Execute is kept for
// assertions on read-back order.
type RecordingSink struct {
	batch.Sink

	mu     sync.Mutex
	calls  []string
	tokens []any
}

// NewRecordingSink wraps inner.
func NewRecordingSink(inner batch.Sink) *RecordingSink {
	return &RecordingSink{Sink: inner}
}

func (r *RecordingSink) log(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *RecordingSink) Insert(table string, columns []batch.Column) error {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	r.log("insert %s [%s]", table, strings.Join(names, " "))
	return r.Sink.Insert(table, columns)
}

func (r *RecordingSink) AddRawStatement(text string) error {
	r.log("raw %s", text)
	return r.Sink.AddRawStatement(text)
}

func (r *RecordingSink) SelectGeneratedKey(table, column string) (batch.Symbol, error) {
	r.log("key %s.%s", table, column)
	return r.Sink.SelectGeneratedKey(table, column)
}

func (r *RecordingSink) Execute(ctx context.Context) ([]any, error) {
	r.log("execute")
	tokens, err := r.Sink.Execute(ctx)
	r.mu.Lock()
	r.tokens = tokens
	r.mu.Unlock()
	return tokens, err
}

// Reset forwards to the wrapped sink when it supports it.
func (r *RecordingSink) Reset() {
	r.log("reset")
	if rs, ok := r.Sink.(batch.Resetter); ok {
		rs.Reset()
	}
}

// Calls returns the call log.
func (r *RecordingSink) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// LastTokens returns the token stream of the most recent Execute.
func (r *RecordingSink) LastTokens() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens
}
