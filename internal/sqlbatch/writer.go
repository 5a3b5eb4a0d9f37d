package sqlbatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/seedgraph/internal/batch"
	"github.com/roach88/seedgraph/internal/bigcount"
	"github.com/roach88/seedgraph/internal/resolver"
)

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type stmtKind int

const (
	stmtInsert stmtKind = iota
	stmtCapture
	stmtRaw
)

type statement struct {
	kind    stmtKind
	table   string
	columns []batch.Column
	ord     int
	column  string
	raw     string
}

// Writer is a batch.Sink that renders its statements as one SQL script.
// Generated-key symbols are numbered per batch, starting at 1.
type Writer struct {
	q        Querier
	d        Dialect
	stmts    []statement
	captures int
}

// NewWriter returns a writer executing against q. q may be nil when the
// writer is only used to render scripts.
func NewWriter(q Querier, d Dialect) *Writer {
	return &Writer{q: q, d: d}
}

// Dialect returns the writer's dialect.
func (w *Writer) Dialect() Dialect { return w.d }

func (w *Writer) Insert(table string, columns []batch.Column) error {
	w.stmts = append(w.stmts, statement{kind: stmtInsert, table: table, columns: append([]batch.Column(nil), columns...)})
	return nil
}

func (w *Writer) AddRawStatement(text string) error {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ";"))
	if text == "" {
		return fmt.Errorf("sqlbatch: empty raw statement")
	}
	w.stmts = append(w.stmts, statement{kind: stmtRaw, raw: text})
	return nil
}

func (w *Writer) SelectGeneratedKey(table, column string) (batch.Symbol, error) {
	w.captures++
	w.stmts = append(w.stmts, statement{kind: stmtCapture, table: table, column: column, ord: w.captures})
	return batch.Symbol{ID: w.captures, Table: table, Column: column}, nil
}

// Len returns the number of queued statements.
func (w *Writer) Len() int { return len(w.stmts) }

// Script renders the queued statements without executing or clearing them.
func (w *Writer) Script() (string, error) {
	var parts []string
	if w.captures > 0 {
		parts = append(parts, w.d.Prelude()...)
	}
	for i, st := range w.stmts {
		s, err := w.render(st)
		if err != nil {
			return "", fmt.Errorf("statement %d: %w", i, err)
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, ";\n") + ";", nil
}

func (w *Writer) render(st statement) (string, error) {
	switch st.kind {
	case stmtRaw:
		return st.raw, nil
	case stmtCapture:
		return w.d.CaptureKey(st.ord, st.table, st.column), nil
	}
	names := make([]string, 0, len(st.columns))
	values := make([]string, 0, len(st.columns))
	for _, col := range st.columns {
		names = append(names, col.Name)
		if col.Symbol != nil {
			if col.Symbol.ID < 1 || col.Symbol.ID > w.captures {
				return "", fmt.Errorf("column %s: %s is not part of this batch", col.Name, col.Symbol)
			}
			values = append(values, w.d.SymbolRef(col.Symbol.ID))
			continue
		}
		v, err := col.Resolve()
		if err != nil {
			return "", err
		}
		lit, err := w.d.Literal(v)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col.Name, err)
		}
		values = append(values, lit)
	}
	return insertSQL(w.d, st.table, names, values), nil
}

// Reset discards queued statements.
func (w *Writer) Reset() {
	w.stmts = nil
	w.captures = 0
}

// Execute sends the script in one ExecContext call, then reads the
// captured keys. The returned tokens alternate column name and value.
func (w *Writer) Execute(ctx context.Context) ([]any, error) {
	defer w.Reset()
	if len(w.stmts) == 0 {
		return nil, nil
	}
	if w.q == nil {
		return nil, fmt.Errorf("sqlbatch: writer has no connection")
	}
	script, err := w.Script()
	if err != nil {
		return nil, fmt.Errorf("render batch: %w", err)
	}
	if _, err := w.q.ExecContext(ctx, script); err != nil {
		return nil, fmt.Errorf("execute batch: %w", err)
	}
	if w.captures == 0 {
		return nil, nil
	}

	rows, err := w.q.QueryContext(ctx, w.d.KeyQuery())
	if err != nil {
		return nil, fmt.Errorf("read generated keys: %w", err)
	}
	defer rows.Close()

	tokens := make([]any, 0, w.captures*batch.TokensPerKey)
	for rows.Next() {
		var name string
		var value any
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("read generated keys: %w", err)
		}
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		tokens = append(tokens, name, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read generated keys: %w", err)
	}
	return tokens, nil
}

// Probe is a resolver.CountSource that reads a column's current maximum.
type Probe struct {
	q Querier
	d Dialect
}

// NewProbe returns a probe running queries on q.
func NewProbe(q Querier, d Dialect) *Probe {
	return &Probe{q: q, d: d}
}

// InitialCount implements resolver.CountSource.
func (p *Probe) InitialCount(ctx context.Context, field resolver.FieldRef, _ int) (bigcount.Counter, error) {
	var current any
	err := p.q.QueryRowContext(ctx, p.d.MaxQuery(field.Table, field.Field)).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return bigcount.Counter{}, fmt.Errorf("probe %s: %w", field, err)
	}
	if b, ok := current.([]byte); ok {
		current = string(b)
	}
	return resolver.NextAfter(field.Field, current)
}
