package batch

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/roach88/seedgraph/internal/bigcount"
	"github.com/roach88/seedgraph/internal/resolver"
	"github.com/roach88/seedgraph/internal/schema"
)

// Row is one stored row of a MemorySink table.
type Row map[string]any

type stmtKind int

const (
	stmtInsert stmtKind = iota
	stmtSelectKey
	stmtRaw
)

type memStatement struct {
	kind    stmtKind
	table   string
	columns []Column
	symbol  Symbol
	raw     string
}

// MemorySink is an in-process store. Tables are created on first insert.
// Generated keys count up from the largest integer already stored in the
// column. Raw statements cannot be interpreted; they are recorded in order
// and otherwise ignored.
//
// A batch is applied all-or-nothing: if any statement fails, no row from
// that batch becomes visible.
type MemorySink struct {
	mu         sync.Mutex
	tables     map[string][]Row
	queue      []memStatement
	nextSymbol int
	raw        []string
	executions int
}

// NewMemorySink returns an empty in-memory store.
func NewMemorySink() *MemorySink {
	return &MemorySink{tables: make(map[string][]Row)}
}

func (s *MemorySink) Insert(table string, columns []Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, memStatement{kind: stmtInsert, table: table, columns: append([]Column(nil), columns...)})
	return nil
}

func (s *MemorySink) AddRawStatement(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, memStatement{kind: stmtRaw, raw: text})
	return nil
}

func (s *MemorySink) SelectGeneratedKey(table, column string) (Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSymbol++
	sym := Symbol{ID: s.nextSymbol, Table: table, Column: column}
	s.queue = append(s.queue, memStatement{kind: stmtSelectKey, table: table, symbol: sym})
	return sym, nil
}

// Reset discards queued statements without executing them.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.nextSymbol = 0
}

// Pending returns the number of queued statements.
func (s *MemorySink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *MemorySink) Execute(_ context.Context) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queue
	s.queue = nil
	s.nextSymbol = 0
	s.executions++

	type inserted struct {
		table string
		row   Row
	}
	var (
		added   []inserted
		tokens  []any
		raw     []string
		last    = make(map[string]Row)
		symbols = make(map[int]any)
	)
	staged := func(table string) []Row {
		var rows []Row
		for _, ins := range added {
			if ins.table == table {
				rows = append(rows, ins.row)
			}
		}
		return rows
	}

	for i, st := range queue {
		switch st.kind {
		case stmtInsert:
			row := make(Row, len(st.columns))
			for _, col := range st.columns {
				if col.Symbol != nil {
					v, ok := symbols[col.Symbol.ID]
					if !ok {
						return nil, fmt.Errorf("memory sink: statement %d: %s referenced before it was generated", i, col.Symbol)
					}
					row[col.Name] = v
					continue
				}
				v, err := col.Resolve()
				if err != nil {
					return nil, fmt.Errorf("memory sink: statement %d: %w", i, err)
				}
				row[col.Name] = v
			}
			added = append(added, inserted{table: st.table, row: row})
			last[st.table] = row

		case stmtSelectKey:
			row, ok := last[st.table]
			if !ok {
				return nil, fmt.Errorf("memory sink: statement %d: no insert into %s precedes key select", i, st.table)
			}
			v, ok := row[st.symbol.Column]
			if !ok || v == nil {
				v = nextAuto(st.symbol.Column, s.tables[st.table], staged(st.table))
				row[st.symbol.Column] = v
			}
			symbols[st.symbol.ID] = v
			tokens = append(tokens, st.symbol.Column, v)

		case stmtRaw:
			raw = append(raw, st.raw)
		}
	}

	for _, ins := range added {
		s.tables[ins.table] = append(s.tables[ins.table], ins.row)
	}
	s.raw = append(s.raw, raw...)
	return tokens, nil
}

// nextAuto returns one more than the largest integer in column.
func nextAuto(column string, sets ...[]Row) int64 {
	var highest int64
	for _, rows := range sets {
		for _, row := range rows {
			v, err := schema.Coerce(schema.KindInt64, row[column])
			if err != nil || v == nil {
				continue
			}
			if n := v.(int64); n > highest {
				highest = n
			}
		}
	}
	return highest + 1
}

// InitialCount implements resolver.CountSource from the committed rows.
func (s *MemorySink) InitialCount(_ context.Context, field resolver.FieldRef, _ int) (bigcount.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		best    bigcount.Counter
		bestRaw any
	)
	for _, row := range s.tables[field.Table] {
		v, ok := row[field.Field.Name]
		if !ok || v == nil {
			continue
		}
		c, err := resolver.Count(field.Field, v)
		if err != nil {
			// Negative integers sit below every sequence value.
			if field.Field.Kind != schema.KindString {
				continue
			}
			return bigcount.Counter{}, fmt.Errorf("memory sink: %s: %w", field, err)
		}
		if bestRaw == nil || best.Less(c) {
			best, bestRaw = c, v
		}
	}
	return resolver.NextAfter(field.Field, bestRaw)
}

// Rows returns a copy of table's committed rows in insertion order.
func (s *MemorySink) Rows(table string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, len(s.tables[table]))
	for i, row := range s.tables[table] {
		out[i] = maps.Clone(row)
	}
	return out
}

// RawStatements returns every executed raw statement in order.
func (s *MemorySink) RawStatements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.raw...)
}

// Executions returns how many times Execute has been called.
func (s *MemorySink) Executions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executions
}
