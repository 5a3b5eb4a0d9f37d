// Package batch defines the statement sink the persistence engine writes to.
//
// A Sink accumulates statements in submission order and executes them in a
// single round trip. Execution returns one flat token slice: every result
// set's tokens concatenated in result-set order. Callers walk that slice
// with a Cursor, each consumer taking exactly the number of tokens it
// declared when its statement was queued. Reading too few or too many
// tokens desynchronizes every later consumer, so a Cursor treats both as a
// fatal ErrDesync instead of truncating.
//
// Column values may not be known when a statement is queued:
//   - a Symbol stands for a key the store will generate for an earlier
//     statement in the same batch
//   - a Lazy cell is filled in by the caller after queueing but before
//     Execute (deferred unique values)
//
// Sinks render both only at Execute time.
package batch

import (
	"context"
	"errors"
	"fmt"
)

// ErrDesync is returned when the result stream does not line up with the
// reads that were declared for it.
var ErrDesync = errors.New("batch: result stream desynchronized")

// ErrUnresolved is returned when a Lazy column is rendered before its value
// was set.
var ErrUnresolved = errors.New("batch: value not resolved")

// Symbol is a placeholder for a key generated by an earlier statement of
// the same batch. IDs are assigned by the sink, starting at 1.
type Symbol struct {
	ID     int
	Table  string
	Column string
}

func (s Symbol) String() string {
	return fmt.Sprintf("@%s_%s_%d", s.Table, s.Column, s.ID)
}

// Lazy is a value cell filled after the statement that uses it is queued.
type Lazy struct {
	value any
	set   bool
}

// Set stores the value.
func (l *Lazy) Set(v any) {
	l.value = v
	l.set = true
}

// Get returns the value, or ErrUnresolved if Set was never called.
func (l *Lazy) Get() (any, error) {
	if !l.set {
		return nil, ErrUnresolved
	}
	return l.value, nil
}

// Resolved reports whether Set has been called.
func (l *Lazy) Resolved() bool { return l.set }

// Column is a field name paired with a concrete value, a generated-key
// symbol, or a lazy cell. Exactly one of the three is meaningful: Symbol
// wins over Lazy, which wins over Value.
type Column struct {
	Name   string
	Value  any
	Symbol *Symbol
	Lazy   *Lazy
}

// Value returns a concrete column.
func Value(name string, v any) Column { return Column{Name: name, Value: v} }

// SymbolColumn returns a column bound to a generated key.
func SymbolColumn(name string, sym Symbol) Column { return Column{Name: name, Symbol: &sym} }

// LazyColumn returns a column bound to a lazy cell.
func LazyColumn(name string, cell *Lazy) Column { return Column{Name: name, Lazy: cell} }

// IsSymbol reports whether the column refers to a generated key.
func (c Column) IsSymbol() bool { return c.Symbol != nil }

// Resolve returns the concrete value of a non-symbol column.
func (c Column) Resolve() (any, error) {
	if c.Symbol != nil {
		return nil, fmt.Errorf("column %s: %w: bound to %s", c.Name, ErrUnresolved, c.Symbol)
	}
	if c.Lazy != nil {
		v, err := c.Lazy.Get()
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		return v, nil
	}
	return c.Value, nil
}

// Sink accumulates statements and executes them in one round trip.
type Sink interface {
	// Insert queues an insert of one row.
	Insert(table string, columns []Column) error

	// AddRawStatement queues a backend-specific statement verbatim.
	AddRawStatement(text string) error

	// SelectGeneratedKey queues a read of the key generated by the most
	// recent insert into table. It contributes two tokens to the result
	// stream, the column name and the value, and returns a symbol later
	// statements can reference.
	SelectGeneratedKey(table, column string) (Symbol, error)

	// Execute runs everything queued since the last Execute and returns
	// the flat result tokens. The buffer is cleared whether or not the
	// round trip succeeds.
	Execute(ctx context.Context) ([]any, error)
}

// Resetter is implemented by sinks that can discard queued statements
// without executing them. The engine calls Reset when it abandons a batch
// before Execute.
type Resetter interface {
	Reset()
}

// TokensPerKey is the number of result tokens one SelectGeneratedKey adds.
const TokensPerKey = 2
