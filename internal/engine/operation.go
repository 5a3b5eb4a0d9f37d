package engine

import (
	"fmt"

	"github.com/roach88/seedgraph/internal/batch"
	"github.com/roach88/seedgraph/internal/schema"
)

// State is the lifecycle of an InsertOperation.
type State int

const (
	StatePending State = iota
	StateWriting
	StateWritten
	StateRead
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateWriting:
		return "writing"
	case StateWritten:
		return "written"
	case StateRead:
		return "read"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// InsertOperation is one record's pending write. It is created when the
// record enters a session and discarded with the session.
type InsertOperation struct {
	Record schema.RecordHandle

	// primaries are the referenced operations, in the record's reference
	// declaration order.
	primaries []*InsertOperation

	// dependents mirror this operation's key into their own field once
	// the key is known. Only edges that were not broken are listed.
	dependents []dependent

	state State
	index int
	reads int

	// symbol is set for generated keys, lazy for deferred manual keys.
	symbol *batch.Symbol
	lazy   *batch.Lazy
}

type dependent struct {
	op    *InsertOperation
	field string
}

func newInsertOperation(h schema.RecordHandle) *InsertOperation {
	return &InsertOperation{Record: h, index: -1}
}

// Table returns the record's table name.
func (op *InsertOperation) Table() string { return op.Record.Descriptor().Table }

// State returns the operation's lifecycle state.
func (op *InsertOperation) State() State { return op.state }

// Index returns the position in the write order, or -1 before the write.
func (op *InsertOperation) Index() int { return op.index }

// Reads returns the number of result tokens the operation declared.
func (op *InsertOperation) Reads() int { return op.reads }

// Primaries returns the operations this one references.
func (op *InsertOperation) Primaries() []*InsertOperation {
	return append([]*InsertOperation(nil), op.primaries...)
}

func (op *InsertOperation) String() string { return describe(op.Record) }

// mirrored converts the key v into each dependent's foreign-key kind, in
// dependents order. Nothing is assigned.
func (op *InsertOperation) mirrored(v any) ([]any, error) {
	out := make([]any, len(op.dependents))
	for i, d := range op.dependents {
		fv, err := coerceField(d.op.Record.Descriptor(), d.field, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", d.op, d.field, err)
		}
		out[i] = fv
	}
	return out, nil
}

// assign sets the record's key and the values produced by mirrored.
func (op *InsertOperation) assign(key string, v any, mirrored []any) {
	op.Record.Set(key, v)
	for i, d := range op.dependents {
		d.op.Record.Set(d.field, mirrored[i])
	}
}

// coerceField converts v to the kind of desc's field. Fields missing from
// the descriptor keep v as is.
func coerceField(desc *schema.Descriptor, field string, v any) (any, error) {
	f, ok := desc.Field(field)
	if !ok {
		return v, nil
	}
	return schema.Coerce(f.Kind, v)
}
