package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/seedgraph/internal/batch"
	"github.com/roach88/seedgraph/internal/bigcount"
	"github.com/roach88/seedgraph/internal/guard"
	"github.com/roach88/seedgraph/internal/resolver"
	"github.com/roach88/seedgraph/internal/schema"
)

// writeOp is the operation identity pushed onto the guard.
const writeOp = "write"

// session is the state of one Persist or Plan call.
type session struct {
	p     *Persister
	batch int64

	guard    *guard.Guard
	resolver *resolver.Resolver
	quota    *recordQuota
	cycles   *cycleLog

	ops     map[schema.RecordHandle]*InsertOperation
	list    []*InsertOperation // discovery order
	ordered []*InsertOperation // write order

	statements int
}

func (p *Persister) newSession() *session {
	return &session{
		p:        p,
		batch:    p.clock.Next(),
		guard:    guard.New(),
		resolver: resolver.New(p.counts),
		quota:    newRecordQuota(p.maxRecords),
		cycles:   newCycleLog(),
		ops:      make(map[schema.RecordHandle]*InsertOperation),
	}
}

// prepare discovers the graph, queues every statement, and resolves
// deferred values. Nothing is executed.
func (s *session) prepare(ctx context.Context, handles []schema.RecordHandle) error {
	for _, h := range handles {
		if h == nil {
			return fmt.Errorf("persist: nil record handle")
		}
		if s.p.isStored(h) {
			continue
		}
		if _, err := s.add(h); err != nil {
			return err
		}
	}
	if len(s.list) == 0 {
		return nil
	}
	for _, stmt := range s.p.statements {
		if err := s.p.sink.AddRawStatement(stmt); err != nil {
			return newPersistError(ErrCodeExecute, nil, "queue raw statement", err)
		}
		s.statements++
	}
	for _, op := range s.list {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.write(op); err != nil {
			return err
		}
	}
	if err := s.resolver.Resolve(ctx); err != nil {
		return newPersistError(ErrCodeResolve, nil, "deferred values", err)
	}
	return nil
}

// add creates the operation for h and, recursively, for every record it
// references. References are checked here, before anything is written.
func (s *session) add(h schema.RecordHandle) (*InsertOperation, error) {
	if op, ok := s.ops[h]; ok {
		return op, nil
	}
	if err := s.quota.Check(); err != nil {
		return nil, err
	}
	op := newInsertOperation(h)
	s.ops[h] = op
	s.list = append(s.list, op)

	desc := h.Descriptor()
	for _, ref := range h.References() {
		if ref.Target == nil {
			return nil, newPersistError(ErrCodeIntegrity, h, "reference "+ref.Field+" has no target",
				&schema.IntegrityError{Table: desc.Table, Field: ref.Field, Reason: "nil target"})
		}
		if desc.KeyKind != schema.KeyNone && ref.Field == desc.Key {
			return nil, newPersistError(ErrCodeIntegrity, h, "key field cannot be a reference",
				&schema.IntegrityError{Table: desc.Table, Field: ref.Field, Referenced: ref.Target.Descriptor().Table, Reason: "key field is a reference"})
		}
		if err := schema.CheckReference(desc, ref.Field, ref.Target.Descriptor()); err != nil {
			return nil, newPersistError(ErrCodeIntegrity, h, "reference "+ref.Field, err)
		}
		if s.p.isStored(ref.Target) {
			continue
		}
		peer, err := s.add(ref.Target)
		if err != nil {
			return nil, err
		}
		op.primaries = append(op.primaries, peer)
	}
	return op, nil
}

// write queues op after everything it references.
func (s *session) write(op *InsertOperation) error {
	sig := guard.NewSignature(writeOp, op)
	if !s.guard.Enter(sig) {
		return nil
	}
	defer s.guard.Pop()

	if op.state == StatePending {
		op.state = StateWriting
	}
	for _, peer := range op.primaries {
		if err := s.write(peer); err != nil {
			return err
		}
	}
	if op.state >= StateWritten {
		return nil
	}

	desc := op.Record.Descriptor()
	refs := make(map[string]schema.RecordHandle)
	for _, ref := range op.Record.References() {
		refs[ref.Field] = ref.Target
	}

	columns := make([]batch.Column, 0, len(desc.Fields))
	for _, f := range desc.Fields {
		if target, ok := refs[f.Name]; ok {
			col, ok, err := s.foreignColumn(op, f.Name, target)
			if err != nil {
				return err
			}
			if ok {
				columns = append(columns, col)
			}
			continue
		}
		if desc.KeyKind != schema.KeyNone && f.Name == desc.Key {
			col, ok, err := s.keyColumn(op, f)
			if err != nil {
				return err
			}
			if ok {
				columns = append(columns, col)
			}
			continue
		}
		col, ok, err := s.valueColumn(op, f)
		if err != nil {
			return err
		}
		if ok {
			columns = append(columns, col)
		}
	}

	if err := s.p.sink.Insert(desc.Table, columns); err != nil {
		return newPersistError(ErrCodeExecute, op.Record, "queue insert", err)
	}
	s.statements++
	if desc.KeyKind == schema.KeyAuto {
		sym, err := s.p.sink.SelectGeneratedKey(desc.Table, desc.Key)
		if err != nil {
			return newPersistError(ErrCodeExecute, op.Record, "queue key read", err)
		}
		s.statements++
		op.symbol = &sym
		op.reads = batch.TokensPerKey
	}

	op.index = len(s.ordered)
	s.ordered = append(s.ordered, op)
	op.state = StateWritten
	return nil
}

// foreignColumn builds the column mirroring target's key. It reports
// false when the edge closes a cycle and is left out.
func (s *session) foreignColumn(op *InsertOperation, field string, target schema.RecordHandle) (batch.Column, bool, error) {
	peer, ok := s.ops[target]
	if !ok {
		// Stored by an earlier batch.
		v, _ := schema.KeyValue(target)
		return s.knownForeignKey(op, field, v)
	}
	if peer.state < StateWritten {
		s.cycles.Record(op, peer, field)
		return batch.Column{}, false, nil
	}

	peer.dependents = append(peer.dependents, dependent{op: op, field: field})
	switch {
	case peer.symbol != nil:
		return batch.SymbolColumn(field, *peer.symbol), true, nil
	case peer.lazy != nil:
		return batch.LazyColumn(field, peer.lazy), true, nil
	}
	v, _ := schema.KeyValue(peer.Record)
	return s.knownForeignKey(op, field, v)
}

// knownForeignKey sets field to the already assigned key v, converted to
// the field's kind.
func (s *session) knownForeignKey(op *InsertOperation, field string, v any) (batch.Column, bool, error) {
	fv, err := coerceField(op.Record.Descriptor(), field, v)
	if err != nil {
		return batch.Column{}, false, newPersistError(ErrCodeIntegrity, op.Record, "foreign key "+field, err)
	}
	op.Record.Set(field, fv)
	return batch.Value(field, fv), true, nil
}

// keyColumn produces the record's own key column. Generated keys have no
// column; their value is read back after execution.
func (s *session) keyColumn(op *InsertOperation, f schema.Field) (batch.Column, bool, error) {
	desc := op.Record.Descriptor()
	if desc.KeyKind == schema.KeyAuto {
		return batch.Column{}, false, nil
	}
	ref := resolver.FieldRef{Table: desc.Table, Field: f}
	if v, ok := op.Record.Get(f.Name); ok && v != nil {
		// Deferred siblings start after explicit keys. Values outside the
		// sequence, such as negative integers, cannot collide with it.
		if f.Kind != schema.KindUUID {
			if c, err := resolver.Count(f, v); err == nil {
				s.resolver.Reserve(ref, c)
			}
		}
		return batch.Value(f.Name, v), true, nil
	}
	if f.Kind == schema.KindUUID {
		id := s.p.guids.Generate()
		op.Record.Set(f.Name, id)
		return batch.Value(f.Name, id), true, nil
	}

	cell := &batch.Lazy{}
	op.lazy = cell
	s.resolver.Defer(ref, func(c bigcount.Counter) error {
		v, err := resolver.Value(f, c)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		mirrored, err := op.mirrored(v)
		if err != nil {
			return err
		}
		cell.Set(v)
		op.assign(f.Name, v, mirrored)
		return nil
	})
	return batch.LazyColumn(f.Name, cell), true, nil
}

// valueColumn emits a regular field, asking the value generator for unset
// fields.
func (s *session) valueColumn(op *InsertOperation, f schema.Field) (batch.Column, bool, error) {
	if v, ok := op.Record.Get(f.Name); ok {
		return batch.Value(f.Name, v), true, nil
	}
	// Declared foreign keys without a reference stay NULL.
	if s.p.values == nil || op.Record.Descriptor().IsForeignKey(f.Name) {
		return batch.Column{}, false, nil
	}
	v, err := s.p.values(op.Record.Descriptor(), f)
	if err != nil {
		return batch.Column{}, false, newPersistError(ErrCodeValue, op.Record, "generate "+f.Name, err)
	}
	if v == nil {
		return batch.Column{}, false, nil
	}
	op.Record.Set(f.Name, v)
	return batch.Value(f.Name, v), true, nil
}

// readBack walks the result stream in write order. The whole stream is
// decoded before any record is touched, so a desync leaves every record
// as it was.
func (s *session) readBack(tokens []any) error {
	if want := s.declaredReads(); len(tokens) != want {
		return newPersistError(ErrCodeDesync, nil,
			fmt.Sprintf("result stream has %d tokens, %d declared", len(tokens), want), batch.ErrDesync)
	}

	type readKey struct {
		value    any
		mirrored []any
	}
	keys := make([]readKey, len(s.ordered))
	cur := batch.NewCursor(tokens)
	for i, op := range s.ordered {
		toks, err := cur.Next(op.reads)
		if err != nil {
			return newPersistError(ErrCodeDesync, op.Record,
				fmt.Sprintf("read %d tokens at position %d", op.reads, cur.Pos()), err)
		}
		if op.reads == 0 {
			continue
		}
		v, err := decodeKey(op, toks)
		if err != nil {
			return err
		}
		mirrored, err := op.mirrored(v)
		if err != nil {
			return newPersistError(ErrCodeDesync, op.Record, "mirror generated key", fmt.Errorf("%w: %w", batch.ErrDesync, err))
		}
		keys[i] = readKey{value: v, mirrored: mirrored}
	}
	if err := cur.Close(); err != nil {
		return newPersistError(ErrCodeDesync, nil,
			fmt.Sprintf("%d tokens left after read-back", cur.Remaining()), err)
	}

	for i, op := range s.ordered {
		if op.reads > 0 {
			key, _ := op.Record.Descriptor().KeyField()
			op.assign(key.Name, keys[i].value, keys[i].mirrored)
		}
		op.state = StateRead
	}
	return nil
}

// decodeKey checks one (column, value) token pair against op's key field.
func decodeKey(op *InsertOperation, toks []any) (any, error) {
	key, _ := op.Record.Descriptor().KeyField()
	name, _ := toks[0].(string)
	if name != key.Name {
		return nil, newPersistError(ErrCodeDesync, op.Record,
			fmt.Sprintf("expected key column %q, got %v", key.Name, toks[0]), batch.ErrDesync)
	}
	v, err := schema.Coerce(key.Kind, toks[1])
	if err != nil {
		return nil, newPersistError(ErrCodeDesync, op.Record, "generated key", fmt.Errorf("%w: %w", batch.ErrDesync, err))
	}
	if v == nil {
		return nil, newPersistError(ErrCodeDesync, op.Record, "generated key is NULL", batch.ErrDesync)
	}
	return v, nil
}

// abandon discards whatever the session queued.
func (s *session) abandon() {
	if r, ok := s.p.sink.(batch.Resetter); ok {
		r.Reset()
	}
}

func (s *session) declaredReads() int {
	n := 0
	for _, op := range s.ordered {
		n += op.reads
	}
	return n
}

func (s *session) report(d time.Duration) *Report {
	r := &Report{
		Batch:      s.batch,
		Writes:     make([]Write, 0, len(s.ordered)),
		Broken:     s.cycles.Edges(),
		Statements: s.statements,
		Duration:   d,
	}
	for _, op := range s.ordered {
		key, _ := schema.KeyValue(op.Record)
		r.Writes = append(r.Writes, Write{
			Index:  op.index,
			Table:  op.Table(),
			Record: describe(op.Record),
			Key:    key,
			Reads:  op.reads,
			Handle: op.Record,
		})
	}
	return r
}
