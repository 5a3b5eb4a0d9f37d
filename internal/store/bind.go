package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/seedgraph/internal/engine"
	"github.com/roach88/seedgraph/internal/guard"
	"github.com/roach88/seedgraph/internal/schema"
	"github.com/roach88/seedgraph/internal/sqlbatch"
)

// EnsureTables creates the tables for descs, and for every table they
// reference, referenced tables first. Existing tables are left alone.
//
// Tables in a reference cycle are created in discovery order. SQLite
// accepts the forward reference; stricter databases need the cycle's
// constraint added separately.
func (s *Store) EnsureTables(ctx context.Context, descs ...*schema.Descriptor) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, d := range CreationOrder(descs...) {
			if _, err := tx.ExecContext(ctx, s.dialect.CreateTable(d)); err != nil {
				return fmt.Errorf("create table %s: %w", d.Table, err)
			}
		}
		return nil
	})
}

// CreationOrder returns descs and everything they reference, each table
// after the tables it references.
func CreationOrder(descs ...*schema.Descriptor) []*schema.Descriptor {
	var (
		g    = guard.New()
		done = make(map[*schema.Descriptor]bool)
		out  []*schema.Descriptor
	)
	var visit func(d *schema.Descriptor)
	visit = func(d *schema.Descriptor) {
		if done[d] || !g.Enter(guard.NewSignature("create", d)) {
			return
		}
		defer g.Pop()
		for _, fk := range d.ForeignKeys {
			if fk.References != nil {
				visit(fk.References)
			}
		}
		if !done[d] {
			done[d] = true
			out = append(out, d)
		}
	}
	for _, d := range descs {
		visit(d)
	}
	return out
}

// Bind persists handles and the records they reach in one transaction.
// Records bound by earlier calls on this store are referenced by key and
// not written again.
func (s *Store) Bind(ctx context.Context, handles []schema.RecordHandle, opts ...engine.Option) (*engine.Report, error) {
	var report *engine.Report
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		w := sqlbatch.NewWriter(tx, s.dialect)
		opts := append([]engine.Option{engine.WithClock(s.clock)}, opts...)
		p := engine.New(w, sqlbatch.NewProbe(tx, s.dialect), opts...)
		p.MarkStored(s.storedHandles()...)

		r, err := p.Persist(ctx, handles...)
		if err != nil {
			return err
		}
		if len(r.Writes) > 0 {
			if err := s.journal(ctx, tx, r); err != nil {
				return err
			}
		}
		report = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, w := range report.Writes {
		s.stored = append(s.stored, w.Handle)
	}
	s.mu.Unlock()
	return report, nil
}

func (s *Store) storedHandles() []schema.RecordHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.stored)
}

// journal records a successful batch.
func (s *Store) journal(ctx context.Context, tx *sql.Tx, r *engine.Report) error {
	counts := r.Tables()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	slices.Sort(names)

	values := []any{
		uuid.Must(uuid.NewV7()).String(),
		r.Batch,
		len(r.Writes),
		r.Statements,
		r.Tokens,
		len(r.Broken),
		strings.Join(names, ","),
	}
	literals := make([]string, len(values))
	for i, v := range values {
		lit, err := s.dialect.Literal(v)
		if err != nil {
			return fmt.Errorf("journal batch: %w", err)
		}
		literals[i] = lit
	}
	stmt := "INSERT INTO seedgraph_batches (id, seq, records, statements, tokens, broken_edges, tables) VALUES (" +
		strings.Join(literals, ", ") + ")"
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("journal batch: %w", err)
	}
	return nil
}
