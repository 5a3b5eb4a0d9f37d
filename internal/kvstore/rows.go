package kvstore

import (
	"context"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/roach88/seedgraph/internal/bigcount"
	"github.com/roach88/seedgraph/internal/resolver"
	"github.com/roach88/seedgraph/internal/schema"
)

// Row is one decoded row.
type Row map[string]any

// Rows returns the committed rows of table in insertion order. A table
// that was never written has no rows.
func (s *Store) Rows(table string) ([]Row, error) {
	var out []Row
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			row, err := decodeRow(v)
			if err != nil {
				return fmt.Errorf("kvstore: %s: %w", table, err)
			}
			out = append(out, Row(row))
			return nil
		})
	})
	return out, err
}

// Tables returns the names of every table with at least one row.
func (s *Store) Tables() ([]string, error) {
	var names []string
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			if b.Stats().KeyN > 0 {
				names = append(names, string(name))
			}
			return nil
		})
	})
	sort.Strings(names)
	return names, err
}

// InitialCount implements resolver.CountSource from the committed rows.
func (s *Store) InitialCount(_ context.Context, field resolver.FieldRef, _ int) (bigcount.Counter, error) {
	rows, err := s.Rows(field.Table)
	if err != nil {
		return bigcount.Counter{}, err
	}

	var (
		best    bigcount.Counter
		bestRaw any
	)
	for _, row := range rows {
		v, ok := row[field.Field.Name]
		if !ok || v == nil {
			continue
		}
		c, err := resolver.Count(field.Field, v)
		if err != nil {
			if field.Field.Kind != schema.KindString {
				continue
			}
			return bigcount.Counter{}, fmt.Errorf("kvstore: %s: %w", field, err)
		}
		if bestRaw == nil || best.Less(c) {
			best, bestRaw = c, v
		}
	}
	return resolver.NextAfter(field.Field, bestRaw)
}
