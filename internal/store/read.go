package store

import (
	"context"
	"fmt"
)

// Batch is one row of the journal.
type Batch struct {
	ID          string `json:"id"`
	Seq         int64  `json:"seq"`
	Records     int    `json:"records"`
	Statements  int    `json:"statements"`
	Tokens      int    `json:"tokens"`
	BrokenEdges int    `json:"broken_edges"`
	Tables      string `json:"tables"`
}

// Journal returns the recorded batches, oldest first.
func (s *Store) Journal(ctx context.Context) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, records, statements, tokens, broken_edges, tables
		FROM seedgraph_batches
		ORDER BY seq ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.Seq, &b.Records, &b.Statements, &b.Tokens, &b.BrokenEdges, &b.Tables); err != nil {
			return nil, fmt.Errorf("read journal: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return out, nil
}

// Count returns the number of rows in table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	var n int
	query := "SELECT COUNT(*) FROM " + s.dialect.QuoteIdent(table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Rows returns every row of table as column maps. Byte slices are
// returned as strings.
func (s *Store) Rows(ctx context.Context, table string) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+s.dialect.QuoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("read %s: %w", table, err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return out, nil
}
