// Package sqlbatch renders batches of inserts as one SQL script.
//
// Statements are held structurally until Execute so that generated-key
// symbols and deferred values can be rendered at the last moment. Generated
// keys are captured into a per-connection temporary table right after the
// insert that produced them; later statements reference a captured key by
// sub-selecting it from that table, and the final read of the table is the
// flat token stream handed back to the engine.
//
// Values are embedded as literals through the dialect's formatter. This is
// a test-data tool: the inputs are trusted fixture values, and a literal
// script is what lets a whole batch travel as one round trip.
package sqlbatch

import (
	"fmt"
	"strings"

	"github.com/roach88/seedgraph/internal/schema"
)

// KeyTable is the temporary table generated keys are captured into.
const KeyTable = "seedgraph_keys"

// Dialect renders the SQL fragments that differ between backends.
type Dialect interface {
	// Name returns the dialect name, e.g. "sqlite".
	Name() string

	// Driver returns the database/sql driver name.
	Driver() string

	// QuoteIdent quotes a table or column name.
	QuoteIdent(name string) string

	// Literal formats a concrete value for embedding in a statement.
	Literal(v any) (string, error)

	// Prelude returns the statements that prepare the key table for a
	// fresh batch.
	Prelude() []string

	// CaptureKey returns the statement that records, under ord, the key
	// column of the row most recently inserted into table.
	CaptureKey(ord int, table, column string) string

	// SymbolRef returns an expression yielding the key captured under ord.
	SymbolRef(ord int) string

	// KeyQuery returns the query that reads captured keys as
	// (name, value) rows in capture order.
	KeyQuery() string

	// MaxQuery returns a query for the largest stored value of a field.
	// It yields one row, or none when the table is empty.
	MaxQuery(table string, f schema.Field) string

	// CreateTable returns DDL for a descriptor.
	CreateTable(d *schema.Descriptor) string
}

// ByName returns the dialect with the given name.
func ByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "postgres", "postgresql", "pg":
		return Postgres{}, nil
	}
	return nil, fmt.Errorf("sqlbatch: unknown dialect %q", name)
}

// createTable assembles DDL shared by both dialects. colType renders one
// column's type and constraints.
func createTable(dl Dialect, d *schema.Descriptor, colType func(f schema.Field, isKey bool) string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", dl.QuoteIdent(d.Table))
	for i, f := range d.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		isKey := d.KeyKind != schema.KeyNone && f.Name == d.Key
		fmt.Fprintf(&b, "%s %s", dl.QuoteIdent(f.Name), colType(f, isKey))
		if !isKey && !f.Nullable && !d.IsForeignKey(f.Name) {
			b.WriteString(" NOT NULL")
		}
	}
	for _, fk := range d.ForeignKeys {
		if fk.References == nil {
			continue
		}
		fmt.Fprintf(&b, ", FOREIGN KEY (%s) REFERENCES %s (%s)",
			dl.QuoteIdent(fk.Field), dl.QuoteIdent(fk.References.Table), dl.QuoteIdent(fk.References.Key))
	}
	b.WriteString(")")
	return b.String()
}

func insertSQL(dl Dialect, table string, names, values []string) string {
	if len(names) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", dl.QuoteIdent(table))
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = dl.QuoteIdent(n)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		dl.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(values, ", "))
}
