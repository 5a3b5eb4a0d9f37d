package sqlbatch

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/roach88/seedgraph/internal/schema"
)

// SQLite is the dialect for github.com/mattn/go-sqlite3.
type SQLite struct{}

var sqliteStyle = literalStyle{
	quote: quoteSQLiteString,
	boolean: func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	},
	bytes: func(b []byte) string { return "X'" + strings.ToUpper(hex.EncodeToString(b)) + "'" },
	cast:  func(lit, _ string) string { return lit },
}

func quoteSQLiteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Driver() string { return "sqlite3" }

func (SQLite) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLite) Literal(v any) (string, error) { return formatLiteral(sqliteStyle, v) }

func (SQLite) Prelude() []string {
	return []string{
		"CREATE TEMP TABLE IF NOT EXISTS " + KeyTable + " (ord INTEGER PRIMARY KEY, name TEXT NOT NULL, value)",
		"DELETE FROM temp." + KeyTable,
	}
}

func (d SQLite) CaptureKey(ord int, table, column string) string {
	return fmt.Sprintf("INSERT INTO temp.%s (ord, name, value) SELECT %d, %s, %s FROM %s WHERE rowid = last_insert_rowid()",
		KeyTable, ord, quoteSQLiteString(column), d.QuoteIdent(column), d.QuoteIdent(table))
}

func (SQLite) SymbolRef(ord int) string {
	return fmt.Sprintf("(SELECT value FROM temp.%s WHERE ord = %d)", KeyTable, ord)
}

func (SQLite) KeyQuery() string {
	return "SELECT name, value FROM temp." + KeyTable + " ORDER BY ord"
}

func (d SQLite) MaxQuery(table string, f schema.Field) string {
	return maxQuery(d, table, f)
}

func (d SQLite) CreateTable(desc *schema.Descriptor) string {
	return createTable(d, desc, func(f schema.Field, isKey bool) string {
		if isKey && desc.KeyKind == schema.KeyAuto {
			return "INTEGER PRIMARY KEY"
		}
		var typ string
		switch f.Kind {
		case schema.KindInt32, schema.KindInt64, schema.KindBool:
			typ = "INTEGER"
		case schema.KindFloat64:
			typ = "REAL"
		case schema.KindBytes:
			typ = "BLOB"
		default:
			typ = "TEXT"
		}
		if isKey {
			typ += " PRIMARY KEY"
		}
		return typ
	})
}

// maxQuery selects the largest stored value. Letter keys compare by length
// first, then lexically, which matches their numeric order.
func maxQuery(d Dialect, table string, f schema.Field) string {
	col, tbl := d.QuoteIdent(f.Name), d.QuoteIdent(table)
	if f.Kind == schema.KindString {
		return fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL ORDER BY LENGTH(%s) DESC, %s DESC LIMIT 1",
			col, tbl, col, col, col)
	}
	return fmt.Sprintf("SELECT MAX(%s) FROM %s", col, tbl)
}
