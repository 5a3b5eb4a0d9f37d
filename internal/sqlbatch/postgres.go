package sqlbatch

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/roach88/seedgraph/internal/schema"
)

// Postgres is the dialect for github.com/lib/pq. Auto keys must be serial
// or identity columns so that their sequence can be read back with
// currval.
type Postgres struct{}

var postgresStyle = literalStyle{
	quote: pq.QuoteLiteral,
	boolean: func(b bool) string {
		if b {
			return "TRUE"
		}
		return "FALSE"
	},
	bytes: func(b []byte) string { return `'\x` + hex.EncodeToString(b) + `'::bytea` },
	cast: func(lit, typ string) string {
		switch typ {
		case "time":
			return lit + "::timestamptz"
		case "uuid":
			return lit + "::uuid"
		}
		return lit
	},
}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Driver() string { return "postgres" }

func (Postgres) QuoteIdent(name string) string { return pq.QuoteIdentifier(name) }

func (Postgres) Literal(v any) (string, error) { return formatLiteral(postgresStyle, v) }

func (Postgres) Prelude() []string {
	return []string{
		"CREATE TEMP TABLE IF NOT EXISTS " + KeyTable + " (ord integer PRIMARY KEY, name text NOT NULL, value text)",
		"DELETE FROM pg_temp." + KeyTable,
	}
}

func (d Postgres) CaptureKey(ord int, table, column string) string {
	return fmt.Sprintf("INSERT INTO pg_temp.%s (ord, name, value) VALUES (%d, %s, currval(pg_get_serial_sequence(%s, %s))::text)",
		KeyTable, ord, pq.QuoteLiteral(column), pq.QuoteLiteral(d.QuoteIdent(table)), pq.QuoteLiteral(column))
}

func (Postgres) SymbolRef(ord int) string {
	return "(SELECT value::bigint FROM pg_temp." + KeyTable + " WHERE ord = " + strconv.Itoa(ord) + ")"
}

func (Postgres) KeyQuery() string {
	return "SELECT name, value FROM pg_temp." + KeyTable + " ORDER BY ord"
}

func (d Postgres) MaxQuery(table string, f schema.Field) string {
	return maxQuery(d, table, f)
}

func (d Postgres) CreateTable(desc *schema.Descriptor) string {
	return createTable(d, desc, func(f schema.Field, isKey bool) string {
		if isKey && desc.KeyKind == schema.KeyAuto {
			if f.Kind == schema.KindInt32 {
				return "SERIAL PRIMARY KEY"
			}
			return "BIGSERIAL PRIMARY KEY"
		}
		var typ string
		switch f.Kind {
		case schema.KindInt32:
			typ = "INTEGER"
		case schema.KindInt64:
			typ = "BIGINT"
		case schema.KindString:
			typ = "TEXT"
			if f.MaxLength > 0 {
				typ = fmt.Sprintf("VARCHAR(%d)", f.MaxLength)
			}
		case schema.KindUUID:
			typ = "UUID"
		case schema.KindBool:
			typ = "BOOLEAN"
		case schema.KindFloat64:
			typ = "DOUBLE PRECISION"
		case schema.KindTime:
			typ = "TIMESTAMPTZ"
		case schema.KindBytes:
			typ = "BYTEA"
		}
		if isKey {
			typ += " PRIMARY KEY"
		}
		return typ
	})
}
