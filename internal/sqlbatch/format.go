package sqlbatch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/seedgraph/internal/bigcount"
)

// ErrUnsupportedValue is returned for values with no literal form.
var ErrUnsupportedValue = errors.New("sqlbatch: unsupported value")

// literalStyle holds the per-dialect pieces of literal formatting.
type literalStyle struct {
	quote   func(string) string
	boolean func(bool) string
	bytes   func([]byte) string
	// cast wraps a quoted literal with a type annotation where the dialect
	// needs one; typ is a schema kind name.
	cast func(lit, typ string) string
}

// formatLiteral renders v. Strings are NFC-normalized first so that
// visually identical fixture text compares equal in the database.
func formatLiteral(st literalStyle, v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return st.quote(norm.NFC.String(x)), nil
	case []byte:
		return st.bytes(x), nil
	case bool:
		return st.boolean(x), nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case time.Time:
		return st.cast(st.quote(x.UTC().Format(time.RFC3339Nano)), "time"), nil
	case uuid.UUID:
		return st.cast(st.quote(x.String()), "uuid"), nil
	case bigcount.Counter:
		return x.String(), nil
	case fmt.Stringer:
		return st.quote(norm.NFC.String(x.String())), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedValue, f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	return s, nil
}
