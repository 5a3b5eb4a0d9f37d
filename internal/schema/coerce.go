package schema

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/seedgraph/internal/bigcount"
)

// Coerce converts v to the canonical Go type for kind:
//
//	int32   -> int32        int64   -> int64
//	string  -> string       uuid    -> uuid.UUID
//	bool    -> bool         float64 -> float64
//	time    -> time.Time    bytes   -> []byte
//
// It accepts the loose types that arrive from fixture files and drivers
// (int, float64 with no fraction, decimal strings, []byte). nil stays nil.
func Coerce(kind FieldKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case KindInt32:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("schema: %d overflows int32: %w", n, bigcount.ErrOverflow)
		}
		return int32(n), nil
	case KindInt64:
		return toInt64(v)
	case KindString:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case fmt.Stringer:
			return x.String(), nil
		}
	case KindUUID:
		switch x := v.(type) {
		case uuid.UUID:
			return x, nil
		case [16]byte:
			return uuid.UUID(x), nil
		case string:
			return uuid.Parse(x)
		case []byte:
			if len(x) == 16 {
				return uuid.FromBytes(x)
			}
			return uuid.ParseBytes(x)
		}
	case KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			return strconv.ParseBool(x)
		}
		if n, err := toInt64(v); err == nil {
			return n != 0, nil
		}
	case KindFloat64:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case string:
			return strconv.ParseFloat(x, 64)
		case []byte:
			return strconv.ParseFloat(string(x), 64)
		}
		if n, err := toInt64(v); err == nil {
			return float64(n), nil
		}
	case KindTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			return time.Parse(time.RFC3339Nano, x)
		case []byte:
			return time.Parse(time.RFC3339Nano, string(x))
		}
	case KindBytes:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
	default:
		return nil, fmt.Errorf("schema: cannot coerce to %s", kind)
	}
	return nil, fmt.Errorf("schema: cannot coerce %T to %s", v, kind)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("schema: %d overflows int64: %w", x, bigcount.ErrOverflow)
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("schema: %d overflows int64: %w", x, bigcount.ErrOverflow)
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, fmt.Errorf("schema: %v is not an int64", x)
		}
		return int64(x), nil
	case bigcount.Counter:
		return x.Int64()
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	}
	return 0, fmt.Errorf("schema: cannot convert %T to an integer", v)
}
