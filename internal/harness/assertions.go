package harness

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/seedgraph/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [run %d #%d] %s key=%v\n", event.Run, event.Index, event.Record, event.Key)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns
// the failure messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertWriteOrder:
			err = assertWriteOrder(result.Trace, a)
		case AssertRowCount:
			err = assertRowCount(result.State, a)
		case AssertFinalState:
			err = assertFinalState(result.State, a)
		case AssertBrokenEdge:
			err = assertBrokenEdge(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// assertWriteOrder checks that the first write of each listed table
// appears in the listed order. Other tables may be interleaved.
func assertWriteOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Table]; !seen {
			positions[event.Table] = i + 1 // 1-indexed for readability
		}
	}

	for _, table := range a.Tables {
		if positions[table] == 0 {
			return &AssertionError{
				Type:     AssertWriteOrder,
				Expected: fmt.Sprintf("writes to all tables: %v", a.Tables),
				Actual:   fmt.Sprintf("no write to %s", table),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Tables); i++ {
		prev, curr := a.Tables[i-1], a.Tables[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertWriteOrder,
				Expected: fmt.Sprintf("tables in order: %v", a.Tables),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertRowCount(state map[string][]map[string]any, a Assertion) error {
	if n := len(state[a.Table]); n != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s", a.Count, a.Table),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

// assertFinalState finds the single row of a.Table matching every Where
// field and checks the Expect fields against it (subset semantics).
func assertFinalState(state map[string][]map[string]any, a Assertion) error {
	var matches []map[string]any
	for _, row := range state[a.Table] {
		if matchRow(row, a.Where) {
			matches = append(matches, row)
		}
	}

	whereDesc := formatWhereClause(a.Where)
	switch len(matches) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, whereDesc),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(matches)),
		}
	}

	row := matches[0]
	for _, key := range sortedKeys(a.Expect) {
		expected := a.Expect[key]
		actual, exists := row[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in row columns: %v", key, sortedKeys(row)),
			}
		}
		if !stateValuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expected, expected),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actual, actual),
			}
		}
	}
	return nil
}

func assertBrokenEdge(result *Result, a Assertion) error {
	if slices.ContainsFunc(result.Broken, func(e engine.BrokenEdge) bool {
		return e.Record == a.Record && e.Field == a.Field
	}) {
		return nil
	}
	return &AssertionError{
		Type:     AssertBrokenEdge,
		Expected: fmt.Sprintf("%s.%s left empty", a.Record, a.Field),
		Actual:   fmt.Sprintf("%d broken edges, none matching", len(result.Broken)),
		Trace:    result.Trace,
	}
}

func matchRow(row, where map[string]any) bool {
	for key, want := range where {
		got, ok := row[key]
		if !ok || !stateValuesEqual(want, got) {
			return false
		}
	}
	return true
}

// formatWhereClause creates a human-readable description of where conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stateValuesEqual compares a scenario value with a stored one. Backends
// differ in how they hand values back: SQLite widens integers to int64
// and stores booleans as 0/1, bbolt returns UUIDs as strings.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if e, ok := toInt64(expected); ok {
		if a, ok := toInt64(actual); ok {
			return e == a
		}
		if a, ok := actual.(float64); ok {
			return float64(e) == a
		}
		return false
	}

	switch exp := expected.(type) {
	case bool:
		if a, ok := actual.(bool); ok {
			return exp == a
		}
		if a, ok := toInt64(actual); ok {
			return exp == (a != 0)
		}
		return false
	case float64:
		if a, ok := actual.(float64); ok {
			return exp == a
		}
		if a, ok := toInt64(actual); ok {
			return exp == float64(a)
		}
		return false
	case string:
		if s, ok := actual.(fmt.Stringer); ok {
			return exp == s.String()
		}
		if a, ok := actual.(string); ok {
			return exp == a
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}
