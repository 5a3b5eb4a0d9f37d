package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/seedgraph/internal/bigcount"
	"github.com/roach88/seedgraph/internal/letterkey"
	"github.com/roach88/seedgraph/internal/schema"
)

// DefaultKeyLength bounds letter-encoded keys on fields without MaxLength.
const DefaultKeyLength = 12

// Start returns the first count handed out for an empty field: 1 for
// integer keys, 0 ("A") for letter keys.
func Start(f schema.Field) bigcount.Counter {
	if f.Kind == schema.KindString {
		return bigcount.Zero()
	}
	return bigcount.One()
}

// Value converts a count into the field's Go value. Integer fields are
// downcast to their width and fail with bigcount.ErrOverflow when the count
// does not fit; string fields are letter-encoded within MaxLength.
func Value(f schema.Field, c bigcount.Counter) (any, error) {
	switch f.Kind {
	case schema.KindInt32:
		n, err := c.Int32()
		if err != nil {
			return nil, fmt.Errorf("%s as int32: %w", c, err)
		}
		return n, nil
	case schema.KindInt64:
		n, err := c.Int64()
		if err != nil {
			return nil, fmt.Errorf("%s as int64: %w", c, err)
		}
		return n, nil
	case schema.KindString:
		length := f.MaxLength
		if length <= 0 {
			length = DefaultKeyLength
		}
		return letterkey.Encode(c, length)
	}
	return nil, fmt.Errorf("resolver: field %s of kind %s cannot take sequential values", f.Name, f.Kind)
}

// Count converts a stored field value back into a count.
func Count(f schema.Field, v any) (bigcount.Counter, error) {
	if f.Kind == schema.KindString {
		s, err := schema.Coerce(schema.KindString, v)
		if err != nil {
			return bigcount.Counter{}, err
		}
		return letterkey.Decode(s.(string))
	}
	n, err := schema.Coerce(schema.KindInt64, v)
	if err != nil {
		return bigcount.Counter{}, err
	}
	i := n.(int64)
	if i < 0 {
		return bigcount.Counter{}, fmt.Errorf("resolver: negative value %d: %w", i, bigcount.ErrUnderflow)
	}
	return bigcount.New(uint64(i)), nil
}

// NextAfter returns the first free count given the field's current maximum
// stored value. A nil max means the field is empty. Negative integer
// maxima are below the sequence and also yield Start.
func NextAfter(f schema.Field, current any) (bigcount.Counter, error) {
	if current == nil {
		return Start(f), nil
	}
	c, err := Count(f, current)
	if err != nil {
		if f.Kind != schema.KindString && errors.Is(err, bigcount.ErrUnderflow) {
			return Start(f), nil
		}
		return bigcount.Counter{}, fmt.Errorf("resolver: existing maximum %v: %w", current, err)
	}
	next := c.Inc()
	if next.Less(Start(f)) {
		return Start(f), nil
	}
	return next, nil
}

// MemoryCounts is a process-local monotonic CountSource. Each call reserves
// the n values it is about to hand out.
type MemoryCounts struct {
	mu   sync.Mutex
	next map[FieldRef]bigcount.Counter
}

// NewMemoryCounts returns a counter source with no history.
func NewMemoryCounts() *MemoryCounts {
	return &MemoryCounts{next: make(map[FieldRef]bigcount.Counter)}
}

// InitialCount implements CountSource.
func (m *MemoryCounts) InitialCount(_ context.Context, field FieldRef, n int) (bigcount.Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.next[field]
	if !ok {
		cur = Start(field.Field)
	}
	m.next[field] = cur.Add(bigcount.New(uint64(n)))
	return cur, nil
}

// Advance implements Advancer. The next count only moves forward.
func (m *MemoryCounts) Advance(field FieldRef, next bigcount.Counter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.next[field]; ok && !cur.Less(next) {
		return
	}
	m.next[field] = next
}

// Seed sets the next count for field.
func (m *MemoryCounts) Seed(field FieldRef, next bigcount.Counter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next[field] = next
}
