package fixture

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/seedgraph/internal/schema"
)

// epoch anchors generated timestamps so runs with the same seed agree.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator produces deterministic filler values for unset fields. Two
// generators with the same seed yield the same sequence.
type Generator struct {
	mu  sync.Mutex
	src *rand.ChaCha8
	rng *rand.Rand
	seq map[string]int
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed uint64) *Generator {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	src := rand.NewChaCha8(key)
	return &Generator{src: src, rng: rand.New(src), seq: make(map[string]int)}
}

// Value has the engine.ValueFunc signature. Nullable fields are left
// unset one time in four.
func (g *Generator) Value(desc *schema.Descriptor, f schema.Field) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if f.Nullable && g.rng.IntN(4) == 0 {
		return nil, nil
	}

	switch f.Kind {
	case schema.KindInt32:
		return int32(g.rng.IntN(1000) + 1), nil
	case schema.KindInt64:
		return int64(g.rng.IntN(1_000_000) + 1), nil
	case schema.KindString:
		col := desc.Table + "." + f.Name
		g.seq[col]++
		s := fmt.Sprintf("%s %d", f.Name, g.seq[col])
		if f.MaxLength > 0 && len(s) > f.MaxLength {
			s = s[len(s)-f.MaxLength:]
		}
		return s, nil
	case schema.KindUUID:
		return uuid.NewRandomFromReader(g.src)
	case schema.KindBool:
		return g.rng.IntN(2) == 1, nil
	case schema.KindFloat64:
		return float64(g.rng.IntN(100_000)) / 100, nil
	case schema.KindTime:
		return epoch.Add(time.Duration(g.rng.IntN(365*24*3600)) * time.Second), nil
	case schema.KindBytes:
		b := make([]byte, 8)
		_, _ = g.src.Read(b)
		return b, nil
	}
	return nil, fmt.Errorf("fixture: no generator for %s.%s of kind %s", desc.Table, f.Name, f.Kind)
}
