package engine

// BrokenEdge is a foreign key left out of a statement because its peer was
// still being written when the reference was reached.
//
// Example cycle:
//
//	a.b_id → b, b.a_id → a
//	write(a) → write(b) → a is on the guard stack → b.a_id is broken
//
// b is written without a_id; a is then written with b_id pointing at b.
// This is not an error. The report lists the edge so callers can patch it
// with a follow-up update if they need both directions.
type BrokenEdge struct {
	// Table and Record identify the record whose column was omitted.
	Table  string `json:"table"`
	Record string `json:"record"`

	// Field is the omitted foreign-key column.
	Field string `json:"field"`

	// Target names the referenced record.
	Target string `json:"target"`
}

// cycleLog collects the edges one session broke, in the order they were
// reached.
type cycleLog struct {
	edges []BrokenEdge
	seen  map[cycleKey]bool
}

type cycleKey struct {
	op    *InsertOperation
	field string
}

func newCycleLog() *cycleLog {
	return &cycleLog{seen: make(map[cycleKey]bool)}
}

// Record notes that op's field was broken. Repeat reports are ignored.
func (c *cycleLog) Record(op, target *InsertOperation, field string) {
	k := cycleKey{op: op, field: field}
	if c.seen[k] {
		return
	}
	c.seen[k] = true
	c.edges = append(c.edges, BrokenEdge{
		Table:  op.Table(),
		Record: describe(op.Record),
		Field:  field,
		Target: describe(target.Record),
	})
}

// Edges returns the broken edges in discovery order.
func (c *cycleLog) Edges() []BrokenEdge {
	return append([]BrokenEdge(nil), c.edges...)
}
