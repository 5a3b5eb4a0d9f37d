package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/seedgraph/internal/batch"
	"github.com/roach88/seedgraph/internal/resolver"
	"github.com/roach88/seedgraph/internal/schema"
)

// ValueFunc produces a value for a non-key, non-reference field that the
// record left unset. It is called at most once per field per record. A nil
// value leaves the column out of the statement.
type ValueFunc func(desc *schema.Descriptor, f schema.Field) (any, error)

// Persister writes record graphs to a sink.
//
// Thread-safety model:
//   - Persist and Plan serialize on an internal mutex; the sink is used by
//     one session at a time
//   - Each call builds its own session, so nothing leaks between batches
//     except the set of records already stored
type Persister struct {
	mu sync.Mutex

	sink   batch.Sink
	counts resolver.CountSource

	values     ValueFunc
	guids      GUIDGenerator
	logger     *slog.Logger
	clock      *Clock
	maxRecords int
	statements []string

	// stored holds records persisted by earlier batches. References to
	// them use their key directly instead of writing them again.
	stored map[schema.RecordHandle]struct{}
}

// Option configures a Persister.
type Option func(*Persister)

// WithValueFunc sets the generator for unset non-key fields.
func WithValueFunc(fn ValueFunc) Option {
	return func(p *Persister) { p.values = fn }
}

// WithGUIDs sets the generator for unset UUID keys.
//
// Default: UUIDv7Generator
func WithGUIDs(g GUIDGenerator) Option {
	return func(p *Persister) { p.guids = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Persister) { p.logger = l }
}

// WithClock sets the clock that numbers batches.
func WithClock(c *Clock) Option {
	return func(p *Persister) { p.clock = c }
}

// WithMaxRecords limits the records one batch may reach.
//
// Default: 100000 records (DefaultMaxRecords). Zero disables the limit.
func WithMaxRecords(n int) Option {
	return func(p *Persister) { p.maxRecords = n }
}

// WithStatements queues raw statements at the start of every batch, e.g.
// "PRAGMA defer_foreign_keys = ON".
func WithStatements(stmts ...string) Option {
	return func(p *Persister) { p.statements = append(p.statements, stmts...) }
}

// New creates a Persister writing to sink and drawing initial counts for
// deferred keys from counts.
func New(sink batch.Sink, counts resolver.CountSource, opts ...Option) *Persister {
	p := &Persister{
		sink:       sink,
		counts:     counts,
		guids:      UUIDv7Generator{},
		logger:     slog.Default(),
		clock:      NewClock(),
		maxRecords: DefaultMaxRecords,
		stored:     make(map[schema.RecordHandle]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MarkStored declares records that already exist in the store. References
// to them take their current key value.
func (p *Persister) MarkStored(handles ...schema.RecordHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range handles {
		p.stored[h] = struct{}{}
	}
}

// isStored reports whether h was persisted earlier and still has a key.
func (p *Persister) isStored(h schema.RecordHandle) bool {
	if _, ok := p.stored[h]; !ok {
		return false
	}
	v, ok := schema.KeyValue(h)
	return ok && v != nil
}

// Persist writes handles and every record they reach in one batch and
// assigns the resulting keys back onto the records.
//
// A failure anywhere aborts the whole batch: queued statements are
// discarded and nothing is marked stored. Whether rows already sent to the
// store survive depends on the sink; SQL sinks should run inside a
// transaction the caller rolls back.
func (p *Persister) Persist(ctx context.Context, handles ...schema.RecordHandle) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	s := p.newSession()
	log := p.logger.With("batch", s.batch)

	if err := s.prepare(ctx, handles); err != nil {
		s.abandon()
		observeFailure("prepare")
		log.Error("batch preparation failed", "error", err)
		return nil, err
	}
	if len(s.ordered) == 0 {
		log.Debug("nothing to persist")
		return s.report(time.Since(start)), nil
	}

	log.Debug("executing batch",
		"records", len(s.ordered),
		"statements", s.statements,
		"declared_reads", s.declaredReads(),
	)
	tokens, err := p.sink.Execute(ctx)
	if err != nil {
		observeFailure("execute")
		log.Error("batch execution failed", "error", err)
		return nil, newPersistError(ErrCodeExecute, nil, "batch execution failed", err)
	}
	if err := s.readBack(tokens); err != nil {
		observeFailure("read")
		log.Error("batch read-back failed", "error", err, "tokens", len(tokens))
		return nil, err
	}

	for _, op := range s.ordered {
		p.stored[op.Record] = struct{}{}
	}

	report := s.report(time.Since(start))
	report.Tokens = len(tokens)
	observeBatch(report)
	log.Info("batch persisted",
		"records", len(report.Writes),
		"statements", report.Statements,
		"tokens", report.Tokens,
		"broken_edges", len(report.Broken),
		"duration", report.Duration,
	)
	return report, nil
}

// Plan runs the ordering and resolve phases without executing. The
// statements stay queued in the sink for the caller to inspect, execute,
// or discard. Deferred and GUID keys are assigned onto the records;
// generated keys stay unset.
func (p *Persister) Plan(ctx context.Context, handles ...schema.RecordHandle) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	s := p.newSession()
	if err := s.prepare(ctx, handles); err != nil {
		s.abandon()
		return nil, err
	}
	return s.report(time.Since(start)), nil
}

// Report describes one batch.
type Report struct {
	// Batch is the clock value of the call.
	Batch int64

	// Writes lists the records in write order.
	Writes []Write

	// Broken lists foreign keys omitted to break reference cycles.
	Broken []BrokenEdge

	// Statements counts every statement queued, including key reads and
	// raw statements.
	Statements int

	// Tokens is the length of the result stream.
	Tokens int

	Duration time.Duration
}

// Write is one record's entry in a Report.
type Write struct {
	Index  int    `json:"index"`
	Table  string `json:"table"`
	Record string `json:"record"`
	Key    any    `json:"key"`
	Reads  int    `json:"reads"`

	Handle schema.RecordHandle `json:"-"`
}

// Tables returns the number of records written per table.
func (r *Report) Tables() map[string]int {
	out := make(map[string]int)
	for _, w := range r.Writes {
		out[w.Table]++
	}
	return out
}

func (r *Report) String() string {
	return fmt.Sprintf("batch %d: %d records, %d statements, %d tokens, %d broken edges",
		r.Batch, len(r.Writes), r.Statements, r.Tokens, len(r.Broken))
}
