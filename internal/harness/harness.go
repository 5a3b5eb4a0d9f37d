package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/seedgraph/internal/batch"
	"github.com/roach88/seedgraph/internal/engine"
	"github.com/roach88/seedgraph/internal/fixture"
	"github.com/roach88/seedgraph/internal/kvstore"
	"github.com/roach88/seedgraph/internal/store"
	"github.com/roach88/seedgraph/internal/testutil"
)

// Harness runs one scenario against one backend.
type Harness struct {
	scenario *Scenario
	backend  backend
	guids    *testutil.SequentialGUIDs
	values   *fixture.Generator
	logger   *slog.Logger
}

// backend is the storage a scenario persists into.
type backend interface {
	persist(ctx context.Context, set *fixture.Set, opts []engine.Option) (*engine.Report, error)
	rows(ctx context.Context, table string) ([]map[string]any, error)
	close() error
}

// Run executes a scenario and returns the result.
//
// Each scenario gets a fresh backend in a temporary directory, removed
// when Run returns. An error is returned only when the scenario cannot be
// executed; failed assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "seedgraph-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	be, err := openBackend(scenario.Backend, dir)
	if err != nil {
		return nil, err
	}
	defer be.close()

	h := &Harness{
		scenario: scenario,
		backend:  be,
		guids:    testutil.NewSequentialGUIDs(),
		values:   fixture.NewGenerator(scenario.Seed),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	return h.run(ctx)
}

func (h *Harness) run(ctx context.Context) (*Result, error) {
	result := NewResult()
	var tables []string

	runs := max(h.scenario.Runs, 1)
	for run := 1; run <= runs; run++ {
		set, err := fixture.Load(h.scenario.Fixture)
		if err != nil {
			return nil, fmt.Errorf("failed to load fixture: %w", err)
		}
		if tables == nil {
			for _, d := range set.Registry.Descriptors() {
				tables = append(tables, d.Table)
			}
		}

		report, err := h.backend.persist(ctx, set, h.options())
		if err != nil {
			if h.scenario.ExpectError == "" {
				return nil, fmt.Errorf("run %d: %w", run, err)
			}
			result.RunError = err.Error()
			break
		}
		result.AddReport(run, report)
	}

	if want := h.scenario.ExpectError; want != "" {
		switch {
		case result.RunError == "":
			result.AddError(fmt.Sprintf("expected a run to fail with %q, but every run succeeded", want))
		case !strings.Contains(result.RunError, want):
			result.AddError(fmt.Sprintf("expected error containing %q, got %q", want, result.RunError))
		}
	}

	for _, table := range tables {
		rows, err := h.backend.rows(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", table, err)
		}
		result.State[table] = rows
	}

	for _, msg := range EvaluateAssertions(result, h.scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) options() []engine.Option {
	opts := []engine.Option{
		engine.WithLogger(h.logger),
		engine.WithValueFunc(h.values.Value),
		engine.WithGUIDs(h.guids),
	}
	if h.scenario.MaxRecords > 0 {
		opts = append(opts, engine.WithMaxRecords(h.scenario.MaxRecords))
	}
	return opts
}

func openBackend(name, dir string) (backend, error) {
	switch name {
	case BackendMemory, "":
		return &memoryBackend{sink: batch.NewMemorySink(), clock: engine.NewClock()}, nil
	case BackendSQLite:
		st, err := store.Open(filepath.Join(dir, "scenario.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return &sqlBackend{st: st}, nil
	case BackendBolt:
		kv, err := kvstore.Open(filepath.Join(dir, "scenario.bolt"), kvstore.Options{IsTesting: true})
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		return &boltBackend{kv: kv, clock: engine.NewClock()}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

type memoryBackend struct {
	sink  *batch.MemorySink
	clock *engine.Clock
}

func (b *memoryBackend) persist(ctx context.Context, set *fixture.Set, opts []engine.Option) (*engine.Report, error) {
	opts = append(opts, engine.WithClock(b.clock))
	return engine.New(b.sink, b.sink, opts...).Persist(ctx, set.Handles()...)
}

func (b *memoryBackend) rows(_ context.Context, table string) ([]map[string]any, error) {
	rows := b.sink.Rows(table)
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (b *memoryBackend) close() error { return nil }

type sqlBackend struct {
	st *store.Store
}

// persist creates missing tables and binds the batch. The store numbers
// batches from its journal, so no clock is passed.
func (b *sqlBackend) persist(ctx context.Context, set *fixture.Set, opts []engine.Option) (*engine.Report, error) {
	if err := b.st.EnsureTables(ctx, set.Registry.Descriptors()...); err != nil {
		return nil, err
	}
	return b.st.Bind(ctx, set.Handles(), opts...)
}

func (b *sqlBackend) rows(ctx context.Context, table string) ([]map[string]any, error) {
	// A table is only created by the first successful persist.
	if n, err := b.st.Count(ctx, table); err != nil || n == 0 {
		return nil, nil
	}
	return b.st.Rows(ctx, table)
}

func (b *sqlBackend) close() error { return b.st.Close() }

type boltBackend struct {
	kv    *kvstore.Store
	clock *engine.Clock
}

func (b *boltBackend) persist(ctx context.Context, set *fixture.Set, opts []engine.Option) (*engine.Report, error) {
	opts = append(opts, engine.WithClock(b.clock))
	return engine.New(b.kv, b.kv, opts...).Persist(ctx, set.Handles()...)
}

func (b *boltBackend) rows(_ context.Context, table string) ([]map[string]any, error) {
	rows, err := b.kv.Rows(table)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (b *boltBackend) close() error { return b.kv.Close() }
