package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/roach88/seedgraph/internal/batch"
	"github.com/roach88/seedgraph/internal/engine"
	"github.com/roach88/seedgraph/internal/fixture"
	"github.com/roach88/seedgraph/internal/kvstore"
	"github.com/roach88/seedgraph/internal/store"
)

// Storage backends accepted by --backend.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendMemory   = "memory"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database   string
	Backend    string
	Seed       uint64
	MaxRecords int
	Statements []string

	// GUIDs allows overriding the UUID key generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	GUIDs engine.GUIDGenerator
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <fixture>",
		Short: "Persist a fixture's records in one batch",
		Long: `Persist every record of a YAML or CUE fixture in one batch.

Tables are created as needed (SQL backends). Fields the fixture leaves unset
are filled from a deterministic generator seeded by --seed.

Example:
  seedgraph seed --db ./seed.db ./library.yaml
  seedgraph seed --backend bolt --db ./seed.bolt ./library.cue
  seedgraph seed --backend postgres --db postgres://localhost/seed?sslmode=disable ./library.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "database path or DSN (required unless --backend memory)")
	cmd.Flags().StringVar(&opts.Backend, "backend", BackendSQLite, "storage backend (sqlite|postgres|bolt|memory)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "seed for generated field values")
	cmd.Flags().IntVar(&opts.MaxRecords, "max-records", engine.DefaultMaxRecords, "largest batch accepted (0 disables the limit)")
	cmd.Flags().StringArrayVar(&opts.Statements, "exec", nil, "raw statement to run at the start of the batch (repeatable)")

	return cmd
}

// SeedResult is the JSON payload of the seed command.
type SeedResult struct {
	Backend    string              `json:"backend"`
	Batch      int64               `json:"batch"`
	Statements int                 `json:"statements"`
	Tokens     int                 `json:"tokens"`
	Writes     []engine.Write      `json:"writes"`
	Broken     []engine.BrokenEdge `json:"broken,omitempty"`
}

func runSeed(opts *SeedOptions, path string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	f := newFormatter(opts.RootOptions, cmd)

	if opts.Backend != BackendMemory && opts.Database == "" {
		return NewExitError(ExitCommandError, fmt.Sprintf("--db is required for the %s backend", opts.Backend)).WithErrCode(ErrCodeInvalidInput)
	}

	set, err := fixture.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load fixture", err).WithErrCode(ErrCodeFixture)
	}
	f.VerboseLog("loaded %s from %s", english.Plural(len(set.Records), "record", ""), path)

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithValueFunc(fixture.NewGenerator(opts.Seed).Value),
		engine.WithMaxRecords(opts.MaxRecords),
	}
	if len(opts.Statements) > 0 {
		engineOpts = append(engineOpts, engine.WithStatements(opts.Statements...))
	}
	if opts.GUIDs != nil {
		engineOpts = append(engineOpts, engine.WithGUIDs(opts.GUIDs))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	report, err := seedBackend(ctx, opts, set, engineOpts, logger.Info)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return f.Success(SeedResult{
			Backend:    opts.Backend,
			Batch:      report.Batch,
			Statements: report.Statements,
			Tokens:     report.Tokens,
			Writes:     report.Writes,
			Broken:     report.Broken,
		})
	}

	rows := make([][]string, len(report.Writes))
	for i, w := range report.Writes {
		rows[i] = []string{fmt.Sprint(w.Index), w.Table, w.Record, formatKey(w.Key)}
	}
	if err := f.Table([]string{"#", "Table", "Record", "Key"}, rows); err != nil {
		return WrapExitError(ExitFailure, "failed to render writes", err)
	}
	for _, e := range report.Broken {
		fmt.Fprintf(f.Writer, "cycle: %s.%s left empty (references %s)\n", e.Record, e.Field, e.Target)
	}
	return f.Success(fmt.Sprintf("Persisted %s with %s in %s (%s backend)",
		english.Plural(len(report.Writes), "record", ""),
		english.Plural(report.Statements, "statement", ""),
		report.Duration.Round(time.Microsecond),
		opts.Backend,
	))
}

func seedBackend(ctx context.Context, opts *SeedOptions, set *fixture.Set, engineOpts []engine.Option, info func(string, ...any)) (*engine.Report, error) {
	var (
		report *engine.Report
		err    error
	)
	switch opts.Backend {
	case BackendSQLite, BackendPostgres:
		var st *store.Store
		if opts.Backend == BackendSQLite {
			st, err = store.Open(opts.Database)
		} else {
			st, err = store.OpenDriver(opts.Backend, opts.Database)
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err).WithErrCode(ErrCodeOpenFailed)
		}
		defer st.Close()

		if err := st.EnsureTables(ctx, set.Registry.Descriptors()...); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create tables", err).WithErrCode(ErrCodeOpenFailed)
		}
		report, err = st.Bind(ctx, set.Handles(), engineOpts...)

	case BackendBolt:
		kv, openErr := kvstore.Open(opts.Database, kvstore.Options{})
		if openErr != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", openErr).WithErrCode(ErrCodeOpenFailed)
		}
		defer kv.Close()
		report, err = engine.New(kv, kv, engineOpts...).Persist(ctx, set.Handles()...)

	case BackendMemory:
		sink := batch.NewMemorySink()
		report, err = engine.New(sink, sink, engineOpts...).Persist(ctx, set.Handles()...)

	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown backend %q", opts.Backend)).WithErrCode(ErrCodeInvalidInput)
	}
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to persist fixture", err).WithErrCode(ErrCodePersist)
	}
	info("fixture persisted", "backend", opts.Backend, "records", humanize.Comma(int64(len(report.Writes))))
	return report, nil
}

func formatKey(k any) string {
	if k == nil {
		return "-"
	}
	return fmt.Sprint(k)
}
