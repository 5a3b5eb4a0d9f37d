package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/seedgraph/internal/engine"
	"github.com/roach88/seedgraph/internal/fixture"
	"github.com/roach88/seedgraph/internal/resolver"
	"github.com/roach88/seedgraph/internal/sqlbatch"
	"github.com/roach88/seedgraph/internal/store"
)

// SQLOptions holds flags for the sql command.
type SQLOptions struct {
	*RootOptions
	Dialect string
	Seed    uint64
	DDL     bool

	// GUIDs allows overriding the UUID key generator (for testing).
	GUIDs engine.GUIDGenerator
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SQLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sql <fixture>",
		Short: "Print the batch script for a fixture without executing it",
		Long: `Plan a fixture's batch and print the SQL script it would run.

Deferred keys are numbered as if the target tables were empty.

Example:
  seedgraph sql ./library.yaml
  seedgraph sql --dialect postgres --ddl ./library.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", "sqlite", "SQL dialect (sqlite|postgres)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "seed for generated field values")
	cmd.Flags().BoolVar(&opts.DDL, "ddl", false, "print CREATE TABLE statements first")

	return cmd
}

// SQLResult is the JSON payload of the sql command.
type SQLResult struct {
	Dialect string   `json:"dialect"`
	DDL     []string `json:"ddl,omitempty"`
	Script  string   `json:"script"`
}

func runSQL(opts *SQLOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	dialect, err := sqlbatch.ByName(opts.Dialect)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid dialect", err).WithErrCode(ErrCodeInvalidInput)
	}
	set, err := fixture.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load fixture", err).WithErrCode(ErrCodeFixture)
	}

	engineOpts := []engine.Option{
		engine.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())),
		engine.WithValueFunc(fixture.NewGenerator(opts.Seed).Value),
	}
	if opts.GUIDs != nil {
		engineOpts = append(engineOpts, engine.WithGUIDs(opts.GUIDs))
	}

	w := sqlbatch.NewWriter(nil, dialect)
	p := engine.New(w, resolver.NewMemoryCounts(), engineOpts...)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := p.Plan(ctx, set.Handles()...); err != nil {
		return WrapExitError(ExitFailure, "failed to plan batch", err).WithErrCode(ErrCodePersist)
	}
	script, err := w.Script()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to render script", err)
	}

	result := SQLResult{Dialect: dialect.Name(), Script: script}
	if opts.DDL {
		for _, d := range store.CreationOrder(set.Registry.Descriptors()...) {
			result.DDL = append(result.DDL, dialect.CreateTable(d)+";")
		}
	}

	if opts.Format == "json" {
		return f.Success(result)
	}
	if len(result.DDL) > 0 {
		fmt.Fprintln(f.Writer, strings.Join(result.DDL, "\n"))
	}
	fmt.Fprintln(f.Writer, result.Script)
	return nil
}
