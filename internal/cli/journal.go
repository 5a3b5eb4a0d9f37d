package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/seedgraph/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List the batches persisted into a SQLite database",
		Long: `List the batches recorded by earlier seed runs.

Example:
  seedgraph journal --db ./seed.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err).WithErrCode(ErrCodeOpenFailed)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	batches, err := st.Journal(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read journal", err)
	}

	if opts.Format == "json" {
		if batches == nil {
			batches = []store.Batch{}
		}
		return f.Success(batches)
	}
	if len(batches) == 0 {
		return f.Success("No batches recorded.")
	}

	var total int64
	rows := make([][]string, len(batches))
	for i, b := range batches {
		rows[i] = []string{
			fmt.Sprint(b.Seq),
			b.ID,
			humanize.Comma(int64(b.Records)),
			humanize.Comma(int64(b.Statements)),
			fmt.Sprint(b.BrokenEdges),
			b.Tables,
		}
		total += int64(b.Records)
	}
	if err := f.Table([]string{"Batch", "ID", "Records", "Statements", "Broken", "Tables"}, rows); err != nil {
		return WrapExitError(ExitFailure, "failed to render journal", err)
	}
	return f.Success(fmt.Sprintf("%s records in %d batches", humanize.Comma(total), len(batches)))
}
