package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/roach88/seedgraph/internal/bigcount"
	"github.com/roach88/seedgraph/internal/letterkey"
)

// KeyResult is the JSON payload of the key subcommands.
type KeyResult struct {
	Count string `json:"count"`
	Key   string `json:"key"`
}

// NewKeyCommand creates the key command group.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Convert between counts and letter keys",
	}
	cmd.AddCommand(newKeyEncodeCommand(rootOpts))
	cmd.AddCommand(newKeyDecodeCommand(rootOpts))
	return cmd
}

func newKeyEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	var maxLength int

	cmd := &cobra.Command{
		Use:   "encode <count>",
		Short: "Encode a decimal count as a letter key",
		Long: `Encode a decimal count as a letter key (0 is A, 26 is BA).

Example:
  seedgraph key encode 27
  seedgraph key encode --max-length 3 17575`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bigcount.ParseDecimal(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid count", err).WithErrCode(ErrCodeInvalidInput)
			}
			if maxLength < 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("--max-length must be >= 0, got %d", maxLength)).WithErrCode(ErrCodeInvalidInput)
			}
			limit := maxLength
			if limit == 0 {
				limit = math.MaxInt
			}
			key, err := letterkey.Encode(n, limit)
			if err != nil {
				return WrapExitError(ExitFailure, "cannot encode count", err)
			}
			return keyOutput(rootOpts, cmd, KeyResult{Count: n.String(), Key: key}, key)
		},
	}
	cmd.Flags().IntVar(&maxLength, "max-length", 0, "maximum key length (0 for unbounded)")
	return cmd
}

func newKeyDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "decode <key>",
		Short:         "Decode a letter key to its decimal count",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := letterkey.Decode(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid key", err).WithErrCode(ErrCodeInvalidInput)
			}
			return keyOutput(rootOpts, cmd, KeyResult{Count: n.String(), Key: args[0]}, n.String())
		},
	}
}

func keyOutput(opts *RootOptions, cmd *cobra.Command, result KeyResult, text string) error {
	f := newFormatter(opts, cmd)
	if opts.Format == "json" {
		return f.Success(result)
	}
	return f.Success(text)
}
