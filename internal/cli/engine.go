package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/lindiff/internal/dml"
)

// EngineOptions holds flags for the engine command.
type EngineOptions struct {
	*RootOptions
	CacheSize int
}

// NewEngineCommand creates the engine command, the built-in reference
// engine. Its output has the same frame as the external engine's, so
// "lindiff run --engine lindiff --engine-arg engine" checks the in-process
// trace against the reference interpreter.
func NewEngineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EngineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "engine <script>",
		Short: "Run a script on the reference engine",
		Long: `Run a script on the built-in reference engine and write its output to
stdout: one header line, the program's print output, and a three-line
statistics footer.

Examples:
  lindiff engine scenarios/lineage_add.dml
  lindiff engine scenarios/lineage_add.dml > temp/lineage_add.txt`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReferenceEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.CacheSize, "cache-size", 0, "lineage reuse cache entries (0 = default, negative disables)")

	return cmd
}

func runReferenceEngine(opts *EngineOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	src, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read script", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Engine output is the product here, so it is written raw in either format.
	err = dml.Run(ctx, string(src), cmd.OutOrStdout(), dml.Options{
		CacheSize: opts.CacheSize,
		Logger:    out.Logger(),
	})
	if err != nil {
		fmt.Fprintf(out.GetErrWriter(), "Error [%s]: %v\n", CodeEngineFailed, err)
		return WrapExitError(ExitFailure, "script failed", err)
	}
	return nil
}
