package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lindiff/internal/trace"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Commands bool // print only the command of each record
}

// ParseResult is the JSON payload of the parse command.
type ParseResult struct {
	File     string     `json:"file"`
	Header   string     `json:"header"`
	Records  [][]string `json:"records"`
	Commands []string   `json:"commands"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <output-file>",
		Short: "Parse captured engine output into trace records",
		Long: `Parse a captured engine output file the way lindiff run does: the
first line is the header, the last three lines are the statistics footer,
and every line in between is a trace record.

Examples:
  lindiff parse temp/lineage_add.txt
  lindiff parse temp/lineage_add.txt --commands
  lindiff parse temp/lineage_add.txt --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return parseOutput(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Commands, "commands", false, "print only record commands")

	return cmd
}

func parseOutput(opts *ParseOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	parsed, err := trace.ParseFile(path)
	if err != nil {
		if out.JSON() {
			_ = out.Error(CodeParseFailed, err.Error(), map[string]string{"file": path})
		}
		return WrapExitError(ExitCommandError, "failed to parse engine output", err)
	}

	if out.JSON() {
		records := make([][]string, len(parsed.Sequence))
		for i, r := range parsed.Sequence {
			records[i] = r
		}
		return out.Success(ParseResult{
			File:     path,
			Header:   parsed.Header,
			Records:  records,
			Commands: parsed.Sequence.Commands(),
		})
	}

	out.VerboseLog("header: %s", parsed.Header)
	w := cmd.OutOrStdout()
	for i, r := range parsed.Sequence {
		if opts.Commands {
			fmt.Fprintln(w, r.Command())
			continue
		}
		fmt.Fprintf(w, "%d\t%s\n", i+1, r)
	}
	return nil
}
