// Command lindiff runs differential lineage scenarios against an external
// engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/lindiff/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lindiff: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
