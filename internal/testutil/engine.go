package testutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lindiff/internal/dml"
)

// HelperEnv is the environment variable that switches a test binary into
// helper engine mode.
const HelperEnv = "LINDIFF_HELPER_ENGINE"

// HelperEngine returns the running test binary and the environment entries
// that make it act as the reference engine. The calling package must invoke
// RunHelperEngine from its TestMain.
func HelperEngine(t testing.TB) (binary string, env []string) {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err, "locate test binary")
	return exe, []string{HelperEnv + "=1"}
}

// RunHelperEngine runs the reference engine and exits when the process was
// started as a helper engine. Otherwise it returns immediately.
func RunHelperEngine() {
	if os.Getenv(HelperEnv) == "" {
		return
	}
	os.Exit(helperMain(os.Args[1:], os.Stdout, os.Stderr))
}

// helperMain interprets the helper's command line:
//
//	[--exit N] [--sleep D] [--stderr MSG] [--long-line N] [--fail] <script>
//
// The script runs on the reference engine unless --fail is given. --stderr
// writes MSG to stderr after the engine output and --long-line appends a
// single line of N bytes to stdout. --exit overrides the exit code; --sleep
// delays before anything is written.
func helperMain(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("helper-engine", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	exitCode := fs.Int("exit", 0, "exit code to return after running the script")
	sleep := fs.Duration("sleep", 0, "delay before running the script")
	message := fs.String("stderr", "", "message written to stderr after the output")
	longLine := fs.Int("long-line", 0, "append a line of this many bytes to stdout")
	fail := fs.Bool("fail", false, "print an error instead of running the script")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: helper-engine [flags] <script>")
		return 2
	}

	if *sleep > 0 {
		time.Sleep(*sleep)
	}

	if *fail {
		fmt.Fprintln(stderr, "helper engine: forced failure")
		return 1
	}

	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "helper engine: %v\n", err)
		return 1
	}

	code := 0
	if err := dml.Run(context.Background(), string(src), stdout, dml.Options{}); err != nil {
		fmt.Fprintf(stderr, "helper engine: %v\n", err)
		code = 1
	}
	if *longLine > 0 {
		fmt.Fprintln(stdout, strings.Repeat("x", *longLine))
	}
	if *message != "" {
		fmt.Fprintln(stderr, *message)
	}
	if *exitCode != 0 {
		code = *exitCode
	}
	return code
}
