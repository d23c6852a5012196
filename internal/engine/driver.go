package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/roach88/lindiff/internal/trace"
)

// DefaultBinary is the engine launcher used when WithBinary is not given.
const DefaultBinary = "systemds"

// DefaultScriptExt is the extension of script files written for the engine.
const DefaultScriptExt = ".dml"

// ExitPolicy decides what a non-zero engine exit means.
type ExitPolicy int

const (
	// ExitIgnore records the exit code and parses the output anyway.
	ExitIgnore ExitPolicy = iota

	// ExitStrict fails the execution with *ExitStatusError.
	ExitStrict
)

// String returns the policy name used in logs and configuration.
func (p ExitPolicy) String() string {
	switch p {
	case ExitIgnore:
		return "ignore"
	case ExitStrict:
		return "strict"
	}
	return fmt.Sprintf("ExitPolicy(%d)", int(p))
}

// Option configures a Driver.
type Option func(*Driver)

// WithBinary sets the engine executable. Bare names are resolved on PATH.
func WithBinary(binary string) Option {
	return func(d *Driver) {
		d.binary = binary
	}
}

// WithArgs sets arguments passed to the engine before the script path.
func WithArgs(args ...string) Option {
	return func(d *Driver) {
		d.args = append([]string(nil), args...)
	}
}

// WithEnv adds KEY=VALUE entries to the engine's environment, on top of the
// current process environment.
func WithEnv(env ...string) Option {
	return func(d *Driver) {
		d.env = append(d.env, env...)
	}
}

// WithTimeout bounds a single engine run. Zero means no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		d.timeout = timeout
	}
}

// WithExitPolicy sets how non-zero exit codes are treated.
func WithExitPolicy(policy ExitPolicy) Option {
	return func(d *Driver) {
		d.exitPolicy = policy
	}
}

// WithLogger sets the logger for execution events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithScriptExt sets the extension of script files.
func WithScriptExt(ext string) Option {
	return func(d *Driver) {
		d.scriptExt = ext
	}
}

// Driver runs scripts on the external engine.
//
// A Driver holds no per-run state beyond its workspace, so concurrent Execute
// calls are safe as long as they use distinct names.
type Driver struct {
	binary     string
	args       []string
	env        []string
	timeout    time.Duration
	exitPolicy ExitPolicy
	scriptExt  string
	logger     *slog.Logger
	ws         *Workspace
}

// NewDriver creates a driver whose scripts and output live under dir.
func NewDriver(dir string, opts ...Option) *Driver {
	d := &Driver{
		binary:    DefaultBinary,
		scriptExt: DefaultScriptExt,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.ws = NewWorkspace(dir)
	d.ws.scriptExt = d.scriptExt
	return d
}

// Workspace returns the driver's workspace.
func (d *Driver) Workspace() *Workspace {
	return d.ws
}

// Binary returns the configured engine executable.
func (d *Driver) Binary() string {
	return d.binary
}

// Available reports whether the engine binary can be found. Callers use it to
// skip differential runs on machines without the engine.
func (d *Driver) Available() error {
	if _, err := exec.LookPath(d.binary); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEngineNotFound, d.binary, err)
	}
	return nil
}

// Execution is the outcome of one engine run.
type Execution struct {
	Name       string `json:"name"`
	ScriptPath string `json:"script_path"`
	OutputPath string `json:"output_path"`

	// Header is the first output line, excluded from Sequence.
	Header string `json:"header"`

	// Sequence is the parsed trace with header and footer removed.
	Sequence trace.Sequence `json:"-"`

	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration_ns"`
}

// Execute writes script to <dir>/<name><ext>, runs the engine on it, waits
// for it to exit and parses <dir>/<name>.txt. It is WriteScript, Invoke and
// Collect in sequence.
//
// Existing files for the same name are overwritten. Under ExitStrict a
// non-zero exit returns the parsed Execution together with an
// *ExitStatusError.
func (d *Driver) Execute(ctx context.Context, script, name string) (*Execution, error) {
	if _, err := d.WriteScript(script, name); err != nil {
		return nil, err
	}
	ex, runErr := d.Invoke(ctx, name)
	if ex == nil {
		return nil, runErr
	}
	if err := d.Collect(ex); err != nil {
		return nil, errors.Join(runErr, err)
	}
	return ex, runErr
}

// WriteScript writes script verbatim to the script file for name, creating
// the workspace if needed, and returns the file's path.
func (d *Driver) WriteScript(script, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if err := d.ws.Ensure(); err != nil {
		return "", err
	}

	scriptPath := d.ws.ScriptPath(name)
	d.ws.track(scriptPath)
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return "", fmt.Errorf("write script %s: %w", scriptPath, err)
	}
	return scriptPath, nil
}

// Invoke runs the engine on the script previously written for name and waits
// for it to exit. Stdout and stderr both go to the output file.
//
// The returned Execution carries paths, exit code and duration but no parsed
// trace; see Collect. Under ExitStrict a non-zero exit returns the Execution
// together with an *ExitStatusError.
func (d *Driver) Invoke(ctx context.Context, name string) (*Execution, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	scriptPath := d.ws.ScriptPath(name)
	outputPath := d.ws.OutputPath(name)
	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output %s: %w", outputPath, err)
	}
	d.ws.track(outputPath)

	runCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), d.args...), scriptPath)
	cmd := exec.CommandContext(runCtx, d.binary, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	if len(d.env) > 0 {
		cmd.Env = append(os.Environ(), d.env...)
	}

	d.logger.Debug("engine started",
		slog.String("name", name),
		slog.String("binary", d.binary),
		slog.String("script", scriptPath),
	)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)
	closeErr := out.Close()

	exitCode, err := d.classify(runCtx, ctx, name, runErr)
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close output %s: %w", outputPath, closeErr)
	}

	ex := &Execution{
		Name:       name,
		ScriptPath: scriptPath,
		OutputPath: outputPath,
		ExitCode:   exitCode,
		Duration:   duration,
	}

	d.logger.Debug("engine finished",
		slog.String("name", name),
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", duration),
	)

	if exitCode != 0 {
		d.logger.Warn("engine exited with non-zero status",
			slog.String("name", name),
			slog.Int("exit_code", exitCode),
			slog.String("policy", d.exitPolicy.String()),
			slog.String("output", outputPath),
		)
		if d.exitPolicy == ExitStrict {
			return ex, &ExitStatusError{Name: name, Code: exitCode, OutputPath: outputPath}
		}
	}
	return ex, nil
}

// Collect parses the captured output of ex into its Header and Sequence.
func (d *Driver) Collect(ex *Execution) error {
	parsed, err := trace.ParseFile(ex.OutputPath)
	if err != nil {
		return err
	}
	ex.Header = parsed.Header
	ex.Sequence = parsed.Sequence
	d.logger.Debug("engine output parsed",
		slog.String("name", ex.Name),
		slog.String("header", ex.Header),
		slog.Int("records", len(ex.Sequence)),
	)
	return nil
}

// classify turns the result of cmd.Run into an exit code or a fatal error.
func (d *Driver) classify(runCtx, parent context.Context, name string, runErr error) (int, error) {
	if runErr == nil {
		return 0, nil
	}

	if parent.Err() != nil {
		return 0, fmt.Errorf("engine run %q: %w", name, parent.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return 0, fmt.Errorf("engine run %q timed out after %s: %w", name, d.timeout, context.DeadlineExceeded)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s: %v", ErrEngineNotFound, d.binary, runErr)
	}
	return 0, fmt.Errorf("start engine %s: %w", d.binary, runErr)
}
