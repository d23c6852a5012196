package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/lindiff/internal/engine"
	"github.com/roach88/lindiff/internal/lineage"
)

// StepError reports a scenario step that could not complete. State is the
// last state the scenario reached before the step.
type StepError struct {
	Name  string
	State State
	Step  string
	Err   error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("scenario %q stopped at %s: %s: %v", e.Name, e.State, e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Harness runs differential scenarios: each scenario's script goes to the
// external engine through a Driver, its in-process counterpart runs on a
// shared lineage Context, and the two traces are compared.
//
// Scenarios run sequentially; a Harness is not safe for concurrent Run
// calls with the same scenario name.
type Harness struct {
	lctx     *lineage.Context
	drv      *engine.Driver
	logger   *slog.Logger
	mode     Mode
	ids      IDGenerator
	runID    string
	keepTemp bool
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger for scenario events.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithDefaultMode sets the comparison mode for scenarios that do not choose
// one.
func WithDefaultMode(mode Mode) Option {
	return func(h *Harness) {
		h.mode = mode
	}
}

// WithIDGenerator sets the source of the run ID.
func WithIDGenerator(gen IDGenerator) Option {
	return func(h *Harness) {
		h.ids = gen
	}
}

// WithKeepTemp leaves the workspace in place on Close.
func WithKeepTemp(keep bool) Option {
	return func(h *Harness) {
		h.keepTemp = keep
	}
}

// New creates a harness that evaluates in-process steps in lctx and runs
// scripts through drv.
func New(lctx *lineage.Context, drv *engine.Driver, opts ...Option) *Harness {
	h := &Harness{
		lctx:   lctx,
		drv:    drv,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		mode:   ModeCommands,
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.runID = h.ids.Generate()
	return h
}

// RunID identifies this harness run in results and logs.
func (h *Harness) RunID() string {
	return h.runID
}

// Run executes a scenario.
//
// The returned Result is non-nil whenever the scenario was valid. Trace
// mismatches and assertion failures are reported through Result.Pass and
// Result.Errors; a step that cannot complete returns a *StepError as well.
func (h *Harness) Run(ctx context.Context, s *Scenario) (*Result, error) {
	if err := ValidateScenario(s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	mode, err := h.resolveMode(Mode(s.Mode))
	if err != nil {
		return nil, err
	}

	vars, err := Build(h.lctx, s.Steps)
	if err != nil {
		res := NewResult(s.Name, h.runID)
		return res, h.fail(res, "build in-process steps", err)
	}

	return h.run(ctx, s.Name, s.Script, vars[s.Output], mode, s.Assertions)
}

// RunSources compares the lineage trace of src, computed by the caller
// through the lineage API, with the trace the engine produces for script.
// An empty mode selects the harness default.
func (h *Harness) RunSources(ctx context.Context, name, script string, src lineage.Source, mode Mode) (*Result, error) {
	mode, err := h.resolveMode(mode)
	if err != nil {
		return nil, err
	}
	return h.run(ctx, name, script, src, mode, nil)
}

func (h *Harness) resolveMode(mode Mode) (Mode, error) {
	if mode == "" {
		return h.mode, nil
	}
	return ParseMode(string(mode))
}

func (h *Harness) run(ctx context.Context, name, script string, src lineage.Source, mode Mode, assertions []Assertion) (*Result, error) {
	res := NewResult(name, h.runID)
	h.logger.Info("scenario started",
		slog.String("run_id", h.runID),
		slog.String("scenario", name),
		slog.String("mode", string(mode)),
	)

	if _, err := h.drv.WriteScript(script, name); err != nil {
		return res, h.fail(res, "write script", err)
	}
	res.State = StateScriptWritten

	ex, err := h.drv.Invoke(ctx, name)
	res.Execution = ex
	if err != nil {
		return res, h.fail(res, "execute engine", err)
	}
	res.State = StateExecuted

	if err := h.drv.Collect(ex); err != nil {
		return res, h.fail(res, "parse engine output", err)
	}
	res.Right = ex.Sequence
	res.State = StateParsed

	if src == nil {
		return res, h.fail(res, "in-process trace", lineage.ErrNotMaterialized)
	}
	left, err := InProcessTrace(src)
	if err != nil {
		return res, h.fail(res, "in-process trace", err)
	}
	res.Left = left

	res.Comparison = Compare(res.Left, res.Right, mode)
	res.State = StateCompared

	res.Pass = true
	if err := res.Comparison.Err(); err != nil {
		res.AddError(err)
	}
	for _, err := range EvaluateAssertions(res, assertions) {
		res.AddError(err)
	}

	if res.Pass {
		res.State = StatePassed
	} else {
		res.State = StateFailed
	}

	h.logger.Info("scenario finished",
		slog.String("run_id", h.runID),
		slog.String("scenario", name),
		slog.String("state", string(res.State)),
		slog.Int("in_process_records", len(res.Left)),
		slog.Int("engine_records", len(res.Right)),
		slog.Int("exit_code", ex.ExitCode),
	)
	return res, nil
}

func (h *Harness) fail(res *Result, step string, err error) error {
	stepErr := &StepError{Name: res.Name, State: res.State, Step: step, Err: err}
	h.logger.Error("scenario step failed",
		slog.String("run_id", h.runID),
		slog.String("scenario", res.Name),
		slog.String("state", string(res.State)),
		slog.String("step", step),
		slog.Any("error", err),
	)
	return stepErr
}

// Close removes the run's workspace unless WithKeepTemp was given.
func (h *Harness) Close() error {
	if h.keepTemp {
		h.logger.Info("keeping workspace", slog.String("dir", h.drv.Workspace().Dir()))
		return nil
	}
	return h.drv.Workspace().Remove()
}

// IsStepError reports whether err is, or wraps, a *StepError and returns the
// state it stopped at.
func IsStepError(err error) (State, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.State, true
	}
	return "", false
}
