package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lindiff/internal/engine"
	"github.com/roach88/lindiff/internal/harness"
	"github.com/roach88/lindiff/internal/lineage"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Update     bool   // regenerate golden files
	Filter     string // scenario filter (glob on the file's base name)
	Mode       string
	Engine     string
	EngineArgs []string
	EngineEnv  []string
	TempDir    string
	Timeout    time.Duration
	StrictExit bool
	KeepTemp   bool

	// IDGenerator overrides the run ID source (for testing).
	// If nil, defaults to harness.UUIDv7Generator.
	IDGenerator harness.IDGenerator
}

// ScenarioResult holds the result of a single scenario file.
type ScenarioResult struct {
	Name     string   `json:"name"`
	File     string   `json:"file"`
	State    string   `json:"state,omitempty"`
	Pass     bool     `json:"pass"`
	ExitCode *int     `json:"engine_exit_code,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// RunResult holds the overall run result.
type RunResult struct {
	RunID     string           `json:"run_id"`
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenarios-dir>",
		Short: "Run differential lineage scenarios",
		Long: `Run every scenario file (.yaml, .yml, .cue) under a directory.

Each scenario builds a computation in-process, writes its script to the
temp directory, runs the external engine on it, and compares the two
lineage traces. A golden file under <scenarios-dir>/golden records the
commands of both traces; --update regenerates it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, flags, config)

Examples:
  lindiff run ./scenarios
  lindiff run ./scenarios --filter "matmul_*" --mode exact
  lindiff run ./scenarios --engine ./bin/systemds --engine-arg=-stats --timeout 2m
  lindiff run ./scenarios --update
  lindiff run ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "default comparison mode (commands|exact)")
	cmd.Flags().StringVar(&opts.Engine, "engine", engine.DefaultBinary, "engine executable")
	cmd.Flags().StringArrayVar(&opts.EngineArgs, "engine-arg", nil, "argument passed to the engine before the script (repeatable)")
	cmd.Flags().StringArrayVar(&opts.EngineEnv, "engine-env", nil, "KEY=VALUE added to the engine environment (repeatable)")
	cmd.Flags().StringVar(&opts.TempDir, "temp-dir", "", "directory for scripts and engine output (default <scenarios-dir>/temp)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-scenario engine timeout (0 = none)")
	cmd.Flags().BoolVar(&opts.StrictExit, "strict-exit", false, "fail scenarios whose engine exits non-zero")
	cmd.Flags().BoolVar(&opts.KeepTemp, "keep-temp", false, "keep the temp directory after the run")

	return cmd
}

// settings merges the config file with explicitly set flags.
type settings struct {
	mode       harness.Mode
	binary     string
	args       []string
	env        []string
	tempDir    string
	timeout    time.Duration
	strictExit bool
	keepTemp   bool
}

func resolveSettings(opts *RunOptions, cmd *cobra.Command, scenariosDir string) (*settings, error) {
	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	s := &settings{
		binary:     engine.DefaultBinary,
		args:       cfg.Engine.Args,
		env:        cfg.Engine.Env,
		tempDir:    cfg.TempDir,
		timeout:    cfg.Engine.Timeout,
		strictExit: cfg.Engine.StrictExit,
		keepTemp:   cfg.KeepTemp,
	}
	if cfg.Engine.Binary != "" {
		s.binary = cfg.Engine.Binary
	}

	modeValue := cfg.Mode
	if flags.Changed("mode") {
		modeValue = opts.Mode
	}
	if s.mode, err = harness.ParseMode(modeValue); err != nil {
		return nil, err
	}

	if flags.Changed("engine") {
		s.binary = opts.Engine
	}
	if flags.Changed("engine-arg") {
		s.args = opts.EngineArgs
	}
	if flags.Changed("engine-env") {
		s.env = append(append([]string(nil), s.env...), opts.EngineEnv...)
	}
	if flags.Changed("temp-dir") {
		s.tempDir = opts.TempDir
	}
	if flags.Changed("timeout") {
		s.timeout = opts.Timeout
	}
	if flags.Changed("strict-exit") {
		s.strictExit = opts.StrictExit
	}
	if flags.Changed("keep-temp") {
		s.keepTemp = opts.KeepTemp
	}

	if s.tempDir == "" {
		s.tempDir = filepath.Join(scenariosDir, "temp")
	}
	if err := checkTempDir(s.tempDir, scenariosDir); err != nil {
		return nil, err
	}
	if s.timeout < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %s", s.timeout)
	}
	return s, nil
}

// checkTempDir rejects a temp dir that is, or contains, the scenarios dir.
func checkTempDir(tempDir, scenariosDir string) error {
	absTemp, err := filepath.Abs(tempDir)
	if err != nil {
		return fmt.Errorf("resolve temp dir %s: %w", tempDir, err)
	}
	absScenarios, err := filepath.Abs(scenariosDir)
	if err != nil {
		return fmt.Errorf("resolve scenarios dir %s: %w", scenariosDir, err)
	}
	rel, err := filepath.Rel(absTemp, absScenarios)
	if err != nil {
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return fmt.Errorf("temp dir %s must not contain the scenarios directory %s", tempDir, scenariosDir)
	}
	return nil
}

func (s *settings) driverOptions(logger *slog.Logger) []engine.Option {
	policy := engine.ExitIgnore
	if s.strictExit {
		policy = engine.ExitStrict
	}
	return []engine.Option{
		engine.WithBinary(s.binary),
		engine.WithArgs(s.args...),
		engine.WithEnv(s.env...),
		engine.WithTimeout(s.timeout),
		engine.WithExitPolicy(policy),
		engine.WithLogger(logger),
	}
}

func runScenarios(opts *RunOptions, scenariosDir string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	cfg, err := resolveSettings(opts, cmd, scenariosDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter, cfg.tempDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	logger := out.Logger()

	lctx := lineage.Open(lineage.WithLogger(logger))
	defer lctx.Close()

	drv := engine.NewDriver(cfg.tempDir, cfg.driverOptions(logger)...)
	hopts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithDefaultMode(cfg.mode),
		harness.WithKeepTemp(cfg.keepTemp),
	}
	if opts.IDGenerator != nil {
		hopts = append(hopts, harness.WithIDGenerator(opts.IDGenerator))
	}
	h := harness.New(lctx, drv, hopts...)
	defer func() {
		if err := h.Close(); err != nil {
			logger.Error("failed to remove temp directory", slog.Any("error", err))
		}
	}()

	result := RunResult{
		RunID:     h.RunID(),
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	if len(scenarioFiles) == 0 {
		if out.JSON() {
			return out.Encode(CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
		}
		out.Textf("No scenarios found.")
		return nil
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	for _, file := range scenarioFiles {
		sr := runScenario(ctx, h, file, scenariosDir, opts, out)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}

		if ctx.Err() != nil {
			result.Total = len(result.Scenarios)
			return WrapExitError(ExitCommandError, "run interrupted", ctx.Err())
		}
	}

	if out.JSON() {
		return outputRunJSON(out, result)
	}
	return outputRunText(out, result)
}

// signalContext cancels on SIGINT or SIGTERM so an engine run in flight is
// killed instead of orphaned.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// findScenarioFiles finds all scenario files in a directory, skipping the
// golden and temp directories.
func findScenarioFiles(dir, filter, tempDir string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	goldenDir := filepath.Clean(goldenDirPath(dir))
	tempDir = filepath.Clean(tempDir)

	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != dir && (filepath.Clean(path) == goldenDir || filepath.Clean(path) == tempDir) {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" && ext != ".cue" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if matched, _ := filepath.Match(filter, name); !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario loads and runs one scenario file, then checks its golden file.
func runScenario(ctx context.Context, h *harness.Harness, file, scenariosDir string, opts *RunOptions, out *OutputFormatter) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		reportScenario(out, sr)
		return sr
	}
	sr.Name = scenario.Name

	res, err := h.Run(ctx, scenario)
	if res != nil {
		sr.State = string(res.State)
		sr.Pass = res.Pass
		sr.Errors = append(sr.Errors, res.Errors...)
		if res.Execution != nil {
			code := res.Execution.ExitCode
			sr.ExitCode = &code
		}
	}
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, err.Error())
		reportScenario(out, sr)
		return sr
	}

	goldenPath := goldenFilePath(scenariosDir, file)
	switch {
	case opts.Update:
		if err := updateGoldenFile(res, goldenPath); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
		} else {
			out.VerboseLog("updated %s", goldenPath)
		}
	default:
		match, exists, err := compareWithGolden(res, goldenPath)
		switch {
		case err != nil:
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("golden comparison failed: %v", err))
		case exists && !match:
			sr.Pass = false
			sr.Errors = append(sr.Errors, "golden file mismatch (run with --update to regenerate)")
		}
	}

	reportScenario(out, sr)
	return sr
}

func reportScenario(out *OutputFormatter, sr ScenarioResult) {
	if sr.Pass {
		out.Textf("✓ %s", sr.Name)
		return
	}
	out.Textf("✗ %s", sr.Name)
	for _, e := range sr.Errors {
		if !out.Verbose {
			e, _, _ = strings.Cut(e, "\n")
		}
		out.Textf("  %s", e)
	}
}

func goldenDirPath(scenariosDir string) string {
	return filepath.Join(scenariosDir, "golden")
}

// goldenFilePath returns the golden file for a scenario file: its path
// relative to the scenarios directory, without extension, under
// <scenarios-dir>/golden.
func goldenFilePath(scenariosDir, scenarioFile string) string {
	rel, err := filepath.Rel(scenariosDir, scenarioFile)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(scenarioFile)
	}
	name := strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(goldenDirPath(scenariosDir), name+".golden")
}

// updateGoldenFile writes the result's command snapshot as the golden file.
func updateGoldenFile(result *harness.Result, goldenPath string) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}

	data, err := harness.NewSnapshot(result).Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden compares the result snapshot against the golden file.
// A missing golden file is not a failure: exists is false and the scenario
// is judged by its traces and assertions alone.
func compareWithGolden(result *harness.Result, goldenPath string) (match, exists bool, err error) {
	golden, err := os.ReadFile(goldenPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, false, nil
	}
	if err != nil {
		return false, true, fmt.Errorf("failed to read golden file: %w", err)
	}

	current, err := harness.NewSnapshot(result).Marshal()
	if err != nil {
		return false, true, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return bytes.Equal(golden, current), true, nil
}

func outputRunJSON(out *OutputFormatter, result RunResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
		RunID:  result.RunID,
	}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    CodeScenarioFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := out.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func outputRunText(out *OutputFormatter, result RunResult) error {
	out.Textf("")
	out.Textf("Summary: %d passed, %d failed, %d total (run %s)",
		result.Passed, result.Failed, result.Total, result.RunID)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	out.Textf("✓ All scenarios passed")
	return nil
}
