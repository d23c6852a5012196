package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lindiff/internal/engine"
	"github.com/roach88/lindiff/internal/lineage"
)

// Scenario defines one differential check: an in-process computation built
// from Steps, and a script for the external engine that should produce an
// equivalent lineage trace for the handle named by Output.
type Scenario struct {
	// Name identifies the scenario and names its files in the workspace.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Mode is "commands" (default) or "exact".
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`

	// Steps build the in-process computation, in order.
	Steps []Step `yaml:"steps" json:"steps"`

	// Output names the step whose lineage trace is compared.
	Output string `yaml:"output" json:"output"`

	// Script is the program handed to the external engine.
	Script string `yaml:"script,omitempty" json:"script,omitempty"`

	// ScriptFile loads Script from a file, relative to the scenario file.
	// Exactly one of Script and ScriptFile must be set.
	ScriptFile string `yaml:"script_file,omitempty" json:"script_file,omitempty"`

	// Assertions check individual commands of a trace.
	Assertions []Assertion `yaml:"assertions,omitempty" json:"assertions,omitempty"`
}

// Step is one in-process operation. Let names the result so later steps and
// Output can refer to it.
type Step struct {
	Let string `yaml:"let" json:"let"`

	// Op is "full", "scalar", a binary operator (+ - * / ^ %*% min max) or a
	// unary function (t, sum).
	Op string `yaml:"op" json:"op"`

	// Args name earlier steps used as operands.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Rows, Cols and Value parameterize "full"; Value alone "scalar".
	Rows  int     `yaml:"rows,omitempty" json:"rows,omitempty"`
	Cols  int     `yaml:"cols,omitempty" json:"cols,omitempty"`
	Value float64 `yaml:"value,omitempty" json:"value,omitempty"`
}

// Assertion checks commands of one side of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "command_contains": Command appears in the trace
	// - "command_order": Commands appear in this relative order
	// - "command_count": Command appears exactly Count times
	Type string `yaml:"type" json:"type"`

	// Command is used by command_contains and command_count.
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Commands is used by command_order.
	Commands []string `yaml:"commands,omitempty" json:"commands,omitempty"`

	// Count is used by command_count.
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// Side selects the trace: "engine" (default) or "in_process".
	Side string `yaml:"side,omitempty" json:"side,omitempty"`
}

// Assertion type constants.
const (
	AssertCommandContains = "command_contains"
	AssertCommandOrder    = "command_order"
	AssertCommandCount    = "command_count"
)

// Assertion sides.
const (
	SideEngine    = "engine"
	SideInProcess = "in_process"
)

// LoadScenario reads a scenario from a .yaml, .yml or .cue file.
//
// YAML is decoded strictly: unknown fields (typos) are errors. CUE files are
// evaluated and their top-level struct decoded into the same shape. A
// relative script_file is resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		scenario, err = decodeYAML(data)
	case ".cue":
		scenario, err = decodeCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported scenario file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if err := resolveScript(scenario, filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	if err := ValidateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return scenario, nil
}

func decodeYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

func decodeCUE(data []byte, filename string) (*Scenario, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE %s: %w", filename, err)
	}
	if err := value.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate CUE %s: %w", filename, err)
	}

	var scenario Scenario
	if err := value.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE %s: %w", filename, err)
	}
	return &scenario, nil
}

// resolveScript loads ScriptFile into Script.
func resolveScript(s *Scenario, baseDir string) error {
	if s.ScriptFile == "" {
		return nil
	}
	if s.Script != "" {
		return fmt.Errorf("script and script_file are mutually exclusive")
	}

	path := s.ScriptFile
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("script_file: %w", err)
	}
	s.Script = string(data)
	return nil
}

// ValidateScenario checks that required fields are present and that steps
// only refer to names defined before them.
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := engine.ValidateName(s.Name); err != nil {
		return fmt.Errorf("name: %w", err)
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if _, err := ParseMode(s.Mode); err != nil {
		return err
	}

	if s.Script == "" {
		return fmt.Errorf("script is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	defined := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if err := validateStep(i, step, defined); err != nil {
			return err
		}
		defined[step.Let] = true
	}

	if s.Output == "" {
		return fmt.Errorf("output is required")
	}
	if !defined[s.Output] {
		return fmt.Errorf("output %q is not defined by any step", s.Output)
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step, defined map[string]bool) error {
	if step.Let == "" {
		return fmt.Errorf("steps[%d]: let is required", index)
	}
	if defined[step.Let] {
		return fmt.Errorf("steps[%d]: %q is already defined", index, step.Let)
	}

	arity, ok := stepArity(step.Op)
	if !ok {
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	if len(step.Args) != arity {
		return fmt.Errorf("steps[%d]: op %q takes %d args, got %d", index, step.Op, arity, len(step.Args))
	}
	for _, arg := range step.Args {
		if !defined[arg] {
			return fmt.Errorf("steps[%d]: %q is not defined before use", index, arg)
		}
	}

	if step.Op == OpFull && (step.Rows <= 0 || step.Cols <= 0) {
		return fmt.Errorf("steps[%d]: full requires positive rows and cols", index)
	}
	if step.Op == OpFull {
		if err := lineage.CheckDims(lineage.OpRand, step.Rows, step.Cols); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Side {
	case "", SideEngine, SideInProcess:
	default:
		return fmt.Errorf("assertions[%d]: unknown side %q", index, a.Side)
	}

	switch a.Type {
	case AssertCommandContains:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: command is required for command_contains", index)
		}
	case AssertCommandOrder:
		if len(a.Commands) == 0 {
			return fmt.Errorf("assertions[%d]: commands list is required for command_order", index)
		}
	case AssertCommandCount:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: command is required for command_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for command_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
