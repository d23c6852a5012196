package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_YAML(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/lineage_add.yaml")
	require.NoError(t, err)

	assert.Equal(t, "lineage_add", s.Name)
	assert.Equal(t, "", s.Mode)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, Step{Let: "m", Op: OpFull, Rows: 10, Cols: 10, Value: 1}, s.Steps[0])
	assert.Equal(t, []string{"m", "m"}, s.Steps[1].Args)
	assert.Equal(t, "y", s.Output)
	assert.Equal(t, addScript, s.Script)
	require.Len(t, s.Assertions, 2)
	assert.Equal(t, SideInProcess, s.Assertions[1].Side)
}

func TestLoadScenario_CUE(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/lineage_matmul.cue")
	require.NoError(t, err)

	assert.Equal(t, "lineage_matmul", s.Name)
	assert.Equal(t, string(ModeCommands), s.Mode)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, Step{Let: "X", Op: OpFull, Rows: 3, Cols: 2, Value: 1}, s.Steps[0])
	assert.Equal(t, "%*%", s.Steps[2].Op)
	assert.Contains(t, s.Script, "P = t(X) %*% X")
	require.Len(t, s.Assertions, 1)
}

func TestLoadScenario_CUEInlineScript(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "inline.cue", `name:        "inline"
description: "multi-line script"
steps: [{"let": "m", op: "full", rows: 2, cols: 2, value: 3.0}]
output: "m"
script: """
	m = matrix(3, rows=2, cols=2)
	print(lineage(m))
	"""
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "m = matrix(3, rows=2, cols=2)\nprint(lineage(m))", s.Script)
	assert.Equal(t, float64(3), s.Steps[0].Value)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "unknown YAML field",
			file:    "typo.yaml",
			content: "name: typo\ndescription: d\nscirpt: x\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "malformed YAML",
			file:    "bad.yml",
			content: "name: [unclosed\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "malformed CUE",
			file:    "bad.cue",
			content: "name: \"unclosed\n",
			wantErr: "failed to compile CUE",
		},
		{
			name:    "conflicting CUE",
			file:    "conflict.cue",
			content: "name: \"a\"\nname: \"b\"\n",
			wantErr: "CUE",
		},
		{
			name:    "unsupported extension",
			file:    "scenario.json",
			content: "{}",
			wantErr: `unsupported scenario file extension ".json"`,
		},
		{
			name:    "fails validation",
			file:    "empty.yaml",
			content: "name: empty\ndescription: d\nscript: x\n",
			wantErr: "invalid scenario: steps list is required",
		},
		{
			name: "script and script_file together",
			file: "both.yaml",
			content: "name: both\ndescription: d\nscript: x\nscript_file: other.dml\n" +
				"steps: [{let: m, op: scalar, value: 1}]\noutput: m\n",
			wantErr: "mutually exclusive",
		},
		{
			name: "missing script_file",
			file: "missing.yaml",
			content: "name: missing\ndescription: d\nscript_file: nope.dml\n" +
				"steps: [{let: m, op: scalar, value: 1}]\noutput: m\n",
			wantErr: "script_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadScenario_ScriptFileRelative(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "scripts"), 0o755))
	writeFile(t, filepath.Join(dir, "scripts"), "s.dml", addScript)
	path := writeFile(t, dir, "s.yaml", "name: s\ndescription: d\nscript_file: scripts/s.dml\n"+
		"steps: [{let: m, op: scalar, value: 1}]\noutput: m\n")

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, addScript, s.Script)
	assert.Equal(t, "scripts/s.dml", s.ScriptFile)
}

func validScenario() *Scenario {
	return &Scenario{
		Name:        "valid",
		Description: "d",
		Steps: []Step{
			{Let: "a", Op: OpFull, Rows: 1, Cols: 1, Value: 1},
			{Let: "b", Op: OpSum, Args: []string{"a"}},
		},
		Output: "b",
		Script: "print(1)",
	}
}

func TestValidateScenario(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Scenario)
		wantErr string
	}{
		{name: "valid", mutate: func(*Scenario) {}},
		{name: "missing name", mutate: func(s *Scenario) { s.Name = "" }, wantErr: "name is required"},
		{name: "path in name", mutate: func(s *Scenario) { s.Name = "../x" }, wantErr: "name:"},
		{name: "missing description", mutate: func(s *Scenario) { s.Description = "" }, wantErr: "description is required"},
		{name: "bad mode", mutate: func(s *Scenario) { s.Mode = "fuzzy" }, wantErr: "unknown comparison mode"},
		{name: "exact mode", mutate: func(s *Scenario) { s.Mode = "exact" }},
		{name: "missing script", mutate: func(s *Scenario) { s.Script = "" }, wantErr: "script is required"},
		{name: "no steps", mutate: func(s *Scenario) { s.Steps = nil }, wantErr: "steps list is required"},
		{
			name:    "missing let",
			mutate:  func(s *Scenario) { s.Steps[0].Let = "" },
			wantErr: "steps[0]: let is required",
		},
		{
			name:    "duplicate let",
			mutate:  func(s *Scenario) { s.Steps[1].Let = "a" },
			wantErr: `steps[1]: "a" is already defined`,
		},
		{
			name:    "unknown op",
			mutate:  func(s *Scenario) { s.Steps[1].Op = "solve" },
			wantErr: `steps[1]: unknown op "solve"`,
		},
		{
			name:    "arity",
			mutate:  func(s *Scenario) { s.Steps[1].Args = []string{"a", "a"} },
			wantErr: `op "sum" takes 1 args, got 2`,
		},
		{
			name:    "forward reference",
			mutate:  func(s *Scenario) { s.Steps[1].Args = []string{"b"} },
			wantErr: `"b" is not defined before use`,
		},
		{
			name:    "full without shape",
			mutate:  func(s *Scenario) { s.Steps[0].Rows = 0 },
			wantErr: "full requires positive rows and cols",
		},
		{
			name:    "full too large",
			mutate:  func(s *Scenario) { s.Steps[0].Rows, s.Steps[0].Cols = 3_000_000_000, 3_000_000_000 },
			wantErr: "steps[0]: lineage: rand: 3000000000x3000000000 exceeds",
		},
		{name: "missing output", mutate: func(s *Scenario) { s.Output = "" }, wantErr: "output is required"},
		{name: "undefined output", mutate: func(s *Scenario) { s.Output = "z" }, wantErr: `output "z" is not defined`},
		{
			name:    "assertion without type",
			mutate:  func(s *Scenario) { s.Assertions = []Assertion{{Command: "rand"}} },
			wantErr: "assertions[0]: type is required",
		},
		{
			name: "assertion side",
			mutate: func(s *Scenario) {
				s.Assertions = []Assertion{{Type: AssertCommandContains, Command: "rand", Side: "both"}}
			},
			wantErr: `assertions[0]: unknown side "both"`,
		},
		{
			name:    "contains without command",
			mutate:  func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertCommandContains}} },
			wantErr: "command is required for command_contains",
		},
		{
			name:    "order without commands",
			mutate:  func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertCommandOrder}} },
			wantErr: "commands list is required for command_order",
		},
		{
			name: "negative count",
			mutate: func(s *Scenario) {
				s.Assertions = []Assertion{{Type: AssertCommandCount, Command: "rand", Count: -1}}
			},
			wantErr: "count must be non-negative",
		},
		{
			name:    "unknown assertion type",
			mutate:  func(s *Scenario) { s.Assertions = []Assertion{{Type: "trace_equals"}} },
			wantErr: `unknown assertion type "trace_equals"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScenario()
			tt.mutate(s)
			err := ValidateScenario(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
