package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lindiff/internal/testutil"
)

const addScenarioYAML = `name: lineage_add
description: m + m matches the engine trace
steps:
  - {let: m, op: full, rows: 10, cols: 10, value: 1}
  - {let: y, op: "+", args: [m, m]}
output: y
script: |
  x = matrix(1, rows=10, cols=10);
  y = x + x;
  print(lineage(y));
`

const mulScenarioYAML = `name: lineage_mul
description: in-process multiplies where the script adds
steps:
  - {let: m, op: full, rows: 2, cols: 2, value: 1}
  - {let: y, op: "*", args: [m, m]}
output: y
script: |
  x = matrix(1, rows=2, cols=2);
  y = x + x;
  print(lineage(y));
`

// scenarioDir writes files into a fresh scenarios directory.
func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// helperArgs points lindiff run at the test binary acting as the engine.
func helperArgs(t *testing.T) []string {
	t.Helper()
	binary, env := testutil.HelperEngine(t)
	args := []string{"--engine", binary}
	for _, e := range env {
		args = append(args, "--engine-env", e)
	}
	return args
}

func runArgs(t *testing.T, dir string, extra ...string) []string {
	return append(append([]string{"run", dir}, helperArgs(t)...), extra...)
}

type runResponse struct {
	Status string    `json:"status"`
	Data   RunResult `json:"data"`
	Error  *CLIError `json:"error"`
	RunID  string    `json:"run_id"`
}

func TestRun_AllPass(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"add.yaml": addScenarioYAML})

	stdout, stderr, err := execute(t, runArgs(t, dir)...)
	require.NoError(t, err, "stderr: %s", stderr)

	assert.Contains(t, stdout, "✓ lineage_add")
	assert.Contains(t, stdout, "Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, stdout, "✓ All scenarios passed")
	assert.Contains(t, stderr, "scenario finished")

	_, statErr := os.Stat(filepath.Join(dir, "temp"))
	assert.True(t, os.IsNotExist(statErr), "temp directory is removed after the run")
}

func TestRun_MismatchFails(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"add.yaml": addScenarioYAML,
		"mul.yaml": mulScenarioYAML,
	})

	stdout, _, err := execute(t, runArgs(t, dir)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, stdout, "✓ lineage_add")
	assert.Contains(t, stdout, "✗ lineage_mul")
	assert.Contains(t, stdout, "lineage mismatch (commands mode) at index 1")
	assert.NotContains(t, stdout, "--- in-process", "diffs are shown only with --verbose")
	assert.Contains(t, stdout, "Summary: 1 passed, 1 failed, 2 total")
}

func TestRun_VerboseShowsDiff(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"mul.yaml": mulScenarioYAML})

	stdout, _, err := execute(t, append(runArgs(t, dir), "-v")...)
	require.Error(t, err)
	assert.Contains(t, stdout, "--- in-process")
	assert.Contains(t, stdout, "+++ engine")
}

func TestRun_JSON(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"add.yaml": addScenarioYAML,
		"mul.yaml": mulScenarioYAML,
	})

	stdout, _, err := execute(t, append(runArgs(t, dir), "--format", "json")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeScenarioFailed, resp.Error.Code)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, resp.RunID, resp.Data.RunID)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)

	byName := map[string]ScenarioResult{}
	for _, s := range resp.Data.Scenarios {
		byName[s.Name] = s
	}
	assert.True(t, byName["lineage_add"].Pass)
	assert.Equal(t, "PASSED", byName["lineage_add"].State)
	require.NotNil(t, byName["lineage_add"].ExitCode)
	assert.Equal(t, 0, *byName["lineage_add"].ExitCode)
	assert.False(t, byName["lineage_mul"].Pass)
	assert.Equal(t, "FAILED", byName["lineage_mul"].State)
}

func TestRun_NoScenarios(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"notes.txt": "not a scenario"})

	stdout, _, err := execute(t, runArgs(t, dir)...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No scenarios found.")

	stdout, _, err = execute(t, append(runArgs(t, dir), "--format", "json")...)
	require.NoError(t, err)
	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.NotNil(t, resp.Data.Scenarios)
}

func TestRun_Filter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"add.yaml":        addScenarioYAML,
		"nested/mul.yaml": mulScenarioYAML,
	})

	stdout, _, err := execute(t, append(runArgs(t, dir), "--filter", "ad*")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Summary: 1 passed, 0 failed, 1 total")

	_, _, err = execute(t, append(runArgs(t, dir), "--filter", "[")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_GoldenLifecycle(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"add.yaml": addScenarioYAML})
	goldenPath := filepath.Join(dir, "golden", "add.golden")

	_, _, err := execute(t, append(runArgs(t, dir), "--update")...)
	require.NoError(t, err)

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Equal(t, `{
  "scenario": "lineage_add",
  "mode": "commands",
  "in_process": [
    "rand",
    "+"
  ],
  "engine": [
    "rand",
    "+"
  ]
}
`, string(data))

	_, _, err = execute(t, runArgs(t, dir)...)
	require.NoError(t, err, "run against a fresh golden file passes")

	stale := []byte(`{"scenario": "lineage_add", "engine": ["rand"]}` + "\n")
	require.NoError(t, os.WriteFile(goldenPath, stale, 0o644))

	stdout, _, err := execute(t, runArgs(t, dir)...)
	require.Error(t, err)
	assert.Contains(t, stdout, "golden file mismatch (run with --update to regenerate)")
}

func TestRun_ExactMode(t *testing.T) {
	// fill 2 in-process, fill 1 in the script: same commands, different data.
	scenario := `name: fill
description: data differs
steps:
  - {let: m, op: full, rows: 2, cols: 2, value: 2}
output: m
script: |
  m = matrix(1, rows=2, cols=2)
  print(lineage(m))
`
	dir := scenarioDir(t, map[string]string{"fill.yaml": scenario})

	_, _, err := execute(t, runArgs(t, dir)...)
	require.NoError(t, err)

	stdout, _, err := execute(t, append(runArgs(t, dir), "--mode", "exact")...)
	require.Error(t, err)
	assert.Contains(t, stdout, "lineage mismatch (exact mode) at index 0")
}

func TestRun_StrictExit(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"add.yaml": addScenarioYAML})

	_, _, err := execute(t, append(runArgs(t, dir), "--engine-arg=--exit=3")...)
	require.NoError(t, err, "non-zero exit is ignored by default")

	stdout, _, err := execute(t, append(runArgs(t, dir), "--engine-arg=--exit=3", "--strict-exit")...)
	require.Error(t, err)
	assert.Contains(t, stdout, "✗ lineage_add")
	assert.Contains(t, stdout, "stopped at SCRIPT_WRITTEN")
}

func TestRun_KeepTempAndTempDir(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"add.yaml": addScenarioYAML})
	tempDir := filepath.Join(t.TempDir(), "work")

	_, _, err := execute(t, append(runArgs(t, dir), "--temp-dir", tempDir, "--keep-temp")...)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(tempDir, "lineage_add.dml"))
	output, err := os.ReadFile(filepath.Join(tempDir, "lineage_add.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(output), "rand°(1)°°10°10°1")
}

func TestRun_ConfigFile(t *testing.T) {
	scenario := `name: fill
description: data differs
steps:
  - {let: m, op: full, rows: 2, cols: 2, value: 2}
output: m
script: "m = matrix(1, rows=2, cols=2)\nprint(lineage(m))\n"
`
	dir := scenarioDir(t, map[string]string{"fill.yaml": scenario})
	binary, env := testutil.HelperEngine(t)

	cfgData, err := json.Marshal(map[string]any{
		"engine": map[string]any{"binary": binary, "env": env},
		"mode":   "exact",
	})
	require.NoError(t, err)
	// JSON is valid YAML.
	cfgPath := writeConfig(t, string(cfgData))

	stdout, _, err := execute(t, "run", dir, "--config", cfgPath)
	require.Error(t, err, "config selects exact mode")
	assert.Contains(t, stdout, "exact mode")

	_, _, err = execute(t, "run", dir, "--config", cfgPath, "--mode", "commands")
	require.NoError(t, err, "flags override the config file")
}

func TestRun_CommandErrors(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"add.yaml": addScenarioYAML})

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing dir", []string{"run", filepath.Join(dir, "absent")}, "scenarios directory not found"},
		{"bad mode", []string{"run", dir, "--mode", "fuzzy"}, "unknown comparison mode"},
		{"negative timeout", []string{"run", dir, "--timeout", "-1s"}, "timeout must be non-negative"},
		{"bad config", []string{"run", dir, "--config", filepath.Join(dir, "absent.yaml")}, "failed to read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_LoadErrorFailsScenario(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"add.yaml":    addScenarioYAML,
		"broken.yaml": "name: broken\ndescripton: typo\n",
	})

	stdout, _, err := execute(t, runArgs(t, dir)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ broken.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
	assert.Contains(t, stdout, "Summary: 1 passed, 1 failed, 2 total")
}

func TestRun_MissingEngine(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"add.yaml": addScenarioYAML})

	stdout, _, err := execute(t, "run", dir, "--engine", filepath.Join(t.TempDir(), "no-such-engine"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "engine binary not found")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"a.yaml":           "",
		"b.yml":            "",
		"c.cue":            "",
		"script.dml":       "",
		"golden/a.golden":  "",
		"golden/x.yaml":    "",
		"temp/stale.yaml":  "",
		"nested/d.yaml":    "",
		"nested/notes.txt": "",
	})

	files, err := findScenarioFiles(dir, "", filepath.Join(dir, "temp"))
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(dir, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.ElementsMatch(t, []string{"a.yaml", "b.yml", "c.cue", "nested/d.yaml"}, rel)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "add.golden"),
		goldenFilePath("scenarios", filepath.Join("scenarios", "add.yaml")))
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "nested", "add.golden"),
		goldenFilePath("scenarios", filepath.Join("scenarios", "nested", "add.cue")))
}

func TestRun_GoldenPerSubdirectory(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"add.yaml":        addScenarioYAML,
		"nested/add.yaml": mulScenarioYAML,
	})

	_, _, err := execute(t, append(runArgs(t, dir), "--update")...)
	require.Error(t, err, "the nested scenario still mismatches")

	top, err := os.ReadFile(filepath.Join(dir, "golden", "add.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(top), `"scenario": "lineage_add"`)

	nested, err := os.ReadFile(filepath.Join(dir, "golden", "nested", "add.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(nested), `"scenario": "lineage_mul"`)
}

func TestRun_TempDirMustNotContainScenarios(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"add.yaml": addScenarioYAML})

	for _, tempDir := range []string{dir, filepath.Dir(dir)} {
		_, _, err := execute(t, append(runArgs(t, dir), "--temp-dir", tempDir)...)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "must not contain the scenarios directory")
	}
	assert.FileExists(t, filepath.Join(dir, "add.yaml"))
}

func TestRun_ExistingTempDirKeepsUserFiles(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"add.yaml": addScenarioYAML})
	tempDir := t.TempDir()
	notes := filepath.Join(tempDir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("keep me"), 0o644))

	_, _, err := execute(t, append(runArgs(t, dir), "--temp-dir", tempDir)...)
	require.NoError(t, err)

	assert.FileExists(t, notes)
	assert.NoFileExists(t, filepath.Join(tempDir, "lineage_add.dml"))
	assert.NoFileExists(t, filepath.Join(tempDir, "lineage_add.txt"))
}
