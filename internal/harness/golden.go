package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden form of a scenario result: the projected commands
// of both traces.
type Snapshot struct {
	Scenario  string   `json:"scenario"`
	Mode      Mode     `json:"mode"`
	InProcess []string `json:"in_process"`
	Engine    []string `json:"engine"`
}

// NewSnapshot captures the commands of a compared result.
func NewSnapshot(result *Result) Snapshot {
	mode := ModeCommands
	if result.Comparison != nil {
		mode = result.Comparison.Mode
	}
	return Snapshot{
		Scenario:  result.Name,
		Mode:      mode,
		InProcess: result.Left.Commands(),
		Engine:    result.Right.Commands(),
	}
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
// The output is stable for equal snapshots.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can add their own checks. Golden mismatches
// fail t through goldie.
func RunWithGolden(t *testing.T, h *Harness, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := h.Run(context.Background(), scenario)
	if err != nil {
		return result, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
