package harness

import (
	"errors"
	"strings"

	"github.com/roach88/lindiff/internal/engine"
	"github.com/roach88/lindiff/internal/trace"
)

// State is a position in a scenario's lifecycle.
type State string

// Scenario states, in order. A run ends in StatePassed or StateFailed, or
// stops at the last state it reached when a step errors.
const (
	StateCreated       State = "CREATED"
	StateScriptWritten State = "SCRIPT_WRITTEN"
	StateExecuted      State = "EXECUTED"
	StateParsed        State = "PARSED"
	StateCompared      State = "COMPARED"
	StatePassed        State = "PASSED"
	StateFailed        State = "FAILED"
)

// Result is the outcome of a scenario run.
type Result struct {
	Name  string `json:"name"`
	RunID string `json:"run_id"`
	State State  `json:"state"`

	// Pass is true when the traces are equivalent and every assertion held.
	Pass bool `json:"pass"`

	// Left is the in-process trace; Right is the engine trace.
	Left  trace.Sequence `json:"left"`
	Right trace.Sequence `json:"right"`

	Comparison *Comparison       `json:"comparison,omitempty"`
	Execution  *engine.Execution `json:"execution,omitempty"`

	// Errors holds comparison and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	failures []error
}

// NewResult creates a result in StateCreated.
func NewResult(name, runID string) *Result {
	return &Result{
		Name:   name,
		RunID:  runID,
		State:  StateCreated,
		Left:   trace.Sequence{},
		Right:  trace.Sequence{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err error) {
	r.failures = append(r.failures, err)
	r.Errors = append(r.Errors, err.Error())
	r.Pass = false
}

// Err joins every recorded failure, or returns nil for a passing result.
func (r *Result) Err() error {
	return errors.Join(r.failures...)
}

// Summary returns the first line of each error, for compact reports.
func (r *Result) Summary() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		line, _, _ := strings.Cut(e, "\n")
		out = append(out, line)
	}
	return out
}
