package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertionResult() *Result {
	res := NewResult("assertions", "run")
	res.Left = seq("rand°(1)", "r'°(2)°(1)", "ba+*°(3)°(1),(2)")
	res.Right = seq("rand°(1)", "r'°(2)°(1)", "ba+*°(3)°(1),(2)", "uak+°(4)°(3)", "uak+°(5)°(3)")
	return res
}

func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "contains passes",
			assertion: Assertion{Type: AssertCommandContains, Command: "ba+*"},
		},
		{
			name:      "contains fails",
			assertion: Assertion{Type: AssertCommandContains, Command: "solve"},
			wantErr:   "not found in trace",
		},
		{
			name:      "contains checks in-process side",
			assertion: Assertion{Type: AssertCommandContains, Command: "uak+", Side: SideInProcess},
			wantErr:   "(in_process trace)",
		},
		{
			name:      "order passes with gaps",
			assertion: Assertion{Type: AssertCommandOrder, Commands: []string{"rand", "uak+"}},
		},
		{
			name:      "order fails when reversed",
			assertion: Assertion{Type: AssertCommandOrder, Commands: []string{"ba+*", "r'"}},
			wantErr:   "ba+* (pos 3) should be before r' (pos 2)",
		},
		{
			name:      "order fails on missing command",
			assertion: Assertion{Type: AssertCommandOrder, Commands: []string{"rand", "solve"}},
			wantErr:   "missing command: solve",
		},
		{
			name:      "count passes",
			assertion: Assertion{Type: AssertCommandCount, Command: "uak+", Count: 2},
		},
		{
			name:      "count of zero passes for absent command",
			assertion: Assertion{Type: AssertCommandCount, Command: "uak+", Count: 0, Side: SideInProcess},
		},
		{
			name:      "count fails",
			assertion: Assertion{Type: AssertCommandCount, Command: "rand", Count: 2},
			wantErr:   "1 occurrences",
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "record_equals"},
			wantErr:   `unknown assertion type "record_equals"`,
		},
		{
			name:      "unknown side",
			assertion: Assertion{Type: AssertCommandContains, Command: "rand", Side: "left"},
			wantErr:   `unknown side "left"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(assertionResult(), []Assertion{tt.assertion})
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Error(), tt.wantErr)
		})
	}
}

func TestEvaluateAssertions_KeepsOrder(t *testing.T) {
	errs := EvaluateAssertions(assertionResult(), []Assertion{
		{Type: AssertCommandCount, Command: "rand", Count: 3},
		{Type: AssertCommandContains, Command: "rand"},
		{Type: AssertCommandContains, Command: "solve"},
	})
	require.Len(t, errs, 2)

	var first, second *AssertionError
	require.ErrorAs(t, errs[0], &first)
	require.ErrorAs(t, errs[1], &second)
	assert.Equal(t, AssertCommandCount, first.Type)
	assert.Equal(t, AssertCommandContains, second.Type)
	assert.Equal(t, SideEngine, second.Side)
}

func TestAssertionError_ListsTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertCommandContains,
		Side:     SideEngine,
		Expected: "command solve",
		Actual:   "not found in trace",
		Commands: []string{"rand", "+"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: command_contains (engine trace)\n")
	assert.Contains(t, msg, "  Expected: command solve\n")
	assert.Contains(t, msg, "  [1] rand\n")
	assert.Contains(t, msg, "  [2] +\n")
}
