package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/lindiff/internal/trace"
)

// AssertionError is returned when an assertion fails.
// It includes the commands of the checked trace to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Side     string   // Which trace was checked
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Commands []string // Commands of the checked trace
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s (%s trace)\n", e.Type, e.Side)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, cmd := range e.Commands {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, cmd)
	}

	return buf.String()
}

// assertCommandContains checks that the command appears at least once.
func assertCommandContains(commands []string, side string, assertion Assertion) error {
	for _, cmd := range commands {
		if cmd == assertion.Command {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertCommandContains,
		Side:     side,
		Expected: fmt.Sprintf("command %s", assertion.Command),
		Actual:   "not found in trace",
		Commands: commands,
	}
}

// assertCommandOrder checks that commands first appear in the given order.
// Commands don't need to be consecutive.
func assertCommandOrder(commands []string, side string, assertion Assertion) error {
	positions := make(map[string]int)
	for i, cmd := range commands {
		if _, seen := positions[cmd]; !seen {
			positions[cmd] = i + 1 // 1-indexed for readability
		}
	}

	for _, cmd := range assertion.Commands {
		if positions[cmd] == 0 {
			return &AssertionError{
				Type:     AssertCommandOrder,
				Side:     side,
				Expected: fmt.Sprintf("all commands present: %v", assertion.Commands),
				Actual:   fmt.Sprintf("missing command: %s", cmd),
				Commands: commands,
			}
		}
	}

	for i := 1; i < len(assertion.Commands); i++ {
		prev := assertion.Commands[i-1]
		curr := assertion.Commands[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertCommandOrder,
				Side:     side,
				Expected: fmt.Sprintf("commands in order: %v", assertion.Commands),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Commands: commands,
			}
		}
	}

	return nil
}

// assertCommandCount checks that the command appears exactly Count times.
func assertCommandCount(commands []string, side string, assertion Assertion) error {
	count := 0
	for _, cmd := range commands {
		if cmd == assertion.Command {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertCommandCount,
			Side:     side,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Command),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Commands: commands,
		}
	}

	return nil
}

// EvaluateAssertions checks every assertion against the result's traces and
// returns the failures in declaration order.
func EvaluateAssertions(result *Result, assertions []Assertion) []error {
	var errs []error

	for i, assertion := range assertions {
		side := assertion.Side
		if side == "" {
			side = SideEngine
		}

		var seq trace.Sequence
		switch side {
		case SideEngine:
			seq = result.Right
		case SideInProcess:
			seq = result.Left
		default:
			errs = append(errs, fmt.Errorf("assertion[%d]: unknown side %q", i, assertion.Side))
			continue
		}
		commands := seq.Commands()

		var err error
		switch assertion.Type {
		case AssertCommandContains:
			err = assertCommandContains(commands, side, assertion)
		case AssertCommandOrder:
			err = assertCommandOrder(commands, side, assertion)
		case AssertCommandCount:
			err = assertCommandCount(commands, side, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}
