package harness

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/roach88/lindiff/internal/lineage"
	"github.com/roach88/lindiff/internal/trace"
)

// Mode selects how strictly two traces are compared.
type Mode string

const (
	// ModeCommands compares only the command (first field) of each record,
	// element-wise and including length.
	ModeCommands Mode = "commands"

	// ModeExact compares every field of every record.
	ModeExact Mode = "exact"
)

// ParseMode converts a configuration value to a Mode. The empty string
// selects ModeCommands.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeCommands:
		return ModeCommands, nil
	case ModeExact:
		return ModeExact, nil
	}
	return "", fmt.Errorf("unknown comparison mode %q (want %q or %q)", s, ModeCommands, ModeExact)
}

// InProcessTrace reads the lineage trace of src and parses it. Errors from
// the source are returned unchanged.
func InProcessTrace(src lineage.Source) (trace.Sequence, error) {
	text, err := src.LineageTrace()
	if err != nil {
		return nil, err
	}
	return trace.ParseString(text), nil
}

// Comparison is the outcome of comparing an in-process trace (left) with an
// engine trace (right).
type Comparison struct {
	Mode  Mode `json:"mode"`
	Equal bool `json:"equal"`

	// Index is the first position where the compared projections differ, or
	// -1 when they are equal. A length difference is reported at the length
	// of the shorter side.
	Index int `json:"index"`

	LeftCommands  []string `json:"left_commands"`
	RightCommands []string `json:"right_commands"`

	left  []string
	right []string
}

// Compare compares left and right under mode.
func Compare(left, right trace.Sequence, mode Mode) *Comparison {
	c := &Comparison{
		Mode:          mode,
		LeftCommands:  left.Commands(),
		RightCommands: right.Commands(),
	}
	if mode == ModeExact {
		c.left, c.right = left.Lines(), right.Lines()
		c.Index = firstDifference(len(left), len(right), func(i int) bool {
			return left[i].Equal(right[i])
		})
	} else {
		c.left, c.right = c.LeftCommands, c.RightCommands
		c.Index = firstDifference(len(c.left), len(c.right), func(i int) bool {
			return c.left[i] == c.right[i]
		})
	}
	c.Equal = c.Index < 0
	return c
}

// firstDifference returns the first index where same reports false, the
// shorter length when only the lengths differ, or -1.
func firstDifference(leftLen, rightLen int, same func(i int) bool) int {
	n := min(leftLen, rightLen)
	for i := 0; i < n; i++ {
		if !same(i) {
			return i
		}
	}
	if leftLen != rightLen {
		return n
	}
	return -1
}

// Err returns nil for equal traces and a *MismatchError otherwise.
func (c *Comparison) Err() error {
	if c.Equal {
		return nil
	}
	return &MismatchError{
		Mode:  c.Mode,
		Index: c.Index,
		Left:  c.left,
		Right: c.right,
		Diff:  unifiedDiff(c.left, c.right),
	}
}

// MismatchError reports two traces that are not equivalent.
type MismatchError struct {
	Mode  Mode
	Index int

	// Left and Right are the compared projections: commands in
	// ModeCommands, whole records in ModeExact.
	Left  []string
	Right []string

	// Diff is a unified diff from the in-process to the engine projection.
	Diff string
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "lineage mismatch (%s mode) at index %d: in-process has %d records, engine has %d\n",
		e.Mode, e.Index, len(e.Left), len(e.Right))
	fmt.Fprintf(&buf, "  in-process: %v\n", e.Left)
	fmt.Fprintf(&buf, "  engine:     %v\n", e.Right)
	if e.Diff != "" {
		buf.WriteString(e.Diff)
	}
	return buf.String()
}

func unifiedDiff(left, right []string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        joinLines(left),
		B:        joinLines(right),
		FromFile: "in-process",
		ToFile:   "engine",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}

func joinLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
