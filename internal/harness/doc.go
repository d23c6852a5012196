// Package harness checks that an in-process lineage trace and the trace an
// external engine prints for an equivalent script agree.
//
// Each scenario moves through a fixed sequence of states:
//
//	CREATED -> SCRIPT_WRITTEN -> EXECUTED -> PARSED -> COMPARED -> PASSED | FAILED
//
// The script is written to the driver's workspace, the engine runs it with
// its output captured to a file, the file is parsed (header and footer
// dropped), and the in-process trace is compared with it. A step that cannot
// complete stops the scenario with a *StepError naming the last state
// reached. A mismatch is not an error: it fails the Result.
//
// # Scenario Format
//
// Scenarios are YAML or CUE files:
//
//	name: lineage_add
//	description: "m + m matches the engine trace"
//	mode: commands            # or exact
//	steps:
//	  - let: m
//	    op: full
//	    rows: 10
//	    cols: 10
//	    value: 1
//	  - let: y
//	    op: "+"
//	    args: [m, m]
//	output: y
//	script: |
//	  x = matrix(1, rows=10, cols=10);
//	  y = x + x;
//	  print(lineage(y));
//	assertions:
//	  - type: command_order
//	    commands: [rand, "+"]
//
// # Comparison Modes
//
// In commands mode (the default) only the first field of every record, the
// command, is compared, element-wise and including length. Exact mode also
// compares IDs, inputs and data.
//
// # Assertion Types
//
//   - command_contains: a command appears in the trace
//   - command_order: commands first appear in the given order
//   - command_count: a command appears exactly N times
//
// Assertions check the engine trace unless side is "in_process".
package harness
