// Package dml is a reference engine for the script subset used by lineage
// scenarios.
//
// It interprets assignments, matrix construction, element-wise and matrix
// arithmetic, a few builtins and print statements against a fresh
// lineage.Context, and frames its output the way the batch engine does: one
// header line first and a three-line statistics footer last. Harness tests
// and "lindiff engine" use it as a stand-in for the external engine.
//
// Supported syntax:
//
//	x = matrix(1, rows=10, cols=10)   # fill value, then named dims
//	y = x + x                          # + - * / ^ and %*%
//	z = t(y) %*% y
//	s = sum(z)                         # also min(a, b), max(a, b)
//	print(lineage(y))                  # writes the lineage trace
//	print("done"); print(s)
//
// Statements end at a newline or semicolon. Newlines inside parentheses
// continue the statement. Comments start with '#'.
package dml
