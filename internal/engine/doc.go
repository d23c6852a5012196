// Package engine drives the external batch engine.
//
// A Driver writes a script into its Workspace, runs the engine binary on it
// with stdout and stderr captured to an output file, waits for the process to
// exit, and parses the captured output with the trace package.
//
// Layout inside the workspace directory:
//
//	<dir>/<name>.dml   script handed to the engine
//	<dir>/<name>.txt   everything the engine printed
//
// The engine is invoked as "<binary> [args...] <script-path>" without a
// shell. There is exactly one attempt per Execute call.
//
// Exit status handling is a policy. ExitIgnore (the default) records the exit
// code and parses whatever output was produced. ExitStrict turns a non-zero
// exit into an *ExitStatusError. A binary that cannot be started is always an
// error matching ErrEngineNotFound.
package engine
