// Package testutil provides the helper-process engine used by tests.
//
// Tests that need an external engine re-execute their own test binary. The
// package's TestMain calls RunHelperEngine before m.Run; when the helper
// environment variable is set, the process behaves as the reference engine
// and exits instead of running tests:
//
//	func TestMain(m *testing.M) {
//		testutil.RunHelperEngine()
//		os.Exit(m.Run())
//	}
//
// HelperEngine returns the binary and environment to hand to an
// engine.Driver. Flags placed before the script path change the helper's
// behaviour so tests can exercise exit codes, stderr capture and timeouts.
package testutil
