// Package shared holds code used across layers that belongs to no single
// domain package.
//
// The testutil subpackage provides a capturing slog handler and CSV fixture
// writers for the summary and trials datasets:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    summary, trials := testutil.WriteFixtures(t, t.TempDir())
//	    ...
//	    testutil.AssertNoErrors(t, logs)
//	}
package shared
