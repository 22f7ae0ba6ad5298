// Package shared holds the few helpers that sit below every layer of
// the survey codebase. Today that is the testutil subpackage. Domain
// logic and third-party integrations belong in the layers above, and
// nothing here may import them back.
//
// # Test Utilities
//
// testutil carries the pieces most package tests reach for. Fixture
// grids and column policies cover the common survey shapes, and a
// buffered slog handler captures records for assertions.
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    svc := NewService(logger)
//
//	    // ... exercise svc, then assert on captured logs
//	    testutil.AssertLogContains(t, logs, slog.LevelInfo, "aggregation complete")
//	}
package shared
