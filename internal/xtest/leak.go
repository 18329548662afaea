package xtest

import (
	"testing"

	"go.uber.org/goleak"
)

// CheckGoroutinesLeak returns a func which fails the test if goroutines
// started after the call are still running. Use it as
// defer xtest.CheckGoroutinesLeak(t)()
func CheckGoroutinesLeak(tb testing.TB, opts ...goleak.Option) func() {
	tb.Helper()

	opts = append(opts, goleak.IgnoreCurrent())

	return func() {
		tb.Helper()

		if err := goleak.Find(opts...); err != nil {
			tb.Errorf("found goroutines leak: %v", err)
		}
	}
}
