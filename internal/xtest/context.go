package xtest

import (
	"context"
	"runtime/pprof"
	"testing"
	"time"
)

const commonWaitTimeout = 10 * time.Second

// Context returns a context labeled with the test name, canceled on test cleanup.
func Context(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = pprof.WithLabels(ctx, pprof.Labels("test", t.Name()))
	pprof.SetGoroutineLabels(ctx)

	t.Cleanup(func() {
		pprof.SetGoroutineLabels(ctx)
		cancel()
	})

	return ctx
}

func ContextWithCommonTimeout(ctx context.Context, t testing.TB) context.Context {
	if ctx.Done() == nil {
		t.Fatal("Use context with timeout only with context, cancelled on finish test, for example xtest.Context")
	}

	ctx, ctxCancel := context.WithTimeout(ctx, commonWaitTimeout)
	_ = ctxCancel // suppress linters, it is ok for leak for small amount of time: it will cancel by parent context

	return ctx
}

// WaitChannelClosed fails the test if ch is not closed in common timeout.
func WaitChannelClosed(t testing.TB, ch <-chan struct{}) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(commonWaitTimeout):
		t.Fatal("channel was not closed")
	}
}

// Spin polls cond until it returns true or common timeout elapses.
func Spin(t testing.TB, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(commonWaitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition was not met")
		}
		time.Sleep(time.Millisecond)
	}
}
