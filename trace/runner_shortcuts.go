package trace

import (
	"context"
	"time"
)

// Compose returns a new Runner which has functional fields composed both from t and x.
func (t *Runner) Compose(x *Runner, opts ...ComposeOption) *Runner {
	if t == nil {
		return x
	}
	if x == nil {
		return t
	}
	options := newComposeOptions(opts)

	return &Runner{
		OnRun:     composeStartDone(t.OnRun, x.OnRun, options),
		OnAttempt: composeStartDone(t.OnAttempt, x.OnAttempt, options),
	}
}

func RunnerOnRun(t *Runner, c *context.Context, call call, label string, async bool) func(
	attempts int, latency time.Duration, _ error,
) {
	if t == nil {
		return func(int, time.Duration, error) {}
	}
	res := startDone(t.OnRun, RunnerRunStartInfo{Context: c, Call: call, Label: label, Async: async})

	return func(attempts int, latency time.Duration, e error) {
		res(RunnerRunDoneInfo{Attempts: attempts, Latency: latency, Error: e})
	}
}

func RunnerOnAttempt(t *Runner, c *context.Context, attempt int) func(
	sessionID string, _ error, retryable bool, delay time.Duration,
) {
	if t == nil {
		return func(string, error, bool, time.Duration) {}
	}
	res := startDone(t.OnAttempt, RunnerAttemptStartInfo{Context: c, Attempt: attempt})

	return func(sessionID string, e error, retryable bool, delay time.Duration) {
		res(RunnerAttemptDoneInfo{SessionID: sessionID, Error: e, Retryable: retryable, Delay: delay})
	}
}
