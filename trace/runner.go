package trace

import (
	"context"
	"time"
)

type (
	// Runner specified trace of transaction runner activity.
	Runner struct {
		OnRun     func(RunnerRunStartInfo) func(RunnerRunDoneInfo)
		OnAttempt func(RunnerAttemptStartInfo) func(RunnerAttemptDoneInfo)
	}
	RunnerRunStartInfo struct {
		// Context make available context in trace callback function.
		// Pointer to context provide replacement of context in trace callback function.
		// Warning: concurrent access to pointer on client side must be excluded.
		// Safe replacement of context are provided only inside callback function
		Context *context.Context
		Call    call
		Label   string
		Async   bool
	}
	RunnerRunDoneInfo struct {
		Attempts int
		Latency  time.Duration
		Error    error
	}
	RunnerAttemptStartInfo struct {
		// Context make available context in trace callback function.
		// Pointer to context provide replacement of context in trace callback function.
		// Warning: concurrent access to pointer on client side must be excluded.
		// Safe replacement of context are provided only inside callback function
		Context *context.Context
		Attempt int
	}
	RunnerAttemptDoneInfo struct {
		SessionID string
		Error     error
		Retryable bool
		// Delay is the pause before the next attempt, zero if there is none.
		Delay time.Duration
	}
)
