package trace

import (
	"context"
	"time"
)

type (
	// Pool specified trace of session pool activity.
	Pool struct {
		OnNew   func(PoolNewStartInfo) func(PoolNewDoneInfo)
		OnClose func(PoolCloseStartInfo) func(PoolCloseDoneInfo)

		OnAcquire func(PoolAcquireStartInfo) func(PoolAcquireDoneInfo)
		OnRelease func(PoolReleaseStartInfo) func(PoolReleaseDoneInfo)
		OnWait    func(PoolWaitStartInfo) func(PoolWaitDoneInfo)

		OnSessionCreate func(PoolSessionCreateStartInfo) func(PoolSessionCreateDoneInfo)
		OnSessionDelete func(PoolSessionDeleteStartInfo) func(PoolSessionDeleteDoneInfo)
		OnSessionPing   func(PoolSessionPingStartInfo) func(PoolSessionPingDoneInfo)

		// OnTransactionInterrupt is called when the keeper forcibly ends a
		// transaction which was open longer than allowed.
		OnTransactionInterrupt func(PoolTransactionInterruptInfo)

		OnChange func(PoolChangeInfo)
	}
	PoolNewStartInfo struct {
		// Context make available context in trace callback function.
		// Pointer to context provide replacement of context in trace callback function.
		// Warning: concurrent access to pointer on client side must be excluded.
		// Safe replacement of context are provided only inside callback function
		Context *context.Context
		Call    call
	}
	PoolNewDoneInfo struct {
		Min         int
		Max         int
		Multiplexed bool
	}
	PoolCloseStartInfo struct {
		// Context make available context in trace callback function.
		// Pointer to context provide replacement of context in trace callback function.
		// Warning: concurrent access to pointer on client side must be excluded.
		// Safe replacement of context are provided only inside callback function
		Context *context.Context
		Call    call
	}
	PoolCloseDoneInfo struct {
		Error error
	}
	PoolAcquireStartInfo struct {
		// Context make available context in trace callback function.
		// Pointer to context provide replacement of context in trace callback function.
		// Warning: concurrent access to pointer on client side must be excluded.
		// Safe replacement of context are provided only inside callback function
		Context *context.Context
		Call    call
		Kind    string
	}
	PoolAcquireDoneInfo struct {
		SessionID string
		Latency   time.Duration
		Error     error
	}
	PoolReleaseStartInfo struct {
		// Context make available context in trace callback function.
		// Pointer to context provide replacement of context in trace callback function.
		// Warning: concurrent access to pointer on client side must be excluded.
		// Safe replacement of context are provided only inside callback function
		Context   *context.Context
		Call      call
		SessionID string
	}
	PoolReleaseDoneInfo struct {
		Error error
	}
	PoolWaitStartInfo struct {
		// Context make available context in trace callback function.
		// Pointer to context provide replacement of context in trace callback function.
		// Warning: concurrent access to pointer on client side must be excluded.
		// Safe replacement of context are provided only inside callback function
		Context *context.Context
		Call    call
		Waiters int
	}
	PoolWaitDoneInfo struct {
		SessionID string
		Error     error
	}
	PoolSessionCreateStartInfo struct {
		// Context make available context in trace callback function.
		// Pointer to context provide replacement of context in trace callback function.
		// Warning: concurrent access to pointer on client side must be excluded.
		// Safe replacement of context are provided only inside callback function
		Context *context.Context
		Call    call
		Count   int
	}
	PoolSessionCreateDoneInfo struct {
		Created int
		Error   error
	}
	PoolSessionDeleteStartInfo struct {
		// Context make available context in trace callback function.
		// Pointer to context provide replacement of context in trace callback function.
		// Warning: concurrent access to pointer on client side must be excluded.
		// Safe replacement of context are provided only inside callback function
		Context   *context.Context
		Call      call
		SessionID string
		Reason    string
	}
	PoolSessionDeleteDoneInfo struct {
		Error error
	}
	PoolSessionPingStartInfo struct {
		// Context make available context in trace callback function.
		// Pointer to context provide replacement of context in trace callback function.
		// Warning: concurrent access to pointer on client side must be excluded.
		// Safe replacement of context are provided only inside callback function
		Context   *context.Context
		Call      call
		SessionID string
	}
	PoolSessionPingDoneInfo struct {
		Error error
	}
	PoolTransactionInterruptInfo struct {
		SessionID string
		Age       time.Duration
	}
	PoolChangeInfo struct {
		Min        int
		Max        int
		IdleReads  int
		IdleWrites int
		InUse      int
		Creating   int
		Waiters    int
	}
)
