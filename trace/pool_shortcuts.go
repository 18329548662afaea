package trace

import (
	"context"
	"time"
)

// Compose returns a new Pool which has functional fields composed both from t and x.
func (t *Pool) Compose(x *Pool, opts ...ComposeOption) *Pool {
	if t == nil {
		return x
	}
	if x == nil {
		return t
	}
	options := newComposeOptions(opts)

	return &Pool{
		OnNew:                  composeStartDone(t.OnNew, x.OnNew, options),
		OnClose:                composeStartDone(t.OnClose, x.OnClose, options),
		OnAcquire:              composeStartDone(t.OnAcquire, x.OnAcquire, options),
		OnRelease:              composeStartDone(t.OnRelease, x.OnRelease, options),
		OnWait:                 composeStartDone(t.OnWait, x.OnWait, options),
		OnSessionCreate:        composeStartDone(t.OnSessionCreate, x.OnSessionCreate, options),
		OnSessionDelete:        composeStartDone(t.OnSessionDelete, x.OnSessionDelete, options),
		OnSessionPing:          composeStartDone(t.OnSessionPing, x.OnSessionPing, options),
		OnTransactionInterrupt: composeEvent(t.OnTransactionInterrupt, x.OnTransactionInterrupt, options),
		OnChange:               composeEvent(t.OnChange, x.OnChange, options),
	}
}

func PoolOnNew(t *Pool, c *context.Context, call call) func(minSize, maxSize int, multiplexed bool) {
	if t == nil {
		return func(int, int, bool) {}
	}
	res := startDone(t.OnNew, PoolNewStartInfo{Context: c, Call: call})

	return func(minSize, maxSize int, multiplexed bool) {
		res(PoolNewDoneInfo{Min: minSize, Max: maxSize, Multiplexed: multiplexed})
	}
}

func PoolOnClose(t *Pool, c *context.Context, call call) func(error) {
	if t == nil {
		return func(error) {}
	}
	res := startDone(t.OnClose, PoolCloseStartInfo{Context: c, Call: call})

	return func(e error) {
		res(PoolCloseDoneInfo{Error: e})
	}
}

func PoolOnAcquire(t *Pool, c *context.Context, call call, kind string) func(
	sessionID string, latency time.Duration, _ error,
) {
	if t == nil {
		return func(string, time.Duration, error) {}
	}
	res := startDone(t.OnAcquire, PoolAcquireStartInfo{Context: c, Call: call, Kind: kind})

	return func(sessionID string, latency time.Duration, e error) {
		res(PoolAcquireDoneInfo{SessionID: sessionID, Latency: latency, Error: e})
	}
}

func PoolOnRelease(t *Pool, c *context.Context, call call, sessionID string) func(error) {
	if t == nil {
		return func(error) {}
	}
	res := startDone(t.OnRelease, PoolReleaseStartInfo{Context: c, Call: call, SessionID: sessionID})

	return func(e error) {
		res(PoolReleaseDoneInfo{Error: e})
	}
}

func PoolOnWait(t *Pool, c *context.Context, call call, waiters int) func(sessionID string, _ error) {
	if t == nil {
		return func(string, error) {}
	}
	res := startDone(t.OnWait, PoolWaitStartInfo{Context: c, Call: call, Waiters: waiters})

	return func(sessionID string, e error) {
		res(PoolWaitDoneInfo{SessionID: sessionID, Error: e})
	}
}

func PoolOnSessionCreate(t *Pool, c *context.Context, call call, count int) func(created int, _ error) {
	if t == nil {
		return func(int, error) {}
	}
	res := startDone(t.OnSessionCreate, PoolSessionCreateStartInfo{Context: c, Call: call, Count: count})

	return func(created int, e error) {
		res(PoolSessionCreateDoneInfo{Created: created, Error: e})
	}
}

func PoolOnSessionDelete(t *Pool, c *context.Context, call call, sessionID, reason string) func(error) {
	if t == nil {
		return func(error) {}
	}
	res := startDone(t.OnSessionDelete, PoolSessionDeleteStartInfo{
		Context:   c,
		Call:      call,
		SessionID: sessionID,
		Reason:    reason,
	})

	return func(e error) {
		res(PoolSessionDeleteDoneInfo{Error: e})
	}
}

func PoolOnSessionPing(t *Pool, c *context.Context, call call, sessionID string) func(error) {
	if t == nil {
		return func(error) {}
	}
	res := startDone(t.OnSessionPing, PoolSessionPingStartInfo{Context: c, Call: call, SessionID: sessionID})

	return func(e error) {
		res(PoolSessionPingDoneInfo{Error: e})
	}
}

func PoolOnTransactionInterrupt(t *Pool, sessionID string, age time.Duration) {
	if t == nil {
		return
	}
	event(t.OnTransactionInterrupt, PoolTransactionInterruptInfo{SessionID: sessionID, Age: age})
}

func PoolOnChange(t *Pool, info PoolChangeInfo) {
	if t == nil {
		return
	}
	event(t.OnChange, info)
}
