package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/spanlite/spanlite-go-sdk/config"
	"github.com/spanlite/spanlite-go-sdk/internal/meta"
	"github.com/spanlite/spanlite-go-sdk/internal/session"
	"github.com/spanlite/spanlite-go-sdk/internal/stack"
	"github.com/spanlite/spanlite-go-sdk/internal/transport"
	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/internal/xsync"
	"github.com/spanlite/spanlite-go-sdk/trace"
)

var _ Provider = (*Multiplexed)(nil)

// Multiplexed provides one shared session for all transactions. The session
// is created on first use and replaced after MultiplexedRefresh.
type Multiplexed struct {
	options

	config    config.SessionPool
	transport transport.Transport

	create singleflight.Group

	mu         xsync.Mutex
	current    *session.Session
	retired    []*session.Session
	refreshing bool
	closed     bool

	ctx    context.Context //nolint:containedctx
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMultiplexed(ctx context.Context, t transport.Transport, cfg config.SessionPool, opts ...Option) (
	*Multiplexed, error,
) {
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.WithStackTrace(err)
	}
	m := &Multiplexed{
		options:   newOptions(opts),
		config:    cfg,
		transport: t,
	}
	onDone := trace.PoolOnNew(m.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.NewMultiplexed"),
	)
	defer onDone(1, 1, true)

	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))

	return m, nil
}

// Acquire returns the shared session. A session older than the refresh
// interval is still returned while its replacement is created in background.
func (m *Multiplexed) Acquire(ctx context.Context, kind transport.Kind) (s *session.Session, finalErr error) {
	start := m.clock.Now()
	onDone := trace.PoolOnAcquire(m.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.(*Multiplexed).Acquire"),
		kind.String(),
	)
	defer func() {
		if s != nil {
			onDone(s.ID(), m.clock.Since(start), finalErr)
		} else {
			onDone("", m.clock.Since(start), finalErr)
		}
	}()

	current, closed := func() (*session.Session, bool) {
		m.mu.Lock()
		defer m.mu.Unlock()

		return m.current, m.closed
	}()
	if closed {
		return nil, xerrors.WithStackTrace(xerrors.ErrPoolClosed)
	}
	if current != nil && current.IsAlive() {
		if m.clock.Since(current.CreatedAt()) >= m.config.MultiplexedRefresh {
			m.refresh()
		}

		return current, nil
	}

	ch := m.create.DoChan("session", m.fresh)
	select {
	case <-ctx.Done():
		return nil, xerrors.WithStackTrace(ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, xerrors.WithStackTrace(r.Err)
		}

		return r.Val.(*session.Session), nil //nolint:forcetypeassert
	}
}

func (m *Multiplexed) refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.refreshing {
		return
	}
	m.refreshing = true
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_, _, _ = m.create.Do("session", m.fresh)
		m.mu.WithLock(func() {
			m.refreshing = false
		})
	}()
}

// fresh returns the shared session or replaces it if it is broken or due
// for refresh.
func (m *Multiplexed) fresh() (interface{}, error) {
	current := xsync.WithLock(&m.mu, func() *session.Session {
		return m.current
	})
	if current != nil && current.IsAlive() && m.clock.Since(current.CreatedAt()) < m.config.MultiplexedRefresh {
		return current, nil
	}

	return m.replace(m.ctx)
}

// replace creates a new shared session. The previous one is kept until close
// since transactions may still run on it.
func (m *Multiplexed) replace(ctx context.Context) (_ *session.Session, finalErr error) {
	onDone := trace.PoolOnSessionCreate(m.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.(*Multiplexed).replace"),
		1,
	)
	created := 0
	defer func() {
		onDone(created, finalErr)
	}()

	if d := m.config.CreateTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	id := m.requests.Next().String()
	ts, err := m.transport.CreateMultiplexedSession(meta.WithRequestID(ctx, id))
	if err != nil {
		return nil, xerrors.WithRequestID(xerrors.WithStackTrace(err), id)
	}
	created = 1
	s := m.newSession(ts, m.transport)
	s.SetStatus(session.StatusInUse)

	closed := xsync.WithLock(&m.mu, func() bool {
		if m.closed {
			return true
		}
		if m.current != nil {
			m.retired = append(m.retired, m.current)
		}
		m.current = s

		return false
	})
	if closed {
		_ = deleteSession(ctx, m.config, m.trace, s, reasonClosed)

		return nil, xerrors.WithStackTrace(xerrors.ErrPoolClosed)
	}

	return s, nil
}

// Release does nothing: the shared session is never checked out.
func (m *Multiplexed) Release(ctx context.Context, s *session.Session) error {
	onDone := trace.PoolOnRelease(m.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.(*Multiplexed).Release"),
		s.ID(),
	)
	onDone(nil)

	return nil
}

func (m *Multiplexed) Close(ctx context.Context) (finalErr error) {
	onDone := trace.PoolOnClose(m.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.(*Multiplexed).Close"),
	)
	defer func() {
		onDone(finalErr)
	}()

	if closed := xsync.WithLock(&m.mu, func() bool {
		closed := m.closed
		m.closed = true

		return closed
	}); closed {
		return nil
	}
	m.cancel()
	m.wg.Wait()

	sessions := xsync.WithLock(&m.mu, func() []*session.Session {
		sessions := m.retired
		if m.current != nil {
			sessions = append(sessions, m.current)
		}
		m.current, m.retired = nil, nil

		return sessions
	})

	return deleteSessions(ctx, m.config, m.trace, sessions, reasonClosed)
}

// Stats reports the shared session as in use.
func (m *Multiplexed) Stats() Stats {
	return xsync.WithLock(&m.mu, func() Stats {
		stats := Stats{Min: 1, Max: 1}
		if m.current != nil {
			stats.InUse = 1
		}

		return stats
	})
}
