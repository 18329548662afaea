package pool

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/spanlite/spanlite-go-sdk/config"
	"github.com/spanlite/spanlite-go-sdk/internal/meta"
	"github.com/spanlite/spanlite-go-sdk/internal/session"
	"github.com/spanlite/spanlite-go-sdk/internal/stack"
	"github.com/spanlite/spanlite-go-sdk/internal/transport"
	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/internal/xsync"
	"github.com/spanlite/spanlite-go-sdk/trace"
)

// Provider hands out sessions for transactions.
type Provider interface {
	Acquire(ctx context.Context, kind transport.Kind) (*session.Session, error)
	Release(ctx context.Context, s *session.Session) error
	Close(ctx context.Context) error
}

const (
	reasonBroken      = "broken"
	reasonIdle        = "idle"
	reasonClosed      = "closed"
	reasonInactive    = "inactive transaction"
	reasonPingFailure = "ping failure"
)

var _ Provider = (*Pool)(nil)

type (
	// Pool is a set of sessions reused by transactions.
	// A pool is safe for use by multiple goroutines simultaneously.
	Pool struct {
		options

		config    config.SessionPool
		transport transport.Transport
		sema      *semaphore.Weighted

		mu               xsync.Mutex
		index            map[*session.Session]*sessionInfo
		reads            *list.List // list<*session.Session> without prepared transaction
		writes           *list.List // list<*session.Session> with prepared transaction
		waitq            *list.List // list<*waiter>
		createInProgress int
		closed           bool

		ctx    context.Context //nolint:containedctx
		cancel context.CancelFunc
		done   chan struct{}
		wg     sync.WaitGroup
	}
	sessionInfo struct {
		idle      *list.Element
		idleList  *list.List
		idleSince time.Time
		inUse     bool
	}
	waiter struct {
		el *list.Element
		ch chan result
	}
	result struct {
		s   *session.Session
		err error
	}
)

// New creates a pool, starts its maintenance and the creation of Min sessions.
// It does not wait for the sessions.
func New(ctx context.Context, t transport.Transport, cfg config.SessionPool, opts ...Option) (_ *Pool, err error) {
	if err = cfg.Validate(); err != nil {
		return nil, xerrors.WithStackTrace(err)
	}
	p := &Pool{
		options:   newOptions(opts),
		config:    cfg,
		transport: t,
		index:     make(map[*session.Session]*sessionInfo),
		reads:     list.New(),
		writes:    list.New(),
		waitq:     list.New(),
		done:      make(chan struct{}),
	}

	onDone := trace.PoolOnNew(p.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.New"),
	)
	defer func() {
		onDone(cfg.Min, cfg.Max, false)
	}()

	if cfg.Concurrency > 0 {
		p.sema = semaphore.NewWeighted(int64(cfg.Concurrency))
	}
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))

	p.mu.WithLock(func() {
		p.fillLocked()
		p.spawnLocked(p.keeper)
	})

	return p, nil
}

// Stats is a snapshot of the pool state.
type Stats struct {
	Min        int
	Max        int
	IdleReads  int
	IdleWrites int
	InUse      int
	Creating   int
	Waiters    int
}

// Total is the number of sessions counted against Max.
func (s Stats) Total() int {
	return s.IdleReads + s.IdleWrites + s.InUse + s.Creating
}

func (p *Pool) Stats() Stats {
	return xsync.WithLock(&p.mu, p.statsLocked)
}

// p.mu must be held.
func (p *Pool) statsLocked() Stats {
	return Stats{
		Min:        p.config.Min,
		Max:        p.config.Max,
		IdleReads:  p.reads.Len(),
		IdleWrites: p.writes.Len(),
		InUse:      len(p.index) - p.reads.Len() - p.writes.Len(),
		Creating:   p.createInProgress,
		Waiters:    p.waitq.Len(),
	}
}

func (p *Pool) onChange() {
	if p.trace == nil || p.trace.OnChange == nil {
		return
	}
	stats := p.Stats()
	trace.PoolOnChange(p.trace, trace.PoolChangeInfo{
		Min:        stats.Min,
		Max:        stats.Max,
		IdleReads:  stats.IdleReads,
		IdleWrites: stats.IdleWrites,
		InUse:      stats.InUse,
		Creating:   stats.Creating,
		Waiters:    stats.Waiters,
	})
}

// Acquire returns a session for a transaction of given kind. It waits for a
// session when the pool is exhausted unless the pool is configured to fail.
func (p *Pool) Acquire(ctx context.Context, kind transport.Kind) (s *session.Session, finalErr error) {
	start := p.clock.Now()
	onDone := trace.PoolOnAcquire(p.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.(*Pool).Acquire"),
		kind.String(),
	)
	defer func() {
		if s != nil {
			onDone(s.ID(), p.clock.Since(start), finalErr)
		} else {
			onDone("", p.clock.Since(start), finalErr)
		}
		p.onChange()
	}()

	for {
		idle, w, err := p.tryAcquire(kind)
		if err != nil {
			return nil, xerrors.WithStackTrace(err)
		}
		if w != nil {
			return p.wait(ctx, w)
		}
		if p.clock.Since(idle.LastUsage()) < p.config.KeepAlive {
			return idle, nil
		}
		if err = p.ping(idle); err == nil {
			return idle, nil
		}
		if ctx.Err() != nil {
			_ = p.Release(ctx, idle)

			return nil, xerrors.WithStackTrace(ctx.Err())
		}
		p.destroy(idle, reasonPingFailure)
	}
}

// tryAcquire returns an idle session or a waiter enqueued for the next
// released or created one.
func (p *Pool) tryAcquire(kind transport.Kind) (*session.Session, *waiter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, nil, xerrors.ErrPoolClosed
	}
	if s := p.takeIdleLocked(kind); s != nil {
		return s, nil, nil
	}
	if p.config.Fail && p.waitq.Len() >= p.createInProgress && p.roomLocked() == 0 {
		return nil, nil, xerrors.ErrPoolExhausted
	}
	w := &waiter{
		ch: make(chan result, 1),
	}
	w.el = p.waitq.PushBack(w)
	p.fillLocked()

	return nil, w, nil
}

func (p *Pool) wait(ctx context.Context, w *waiter) (s *session.Session, finalErr error) {
	var waiters int
	p.mu.WithLock(func() {
		waiters = p.waitq.Len()
	})
	onDone := trace.PoolOnWait(p.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.(*Pool).wait"),
		waiters,
	)
	defer func() {
		if s != nil {
			onDone(s.ID(), finalErr)
		} else {
			onDone("", finalErr)
		}
	}()

	var timeout <-chan time.Time
	if d := p.config.AcquireTimeout; d > 0 {
		timer := p.clock.NewTimer(d)
		defer timer.Stop()
		timeout = timer.Chan()
	}

	var err error
	select {
	case r := <-w.ch:
		if r.err != nil {
			return nil, xerrors.WithStackTrace(r.err)
		}

		return r.s, nil
	case <-timeout:
		err = xerrors.ErrAcquireTimeout
	case <-ctx.Done():
		err = ctx.Err()
	case <-p.done:
		err = xerrors.ErrPoolClosed
	}

	p.mu.WithLock(func() {
		if w.el != nil {
			p.waitq.Remove(w.el)
			w.el = nil
		}
	})
	// A session may have been handed off before the waiter was removed.
	select {
	case r := <-w.ch:
		if r.s != nil {
			_ = p.Release(context.WithoutCancel(ctx), r.s)
		}
	default:
	}

	return nil, xerrors.WithStackTrace(err)
}

// Release returns a session to the pool. Broken sessions are deleted and
// replaced. A session interrupted and removed by the pool is unknown.
func (p *Pool) Release(ctx context.Context, s *session.Session) (finalErr error) {
	onDone := trace.PoolOnRelease(p.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.(*Pool).Release"),
		s.ID(),
	)
	defer func() {
		onDone(finalErr)
		p.onChange()
	}()

	var (
		reason string
		closed bool
	)
	err := xsync.WithLock(&p.mu, func() error {
		info, has := p.index[s]
		if !has || !info.inUse {
			return xerrors.ErrSessionUnknown
		}
		info.inUse = false
		switch {
		case p.closed:
			reason, closed = reasonClosed, true
			delete(p.index, s)
		case !s.IsAlive():
			reason = reasonBroken
			p.removeLocked(s, reason)
			p.fillLocked()
		default:
			p.putLocked(s)
		}

		return nil
	})
	if err != nil {
		return xerrors.WithStackTrace(err)
	}
	if closed {
		_ = deleteSession(ctx, p.config, p.trace, s, reason)

		return xerrors.WithStackTrace(xerrors.ErrPoolClosed)
	}

	return nil
}

// destroy deletes a session taken out of idle by the caller.
func (p *Pool) destroy(s *session.Session, reason string) {
	defer p.onChange()

	background := xsync.WithLock(&p.mu, func() bool {
		if _, has := p.index[s]; !has {
			return true
		}
		defer p.fillLocked()

		return p.removeLocked(s, reason)
	})
	if !background {
		_ = deleteSession(context.Background(), p.config, p.trace, s, reason)
	}
}

// Close deletes idle sessions and fails the waiters. Sessions in use are
// deleted on release.
func (p *Pool) Close(ctx context.Context) (finalErr error) {
	onDone := trace.PoolOnClose(p.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.(*Pool).Close"),
	)
	defer func() {
		onDone(finalErr)
	}()

	var idle []*session.Session
	closed := xsync.WithLock(&p.mu, func() bool {
		if p.closed {
			return true
		}
		p.closed = true
		close(p.done)
		p.cancel()

		for el := p.waitq.Front(); el != nil; el = p.waitq.Front() {
			w := p.waitq.Remove(el).(*waiter) //nolint:forcetypeassert
			w.el = nil
			w.ch <- result{err: xerrors.ErrPoolClosed}
		}
		for _, l := range []*list.List{p.reads, p.writes} {
			for el := l.Front(); el != nil; el = l.Front() {
				s := l.Remove(el).(*session.Session) //nolint:forcetypeassert
				delete(p.index, s)
				idle = append(idle, s)
			}
		}

		return false
	})
	if closed {
		return nil
	}

	err := deleteSessions(ctx, p.config, p.trace, idle, reasonClosed)
	p.wg.Wait()

	return err
}

// p.mu must be held.
func (p *Pool) roomLocked() int {
	return max(p.config.Max-len(p.index)-p.createInProgress, 0)
}

// fillLocked starts creation of sessions up to Min and for waiters which are
// not served by creation in progress.
// p.mu must be held.
func (p *Pool) fillLocked() {
	if p.closed {
		return
	}
	need := max(
		p.config.Min-len(p.index)-p.createInProgress,
		p.waitq.Len()-p.createInProgress,
	)
	for need = min(need, p.roomLocked()); need > 0; {
		count := min(need, p.config.IncStep)
		need -= count
		p.createInProgress += count
		p.spawnLocked(func(ctx context.Context) {
			p.create(ctx, count)
		})
	}
}

// spawnLocked runs f in background unless the pool is closed.
// p.mu must be held.
func (p *Pool) spawnLocked(f func(ctx context.Context)) bool {
	if p.closed {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		f(p.ctx)
	}()

	return true
}

// p.mu must be held.
func (p *Pool) takeIdleLocked(kind transport.Kind) *session.Session {
	first, second := p.reads, p.writes
	if kind == transport.KindReadWrite {
		first, second = p.writes, p.reads
	}
	for _, l := range []*list.List{first, second} {
		el := l.Front()
		if el == nil {
			continue
		}
		s := el.Value.(*session.Session) //nolint:forcetypeassert
		p.takeLocked(s)

		return s
	}

	return nil
}

// takeLocked moves a session from idle to in use.
// p.mu must be held.
func (p *Pool) takeLocked(s *session.Session) {
	info, has := p.index[s]
	if !has {
		panicLocked(&p.mu, "spanlite: session created outside of the pool")
	}
	if info.idle != nil {
		info.idleList.Remove(info.idle)
		info.idle, info.idleList = nil, nil
	}
	info.inUse = true
	s.Lease()
}

// putLocked hands a healthy session to the first waiter or makes it idle.
// p.mu must be held.
func (p *Pool) putLocked(s *session.Session) {
	if p.notifyLocked(s) {
		return
	}
	if !s.HasPrepared() && p.needsWriteLocked() {
		p.takeLocked(s)
		p.spawnLocked(func(ctx context.Context) {
			p.prepare(ctx, s)
		})

		return
	}
	p.pushIdleLocked(s)
}

// p.mu must be held.
func (p *Pool) pushIdleLocked(s *session.Session) {
	info, has := p.index[s]
	if !has {
		panicLocked(&p.mu, "spanlite: session created outside of the pool")
	}
	if info.idle != nil {
		panicLocked(&p.mu, "spanlite: inconsistent session pool index")
	}
	l := p.reads
	if s.HasPrepared() {
		l = p.writes
	}
	info.inUse = false
	info.idle, info.idleList = l.PushBack(s), l
	info.idleSince = p.clock.Now()
	s.SetStatus(session.StatusIdle)
}

// needsWriteLocked reports whether idle sessions with prepared transaction
// are below the configured fraction of all idle ones.
// p.mu must be held.
func (p *Pool) needsWriteLocked() bool {
	fraction := p.config.WriteSessionFraction
	if fraction <= 0 {
		return false
	}
	idle := p.reads.Len() + p.writes.Len() + 1

	return float64(p.writes.Len()) < fraction*float64(idle)
}

// notifyLocked hands s to the longest waiting acquirer.
// p.mu must be held.
func (p *Pool) notifyLocked(s *session.Session) bool {
	el := p.waitq.Front()
	if el == nil {
		return false
	}
	w := p.waitq.Remove(el).(*waiter) //nolint:forcetypeassert
	w.el = nil
	if info := p.index[s]; info.idle != nil {
		info.idleList.Remove(info.idle)
		info.idle, info.idleList = nil, nil
	}
	p.index[s].inUse = true
	s.Lease()
	w.ch <- result{s: s}

	return true
}

// removeLocked removes s from the pool and deletes it in background. It
// returns false if the pool is closed and the caller must delete s itself.
// p.mu must be held.
func (p *Pool) removeLocked(s *session.Session, reason string) bool {
	if info, has := p.index[s]; has && info.idle != nil {
		info.idleList.Remove(info.idle)
	}
	delete(p.index, s)

	return p.spawnLocked(func(context.Context) {
		_ = deleteSession(context.Background(), p.config, p.trace, s, reason)
	})
}

func (p *Pool) create(ctx context.Context, count int) {
	defer p.onChange()

	if d := p.config.CreateTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	sessions, err := p.createSessions(ctx, count)

	var orphans []*session.Session
	p.mu.WithLock(func() {
		p.createInProgress -= count
		for _, ts := range sessions {
			s := p.newSession(ts, p.transport)
			if p.closed {
				orphans = append(orphans, s)

				continue
			}
			p.index[s] = &sessionInfo{}
			p.putLocked(s)
		}
		if err == nil {
			return
		}
		// Waiters expecting the missing sessions get the error.
		missing := min(count-len(sessions), p.waitq.Len()-p.createInProgress)
		for ; missing > 0; missing-- {
			w := p.waitq.Remove(p.waitq.Front()).(*waiter) //nolint:forcetypeassert
			w.el = nil
			w.ch <- result{err: err}
		}
	})

	_ = deleteSessions(context.Background(), p.config, p.trace, orphans, reasonClosed)
}

func (p *Pool) createSessions(ctx context.Context, count int) (_ []*transport.Session, finalErr error) {
	onDone := trace.PoolOnSessionCreate(p.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.(*Pool).createSessions"),
		count,
	)
	var sessions []*transport.Session
	defer func() {
		onDone(len(sessions), finalErr)
	}()

	if p.sema != nil {
		if err := p.sema.Acquire(ctx, 1); err != nil {
			return nil, xerrors.WithStackTrace(err)
		}
		defer p.sema.Release(1)
	}

	id := p.requests.Next().String()
	sessions, err := p.transport.CreateSessions(meta.WithRequestID(ctx, id), count)
	if err != nil {
		return sessions, xerrors.WithRequestID(xerrors.WithStackTrace(err), id)
	}

	return sessions, nil
}

// prepare begins a read-write transaction on s, which is taken out of idle
// by the caller.
func (p *Pool) prepare(ctx context.Context, s *session.Session) {
	defer p.onChange()

	if d := p.config.CreateTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	_ = s.Prepare(ctx)

	var closed bool
	p.mu.WithLock(func() {
		info, has := p.index[s]
		switch {
		case !has:
		case p.closed:
			closed = true
			delete(p.index, s)
		case !s.IsAlive():
			p.removeLocked(s, reasonBroken)
			p.fillLocked()
		default:
			info.inUse = false
			if !p.notifyLocked(s) {
				p.pushIdleLocked(s)
			}
		}
	})
	if closed {
		_ = deleteSession(context.Background(), p.config, p.trace, s, reasonClosed)
	}
}

func (p *Pool) ping(s *session.Session) (finalErr error) {
	ctx := p.ctx
	onDone := trace.PoolOnSessionPing(p.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.(*Pool).ping"),
		s.ID(),
	)
	defer func() {
		onDone(finalErr)
	}()

	if d := p.config.PingTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	if err := s.Ping(ctx); err != nil {
		s.MarkBroken()

		return xerrors.WithStackTrace(err)
	}

	return nil
}

// deleteSession removes the session on the server. It is bounded by
// DeleteTimeout regardless of ctx cancellation.
func deleteSession(ctx context.Context, cfg config.SessionPool, t *trace.Pool, s *session.Session, reason string) (
	finalErr error,
) {
	onDone := trace.PoolOnSessionDelete(t, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/pool.deleteSession"),
		s.ID(), reason,
	)
	defer func() {
		onDone(finalErr)
	}()

	ctx = context.WithoutCancel(ctx)
	if d := cfg.DeleteTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	return s.Delete(ctx)
}

func panicLocked(mu sync.Locker, message string) {
	mu.Unlock()
	panic(message)
}
