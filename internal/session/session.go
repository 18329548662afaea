package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/spanlite/spanlite-go-sdk/internal/meta"
	"github.com/spanlite/spanlite-go-sdk/internal/requestid"
	"github.com/spanlite/spanlite-go-sdk/internal/transport"
	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/internal/xsync"
)

// Session is a server-side handle permitting transactions.
//
// A non-multiplexed session is used by one holder at a time. The pool keeps
// the state of a session in sync with its own bookkeeping.
type Session struct {
	id          string
	createdAt   time.Time
	multiplexed bool

	transport transport.Transport
	requests  *requestid.Generator
	clock     clockwork.Clock
	lastUsage xsync.LastUsage

	mu       xsync.Mutex
	status   Status
	prepared []byte
	lease    lease
}

// lease is the state of a checked out session.
type lease struct {
	since       time.Time
	cancel      context.CancelCauseFunc
	committing  bool
	interrupted bool
}

type option func(s *Session)

func WithClock(clock clockwork.Clock) option {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithRequestIDs sets the generator tagging calls made on the session.
func WithRequestIDs(g *requestid.Generator) option {
	return func(s *Session) {
		s.requests = g
	}
}

func New(s *transport.Session, t transport.Transport, opts ...option) *Session {
	session := &Session{
		id:          s.ID,
		createdAt:   s.CreateTime,
		multiplexed: s.Multiplexed,
		transport:   t,
		clock:       clockwork.NewRealClock(),
		status:      StatusCreating,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(session)
		}
	}
	if session.requests == nil {
		session.requests = requestid.New()
	}
	if session.createdAt.IsZero() {
		session.createdAt = session.clock.Now()
	}
	session.lastUsage = xsync.NewLastUsage(xsync.WithClock(session.clock))

	return session
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) Multiplexed() bool {
	return s.multiplexed
}

// LastUsage returns the moment of the last successful call on the session.
func (s *Session) LastUsage() time.Time {
	return s.lastUsage.Get()
}

func (s *Session) Status() Status {
	return xsync.WithLock(&s.mu, func() Status {
		return s.status
	})
}

// SetStatus changes the status of a session. Broken and closed sessions keep
// their status.
func (s *Session) SetStatus(status Status) {
	s.mu.WithLock(func() {
		switch s.status {
		case StatusBroken, StatusClosed:
			if status != StatusClosing && status != StatusClosed {
				return
			}
		}
		s.status = status
	})
}

func (s *Session) IsAlive() bool {
	switch s.Status() {
	case StatusBroken, StatusClosing, StatusClosed:
		return false
	default:
		return true
	}
}

// MarkBroken marks the session for destroying on release.
func (s *Session) MarkBroken() {
	s.SetStatus(StatusBroken)
}

// check marks the session broken if err says the server does not know it.
func (s *Session) check(err error) error {
	if err == nil {
		s.lastUsage.Touch()

		return nil
	}
	if xerrors.MustDeleteSession(err) {
		s.MarkBroken()
	}

	return err
}

// Transport returns the transport bound to the session.
func (s *Session) Transport() transport.Transport {
	return s.transport
}

// Observe updates the health of the session by outcome of a call made on it.
func (s *Session) Observe(err error) {
	_ = s.check(err)
}

func (s *Session) Ping(ctx context.Context) error {
	stop := s.lastUsage.Start()
	defer stop()

	id := s.requests.Next().String()
	if err := s.check(s.transport.PingSession(meta.WithRequestID(ctx, id), s.id)); err != nil {
		return xerrors.WithRequestID(xerrors.WithStackTrace(err), id)
	}

	return nil
}

// Begin starts a new transaction of given kind on the session. A prepared
// transaction not taken by the caller is rolled back first.
func (s *Session) Begin(ctx context.Context, kind transport.Kind) ([]byte, error) {
	if stale := s.TakePrepared(); stale != nil {
		s.rollback(ctx, stale)
	}

	id := s.requests.Next().String()
	txID, err := s.transport.BeginTransaction(meta.WithRequestID(ctx, id), s.id, kind)
	if err = s.check(err); err != nil {
		return nil, xerrors.WithRequestID(xerrors.WithStackTrace(err), id)
	}

	return txID, nil
}

// rollback ends a transaction nobody holds. The outcome only affects the
// health of the session.
func (s *Session) rollback(ctx context.Context, txID []byte) {
	id := s.requests.Next().String()
	s.Observe(s.transport.Rollback(meta.WithRequestID(ctx, id), s.id, txID))
}

// Prepare begins a read-write transaction which is handed to the next holder
// of the session by TakePrepared.
func (s *Session) Prepare(ctx context.Context) error {
	id, err := s.Begin(ctx, transport.KindReadWrite)
	if err != nil {
		return xerrors.WithStackTrace(err)
	}
	s.mu.WithLock(func() {
		s.prepared = id
	})

	return nil
}

func (s *Session) HasPrepared() bool {
	return xsync.WithLock(&s.mu, func() bool {
		return s.prepared != nil
	})
}

// TakePrepared returns the transaction begun by Prepare, at most once.
func (s *Session) TakePrepared() []byte {
	return xsync.WithLock(&s.mu, func() []byte {
		id := s.prepared
		s.prepared = nil

		return id
	})
}

func (s *Session) Delete(ctx context.Context) error {
	s.SetStatus(StatusClosing)
	defer s.SetStatus(StatusClosed)

	id := s.requests.Next().String()
	if err := s.transport.DeleteSession(meta.WithRequestID(ctx, id), s.id); err != nil {
		return xerrors.WithRequestID(xerrors.WithStackTrace(err), id)
	}

	return nil
}

// Lease starts a checkout of the session. Multiplexed sessions are shared
// and never leased.
func (s *Session) Lease() {
	if s.multiplexed {
		return
	}
	now := s.clock.Now()
	s.mu.WithLock(func() {
		s.lease = lease{since: now}
		if s.status != StatusBroken && s.status != StatusClosed {
			s.status = StatusInUse
		}
	})
}

// LeasedSince returns the start of the current checkout.
func (s *Session) LeasedSince() time.Time {
	return xsync.WithLock(&s.mu, func() time.Time {
		return s.lease.since
	})
}

// Bind returns a copy of ctx which is canceled when the session is
// interrupted. The returned func must be called when the work is done.
func (s *Session) Bind(ctx context.Context) (context.Context, func()) {
	if s.multiplexed {
		return ctx, func() {}
	}
	ctx, cancel := context.WithCancelCause(ctx)
	interrupted := xsync.WithLock(&s.mu, func() bool {
		if s.lease.interrupted {
			return true
		}
		s.lease.cancel = cancel

		return false
	})
	if interrupted {
		cancel(xerrors.ErrInactiveTransactionClosed)
	}

	return ctx, func() {
		s.mu.WithLock(func() {
			s.lease.cancel = nil
		})
		cancel(context.Canceled)
	}
}

// BeginCommit reports whether a commit may be sent. Interrupted sessions
// refuse to commit; a session with a commit in flight cannot be interrupted.
func (s *Session) BeginCommit() bool {
	if s.multiplexed {
		return true
	}

	return xsync.WithLock(&s.mu, func() bool {
		if s.lease.interrupted {
			return false
		}
		s.lease.committing = true

		return true
	})
}

func (s *Session) EndCommit() {
	s.mu.WithLock(func() {
		s.lease.committing = false
	})
}

// Interrupt ends the work bound to the session with cause. It does nothing
// and returns false while a commit is in flight.
func (s *Session) Interrupt(cause error) bool {
	cancel, ok := func() (context.CancelCauseFunc, bool) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.lease.committing {
			return nil, false
		}
		s.lease.interrupted = true
		s.status = StatusBroken

		return s.lease.cancel, true
	}()
	if !ok {
		return false
	}
	if cancel != nil {
		cancel(cause)
	}

	return true
}

func (s *Session) Interrupted() bool {
	return xsync.WithLock(&s.mu, func() bool {
		return s.lease.interrupted
	})
}
