package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/spanlite/spanlite-go-sdk/config"
	"github.com/spanlite/spanlite-go-sdk/internal/backoff"
	"github.com/spanlite/spanlite-go-sdk/internal/pool"
	"github.com/spanlite/spanlite-go-sdk/internal/requestid"
	"github.com/spanlite/spanlite-go-sdk/internal/session"
	"github.com/spanlite/spanlite-go-sdk/internal/stack"
	"github.com/spanlite/spanlite-go-sdk/internal/transport"
	"github.com/spanlite/spanlite-go-sdk/internal/tx"
	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/trace"
)

// Work is a unit of work executed in a transaction. It may be executed
// several times, each time with a new transaction.
type Work func(ctx context.Context, t *tx.Transaction) error

var errDeadline = errors.New("transaction deadline")

// Runner executes units of work in transactions and retries them on
// retryable failures until the transaction timeout.
type Runner struct {
	provider      pool.Provider
	clock         clockwork.Clock
	backoff       backoff.Backoff
	timeout       time.Duration
	trace         *trace.Runner
	streamTrace   *trace.Stream
	requests      *requestid.Generator
	panicCallback func(e interface{})
}

type option func(r *Runner)

func WithClock(clock clockwork.Clock) option {
	return func(r *Runner) {
		r.clock = clock
	}
}

func WithBackoff(b backoff.Backoff) option {
	return func(r *Runner) {
		r.backoff = b
	}
}

func WithTrace(t *trace.Runner) option {
	return func(r *Runner) {
		r.trace = r.trace.Compose(t)
	}
}

func WithStreamTrace(t *trace.Stream) option {
	return func(r *Runner) {
		r.streamTrace = r.streamTrace.Compose(t)
	}
}

func WithRequestIDs(g *requestid.Generator) option {
	return func(r *Runner) {
		r.requests = g
	}
}

// WithPanicCallback makes the runner recover panics of units of work. The
// recovered value is passed to f and the attempt fails.
// If not defined, panics are not recovered.
func WithPanicCallback(f func(e interface{})) option {
	return func(r *Runner) {
		r.panicCallback = f
	}
}

func New(p pool.Provider, cfg config.Runner, opts ...option) *Runner {
	r := &Runner{
		provider: p,
		clock:    clockwork.NewRealClock(),
		backoff:  backoff.Default,
		timeout:  cfg.Timeout,
	}
	if r.timeout <= 0 {
		r.timeout = config.DefaultTransactionTimeout
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.requests == nil {
		r.requests = requestid.New()
	}

	return r
}

type boundTx struct {
	session *session.Session
	id      []byte
}

type runOptions struct {
	kind  transport.Kind
	label string
	bound *boundTx
}

type RunOption func(o *runOptions)

// WithKind sets the kind of transactions begun for the unit of work.
func WithKind(kind transport.Kind) RunOption {
	return func(o *runOptions) {
		o.kind = kind
	}
}

// WithLabel names the unit of work in traces.
func WithLabel(label string) RunOption {
	return func(o *runOptions) {
		o.label = label
	}
}

// WithBound makes the first attempt use the already begun transaction id on
// s. Retries begin new transactions on sessions from the pool. The runner
// never releases s.
func WithBound(s *session.Session, id []byte) RunOption {
	return func(o *runOptions) {
		o.bound = &boundTx{session: s, id: id}
	}
}

// Run executes work until it succeeds, fails with an error which is not
// retryable, or the transaction timeout would elapse before the next
// attempt. Failed requests and streams of a transaction make the whole
// attempt fail even if work ignores their errors.
func (r *Runner) Run(ctx context.Context, work Work, opts ...RunOption) error {
	return r.run(ctx, work, false, opts)
}

// RunAsync is like Run but failed requests and streams of a transaction are
// not intercepted: only the error returned by work decides the retry.
func (r *Runner) RunAsync(ctx context.Context, work Work, opts ...RunOption) error {
	return r.run(ctx, work, true, opts)
}

// RunWithResult executes work with r and returns the result of the
// successful attempt.
func RunWithResult[T any](ctx context.Context, r *Runner,
	work func(ctx context.Context, t *tx.Transaction) (T, error), opts ...RunOption,
) (T, error) {
	var result T
	err := r.Run(ctx, func(ctx context.Context, t *tx.Transaction) (err error) {
		result, err = work(ctx, t)

		return err
	}, opts...)
	if err != nil {
		var zero T

		return zero, err
	}

	return result, nil
}

func retryable(err error) bool {
	return xerrors.IsRetryable(err) || xerrors.MustDeleteSession(err)
}

func (r *Runner) run(ctx context.Context, work Work, async bool, opts []RunOption) (finalErr error) {
	o := &runOptions{kind: transport.KindReadWrite}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	var (
		start    = r.clock.Now()
		deadline = start.Add(r.timeout)
		attempts []error
		i        int
	)
	onDone := trace.RunnerOnRun(r.trace, &ctx, stack.FunctionID(
		"github.com/spanlite/spanlite-go-sdk/internal/runner.(*Runner).run"),
		o.label, async,
	)
	defer func() {
		onDone(i+1, r.clock.Since(start), finalErr)
	}()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(context.Canceled)
	timer := r.clock.AfterFunc(r.timeout, func() {
		cancel(errDeadline)
	})
	defer timer.Stop()

	deadlineExceeded := func() error {
		return xerrors.WithStackTrace(&xerrors.DeadlineExceededError{
			Timeout:  r.timeout,
			Attempts: attempts,
		})
	}

	for i = 0; ; i++ {
		onAttempt := trace.RunnerOnAttempt(r.trace, &ctx, i)

		s, id, owned, err := r.obtain(ctx, o, i)
		if err != nil {
			onAttempt("", err, false, 0)
			if errors.Is(err, context.Canceled) && errors.Is(context.Cause(ctx), errDeadline) {
				attempts = append(attempts, err)

				return deadlineExceeded()
			}

			return xerrors.WithStackTrace(err)
		}

		err = func() error {
			if owned {
				defer func() {
					_ = r.provider.Release(context.WithoutCancel(ctx), s)
				}()
			}

			return r.attempt(ctx, s, id, o.kind, work, async)
		}()
		if err == nil {
			onAttempt(s.ID(), nil, false, 0)

			return nil
		}
		attempts = append(attempts, err)

		if errors.Is(context.Cause(ctx), errDeadline) {
			onAttempt(s.ID(), err, false, 0)

			return deadlineExceeded()
		}
		if !retryable(err) {
			onAttempt(s.ID(), err, false, 0)

			return xerrors.WithStackTrace(err)
		}

		delay := r.backoff.Delay(err, i+1)
		if r.clock.Now().Add(delay).After(deadline) {
			onAttempt(s.ID(), err, true, 0)

			return deadlineExceeded()
		}
		onAttempt(s.ID(), err, true, delay)

		if err := r.wait(ctx, delay); err != nil {
			if errors.Is(context.Cause(ctx), errDeadline) {
				return deadlineExceeded()
			}

			return xerrors.WithStackTrace(err)
		}
	}
}

func (r *Runner) wait(ctx context.Context, delay time.Duration) error {
	t := r.clock.NewTimer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

// obtain returns the session and, if already begun, the transaction of
// attempt i. owned reports whether the session must be released.
func (r *Runner) obtain(ctx context.Context, o *runOptions, i int) (
	s *session.Session, id []byte, owned bool, _ error,
) {
	if i == 0 && o.bound != nil {
		return o.bound.session, o.bound.id, false, nil
	}
	s, err := r.provider.Acquire(ctx, o.kind)
	if err != nil {
		return nil, nil, false, err
	}
	if i == 0 && o.kind == transport.KindReadWrite {
		id = s.TakePrepared()
	}

	return s, id, true, nil
}

// attempt executes work once in a transaction on s. The transaction is
// begun unless id is set, committed if work left it open, and rolled back
// on failure.
func (r *Runner) attempt(ctx context.Context, s *session.Session, id []byte, kind transport.Kind,
	work Work, async bool,
) (err error) {
	bound, unbind := s.Bind(ctx)
	defer unbind()

	defer func() {
		if errors.Is(context.Cause(bound), xerrors.ErrInactiveTransactionClosed) {
			err = xerrors.WithStackTrace(xerrors.ErrInactiveTransactionClosed)
		}
	}()

	if id == nil {
		id, err = s.Begin(bound, kind)
		if err != nil {
			return xerrors.WithStackTrace(err)
		}
	}

	ctx, cancel := context.WithCancelCause(bound)
	defer cancel(context.Canceled)

	var (
		mu          sync.Mutex
		intercepted error
	)
	opts := []tx.Option{
		tx.WithRequestIDs(r.requests),
		tx.WithStreamTrace(r.streamTrace),
	}
	if !async {
		opts = append(opts, tx.WithInterceptor(func(err error) {
			if !retryable(err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if intercepted == nil {
				intercepted = err
				cancel(err)
			}
		}))
	}
	t := tx.New(s, kind, id, opts...)

	failed := func() error {
		mu.Lock()
		defer mu.Unlock()

		return intercepted
	}

	err = r.call(ctx, t, work)
	if err == nil {
		err = failed()
	}
	if err == nil && !t.Done() {
		err = t.Commit(ctx)
	}
	if e := failed(); e != nil {
		err = e
	}
	if err == nil {
		return nil
	}

	t.Abort()
	if !t.Done() && s.IsAlive() {
		_ = t.Rollback(context.WithoutCancel(ctx))
	}

	return xerrors.WithStackTrace(err)
}

func (r *Runner) call(ctx context.Context, t *tx.Transaction, work Work) (err error) {
	if r.panicCallback != nil {
		defer func() {
			if e := recover(); e != nil {
				r.panicCallback(e)
				err = xerrors.WithStackTrace(fmt.Errorf("panic recovered: %v", e))
			}
		}()
	}

	return work(ctx, t)
}
