package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/spanlite/spanlite-go-sdk/config"
	"github.com/spanlite/spanlite-go-sdk/internal/pool"
	"github.com/spanlite/spanlite-go-sdk/internal/session"
	"github.com/spanlite/spanlite-go-sdk/internal/transport"
	"github.com/spanlite/spanlite-go-sdk/internal/tx"
	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/internal/xtest"
	"github.com/spanlite/spanlite-go-sdk/trace"
)

type backoffFunc func(err error, i int) time.Duration

func (f backoffFunc) Delay(err error, i int) time.Duration {
	return f(err, i)
}

var noDelay = backoffFunc(func(error, int) time.Duration {
	return 0
})

// provider hands out a new session of the transport on every Acquire.
type provider struct {
	transport *xtest.Transport
	err       error

	mu       sync.Mutex
	acquired []*session.Session
	released []*session.Session
}

func (p *provider) Acquire(ctx context.Context, _ transport.Kind) (*session.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	sessions, err := p.transport.CreateSessions(ctx, 1)
	if err != nil {
		return nil, err
	}
	s := session.New(sessions[0], p.transport)
	s.Lease()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquired = append(p.acquired, s)

	return s, nil
}

func (p *provider) Release(_ context.Context, s *session.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, s)

	return nil
}

func (p *provider) Close(context.Context) error {
	return nil
}

func (p *provider) last() *session.Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.acquired[len(p.acquired)-1]
}

func aborted() error {
	return xerrors.FromGRPCError(grpcStatus.Error(grpcCodes.Aborted, "transaction was aborted"))
}

func newTestRunner(p pool.Provider, opts ...option) *Runner {
	return New(p, config.DefaultRunner(), append([]option{
		WithClock(clockwork.NewFakeClock()),
		WithBackoff(noDelay),
	}, opts...)...)
}

func TestRun(t *testing.T) {
	ctx := xtest.Context(t)
	t.Run("Success", func(t *testing.T) {
		tr := xtest.NewTransport()
		p := &provider{transport: tr}
		r := newTestRunner(p)

		err := r.Run(ctx, func(ctx context.Context, t *tx.Transaction) error {
			_, err := t.Execute(ctx, "UPDATE t SET a = 1", nil)

			return err
		})
		require.NoError(t, err)
		require.Equal(t, 1, tr.Calls("BeginTransaction"))
		require.Equal(t, 1, tr.Calls("Commit"))
		require.Equal(t, 0, tr.Calls("Rollback"))
		require.Len(t, p.released, 1)
	})
	t.Run("RetriesWithNewTransaction", func(t *testing.T) {
		tr := xtest.NewTransport()
		p := &provider{transport: tr}
		r := newTestRunner(p)

		var ids []string
		err := r.Run(ctx, func(ctx context.Context, t *tx.Transaction) error {
			ids = append(ids, string(t.ID()))
			if len(ids) <= 3 {
				return aborted()
			}

			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []string{"tx-1", "tx-2", "tx-3", "tx-4"}, ids)
		require.Equal(t, ids, tr.Transactions())
		require.Equal(t, 3, tr.Calls("Rollback"))
		require.Equal(t, 1, tr.Calls("Commit"))
		require.Len(t, p.released, 4)
	})
	t.Run("NonRetryable", func(t *testing.T) {
		tr := xtest.NewTransport()
		p := &provider{transport: tr}
		r := newTestRunner(p)

		boom := errors.New("boom")
		calls := 0
		err := r.Run(ctx, func(context.Context, *tx.Transaction) error {
			calls++

			return boom
		})
		require.ErrorIs(t, err, boom)
		require.Equal(t, 1, calls)
		require.Equal(t, 1, tr.Calls("Rollback"))
		require.Equal(t, 0, tr.Calls("Commit"))
	})
	t.Run("BeginErrorHasRequestID", func(t *testing.T) {
		tr := xtest.NewTransport()
		tr.OnBegin = func(context.Context, string, transport.Kind) ([]byte, error) {
			return nil, xerrors.FromGRPCError(grpcStatus.Error(grpcCodes.InvalidArgument, "bad read timestamp"))
		}
		p := &provider{transport: tr}
		r := newTestRunner(p)

		calls := 0
		err := r.Run(ctx, func(context.Context, *tx.Transaction) error {
			calls++

			return nil
		})
		require.True(t, xerrors.IsTransportError(err, grpcCodes.InvalidArgument))
		require.Zero(t, calls)
		id, has := xerrors.RequestID(err)
		require.True(t, has)
		require.Equal(t, []string{id}, tr.MethodRequestIDs("BeginTransaction"))
	})
	t.Run("InterceptsRequest", func(t *testing.T) {
		tr := xtest.NewTransport()
		requests := 0
		tr.OnRequest = func(context.Context, *transport.Request) (*transport.Response, error) {
			requests++
			if requests == 1 {
				return nil, aborted()
			}

			return &transport.Response{}, nil
		}
		p := &provider{transport: tr}
		r := newTestRunner(p)

		calls := 0
		err := r.Run(ctx, func(ctx context.Context, t *tx.Transaction) error {
			calls++
			_, _ = t.Execute(ctx, "UPDATE t SET a = 1", nil)

			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, calls)
		require.Equal(t, 1, tr.Calls("Commit"))
		require.Equal(t, 1, tr.Calls("Rollback"))
	})
	t.Run("InterceptsStream", func(t *testing.T) {
		tr := xtest.NewTransport()
		streams := 0
		tr.OnRequestStream = func(context.Context, *transport.Request, []byte) (transport.Stream, error) {
			streams++
			if streams == 1 {
				return xtest.NewStream(nil, aborted()), nil
			}

			return xtest.NewStream([]*transport.Chunk{{
				Fields:      []string{"a"},
				Values:      []*structpb.Value{structpb.NewStringValue("x")},
				ResumeToken: []byte("t1"),
			}}, nil), nil
		}
		p := &provider{transport: tr}
		r := newTestRunner(p)

		var values []string
		err := r.Run(ctx, func(ctx context.Context, t *tx.Transaction) error {
			values = values[:0]
			for row, err := range t.Query(ctx, "SELECT a FROM t", nil).Rows(ctx) {
				if err != nil {
					break
				}
				values = append(values, row.Values()[0].GetStringValue())
			}

			return nil
		}, WithKind(transport.KindReadOnly))
		require.NoError(t, err)
		require.Equal(t, 2, streams)
		require.Equal(t, []string{"x"}, values)
	})
	t.Run("AsyncDoesNotIntercept", func(t *testing.T) {
		tr := xtest.NewTransport()
		tr.OnRequest = func(context.Context, *transport.Request) (*transport.Response, error) {
			return nil, aborted()
		}
		p := &provider{transport: tr}
		r := newTestRunner(p)

		calls := 0
		err := r.RunAsync(ctx, func(ctx context.Context, t *tx.Transaction) error {
			calls++
			_, _ = t.Execute(ctx, "UPDATE t SET a = 1", nil)

			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, calls)
		require.Equal(t, 1, tr.Calls("Commit"))
	})
	t.Run("Bound", func(t *testing.T) {
		tr := xtest.NewTransport()
		p := &provider{transport: tr}
		r := newTestRunner(p)
		s := session.New(&transport.Session{ID: "bound-session"}, tr)

		var (
			ids      []string
			sessions []string
		)
		err := r.Run(ctx, func(ctx context.Context, t *tx.Transaction) error {
			ids = append(ids, string(t.ID()))
			sessions = append(sessions, t.SessionID())
			if len(ids) == 1 {
				return aborted()
			}

			return nil
		}, WithBound(s, []byte("bound-tx")))
		require.NoError(t, err)
		require.Equal(t, []string{"bound-tx", "tx-1"}, ids)
		require.Equal(t, []string{"bound-session", "session-1"}, sessions)
		require.Len(t, p.acquired, 1)
		require.Len(t, p.released, 1)
		require.Equal(t, 1, tr.Calls("BeginTransaction"))
	})
	t.Run("SessionNotFound", func(t *testing.T) {
		tr := xtest.NewTransport()
		tr.OnRequest = func(context.Context, *transport.Request) (*transport.Response, error) {
			return nil, xerrors.FromGRPCError(grpcStatus.Error(grpcCodes.NotFound, "Session not found"))
		}
		p := &provider{transport: tr}
		r := newTestRunner(p)

		calls := 0
		err := r.Run(ctx, func(ctx context.Context, t *tx.Transaction) error {
			calls++
			if calls == 1 {
				_, err := t.Execute(ctx, "SELECT 1", nil)

				return err
			}

			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, calls)
		require.Len(t, p.released, 2)
		require.False(t, p.released[0].IsAlive())
		require.True(t, p.released[1].IsAlive())
		require.Equal(t, 0, tr.Calls("Rollback"))
	})
	t.Run("AcquireError", func(t *testing.T) {
		tr := xtest.NewTransport()
		p := &provider{transport: tr, err: xerrors.WithStackTrace(xerrors.ErrAcquireTimeout)}
		r := newTestRunner(p)

		err := r.Run(ctx, func(context.Context, *tx.Transaction) error {
			t.Fatal("must not be called")

			return nil
		})
		require.ErrorIs(t, err, xerrors.ErrAcquireTimeout)
		require.False(t, xerrors.IsDeadlineExceeded(err))
	})
	t.Run("Interrupted", func(t *testing.T) {
		tr := xtest.NewTransport()
		p := &provider{transport: tr}
		r := newTestRunner(p)

		calls := 0
		err := r.Run(ctx, func(ctx context.Context, _ *tx.Transaction) error {
			calls++
			require.True(t, p.last().Interrupt(xerrors.ErrInactiveTransactionClosed))
			<-ctx.Done()

			return ctx.Err()
		})
		require.ErrorIs(t, err, xerrors.ErrInactiveTransactionClosed)
		require.Equal(t, 1, calls)
		require.Equal(t, 0, tr.Calls("Commit"))
	})
	t.Run("PanicCallback", func(t *testing.T) {
		tr := xtest.NewTransport()
		p := &provider{transport: tr}
		var recovered interface{}
		r := newTestRunner(p, WithPanicCallback(func(e interface{}) {
			recovered = e
		}))

		err := r.Run(ctx, func(context.Context, *tx.Transaction) error {
			panic("oops")
		})
		require.Error(t, err)
		require.Equal(t, "oops", recovered)
		require.Len(t, p.released, 1)
	})
	t.Run("WithResult", func(t *testing.T) {
		tr := xtest.NewTransport()
		tr.OnRequest = func(context.Context, *transport.Request) (*transport.Response, error) {
			return &transport.Response{RowCount: 3}, nil
		}
		r := newTestRunner(&provider{transport: tr})

		n, err := RunWithResult(ctx, r, func(ctx context.Context, t *tx.Transaction) (int64, error) {
			response, err := t.Execute(ctx, "DELETE FROM t WHERE true", nil)
			if err != nil {
				return 0, err
			}

			return response.RowCount, nil
		})
		require.NoError(t, err)
		require.EqualValues(t, 3, n)
	})
}

func TestRunDeadline(t *testing.T) {
	ctx := xtest.Context(t)
	t.Run("NextAttemptAfterDeadline", func(t *testing.T) {
		tr := xtest.NewTransport()
		clock := clockwork.NewFakeClock()
		r := New(&provider{transport: tr}, config.Runner{Timeout: 10 * time.Second},
			WithClock(clock),
			WithBackoff(backoffFunc(func(error, int) time.Duration {
				return 4 * time.Second
			})),
		)

		done := make(chan error, 1)
		go func() {
			done <- r.Run(ctx, func(context.Context, *tx.Transaction) error {
				return aborted()
			})
		}()
		for range 2 {
			// deadline timer and backoff timer
			require.NoError(t, clock.BlockUntilContext(ctx, 2))
			clock.Advance(4 * time.Second)
		}

		err := <-done
		require.True(t, xerrors.IsDeadlineExceeded(err))
		require.ErrorIs(t, err, context.DeadlineExceeded)
		var deadline *xerrors.DeadlineExceededError
		require.ErrorAs(t, err, &deadline)
		require.Len(t, deadline.Attempts, 3)
		require.Equal(t, 10*time.Second, deadline.Timeout)
		for _, err := range deadline.Attempts {
			require.True(t, xerrors.IsRetryable(err))
		}
		require.Equal(t, 3, tr.Calls("BeginTransaction"))
	})
	t.Run("DeadlineDuringAttempt", func(t *testing.T) {
		tr := xtest.NewTransport()
		clock := clockwork.NewFakeClock()
		r := New(&provider{transport: tr}, config.Runner{Timeout: 10 * time.Second},
			WithClock(clock),
			WithBackoff(noDelay),
		)

		done := make(chan error, 1)
		go func() {
			done <- r.Run(ctx, func(ctx context.Context, _ *tx.Transaction) error {
				<-ctx.Done()

				return ctx.Err()
			})
		}()
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(10 * time.Second)

		err := <-done
		require.True(t, xerrors.IsDeadlineExceeded(err))
		require.Equal(t, 0, tr.Calls("Commit"))
	})
	t.Run("RetryGuidance", func(t *testing.T) {
		tr := xtest.NewTransport()
		clock := clockwork.NewFakeClock()
		var delays []time.Duration
		r := New(&provider{transport: tr}, config.DefaultRunner(),
			WithClock(clock),
			WithTrace(&trace.Runner{
				OnAttempt: func(trace.RunnerAttemptStartInfo) func(trace.RunnerAttemptDoneInfo) {
					return func(info trace.RunnerAttemptDoneInfo) {
						delays = append(delays, info.Delay)
					}
				},
			}),
		)

		done := make(chan error, 1)
		calls := 0
		go func() {
			done <- r.Run(ctx, func(context.Context, *tx.Transaction) error {
				calls++
				if calls == 1 {
					return xerrors.Transport(
						xerrors.WithCode(grpcCodes.Aborted),
						xerrors.WithRetryDelay(10*time.Millisecond),
					)
				}

				return nil
			})
		}()
		require.NoError(t, clock.BlockUntilContext(ctx, 2))
		clock.Advance(10 * time.Millisecond)

		require.NoError(t, <-done)
		require.Equal(t, 2, calls)
		require.Equal(t, []time.Duration{10 * time.Millisecond, 0}, delays)
	})
}

func TestRunWithPool(t *testing.T) {
	defer xtest.CheckGoroutinesLeak(t)()

	ctx := xtest.Context(t)
	tr := xtest.NewTransport()
	cfg := config.Default()
	cfg.Min, cfg.Max, cfg.IncStep = 1, 2, 1
	cfg.WriteSessionFraction = 0
	p, err := pool.New(ctx, tr, cfg)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, p.Close(ctx))
	}()

	var runs []trace.RunnerRunDoneInfo
	r := New(p, config.DefaultRunner(),
		WithBackoff(noDelay),
		WithTrace(&trace.Runner{
			OnRun: func(trace.RunnerRunStartInfo) func(trace.RunnerRunDoneInfo) {
				return func(info trace.RunnerRunDoneInfo) {
					runs = append(runs, info)
				}
			},
		}),
	)

	xtest.TestManyTimes(t, func(t testing.TB) {
		calls := 0
		err := r.Run(ctx, func(ctx context.Context, t *tx.Transaction) error {
			calls++
			if calls < 3 {
				return aborted()
			}
			_, err := t.Execute(ctx, "UPDATE t SET a = a + 1", nil)

			return err
		}, WithLabel("increment"))
		require.NoError(t, err)
		require.Equal(t, 3, calls)
		require.Zero(t, p.Stats().InUse)
	})
	require.NotEmpty(t, runs)
	for _, run := range runs {
		require.Equal(t, 3, run.Attempts)
		require.NoError(t, run.Error)
	}
}

func TestRunWithPreparedTransactions(t *testing.T) {
	defer xtest.CheckGoroutinesLeak(t)()

	ctx := xtest.Context(t)
	tr := xtest.NewTransport()
	var (
		mu         sync.Mutex
		rolledBack []string
	)
	tr.OnRollback = func(_ context.Context, _ string, transactionID []byte) error {
		mu.Lock()
		defer mu.Unlock()
		rolledBack = append(rolledBack, string(transactionID))

		return nil
	}
	cfg := config.Default()
	cfg.Min, cfg.Max, cfg.IncStep = 1, 1, 1
	cfg.WriteSessionFraction = 1
	p, err := pool.New(ctx, tr, cfg)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, p.Close(ctx))
	}()
	xtest.Spin(t, func() bool {
		return p.Stats().IdleWrites == 1
	})

	r := New(p, config.DefaultRunner(), WithBackoff(noDelay))
	var used []string
	err = r.Run(ctx, func(ctx context.Context, t *tx.Transaction) error {
		used = append(used, string(t.ID()))
		if len(used) == 1 {
			return aborted()
		}

		return nil
	})
	require.NoError(t, err)
	err = r.Run(ctx, func(ctx context.Context, t *tx.Transaction) error {
		used = append(used, string(t.ID()))

		return nil
	})
	require.NoError(t, err)

	// tx-2 is prepared on release after the aborted attempt and superseded
	// by the retry, so the second run gets the one prepared after the first.
	require.Equal(t, []string{"tx-1", "tx-3", "tx-4"}, used)
	require.Equal(t, []string{"tx-1", "tx-2", "tx-3", "tx-4"}, tr.Transactions()[:4])
	mu.Lock()
	require.Equal(t, []string{"tx-1", "tx-2"}, rolledBack)
	mu.Unlock()
}
