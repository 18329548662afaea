package tx

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/spanlite/spanlite-go-sdk/internal/requestid"
	"github.com/spanlite/spanlite-go-sdk/internal/session"
	"github.com/spanlite/spanlite-go-sdk/internal/transport"
	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/internal/xtest"
)

type interceptor struct {
	mu   sync.Mutex
	errs []error
}

func (i *interceptor) intercept(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.errs = append(i.errs, err)
}

func (i *interceptor) observed() []error {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]error(nil), i.errs...)
}

func newTestTx(tr *xtest.Transport, kind transport.Kind, opts ...Option) (*Transaction, *session.Session) {
	s := session.New(&transport.Session{ID: "session-1"}, tr)
	generator := requestid.New(
		requestid.WithProcessID("00ff"),
		requestid.WithClients(requestid.NewCounter()),
	)

	return New(s, kind, []byte("tx-1"), append([]Option{WithRequestIDs(generator)}, opts...)...), s
}

func TestExecute(t *testing.T) {
	ctx := xtest.Context(t)
	t.Run("Success", func(t *testing.T) {
		tr := xtest.NewTransport()
		var requests []*transport.Request
		tr.OnRequest = func(_ context.Context, r *transport.Request) (*transport.Response, error) {
			requests = append(requests, r)

			return &transport.Response{RowCount: 1}, nil
		}
		i := &interceptor{}
		tx, _ := newTestTx(tr, transport.KindReadWrite, WithInterceptor(i.intercept))

		params := map[string]*structpb.Value{"id": structpb.NewNumberValue(1)}
		response, err := tx.Execute(ctx, "UPDATE t SET a = 1 WHERE id = @id", params)
		require.NoError(t, err)
		require.EqualValues(t, 1, response.RowCount)
		_, err = tx.Execute(ctx, "UPDATE t SET a = 2 WHERE id = @id", params)
		require.NoError(t, err)

		require.Len(t, requests, 2)
		require.Equal(t, "session-1", requests[0].SessionID)
		require.Equal(t, []byte("tx-1"), requests[0].TransactionID)
		require.Equal(t, transport.MethodExecuteSQL, requests[0].Method)
		require.EqualValues(t, 1, requests[0].Seqno)
		require.EqualValues(t, 2, requests[1].Seqno)
		require.Equal(t, []string{"1.00ff.1.1.1.1", "1.00ff.1.1.2.1"}, tr.RequestIDs())
		require.Empty(t, i.observed())
	})
	t.Run("Error", func(t *testing.T) {
		tr := xtest.NewTransport()
		tr.OnRequest = func(context.Context, *transport.Request) (*transport.Response, error) {
			return nil, xerrors.FromGRPCError(grpcStatus.Error(grpcCodes.NotFound, "Session not found"))
		}
		i := &interceptor{}
		tx, s := newTestTx(tr, transport.KindReadWrite, WithInterceptor(i.intercept))

		_, err := tx.Execute(ctx, "SELECT 1", nil)
		require.True(t, xerrors.IsTransportError(err, grpcCodes.NotFound))
		id, has := xerrors.RequestID(err)
		require.True(t, has)
		require.Equal(t, "1.00ff.1.1.1.1", id)
		require.Len(t, i.observed(), 1)
		require.False(t, s.IsAlive())
	})
	t.Run("AfterCommit", func(t *testing.T) {
		tr := xtest.NewTransport()
		tx, _ := newTestTx(tr, transport.KindReadWrite)
		require.NoError(t, tx.Commit(ctx))
		_, err := tx.Execute(ctx, "SELECT 1", nil)
		require.ErrorIs(t, err, xerrors.ErrTransactionClosed)
		require.Equal(t, 0, tr.Calls("Request"))
	})
}

func TestQuery(t *testing.T) {
	ctx := xtest.Context(t)
	t.Run("Rows", func(t *testing.T) {
		tr := xtest.NewTransport()
		var requests []*transport.Request
		tr.OnRequestStream = func(_ context.Context, r *transport.Request, _ []byte) (transport.Stream, error) {
			requests = append(requests, r)

			return xtest.NewStream([]*transport.Chunk{{
				Fields:      []string{"a"},
				Values:      []*structpb.Value{structpb.NewStringValue("x"), structpb.NewStringValue("y")},
				ResumeToken: []byte("t1"),
			}}, nil), nil
		}
		tx, _ := newTestTx(tr, transport.KindReadOnly)

		rows := tx.Query(ctx, "SELECT a FROM t", nil)
		var values []string
		for row, err := range rows.Rows(ctx) {
			require.NoError(t, err)
			v, ok := row.Value("a")
			require.True(t, ok)
			values = append(values, v.GetStringValue())
		}
		require.Equal(t, []string{"x", "y"}, values)
		require.Equal(t, transport.MethodExecuteStreamingSQL, requests[0].Method)
		require.Equal(t, []string{"1.00ff.1.1.1.1"}, tr.RequestIDs())
	})
	t.Run("ErrorIntercepted", func(t *testing.T) {
		tr := xtest.NewTransport()
		aborted := xerrors.FromGRPCError(grpcStatus.Error(grpcCodes.Aborted, "conflict"))
		tr.OnRequestStream = func(context.Context, *transport.Request, []byte) (transport.Stream, error) {
			return xtest.NewStream(nil, aborted), nil
		}
		i := &interceptor{}
		tx, _ := newTestTx(tr, transport.KindReadWrite, WithInterceptor(i.intercept))

		_, err := tx.Query(ctx, "SELECT a FROM t", nil).Next(ctx)
		require.True(t, xerrors.IsRetryable(err))
		require.Len(t, i.observed(), 1)
		require.True(t, xerrors.IsRetryable(i.observed()[0]))
	})
	t.Run("Abort", func(t *testing.T) {
		tr := xtest.NewTransport()
		underlying := xtest.NewStream([]*transport.Chunk{
			{
				Fields:      []string{"a"},
				Values:      []*structpb.Value{structpb.NewStringValue("x")},
				ResumeToken: []byte("t1"),
			},
			{
				Values:      []*structpb.Value{structpb.NewStringValue("y")},
				ResumeToken: []byte("t2"),
			},
		}, nil)
		tr.OnRequestStream = func(context.Context, *transport.Request, []byte) (transport.Stream, error) {
			return underlying, nil
		}
		tx, _ := newTestTx(tr, transport.KindReadOnly)

		rows := tx.Query(ctx, "SELECT a FROM t", nil)
		row, err := rows.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, "x", row.Values()[0].GetStringValue())

		tx.Abort()
		require.True(t, underlying.Closed())
		_, err = rows.Next(ctx)
		require.ErrorIs(t, err, xerrors.ErrStreamAborted)
	})
}

func TestCommit(t *testing.T) {
	ctx := xtest.Context(t)
	t.Run("ReadWrite", func(t *testing.T) {
		tr := xtest.NewTransport()
		tx, _ := newTestTx(tr, transport.KindReadWrite)
		require.NoError(t, tx.Commit(ctx))
		require.True(t, tx.Done())
		require.Equal(t, 1, tr.Calls("Commit"))
		require.ErrorIs(t, tx.Commit(ctx), xerrors.ErrTransactionClosed)
		require.ErrorIs(t, tx.Rollback(ctx), xerrors.ErrTransactionClosed)
	})
	t.Run("ReadOnly", func(t *testing.T) {
		tr := xtest.NewTransport()
		tx, _ := newTestTx(tr, transport.KindReadOnly)
		require.NoError(t, tx.Commit(ctx))
		require.Equal(t, 0, tr.Calls("Commit"))
	})
	t.Run("Aborted", func(t *testing.T) {
		tr := xtest.NewTransport()
		tr.OnCommit = func(context.Context, string, []byte) error {
			return xerrors.FromGRPCError(grpcStatus.Error(grpcCodes.Aborted, "conflict"))
		}
		i := &interceptor{}
		tx, _ := newTestTx(tr, transport.KindReadWrite, WithInterceptor(i.intercept))
		err := tx.Commit(ctx)
		require.True(t, xerrors.IsRetryable(err))
		require.Len(t, i.observed(), 1)
	})
	t.Run("Interrupted", func(t *testing.T) {
		tr := xtest.NewTransport()
		tx, s := newTestTx(tr, transport.KindReadWrite)
		s.Lease()
		require.True(t, s.Interrupt(xerrors.ErrInactiveTransactionClosed))
		require.ErrorIs(t, tx.Commit(ctx), xerrors.ErrInactiveTransactionClosed)
		require.Equal(t, 0, tr.Calls("Commit"))
	})
	t.Run("Rollback", func(t *testing.T) {
		tr := xtest.NewTransport()
		var rolledBack []byte
		tr.OnRollback = func(_ context.Context, _ string, id []byte) error {
			rolledBack = id

			return nil
		}
		tx, _ := newTestTx(tr, transport.KindReadWrite)
		require.NoError(t, tx.Rollback(ctx))
		require.Equal(t, []byte("tx-1"), rolledBack)
		require.ErrorIs(t, tx.Commit(ctx), xerrors.ErrTransactionClosed)
	})
}
