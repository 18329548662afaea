package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/spanlite/spanlite-go-sdk/internal/meta"
	"github.com/spanlite/spanlite-go-sdk/internal/mock"
	"github.com/spanlite/spanlite-go-sdk/internal/requestid"
	"github.com/spanlite/spanlite-go-sdk/internal/transport"
	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/internal/xtest"
	"github.com/spanlite/spanlite-go-sdk/trace"
)

var errUnavailable = xerrors.Transport(
	xerrors.WithCode(grpcCodes.Unavailable),
	xerrors.WithMessage("connection reset"),
)

func chunk(token string, values ...string) *transport.Chunk {
	c := &transport.Chunk{}
	for _, v := range values {
		c.Values = append(c.Values, structpb.NewStringValue(v))
	}
	if token != "" {
		c.ResumeToken = []byte(token)
	}

	return c
}

func withFields(c *transport.Chunk, fields ...string) *transport.Chunk {
	c.Fields = fields

	return c
}

// server replays a scripted stream for every request keyed by resume token.
type server struct {
	mu       sync.Mutex
	scripts  map[string]*xtest.Stream
	tokens   []string
	ids      []string
	requests int
}

func (s *server) request(ctx context.Context, resumeToken []byte) (transport.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests++
	s.tokens = append(s.tokens, string(resumeToken))
	s.ids = append(s.ids, meta.RequestID(ctx))
	script, has := s.scripts[string(resumeToken)]
	if !has {
		return nil, errors.New("unexpected resume token " + string(resumeToken))
	}

	return script, nil
}

func readAll(ctx context.Context, s *Stream) ([]string, error) {
	var values []string
	for {
		row, err := s.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return values, nil
			}

			return values, err
		}
		values = append(values, row.Values()[0].GetStringValue())
	}
}

func TestStreamResume(t *testing.T) {
	ctx := xtest.Context(t)
	t.Run("LossAndDuplicationFree", func(t *testing.T) {
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{
				withFields(chunk("", "r1"), "a"),
				chunk("t1", "r2"),
				chunk("", "r3"),
				chunk("", "r4"),
			}, errUnavailable),
			"t1": xtest.NewStream([]*transport.Chunk{
				chunk("", "r3"),
				chunk("t2", "r4"),
				chunk("", "r5"),
			}, nil),
		}}
		var restarts []trace.StreamRestartInfo
		s := New(ctx, srv.request, WithTrace(&trace.Stream{
			OnRestart: func(info trace.StreamRestartInfo) {
				restarts = append(restarts, info)
			},
		}))
		defer s.Close()

		values, err := readAll(ctx, s)
		require.NoError(t, err)
		require.Equal(t, []string{"r1", "r2", "r3", "r4", "r5"}, values)
		require.Equal(t, []string{"", "t1"}, srv.tokens)
		require.Len(t, restarts, 1)
		require.Equal(t, []byte("t1"), restarts[0].ResumeToken)
		require.Equal(t, []string{"a"}, s.Fields())
	})
	t.Run("RowsWithheldUntilResumeToken", func(t *testing.T) {
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{
				withFields(chunk("", "r1"), "a"),
				chunk("", "r2"),
				chunk("t1", "r3"),
			}, nil),
		}}
		var flushes []trace.StreamFlushInfo
		s := New(ctx, srv.request, WithTrace(&trace.Stream{
			OnFlush: func(info trace.StreamFlushInfo) {
				flushes = append(flushes, info)
			},
		}))
		row, err := s.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, "r1", row.Values()[0].GetStringValue())
		require.Equal(t, []trace.StreamFlushInfo{{Rows: 3}}, flushes)
	})
	t.Run("ErrorWithoutResumeTokenPropagates", func(t *testing.T) {
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{
				withFields(chunk("", "r1"), "a"),
			}, errUnavailable),
		}}
		var observed error
		s := New(ctx, srv.request, WithOnError(func(err error) {
			observed = err
		}))
		values, err := readAll(ctx, s)
		require.ErrorIs(t, err, errUnavailable)
		require.ErrorIs(t, observed, errUnavailable)
		require.Empty(t, values)
		require.Equal(t, 1, srv.requests)

		_, err = s.Next(ctx)
		require.ErrorIs(t, err, errUnavailable)
	})
	t.Run("EmittedRowsBeforeError", func(t *testing.T) {
		aborted := xerrors.Transport(xerrors.WithCode(grpcCodes.Aborted))
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{
				withFields(chunk("t1", "r1"), "a"),
				chunk("", "r2"),
			}, aborted),
		}}
		s := New(ctx, srv.request)
		values, err := readAll(ctx, s)
		require.ErrorIs(t, err, aborted)
		require.Equal(t, []string{"r1"}, values)
		require.Equal(t, 1, srv.requests)
	})
	t.Run("MaxResumes", func(t *testing.T) {
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{
				withFields(chunk("t1", "r1"), "a"),
			}, errUnavailable),
		}}
		s := New(ctx, func(ctx context.Context, resumeToken []byte) (transport.Stream, error) {
			if len(resumeToken) > 0 {
				return xtest.NewStream(nil, errUnavailable), nil
			}

			return srv.request(ctx, resumeToken)
		}, WithMaxResumes(3))
		values, err := readAll(ctx, s)
		require.ErrorIs(t, err, errUnavailable)
		require.Equal(t, []string{"r1"}, values)
	})
	t.Run("RequestIDAttempts", func(t *testing.T) {
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{
				withFields(chunk("t1", "r1"), "a"),
			}, errUnavailable),
			"t1": xtest.NewStream(nil, nil),
		}}
		id := requestid.New(requestid.WithProcessID("0a"), requestid.WithClients(requestid.NewCounter())).Next()
		s := New(ctx, srv.request, WithRequestID(id))
		_, err := readAll(ctx, s)
		require.NoError(t, err)
		require.Equal(t, []string{"1.0a.1.1.1.1", "1.0a.1.1.1.2"}, srv.ids)
	})
}

func TestStreamChunkedValues(t *testing.T) {
	ctx := xtest.Context(t)
	t.Run("Merged", func(t *testing.T) {
		first := withFields(chunk("", "r1", "hel"), "a", "b")
		first.ChunkedValue = true
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{
				first,
				chunk("t1", "lo", "r2", "x"),
			}, nil),
		}}
		s := New(ctx, srv.request)
		row, err := s.Next(ctx)
		require.NoError(t, err)
		v, _ := row.Value("b")
		require.Equal(t, "hello", v.GetStringValue())
		row, err = s.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, "r2", row.Values()[0].GetStringValue())
		require.Equal(t, "x", row.Values()[1].GetStringValue())
		_, err = s.Next(ctx)
		require.ErrorIs(t, err, io.EOF)
	})
	t.Run("ResumeInsideChunkedValue", func(t *testing.T) {
		first := withFields(chunk("t1", "hel"), "a")
		first.ChunkedValue = true
		second := chunk("", "lo wor")
		second.ChunkedValue = true
		srv := &server{scripts: map[string]*xtest.Stream{
			"":   xtest.NewStream([]*transport.Chunk{first, second}, errUnavailable),
			"t1": xtest.NewStream([]*transport.Chunk{chunk("t2", "lo world")}, nil),
		}}
		values, err := readAll(ctx, New(ctx, srv.request))
		require.NoError(t, err)
		require.Equal(t, []string{"hello world"}, values)
	})
	t.Run("EndInsideChunkedValue", func(t *testing.T) {
		first := withFields(chunk("t1", "hel"), "a")
		first.ChunkedValue = true
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{first}, nil),
		}}
		_, err := readAll(ctx, New(ctx, srv.request))
		require.ErrorIs(t, err, xerrors.ErrIncompleteValue)
	})
	t.Run("ValuesBeforeMetadata", func(t *testing.T) {
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{chunk("t1", "r1")}, nil),
		}}
		_, err := readAll(ctx, New(ctx, srv.request))
		require.ErrorIs(t, err, errMissingMetadata)
	})
}

func TestStreamBackpressure(t *testing.T) {
	ctx := xtest.Context(t)
	t.Run("ForcedFlushDisablesResume", func(t *testing.T) {
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{
				withFields(chunk("t1", "r1"), "a"),
				chunk("", "r2"),
				chunk("", "r3"),
			}, errUnavailable),
		}}
		var flushes []trace.StreamFlushInfo
		s := New(ctx, srv.request, WithMaxBuffered(2), WithTrace(&trace.Stream{
			OnFlush: func(info trace.StreamFlushInfo) {
				flushes = append(flushes, info)
			},
		}))
		values, err := readAll(ctx, s)
		require.ErrorIs(t, err, errUnavailable)
		require.Equal(t, []string{"r1", "r2", "r3"}, values)
		require.Equal(t, 1, srv.requests)
		require.Equal(t, []trace.StreamFlushInfo{{Rows: 1}, {Rows: 2, Forced: true}}, flushes)
	})
	t.Run("ResumeTokenReenablesResume", func(t *testing.T) {
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{
				withFields(chunk("", "r1"), "a"),
				chunk("", "r2"),
				chunk("t1", "r3"),
			}, errUnavailable),
			"t1": xtest.NewStream([]*transport.Chunk{chunk("t2", "r4")}, nil),
		}}
		values, err := readAll(ctx, New(ctx, srv.request, WithMaxBuffered(2)))
		require.NoError(t, err)
		require.Equal(t, []string{"r1", "r2", "r3", "r4"}, values)
	})
	t.Run("LazyReads", func(t *testing.T) {
		underlying := xtest.NewStream([]*transport.Chunk{
			withFields(chunk("t1", "r1"), "a"),
			chunk("t2", "r2"),
		}, nil)
		s := New(ctx, func(context.Context, []byte) (transport.Stream, error) {
			return underlying, nil
		})
		_, err := s.Next(ctx)
		require.NoError(t, err)
		next, err := underlying.Recv()
		require.NoError(t, err)
		require.Equal(t, []byte("t2"), next.ResumeToken)
	})
}

func TestStreamAbort(t *testing.T) {
	ctx := xtest.Context(t)
	t.Run("BeforeFirstRequest", func(t *testing.T) {
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{withFields(chunk("t1", "r1"), "a")}, nil),
		}}
		s := New(ctx, srv.request)
		s.Abort()
		values, err := readAll(ctx, s)
		require.NoError(t, err)
		require.Equal(t, []string{"r1"}, values)
	})
	t.Run("DestroysUnderlyingStream", func(t *testing.T) {
		underlying := xtest.NewStream([]*transport.Chunk{
			withFields(chunk("t1", "r1"), "a"),
			chunk("t2", "r2"),
		}, nil)
		s := New(ctx, func(context.Context, []byte) (transport.Stream, error) {
			return underlying, nil
		})
		_, err := s.Next(ctx)
		require.NoError(t, err)
		s.Abort()
		require.True(t, underlying.Closed())
		_, err = s.Next(ctx)
		require.ErrorIs(t, err, xerrors.ErrStreamAborted)
	})
	t.Run("Rows", func(t *testing.T) {
		srv := &server{scripts: map[string]*xtest.Stream{
			"": xtest.NewStream([]*transport.Chunk{
				withFields(chunk("t1", "r1", "r2", "r3"), "a"),
			}, nil),
		}}
		s := New(ctx, srv.request)
		var values []string
		for row, err := range s.Rows(ctx) {
			require.NoError(t, err)
			values = append(values, row.Values()[0].GetStringValue())
			if len(values) == 2 {
				s.Abort()

				break
			}
		}
		require.Equal(t, []string{"r1", "r2"}, values)
	})
}

func TestStreamUnderlying(t *testing.T) {
	ctx := xtest.Context(t)
	t.Run("ClosedAtEnd", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		underlying := mock.NewMockStream(ctrl)
		gomock.InOrder(
			underlying.EXPECT().Recv().Return(withFields(chunk("t1", "r1", "r2"), "a"), nil),
			underlying.EXPECT().Recv().Return(nil, io.EOF),
		)
		underlying.EXPECT().Close().MinTimes(1)

		s := New(ctx, func(context.Context, []byte) (transport.Stream, error) {
			return underlying, nil
		})
		values, err := readAll(ctx, s)
		require.NoError(t, err)
		require.Equal(t, []string{"r1", "r2"}, values)
	})
	t.Run("ReplacedOnResume", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		first := mock.NewMockStream(ctrl)
		gomock.InOrder(
			first.EXPECT().Recv().Return(withFields(chunk("t1", "r1"), "a"), nil),
			first.EXPECT().Recv().Return(nil, errUnavailable),
			first.EXPECT().Close(),
		)
		second := mock.NewMockStream(ctrl)
		gomock.InOrder(
			second.EXPECT().Recv().Return(chunk("t2", "r2"), nil),
			second.EXPECT().Recv().Return(nil, io.EOF),
		)
		second.EXPECT().Close().MinTimes(1)

		var tokens []string
		s := New(ctx, func(_ context.Context, resumeToken []byte) (transport.Stream, error) {
			tokens = append(tokens, string(resumeToken))
			if len(tokens) == 1 {
				return first, nil
			}

			return second, nil
		})
		values, err := readAll(ctx, s)
		require.NoError(t, err)
		require.Equal(t, []string{"r1", "r2"}, values)
		require.Equal(t, []string{"", "t1"}, tokens)
	})
}
