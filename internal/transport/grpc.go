package transport

import (
	"context"
	"fmt"

	"cloud.google.com/go/spanner/apiv1/spannerpb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/spanlite/spanlite-go-sdk/internal/meta"
	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
)

const pingSQL = "SELECT 1"

var _ Transport = (*grpcTransport)(nil)

type grpcTransport struct {
	client   spannerpb.SpannerClient
	database string
}

// NewGRPC returns Transport over the spanner gRPC protocol for database
// in form projects/<p>/instances/<i>/databases/<d>.
func NewGRPC(client spannerpb.SpannerClient, database string) *grpcTransport {
	return &grpcTransport{
		client:   client,
		database: database,
	}
}

func (t *grpcTransport) ctx(ctx context.Context) context.Context {
	return meta.WithDatabase(ctx, t.database)
}

// CreateSessions creates count sessions. The server may return fewer sessions
// than requested per call, so it asks again for the rest.
func (t *grpcTransport) CreateSessions(ctx context.Context, count int) ([]*Session, error) {
	sessions := make([]*Session, 0, count)
	for len(sessions) < count {
		response, err := t.client.BatchCreateSessions(t.ctx(ctx), &spannerpb.BatchCreateSessionsRequest{
			Database:     t.database,
			SessionCount: int32(count - len(sessions)), //nolint:gosec
		})
		if err != nil {
			return sessions, xerrors.WithStackTrace(xerrors.FromGRPCError(err))
		}
		if len(response.GetSession()) == 0 {
			return sessions, xerrors.WithStackTrace(fmt.Errorf(
				"batch create sessions returned no sessions (%d of %d created)", len(sessions), count,
			))
		}
		for _, s := range response.GetSession() {
			sessions = append(sessions, fromProtoSession(s))
		}
	}

	return sessions, nil
}

func (t *grpcTransport) CreateMultiplexedSession(ctx context.Context) (*Session, error) {
	s, err := t.client.CreateSession(t.ctx(ctx), &spannerpb.CreateSessionRequest{
		Database: t.database,
		Session: &spannerpb.Session{
			Multiplexed: true,
		},
	})
	if err != nil {
		return nil, xerrors.WithStackTrace(xerrors.FromGRPCError(err))
	}

	return fromProtoSession(s), nil
}

func fromProtoSession(s *spannerpb.Session) *Session {
	return &Session{
		ID:          s.GetName(),
		CreateTime:  s.GetCreateTime().AsTime(),
		Multiplexed: s.GetMultiplexed(),
	}
}

func (t *grpcTransport) DeleteSession(ctx context.Context, id string) error {
	_, err := t.client.DeleteSession(t.ctx(ctx), &spannerpb.DeleteSessionRequest{
		Name: id,
	})
	if err != nil {
		return xerrors.WithStackTrace(xerrors.FromGRPCError(err))
	}

	return nil
}

func (t *grpcTransport) PingSession(ctx context.Context, id string) error {
	_, err := t.client.ExecuteSql(t.ctx(ctx), &spannerpb.ExecuteSqlRequest{
		Session: id,
		Sql:     pingSQL,
	})
	if err != nil {
		return xerrors.WithStackTrace(xerrors.FromGRPCError(err))
	}

	return nil
}

func transactionOptions(kind Kind) *spannerpb.TransactionOptions {
	if kind == KindReadWrite {
		return &spannerpb.TransactionOptions{
			Mode: &spannerpb.TransactionOptions_ReadWrite_{
				ReadWrite: &spannerpb.TransactionOptions_ReadWrite{},
			},
		}
	}

	return &spannerpb.TransactionOptions{
		Mode: &spannerpb.TransactionOptions_ReadOnly_{
			ReadOnly: &spannerpb.TransactionOptions_ReadOnly{
				TimestampBound: &spannerpb.TransactionOptions_ReadOnly_Strong{
					Strong: true,
				},
				ReturnReadTimestamp: true,
			},
		},
	}
}

func (t *grpcTransport) BeginTransaction(ctx context.Context, sessionID string, kind Kind) ([]byte, error) {
	ctx = t.ctx(ctx)
	if kind == KindReadWrite {
		ctx = meta.WithRouteToLeader(ctx)
	}
	tx, err := t.client.BeginTransaction(ctx, &spannerpb.BeginTransactionRequest{
		Session: sessionID,
		Options: transactionOptions(kind),
	})
	if err != nil {
		return nil, xerrors.WithStackTrace(xerrors.FromGRPCError(err))
	}

	return tx.GetId(), nil
}

func (t *grpcTransport) Commit(ctx context.Context, sessionID string, transactionID []byte) error {
	_, err := t.client.Commit(meta.WithRouteToLeader(t.ctx(ctx)), &spannerpb.CommitRequest{
		Session: sessionID,
		Transaction: &spannerpb.CommitRequest_TransactionId{
			TransactionId: transactionID,
		},
	})
	if err != nil {
		return xerrors.WithStackTrace(xerrors.FromGRPCError(err))
	}

	return nil
}

func (t *grpcTransport) Rollback(ctx context.Context, sessionID string, transactionID []byte) error {
	_, err := t.client.Rollback(t.ctx(ctx), &spannerpb.RollbackRequest{
		Session:       sessionID,
		TransactionId: transactionID,
	})
	if err != nil {
		return xerrors.WithStackTrace(xerrors.FromGRPCError(err))
	}

	return nil
}

func executeSQLRequest(r *Request, resumeToken []byte) *spannerpb.ExecuteSqlRequest {
	request := &spannerpb.ExecuteSqlRequest{
		Session:     r.SessionID,
		Sql:         r.SQL,
		Seqno:       r.Seqno,
		ResumeToken: resumeToken,
	}
	if len(r.TransactionID) > 0 {
		request.Transaction = &spannerpb.TransactionSelector{
			Selector: &spannerpb.TransactionSelector_Id{
				Id: r.TransactionID,
			},
		}
	}
	if len(r.Params) > 0 {
		request.Params = &structpb.Struct{
			Fields: r.Params,
		}
	}

	return request
}

func fieldNames(metadata *spannerpb.ResultSetMetadata) []string {
	fields := metadata.GetRowType().GetFields()
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.GetName()
	}

	return names
}

func (t *grpcTransport) Request(ctx context.Context, r *Request) (*Response, error) {
	if r.Method != MethodExecuteSQL {
		return nil, xerrors.WithStackTrace(fmt.Errorf("unsupported unary method %q", r.Method))
	}
	rs, err := t.client.ExecuteSql(t.ctx(ctx), executeSQLRequest(r, nil))
	if err != nil {
		return nil, xerrors.WithStackTrace(xerrors.FromGRPCError(err))
	}
	response := &Response{
		Fields:   fieldNames(rs.GetMetadata()),
		Rows:     make([][]*structpb.Value, 0, len(rs.GetRows())),
		RowCount: rs.GetStats().GetRowCountExact(),
	}
	for _, row := range rs.GetRows() {
		response.Rows = append(response.Rows, row.GetValues())
	}

	return response, nil
}

type grpcStream struct {
	stream spannerpb.Spanner_ExecuteStreamingSqlClient
	cancel context.CancelFunc
}

func (s *grpcStream) Recv() (*Chunk, error) {
	part, err := s.stream.Recv()
	if err != nil {
		return nil, xerrors.FromGRPCError(err)
	}

	return &Chunk{
		Fields:       fieldNames(part.GetMetadata()),
		Values:       part.GetValues(),
		ChunkedValue: part.GetChunkedValue(),
		ResumeToken:  part.GetResumeToken(),
	}, nil
}

func (s *grpcStream) Close() {
	s.cancel()
}

func (t *grpcTransport) RequestStream(ctx context.Context, r *Request, resumeToken []byte) (Stream, error) {
	if r.Method != MethodExecuteStreamingSQL {
		return nil, xerrors.WithStackTrace(fmt.Errorf("unsupported streaming method %q", r.Method))
	}
	ctx, cancel := context.WithCancel(t.ctx(ctx))
	stream, err := t.client.ExecuteStreamingSql(ctx, executeSQLRequest(r, resumeToken))
	if err != nil {
		cancel()

		return nil, xerrors.WithStackTrace(xerrors.FromGRPCError(err))
	}

	return &grpcStream{
		stream: stream,
		cancel: cancel,
	}, nil
}
