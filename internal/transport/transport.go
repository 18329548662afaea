package transport

//go:generate mockgen -destination ../mock/transport.go -package mock -write_package_comment=false github.com/spanlite/spanlite-go-sdk/internal/transport Transport,Stream

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Kind is a kind of transaction a session is acquired for.
type Kind uint8

const (
	KindReadOnly Kind = iota
	KindReadWrite
)

func (k Kind) String() string {
	switch k {
	case KindReadOnly:
		return "readonly"
	case KindReadWrite:
		return "readwrite"
	default:
		return "unknown"
	}
}

const (
	MethodExecuteSQL          = "ExecuteSql"
	MethodExecuteStreamingSQL = "ExecuteStreamingSql"
)

type (
	// Session is a server-allocated session as returned by the server.
	Session struct {
		ID          string
		CreateTime  time.Time
		Multiplexed bool
	}

	Request struct {
		Method        string
		SessionID     string
		TransactionID []byte
		SQL           string
		Params        map[string]*structpb.Value
		Seqno         int64
	}

	Response struct {
		Fields   []string
		Rows     [][]*structpb.Value
		RowCount int64
	}

	// Chunk is one partial result of a streaming request. Values is a
	// flattened sequence of row values; when ChunkedValue is set the last
	// value continues in the next chunk.
	Chunk struct {
		Fields       []string
		Values       []*structpb.Value
		ChunkedValue bool
		ResumeToken  []byte
	}

	Stream interface {
		// Recv returns next chunk or io.EOF after the last one.
		Recv() (*Chunk, error)

		// Close releases the stream. Recv blocked on another goroutine returns error.
		Close()
	}

	// Transport is the RPC boundary of the client. Implementations return
	// errors convertible by xerrors.FromGRPCError.
	Transport interface {
		CreateSessions(ctx context.Context, count int) ([]*Session, error)
		CreateMultiplexedSession(ctx context.Context) (*Session, error)
		DeleteSession(ctx context.Context, id string) error
		PingSession(ctx context.Context, id string) error

		BeginTransaction(ctx context.Context, sessionID string, kind Kind) (transactionID []byte, _ error)
		Commit(ctx context.Context, sessionID string, transactionID []byte) error
		Rollback(ctx context.Context, sessionID string, transactionID []byte) error

		Request(ctx context.Context, r *Request) (*Response, error)
		RequestStream(ctx context.Context, r *Request, resumeToken []byte) (Stream, error)
	}
)
