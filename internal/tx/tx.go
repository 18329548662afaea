package tx

import (
	"context"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/spanlite/spanlite-go-sdk/internal/meta"
	"github.com/spanlite/spanlite-go-sdk/internal/requestid"
	"github.com/spanlite/spanlite-go-sdk/internal/session"
	"github.com/spanlite/spanlite-go-sdk/internal/stream"
	"github.com/spanlite/spanlite-go-sdk/internal/transport"
	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/trace"
)

// Transaction is a transaction begun on a session. Requests and streams
// issued through it are tagged with request identifiers and their failures
// are reported to the interceptor.
type Transaction struct {
	session     *session.Session
	kind        transport.Kind
	id          []byte
	requests    *requestid.Generator
	streamTrace *trace.Stream
	intercept   func(err error)

	mu      sync.Mutex
	seqno   int64
	done    bool
	streams []*stream.Stream
}

type Option func(t *Transaction)

func WithRequestIDs(g *requestid.Generator) Option {
	return func(t *Transaction) {
		t.requests = g
	}
}

func WithStreamTrace(st *trace.Stream) Option {
	return func(t *Transaction) {
		t.streamTrace = st
	}
}

// WithInterceptor sets a callback which observes every failed request and
// stream of the transaction. It does not change the error returned to the
// caller.
func WithInterceptor(f func(err error)) Option {
	return func(t *Transaction) {
		t.intercept = f
	}
}

func New(s *session.Session, kind transport.Kind, id []byte, opts ...Option) *Transaction {
	t := &Transaction{
		session: s,
		kind:    kind,
		id:      id,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if t.requests == nil {
		t.requests = requestid.New()
	}

	return t
}

func (t *Transaction) ID() []byte {
	return t.id
}

func (t *Transaction) Kind() transport.Kind {
	return t.kind
}

func (t *Transaction) SessionID() string {
	return t.session.ID()
}

// Done reports whether the transaction was committed or rolled back.
func (t *Transaction) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.done
}

func (t *Transaction) finish() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true

	return true
}

func (t *Transaction) nextSeqno() (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return 0, xerrors.ErrTransactionClosed
	}
	t.seqno++

	return t.seqno, nil
}

func (t *Transaction) request(sql string, params map[string]*structpb.Value, method string, seqno int64) *transport.Request {
	return &transport.Request{
		Method:        method,
		SessionID:     t.session.ID(),
		TransactionID: t.id,
		SQL:           sql,
		Params:        params,
		Seqno:         seqno,
	}
}

// failed updates the session health by err and reports err to the interceptor.
func (t *Transaction) failed(err error) {
	t.session.Observe(err)
	if err != nil && t.intercept != nil {
		t.intercept(err)
	}
}

// Execute runs a statement and returns its whole result.
func (t *Transaction) Execute(ctx context.Context, sql string, params map[string]*structpb.Value) (
	*transport.Response, error,
) {
	seqno, err := t.nextSeqno()
	if err != nil {
		return nil, xerrors.WithStackTrace(err)
	}
	id := t.requests.Next().String()
	response, err := t.session.Transport().Request(meta.WithRequestID(ctx, id),
		t.request(sql, params, transport.MethodExecuteSQL, seqno),
	)
	if err != nil {
		err = xerrors.WithRequestID(xerrors.WithStackTrace(err), id)
		t.failed(err)

		return nil, err
	}
	t.failed(nil)

	return response, nil
}

// Query runs a statement and returns its result as a resumable stream of
// rows. The stream is opened on first read.
func (t *Transaction) Query(ctx context.Context, sql string, params map[string]*structpb.Value) *stream.Stream {
	seqno, err := t.nextSeqno()
	request := t.request(sql, params, transport.MethodExecuteStreamingSQL, seqno)
	s := stream.New(ctx,
		func(ctx context.Context, resumeToken []byte) (transport.Stream, error) {
			if err != nil {
				return nil, xerrors.WithStackTrace(err)
			}

			return t.session.Transport().RequestStream(ctx, request, resumeToken)
		},
		stream.WithRequestID(t.requests.Next()),
		stream.WithTrace(t.streamTrace),
		stream.WithOnError(t.failed),
	)

	t.mu.Lock()
	t.streams = append(t.streams, s)
	t.mu.Unlock()

	return s
}

// Abort destroys streams opened by the transaction.
func (t *Transaction) Abort() {
	t.mu.Lock()
	streams := t.streams
	t.streams = nil
	t.mu.Unlock()

	for _, s := range streams {
		s.Abort()
		s.Close()
	}
}

// Commit commits a read-write transaction. Read-only transactions have
// nothing to commit and are only marked done.
func (t *Transaction) Commit(ctx context.Context) error {
	if !t.finish() {
		return xerrors.WithStackTrace(xerrors.ErrTransactionClosed)
	}
	if t.kind != transport.KindReadWrite {
		return nil
	}
	if !t.session.BeginCommit() {
		return xerrors.WithStackTrace(xerrors.ErrInactiveTransactionClosed)
	}
	defer t.session.EndCommit()

	id := t.requests.Next().String()
	if err := t.session.Transport().Commit(meta.WithRequestID(ctx, id), t.session.ID(), t.id); err != nil {
		err = xerrors.WithRequestID(xerrors.WithStackTrace(err), id)
		t.failed(err)

		return err
	}
	t.failed(nil)

	return nil
}

// Rollback ends the transaction without applying it. Errors are not
// reported to the interceptor.
func (t *Transaction) Rollback(ctx context.Context) error {
	if !t.finish() {
		return xerrors.WithStackTrace(xerrors.ErrTransactionClosed)
	}
	if t.kind != transport.KindReadWrite {
		return nil
	}

	id := t.requests.Next().String()
	err := t.session.Transport().Rollback(meta.WithRequestID(ctx, id), t.session.ID(), t.id)
	t.session.Observe(err)
	if err != nil {
		return xerrors.WithRequestID(xerrors.WithStackTrace(err), id)
	}

	return nil
}
