package xtest

import (
	"context"
	"io"
	"strconv"
	"sync"

	"github.com/spanlite/spanlite-go-sdk/internal/meta"
	"github.com/spanlite/spanlite-go-sdk/internal/transport"
)

var _ transport.Transport = (*Transport)(nil)

// Transport is an in-memory transport.Transport. Sessions and transactions
// are numbered in order of creation. Hooks, if set, replace the default
// behavior of the corresponding call.
type Transport struct {
	OnCreateSessions func(ctx context.Context, count int) ([]*transport.Session, error)
	OnPing           func(ctx context.Context, sessionID string) error
	OnBegin          func(ctx context.Context, sessionID string, kind transport.Kind) ([]byte, error)
	OnCommit         func(ctx context.Context, sessionID string, transactionID []byte) error
	OnRollback       func(ctx context.Context, sessionID string, transactionID []byte) error
	OnRequest        func(ctx context.Context, r *transport.Request) (*transport.Response, error)
	OnRequestStream  func(ctx context.Context, r *transport.Request, resumeToken []byte) (transport.Stream, error)

	mu           sync.Mutex
	sessions     map[string]struct{}
	sessionsSeq  int
	txSeq        int
	calls        map[string]int
	requestIDs   []string
	byMethod     map[string][]string
	deleted      []string
	transactions []string
}

func NewTransport() *Transport {
	return &Transport{
		sessions: make(map[string]struct{}),
		calls:    make(map[string]int),
		byMethod: make(map[string][]string),
	}
}

func (t *Transport) call(ctx context.Context, method string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls[method]++
	if id := meta.RequestID(ctx); id != "" {
		t.requestIDs = append(t.requestIDs, id)
		t.byMethod[method] = append(t.byMethod[method], id)
	}
}

// Calls returns the number of calls of method.
func (t *Transport) Calls(method string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.calls[method]
}

// Sessions returns the number of sessions existing on the fake server.
func (t *Transport) Sessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.sessions)
}

func (t *Transport) Deleted() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]string(nil), t.deleted...)
}

// RequestIDs returns request id headers of calls in order of arrival.
func (t *Transport) RequestIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]string(nil), t.requestIDs...)
}

// MethodRequestIDs returns request id headers of calls of method.
func (t *Transport) MethodRequestIDs(method string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]string(nil), t.byMethod[method]...)
}

// Transactions returns identifiers of begun transactions in order.
func (t *Transport) Transactions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]string(nil), t.transactions...)
}

func (t *Transport) newSession() *transport.Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessionsSeq++
	id := "session-" + strconv.Itoa(t.sessionsSeq)
	t.sessions[id] = struct{}{}

	return &transport.Session{ID: id}
}

func (t *Transport) CreateSessions(ctx context.Context, count int) ([]*transport.Session, error) {
	t.call(ctx, "CreateSessions")
	if t.OnCreateSessions != nil {
		sessions, err := t.OnCreateSessions(ctx, count)
		t.mu.Lock()
		for _, s := range sessions {
			t.sessions[s.ID] = struct{}{}
		}
		t.mu.Unlock()

		return sessions, err
	}
	sessions := make([]*transport.Session, 0, count)
	for i := 0; i < count; i++ {
		sessions = append(sessions, t.newSession())
	}

	return sessions, nil
}

func (t *Transport) CreateMultiplexedSession(ctx context.Context) (*transport.Session, error) {
	t.call(ctx, "CreateMultiplexedSession")
	s := t.newSession()
	s.Multiplexed = true

	return s, nil
}

func (t *Transport) DeleteSession(ctx context.Context, id string) error {
	t.call(ctx, "DeleteSession")

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.sessions, id)
	t.deleted = append(t.deleted, id)

	return nil
}

func (t *Transport) PingSession(ctx context.Context, id string) error {
	t.call(ctx, "PingSession")
	if t.OnPing != nil {
		return t.OnPing(ctx, id)
	}

	return nil
}

func (t *Transport) BeginTransaction(ctx context.Context, sessionID string, kind transport.Kind) ([]byte, error) {
	t.call(ctx, "BeginTransaction")
	if t.OnBegin != nil {
		id, err := t.OnBegin(ctx, sessionID, kind)
		if err == nil {
			t.mu.Lock()
			t.transactions = append(t.transactions, string(id))
			t.mu.Unlock()
		}

		return id, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.txSeq++
	id := "tx-" + strconv.Itoa(t.txSeq)
	t.transactions = append(t.transactions, id)

	return []byte(id), nil
}

func (t *Transport) Commit(ctx context.Context, sessionID string, transactionID []byte) error {
	t.call(ctx, "Commit")
	if t.OnCommit != nil {
		return t.OnCommit(ctx, sessionID, transactionID)
	}

	return nil
}

func (t *Transport) Rollback(ctx context.Context, sessionID string, transactionID []byte) error {
	t.call(ctx, "Rollback")
	if t.OnRollback != nil {
		return t.OnRollback(ctx, sessionID, transactionID)
	}

	return nil
}

func (t *Transport) Request(ctx context.Context, r *transport.Request) (*transport.Response, error) {
	t.call(ctx, "Request")
	if t.OnRequest != nil {
		return t.OnRequest(ctx, r)
	}

	return &transport.Response{}, nil
}

func (t *Transport) RequestStream(
	ctx context.Context, r *transport.Request, resumeToken []byte,
) (transport.Stream, error) {
	t.call(ctx, "RequestStream")
	if t.OnRequestStream != nil {
		return t.OnRequestStream(ctx, r, resumeToken)
	}

	return NewStream(nil, nil), nil
}

// Stream is a transport.Stream replaying chunks and then err, or io.EOF if
// err is nil.
type Stream struct {
	mu     sync.Mutex
	chunks []*transport.Chunk
	err    error
	closed bool
}

var _ transport.Stream = (*Stream)(nil)

func NewStream(chunks []*transport.Chunk, err error) *Stream {
	if err == nil {
		err = io.EOF
	}

	return &Stream{
		chunks: chunks,
		err:    err,
	}
}

func (s *Stream) Recv() (*transport.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, context.Canceled
	}
	if len(s.chunks) == 0 {
		return nil, s.err
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]

	return chunk, nil
}

func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
}

func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
