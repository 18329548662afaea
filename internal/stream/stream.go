package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"

	"github.com/spanlite/spanlite-go-sdk/internal/meta"
	"github.com/spanlite/spanlite-go-sdk/internal/requestid"
	"github.com/spanlite/spanlite-go-sdk/internal/stack"
	"github.com/spanlite/spanlite-go-sdk/internal/transport"
	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/trace"
)

const (
	// DefaultMaxBuffered is the number of chunks without a resume token
	// after which complete rows are flushed anyway.
	DefaultMaxBuffered = 10

	// DefaultMaxResumes is the number of restarts in a row without a new
	// resume token after which the stream error is returned.
	DefaultMaxResumes = 20
)

var (
	errMerge           = errors.New("chunked value merge")
	errMissingMetadata = errors.New("result values arrived before result metadata")
)

// RequestFunc opens the underlying stream. A nil resumeToken means from the
// beginning.
type RequestFunc func(ctx context.Context, resumeToken []byte) (transport.Stream, error)

type config struct {
	trace       *trace.Stream
	id          requestid.ID
	maxBuffered int
	maxResumes  int
	onError     func(err error)
}

type option func(c *config)

func WithTrace(t *trace.Stream) option {
	return func(c *config) {
		c.trace = c.trace.Compose(t)
	}
}

// WithRequestID sets the identifier of the logical request. Every reopen of
// the stream is tagged as a next attempt of it.
func WithRequestID(id requestid.ID) option {
	return func(c *config) {
		c.id = id
	}
}

func WithMaxBuffered(n int) option {
	return func(c *config) {
		if n > 0 {
			c.maxBuffered = n
		}
	}
}

func WithMaxResumes(n int) option {
	return func(c *config) {
		if n >= 0 {
			c.maxResumes = n
		}
	}
}

// WithOnError sets a callback which observes the terminal error of the
// stream. It is not called for io.EOF and abort.
func WithOnError(f func(err error)) option {
	return func(c *config) {
		c.onError = f
	}
}

// Stream is a lazy sequence of rows reassembled from partial results.
// Transient failures of the underlying stream are recovered by reopening it
// from the last resume token.
//
// Next must not be called concurrently. Abort is safe to call from any goroutine.
type Stream struct {
	ctx     context.Context //nolint:containedctx
	request RequestFunc
	config  config

	mu      sync.Mutex
	current transport.Stream
	opened  bool
	aborted bool

	fields      []string
	acc         accumulator
	checkpoint  accumulator
	ready       []Row
	resumeToken []byte
	resumable   bool
	unflushed   int
	restarts    int
	attempt     uint64
	rows        int
	err         error
	closeOnce   sync.Once
}

func New(ctx context.Context, request RequestFunc, opts ...option) *Stream {
	s := &Stream{
		ctx:     ctx,
		request: request,
		config: config{
			maxBuffered: DefaultMaxBuffered,
			maxResumes:  DefaultMaxResumes,
		},
		resumable: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s.config)
		}
	}

	return s
}

// Fields returns column names. It is empty until the first chunk arrives.
func (s *Stream) Fields() []string {
	return s.fields
}

// Next returns the next row or io.EOF after the last one.
func (s *Stream) Next(ctx context.Context) (Row, error) {
	for {
		if len(s.ready) > 0 {
			row := s.ready[0]
			s.ready[0] = Row{}
			s.ready = s.ready[1:]

			return row, nil
		}
		if s.err != nil {
			return Row{}, s.err
		}
		if err := ctx.Err(); err != nil {
			return Row{}, xerrors.WithStackTrace(err)
		}
		s.fetch()
	}
}

// Rows returns an iterator over the remaining rows. Iteration stops at the
// first error; io.EOF is not yielded.
func (s *Stream) Rows(ctx context.Context) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for {
			row, err := s.Next(ctx)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(Row{}, err)
				}

				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Abort destroys the underlying stream. Next returns an abort error
// afterwards. Abort before the first request is a no-op.
func (s *Stream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return
	}
	s.aborted = true
	if s.current != nil {
		s.current.Close()
	}
}

// Close releases the underlying stream.
func (s *Stream) Close() {
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if current != nil {
		current.Close()
	}
	s.closeOnce.Do(func() {
		trace.StreamOnClose(s.config.trace, s.rows, xerrors.HideEOF(s.err))
	})
}

func (s *Stream) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.aborted
}

func (s *Stream) requestID() string {
	if s.config.id.Request == 0 {
		return ""
	}

	return s.config.id.WithAttempt(s.attempt).String()
}

func (s *Stream) open() (transport.Stream, error) {
	s.mu.Lock()
	s.opened = true
	aborted := s.aborted
	s.mu.Unlock()
	if aborted {
		return nil, xerrors.WithStackTrace(xerrors.ErrStreamAborted)
	}

	s.attempt++
	ctx := s.ctx
	if id := s.requestID(); id != "" {
		ctx = meta.WithRequestID(ctx, id)
	}
	onDone := trace.StreamOnOpen(s.config.trace, &ctx,
		stack.FunctionID("github.com/spanlite/spanlite-go-sdk/internal/stream.(*Stream).open"),
		s.requestID(), s.resumeToken,
	)
	current, err := s.request(ctx, s.resumeToken)
	onDone(err)
	if err != nil {
		return nil, xerrors.WithStackTrace(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		current.Close()

		return nil, xerrors.WithStackTrace(xerrors.ErrStreamAborted)
	}
	s.current = current

	return current, nil
}

// fetch reads one chunk from the underlying stream, opening it if needed.
func (s *Stream) fetch() {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current == nil {
		var err error
		if current, err = s.open(); err != nil {
			s.recover(err)

			return
		}
	}

	chunk, err := current.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.end()

			return
		}
		s.recover(err)

		return
	}

	if err := s.consume(chunk); err != nil {
		s.finish(err)
	}
}

func (s *Stream) consume(chunk *transport.Chunk) error {
	if len(s.fields) == 0 && len(chunk.Fields) > 0 {
		s.fields = chunk.Fields
	}
	if len(s.fields) == 0 && len(chunk.Values) > 0 {
		return xerrors.WithStackTrace(errMissingMetadata)
	}

	acc, err := s.acc.add(chunk.Values, chunk.ChunkedValue)
	if err != nil {
		return xerrors.WithStackTrace(err)
	}
	s.acc = acc
	s.unflushed++

	switch {
	case len(chunk.ResumeToken) > 0:
		s.resumeToken = chunk.ResumeToken
		s.resumable = true
		s.restarts = 0
		s.flush(false)
	case s.unflushed >= s.config.maxBuffered:
		// rows flushed without a token would be delivered twice by a restart
		s.resumable = false
		s.flush(true)
	}

	return nil
}

func (s *Stream) flush(forced bool) {
	rows, rest := s.acc.split(s.fields)
	s.acc = rest
	s.checkpoint = rest
	s.unflushed = 0
	s.ready = append(s.ready, rows...)
	s.rows += len(rows)
	if len(rows) > 0 || forced {
		trace.StreamOnFlush(s.config.trace, len(rows), forced)
	}
}

func (s *Stream) end() {
	s.flush(false)
	if !s.acc.empty() {
		s.finish(xerrors.WithStackTrace(xerrors.ErrIncompleteValue))

		return
	}
	s.finish(io.EOF)
}

// recover reopens the stream from the last resume token if err allows it,
// otherwise it finishes the stream with err.
func (s *Stream) recover(err error) {
	s.mu.Lock()
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
	s.mu.Unlock()

	if s.isAborted() {
		s.finish(xerrors.WithStackTrace(xerrors.ErrStreamAborted))

		return
	}
	if !s.canResume(err) {
		s.finish(err)

		return
	}

	s.restarts++
	s.acc = s.checkpoint
	s.unflushed = 0
	trace.StreamOnRestart(s.config.trace, s.requestID(), s.resumeToken, s.restarts, err)
}

func (s *Stream) canResume(err error) bool {
	return len(s.resumeToken) > 0 &&
		s.resumable &&
		s.restarts < s.config.maxResumes &&
		xerrors.IsTransient(err)
}

func (s *Stream) finish(err error) {
	if s.err != nil {
		return
	}
	if errors.Is(err, io.EOF) {
		s.err = io.EOF
		s.Close()

		return
	}
	if !xerrors.Is(err, xerrors.ErrStreamAborted) {
		// rows which were not acknowledged by a resume token are dropped
		s.acc = accumulator{}
		if s.config.onError != nil {
			s.config.onError(err)
		}
	}
	s.err = xerrors.WithRequestID(err, s.requestID())
	s.Close()
}
