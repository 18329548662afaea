package xerrors

import (
	"bytes"
	"errors"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"
)

// Messages of INTERNAL errors produced by a reset HTTP/2 stream. Such errors
// are transient despite the INTERNAL code.
var streamResetMessages = []string{
	"Received RST_STREAM",
	"RST_STREAM",
	"Received unexpected EOS on DATA frame from server",
	"Stream removed",
}

type transportError struct {
	code    grpcCodes.Code
	message string
	err     error

	retryDelay    time.Duration
	hasRetryDelay bool
}

type teOpt func(te *transportError)

func WithCode(code grpcCodes.Code) teOpt {
	return func(te *transportError) {
		te.code = code
	}
}

func WithMessage(message string) teOpt {
	return func(te *transportError) {
		te.message = message
	}
}

// WithRetryDelay attaches server-supplied retry guidance.
func WithRetryDelay(d time.Duration) teOpt {
	return func(te *transportError) {
		te.retryDelay = d
		te.hasRetryDelay = true
	}
}

// Transport returns a new transport error with given options
func Transport(opts ...teOpt) error {
	te := &transportError{}
	for _, opt := range opts {
		if opt != nil {
			opt(te)
		}
	}

	return WithStackTrace(te, WithSkipDepth(1))
}

func (e *transportError) Error() string {
	var b bytes.Buffer
	b.WriteString("transport error: ")
	b.WriteString(e.code.String())
	if e.message != "" {
		b.WriteString(", message: ")
		b.WriteString(e.message)
	}
	if e.hasRetryDelay {
		b.WriteString(", retry delay: ")
		b.WriteString(e.retryDelay.String())
	}

	return b.String()
}

func (e *transportError) Unwrap() error {
	return e.err
}

func (e *transportError) Code() grpcCodes.Code {
	return e.code
}

func (e *transportError) GRPCStatus() *grpcStatus.Status {
	return grpcStatus.New(e.code, e.message)
}

func (e *transportError) isStreamReset() bool {
	if e.code != grpcCodes.Internal {
		return false
	}
	for _, m := range streamResetMessages {
		if strings.Contains(e.message, m) {
			return true
		}
	}

	return false
}

// FromGRPCError converts error with grpc status into transport error.
// Retry guidance from google.rpc.RetryInfo details is decoded eagerly;
// malformed guidance is ignored.
func FromGRPCError(err error, opts ...teOpt) error {
	if err == nil {
		return nil
	}
	var t *transportError
	if errors.As(err, &t) {
		return err
	}

	s, ok := grpcStatus.FromError(err)
	if !ok {
		return err
	}
	te := &transportError{
		code:    s.Code(),
		message: s.Message(),
		err:     err,
	}
	if d, has := retryDelayFromStatus(s); has {
		te.retryDelay, te.hasRetryDelay = d, true
	}
	for _, opt := range opts {
		if opt != nil {
			opt(te)
		}
	}

	return te
}

func retryDelayFromStatus(s *grpcStatus.Status) (time.Duration, bool) {
	for _, detail := range s.Details() {
		info, ok := detail.(*errdetails.RetryInfo)
		if !ok {
			continue
		}
		d := info.GetRetryDelay()
		if d == nil || d.CheckValid() != nil {
			return 0, false
		}
		if delay := d.AsDuration(); delay >= 0 {
			return delay, true
		}

		return 0, false
	}

	return 0, false
}

// IsTransportError reports whether err is transportError with given grpc codes
func IsTransportError(err error, codes ...grpcCodes.Code) bool {
	if err == nil {
		return false
	}
	var t *transportError
	if !errors.As(err, &t) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, code := range codes {
		if t.code == code {
			return true
		}
	}

	return false
}

// RetryDelay returns the server-supplied retry delay attached to err.
func RetryDelay(err error) (time.Duration, bool) {
	var t *transportError
	if !errors.As(err, &t) || !t.hasRetryDelay {
		return 0, false
	}

	return t.retryDelay, true
}

// IsTransient reports whether err is a transport failure after which a
// streaming read may be reopened from its last resume token.
func IsTransient(err error) bool {
	var t *transportError
	if !errors.As(err, &t) {
		return false
	}
	switch t.code {
	case grpcCodes.Unavailable, grpcCodes.ResourceExhausted:
		return true
	default:
		return t.isStreamReset()
	}
}

// MustDeleteSession reports whether the session used by a failed call is gone on the server.
func MustDeleteSession(err error) bool {
	var t *transportError
	if !errors.As(err, &t) {
		return false
	}

	return t.code == grpcCodes.NotFound && strings.Contains(t.message, "Session not found")
}
