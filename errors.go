package spanlite

import (
	grpcCodes "google.golang.org/grpc/codes"

	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
)

// DeadlineExceededError is returned by Do when the next attempt would start
// after the transaction timeout. It holds the errors of all attempts.
type DeadlineExceededError = xerrors.DeadlineExceededError

var (
	ErrPoolClosed                = xerrors.ErrPoolClosed
	ErrPoolExhausted             = xerrors.ErrPoolExhausted
	ErrAcquireTimeout            = xerrors.ErrAcquireTimeout
	ErrSessionUnknown            = xerrors.ErrSessionUnknown
	ErrTransactionClosed         = xerrors.ErrTransactionClosed
	ErrInactiveTransactionClosed = xerrors.ErrInactiveTransactionClosed
	ErrStreamAborted             = xerrors.ErrStreamAborted
	ErrIncompleteValue           = xerrors.ErrIncompleteValue
)

// IsRetryable reports whether err makes Do run the unit of work again.
func IsRetryable(err error) bool {
	return xerrors.IsRetryable(err) || xerrors.MustDeleteSession(err)
}

// IsPoolExhausted reports whether err is returned by a pool configured to
// fail instead of waiting when all sessions are in use.
func IsPoolExhausted(err error) bool {
	return xerrors.Is(err, xerrors.ErrPoolExhausted)
}

// IsAcquireTimeout reports whether err is returned when no session became
// available within the acquire timeout.
func IsAcquireTimeout(err error) bool {
	return xerrors.Is(err, xerrors.ErrAcquireTimeout)
}

func IsDeadlineExceeded(err error) bool {
	return xerrors.IsDeadlineExceeded(err)
}

// RequestID returns the identifier of the request which failed with err.
func RequestID(err error) (string, bool) {
	return xerrors.RequestID(err)
}

// Code returns the status code of err.
func Code(err error) grpcCodes.Code {
	return xerrors.Code(err)
}

// RetryableError marks err so that Do runs the unit of work again with a new
// transaction when work returns it.
func RetryableError(err error) error {
	return xerrors.WithStackTrace(xerrors.Retryable(err, xerrors.WithName("user")))
}
