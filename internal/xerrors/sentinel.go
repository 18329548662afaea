package xerrors

import (
	grpcCodes "google.golang.org/grpc/codes"
)

type codedError struct {
	code grpcCodes.Code
	msg  string
}

func (e *codedError) Error() string {
	return e.msg
}

func (e *codedError) Code() grpcCodes.Code {
	return e.code
}

var (
	// ErrPoolClosed is returned by a session pool which is closed and not
	// able to complete requested operation.
	ErrPoolClosed error = &codedError{grpcCodes.Canceled, "spanlite: session pool is closed"}

	// ErrPoolExhausted is returned by a pool configured to fail fast when no
	// session is idle and no more sessions may be created.
	ErrPoolExhausted error = &codedError{grpcCodes.ResourceExhausted, "spanlite: session pool is exhausted"}

	// ErrAcquireTimeout is returned when waiting for a session exceeds the
	// configured acquire timeout.
	ErrAcquireTimeout error = &codedError{grpcCodes.DeadlineExceeded, "spanlite: timeout acquiring session"}

	// ErrSessionUnknown is returned on release of a session which the pool
	// does not hold as checked out.
	ErrSessionUnknown error = &codedError{grpcCodes.FailedPrecondition, "spanlite: unknown session"}

	// ErrTransactionClosed is returned by calls on a committed or rolled back transaction.
	ErrTransactionClosed error = &codedError{grpcCodes.FailedPrecondition, "spanlite: transaction is closed"}

	// ErrInactiveTransactionClosed is the cause of a transaction interrupted by
	// the pool keeper for being open too long.
	ErrInactiveTransactionClosed error = &codedError{
		grpcCodes.Canceled, "spanlite: transaction closed by session pool after inactivity",
	}

	// ErrStreamAborted is returned by a result stream after Abort.
	ErrStreamAborted error = &codedError{grpcCodes.Canceled, "spanlite: result stream aborted"}

	// ErrIncompleteValue is returned when a stream ends in the middle of a chunked value.
	ErrIncompleteValue error = &codedError{grpcCodes.DataLoss, "spanlite: stream ended inside a chunked value"}
)
