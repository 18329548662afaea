package xerrors

import (
	"context"
	"fmt"
	"time"

	grpcCodes "google.golang.org/grpc/codes"
)

// DeadlineExceededError reports that the next transaction attempt would start
// after the overall timeout. Attempts holds the error of every attempt made,
// in order.
type DeadlineExceededError struct {
	Timeout  time.Duration
	Attempts []error
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("deadline exceeded: transaction timeout %v elapsed after %d attempts: %v",
		e.Timeout, len(e.Attempts), Join(e.Attempts...),
	)
}

func (e *DeadlineExceededError) Code() grpcCodes.Code {
	return grpcCodes.DeadlineExceeded
}

func (e *DeadlineExceededError) Is(target error) bool {
	return target == context.DeadlineExceeded //nolint:errorlint
}

func (e *DeadlineExceededError) Unwrap() []error {
	return e.Attempts
}

func IsDeadlineExceeded(err error) bool {
	var e *DeadlineExceededError

	return As(err, &e)
}
