package xerrors

import (
	"errors"
	"fmt"

	grpcCodes "google.golang.org/grpc/codes"
)

type retryableError struct {
	name string
	err  error
}

func (re *retryableError) Error() string {
	return fmt.Sprintf("retryable/%s (source error = %q)", re.name, re.err.Error())
}

func (re *retryableError) Unwrap() error {
	return re.err
}

func (re *retryableError) Code() grpcCodes.Code {
	return Code(re.err)
}

type RetryableErrorOption func(re *retryableError)

func WithName(name string) RetryableErrorOption {
	return func(re *retryableError) {
		re.name = name
	}
}

// Retryable marks err as a transient failure of the whole transaction attempt.
func Retryable(err error, opts ...RetryableErrorOption) error {
	re := &retryableError{
		name: "CUSTOM",
		err:  err,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(re)
		}
	}

	return re
}

// IsRetryable reports whether err requires the whole unit of work to be
// executed again with a new transaction.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var deadline *DeadlineExceededError
	if errors.As(err, &deadline) {
		return false
	}

	var re *retryableError
	if errors.As(err, &re) {
		return true
	}

	var te *transportError
	if errors.As(err, &te) {
		return te.code == grpcCodes.Aborted || te.isStreamReset()
	}

	return false
}
