package xerrors

import (
	"errors"
)

type requestIDError struct {
	id  string
	err error
}

func (e *requestIDError) Error() string {
	return e.err.Error() + " (request id: " + e.id + ")"
}

func (e *requestIDError) Unwrap() error {
	return e.err
}

// WithRequestID annotates err with identifier of the request which failed.
// The innermost annotation wins on lookup, so annotating twice is harmless.
func WithRequestID(err error, id string) error {
	if err == nil || id == "" {
		return err
	}
	if _, has := RequestID(err); has {
		return err
	}

	return &requestIDError{id: id, err: err}
}

// RequestID returns identifier of the request which produced err.
func RequestID(err error) (string, bool) {
	var e *requestIDError
	if errors.As(err, &e) {
		return e.id, true
	}

	return "", false
}
