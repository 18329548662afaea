package xerrors

import (
	"errors"
	"io"

	grpcCodes "google.golang.org/grpc/codes"
)

// New is a proxy to errors.New
// This need to single import errors
func New(text string) error {
	return errors.New(text)
}

// As is a proxy to errors.As
// This need to single import errors
func As(err error, targets ...interface{}) (ok bool) {
	if err == nil {
		return false
	}
	for _, t := range targets {
		if errors.As(err, t) {
			ok = true
		}
	}

	return ok
}

// Is is a improved proxy to errors.Is
// This need to single import errors
func Is(err error, targets ...error) bool {
	if len(targets) == 0 {
		panic("empty targets")
	}
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

func HideEOF(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

// Code returns the coarse status code of err.
// Errors which are not coded report grpcCodes.Unknown, nil reports grpcCodes.OK.
func Code(err error) grpcCodes.Code {
	if err == nil {
		return grpcCodes.OK
	}
	var e interface {
		Code() grpcCodes.Code
	}
	if errors.As(err, &e) {
		return e.Code()
	}

	return grpcCodes.Unknown
}
