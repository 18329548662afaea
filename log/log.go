// Package log turns a *zap.Logger into trace hooks of the pool, the
// transaction runner and result streams.
package log

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
)

func latency(d time.Duration) zap.Field {
	return zap.Duration("latency", d)
}

func errorFields(err error) []zap.Field {
	fields := []zap.Field{
		zap.Error(err),
		zap.Stringer("code", xerrors.Code(err)),
	}
	if id, has := xerrors.RequestID(err); has {
		fields = append(fields, zap.String("requestID", id))
	}

	return fields
}

// failureLevel is the level of an operation failure: canceled operations are
// logged at debug level.
func failureLevel(err error, lvl zapcore.Level) zapcore.Level {
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return zapcore.DebugLevel
	}

	return lvl
}
