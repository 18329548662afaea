package command

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

func dial(endpoint string, plaintext bool, l *zap.Logger) (*grpc.ClientConn, error) {
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if plaintext {
		creds = insecure.NewCredentials()
	}
	l = l.Named("grpc")
	cc, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(creds),
		grpc.WithChainUnaryInterceptor(unaryLogger(l)),
		grpc.WithChainStreamInterceptor(streamLogger(l)),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", endpoint, err)
	}

	return cc, nil
}

func logCall(l *zap.Logger, method string, start time.Time, err error) {
	lvl := zapcore.DebugLevel
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	l.Log(lvl, "call",
		zap.String("method", method),
		zap.Duration("latency", time.Since(start)),
		zap.Stringer("code", status.Code(err)),
	)
}

func unaryLogger(l *zap.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		logCall(l, method, start, err)

		return err
	}
}

// streamLogger logs opening of streams. Errors of Recv are logged by the
// driver's stream trace.
func streamLogger(l *zap.Logger) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn,
		method string, streamer grpc.Streamer, opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		start := time.Now()
		s, err := streamer(ctx, desc, cc, method, opts...)
		logCall(l, method, start, err)

		return s, err
	}
}
