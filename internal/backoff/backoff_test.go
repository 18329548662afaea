package backoff

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
)

func TestDelayBounds(t *testing.T) {
	b := New(WithSeed(42))
	aborted := xerrors.Transport(xerrors.WithCode(grpcCodes.Aborted))
	for attempt := -1; attempt < 10; attempt++ {
		t.Run(fmt.Sprintf("attempt=%d", attempt), func(t *testing.T) {
			exp := max(attempt, 0)
			base := time.Duration(1<<min(exp, 5)) * time.Second
			for i := 0; i < 100; i++ {
				d := b.Delay(aborted, attempt)
				require.GreaterOrEqual(t, d, base)
				require.Less(t, d, base+time.Second)
			}
		})
	}
}

func TestDelayCeiling(t *testing.T) {
	b := New(WithJitter(0))
	require.Equal(t, time.Second, b.Delay(nil, 0))
	require.Equal(t, 2*time.Second, b.Delay(nil, 1))
	require.Equal(t, 16*time.Second, b.Delay(nil, 4))
	require.Equal(t, 32*time.Second, b.Delay(nil, 5))
	require.Equal(t, 32*time.Second, b.Delay(nil, 100))
}

func TestDelayWithGuidance(t *testing.T) {
	s, err := grpcStatus.New(grpcCodes.Aborted, "aborted").WithDetails(&errdetails.RetryInfo{
		RetryDelay: &durationpb.Duration{Seconds: 0, Nanos: 10_000_000},
	})
	require.NoError(t, err)
	aborted := xerrors.WithStackTrace(xerrors.FromGRPCError(s.Err()))

	for _, attempt := range []int{0, 1, 5, 42} {
		require.Equal(t, 10*time.Millisecond, Default.Delay(aborted, attempt))
	}
}

func TestDelayWithMalformedGuidance(t *testing.T) {
	s, err := grpcStatus.New(grpcCodes.Aborted, "aborted").WithDetails(&errdetails.RetryInfo{
		RetryDelay: &durationpb.Duration{Seconds: 1, Nanos: -5},
	})
	require.NoError(t, err)
	aborted := xerrors.FromGRPCError(s.Err())

	b := New(WithJitter(0))
	require.Equal(t, 8*time.Second, b.Delay(aborted, 3))
	require.Equal(t, 8*time.Second, b.Delay(errors.New("not a status"), 3))
}
