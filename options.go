package spanlite

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spanlite/spanlite-go-sdk/config"
	"github.com/spanlite/spanlite-go-sdk/trace"
)

// Option contains configuration values for Driver
type Option func(ctx context.Context, d *Driver) error

// WithSessionPool replaces the session pool configuration.
// The configuration is validated by New.
func WithSessionPool(cfg config.SessionPool) Option {
	return func(ctx context.Context, d *Driver) error {
		d.poolConfig = cfg

		return nil
	}
}

// WithMultiplexedSession makes all transactions share one multiplexed
// session instead of a pool of sessions.
func WithMultiplexedSession() Option {
	return func(ctx context.Context, d *Driver) error {
		d.poolConfig.Multiplexed = true
		if d.poolConfig.MultiplexedRefresh <= 0 {
			d.poolConfig.MultiplexedRefresh = config.DefaultMultiplexedRefresh
		}

		return nil
	}
}

// WithTransactionTimeout bounds all attempts of one transaction.
func WithTransactionTimeout(timeout time.Duration) Option {
	return func(ctx context.Context, d *Driver) error {
		d.runnerConfig.Timeout = timeout

		return nil
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(ctx context.Context, d *Driver) error {
		d.clock = clock

		return nil
	}
}

// WithLogger logs events of the pool, the runner and result streams with l.
func WithLogger(l *zap.Logger) Option {
	return func(ctx context.Context, d *Driver) error {
		d.logger = l

		return nil
	}
}

// WithPoolTrace appends t to the session pool trace.
func WithPoolTrace(t *trace.Pool, opts ...trace.ComposeOption) Option {
	return func(ctx context.Context, d *Driver) error {
		d.poolTrace = d.poolTrace.Compose(t, opts...)

		return nil
	}
}

// WithRunnerTrace appends t to the transaction runner trace.
func WithRunnerTrace(t *trace.Runner, opts ...trace.ComposeOption) Option {
	return func(ctx context.Context, d *Driver) error {
		d.runnerTrace = d.runnerTrace.Compose(t, opts...)

		return nil
	}
}

// WithStreamTrace appends t to the trace of result streams.
func WithStreamTrace(t *trace.Stream, opts ...trace.ComposeOption) Option {
	return func(ctx context.Context, d *Driver) error {
		d.streamTrace = d.streamTrace.Compose(t, opts...)

		return nil
	}
}

// WithChannelID sets the channel number of request identifiers.
func WithChannelID(id uint64) Option {
	return func(ctx context.Context, d *Driver) error {
		d.channelID = id

		return nil
	}
}

// WithPanicCallback makes the driver recover panics of units of work and
// report them to cb. If not defined, panics are not recovered.
func WithPanicCallback(cb func(e interface{})) Option {
	return func(ctx context.Context, d *Driver) error {
		d.panicCallback = cb

		return nil
	}
}
