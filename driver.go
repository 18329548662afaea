package spanlite

import (
	"context"
	"sync"

	"cloud.google.com/go/spanner/apiv1/spannerpb"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/spanlite/spanlite-go-sdk/config"
	"github.com/spanlite/spanlite-go-sdk/internal/pool"
	"github.com/spanlite/spanlite-go-sdk/internal/requestid"
	"github.com/spanlite/spanlite-go-sdk/internal/runner"
	"github.com/spanlite/spanlite-go-sdk/internal/stream"
	"github.com/spanlite/spanlite-go-sdk/internal/transport"
	"github.com/spanlite/spanlite-go-sdk/internal/tx"
	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/log"
	"github.com/spanlite/spanlite-go-sdk/trace"
)

type (
	// Transaction is a transaction handle passed to a unit of work.
	Transaction = tx.Transaction

	// Rows is a resumable stream of query results.
	Rows = stream.Stream

	Row = stream.Row

	Response = transport.Response

	// Transport is the RPC boundary the driver works over.
	Transport = transport.Transport

	// PoolStats is a snapshot of the session pool.
	PoolStats = pool.Stats

	// RunOption configures one Do call.
	RunOption = runner.RunOption
)

// WithLabel names the unit of work in traces and logs.
func WithLabel(label string) RunOption {
	return runner.WithLabel(label)
}

// WithReadOnly runs the unit of work in read-only transactions.
func WithReadOnly() RunOption {
	return runner.WithKind(transport.KindReadOnly)
}

type provider interface {
	pool.Provider
	Stats() pool.Stats
}

var (
	_ provider = (*pool.Pool)(nil)
	_ provider = (*pool.Multiplexed)(nil)
)

// Driver runs transactions over a transport. A driver is safe for use by
// multiple goroutines simultaneously.
type Driver struct {
	transport     transport.Transport
	poolConfig    config.SessionPool
	runnerConfig  config.Runner
	clock         clockwork.Clock
	logger        *zap.Logger
	poolTrace     *trace.Pool
	runnerTrace   *trace.Runner
	streamTrace   *trace.Stream
	channelID     uint64
	panicCallback func(e interface{})

	provider provider
	runner   *runner.Runner

	closeOnce sync.Once
	closeErr  error
}

// Open returns a driver over the spanner gRPC protocol on cc for database in
// form projects/<p>/instances/<i>/databases/<d>.
func Open(ctx context.Context, cc grpc.ClientConnInterface, database string, opts ...Option) (*Driver, error) {
	return New(ctx, transport.NewGRPC(spannerpb.NewSpannerClient(cc), database), opts...)
}

// New returns a driver over t. The session pool starts creating its minimum
// of sessions in background.
func New(ctx context.Context, t Transport, opts ...Option) (_ *Driver, err error) {
	d := &Driver{
		transport:    t,
		poolConfig:   config.Default(),
		runnerConfig: config.DefaultRunner(),
		clock:        clockwork.NewRealClock(),
		logger:       zap.NewNop(),
		channelID:    1,
	}
	for _, opt := range opts {
		if opt != nil {
			if err = opt(ctx, d); err != nil {
				return nil, xerrors.WithStackTrace(err)
			}
		}
	}
	if err = d.poolConfig.Validate(); err != nil {
		return nil, xerrors.WithStackTrace(err)
	}
	if err = d.runnerConfig.Validate(); err != nil {
		return nil, xerrors.WithStackTrace(err)
	}

	l := d.logger.Named("spanlite")
	d.poolTrace = log.Pool(l).Compose(d.poolTrace)
	d.runnerTrace = log.Runner(l).Compose(d.runnerTrace)
	d.streamTrace = log.Stream(l).Compose(d.streamTrace)

	requests := requestid.New(requestid.WithChannelID(d.channelID))
	poolOptions := []pool.Option{
		pool.WithClock(d.clock),
		pool.WithTrace(d.poolTrace),
		pool.WithRequestIDs(requests),
	}
	if d.poolConfig.Multiplexed {
		d.provider, err = pool.NewMultiplexed(ctx, d.transport, d.poolConfig, poolOptions...)
	} else {
		d.provider, err = pool.New(ctx, d.transport, d.poolConfig, poolOptions...)
	}
	if err != nil {
		return nil, xerrors.WithStackTrace(err)
	}

	d.runner = runner.New(d.provider, d.runnerConfig,
		runner.WithClock(d.clock),
		runner.WithTrace(d.runnerTrace),
		runner.WithStreamTrace(d.streamTrace),
		runner.WithRequestIDs(requests),
		runner.WithPanicCallback(d.panicCallback),
	)

	return d, nil
}

// Do runs work in a read-write transaction, unless WithReadOnly is given,
// and commits it if work did not end it. work is executed again with a new
// transaction after retryable failures of work itself or of any request or
// stream it issued, until the transaction timeout would elapse.
func (d *Driver) Do(ctx context.Context, work func(ctx context.Context, t *Transaction) error,
	opts ...RunOption,
) error {
	return d.runner.Run(ctx, work, opts...)
}

// DoAsync is like Do but only the error returned by work decides whether it
// is retried. Failures of requests and streams handled by work do not fail
// the attempt.
func (d *Driver) DoAsync(ctx context.Context, work func(ctx context.Context, t *Transaction) error,
	opts ...RunOption,
) error {
	return d.runner.RunAsync(ctx, work, opts...)
}

// DoWithResult runs work with d.Do and returns the result of the successful
// attempt.
func DoWithResult[T any](ctx context.Context, d *Driver,
	work func(ctx context.Context, t *Transaction) (T, error), opts ...RunOption,
) (T, error) {
	return runner.RunWithResult(ctx, d.runner, work, opts...)
}

// Stats returns a snapshot of the session pool.
func (d *Driver) Stats() PoolStats {
	return d.provider.Stats()
}

// Close closes the session pool and deletes its sessions. Transactions
// running after Close fail to acquire a session.
func (d *Driver) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		if err := d.provider.Close(ctx); err != nil {
			d.closeErr = xerrors.WithStackTrace(err)
		}
	})

	return d.closeErr
}
