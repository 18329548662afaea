package config

import (
	"fmt"
	"time"

	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
)

const (
	DefaultMin                 = 25
	DefaultMax                 = 100
	DefaultIncStep             = 25
	DefaultIdlesAfter          = 10 * time.Minute
	DefaultKeepAlive           = 30 * time.Minute
	DefaultMaintenanceInterval = time.Minute
	DefaultCreateTimeout       = 5 * time.Second
	DefaultDeleteTimeout       = 500 * time.Millisecond
	DefaultPingTimeout         = 5 * time.Second

	// DefaultMultiplexedRefresh is the age after which the multiplexed session
	// is replaced by a new one.
	DefaultMultiplexedRefresh = 7 * 24 * time.Hour

	// DefaultTransactionTimeout bounds all attempts of one transaction.
	DefaultTransactionTimeout = time.Hour
)

// SessionPool is the configuration of a session pool.
type SessionPool struct {
	// Min is the number of sessions the pool keeps open.
	Min int `mapstructure:"min"`

	// Max is an upper bound of idle and checked out sessions.
	Max int `mapstructure:"max"`

	// IncStep is the largest batch of sessions asked for by one creation
	// request. The pool creates only the sessions missing up to Min and for
	// waiters not served by creation in progress, bounded by Max, in batches
	// of at most IncStep.
	IncStep int `mapstructure:"inc_step"`

	// IdlesAfter is the idle time after which a session beyond Min is deleted.
	IdlesAfter time.Duration `mapstructure:"idles_after"`

	// KeepAlive is the time without use after which a session is pinged.
	KeepAlive time.Duration `mapstructure:"keep_alive"`

	// AcquireTimeout limits waiting for a session. Zero means no limit.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`

	// Concurrency limits outstanding session creation requests. Zero means no limit.
	Concurrency int `mapstructure:"concurrency"`

	// WriteSessionFraction is the fraction of idle sessions holding a
	// prepared read-write transaction.
	WriteSessionFraction float64 `mapstructure:"write_session_fraction"`

	// CloseInactiveTransactionsAfter makes the pool forcibly end transactions
	// which are open longer. Zero disables it. Long running transactions
	// must not be used with this option.
	CloseInactiveTransactionsAfter time.Duration `mapstructure:"close_inactive_transactions_after"`

	// Fail makes Acquire fail immediately when the pool is exhausted instead
	// of waiting for a session.
	Fail bool `mapstructure:"fail"`

	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
	CreateTimeout       time.Duration `mapstructure:"create_timeout"`
	DeleteTimeout       time.Duration `mapstructure:"delete_timeout"`
	PingTimeout         time.Duration `mapstructure:"ping_timeout"`

	// Multiplexed replaces the pool by one multiplexed session.
	Multiplexed        bool          `mapstructure:"multiplexed"`
	MultiplexedRefresh time.Duration `mapstructure:"multiplexed_refresh"`
}

// Runner is the configuration of the transaction runner.
type Runner struct {
	// Timeout bounds all attempts of one transaction.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Default returns session pool configuration with default values.
func Default() SessionPool {
	return SessionPool{
		Min:                 DefaultMin,
		Max:                 DefaultMax,
		IncStep:             DefaultIncStep,
		IdlesAfter:          DefaultIdlesAfter,
		KeepAlive:           DefaultKeepAlive,
		MaintenanceInterval: DefaultMaintenanceInterval,
		CreateTimeout:       DefaultCreateTimeout,
		DeleteTimeout:       DefaultDeleteTimeout,
		PingTimeout:         DefaultPingTimeout,
		MultiplexedRefresh:  DefaultMultiplexedRefresh,
	}
}

func DefaultRunner() Runner {
	return Runner{
		Timeout: DefaultTransactionTimeout,
	}
}

var errInvalid = xerrors.New("invalid configuration")

func invalid(format string, args ...interface{}) error {
	return xerrors.WithStackTrace(fmt.Errorf("%w: "+format, append([]interface{}{errInvalid}, args...)...),
		xerrors.WithSkipDepth(1),
	)
}

// Validate checks the configuration eagerly.
func (c SessionPool) Validate() error {
	switch {
	case c.Multiplexed:
		if c.MultiplexedRefresh <= 0 {
			return invalid("multiplexed refresh must be positive, got %v", c.MultiplexedRefresh)
		}

		return nil
	case c.Max <= 0:
		return invalid("max must be positive, got %d", c.Max)
	case c.Min < 0 || c.Min > c.Max:
		return invalid("min must be in [0, max=%d], got %d", c.Max, c.Min)
	case c.IncStep <= 0:
		return invalid("inc step must be positive, got %d", c.IncStep)
	case c.Concurrency < 0:
		return invalid("concurrency must not be negative, got %d", c.Concurrency)
	case c.WriteSessionFraction < 0 || c.WriteSessionFraction > 1:
		return invalid("write session fraction must be in [0, 1], got %v", c.WriteSessionFraction)
	case c.IdlesAfter <= 0:
		return invalid("idles after must be positive, got %v", c.IdlesAfter)
	case c.KeepAlive <= 0:
		return invalid("keep alive must be positive, got %v", c.KeepAlive)
	case c.MaintenanceInterval <= 0:
		return invalid("maintenance interval must be positive, got %v", c.MaintenanceInterval)
	case c.AcquireTimeout < 0, c.CloseInactiveTransactionsAfter < 0,
		c.CreateTimeout < 0, c.DeleteTimeout < 0, c.PingTimeout < 0:
		return invalid("timeouts must not be negative")
	}

	return nil
}

func (c Runner) Validate() error {
	if c.Timeout <= 0 {
		return invalid("transaction timeout must be positive, got %v", c.Timeout)
	}

	return nil
}

// IsInvalid reports whether err is a configuration validation error.
func IsInvalid(err error) bool {
	return xerrors.Is(err, errInvalid)
}
