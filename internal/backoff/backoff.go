package backoff

import (
	"time"

	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/internal/xrand"
)

// Backoff is the interface that contains logic of delaying operation retry.
type Backoff interface {
	// Delay returns the pause before retry attempt i after err.
	Delay(err error, i int) time.Duration
}

// Default parameters of transaction retries.
const (
	DefaultSlot    = time.Second
	DefaultCeiling = 5
	DefaultJitter  = time.Second
)

var Default = New()

var _ Backoff = (*logBackoff)(nil)

// logBackoff contains logarithmic Backoff policy.
type logBackoff struct {
	// slotDuration is a size of a single time slot used in Backoff Delay
	// calculation.
	// If slotDuration is less or equal to zero, then the time.Second value is
	// used.
	slotDuration time.Duration

	// ceiling is a maximum degree of Backoff Delay growth.
	ceiling uint

	// jitter is an upper bound (exclusive) of random time added to every
	// exponential Delay.
	jitter time.Duration

	// generator of jitter
	r xrand.Rand
}

type option func(b *logBackoff)

func WithSlotDuration(slotDuration time.Duration) option {
	return func(b *logBackoff) {
		b.slotDuration = slotDuration
	}
}

func WithCeiling(ceiling uint) option {
	return func(b *logBackoff) {
		b.ceiling = ceiling
	}
}

func WithJitter(jitter time.Duration) option {
	return func(b *logBackoff) {
		b.jitter = jitter
	}
}

func WithSeed(seed int64) option {
	return func(b *logBackoff) {
		b.r = xrand.New(xrand.WithLock(), xrand.WithSeed(seed))
	}
}

func New(opts ...option) logBackoff {
	b := logBackoff{
		slotDuration: DefaultSlot,
		ceiling:      DefaultCeiling,
		jitter:       DefaultJitter,
		r:            xrand.New(xrand.WithLock()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}

	return b
}

// Delay returns retry delay guidance attached to err by the server or, if
// there is none, slot * 2^min(i, ceiling) plus a jitter from [0, jitter).
func (b logBackoff) Delay(err error, i int) time.Duration {
	if d, has := xerrors.RetryDelay(err); has {
		return d
	}

	return b.exponential(i)
}

func (b logBackoff) exponential(i int) time.Duration {
	s := b.slotDuration
	if s <= 0 {
		s = time.Second
	}
	if i < 0 {
		i = 0
	}
	d := s * time.Duration(1<<min(uint(i), b.ceiling))
	if b.jitter <= 0 {
		return d
	}

	return d + time.Duration(b.r.Int64(int64(b.jitter)))
}
