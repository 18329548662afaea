package pool

import (
	"github.com/jonboulle/clockwork"

	"github.com/spanlite/spanlite-go-sdk/internal/requestid"
	"github.com/spanlite/spanlite-go-sdk/internal/session"
	"github.com/spanlite/spanlite-go-sdk/internal/transport"
	"github.com/spanlite/spanlite-go-sdk/trace"
)

type (
	// options are shared by Pool and Multiplexed.
	options struct {
		clock    clockwork.Clock
		trace    *trace.Pool
		requests *requestid.Generator
	}
	Option func(o *options)
)

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func WithTrace(t *trace.Pool) Option {
	return func(o *options) {
		o.trace = o.trace.Compose(t)
	}
}

// WithRequestIDs sets the generator tagging calls which create, ping, begin
// on and delete sessions.
func WithRequestIDs(g *requestid.Generator) Option {
	return func(o *options) {
		o.requests = g
	}
}

func newOptions(opts []Option) options {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.requests == nil {
		o.requests = requestid.New()
	}

	return o
}

func (o *options) newSession(ts *transport.Session, t transport.Transport) *session.Session {
	return session.New(ts, t, session.WithClock(o.clock), session.WithRequestIDs(o.requests))
}
