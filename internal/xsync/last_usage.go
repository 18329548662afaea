package xsync

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

type (
	// LastUsage tracks the moment an object was used last time.
	// While at least one usage is started the object counts as used right now.
	LastUsage interface {
		Get() time.Time
		Start() (stop func())
		Touch()
	}
	lastUsage struct {
		locks atomic.Int64
		t     atomic.Pointer[time.Time]
		clock clockwork.Clock
	}
	lastUsageOption func(g *lastUsage)
)

func WithClock(clock clockwork.Clock) lastUsageOption {
	return func(g *lastUsage) {
		g.clock = clock
	}
}

func NewLastUsage(opts ...lastUsageOption) *lastUsage {
	lastUsage := &lastUsage{
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(lastUsage)
		}
	}

	lastUsage.Touch()

	return lastUsage
}

func (g *lastUsage) Get() time.Time {
	if g.locks.Load() == 0 {
		return *g.t.Load()
	}

	return g.clock.Now()
}

func (g *lastUsage) Touch() {
	now := g.clock.Now()
	g.t.Store(&now)
}

func (g *lastUsage) Start() (stop func()) {
	g.locks.Add(1)

	return sync.OnceFunc(func() {
		if g.locks.Add(-1) == 0 {
			g.Touch()
		}
	})
}
