package pool

import (
	"container/list"
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/spanlite/spanlite-go-sdk/config"
	"github.com/spanlite/spanlite-go-sdk/internal/session"
	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/trace"
)

// keeper maintains the pool until it is closed.
func (p *Pool) keeper(ctx context.Context) {
	ticker := p.clock.NewTicker(p.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.Chan():
			p.maintain(ctx)
		}
	}
}

// maintain runs one round of maintenance:
//   - deletes sessions idle longer than IdlesAfter beyond Min;
//   - pings sessions not used for KeepAlive;
//   - interrupts transactions open longer than CloseInactiveTransactionsAfter;
//   - creates sessions up to Min.
func (p *Pool) maintain(ctx context.Context) {
	defer p.onChange()

	var (
		now        = p.clock.Now()
		idlePings  []*session.Session
		inUsePings []*session.Session
	)
	p.mu.WithLock(func() {
		if p.closed {
			return
		}

		excess := len(p.index) - p.config.Min
		for _, l := range []*list.List{p.reads, p.writes} {
			for el := l.Front(); el != nil && excess > 0; {
				s := el.Value.(*session.Session) //nolint:forcetypeassert
				el = el.Next()
				if now.Sub(p.index[s].idleSince) >= p.config.IdlesAfter {
					p.removeLocked(s, reasonIdle)
					excess--
				}
			}
		}

		for _, l := range []*list.List{p.reads, p.writes} {
			for el := l.Front(); el != nil; {
				s := el.Value.(*session.Session) //nolint:forcetypeassert
				el = el.Next()
				if now.Sub(s.LastUsage()) >= p.config.KeepAlive {
					p.takeLocked(s)
					idlePings = append(idlePings, s)
				}
			}
		}

		for s, info := range p.index {
			if !info.inUse || s.Interrupted() {
				continue
			}
			age := now.Sub(s.LeasedSince())
			if d := p.config.CloseInactiveTransactionsAfter; d > 0 && age >= d && s.Interrupt(
				xerrors.ErrInactiveTransactionClosed,
			) {
				trace.PoolOnTransactionInterrupt(p.trace, s.ID(), age)
				p.removeLocked(s, reasonInactive)

				continue
			}
			if age >= p.config.KeepAlive && now.Sub(s.LastUsage()) >= p.config.KeepAlive {
				inUsePings = append(inUsePings, s)
			}
		}

		p.fillLocked()
	})

	for _, s := range idlePings {
		if ctx.Err() != nil {
			_ = p.Release(ctx, s)

			continue
		}
		_ = p.ping(s)
		_ = p.Release(ctx, s)
	}
	// The holder of an in-use session releases it, a failed ping only marks
	// it broken.
	for _, s := range inUsePings {
		if ctx.Err() != nil {
			break
		}
		_ = p.ping(s)
	}
}

// deleteSessions deletes sessions concurrently and returns the joined errors.
func deleteSessions(ctx context.Context, cfg config.SessionPool, t *trace.Pool,
	sessions []*session.Session, reason string,
) error {
	if len(sessions) == 0 {
		return nil
	}
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, s := range sessions {
		g.Go(func() error {
			if err := deleteSession(ctx, cfg, t, s, reason); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}

			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return xerrors.WithStackTrace(xerrors.Join(errs...))
	}

	return nil
}
