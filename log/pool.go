package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
	"github.com/spanlite/spanlite-go-sdk/trace"
)

// Pool makes trace.Pool with logging events of the session pool
//
//nolint:funlen
func Pool(l *zap.Logger) *trace.Pool {
	l = l.Named("pool")

	return &trace.Pool{
		OnNew: func(trace.PoolNewStartInfo) func(trace.PoolNewDoneInfo) {
			return func(info trace.PoolNewDoneInfo) {
				l.Info("pool started",
					zap.Int("min", info.Min),
					zap.Int("max", info.Max),
					zap.Bool("multiplexed", info.Multiplexed),
				)
			}
		},
		OnClose: func(trace.PoolCloseStartInfo) func(trace.PoolCloseDoneInfo) {
			l.Debug("pool closing")

			return func(info trace.PoolCloseDoneInfo) {
				if info.Error == nil {
					l.Info("pool closed")

					return
				}
				l.Error("pool close failed", errorFields(info.Error)...)
			}
		},
		OnAcquire: func(start trace.PoolAcquireStartInfo) func(trace.PoolAcquireDoneInfo) {
			kind := start.Kind

			return func(info trace.PoolAcquireDoneInfo) {
				if info.Error == nil {
					l.Debug("session acquired",
						zap.String("kind", kind),
						zap.String("sessionID", info.SessionID),
						latency(info.Latency),
					)

					return
				}
				lvl := zapcore.DebugLevel
				if xerrors.Is(info.Error, xerrors.ErrAcquireTimeout, xerrors.ErrPoolExhausted) {
					lvl = zapcore.WarnLevel
				}
				l.Log(lvl, "acquire failed", append(errorFields(info.Error),
					zap.String("kind", kind),
					latency(info.Latency),
				)...)
			}
		},
		OnRelease: func(start trace.PoolReleaseStartInfo) func(trace.PoolReleaseDoneInfo) {
			sessionID := start.SessionID

			return func(info trace.PoolReleaseDoneInfo) {
				if info.Error != nil {
					l.Debug("release failed", append(errorFields(info.Error),
						zap.String("sessionID", sessionID),
					)...)
				}
			}
		},
		OnWait: func(start trace.PoolWaitStartInfo) func(trace.PoolWaitDoneInfo) {
			l.Debug("waiting for session", zap.Int("waiters", start.Waiters))

			return nil
		},
		OnSessionCreate: func(start trace.PoolSessionCreateStartInfo) func(trace.PoolSessionCreateDoneInfo) {
			count := start.Count

			return func(info trace.PoolSessionCreateDoneInfo) {
				if info.Error == nil {
					l.Debug("sessions created",
						zap.Int("requested", count),
						zap.Int("created", info.Created),
					)

					return
				}
				l.Log(failureLevel(info.Error, zapcore.WarnLevel), "session create failed",
					append(errorFields(info.Error),
						zap.Int("requested", count),
						zap.Int("created", info.Created),
					)...,
				)
			}
		},
		OnSessionDelete: func(start trace.PoolSessionDeleteStartInfo) func(trace.PoolSessionDeleteDoneInfo) {
			sessionID, reason := start.SessionID, start.Reason

			return func(info trace.PoolSessionDeleteDoneInfo) {
				if info.Error == nil {
					l.Debug("session deleted",
						zap.String("sessionID", sessionID),
						zap.String("reason", reason),
					)

					return
				}
				l.Debug("session delete failed", append(errorFields(info.Error),
					zap.String("sessionID", sessionID),
					zap.String("reason", reason),
				)...)
			}
		},
		OnSessionPing: func(start trace.PoolSessionPingStartInfo) func(trace.PoolSessionPingDoneInfo) {
			sessionID := start.SessionID

			return func(info trace.PoolSessionPingDoneInfo) {
				if info.Error == nil {
					l.Debug("session pinged", zap.String("sessionID", sessionID))

					return
				}
				l.Debug("session ping failed", append(errorFields(info.Error),
					zap.String("sessionID", sessionID),
				)...)
			}
		},
		OnTransactionInterrupt: func(info trace.PoolTransactionInterruptInfo) {
			l.Warn("inactive transaction closed",
				zap.String("sessionID", info.SessionID),
				zap.Duration("age", info.Age),
			)
		},
		OnChange: func(info trace.PoolChangeInfo) {
			if !l.Core().Enabled(zapcore.DebugLevel) {
				return
			}
			l.Debug("pool changed",
				zap.Int("idleReads", info.IdleReads),
				zap.Int("idleWrites", info.IdleWrites),
				zap.Int("inUse", info.InUse),
				zap.Int("creating", info.Creating),
				zap.Int("waiters", info.Waiters),
			)
		},
	}
}
