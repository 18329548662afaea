package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spanlite/spanlite-go-sdk/trace"
)

// Runner makes trace.Runner with logging events of transaction runs
func Runner(l *zap.Logger) *trace.Runner {
	l = l.Named("runner")

	return &trace.Runner{
		OnRun: func(start trace.RunnerRunStartInfo) func(trace.RunnerRunDoneInfo) {
			label, async := start.Label, start.Async

			return func(info trace.RunnerRunDoneInfo) {
				if info.Error == nil {
					l.Debug("transaction done",
						zap.String("label", label),
						zap.Bool("async", async),
						zap.Int("attempts", info.Attempts),
						latency(info.Latency),
					)

					return
				}
				l.Log(failureLevel(info.Error, zapcore.ErrorLevel), "transaction failed",
					append(errorFields(info.Error),
						zap.String("label", label),
						zap.Bool("async", async),
						zap.Int("attempts", info.Attempts),
						latency(info.Latency),
					)...,
				)
			}
		},
		OnAttempt: func(start trace.RunnerAttemptStartInfo) func(trace.RunnerAttemptDoneInfo) {
			attempt := start.Attempt

			return func(info trace.RunnerAttemptDoneInfo) {
				if info.Error == nil || !info.Retryable {
					return
				}
				l.Info("attempt failed, retrying", append(errorFields(info.Error),
					zap.Int("attempt", attempt),
					zap.String("sessionID", info.SessionID),
					zap.Duration("delay", info.Delay),
				)...)
			}
		},
	}
}
