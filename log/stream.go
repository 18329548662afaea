package log

import (
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/spanlite/spanlite-go-sdk/trace"
)

// Stream makes trace.Stream with logging events of resumable result streams
func Stream(l *zap.Logger) *trace.Stream {
	l = l.Named("stream")

	return &trace.Stream{
		OnOpen: func(start trace.StreamOpenStartInfo) func(trace.StreamOpenDoneInfo) {
			requestID, token := start.RequestID, hex.EncodeToString(start.ResumeToken)

			return func(info trace.StreamOpenDoneInfo) {
				if info.Error == nil {
					l.Debug("stream opened",
						zap.String("requestID", requestID),
						zap.String("resumeToken", token),
					)

					return
				}
				l.Debug("stream open failed", append(errorFields(info.Error),
					zap.String("requestID", requestID),
					zap.String("resumeToken", token),
				)...)
			}
		},
		OnRestart: func(info trace.StreamRestartInfo) {
			l.Info("stream restarted", append(errorFields(info.Error),
				zap.String("requestID", info.RequestID),
				zap.String("resumeToken", hex.EncodeToString(info.ResumeToken)),
				zap.Int("restarts", info.Restarts),
			)...)
		},
		OnFlush: func(info trace.StreamFlushInfo) {
			if info.Forced {
				l.Debug("buffered rows flushed without resume token", zap.Int("rows", info.Rows))
			}
		},
		OnClose: func(info trace.StreamCloseInfo) {
			if info.Error == nil {
				l.Debug("stream closed", zap.Int("rows", info.Rows))

				return
			}
			l.Debug("stream failed", append(errorFields(info.Error),
				zap.Int("rows", info.Rows),
			)...)
		},
	}
}
