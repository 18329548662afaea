package trace

import (
	"context"
)

// Compose returns a new Stream which has functional fields composed both from t and x.
func (t *Stream) Compose(x *Stream, opts ...ComposeOption) *Stream {
	if t == nil {
		return x
	}
	if x == nil {
		return t
	}
	options := newComposeOptions(opts)

	return &Stream{
		OnOpen:    composeStartDone(t.OnOpen, x.OnOpen, options),
		OnRestart: composeEvent(t.OnRestart, x.OnRestart, options),
		OnFlush:   composeEvent(t.OnFlush, x.OnFlush, options),
		OnClose:   composeEvent(t.OnClose, x.OnClose, options),
	}
}

func StreamOnOpen(t *Stream, c *context.Context, call call, requestID string, resumeToken []byte) func(error) {
	if t == nil {
		return func(error) {}
	}
	res := startDone(t.OnOpen, StreamOpenStartInfo{
		Context:     c,
		Call:        call,
		RequestID:   requestID,
		ResumeToken: resumeToken,
	})

	return func(e error) {
		res(StreamOpenDoneInfo{Error: e})
	}
}

func StreamOnRestart(t *Stream, requestID string, resumeToken []byte, restarts int, err error) {
	if t == nil {
		return
	}
	event(t.OnRestart, StreamRestartInfo{
		RequestID:   requestID,
		ResumeToken: resumeToken,
		Restarts:    restarts,
		Error:       err,
	})
}

func StreamOnFlush(t *Stream, rows int, forced bool) {
	if t == nil {
		return
	}
	event(t.OnFlush, StreamFlushInfo{Rows: rows, Forced: forced})
}

func StreamOnClose(t *Stream, rows int, err error) {
	if t == nil {
		return
	}
	event(t.OnClose, StreamCloseInfo{Rows: rows, Error: err})
}
