package trace

import (
	"context"
)

type (
	// Stream specified trace of resumable result stream activity.
	Stream struct {
		OnOpen    func(StreamOpenStartInfo) func(StreamOpenDoneInfo)
		OnRestart func(StreamRestartInfo)
		OnFlush   func(StreamFlushInfo)
		OnClose   func(StreamCloseInfo)
	}
	StreamOpenStartInfo struct {
		// Context make available context in trace callback function.
		// Pointer to context provide replacement of context in trace callback function.
		// Warning: concurrent access to pointer on client side must be excluded.
		// Safe replacement of context are provided only inside callback function
		Context     *context.Context
		Call        call
		RequestID   string
		ResumeToken []byte
	}
	StreamOpenDoneInfo struct {
		Error error
	}
	// StreamRestartInfo describes a transparent reopen of the underlying stream.
	StreamRestartInfo struct {
		RequestID   string
		ResumeToken []byte
		Restarts    int
		Error       error
	}
	StreamFlushInfo struct {
		Rows int
		// Forced is true when rows are flushed without a resume token because
		// too many chunks were buffered.
		Forced bool
	}
	StreamCloseInfo struct {
		Rows  int
		Error error
	}
)
