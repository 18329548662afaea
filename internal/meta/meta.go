package meta

import (
	"context"

	"google.golang.org/grpc/metadata"
)

const (
	HeaderRequestID        = "x-goog-spanner-request-id"
	HeaderResourcePrefix   = "google-cloud-resource-prefix"
	HeaderLeaderAwareRoute = "x-goog-spanner-route-to-leader"
)

// WithRequestID returns a copy of parent context with request identifier header.
// The header is replaced, not appended, so a retried call carries a single id.
func WithRequestID(ctx context.Context, id string) context.Context {
	md, has := metadata.FromOutgoingContext(ctx)
	if !has {
		return metadata.AppendToOutgoingContext(ctx, HeaderRequestID, id)
	}
	md = md.Copy()
	md.Set(HeaderRequestID, id)

	return metadata.NewOutgoingContext(ctx, md)
}

// WithDatabase returns a copy of parent context with resource prefix header.
func WithDatabase(ctx context.Context, database string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, HeaderResourcePrefix, database)
}

// WithRouteToLeader marks read-write requests for leader aware routing.
func WithRouteToLeader(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, HeaderLeaderAwareRoute, "true")
}

// RequestID returns the request identifier header from outgoing context.
func RequestID(ctx context.Context) string {
	md, has := metadata.FromOutgoingContext(ctx)
	if !has {
		return ""
	}
	if values := md.Get(HeaderRequestID); len(values) > 0 {
		return values[len(values)-1]
	}

	return ""
}
