package stream

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
)

// merge joins two parts of a value which was split across chunks. Only
// strings and lists are ever split.
func merge(head, tail *structpb.Value) (*structpb.Value, error) {
	switch h := head.GetKind().(type) {
	case *structpb.Value_StringValue:
		t, ok := tail.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, xerrors.WithStackTrace(fmt.Errorf("%w: string continued by %T", errMerge, tail.GetKind()))
		}

		return structpb.NewStringValue(h.StringValue + t.StringValue), nil
	case *structpb.Value_ListValue:
		t, ok := tail.GetKind().(*structpb.Value_ListValue)
		if !ok {
			return nil, xerrors.WithStackTrace(fmt.Errorf("%w: list continued by %T", errMerge, tail.GetKind()))
		}
		values, err := mergeLists(h.ListValue.GetValues(), t.ListValue.GetValues())
		if err != nil {
			return nil, xerrors.WithStackTrace(err)
		}

		return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
	default:
		return nil, xerrors.WithStackTrace(fmt.Errorf("%w: %T cannot be chunked", errMerge, head.GetKind()))
	}
}

// mergeLists joins the elements of a split list. The last element of head
// and the first element of tail are two parts of one element if both are
// strings or both are lists.
func mergeLists(head, tail []*structpb.Value) ([]*structpb.Value, error) {
	if len(head) == 0 || len(tail) == 0 {
		return append(append(make([]*structpb.Value, 0, len(head)+len(tail)), head...), tail...), nil
	}
	merged := make([]*structpb.Value, 0, len(head)+len(tail))
	merged = append(merged, head[:len(head)-1]...)

	last, first := head[len(head)-1], tail[0]
	if !mergeable(last, first) {
		return append(append(merged, last), tail...), nil
	}
	v, err := merge(last, first)
	if err != nil {
		return nil, xerrors.WithStackTrace(err)
	}

	return append(append(merged, v), tail[1:]...), nil
}

func mergeable(head, tail *structpb.Value) bool {
	switch head.GetKind().(type) {
	case *structpb.Value_StringValue:
		_, ok := tail.GetKind().(*structpb.Value_StringValue)

		return ok
	case *structpb.Value_ListValue:
		_, ok := tail.GetKind().(*structpb.Value_ListValue)

		return ok
	default:
		return false
	}
}
