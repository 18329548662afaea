package stream

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// Row is a fully decoded row of a result set.
type Row struct {
	fields []string
	values []*structpb.Value
}

func (r Row) Fields() []string {
	return r.fields
}

func (r Row) Values() []*structpb.Value {
	return r.values
}

// Value returns the value of column name.
func (r Row) Value(name string) (*structpb.Value, bool) {
	for i, f := range r.fields {
		if f == name {
			return r.values[i], true
		}
	}

	return nil, false
}

// accumulator holds values of rows which are not flushed to the consumer
// yet. It is never mutated: every step returns a new accumulator, so a
// checkpoint taken at a resume token cannot be changed by later chunks.
type accumulator struct {
	values []*structpb.Value

	// chunked means the last value continues in the next chunk.
	chunked bool
}

func (a accumulator) add(values []*structpb.Value, chunked bool) (accumulator, error) {
	if len(values) == 0 {
		return a, nil
	}
	next := make([]*structpb.Value, len(a.values), len(a.values)+len(values))
	copy(next, a.values)
	for i, v := range values {
		if i == 0 && a.chunked {
			merged, err := merge(next[len(next)-1], v)
			if err != nil {
				return a, err
			}
			next[len(next)-1] = merged

			continue
		}
		next = append(next, v)
	}

	return accumulator{
		values:  next,
		chunked: chunked,
	}, nil
}

// split cuts complete rows of given width off the accumulator.
func (a accumulator) split(fields []string) ([]Row, accumulator) {
	width := len(fields)
	if width == 0 {
		return nil, a
	}
	complete := len(a.values)
	if a.chunked {
		complete--
	}
	n := complete / width
	if n == 0 {
		return nil, a
	}
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{
			fields: fields,
			values: a.values[i*width : (i+1)*width : (i+1)*width],
		}
	}
	rest := make([]*structpb.Value, len(a.values)-n*width)
	copy(rest, a.values[n*width:])

	return rows, accumulator{
		values:  rest,
		chunked: a.chunked,
	}
}

func (a accumulator) empty() bool {
	return len(a.values) == 0 && !a.chunked
}
