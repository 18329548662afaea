package trace

// call identifies the function which emitted an event.
type call interface {
	FunctionID() string
}
