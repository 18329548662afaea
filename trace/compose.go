package trace

// composeOptions is a holder of options
type composeOptions struct {
	panicCallback func(e interface{})
}

// ComposeOption specified trace compose option
type ComposeOption func(o *composeOptions)

// WithPanicCallback specified behavior on panic
func WithPanicCallback(cb func(e interface{})) ComposeOption {
	return func(o *composeOptions) {
		o.panicCallback = cb
	}
}

func newComposeOptions(opts []ComposeOption) composeOptions {
	var options composeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	return options
}

// composeStartDone joins two start/done hooks into one calling both in order.
func composeStartDone[S, D any](h1, h2 func(S) func(D), options composeOptions) func(S) func(D) {
	if h1 == nil {
		return h2
	}
	if h2 == nil {
		return h1
	}

	return func(s S) func(D) {
		if options.panicCallback != nil {
			defer func() {
				if e := recover(); e != nil {
					options.panicCallback(e)
				}
			}()
		}
		r1, r2 := h1(s), h2(s)

		return func(d D) {
			if options.panicCallback != nil {
				defer func() {
					if e := recover(); e != nil {
						options.panicCallback(e)
					}
				}()
			}
			if r1 != nil {
				r1(d)
			}
			if r2 != nil {
				r2(d)
			}
		}
	}
}

func composeEvent[I any](h1, h2 func(I), options composeOptions) func(I) {
	if h1 == nil {
		return h2
	}
	if h2 == nil {
		return h1
	}

	return func(info I) {
		if options.panicCallback != nil {
			defer func() {
				if e := recover(); e != nil {
					options.panicCallback(e)
				}
			}()
		}
		h1(info)
		h2(info)
	}
}

func startDone[S, D any](h func(S) func(D), s S) func(D) {
	if h == nil {
		return func(D) {}
	}
	res := h(s)
	if res == nil {
		return func(D) {}
	}

	return res
}

func event[I any](h func(I), info I) {
	if h != nil {
		h(info)
	}
}
