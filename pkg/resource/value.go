package resource

// GetState returns the current state of the host store.
type GetState func() any

// Meta describes the action an option is resolved for. It is passed to
// computed option values alongside the state accessor.
type Meta struct {
	ActionID     string
	ResourceName string
	PluralName   string
	URL          string
}

// Value is an option value that is either unset, a literal, or computed from
// runtime state at call time. The zero Value is unset.
type Value[T any] struct {
	literal  T
	compute  func(GetState, Meta) (T, bool)
	defined  bool
	computed bool
}

// Literal returns a Value holding v.
func Literal[T any](v T) Value[T] {
	return Value[T]{literal: v, defined: true}
}

// Computed returns a Value whose content is fn's result at call time.
func Computed[T any](fn func(getState GetState, meta Meta) T) Value[T] {
	if fn == nil {
		return Value[T]{}
	}
	return Value[T]{
		compute: func(getState GetState, meta Meta) (T, bool) {
			return fn(getState, meta), true
		},
		defined:  true,
		computed: true,
	}
}

// ComputedOptional is like Computed, but fn may report that it has no value, in
// which case resolution falls through to the next lower layer.
func ComputedOptional[T any](fn func(getState GetState, meta Meta) (T, bool)) Value[T] {
	if fn == nil {
		return Value[T]{}
	}
	return Value[T]{compute: fn, defined: true, computed: true}
}

// IsSet reports whether the value is a literal or computed.
func (v Value[T]) IsSet() bool {
	return v.defined
}

// IsComputed reports whether the value depends on runtime state.
func (v Value[T]) IsComputed() bool {
	return v.computed
}

// Static returns the literal, if the value is one.
func (v Value[T]) Static() (T, bool) {
	if !v.defined || v.computed {
		var zero T
		return zero, false
	}
	return v.literal, true
}

// Get evaluates the value. Computed values are invoked exactly once per call.
func (v Value[T]) Get(getState GetState, meta Meta) (T, bool) {
	if !v.defined {
		var zero T
		return zero, false
	}
	if v.computed {
		return v.compute(getState, meta)
	}
	return v.literal, true
}

// Ptr converts an optional pointer into a literal Value, nil meaning unset.
func Ptr[T any](p *T) Value[T] {
	if p == nil {
		return Value[T]{}
	}
	return Literal(*p)
}

// NonEmpty returns a literal Value for s, or an unset Value when s is empty.
func NonEmpty(s string) Value[string] {
	if s == "" {
		return Value[string]{}
	}
	return Literal(s)
}
