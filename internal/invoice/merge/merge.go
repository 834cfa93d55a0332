// Package merge resolves "supplied value or keep the current one" for optional fields.
package merge

// Pick returns a copy of next when it was supplied, otherwise current.
// The result is nil only when neither side holds a value.
func Pick[T any](next, current *T) *T {
	if next != nil {
		v := *next
		return &v
	}
	return current
}

// Value returns *next when supplied, otherwise current.
func Value[T any](next *T, current T) T {
	if next != nil {
		return *next
	}
	return current
}

// Deref returns *v or the zero value.
func Deref[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// NonEmpty returns a pointer to s, or nil when s is empty.
func NonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Any reports whether any of the pointers is set.
func Any[T any](values ...*T) bool {
	for _, v := range values {
		if v != nil {
			return true
		}
	}
	return false
}
