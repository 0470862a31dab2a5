package pointer

// To returns a pointer to the provided value
func To[T any](value T) *T {
	return &value
}

// OrDefault returns the pointed to value if not nil, otherwise the default value
func OrDefault[T any](value *T, defaultValue T) T {
	if value != nil {
		return *value
	}
	return defaultValue
}

// Copy returns a pointer that's a copy of the provided value
func Copy[T any](value *T) *T {
	if value == nil {
		return nil
	}
	return To(*value)
}
