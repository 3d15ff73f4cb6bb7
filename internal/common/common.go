package common

// ToPointer is a helper function to create a pointer to a value.
func ToPointer[T any](v T) *T {
	return &v
}
