package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector length differs from the
	// dimension established by a store, index or query target.
	ErrDimensionMismatch = errors.New("vector: dimension mismatch")
	// ErrInvalidVector is returned for vectors a metric cannot score, such as
	// a zero-magnitude vector under cosine, or vectors holding NaN/Inf.
	ErrInvalidVector = errors.New("vector: invalid vector")
	// ErrNotFound is returned when a (document id, field key) pair is absent.
	ErrNotFound = errors.New("vector: not found")
)

// DimensionError wraps ErrDimensionMismatch with the offending sizes.
func DimensionError(got, want int) error {
	return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, got, want)
}

// CheckDimension validates vec against an established dimension. A zero
// dimension means no dimension has been established yet.
func CheckDimension(vec []float32, dim int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidVector)
	}
	if dim > 0 && len(vec) != dim {
		return DimensionError(len(vec), dim)
	}
	return nil
}
