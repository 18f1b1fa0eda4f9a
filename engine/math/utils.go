// Package math holds the small generic helpers mgl32 and math32 lack.
package math

import (
	gomath "math"

	"golang.org/x/exp/constraints"
)

// Clamp limits f to [low, high].
func Clamp[T constraints.Ordered](f, low, high T) T {
	return min(max(f, low), high)
}

// Wrap maps f into the periodic range [low, high).
func Wrap[T constraints.Float](f, low, high T) T {
	width := float64(high - low)
	if width <= 0 {
		return low
	}
	offset := float64(f-low) - width*gomath.Floor(float64(f-low)/width)
	return low + T(offset)
}
