package safemath

import (
	"errors"
	"math/bits"
)

var ErrOverflow = errors.New("number overflow")

type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Add returns a + b and whether it fits in T.
func Add[T Unsigned](a, b T) (T, bool) {
	v := a + b
	return v, v >= a
}

// Sub returns a - b and whether it did not underflow.
func Sub[T Unsigned](a, b T) (T, bool) {
	return a - b, b <= a
}

// Mul returns a * b and whether it fits in T.
func Mul[T Unsigned](a, b T) (T, bool) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || uint64(T(lo)) != lo {
		return T(lo), false
	}
	return T(lo), true
}

// SaturatingAdd returns a + b clamped to the maximum of T.
func SaturatingAdd[T Unsigned](a, b T) T {
	if v, ok := Add(a, b); ok {
		return v
	}
	return ^T(0)
}

// SaturatingSub returns a - b clamped at zero.
func SaturatingSub[T Unsigned](a, b T) T {
	if v, ok := Sub(a, b); ok {
		return v
	}
	return 0
}
