package jam

import (
	"fmt"
)

// Bytes is a length-prefixed octet blob: E(|b|) ⌢ b.
func Bytes[T ~[]byte]() Codec[T] {
	return Func(
		func(v T, dst []byte) (int, error) {
			n := naturalSize(uint64(len(v)))
			if err := checkDst(dst, n+len(v)); err != nil {
				return 0, err
			}
			putNatural(dst, uint64(len(v)))
			copy(dst[n:], v)
			return n + len(v), nil
		},
		func(src []byte) (T, int, error) {
			l, n, err := DeserializeUint64(src)
			if err != nil {
				return nil, 0, fmt.Errorf(ErrDecodingLength, err)
			}
			if l > uint64(len(src)-n) {
				return nil, 0, fmt.Errorf(ErrLengthTooLarge, l, len(src)-n)
			}
			if l == 0 {
				return nil, n, nil
			}
			out := make(T, l)
			copy(out, src[n:n+int(l)])
			return out, n + int(l), nil
		},
		func(v T) int { return naturalSize(uint64(len(v))) + len(v) },
	)
}

// Blob is Bytes over plain []byte.
var Blob = Bytes[[]byte]()

// FixedBytes encodes a fixed size octet array without any prefix. The view
// function exposes the array's backing storage, e.g. func(h *Hash) []byte { return h[:] }.
func FixedBytes[A any](size int, view func(*A) []byte) Codec[A] {
	return Func(
		func(v A, dst []byte) (int, error) {
			if err := checkDst(dst, size); err != nil {
				return 0, err
			}
			copy(dst, view(&v))
			return size, nil
		},
		func(src []byte) (A, int, error) {
			var a A
			if err := checkSrc(src, size); err != nil {
				return a, 0, err
			}
			copy(view(&a), src[:size])
			return a, size, nil
		},
		func(A) int { return size },
	)
}

// RawBytes writes a byte slice with a known out-of-band length. On decode it
// expects exactly size bytes.
func RawBytes(size int) Codec[[]byte] {
	return Func(
		func(v []byte, dst []byte) (int, error) {
			if len(v) != size {
				return 0, fmt.Errorf("%w: want %d bytes, got %d", ErrFixedLength, size, len(v))
			}
			if err := checkDst(dst, size); err != nil {
				return 0, err
			}
			copy(dst, v)
			return size, nil
		},
		func(src []byte) ([]byte, int, error) {
			if err := checkSrc(src, size); err != nil {
				return nil, 0, err
			}
			out := make([]byte, size)
			copy(out, src[:size])
			return out, size, nil
		},
		func([]byte) int { return size },
	)
}
