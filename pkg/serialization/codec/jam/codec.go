// Package jam implements the graypaper serialization codec (appendix C) as a
// set of composable, statically typed codecs.
package jam

import (
	"fmt"
)

// Codec is the contract shared by every encoder/decoder pair.
// Encode writes v into dst and reports how many bytes were written.
// Decode reads one value from the front of src and reports how many bytes were consumed.
// EncodedSize reports the exact length Encode will write for v.
type Codec[T any] interface {
	Encode(v T, dst []byte) (int, error)
	Decode(src []byte) (T, int, error)
	EncodedSize(v T) int
}

// Marshal encodes v into a freshly allocated buffer of exactly EncodedSize(v) bytes.
func Marshal[T any](c Codec[T], v T) ([]byte, error) {
	dst := make([]byte, c.EncodedSize(v))
	n, err := c.Encode(v, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// MustMarshal is Marshal for values that are known to be encodable. It panics otherwise.
func MustMarshal[T any](c Codec[T], v T) []byte {
	b, err := Marshal(c, v)
	if err != nil {
		panic(fmt.Errorf("marshal %T: %w", v, err))
	}
	return b
}

// Unmarshal decodes a single value and requires the whole input to be consumed.
func Unmarshal[T any](c Codec[T], src []byte) (T, error) {
	v, n, err := c.Decode(src)
	if err != nil {
		return v, err
	}
	if n != len(src) {
		return v, fmt.Errorf("%w: %d of %d bytes consumed", ErrTrailingBytes, n, len(src))
	}
	return v, nil
}

// Func builds a codec from three plain functions. It is the building block for
// leaf codecs that don't fit any of the combinators.
func Func[T any](
	encode func(v T, dst []byte) (int, error),
	decode func(src []byte) (T, int, error),
	size func(v T) int,
) Codec[T] {
	return funcCodec[T]{encode: encode, decode: decode, size: size}
}

type funcCodec[T any] struct {
	encode func(v T, dst []byte) (int, error)
	decode func(src []byte) (T, int, error)
	size   func(v T) int
}

func (f funcCodec[T]) Encode(v T, dst []byte) (int, error) { return f.encode(v, dst) }
func (f funcCodec[T]) Decode(src []byte) (T, int, error)   { return f.decode(src) }
func (f funcCodec[T]) EncodedSize(v T) int                 { return f.size(v) }

// Transform adapts a codec of A into a codec of B through a pair of pure conversions.
// Used for named types (timeslots, service ids) and for wrapping a wire shape into a domain type.
func Transform[A, B any](c Codec[A], to func(A) B, from func(B) A) Codec[B] {
	return Func(
		func(v B, dst []byte) (int, error) { return c.Encode(from(v), dst) },
		func(src []byte) (B, int, error) {
			a, n, err := c.Decode(src)
			if err != nil {
				var zero B
				return zero, n, err
			}
			return to(a), n, nil
		},
		func(v B) int { return c.EncodedSize(from(v)) },
	)
}

// Empty encodes nothing. Used for payload-less union variants.
type Empty struct{}

var Nothing Codec[Empty] = Func(
	func(Empty, []byte) (int, error) { return 0, nil },
	func([]byte) (Empty, int, error) { return Empty{}, 0, nil },
	func(Empty) int { return 0 },
)

func checkDst(dst []byte, n int) error {
	if len(dst) < n {
		return fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, n, len(dst))
	}
	return nil
}

func checkSrc(src []byte, n int) error {
	if len(src) < n {
		return fmt.Errorf("%w: need %d, have %d", ErrUnexpectedEOF, n, len(src))
	}
	return nil
}
