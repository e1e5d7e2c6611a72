package jam

import (
	"bytes"
	"fmt"
)

// Sequence is a length-discriminated sequence: E(|s|) ⌢ E(s_0) ⌢ E(s_1) ⌢ ...
func Sequence[T any](elem Codec[T]) Codec[[]T] {
	return Func(
		func(v []T, dst []byte) (int, error) {
			if err := checkDst(dst, naturalSize(uint64(len(v)))); err != nil {
				return 0, err
			}
			off := putNatural(dst, uint64(len(v)))
			n, err := encodeElements(elem, v, dst[off:])
			return off + n, err
		},
		func(src []byte) ([]T, int, error) {
			l, off, err := DeserializeUint64(src)
			if err != nil {
				return nil, 0, fmt.Errorf(ErrDecodingLength, err)
			}
			// every element takes at least one byte except for zero sized ones,
			// so this bounds allocation on hostile input
			if l > uint64(len(src)-off) && elem.EncodedSize(*new(T)) > 0 {
				return nil, 0, fmt.Errorf(ErrLengthTooLarge, l, len(src)-off)
			}
			out, n, err := decodeElements(elem, int(l), src[off:])
			return out, off + n, err
		},
		func(v []T) int { return naturalSize(uint64(len(v))) + elementsSize(elem, v) },
	)
}

// FixedSequence encodes exactly n elements with no length prefix.
func FixedSequence[T any](elem Codec[T], n int) Codec[[]T] {
	return Func(
		func(v []T, dst []byte) (int, error) {
			if len(v) != n {
				return 0, fmt.Errorf("%w: want %d elements, got %d", ErrFixedLength, n, len(v))
			}
			return encodeElements(elem, v, dst)
		},
		func(src []byte) ([]T, int, error) {
			return decodeElements(elem, n, src)
		},
		func(v []T) int { return elementsSize(elem, v) },
	)
}

func encodeElements[T any](elem Codec[T], v []T, dst []byte) (int, error) {
	off := 0
	for _, e := range v {
		n, err := elem.Encode(e, dst[off:])
		if err != nil {
			return off, err
		}
		off += n
	}
	return off, nil
}

func decodeElements[T any](elem Codec[T], count int, src []byte) ([]T, int, error) {
	if count == 0 {
		return nil, 0, nil
	}
	out := make([]T, 0, min(count, len(src)+1))
	off := 0
	for i := 0; i < count; i++ {
		e, n, err := elem.Decode(src[off:])
		if err != nil {
			return nil, 0, fmt.Errorf(ErrDecodingElement, i, err)
		}
		out = append(out, e)
		off += n
	}
	return out, off, nil
}

func elementsSize[T any](elem Codec[T], v []T) int {
	size := 0
	for _, e := range v {
		size += elem.EncodedSize(e)
	}
	return size
}

// Optional is a presence flag byte followed by the value when present.
func Optional[T any](c Codec[T]) Codec[*T] {
	return Func(
		func(v *T, dst []byte) (int, error) {
			if err := checkDst(dst, 1); err != nil {
				return 0, err
			}
			if v == nil {
				dst[0] = 0
				return 1, nil
			}
			dst[0] = 1
			n, err := c.Encode(*v, dst[1:])
			return n + 1, err
		},
		func(src []byte) (*T, int, error) {
			if err := checkSrc(src, 1); err != nil {
				return nil, 0, err
			}
			switch src[0] {
			case 0:
				return nil, 1, nil
			case 1:
				v, n, err := c.Decode(src[1:])
				if err != nil {
					return nil, 0, err
				}
				return &v, n + 1, nil
			}
			return nil, 0, fmt.Errorf("%w: %d", ErrInvalidOptionalFlag, src[0])
		},
		func(v *T) int {
			if v == nil {
				return 1
			}
			return 1 + c.EncodedSize(*v)
		},
	)
}

// SortedSet is a length-prefixed sequence of fixed size byte-array values that
// must be strictly ascending. Encoding sorts a copy, decoding rejects unsorted input.
func SortedSet[A any](size int, view func(*A) []byte) Codec[[]A] {
	seq := Sequence(FixedBytes(size, view))
	return Func(
		func(v []A, dst []byte) (int, error) {
			return seq.Encode(sortedCopy(v, view), dst)
		},
		func(src []byte) ([]A, int, error) {
			v, n, err := seq.Decode(src)
			if err != nil {
				return nil, 0, err
			}
			for i := 1; i < len(v); i++ {
				if bytes.Compare(view(&v[i-1]), view(&v[i])) >= 0 {
					return nil, 0, ErrUnsortedSet
				}
			}
			return v, n, nil
		},
		seq.EncodedSize,
	)
}
