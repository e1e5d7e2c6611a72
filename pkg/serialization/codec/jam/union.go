package jam

import (
	"fmt"
)

// Variant is one branch of a tagged union over T.
type Variant[T any] struct {
	Tag    byte
	encode func(v T, dst []byte) (int, bool, error)
	decode func(src []byte) (T, int, error)
	size   func(v T) (int, bool)
}

// Case declares a union branch: values for which unwrap succeeds are written
// as Tag ⌢ E(payload); decoding Tag reads a payload and wraps it back into T.
func Case[T, V any](tag byte, c Codec[V], wrap func(V) T, unwrap func(T) (V, bool)) Variant[T] {
	return Variant[T]{
		Tag: tag,
		encode: func(v T, dst []byte) (int, bool, error) {
			p, ok := unwrap(v)
			if !ok {
				return 0, false, nil
			}
			n, err := c.Encode(p, dst)
			return n, true, err
		},
		decode: func(src []byte) (T, int, error) {
			p, n, err := c.Decode(src)
			if err != nil {
				var zero T
				return zero, 0, err
			}
			return wrap(p), n, nil
		},
		size: func(v T) (int, bool) {
			p, ok := unwrap(v)
			if !ok {
				return 0, false
			}
			return c.EncodedSize(p), true
		},
	}
}

// Union is the "either one of" codec: a leading discriminant byte selects the variant.
func Union[T any](variants ...Variant[T]) Codec[T] {
	byTag := make(map[byte]Variant[T], len(variants))
	for _, v := range variants {
		byTag[v.Tag] = v
	}
	return Func(
		func(v T, dst []byte) (int, error) {
			if err := checkDst(dst, 1); err != nil {
				return 0, err
			}
			for _, variant := range variants {
				n, ok, err := variant.encode(v, dst[1:])
				if !ok {
					continue
				}
				dst[0] = variant.Tag
				return n + 1, err
			}
			return 0, fmt.Errorf(ErrUnmatchedVariant, v)
		},
		func(src []byte) (T, int, error) {
			var zero T
			if err := checkSrc(src, 1); err != nil {
				return zero, 0, err
			}
			variant, ok := byTag[src[0]]
			if !ok {
				return zero, 0, fmt.Errorf(ErrUnknownVariant, src[0])
			}
			v, n, err := variant.decode(src[1:])
			if err != nil {
				return zero, 0, err
			}
			return v, n + 1, nil
		},
		func(v T) int {
			for _, variant := range variants {
				if n, ok := variant.size(v); ok {
					return n + 1
				}
			}
			return 1
		},
	)
}
