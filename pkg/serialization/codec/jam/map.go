package jam

import (
	"bytes"
	"fmt"
	"slices"
)

// SortedMap encodes a dictionary as a length-prefixed sequence of (key, value)
// pairs ordered by key. Keys are compared with cmp; decoding requires strictly
// ascending keys so that every map has exactly one encoding.
func SortedMap[K comparable, V any](key Codec[K], value Codec[V], cmp func(a, b K) int) Codec[map[K]V] {
	return Func(
		func(m map[K]V, dst []byte) (int, error) {
			if err := checkDst(dst, naturalSize(uint64(len(m)))); err != nil {
				return 0, err
			}
			off := putNatural(dst, uint64(len(m)))
			for _, k := range SortedKeys(m, cmp) {
				n, err := key.Encode(k, dst[off:])
				if err != nil {
					return off, err
				}
				off += n
				n, err = value.Encode(m[k], dst[off:])
				if err != nil {
					return off, err
				}
				off += n
			}
			return off, nil
		},
		func(src []byte) (map[K]V, int, error) {
			l, off, err := DeserializeUint64(src)
			if err != nil {
				return nil, 0, fmt.Errorf(ErrDecodingLength, err)
			}
			if l > uint64(len(src)-off) {
				return nil, 0, fmt.Errorf(ErrLengthTooLarge, l, len(src)-off)
			}
			m := make(map[K]V, l)
			var prev K
			for i := uint64(0); i < l; i++ {
				k, n, err := key.Decode(src[off:])
				if err != nil {
					return nil, 0, fmt.Errorf(ErrDecodingMapKey, err)
				}
				off += n
				if i > 0 && cmp(prev, k) >= 0 {
					return nil, 0, ErrUnsortedMapKeys
				}
				prev = k
				v, n, err := value.Decode(src[off:])
				if err != nil {
					return nil, 0, fmt.Errorf(ErrDecodingMapValue, err)
				}
				off += n
				m[k] = v
			}
			return m, off, nil
		},
		func(m map[K]V) int {
			size := naturalSize(uint64(len(m)))
			for k, v := range m {
				size += key.EncodedSize(k) + value.EncodedSize(v)
			}
			return size
		},
	)
}

// SortedKeys returns the keys of m ordered by cmp.
func SortedKeys[K comparable, V any](m map[K]V, cmp func(a, b K) int) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, cmp)
	return keys
}

// CompareBytes orders fixed size byte arrays lexicographically.
func CompareBytes[A any](view func(*A) []byte) func(a, b A) int {
	return func(a, b A) int {
		return bytes.Compare(view(&a), view(&b))
	}
}

// CompareUnsigned orders integer keys numerically.
func CompareUnsigned[T Unsigned](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func sortedCopy[A any](v []A, view func(*A) []byte) []A {
	out := slices.Clone(v)
	slices.SortFunc(out, CompareBytes(view))
	return out
}
