package jam

import (
	"fmt"
)

// FieldDescriptor is one entry in a struct's ordered field table.
type FieldDescriptor[S any] struct {
	Name   string
	encode func(s *S, dst []byte) (int, error)
	decode func(s *S, src []byte) (int, error)
	size   func(s *S) int
}

// Field binds a named field of S, reachable through get, to its codec.
func Field[S, F any](name string, c Codec[F], get func(*S) *F) FieldDescriptor[S] {
	return FieldDescriptor[S]{
		Name: name,
		encode: func(s *S, dst []byte) (int, error) {
			return c.Encode(*get(s), dst)
		},
		decode: func(s *S, src []byte) (int, error) {
			v, n, err := c.Decode(src)
			if err != nil {
				return 0, err
			}
			*get(s) = v
			return n, nil
		},
		size: func(s *S) int {
			return c.EncodedSize(*get(s))
		},
	}
}

// Struct concatenates the encodings of the given fields in order.
func Struct[S any](fields ...FieldDescriptor[S]) Codec[S] {
	return Func(
		func(v S, dst []byte) (int, error) {
			off := 0
			for _, f := range fields {
				n, err := f.encode(&v, dst[off:])
				if err != nil {
					return off, fmt.Errorf(ErrEncodingStructField, f.Name, err)
				}
				off += n
			}
			return off, nil
		},
		func(src []byte) (S, int, error) {
			var v S
			off := 0
			for _, f := range fields {
				n, err := f.decode(&v, src[off:])
				if err != nil {
					return v, 0, fmt.Errorf(ErrDecodingStructField, f.Name, err)
				}
				off += n
			}
			return v, off, nil
		},
		func(v S) int {
			size := 0
			for _, f := range fields {
				size += f.size(&v)
			}
			return size
		},
	)
}
