package jam

import (
	"math"
)

// Unsigned is the set of integer kinds that the fixed-width codecs accept.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// SerializeTrivialNatural writes x as l little-endian bytes (E_l in the graypaper).
func SerializeTrivialNatural[T Unsigned](x T, l int) []byte {
	bytes := make([]byte, l)
	putTrivial(bytes, uint64(x), l)
	return bytes
}

// DeserializeTrivialNatural reads a little-endian unsigned integer of len(serialized) bytes.
// Input shorter than the target width is treated as zero padded.
func DeserializeTrivialNatural[T Unsigned](serialized []byte) T {
	var u T
	for i := 0; i < len(serialized); i++ {
		u |= T(serialized[i]) << (8 * i)
	}
	return u
}

func putTrivial(dst []byte, x uint64, l int) {
	for i := 0; i < l; i++ {
		dst[i] = byte((x >> (8 * i)) & math.MaxUint8)
	}
}

// FixedUint is the E_l codec: an unsigned integer stored in exactly l little-endian bytes.
func FixedUint[T Unsigned](l int) Codec[T] {
	return Func(
		func(v T, dst []byte) (int, error) {
			if err := checkDst(dst, l); err != nil {
				return 0, err
			}
			putTrivial(dst, uint64(v), l)
			return l, nil
		},
		func(src []byte) (T, int, error) {
			if err := checkSrc(src, l); err != nil {
				return 0, 0, err
			}
			return DeserializeTrivialNatural[T](src[:l]), l, nil
		},
		func(T) int { return l },
	)
}

var (
	U8  = FixedUint[uint8](1)
	U16 = FixedUint[uint16](2)
	U32 = FixedUint[uint32](4)
	U64 = FixedUint[uint64](8)
)

// Bool is a single byte holding 0 or 1.
var Bool Codec[bool] = Func(
	func(v bool, dst []byte) (int, error) {
		if err := checkDst(dst, 1); err != nil {
			return 0, err
		}
		dst[0] = 0
		if v {
			dst[0] = 1
		}
		return 1, nil
	},
	func(src []byte) (bool, int, error) {
		if err := checkSrc(src, 1); err != nil {
			return false, 0, err
		}
		switch src[0] {
		case 0:
			return false, 1, nil
		case 1:
			return true, 1, nil
		}
		return false, 0, ErrDecodingBool
	},
	func(bool) int { return 1 },
)

// EncodeUint32 is a shorthand for E_4.
func EncodeUint32(x uint32) []byte { return SerializeTrivialNatural(x, 4) }

// EncodeUint64 is a shorthand for E_8.
func EncodeUint64(x uint64) []byte { return SerializeTrivialNatural(x, 8) }
