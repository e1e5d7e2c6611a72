package jam

import (
	"encoding/binary"
	"math"
	"math/big"
	"math/bits"
)

// SerializeUint64 implements the general formula (able to encode naturals of up to 2^64)
func SerializeUint64(x uint64) []byte {
	bytes := make([]byte, naturalSize(x))
	putNatural(bytes, x)
	return bytes
}

// SerializeBigNatural is SerializeUint64 for arbitrary precision input.
// Values of 2^64 and above have no encoding.
func SerializeBigNatural(x *big.Int) ([]byte, error) {
	if x.Sign() < 0 || !x.IsUint64() {
		return nil, ErrNaturalOverflow
	}
	return SerializeUint64(x.Uint64()), nil
}

func naturalSize(x uint64) int {
	var l int
	for l = 0; l < 8; l++ {
		if x < (1 << (7 * (l + 1))) {
			break
		}
	}
	return l + 1
}

func putNatural(dst []byte, x uint64) int {
	l := naturalSize(x) - 1
	if l < 8 {
		// 2^8 - 2^(8-l) + floor(x / 2^(8l))
		dst[0] = uint8((256 - (1 << (8 - l))) + (x>>(8*l))&math.MaxUint8)
	} else {
		dst[0] = math.MaxUint8
	}
	for i := 0; i < l; i++ {
		dst[i+1] = uint8((x >> (8 * i)) & math.MaxUint8)
	}
	return l + 1
}

// naturalLength reports how many bytes follow a given prefix byte.
func naturalLength(prefix byte) int {
	return bits.LeadingZeros8(^prefix)
}

// DeserializeUint64 decodes a general natural from the front of serialized and
// returns the value with the number of bytes consumed.
func DeserializeUint64(serialized []byte) (uint64, int, error) {
	if err := checkSrc(serialized, 1); err != nil {
		return 0, 0, err
	}
	l := naturalLength(serialized[0])
	if err := checkSrc(serialized, l+1); err != nil {
		return 0, 0, err
	}
	if l == 8 {
		if serialized[0] != math.MaxUint8 {
			return 0, 0, errFirstByteNineByteSerialization
		}
		return binary.LittleEndian.Uint64(serialized[1:9]), 9, nil
	}

	var u uint64
	for i := 0; i < l; i++ {
		u |= uint64(serialized[i+1]) << (8 * i)
	}
	u |= uint64(serialized[0]&(math.MaxUint8>>l)) << (8 * l)
	return u, l + 1, nil
}

// Compact is the general natural codec E for any unsigned integer kind.
func Compact[T Unsigned]() Codec[T] {
	return Func(
		func(v T, dst []byte) (int, error) {
			if err := checkDst(dst, naturalSize(uint64(v))); err != nil {
				return 0, err
			}
			return putNatural(dst, uint64(v)), nil
		},
		func(src []byte) (T, int, error) {
			u, n, err := DeserializeUint64(src)
			if err != nil {
				return 0, 0, err
			}
			if uint64(T(u)) != u {
				return 0, 0, ErrNaturalOverflow
			}
			return T(u), n, nil
		},
		func(v T) int { return naturalSize(uint64(v)) },
	)
}

// Natural is E over uint64.
var Natural = Compact[uint64]()
