package jam

import (
	"fmt"
)

// BitSequence packs booleans into octets, least significant bit first.
type BitSequence []bool

func packBits(v []bool, dst []byte) int {
	n := (len(v) + 7) / 8
	for i := 0; i < n; i++ {
		dst[i] = 0
	}
	for i, b := range v {
		if b {
			dst[i/8] |= 1 << (i % 8)
		}
	}
	return n
}

func unpackBits(src []byte, count int) []bool {
	out := make([]bool, count)
	for i := range out {
		out[i] = src[i/8]&(1<<(i%8)) != 0
	}
	return out
}

// FixedBitSequence encodes exactly count bits into ceil(count/8) octets.
func FixedBitSequence(count int) Codec[BitSequence] {
	size := (count + 7) / 8
	return Func(
		func(v BitSequence, dst []byte) (int, error) {
			if len(v) != count {
				return 0, fmt.Errorf("%w: want %d bits, got %d", ErrFixedLength, count, len(v))
			}
			if err := checkDst(dst, size); err != nil {
				return 0, err
			}
			return packBits(v, dst), nil
		},
		func(src []byte) (BitSequence, int, error) {
			if err := checkSrc(src, size); err != nil {
				return nil, 0, err
			}
			return unpackBits(src, count), size, nil
		},
		func(BitSequence) int { return size },
	)
}

// Bits is a bit count prefixed bit sequence: E(|b|) ⌢ packed bits.
var Bits Codec[BitSequence] = Func(
	func(v BitSequence, dst []byte) (int, error) {
		size := naturalSize(uint64(len(v))) + (len(v)+7)/8
		if err := checkDst(dst, size); err != nil {
			return 0, err
		}
		off := putNatural(dst, uint64(len(v)))
		return off + packBits(v, dst[off:]), nil
	},
	func(src []byte) (BitSequence, int, error) {
		l, off, err := DeserializeUint64(src)
		if err != nil {
			return nil, 0, fmt.Errorf(ErrDecodingLength, err)
		}
		size := (l + 7) / 8
		if size > uint64(len(src)-off) {
			return nil, 0, fmt.Errorf(ErrLengthTooLarge, size, len(src)-off)
		}
		return unpackBits(src[off:], int(l)), off + int(size), nil
	},
	func(v BitSequence) int { return naturalSize(uint64(len(v))) + (len(v)+7)/8 },
)
