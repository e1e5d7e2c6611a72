package pvm

import (
	"errors"
	"fmt"

	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// BitmaskMax is the longest possible operand window, skip(i) ≤ 24.
const BitmaskMax = 24

var (
	ErrCodeSizeMismatch = errors.New("code size mismatch")
	ErrJumpTableEntry   = errors.New("jump table entry size too large")
)

type ProgramMemorySizes struct {
	RODataSize       uint32 // |o|
	RWDataSize       uint32 // |w|
	InitialHeapPages uint16 // z
	StackSize        uint32 // s
}

var programMemorySizesCodec = jam.Struct(
	jam.Field("ro_data_size", jam.FixedUint[uint32](3), func(p *ProgramMemorySizes) *uint32 { return &p.RODataSize }),
	jam.Field("rw_data_size", jam.FixedUint[uint32](3), func(p *ProgramMemorySizes) *uint32 { return &p.RWDataSize }),
	jam.Field("heap_pages", jam.U16, func(p *ProgramMemorySizes) *uint16 { return &p.InitialHeapPages }),
	jam.Field("stack_size", jam.FixedUint[uint32](3), func(p *ProgramMemorySizes) *uint32 { return &p.StackSize }),
)

// ProgramBlob E3(|o|) ⌢ E3(|w|) ⌢ E2(z) ⌢ E3(s) ⌢ o ⌢ w ⌢ E4(|c|) ⌢ c = p (eq. A.37 v0.6.7)
type ProgramBlob struct {
	ProgramMemorySizes ProgramMemorySizes
	ROData             []byte
	RWData             []byte
	CodeAndJumpTable   []byte
}

// ParseBlob splits a standard program blob into its memory layout and code.
func ParseBlob(data []byte) (*ProgramBlob, error) {
	sizes, off, err := programMemorySizesCodec.Decode(data)
	if err != nil {
		return nil, err
	}
	program := &ProgramBlob{ProgramMemorySizes: sizes}

	var n int
	program.ROData, n, err = jam.RawBytes(int(sizes.RODataSize)).Decode(data[off:])
	if err != nil {
		return nil, fmt.Errorf("ro data: %w", err)
	}
	off += n
	program.RWData, n, err = jam.RawBytes(int(sizes.RWDataSize)).Decode(data[off:])
	if err != nil {
		return nil, fmt.Errorf("rw data: %w", err)
	}
	off += n

	codeSize, n, err := jam.U32.Decode(data[off:])
	if err != nil {
		return nil, err
	}
	off += n
	if len(data)-off != int(codeSize) {
		return nil, ErrCodeSizeMismatch
	}
	program.CodeAndJumpTable = data[off:]
	return program, nil
}

// Program is a deblobbed program ready to run: code c, bitmask k and jump
// table j, together with the precomputed skip lengths and basic block set ϖ.
type Program struct {
	code        []byte
	bitmask     jam.BitSequence
	jumpTable   []uint64
	skipLengths []uint8
	basicBlocks []bool
}

// Deblob deblob(p) → (c, k, j) ∪ ∇ ↦ p = E(|j|) ⌢ E1(z) ⌢ E(|c|) ⌢ E_z(j) ⌢ E(c) ⌢ E(k), |k| = |c| (eq. A.2 v0.6.7)
func Deblob(bytecode []byte) (*Program, error) {
	jumpTableLen, off, err := jam.Natural.Decode(bytecode)
	if err != nil {
		return nil, fmt.Errorf("jump table length: %w", err)
	}
	entrySize, n, err := jam.U8.Decode(bytecode[off:])
	if err != nil {
		return nil, err
	}
	off += n
	if entrySize > 8 {
		return nil, ErrJumpTableEntry
	}
	codeLen, n, err := jam.Natural.Decode(bytecode[off:])
	if err != nil {
		return nil, fmt.Errorf("code length: %w", err)
	}
	off += n

	if jumpTableLen*uint64(entrySize) > uint64(len(bytecode)-off) || codeLen > uint64(len(bytecode)) {
		return nil, jam.ErrUnexpectedEOF
	}
	jumpTable := make([]uint64, jumpTableLen)
	for i := range jumpTable {
		jumpTable[i] = jam.DeserializeTrivialNatural[uint64](bytecode[off : off+int(entrySize)])
		off += int(entrySize)
	}

	code, n, err := jam.RawBytes(int(codeLen)).Decode(bytecode[off:])
	if err != nil {
		return nil, fmt.Errorf("code: %w", err)
	}
	off += n
	bitmask, n, err := jam.FixedBitSequence(int(codeLen)).Decode(bytecode[off:])
	if err != nil {
		return nil, fmt.Errorf("bitmask: %w", err)
	}
	if off+n != len(bytecode) {
		return nil, jam.ErrTrailingBytes
	}

	p := &Program{
		code:        code,
		bitmask:     bitmask,
		jumpTable:   jumpTable,
		skipLengths: PrecomputeSkipLengths(bitmask),
	}

	// ϖ ≡ [0] ⌢ [n + 1 + skip(n) | n <− N_|c| ∧ k_n = 1 ∧ c_n ∈ T] (eq. A.5 v0.6.7)
	p.basicBlocks = make([]bool, len(code)+BitmaskMax+2)
	p.basicBlocks[0] = true
	for i, b := range bitmask {
		if b && Opcode(code[i]).IsBasicBlockTermination() {
			p.basicBlocks[i+1+int(p.skipLengths[i])] = true
		}
	}
	return p, nil
}

// PrecomputeSkipLengths computes skip(i) = min(24, j ∈ N : (k ⌢ [1, 1, ...])_{i+1+j} = 1) (eq. A.3 v0.6.7)
// for every position of the code.
func PrecomputeSkipLengths(bitmask []bool) []uint8 {
	n := len(bitmask)
	skipLengths := make([]uint8, n)

	distanceToNext := 0
	for i := n - 1; i >= 0; i-- {
		skipLengths[i] = uint8(min(distanceToNext, BitmaskMax))
		if bitmask[i] {
			distanceToNext = 0
		} else {
			distanceToNext++
		}
	}
	return skipLengths
}

func (p *Program) skip(counter uint64) uint64 {
	if counter < uint64(len(p.skipLengths)) {
		return uint64(p.skipLengths[counter])
	}
	return 0
}

func (p *Program) isBasicBlock(counter uint64) bool {
	return counter < uint64(len(p.basicBlocks)) && p.basicBlocks[counter]
}

// opcode returns ζ_ı with ζ ≡ c ⌢ [0, 0, ...] (eq. A.4 v0.6.7). Positions
// which do not start an instruction decode as trap.
func (p *Program) opcode(counter uint64) Opcode {
	if counter >= uint64(len(p.code)) || !p.bitmask[counter] {
		return Trap
	}
	return Opcode(p.code[counter])
}

// operand returns the n bytes of ζ after position at, zero padded beyond the code.
func (p *Program) operand(at uint64, n uint64, buf *[8]byte) []byte {
	out := buf[:n]
	clear(out)
	if at < uint64(len(p.code)) {
		copy(out, p.code[at:min(at+n, uint64(len(p.code)))])
	}
	return out
}

// operandByte returns ζ_at.
func (p *Program) operandByte(at uint64) byte {
	if at < uint64(len(p.code)) {
		return p.code[at]
	}
	return 0
}
