package pvm

import (
	"encoding/binary"

	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// Instantiate deblobs the code and prepares a machine at the given
// instruction counter. A malformed code blob is reported as an error and
// treated by the callers as a panic.
func Instantiate(code []byte, instructionOffset uint64, gasLimit Gas, regs Registers, memory Memory) (*Instance, error) {
	program, err := Deblob(code)
	if err != nil {
		return nil, err
	}
	return NewInstance(program, instructionOffset, gasLimit, regs, memory), nil
}

func NewInstance(program *Program, instructionOffset uint64, gasLimit Gas, regs Registers, memory Memory) *Instance {
	return &Instance{
		program:            program,
		memory:             memory,
		regs:               regs,
		instructionCounter: instructionOffset,
		gasRemaining:       gasLimit,
	}
}

type Instance struct {
	program            *Program  // (c, k, j, ϖ)
	memory             Memory    // μ
	regs               Registers // φ
	instructionCounter uint64    // ı
	gasRemaining       Gas       // ϱ

	skipLen uint64 // ℓ of the current instruction
	buf     [8]byte
}

func (i *Instance) Results() (uint64, Gas, Registers, Memory) {
	return i.instructionCounter, i.gasRemaining, i.regs, i.memory
}

func (i *Instance) InstructionCounter() uint64 { return i.instructionCounter }

func (i *Instance) Gas() Gas { return i.gasRemaining }

// skip ı′ = ı + 1 + skip(ı) (eq. A.9 v0.6.7)
func (i *Instance) skip() {
	i.instructionCounter += 1 + i.skipLen
}

func (i *Instance) deductGas(cost Gas) error {
	if i.gasRemaining < cost {
		return ErrOutOfGas
	}
	i.gasRemaining -= cost
	return nil
}

func (i *Instance) setAndSkip(dst Reg, value uint64) {
	i.regs[dst] = value
	i.skip()
}

// load E^-1_n(μ↺_{a...+n})
func (i *Instance) load(address uint64, n int) (uint64, error) {
	buf := i.buf[:n]
	if err := i.memory.Read(uint32(address), buf); err != nil {
		return 0, err
	}
	return jam.DeserializeTrivialNatural[uint64](buf), nil
}

// store μ′↺_{a...+n} = E_n(v mod 2^8n)
func (i *Instance) store(address uint64, n int, v uint64) error {
	binary.LittleEndian.PutUint64(i.buf[:], v)
	if err := i.memory.Write(uint32(address), i.buf[:n]); err != nil {
		return err
	}
	i.skip()
	return nil
}

// branch (b, C) =⇒ (ε, ı′) (eq. A.17 v0.6.7)
func (i *Instance) branch(condition bool, target uint64) error {
	if !condition {
		// (▸, ı) if ¬C
		i.skip()
		return nil
	}
	// (☇, ı) if b ∉ ϖ
	if !i.program.isBasicBlock(target) {
		return ErrPanicf("jump to non basic block start target=%d", target)
	}
	// (▸, b) otherwise
	i.instructionCounter = target
	return nil
}

// djump (a) =⇒ (ε, ı′) (eq. A.18 v0.6.7)
func (i *Instance) djump(address uint32) error {
	// (∎, ı) if a = 2^32 − 2^16
	if address == AddressReturnToHost {
		return ErrHalt
	}

	// (☇, ı) if a = 0 ∨ a > |j| ⋅ Z_A ∨ a mod Z_A ≠ 0
	if address == 0 || uint64(address) > uint64(len(i.program.jumpTable))*DynamicAddressAlignment || address%DynamicAddressAlignment != 0 {
		return ErrPanicf("indirect jump to address %v invalid", address)
	}

	// (☇, ı) if j_(a/Z_A)−1 ∉ ϖ
	target := i.program.jumpTable[(address/DynamicAddressAlignment)-1]
	if !i.program.isBasicBlock(target) {
		return ErrPanicf("indirect jump to address %v is not a basic block start", address)
	}

	// (▸, j_(a/Z_A)−1) otherwise
	i.instructionCounter = target
	return nil
}

// sext X_n(x) ≡ x + ⌊x / 2^(8n−1)⌋ (2^64 − 2^8n) (eq. A.16 v0.6.7)
func sext(x uint64, n uint64) uint64 {
	if n == 0 {
		return 0
	}
	if n >= 8 {
		return x
	}
	shift := 64 - 8*n
	return uint64(int64(x<<shift) >> shift)
}

func (i *Instance) immediate(at, n uint64) uint64 {
	return jam.DeserializeTrivialNatural[uint64](i.program.operand(at, n, &i.buf))
}

func regIndex(b byte) Reg {
	return Reg(min(12, b))
}

// decodeArgsImm one immediate (eq. A.20 v0.6.7)
func (i *Instance) decodeArgsImm() uint64 {
	lX := min(4, i.skipLen)
	return sext(i.immediate(i.instructionCounter+1, lX), lX)
}

// decodeArgsRegImmExt one register and one extended width immediate (eq. A.21 v0.6.7)
func (i *Instance) decodeArgsRegImmExt() (Reg, uint64) {
	rA := regIndex(i.program.operandByte(i.instructionCounter+1) % 16)
	return rA, i.immediate(i.instructionCounter+2, 8)
}

// decodeArgsImm2 two immediates (eq. A.22 v0.6.7)
func (i *Instance) decodeArgsImm2() (uint64, uint64) {
	lX := min(4, uint64(i.program.operandByte(i.instructionCounter+1)%8))
	lY := min(4, max(0, int64(i.skipLen)-int64(lX)-1))
	vX := sext(i.immediate(i.instructionCounter+2, lX), lX)
	vY := sext(i.immediate(i.instructionCounter+2+lX, uint64(lY)), uint64(lY))
	return vX, vY
}

// decodeArgsOffset one offset (eq. A.23 v0.6.7)
func (i *Instance) decodeArgsOffset() uint64 {
	lX := min(4, i.skipLen)
	return i.instructionCounter + sext(i.immediate(i.instructionCounter+1, lX), lX)
}

// decodeArgsRegImm one register and one immediate (eq. A.24 v0.6.7)
func (i *Instance) decodeArgsRegImm() (Reg, uint64) {
	rA := regIndex(i.program.operandByte(i.instructionCounter+1) % 16)
	lX := uint64(min(4, max(0, int64(i.skipLen)-1)))
	return rA, sext(i.immediate(i.instructionCounter+2, lX), lX)
}

// decodeArgsRegImm2 one register and two immediates (eq. A.25 v0.6.7)
func (i *Instance) decodeArgsRegImm2() (Reg, uint64, uint64) {
	b := i.program.operandByte(i.instructionCounter + 1)
	rA := regIndex(b % 16)
	lX := min(4, uint64(b/16%8))
	lY := uint64(min(4, max(0, int64(i.skipLen)-int64(lX)-1)))
	vX := sext(i.immediate(i.instructionCounter+2, lX), lX)
	vY := sext(i.immediate(i.instructionCounter+2+lX, lY), lY)
	return rA, vX, vY
}

// decodeArgsRegImmOffset one register, one immediate and one offset (eq. A.26 v0.6.7)
func (i *Instance) decodeArgsRegImmOffset() (Reg, uint64, uint64) {
	b := i.program.operandByte(i.instructionCounter + 1)
	rA := regIndex(b % 16)
	lX := min(4, uint64(b/16%8))
	lY := uint64(min(4, max(0, int64(i.skipLen)-int64(lX)-1)))
	vX := sext(i.immediate(i.instructionCounter+2, lX), lX)
	vY := i.instructionCounter + sext(i.immediate(i.instructionCounter+2+lX, lY), lY)
	return rA, vX, vY
}

// decodeArgsReg2 two registers (eq. A.27 v0.6.7)
func (i *Instance) decodeArgsReg2() (Reg, Reg) {
	b := i.program.operandByte(i.instructionCounter + 1)
	return regIndex(b % 16), regIndex(b / 16)
}

// decodeArgsReg2Imm two registers and one immediate (eq. A.28 v0.6.7)
func (i *Instance) decodeArgsReg2Imm() (Reg, Reg, uint64) {
	b := i.program.operandByte(i.instructionCounter + 1)
	lX := uint64(min(4, max(0, int64(i.skipLen)-1)))
	return regIndex(b % 16), regIndex(b / 16), sext(i.immediate(i.instructionCounter+2, lX), lX)
}

// decodeArgsReg2Offset two registers and one offset (eq. A.29 v0.6.7)
func (i *Instance) decodeArgsReg2Offset() (Reg, Reg, uint64) {
	b := i.program.operandByte(i.instructionCounter + 1)
	lX := uint64(min(4, max(0, int64(i.skipLen)-1)))
	return regIndex(b % 16), regIndex(b / 16), i.instructionCounter + sext(i.immediate(i.instructionCounter+2, lX), lX)
}

// decodeArgsReg2Imm2 two registers and two immediates (eq. A.30 v0.6.7)
func (i *Instance) decodeArgsReg2Imm2() (Reg, Reg, uint64, uint64) {
	b := i.program.operandByte(i.instructionCounter + 1)
	lX := min(4, uint64(i.program.operandByte(i.instructionCounter+2)%8))
	lY := uint64(min(4, max(0, int64(i.skipLen)-int64(lX)-2)))
	vX := sext(i.immediate(i.instructionCounter+3, lX), lX)
	vY := sext(i.immediate(i.instructionCounter+3+lX, lY), lY)
	return regIndex(b % 16), regIndex(b / 16), vX, vY
}

// decodeArgsReg3 three registers (eq. A.31 v0.6.7)
func (i *Instance) decodeArgsReg3() (Reg, Reg, Reg) {
	b := i.program.operandByte(i.instructionCounter + 1)
	d := i.program.operandByte(i.instructionCounter + 2)
	return regIndex(b % 16), regIndex(b / 16), regIndex(d % 16)
}
