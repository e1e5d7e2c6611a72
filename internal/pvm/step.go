package pvm

import (
	"github.com/eigerco/jamtarget/pkg/log"
)

// step Ψ1(c, k, j, ı, ϱ, φ, μ) → ({☇, ∎, ▸, ∞} ∪ {F, h} × N_R, ı′, ϱ′, φ′, μ′) (eq. A.6 v0.6.7)
//
// The returned value is the host call index when the error is ErrHostCall.
// On any exit other than ▸ the instruction counter is left on the exiting
// instruction and registers and memory are left untouched.
func (i *Instance) step() (uint64, error) {
	// ℓ ≡ skip(ı) (eq. A.20 v0.6.7)
	i.skipLen = i.program.skip(i.instructionCounter)
	opcode := i.program.opcode(i.instructionCounter)

	// ϱ′ = ϱ − ϱ∆ (eq. A.9 v0.6.7)
	if err := i.deductGas(InstructionCost); err != nil {
		return 0, err
	}

	if log.TraceSteps {
		log.VM.Trace().
			Uint64("pc", i.instructionCounter).
			Uint8("opcode", uint8(opcode)).
			Int64("gas", int64(i.gasRemaining)).
			Uints64("regs", i.regs[:]).
			Msg("step")
	}

	switch opcode {
	case Trap:
		return 0, i.Trap()
	case Fallthrough:
		i.Fallthrough()

	// (eq. A.20 v0.6.7)
	case Ecalli:
		// ε = ħ × νX
		return i.decodeArgsImm(), ErrHostCall

	// (eq. A.21 v0.6.7)
	case LoadImm64:
		i.LoadImm64(i.decodeArgsRegImmExt())

	// (eq. A.22 v0.6.7)
	case StoreImmU8, StoreImmU16, StoreImmU32, StoreImmU64:
		address, value := i.decodeArgsImm2()
		return 0, i.StoreImm(1<<(opcode-StoreImmU8), address, value)

	// (eq. A.23 v0.6.7)
	case Jump:
		return 0, i.Jump(i.decodeArgsOffset())

	// (eq. A.24 v0.6.7)
	case JumpInd:
		return 0, i.JumpInd(i.decodeArgsRegImm())
	case LoadImm:
		i.LoadImm(i.decodeArgsRegImm())
	case LoadU8, LoadI8, LoadU16, LoadI16, LoadU32, LoadI32:
		reg, address := i.decodeArgsRegImm()
		width := 1 << ((opcode - LoadU8) / 2)
		return 0, i.Load(width, (opcode-LoadU8)%2 == 1, reg, address)
	case LoadU64:
		reg, address := i.decodeArgsRegImm()
		return 0, i.Load(8, false, reg, address)
	case StoreU8, StoreU16, StoreU32, StoreU64:
		reg, address := i.decodeArgsRegImm()
		return 0, i.Store(1<<(opcode-StoreU8), reg, address)

	// (eq. A.25 v0.6.7)
	case StoreImmIndU8, StoreImmIndU16, StoreImmIndU32, StoreImmIndU64:
		base, offset, value := i.decodeArgsRegImm2()
		return 0, i.StoreImmInd(1<<(opcode-StoreImmIndU8), base, offset, value)

	// (eq. A.26 v0.6.7)
	case LoadImmJump:
		return 0, i.LoadImmJump(i.decodeArgsRegImmOffset())
	case BranchEqImm, BranchNeImm, BranchLtUImm, BranchLeUImm, BranchGeUImm,
		BranchGtUImm, BranchLtSImm, BranchLeSImm, BranchGeSImm, BranchGtSImm:
		reg, imm, target := i.decodeArgsRegImmOffset()
		return 0, i.BranchImm(opcode, reg, imm, target)

	// (eq. A.27 v0.6.7)
	case Sbrk:
		i.Sbrk(i.decodeArgsReg2())
	case MoveReg, CountSetBits64, CountSetBits32, LeadingZeroBits64, LeadingZeroBits32,
		TrailingZeroBits64, TrailingZeroBits32, SignExtend8, SignExtend16, ZeroExtend16, ReverseBytes:
		dst, src := i.decodeArgsReg2()
		i.TwoReg(opcode, dst, src)

	// (eq. A.28 v0.6.7)
	case StoreIndU8, StoreIndU16, StoreIndU32, StoreIndU64:
		src, base, offset := i.decodeArgsReg2Imm()
		return 0, i.StoreInd(1<<(opcode-StoreIndU8), src, base, offset)
	case LoadIndU8, LoadIndI8, LoadIndU16, LoadIndI16, LoadIndU32, LoadIndI32:
		dst, base, offset := i.decodeArgsReg2Imm()
		width := 1 << ((opcode - LoadIndU8) / 2)
		return 0, i.LoadInd(width, (opcode-LoadIndU8)%2 == 1, dst, base, offset)
	case LoadIndU64:
		dst, base, offset := i.decodeArgsReg2Imm()
		return 0, i.LoadInd(8, false, dst, base, offset)
	case AddImm32, AndImm, XorImm, OrImm, MulImm32, SetLtUImm, SetLtSImm, ShloLImm32,
		ShloRImm32, SharRImm32, NegAddImm32, SetGtUImm, SetGtSImm, ShloLImmAlt32,
		ShloRImmAlt32, SharRImmAlt32, CmovIzImm, CmovNzImm, AddImm64, MulImm64,
		ShloLImm64, ShloRImm64, SharRImm64, NegAddImm64, ShloLImmAlt64, ShloRImmAlt64,
		SharRImmAlt64, RotR64Imm, RotR64ImmAlt, RotR32Imm, RotR32ImmAlt:
		dst, src, imm := i.decodeArgsReg2Imm()
		i.RegImm(opcode, dst, src, imm)

	// (eq. A.29 v0.6.7)
	case BranchEq, BranchNe, BranchLtU, BranchLtS, BranchGeU, BranchGeS:
		regA, regB, target := i.decodeArgsReg2Offset()
		return 0, i.BranchReg(opcode, regA, regB, target)

	// (eq. A.30 v0.6.7)
	case LoadImmJumpInd:
		return 0, i.LoadImmJumpInd(i.decodeArgsReg2Imm2())

	// (eq. A.31 v0.6.7)
	case Add32, Sub32, Mul32, DivU32, DivS32, RemU32, RemS32, ShloL32, ShloR32, SharR32,
		Add64, Sub64, Mul64, DivU64, DivS64, RemU64, RemS64, ShloL64, ShloR64, SharR64,
		And, Xor, Or, MulUpperSS, MulUpperUU, MulUpperSU, SetLtU, SetLtS, CmovIz, CmovNz,
		RotL64, RotL32, RotR64, RotR32, AndInv, OrInv, Xnor, Max, MaxU, Min, MinU:
		regA, regB, dst := i.decodeArgsReg3()
		i.ThreeReg(opcode, regA, regB, dst)

	default:
		return 0, ErrPanicf("unknown opcode %d at %d", opcode, i.instructionCounter)
	}
	return 0, nil
}
