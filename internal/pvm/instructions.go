package pvm

import (
	"math"
	"math/bits"
)

func bool2uint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Trap trap ε = ☇
func (i *Instance) Trap() error {
	return ErrPanicf("explicit trap")
}

// Fallthrough fallthrough
func (i *Instance) Fallthrough() {
	i.skip()
}

// LoadImm64 load_imm_64 φ′A = νX
func (i *Instance) LoadImm64(dst Reg, imm uint64) {
	i.setAndSkip(dst, imm)
}

// StoreImm store_imm_u{8,16,32,64} μ′↺_{νX...+n} = E_n(νY mod 2^8n)
func (i *Instance) StoreImm(n int, address, value uint64) error {
	return i.store(address, n, value)
}

// Jump jump branch(νX, ⊺)
func (i *Instance) Jump(target uint64) error {
	return i.branch(true, target)
}

// JumpInd jump_ind djump((φA + νX) mod 2^32)
func (i *Instance) JumpInd(base Reg, offset uint64) error {
	return i.djump(uint32(i.regs[base] + offset))
}

// LoadImm load_imm φ′A = νX
func (i *Instance) LoadImm(dst Reg, imm uint64) {
	i.setAndSkip(dst, imm)
}

// Load load_{u,i}{8,16,32,64} φ′A = μ↺_{νX...+n}, sign extended when signed is set
func (i *Instance) Load(n int, signed bool, dst Reg, address uint64) error {
	v, err := i.load(address, n)
	if err != nil {
		return err
	}
	if signed {
		v = sext(v, uint64(n))
	}
	i.setAndSkip(dst, v)
	return nil
}

// Store store_u{8,16,32,64} μ′↺_{νX...+n} = E_n(φA mod 2^8n)
func (i *Instance) Store(n int, src Reg, address uint64) error {
	return i.store(address, n, i.regs[src])
}

// StoreImmInd store_imm_ind_u{8,16,32,64} μ′↺_{φA+νX...+n} = E_n(νY mod 2^8n)
func (i *Instance) StoreImmInd(n int, base Reg, offset, value uint64) error {
	return i.store(i.regs[base]+offset, n, value)
}

// LoadImmJump load_imm_jump branch(νY, ⊺), φ′A = νX
func (i *Instance) LoadImmJump(dst Reg, imm, target uint64) error {
	if err := i.branch(true, target); err != nil {
		return err
	}
	i.regs[dst] = imm
	return nil
}

// BranchImm branch_{eq,ne,lt,le,ge,gt}_{u,s}_imm branch(νY, φA ⋄ νX)
func (i *Instance) BranchImm(op Opcode, reg Reg, imm, target uint64) error {
	a := i.regs[reg]
	var cond bool
	switch op {
	case BranchEqImm:
		cond = a == imm
	case BranchNeImm:
		cond = a != imm
	case BranchLtUImm:
		cond = a < imm
	case BranchLeUImm:
		cond = a <= imm
	case BranchGeUImm:
		cond = a >= imm
	case BranchGtUImm:
		cond = a > imm
	case BranchLtSImm:
		cond = int64(a) < int64(imm)
	case BranchLeSImm:
		cond = int64(a) <= int64(imm)
	case BranchGeSImm:
		cond = int64(a) >= int64(imm)
	case BranchGtSImm:
		cond = int64(a) > int64(imm)
	}
	return i.branch(cond, target)
}

// Sbrk sbrk φ′D = h, the heap grows by φA
func (i *Instance) Sbrk(dst, size Reg) {
	i.setAndSkip(dst, uint64(i.memory.Sbrk(i.regs[size])))
}

// TwoReg the instructions with two register arguments (A.5.9)
func (i *Instance) TwoReg(op Opcode, dst, src Reg) {
	a := i.regs[src]
	var v uint64
	switch op {
	case MoveReg:
		v = a
	case CountSetBits64:
		v = uint64(bits.OnesCount64(a))
	case CountSetBits32:
		v = uint64(bits.OnesCount32(uint32(a)))
	case LeadingZeroBits64:
		v = uint64(bits.LeadingZeros64(a))
	case LeadingZeroBits32:
		v = uint64(bits.LeadingZeros32(uint32(a)))
	case TrailingZeroBits64:
		v = uint64(bits.TrailingZeros64(a))
	case TrailingZeroBits32:
		v = uint64(bits.TrailingZeros32(uint32(a)))
	case SignExtend8:
		v = uint64(int64(int8(a)))
	case SignExtend16:
		v = uint64(int64(int16(a)))
	case ZeroExtend16:
		v = uint64(uint16(a))
	case ReverseBytes:
		v = bits.ReverseBytes64(a)
	}
	i.setAndSkip(dst, v)
}

// StoreInd store_ind_u{8,16,32,64} μ′↺_{φB+νX...+n} = E_n(φA mod 2^8n)
func (i *Instance) StoreInd(n int, src, base Reg, offset uint64) error {
	return i.store(i.regs[base]+offset, n, i.regs[src])
}

// LoadInd load_ind_{u,i}{8,16,32,64} φ′A = μ↺_{φB+νX...+n}
func (i *Instance) LoadInd(n int, signed bool, dst, base Reg, offset uint64) error {
	return i.Load(n, signed, dst, i.regs[base]+offset)
}

// RegImm the arithmetic instructions with two registers and one immediate (A.5.10)
func (i *Instance) RegImm(op Opcode, dst, src Reg, imm uint64) {
	b := i.regs[src]
	var v uint64
	switch op {
	case AddImm32:
		v = sext(uint64(uint32(b+imm)), 4)
	case AndImm:
		v = b & imm
	case XorImm:
		v = b ^ imm
	case OrImm:
		v = b | imm
	case MulImm32:
		v = sext(uint64(uint32(b*imm)), 4)
	case SetLtUImm:
		v = bool2uint(b < imm)
	case SetLtSImm:
		v = bool2uint(int64(b) < int64(imm))
	case ShloLImm32:
		v = sext(uint64(uint32(b)<<(imm%32)), 4)
	case ShloRImm32:
		v = sext(uint64(uint32(b)>>(imm%32)), 4)
	case SharRImm32:
		v = uint64(int64(int32(b) >> (imm % 32)))
	case NegAddImm32:
		v = sext(uint64(uint32(imm-b)), 4)
	case SetGtUImm:
		v = bool2uint(b > imm)
	case SetGtSImm:
		v = bool2uint(int64(b) > int64(imm))
	case ShloLImmAlt32:
		v = sext(uint64(uint32(imm)<<(b%32)), 4)
	case ShloRImmAlt32:
		v = sext(uint64(uint32(imm)>>(b%32)), 4)
	case SharRImmAlt32:
		v = uint64(int64(int32(imm) >> (b % 32)))
	case CmovIzImm:
		v = i.regs[dst]
		if b == 0 {
			v = imm
		}
	case CmovNzImm:
		v = i.regs[dst]
		if b != 0 {
			v = imm
		}
	case AddImm64:
		v = b + imm
	case MulImm64:
		v = b * imm
	case ShloLImm64:
		v = b << (imm % 64)
	case ShloRImm64:
		v = b >> (imm % 64)
	case SharRImm64:
		v = uint64(int64(b) >> (imm % 64))
	case NegAddImm64:
		v = imm - b
	case ShloLImmAlt64:
		v = imm << (b % 64)
	case ShloRImmAlt64:
		v = imm >> (b % 64)
	case SharRImmAlt64:
		v = uint64(int64(imm) >> (b % 64))
	case RotR64Imm:
		v = bits.RotateLeft64(b, -int(imm%64))
	case RotR64ImmAlt:
		v = bits.RotateLeft64(imm, -int(b%64))
	case RotR32Imm:
		v = sext(uint64(bits.RotateLeft32(uint32(b), -int(imm%32))), 4)
	case RotR32ImmAlt:
		v = sext(uint64(bits.RotateLeft32(uint32(imm), -int(b%32))), 4)
	}
	i.setAndSkip(dst, v)
}

// BranchReg branch_{eq,ne,lt_u,lt_s,ge_u,ge_s} branch(νX, φA ⋄ φB)
func (i *Instance) BranchReg(op Opcode, regA, regB Reg, target uint64) error {
	a, b := i.regs[regA], i.regs[regB]
	var cond bool
	switch op {
	case BranchEq:
		cond = a == b
	case BranchNe:
		cond = a != b
	case BranchLtU:
		cond = a < b
	case BranchLtS:
		cond = int64(a) < int64(b)
	case BranchGeU:
		cond = a >= b
	case BranchGeS:
		cond = int64(a) >= int64(b)
	}
	return i.branch(cond, target)
}

// LoadImmJumpInd load_imm_jump_ind djump((φB + νY) mod 2^32), φ′A = νX
func (i *Instance) LoadImmJumpInd(dst, base Reg, imm, offset uint64) error {
	err := i.djump(uint32(i.regs[base] + offset))
	if err == nil || err == ErrHalt {
		i.regs[dst] = imm
	}
	return err
}

// ThreeReg the instructions with three register arguments (A.5.13)
func (i *Instance) ThreeReg(op Opcode, regA, regB, dst Reg) {
	a, b := i.regs[regA], i.regs[regB]
	var v uint64
	switch op {
	case Add32:
		v = sext(uint64(uint32(a+b)), 4)
	case Sub32:
		v = sext(uint64(uint32(a-b)), 4)
	case Mul32:
		v = sext(uint64(uint32(a*b)), 4)
	case DivU32:
		if uint32(b) == 0 {
			v = math.MaxUint64
		} else {
			v = sext(uint64(uint32(a)/uint32(b)), 4)
		}
	case DivS32:
		x, y := int32(a), int32(b)
		switch {
		case y == 0:
			v = math.MaxUint64
		case x == math.MinInt32 && y == -1:
			v = uint64(int64(x))
		default:
			v = uint64(int64(x / y))
		}
	case RemU32:
		if uint32(b) == 0 {
			v = sext(uint64(uint32(a)), 4)
		} else {
			v = sext(uint64(uint32(a)%uint32(b)), 4)
		}
	case RemS32:
		x, y := int32(a), int32(b)
		switch {
		case y == 0:
			v = uint64(int64(x))
		case x == math.MinInt32 && y == -1:
			v = 0
		default:
			v = uint64(int64(x % y))
		}
	case ShloL32:
		v = sext(uint64(uint32(a)<<(b%32)), 4)
	case ShloR32:
		v = sext(uint64(uint32(a)>>(b%32)), 4)
	case SharR32:
		v = uint64(int64(int32(a) >> (b % 32)))
	case Add64:
		v = a + b
	case Sub64:
		v = a - b
	case Mul64:
		v = a * b
	case DivU64:
		if b == 0 {
			v = math.MaxUint64
		} else {
			v = a / b
		}
	case DivS64:
		x, y := int64(a), int64(b)
		switch {
		case y == 0:
			v = math.MaxUint64
		case x == math.MinInt64 && y == -1:
			v = a
		default:
			v = uint64(x / y)
		}
	case RemU64:
		if b == 0 {
			v = a
		} else {
			v = a % b
		}
	case RemS64:
		x, y := int64(a), int64(b)
		switch {
		case y == 0:
			v = a
		case x == math.MinInt64 && y == -1:
			v = 0
		default:
			v = uint64(x % y)
		}
	case ShloL64:
		v = a << (b % 64)
	case ShloR64:
		v = a >> (b % 64)
	case SharR64:
		v = uint64(int64(a) >> (b % 64))
	case And:
		v = a & b
	case Xor:
		v = a ^ b
	case Or:
		v = a | b
	case MulUpperSS:
		hi, _ := bits.Mul64(a, b)
		if int64(a) < 0 {
			hi -= b
		}
		if int64(b) < 0 {
			hi -= a
		}
		v = hi
	case MulUpperUU:
		v, _ = bits.Mul64(a, b)
	case MulUpperSU:
		hi, _ := bits.Mul64(a, b)
		if int64(a) < 0 {
			hi -= b
		}
		v = hi
	case SetLtU:
		v = bool2uint(a < b)
	case SetLtS:
		v = bool2uint(int64(a) < int64(b))
	case CmovIz:
		v = i.regs[dst]
		if b == 0 {
			v = a
		}
	case CmovNz:
		v = i.regs[dst]
		if b != 0 {
			v = a
		}
	case RotL64:
		v = bits.RotateLeft64(a, int(b%64))
	case RotL32:
		v = sext(uint64(bits.RotateLeft32(uint32(a), int(b%32))), 4)
	case RotR64:
		v = bits.RotateLeft64(a, -int(b%64))
	case RotR32:
		v = sext(uint64(bits.RotateLeft32(uint32(a), -int(b%32))), 4)
	case AndInv:
		v = a &^ b
	case OrInv:
		v = a | ^b
	case Xnor:
		v = ^(a ^ b)
	case Max:
		v = uint64(max(int64(a), int64(b)))
	case MaxU:
		v = max(a, b)
	case Min:
		v = uint64(min(int64(a), int64(b)))
	case MinU:
		v = min(a, b)
	}
	i.setAndSkip(dst, v)
}
