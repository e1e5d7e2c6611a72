package pvm

import (
	"fmt"
)

// ErrPanic irregular program termination caused by some exceptional circumstance (☇)
type ErrPanic struct {
	msg  string
	args []any
}

func ErrPanicf(msg string, args ...any) *ErrPanic {
	return &ErrPanic{msg: msg, args: args}
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("panic: "+e.msg, e.args...)
}

// ErrOutOfGas exhaustion of gas (∞)
var ErrOutOfGas = fmt.Errorf("out of gas")

// ErrPageFault an attempt to access an address which is not accessible (F).
// Address is the start of the lowest faulting page.
type ErrPageFault struct {
	Reason  string
	Address uint32
}

func (e *ErrPageFault) Error() string {
	return fmt.Sprintf("page fault %s: address=%d", e.Reason, e.Address)
}

// ErrHostCall an attempt at progressing a host call (h)
var ErrHostCall = fmt.Errorf("host call")

// ErrHalt regular program termination (∎)
var ErrHalt = fmt.Errorf("halt")

type Reg uint8

const (
	RA Reg = iota
	SP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
)

// Register aliases by graypaper index, φ0...φ12.
const (
	R0  = RA
	R1  = SP
	R7  = A0
	R8  = A1
	R9  = A2
	R10 = A3
	R11 = A4
	R12 = A5
)

func (r Reg) String() string {
	return fmt.Sprintf("r%d", r)
}

type Registers [13]uint64

// Gas the set of signed gas values Z_G ≡ Z_−2^63...2^63 (eq. 4.23 v0.6.7)
type Gas int64

// UGas the set of unsigned gas values N_G ≡ N_2^64 (eq. 4.23 v0.6.7)
type UGas uint64

// HostCall the generic Ω function definition Ω⟨X⟩ ≡ (N, N_G, ⟦N_R⟧13, M, X) → ({▸, ∎, ☇, ∞}, N_G, ⟦N_R⟧13, M, X) (eq. A.35 v0.6.7)
type HostCall[X any] func(hostCall uint64, gasCounter Gas, regs Registers, mem Memory, x X) (Gas, Registers, Memory, X, error)
