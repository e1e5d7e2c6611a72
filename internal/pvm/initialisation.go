package pvm

import (
	"errors"

	"github.com/eigerco/jamtarget/internal/safemath"
)

const (
	StackAddressHigh        = AddressSpaceSize - 2*MemoryZoneSize - InputDataSize // 2^32 − 2Z_Z − Z_I
	ArgsAddressLow          = AddressSpaceSize - MemoryZoneSize - InputDataSize   // 2^32 − Z_Z − Z_I
	RWAddressBase    uint64 = 2 * MemoryZoneSize
)

var ErrMemoryLayoutOverflowsAddressSpace = errors.New("memory layout overflows address space")

// InitializeStandardProgram Y(p, a) (eq. A.37 v0.6.7)
func InitializeStandardProgram(program *ProgramBlob, argsData []byte) (Memory, Registers, error) {
	sizes := program.ProgramMemorySizes
	ram, err := InitializeMemory(program.ROData, program.RWData, argsData, sizes.StackSize, sizes.InitialHeapPages)
	if err != nil {
		return Memory{}, Registers{}, err
	}
	return ram, InitializeRegisters(len(argsData)), nil
}

// InitializeMemory lays out the read-only data, the read-write data and heap,
// the stack and the arguments (eq. A.42 v0.6.7)
func InitializeMemory(roData, rwData, argsData []byte, stackSize uint32, initialPages uint16) (Memory, error) {
	if len(argsData) > InputDataSize {
		return Memory{}, ErrMemoryLayoutOverflowsAddressSpace
	}
	heapSize := uint64(initialPages) * PageSize

	// 5Z_Z + Z(|o|) + Z(|w| + zZ_P) + Z(s) + Z_I ≤ 2^32 (eq. A.41 v0.6.7)
	total := uint64(5 * MemoryZoneSize)
	for _, v := range []uint64{
		roundUpToZone(uint64(len(roData))),
		roundUpToZone(uint64(len(rwData)) + heapSize),
		roundUpToZone(uint64(stackSize)),
		InputDataSize,
	} {
		var ok bool
		if total, ok = safemath.Add(total, v); !ok {
			return Memory{}, ErrMemoryLayoutOverflowsAddressSpace
		}
	}
	if total > AddressSpaceSize {
		return Memory{}, ErrMemoryLayoutOverflowsAddressSpace
	}

	mem := NewMemory()

	// Z_Z ≤ i < Z_Z + P(|o|): R, o_(i−Z_Z) then zeroes
	roEnd := MemoryZoneSize + roundUpToPage(uint64(len(roData)))
	mem.SetPages(MemoryZoneSize/PageSize, uint32((roEnd-MemoryZoneSize)/PageSize), ReadOnly, true)
	mem.copyIn(MemoryZoneSize, roData)

	// 2Z_Z + Z(|o|) ≤ i < 2Z_Z + Z(|o|) + P(|w|) + zZ_P: W, w_(i−(2Z_Z+Z(|o|))) then zeroes
	rwStart := RWAddressBase + roundUpToZone(uint64(len(roData)))
	rwEnd := rwStart + roundUpToPage(uint64(len(rwData))) + heapSize
	mem.SetPages(uint32(rwStart/PageSize), uint32((rwEnd-rwStart)/PageSize), ReadWrite, true)
	mem.copyIn(uint32(rwStart), rwData)

	// 2^32 − 2Z_Z − Z_I − P(s) ≤ i < 2^32 − 2Z_Z − Z_I: W
	stackLow := StackAddressHigh - roundUpToPage(uint64(stackSize))
	mem.SetPages(uint32(stackLow/PageSize), uint32((StackAddressHigh-stackLow)/PageSize), ReadWrite, true)

	// 2^32 − Z_Z − Z_I ≤ i < 2^32 − Z_Z − Z_I + P(|a|): R, a_(i−(2^32−Z_Z−Z_I)) then zeroes
	mem.SetPages(ArgsAddressLow/PageSize, uint32(roundUpToPage(uint64(len(argsData)))/PageSize), ReadOnly, true)
	mem.copyIn(ArgsAddressLow, argsData)

	mem.SetHeapPointer(uint32(rwEnd))
	return mem, nil
}

// InitializeRegisters (eq. A.43 v0.6.7)
func InitializeRegisters(argsLen int) Registers {
	return Registers{
		R0: AddressReturnToHost, // 2^32 − 2^16 		if i = 0
		R1: StackAddressHigh,    // 2^32 − 2Z_Z − Z_I 	if i = 1
		R7: ArgsAddressLow,      // 2^32 − Z_Z − Z_I 	if i = 7
		R8: uint64(argsLen),     // |a| 				if i = 8
		// 0 otherwise
	}
}

// roundUpToPage P(x ∈ N) ≡ Z_P⌈x/Z_P⌉ (eq. A.40 v0.6.7)
func roundUpToPage(value uint64) uint64 {
	return (value + PageSize - 1) / PageSize * PageSize
}

// roundUpToZone Z(x ∈ N) ≡ Z_Z⌈x/Z_Z⌉ (eq. A.40 v0.6.7)
func roundUpToZone(value uint64) uint64 {
	return (value + MemoryZoneSize - 1) / MemoryZoneSize * MemoryZoneSize
}
