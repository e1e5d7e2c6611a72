package host_call

import (
	"errors"
	"math"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/pvm"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/work"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// HistoricalLookup ΩH(ϱ, φ, µ, (m, e), s, d, t)
func HistoricalLookup(
	gas pvm.Gas,
	regs pvm.Registers,
	mem pvm.Memory,
	ctxPair RefineContextPair,
	serviceId block.ServiceId,
	serviceState service.ServiceState,
	t jamtime.Timeslot,
) (pvm.Gas, pvm.Registers, pvm.Memory, RefineContextPair, error) {
	gas -= BaseCost

	omega7 := regs[pvm.R7]

	// let [h, o] = φ8..+2
	addressToRead, addressToWrite := regs[pvm.R8], regs[pvm.R9]

	// let h = μ_h..+32 if N_h..+32 ⊂ V_μ otherwise ∇
	h, err := readHash(mem, addressToRead)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}

	// let a = d[s] if φ7 = 2^64 − 1 ∧ s ∈ K(d), d[φ7] if φ7 ∈ K(d), otherwise ∅
	lookupId := serviceId
	if omega7 != math.MaxUint64 {
		if !isServiceId(omega7) {
			return gas, withCode(regs, NONE), mem, ctxPair, nil
		}
		lookupId = block.ServiceId(omega7)
	}
	a, exists := serviceState[lookupId]
	if !exists {
		return gas, withCode(regs, NONE), mem, ctxPair, nil
	}

	// v = Λ(a, t, h)
	v := a.LookupPreimage(lookupId, t, h)
	if v == nil {
		return gas, withCode(regs, NONE), mem, ctxPair, nil
	}

	if err := writeFromOffset(mem, addressToWrite, v, regs[pvm.R10], regs[pvm.R11]); err != nil {
		return gas, regs, mem, ctxPair, err
	}

	// set φ7 to |v|
	regs[pvm.R7] = uint64(len(v))
	return gas, regs, mem, ctxPair, nil
}

// Export ΩE(ϱ, φ, µ, (m, e), ς)
func Export(
	gas pvm.Gas,
	regs pvm.Registers,
	mem pvm.Memory,
	ctxPair RefineContextPair,
	exportOffset uint64,
	cfg chainspec.Config,
) (pvm.Gas, pvm.Registers, pvm.Memory, RefineContextPair, error) {
	gas -= BaseCost

	p := regs[pvm.R7] // φ7

	// let z = min(φ8, W_G)
	segmentSize := uint64(cfg.SegmentSize())
	z := min(regs[pvm.R8], segmentSize)

	// let x = P_WG(μ_p..+z) if N_p..+z ⊂ V_μ otherwise ∇
	data, err := readBytes(mem, p, z)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}
	segment := work.Segment(work.ZeroPadding(data, uint(segmentSize)))

	// (FULL, e) if ς + |e| ≥ W_X
	if exportOffset+uint64(len(ctxPair.Segments)) >= uint64(cfg.MaxExports) {
		return gas, withCode(regs, FULL), mem, ctxPair, nil
	}

	// φ7 = ς + |e|, e ⌢ x
	regs[pvm.R7] = exportOffset + uint64(len(ctxPair.Segments))
	ctxPair.Segments = append(ctxPair.Segments, segment)
	return gas, regs, mem, ctxPair, nil
}

// Machine ΩM(ϱ, φ, µ, (m, e))
func Machine(
	gas pvm.Gas,
	regs pvm.Registers,
	mem pvm.Memory,
	ctxPair RefineContextPair,
) (pvm.Gas, pvm.Registers, pvm.Memory, RefineContextPair, error) {
	gas -= BaseCost

	// let [po, pz, i] = φ7...10
	po, pz, i := regs[pvm.R7], regs[pvm.R8], regs[pvm.R9]

	// p = µ[po ... po+pz]
	p, err := readBytes(mem, po, pz)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}

	// (HUH, m) if deblob(p) = ∇
	program, err := pvm.Deblob(p)
	if err != nil {
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}

	// let n = min(n ∈ N, n ∉ K(m))
	n := uint64(0)
	for {
		if _, ok := ctxPair.IntegratedPVMMap[n]; !ok {
			break
		}
		n++
	}

	if ctxPair.IntegratedPVMMap == nil {
		ctxPair.IntegratedPVMMap = make(map[uint64]IntegratedPVM)
	}
	// u = (V: [0, 0, ...], A: [∅, ∅, ...])
	ctxPair.IntegratedPVMMap[n] = IntegratedPVM{
		Code:               p,
		Ram:                pvm.NewMemory(),
		InstructionCounter: i,
		program:            program,
	}

	regs[pvm.R7] = n
	return gas, regs, mem, ctxPair, nil
}

// Peek ΩP(ϱ, φ, µ, (m, e))
func Peek(
	gas pvm.Gas,
	regs pvm.Registers,
	mem pvm.Memory,
	ctxPair RefineContextPair,
) (pvm.Gas, pvm.Registers, pvm.Memory, RefineContextPair, error) {
	gas -= BaseCost

	// let [n, o, s, z] = φ7..11
	n, o, s, z := regs[pvm.R7], regs[pvm.R8], regs[pvm.R9], regs[pvm.R10]

	// ∇ if N_o..+z ⊄ V*_μ
	if z > 0 && (o > math.MaxUint32 || !mem.IsWritable(uint32(o), z)) {
		return gas, regs, mem, ctxPair, pvm.ErrPanicf("peek: output range not writable, address=%d length=%d", o, z)
	}

	// (WHO, μ) if n ∉ K(m)
	innerPVM, exists := ctxPair.IntegratedPVMMap[n]
	if !exists {
		return gas, withCode(regs, WHO), mem, ctxPair, nil
	}

	// (OOB, μ) if N_s..+z ⊄ V_m[n]u
	data, err := readBytes(innerPVM.Ram, s, z)
	if err != nil {
		return gas, withCode(regs, OOB), mem, ctxPair, nil
	}

	// (OK, µ′_o..+z = (m[n]u)_s..+z)
	if err := writeBytes(mem, o, data); err != nil {
		return gas, regs, mem, ctxPair, err
	}
	return gas, withCode(regs, OK), mem, ctxPair, nil
}

// Poke ΩO(ϱ, φ, µ, (m, e))
func Poke(
	gas pvm.Gas,
	regs pvm.Registers,
	mem pvm.Memory,
	ctxPair RefineContextPair,
) (pvm.Gas, pvm.Registers, pvm.Memory, RefineContextPair, error) {
	gas -= BaseCost

	// let [n, s, o, z] = φ7..11
	n, s, o, z := regs[pvm.R7], regs[pvm.R8], regs[pvm.R9], regs[pvm.R10]

	data, err := readBytes(mem, s, z)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}

	innerPVM, exists := ctxPair.IntegratedPVMMap[n]
	if !exists {
		return gas, withCode(regs, WHO), mem, ctxPair, nil
	}

	// (OOB, m) if N_o..+z ⊄ V*_m[n]u
	if err := writeBytes(innerPVM.Ram, o, data); err != nil {
		return gas, withCode(regs, OOB), mem, ctxPair, nil
	}

	// (φ′7, m′) = (OK, (m′[n]u)_o..+z = s)
	ctxPair.IntegratedPVMMap[n] = innerPVM
	return gas, withCode(regs, OK), mem, ctxPair, nil
}

// Pages ΩZ(ϱ, φ, µ, (m, e))
func Pages(
	gas pvm.Gas,
	regs pvm.Registers,
	mem pvm.Memory,
	ctxPair RefineContextPair,
) (pvm.Gas, pvm.Registers, pvm.Memory, RefineContextPair, error) {
	gas -= BaseCost

	// let [n, p, c, r] = φ7..+4
	n, p, c, r := regs[pvm.R7], regs[pvm.R8], regs[pvm.R9], regs[pvm.R10]

	u, exists := ctxPair.IntegratedPVMMap[n]
	if !exists {
		return gas, withCode(regs, WHO), mem, ctxPair, nil
	}

	// (HUH, m) if r > 4 ∨ p < 16 ∨ p + c ≥ 2^32/Z_P
	if r > 4 || p < 16 || p >= pvm.MaxPageIndex || c >= pvm.MaxPageIndex || p+c >= pvm.MaxPageIndex {
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}

	// (HUH, m) if r > 2 ∧ (u_A)_p..+c ∋ ∅
	if r > 2 {
		for pageIndex := p; pageIndex < p+c; pageIndex++ {
			if u.Ram.GetAccess(uint32(pageIndex)) == pvm.Inaccessible {
				return gas, withCode(regs, HUH), mem, ctxPair, nil
			}
		}
	}

	// (u′_A)_p..+c = [∅, ...] if r = 0, [R, ...] if r ∈ {1, 3}, [W, ...] if r ∈ {2, 4}
	var access pvm.MemoryAccess
	switch r {
	case 0:
		access = pvm.Inaccessible
	case 1, 3:
		access = pvm.ReadOnly
	case 2, 4:
		access = pvm.ReadWrite
	}

	// (u′_V)_pZP..+cZP = [0, 0, ...] if r < 3
	u.Ram.SetPages(uint32(p), uint32(c), access, r < 3)

	ctxPair.IntegratedPVMMap[n] = u
	return gas, withCode(regs, OK), mem, ctxPair, nil
}

// Invoke ΩK(ϱ, φ, µ, (m, e))
func Invoke(
	gas pvm.Gas,
	regs pvm.Registers,
	mem pvm.Memory,
	ctxPair RefineContextPair,
) (pvm.Gas, pvm.Registers, pvm.Memory, RefineContextPair, error) {
	gas -= BaseCost

	// let [n, o] = φ7,8
	n, addr := regs[pvm.R7], regs[pvm.R8]

	// let (g, w) = (g, w) ∶ E8(g) ⌢ E#8(w) = μ_o..+112 if N_o..+112 ⊂ V*_μ
	const argsSize = 8 * 14
	if addr > math.MaxUint32 || !mem.IsWritable(uint32(addr), argsSize) {
		return gas, regs, mem, ctxPair, pvm.ErrPanicf("invoke: arguments not writable at address %d", addr)
	}
	args, err := readBytes(mem, addr, argsSize)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}
	innerGas := pvm.Gas(jam.DeserializeTrivialNatural[uint64](args[:8]))
	var innerRegs pvm.Registers
	for i := range innerRegs {
		innerRegs[i] = jam.DeserializeTrivialNatural[uint64](args[8*(i+1) : 8*(i+2)])
	}

	// (WHO, φ8, μ, m) if n ∉ K(m)
	innerPVM, ok := ctxPair.IntegratedPVMMap[n]
	if !ok {
		return gas, withCode(regs, WHO), mem, ctxPair, nil
	}
	program := innerPVM.program
	if program == nil {
		if program, err = pvm.Deblob(innerPVM.Code); err != nil {
			return gas, withCode(regs, PANIC), mem, ctxPair, nil
		}
	}

	// let (c, i′, g′, w′, u′) = Ψ(m[n]p, m[n]i, g, w, m[n]u)
	hostCall, instance, invokeErr := pvm.InvokeInner(program, innerPVM.InstructionCounter, innerGas, innerRegs, innerPVM.Ram)
	counter, resultGas, resultRegs, resultMem := instance.Results()

	// μ*_o..+112 = E8(g′) ⌢ E#8(w′)
	out := make([]byte, 0, argsSize)
	out = append(out, jam.EncodeUint64(uint64(resultGas))...)
	for _, reg := range resultRegs {
		out = append(out, jam.EncodeUint64(reg)...)
	}
	if err := writeBytes(mem, addr, out); err != nil {
		return gas, regs, mem, ctxPair, err
	}

	// m*[n] = (p, u′, i′ + 1 if c ∈ {h} × N_R, i′ otherwise)
	innerPVM.Ram = resultMem
	innerPVM.InstructionCounter = counter
	innerPVM.program = program
	ctxPair.IntegratedPVMMap[n] = innerPVM

	switch {
	case invokeErr == nil || errors.Is(invokeErr, pvm.ErrHalt):
		return gas, withCode(regs, HALT), mem, ctxPair, nil
	case errors.Is(invokeErr, pvm.ErrHostCall):
		regs[pvm.R8] = hostCall
		return gas, withCode(regs, HOST), mem, ctxPair, nil
	case errors.Is(invokeErr, pvm.ErrOutOfGas):
		return gas, withCode(regs, OOG), mem, ctxPair, nil
	}
	pageFault := &pvm.ErrPageFault{}
	if errors.As(invokeErr, &pageFault) {
		regs[pvm.R8] = uint64(pageFault.Address)
		return gas, withCode(regs, FAULT), mem, ctxPair, nil
	}
	return gas, withCode(regs, PANIC), mem, ctxPair, nil
}

// Expunge ΩX(ϱ, φ, µ, (m, e))
func Expunge(
	gas pvm.Gas,
	regs pvm.Registers,
	mem pvm.Memory,
	ctxPair RefineContextPair,
) (pvm.Gas, pvm.Registers, pvm.Memory, RefineContextPair, error) {
	gas -= BaseCost

	n := regs[pvm.R7]

	innerPVM, ok := ctxPair.IntegratedPVMMap[n]
	if !ok {
		return gas, withCode(regs, WHO), mem, ctxPair, nil
	}

	// (φ′7, m′) = (m[n]i, m ∖ n)
	regs[pvm.R7] = innerPVM.InstructionCounter
	delete(ctxPair.IntegratedPVMMap, n)
	return gas, regs, mem, ctxPair, nil
}
