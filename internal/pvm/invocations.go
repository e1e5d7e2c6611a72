package pvm

import (
	"errors"
)

// InvokeWholeProgram the marshalling whole-program pvm machine state-transition function (ΨM eq. A.44 v0.6.7).
// It returns the gas used and, when the error is nil (∎), the output blob.
// Otherwise the error is ErrOutOfGas (∞) or an *ErrPanic (☇); page faults are reported as panics.
func InvokeWholeProgram[X any](p []byte, entryPoint uint64, initialGas UGas, args []byte, hostFunc HostCall[X], x X) (UGas, []byte, X, error) {
	program, err := ParseBlob(p)
	if err != nil {
		return 0, nil, x, ErrPanicf("program blob: %s", err)
	}
	ram, regs, err := InitializeStandardProgram(program, args)
	if err != nil {
		return 0, nil, x, ErrPanicf("program initialization: %s", err)
	}
	i, err := Instantiate(program.CodeAndJumpTable, entryPoint, Gas(initialGas), regs, ram)
	if err != nil {
		return 0, nil, x, ErrPanicf("deblob: %s", err)
	}
	x1, err := InvokeHostCall(i, hostFunc, x)

	_, gasRemaining, regs1, memory1 := i.Results()
	// u = ϱ − max(ϱ′, 0)
	gasUsed := initialGas - UGas(max(gasRemaining, 0))

	switch {
	case errors.Is(err, ErrHalt):
		result := make([]byte, regs1[R8])
		if regs1[R7] >= AddressSpaceSize || !memory1.IsReadable(uint32(regs1[R7]), regs1[R8]) {
			// (u, [], x′) if ε = ∎ ∧ N_φ′7...+φ′8 ⊄ V_μ′
			return gasUsed, []byte{}, x1, nil
		}
		if err := memory1.Read(uint32(regs1[R7]), result); err != nil {
			return gasUsed, []byte{}, x1, nil
		}
		// (u, μ′_φ′7...+φ′8, x′) if ε = ∎ ∧ N_φ′7...+φ′8 ⊆ V_μ′
		return gasUsed, result, x1, nil
	case errors.Is(err, ErrOutOfGas):
		return gasUsed, nil, x1, ErrOutOfGas
	}

	panicErr := &ErrPanic{}
	if errors.As(err, &panicErr) {
		return gasUsed, nil, x1, panicErr
	}
	return gasUsed, nil, x1, ErrPanicf("%s", err)
}

// InvokeHostCall host call invocation (ΨH eq. A.34 v0.6.7). It runs until an
// exit that the host call function does not resolve. Host call indices are
// resolved by hostCall, which either returns nil to resume after the ecalli
// instruction or an exit error.
func InvokeHostCall[X any](i *Instance, hostCall HostCall[X], x X) (X, error) {
	for {
		hostCallIndex, err := InvokeBasic(i)
		if !errors.Is(err, ErrHostCall) {
			return x, err
		}
		i.gasRemaining, i.regs, i.memory, x, err = hostCall(hostCallIndex, i.gasRemaining, i.regs, i.memory, x)
		if err != nil {
			pageFault := &ErrPageFault{}
			if errors.As(err, &pageFault) {
				return x, ErrPanicf("host call %d: %s", hostCallIndex, pageFault)
			}
			return x, err
		}
		i.skip()
	}
}

// InvokeBasic basic definition (Ψ eq. A.1 v0.6.7). Runs until the first exit
// other than ▸, which is always returned as a non nil error.
func InvokeBasic(i *Instance) (hostCall uint64, err error) {
	for {
		if hostCall, err := i.step(); err != nil {
			return hostCall, err
		}
	}
}

// InvokeInner runs an inner machine of the refine invocation until its first
// exit (Ψ eq. A.1 v0.6.7). On a host call exit the returned instruction
// counter already points past the ecalli instruction.
func InvokeInner(program *Program, pc uint64, gas Gas, regs Registers, mem Memory) (hostCall uint64, i *Instance, err error) {
	i = NewInstance(program, pc, gas, regs, mem)
	hostCall, err = InvokeBasic(i)
	if errors.Is(err, ErrHostCall) {
		i.skip()
	}
	return hostCall, i, err
}
