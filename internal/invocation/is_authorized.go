package invocation

import (
	"errors"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/pvm"
	"github.com/eigerco/jamtarget/internal/pvm/host_call"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/work"
	"github.com/eigerco/jamtarget/pkg/log"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

type EmptyContext struct{}

type Authorization struct {
	cfg          chainspec.Config
	serviceState service.ServiceState
}

func NewAuthorization(cfg chainspec.Config, serviceState service.ServiceState) *Authorization {
	return &Authorization{cfg: cfg, serviceState: serviceState}
}

// InvokePVM ΨI(P, N_C) → (B ∪ E, N_G) (eq. B.1 v0.6.7)
func (a *Authorization) InvokePVM(
	workPackage work.Package, // p
	core uint16, // c
) (block.WorkResultOutputOrError, uint64) {
	code, err := workPackage.AuthorizationCode(a.serviceState)
	if err != nil {
		// (BAD, 0) if p_c = ∅
		return block.WorkResultOutputOrError{Error: block.CodeNotAvailable}, 0
	}
	// (BIG, 0) if |p_c| > W_A
	if len(code) > a.cfg.MaxIsAuthorizedCodeSize {
		return block.WorkResultOutputOrError{Error: block.CodeTooLarge}, 0
	}

	// F ∈ Ω⟨{}⟩ (eq. B.2 v0.6.7)
	hostCall := func(hostCall uint64, gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctx EmptyContext) (pvm.Gas, pvm.Registers, pvm.Memory, EmptyContext, error) {
		if remaining, oog := outOfGas(hostCall, gas, regs); oog {
			return remaining, regs, mem, ctx, pvm.ErrOutOfGas
		}
		var err error
		switch hostCall {
		case host_call.GasID:
			gas, regs, err = host_call.GasRemaining(gas, regs)
		case host_call.FetchID:
			gas, regs, mem, err = host_call.Fetch(gas, regs, mem, a.cfg, host_call.FetchData{WorkPackage: &workPackage})
		case host_call.LogID:
			gas, regs, mem, err = host_call.Log(gas, regs, mem, &core, nil)
		default:
			gas, regs = unknownHostCall(gas, regs)
		}
		return gas, regs, mem, ctx, err
	}

	// ΨM(p_c, 0, G_I, E2(c), F, ∅)
	gasUsed, result, _, err := pvm.InvokeWholeProgram(code, IsAuthorizedEntryPoint, pvm.UGas(a.cfg.MaxIsAuthorizedGas), jam.SerializeTrivialNatural(core, 2), hostCall, EmptyContext{})
	if err != nil {
		log.VM.Debug().Err(err).Uint16("core", core).Msg("is-authorized did not halt")
		return block.WorkResultOutputOrError{Error: workError(err)}, uint64(gasUsed)
	}
	return block.WorkResultOutputOrError{Output: result}, uint64(gasUsed)
}

// workError maps the exit of an argument invocation to ∞ or ☇.
func workError(err error) block.WorkResultError {
	if errors.Is(err, pvm.ErrOutOfGas) {
		return block.OutOfGas
	}
	return block.UnexpectedTermination
}
