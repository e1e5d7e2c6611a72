package invocation

import (
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/pvm"
	"github.com/eigerco/jamtarget/internal/pvm/host_call"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/pkg/log"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// AccumulationOutput O ≡ (u ∈ U, t ∈ ⟦X⟧, y ∈ H?, g ∈ N_G, p ∈ {(N_S, B)}) (eq. B.9 v0.6.7)
type AccumulationOutput struct {
	AccumulationState state.AccumulationState    // u
	DeferredTransfers []service.DeferredTransfer // t
	Result            *crypto.Hash               // y
	GasUsed           uint64                     // g
	ProvidedPreimages []block.Preimage           // p
}

func NewAccumulator(cfg chainspec.Config, newEntropy crypto.Hash, newTimeslot jamtime.Timeslot) *Accumulator {
	return &Accumulator{
		cfg:         cfg,
		newEntropy:  newEntropy,
		newTimeslot: newTimeslot,
	}
}

// Accumulator runs ΨA for the block being imported, it is safe to share
// between concurrent accumulations of different services.
type Accumulator struct {
	cfg         chainspec.Config
	newEntropy  crypto.Hash      // η'_0
	newTimeslot jamtime.Timeslot // τ'
}

// InvokePVM ΨA(U, N_T, N_S, N_G, ⟦O⟧) → O (eq. B.9 v0.6.7)
func (a *Accumulator) InvokePVM(accState state.AccumulationState, serviceIndex block.ServiceId, gas uint64, operands []state.AccumulationOperand) AccumulationOutput {
	account, ok := accState.ServiceState[serviceIndex]
	if !ok {
		return AccumulationOutput{AccumulationState: accState}
	}

	// if c = ∅ ∨ |c| > W_C
	code, ok := account.CodeAndMetadata(serviceIndex)
	if !ok || len(code.Code) > a.cfg.MaxServiceCodeSize {
		return AccumulationOutput{AccumulationState: accState}
	}

	// I(u, s)^2
	ctx := a.newCtx(accState.Clone(), serviceIndex)
	ctxPair := host_call.AccumulateContextPair{
		RegularCtx:     ctx,
		ExceptionalCtx: ctx.Clone(),
	}

	// E(t, s, |o|)
	args := slices.Concat(
		jam.SerializeUint64(uint64(a.newTimeslot)),
		jam.SerializeUint64(uint64(serviceIndex)),
		jam.SerializeUint64(uint64(len(operands))),
	)

	if operands == nil {
		operands = []state.AccumulationOperand{}
	}
	env := host_call.AccumulateEnv{
		Timeslot: a.newTimeslot,
		Entropy:  a.newEntropy,
		Operands: operands,
	}

	gasUsed, ret, ctxPair, err := pvm.InvokeWholeProgram(code.Code, AccumulateEntryPoint, pvm.UGas(gas), args, accumulateHostCalls(a.cfg, env), ctxPair)
	if err != nil {
		// C(g, ∞ ∨ ☇, (x, y)) = (y_u, y_t, y_y, u, y_p)
		log.Accumulate.Debug().Err(err).Uint32("service", uint32(serviceIndex)).Msg("accumulation reverted to checkpoint")
		return collapse(ctxPair.ExceptionalCtx, gasUsed)
	}

	output := collapse(ctxPair.RegularCtx, gasUsed)
	// (x_u, x_t, o, u, x_p) if o ∈ H
	if len(ret) == crypto.HashSize {
		h := crypto.Hash(ret)
		output.Result = &h
	}
	return output
}

// newCtx I(u, s) = (s, u, i, [], ∅, []) with i = check(...) (eq. B.10 v0.6.7)
func (a *Accumulator) newCtx(u state.AccumulationState, serviceIndex block.ServiceId) host_call.AccumulateContext {
	return host_call.AccumulateContext{
		ServiceId:         serviceIndex,
		AccumulationState: u,
		NewServiceId:      service.DeriveIndex(serviceIndex, a.newEntropy, a.newTimeslot, u.ServiceState),
		DeferredTransfers: []service.DeferredTransfer{},
		ProvidedPreimages: []block.Preimage{},
	}
}

func collapse(ctx host_call.AccumulateContext, gasUsed pvm.UGas) AccumulationOutput {
	return AccumulationOutput{
		AccumulationState: ctx.AccumulationState,
		DeferredTransfers: ctx.DeferredTransfers,
		Result:            ctx.AccumulationHash,
		GasUsed:           uint64(gasUsed),
		ProvidedPreimages: ctx.ProvidedPreimages,
	}
}

// accumulateHostCalls F (eq. B.10 v0.6.7)
func accumulateHostCalls(cfg chainspec.Config, env host_call.AccumulateEnv) pvm.HostCall[host_call.AccumulateContextPair] {
	return func(hostCall uint64, gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctx host_call.AccumulateContextPair) (pvm.Gas, pvm.Registers, pvm.Memory, host_call.AccumulateContextPair, error) {
		if remaining, oog := outOfGas(hostCall, gas, regs); oog {
			return remaining, regs, mem, ctx, pvm.ErrOutOfGas
		}

		// s = x_s, d = (x_u)_d
		serviceId := ctx.RegularCtx.ServiceId
		d := ctx.RegularCtx.AccumulationState.ServiceState

		var err error
		switch hostCall {
		case host_call.GasID:
			gas, regs, err = host_call.GasRemaining(gas, regs)
		case host_call.FetchID:
			gas, regs, mem, err = host_call.Fetch(gas, regs, mem, cfg, host_call.FetchData{
				Entropy:  &env.Entropy,
				Operands: env.Operands,
			})
		case host_call.LookupID:
			gas, regs, mem, err = host_call.Lookup(gas, regs, mem, ctx.RegularCtx.ServiceAccount(), serviceId, d)
		case host_call.ReadID:
			gas, regs, mem, err = host_call.Read(gas, regs, mem, ctx.RegularCtx.ServiceAccount(), serviceId, d)
		case host_call.WriteID:
			var account service.ServiceAccount
			gas, regs, mem, account, err = host_call.Write(gas, regs, mem, ctx.RegularCtx.ServiceAccount(), serviceId, cfg)
			if err == nil {
				d[serviceId] = account
			}
		case host_call.InfoID:
			gas, regs, mem, err = host_call.Info(gas, regs, mem, serviceId, d, cfg)
		case host_call.BlessID:
			gas, regs, mem, ctx, err = host_call.Bless(gas, regs, mem, ctx, cfg)
		case host_call.AssignID:
			gas, regs, mem, ctx, err = host_call.Assign(gas, regs, mem, ctx, cfg)
		case host_call.DesignateID:
			gas, regs, mem, ctx, err = host_call.Designate(gas, regs, mem, ctx, cfg)
		case host_call.CheckpointID:
			gas, regs, mem, ctx, err = host_call.Checkpoint(gas, regs, mem, ctx)
		case host_call.NewID:
			gas, regs, mem, ctx, err = host_call.New(gas, regs, mem, ctx, env.Timeslot, cfg)
		case host_call.UpgradeID:
			gas, regs, mem, ctx, err = host_call.Upgrade(gas, regs, mem, ctx)
		case host_call.TransferID:
			gas, regs, mem, ctx, err = host_call.Transfer(gas, regs, mem, ctx, cfg)
		case host_call.EjectID:
			gas, regs, mem, ctx, err = host_call.Eject(gas, regs, mem, ctx, env.Timeslot, cfg)
		case host_call.QueryID:
			gas, regs, mem, ctx, err = host_call.Query(gas, regs, mem, ctx)
		case host_call.SolicitID:
			gas, regs, mem, ctx, err = host_call.Solicit(gas, regs, mem, ctx, env.Timeslot, cfg)
		case host_call.ForgetID:
			gas, regs, mem, ctx, err = host_call.Forget(gas, regs, mem, ctx, env.Timeslot, cfg)
		case host_call.YieldID:
			gas, regs, mem, ctx, err = host_call.Yield(gas, regs, mem, ctx)
		case host_call.ProvideID:
			gas, regs, mem, ctx, err = host_call.Provide(gas, regs, mem, ctx)
		case host_call.LogID:
			gas, regs, mem, err = host_call.Log(gas, regs, mem, nil, &serviceId)
		default:
			gas, regs = unknownHostCall(gas, regs)
		}
		return gas, regs, mem, ctx, err
	}
}
