package invocation

import (
	"math"
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/pvm"
	"github.com/eigerco/jamtarget/internal/pvm/host_call"
	"github.com/eigerco/jamtarget/internal/safemath"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/pkg/log"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// InvokeOnTransfer On-Transfer service-account invocation ΨT(D, N_T, N_S, ⟦X⟧) → (A, N_G) (eq. B.15 v0.6.7).
// The only state alteration it facilitates are basic alterations to the
// storage of the receiving account. The transferred balance is credited
// even when the code does not run.
func InvokeOnTransfer(
	cfg chainspec.Config,
	serviceState service.ServiceState, // d
	newTimeslot jamtime.Timeslot, // t
	newEntropy crypto.Hash, // η'_0
	serviceIndex block.ServiceId, // s
	transfers []service.DeferredTransfer, // t
) (service.ServiceAccount, uint64) {
	// a = d[s] except a_b = d[s]_b + Σ r_a
	account := serviceState[serviceIndex].Clone()
	var gas uint64
	for _, transfer := range transfers {
		account.Balance = safemath.SaturatingAdd(account.Balance, transfer.Balance)
		gas = safemath.SaturatingAdd(gas, transfer.GasLimit)
	}

	// (a, 0) if c = ∅ ∨ |c| > W_C ∨ t = []
	code, ok := account.CodeAndMetadata(serviceIndex)
	if !ok || len(code.Code) > cfg.MaxServiceCodeSize || len(transfers) == 0 {
		return account, 0
	}

	// E(t, s, |t|)
	args := slices.Concat(
		jam.SerializeUint64(uint64(newTimeslot)),
		jam.SerializeUint64(uint64(serviceIndex)),
		jam.SerializeUint64(uint64(len(transfers))),
	)
	env := host_call.AccumulateEnv{
		Timeslot:  newTimeslot,
		Entropy:   newEntropy,
		Transfers: transfers,
	}

	// F (eq. B.16 v0.6.7)
	hostCallFunc := func(hostCall uint64, gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, s service.ServiceAccount) (pvm.Gas, pvm.Registers, pvm.Memory, service.ServiceAccount, error) {
		if remaining, oog := outOfGas(hostCall, gas, regs); oog {
			return remaining, regs, mem, s, pvm.ErrOutOfGas
		}
		var err error
		switch hostCall {
		case host_call.GasID:
			gas, regs, err = host_call.GasRemaining(gas, regs)
		case host_call.FetchID:
			gas, regs, mem, err = host_call.Fetch(gas, regs, mem, cfg, host_call.FetchData{
				Entropy:   &env.Entropy,
				Transfers: env.Transfers,
			})
		case host_call.LookupID:
			gas, regs, mem, err = host_call.Lookup(gas, regs, mem, s, serviceIndex, serviceState)
		case host_call.ReadID:
			gas, regs, mem, err = host_call.Read(gas, regs, mem, s, serviceIndex, serviceState)
		case host_call.WriteID:
			gas, regs, mem, s, err = host_call.Write(gas, regs, mem, s, serviceIndex, cfg)
		case host_call.InfoID:
			// d[s] is the account being transferred to
			d := service.ServiceState{serviceIndex: s}
			if regs[pvm.R7] != uint64(serviceIndex) && regs[pvm.R7] != math.MaxUint64 {
				d = serviceState
			}
			gas, regs, mem, err = host_call.Info(gas, regs, mem, serviceIndex, d, cfg)
		case host_call.LogID:
			gas, regs, mem, err = host_call.Log(gas, regs, mem, nil, &serviceIndex)
		default:
			gas, regs = unknownHostCall(gas, regs)
		}
		return gas, regs, mem, s, err
	}

	gasUsed, _, account, err := pvm.InvokeWholeProgram(code.Code, OnTransferEntryPoint, pvm.UGas(gas), args, hostCallFunc, account)
	if err != nil {
		log.Accumulate.Debug().Err(err).Uint32("service", uint32(serviceIndex)).Msg("on-transfer did not halt")
	}
	return account, uint64(gasUsed)
}
