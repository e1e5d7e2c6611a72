package invocation

import (
	"github.com/eigerco/jamtarget/internal/pvm"
	"github.com/eigerco/jamtarget/internal/pvm/host_call"
	"github.com/eigerco/jamtarget/pkg/log"
)

// Entry points of the standard program for each invocation.
const (
	IsAuthorizedEntryPoint = 0
	RefineEntryPoint       = 0
	AccumulateEntryPoint   = 5
	OnTransferEntryPoint   = 10
)

// outOfGas is ϱ < g: the host call is not run and the machine stops with ∞
// and ϱ′ = ϱ − g, leaving registers, memory and the context as they were.
func outOfGas(hostCall uint64, gas pvm.Gas, regs pvm.Registers) (pvm.Gas, bool) {
	if log.TraceSteps {
		log.VM.Trace().Str("call", host_call.HostCallName(hostCall)).Int64("gas", int64(gas)).Msg("host call")
	}
	if cost := host_call.Cost(hostCall, regs); gas < cost {
		return gas - cost, true
	}
	return gas, false
}

// unknownHostCall (▸, ϱ − 10, [φ0, ..., φ6, WHAT, φ8, ...], μ)
func unknownHostCall(gas pvm.Gas, regs pvm.Registers) (pvm.Gas, pvm.Registers) {
	regs[pvm.R7] = uint64(host_call.WHAT)
	return gas - host_call.BaseCost, regs
}
