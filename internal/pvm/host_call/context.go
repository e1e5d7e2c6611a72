package host_call

import (
	"bytes"
	"maps"
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/pvm"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/internal/work"
)

// AccumulateContext L ≡ (s ∈ N_S, u ∈ S, i ∈ N_S, t ∈ ⟦T⟧, y ∈ H?, p ∈ {(N_S, Y)}) (eq. B.7 v0.6.7)
type AccumulateContext struct {
	ServiceId         block.ServiceId            // s
	AccumulationState state.AccumulationState    // u
	NewServiceId      block.ServiceId            // i
	DeferredTransfers []service.DeferredTransfer // t
	AccumulationHash  *crypto.Hash               // y
	ProvidedPreimages []block.Preimage           // p
}

func (c AccumulateContext) Clone() AccumulateContext {
	cc := AccumulateContext{
		ServiceId:         c.ServiceId,
		AccumulationState: c.AccumulationState.Clone(),
		NewServiceId:      c.NewServiceId,
		// memos are never written after creation, sharing them is fine
		DeferredTransfers: slices.Clone(c.DeferredTransfers),
		ProvidedPreimages: make([]block.Preimage, len(c.ProvidedPreimages)),
	}
	if c.AccumulationHash != nil {
		h := *c.AccumulationHash
		cc.AccumulationHash = &h
	}
	for i, p := range c.ProvidedPreimages {
		cc.ProvidedPreimages[i] = block.Preimage{ServiceIndex: p.ServiceIndex, Data: bytes.Clone(p.Data)}
	}
	return cc
}

// ServiceAccount ∀x ∈ L ∶ x_s ≡ (x_u)_d[x_s] (eq. B.8 v0.6.7)
func (c AccumulateContext) ServiceAccount() service.ServiceAccount {
	return c.AccumulationState.ServiceState[c.ServiceId]
}

// setServiceAccount stores the updated accumulating account back into x_u.
func (c *AccumulateContext) setServiceAccount(a service.ServiceAccount) {
	c.AccumulationState.ServiceState[c.ServiceId] = a
}

// AccumulateContextPair is (x, y): the regular context and the exceptional
// one restored when the invocation panics or runs out of gas.
type AccumulateContextPair struct {
	RegularCtx     AccumulateContext // x
	ExceptionalCtx AccumulateContext // y
}

// AccumulateEnv is the read-only part of an accumulate or on-transfer
// invocation that host calls need besides the context.
type AccumulateEnv struct {
	Timeslot  jamtime.Timeslot            // t, the posterior timeslot
	Entropy   crypto.Hash                 // η'_0
	Operands  []state.AccumulationOperand // o, accumulate only
	Transfers []service.DeferredTransfer  // t, on-transfer only
}

// IntegratedPVM an inner machine G ≡ (p ∈ Y, u ∈ M, i ∈ N_R) (eq. B.4 v0.6.7)
type IntegratedPVM struct {
	Code               []byte       // p
	Ram                pvm.Memory   // u
	InstructionCounter uint64       // i
	program            *pvm.Program // deblobbed p, built once by machine
}

// RefineContextPair is (m, e): the inner machines and the exported segments.
type RefineContextPair struct {
	IntegratedPVMMap map[uint64]IntegratedPVM // m
	Segments         []work.Segment           // e
}

func (r RefineContextPair) Clone() RefineContextPair {
	out := RefineContextPair{
		IntegratedPVMMap: maps.Clone(r.IntegratedPVMMap),
		Segments:         slices.Clone(r.Segments),
	}
	for n, m := range out.IntegratedPVMMap {
		m.Ram = m.Ram.Clone()
		out.IntegratedPVMMap[n] = m
	}
	return out
}
