package invocation

import (
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/pvm"
	"github.com/eigerco/jamtarget/internal/pvm/host_call"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/work"
	"github.com/eigerco/jamtarget/pkg/log"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

type Refine struct {
	cfg          chainspec.Config
	serviceState service.ServiceState
}

func NewRefine(cfg chainspec.Config, serviceState service.ServiceState) *Refine {
	return &Refine{cfg: cfg, serviceState: serviceState}
}

// RefineInput are the arguments of ΨR besides the state.
type RefineInput struct {
	Core             uint16           // c
	ItemIndex        uint32           // i
	WorkPackage      work.Package     // p
	AuthorizerTrace  []byte           // r
	ImportedSegments [][]work.Segment // ī
	Extrinsics       [][][]byte       // x̄
	ExportOffset     uint64           // ς
}

// InvokePVM ΨR(N_C, N, P, B, ⟦⟦G⟧⟧, N) → (B ∪ E, ⟦G⟧, N_G) (eq. B.5 v0.6.7)
func (r *Refine) InvokePVM(in RefineInput) (block.WorkResultOutputOrError, []work.Segment, uint64) {
	// w = p_w[i]
	w := in.WorkPackage.WorkItems[in.ItemIndex]

	// (BAD, [], 0) if w_s ∉ K(δ) ∨ Λ(δ[w_s], (p_x)_t, w_c) = ∅
	account, ok := r.serviceState[w.ServiceId]
	if !ok {
		return block.WorkResultOutputOrError{Error: block.CodeNotAvailable}, nil, 0
	}
	preimage := account.LookupPreimage(w.ServiceId, in.WorkPackage.Context.LookupAnchor.Timeslot, w.CodeHash)
	if preimage == nil {
		return block.WorkResultOutputOrError{Error: block.CodeNotAvailable}, nil, 0
	}
	// E(↕m, c) = Λ(δ[w_s], (p_x)_t, w_c)
	_, n, err := jam.Blob.Decode(preimage)
	if err != nil {
		return block.WorkResultOutputOrError{Error: block.CodeNotAvailable}, nil, 0
	}
	code := preimage[n:]

	// (BIG, [], 0) if |c| > W_C
	if len(code) > r.cfg.MaxServiceCodeSize {
		return block.WorkResultOutputOrError{Error: block.CodeTooLarge}, nil, 0
	}

	packageBytes, err := jam.Marshal(work.PackageCodec, in.WorkPackage)
	if err != nil {
		return block.WorkResultOutputOrError{Error: block.UnexpectedTermination}, nil, 0
	}

	// a = E(c, i, w_s, ↕w_y, H(p))
	packageHash := crypto.HashData(packageBytes)
	args := slices.Concat(
		jam.SerializeUint64(uint64(in.Core)),
		jam.SerializeUint64(uint64(in.ItemIndex)),
		jam.SerializeUint64(uint64(w.ServiceId)),
		jam.SerializeUint64(uint64(len(w.Payload))),
		w.Payload,
		packageHash[:],
	)

	authorizerTrace := in.AuthorizerTrace
	if authorizerTrace == nil {
		authorizerTrace = []byte{}
	}
	// the refine invocation has no entropy, n = H_0
	entropy := crypto.Hash{}
	fetchData := host_call.FetchData{
		WorkPackage:      &in.WorkPackage,
		Entropy:          &entropy,
		AuthorizerTrace:  authorizerTrace,
		ItemIndex:        &in.ItemIndex,
		ImportedSegments: in.ImportedSegments,
		Extrinsics:       in.Extrinsics,
	}
	serviceId := w.ServiceId
	lookupTimeslot := in.WorkPackage.Context.LookupAnchor.Timeslot

	// F ∈ Ω⟨(D⟨N → M⟩, ⟦G⟧)⟩ (eq. B.6 v0.6.7)
	hostCall := func(hostCall uint64, gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair host_call.RefineContextPair) (pvm.Gas, pvm.Registers, pvm.Memory, host_call.RefineContextPair, error) {
		if remaining, oog := outOfGas(hostCall, gas, regs); oog {
			return remaining, regs, mem, ctxPair, pvm.ErrOutOfGas
		}
		var err error
		switch hostCall {
		case host_call.GasID:
			gas, regs, err = host_call.GasRemaining(gas, regs)
		case host_call.FetchID:
			gas, regs, mem, err = host_call.Fetch(gas, regs, mem, r.cfg, fetchData)
		case host_call.HistoricalLookupID:
			gas, regs, mem, ctxPair, err = host_call.HistoricalLookup(gas, regs, mem, ctxPair, serviceId, r.serviceState, lookupTimeslot)
		case host_call.ExportID:
			gas, regs, mem, ctxPair, err = host_call.Export(gas, regs, mem, ctxPair, in.ExportOffset, r.cfg)
		case host_call.MachineID:
			gas, regs, mem, ctxPair, err = host_call.Machine(gas, regs, mem, ctxPair)
		case host_call.PeekID:
			gas, regs, mem, ctxPair, err = host_call.Peek(gas, regs, mem, ctxPair)
		case host_call.PokeID:
			gas, regs, mem, ctxPair, err = host_call.Poke(gas, regs, mem, ctxPair)
		case host_call.PagesID:
			gas, regs, mem, ctxPair, err = host_call.Pages(gas, regs, mem, ctxPair)
		case host_call.InvokeID:
			gas, regs, mem, ctxPair, err = host_call.Invoke(gas, regs, mem, ctxPair)
		case host_call.ExpungeID:
			gas, regs, mem, ctxPair, err = host_call.Expunge(gas, regs, mem, ctxPair)
		case host_call.LogID:
			gas, regs, mem, err = host_call.Log(gas, regs, mem, &in.Core, &serviceId)
		default:
			gas, regs = unknownHostCall(gas, regs)
		}
		return gas, regs, mem, ctxPair, err
	}

	// (u, r, (m, e)) = ΨM(c, 0, w_g, a, F, (∅, []))
	gasUsed, result, ctxPair, err := pvm.InvokeWholeProgram(code, RefineEntryPoint, pvm.UGas(w.GasLimitRefine), args, hostCall, host_call.RefineContextPair{
		IntegratedPVMMap: make(map[uint64]host_call.IntegratedPVM),
		Segments:         []work.Segment{},
	})
	// (r, [], u) if r ∈ {∞, ☇}
	if err != nil {
		log.VM.Debug().Err(err).Uint32("service", uint32(serviceId)).Msg("refine did not halt")
		return block.WorkResultOutputOrError{Error: workError(err)}, nil, uint64(gasUsed)
	}
	return block.WorkResultOutputOrError{Output: result}, ctxPair.Segments, uint64(gasUsed)
}
