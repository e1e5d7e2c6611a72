package state

import (
	"maps"
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/service"
)

// EntropyPool η ∈ ⟦H⟧4
type EntropyPool [4]crypto.Hash

// CoreAuthorizersPool α ∈ ⟦⟦H⟧:O⟧C
type CoreAuthorizersPool [][]crypto.Hash

// PendingAuthorizersQueues φ ∈ ⟦⟦H⟧Q⟧C
type PendingAuthorizersQueues [][]crypto.Hash

func (p CoreAuthorizersPool) Clone() CoreAuthorizersPool {
	return cloneNested(p)
}

func (q PendingAuthorizersQueues) Clone() PendingAuthorizersQueues {
	return cloneNested(q)
}

func cloneNested[S ~[][]E, E any](s S) S {
	if s == nil {
		return nil
	}
	out := make(S, len(s))
	for i := range s {
		out[i] = slices.Clone(s[i])
	}
	return out
}

// Assignment is a report pending availability on a core, with the time it was reported.
type Assignment struct {
	WorkReport block.WorkReport // r
	Time       jamtime.Timeslot // t
}

// CoreAssignments ρ ∈ ⟦{r ∈ R, t ∈ N_T}?⟧C. Assignments are replaced, never
// modified, so a clone may share them.
type CoreAssignments []*Assignment

func (c CoreAssignments) Clone() CoreAssignments {
	return slices.Clone(c)
}

// Judgements ψ ≡ (ψg, ψb, ψw, ψo) (eq. 10.1 v0.6.7)
type Judgements struct {
	GoodWorkReports     []crypto.Hash             // Good work-reports (ψG)
	BadWorkReports      []crypto.Hash             // Bad work-reports (ψB)
	WonkyWorkReports    []crypto.Hash             // Wonky work-reports (ψW)
	OffendingValidators []crypto.Ed25519PublicKey // Offending validators (ψO)
}

func (j Judgements) Clone() Judgements {
	return Judgements{
		GoodWorkReports:     slices.Clone(j.GoodWorkReports),
		BadWorkReports:      slices.Clone(j.BadWorkReports),
		WonkyWorkReports:    slices.Clone(j.WonkyWorkReports),
		OffendingValidators: slices.Clone(j.OffendingValidators),
	}
}

// RecentHistory β ≡ (βH, βB) (eq. 7.1 v0.6.7)
type RecentHistory struct {
	BlockHistory          []BlockState   // βH, at most H entries
	AccumulationOutputLog []*crypto.Hash // βB, the peaks of the accumulation output belt
}

// BlockState is one entry of the recent block history.
type BlockState struct {
	HeaderHash crypto.Hash                 // h
	BeefyRoot  crypto.Hash                 // b, super-peak of the belt after this block
	StateRoot  crypto.Hash                 // s
	Reported   map[crypto.Hash]crypto.Hash // p, work-package hash → segment root
}

func (r RecentHistory) Clone() RecentHistory {
	out := RecentHistory{
		BlockHistory:          make([]BlockState, len(r.BlockHistory)),
		AccumulationOutputLog: slices.Clone(r.AccumulationOutputLog),
	}
	for i, b := range r.BlockHistory {
		b.Reported = maps.Clone(b.Reported)
		out.BlockHistory[i] = b
	}
	if r.BlockHistory == nil {
		out.BlockHistory = nil
	}
	return out
}

// ActivityStatistics π ≡ (πV, πL, πC, πS) (eq. 13.1 v0.6.7)
type ActivityStatistics struct {
	ValidatorsCurrent []ValidatorStatistics // πV, per validator, this epoch
	ValidatorsLast    []ValidatorStatistics // πL, per validator, previous epoch
	Cores             []CoreStatistics      // πC, per core, this block
	Services          ServiceStatistics     // πS, per service, this block
}

type ValidatorStatistics struct {
	NumOfBlocks                 uint32 // b
	NumOfTickets                uint32 // t
	NumOfPreimages              uint32 // p
	NumOfBytesAllPreimages      uint32 // d
	NumOfGuaranteedReports      uint32 // g
	NumOfAvailabilityAssurances uint32 // a
}

type CoreStatistics struct {
	DALoad         uint32 // d, octets placed into the audit and segment DA
	Popularity     uint16 // p, number of assurers of the core
	Imports        uint16 // i
	ExtrinsicCount uint16 // x
	ExtrinsicSize  uint32 // z
	Exports        uint16 // e
	BundleSize     uint32 // b
	GasUsed        uint64 // u, refine gas
}

type ServiceActivityRecord struct {
	ProvidedCount      uint16 // p.0
	ProvidedSize       uint32 // p.1
	RefinementCount    uint32 // r.0
	RefinementGasUsed  uint64 // r.1
	Imports            uint32 // i
	ExtrinsicCount     uint32 // x
	ExtrinsicSize      uint32 // z
	Exports            uint32 // e
	AccumulateCount    uint32 // a.0
	AccumulateGasUsed  uint64 // a.1
	OnTransfersCount   uint32 // t.0
	OnTransfersGasUsed uint64 // t.1
}

type ServiceStatistics map[block.ServiceId]ServiceActivityRecord

func (a ActivityStatistics) Clone() ActivityStatistics {
	return ActivityStatistics{
		ValidatorsCurrent: slices.Clone(a.ValidatorsCurrent),
		ValidatorsLast:    slices.Clone(a.ValidatorsLast),
		Cores:             slices.Clone(a.Cores),
		Services:          maps.Clone(a.Services),
	}
}

// WorkReportWithUnAccumulatedDependencies is an entry of the accumulation queue.
type WorkReportWithUnAccumulatedDependencies struct {
	WorkReport   block.WorkReport
	Dependencies []crypto.Hash // sorted set of work-package hashes
}

// AccumulationQueue ϑ ∈ ⟦⟦(R, {H})⟧⟧E (eq. 12.3 v0.6.7)
type AccumulationQueue [][]WorkReportWithUnAccumulatedDependencies

func (q AccumulationQueue) Clone() AccumulationQueue {
	if q == nil {
		return nil
	}
	out := make(AccumulationQueue, len(q))
	for i := range q {
		out[i] = make([]WorkReportWithUnAccumulatedDependencies, len(q[i]))
		for j, e := range q[i] {
			e.Dependencies = slices.Clone(e.Dependencies)
			out[i][j] = e
		}
		if q[i] == nil {
			out[i] = nil
		}
	}
	return out
}

// AccumulationHistory ξ ∈ ⟦{H}⟧E (eq. 12.1 v0.6.7)
type AccumulationHistory []map[crypto.Hash]struct{}

func (h AccumulationHistory) Clone() AccumulationHistory {
	if h == nil {
		return nil
	}
	out := make(AccumulationHistory, len(h))
	for i := range h {
		out[i] = maps.Clone(h[i])
	}
	return out
}

// Contains reports whether the package hash was accumulated in the last epoch.
func (h AccumulationHistory) Contains(p crypto.Hash) bool {
	for _, set := range h {
		if _, ok := set[p]; ok {
			return true
		}
	}
	return false
}

// AccumulationOutputLog θ ∈ ⟦(N_S, H)⟧ (eq. 7.4 v0.6.7)
type AccumulationOutputLog []ServiceHashPair

type ServiceHashPair struct {
	ServiceId block.ServiceId
	Hash      crypto.Hash
}

// AccumulationState characterization of state components (eq. 12.13 v0.6.7)
type AccumulationState struct {
	ServiceState             service.ServiceState       // d
	ValidatorKeys            safrole.ValidatorsData     // i
	PendingAuthorizersQueues PendingAuthorizersQueues   // q
	ManagerServiceId         block.ServiceId            // m
	AssignedServiceIds       []block.ServiceId          // a
	DesignateServiceId       block.ServiceId            // v
	AmountOfGasPerServiceId  map[block.ServiceId]uint64 // z
}

func (a AccumulationState) Clone() AccumulationState {
	return AccumulationState{
		ServiceState:             a.ServiceState.Clone(),
		ValidatorKeys:            slices.Clone(a.ValidatorKeys),
		PendingAuthorizersQueues: a.PendingAuthorizersQueues.Clone(),
		ManagerServiceId:         a.ManagerServiceId,
		AssignedServiceIds:       slices.Clone(a.AssignedServiceIds),
		DesignateServiceId:       a.DesignateServiceId,
		AmountOfGasPerServiceId:  maps.Clone(a.AmountOfGasPerServiceId),
	}
}

// Privileged returns the χ part of the accumulation state.
func (a AccumulationState) Privileged() service.PrivilegedServices {
	return service.PrivilegedServices{
		ManagerServiceId:        a.ManagerServiceId,
		AssignedServiceIds:      a.AssignedServiceIds,
		DesignateServiceId:      a.DesignateServiceId,
		AmountOfGasPerServiceId: a.AmountOfGasPerServiceId,
	}
}

// AccumulationOperand O ≡ {h, e, a, o, y, g, d} (eq. 12.19 v0.6.7)
type AccumulationOperand struct {
	WorkPackageHash   crypto.Hash                   // h
	SegmentRoot       crypto.Hash                   // e
	AuthorizationHash crypto.Hash                   // a
	Trace             []byte                        // o, the authorizer output
	PayloadHash       crypto.Hash                   // y
	GasLimit          uint64                        // g
	OutputOrError     block.WorkResultOutputOrError // d
}
