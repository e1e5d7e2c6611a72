package assuring

import (
	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/constants"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/crypto/ed25519"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// CalculateIntermediateCoreAssignmentsAndAvailableWorkReports implements equations
//
//	4.13: ρ‡ ≺ (E_A, ρ†)
//	4.15: R ≺ (E_A, ρ†)
//
// Reports assured by more than two thirds of the validators are returned as
// available (R) and removed from their cores, reports that timed out are
// dropped. ρ† itself is left untouched. (v0.6.7)
func CalculateIntermediateCoreAssignmentsAndAvailableWorkReports(
	cfg chainspec.Config,
	ae block.AssurancesExtrinsic,
	validators safrole.ValidatorsData,
	assignments state.CoreAssignments,
	header block.Header,
) (state.CoreAssignments, []block.WorkReport, error) {
	if err := validateAssurancesExtrinsic(cfg, ae, validators, assignments, header.ParentHash); err != nil {
		return nil, nil, err
	}

	counts := make([]int, cfg.NumberOfCores)
	for _, a := range ae {
		for c := range counts {
			if a.IsForCore(uint16(c)) {
				counts[c]++
			}
		}
	}

	intermediate := assignments.Clone()
	var available []block.WorkReport
	// R ≡ [ρ†[c]_r | c <- N_C, Σ_{a∈E_A} a_f[c] > 2/3V] (eq. 11.16 v0.6.7)
	// ρ‡[c] ≡ ∅ if ρ[c]_r ∈ R ∨ H_t ≥ ρ†[c]_t + U, ρ†[c] otherwise (eq. 11.17 v0.6.7)
	for c := range intermediate {
		if intermediate[c] == nil {
			continue
		}
		if counts[c] > cfg.AvailabilityThreshold() {
			available = append(available, intermediate[c].WorkReport)
			intermediate[c] = nil
			continue
		}
		if isAssignmentStale(cfg, intermediate[c], header.TimeSlotIndex) {
			intermediate[c] = nil
		}
	}
	return intermediate, available, nil
}

func validateAssurancesExtrinsic(cfg chainspec.Config, ae block.AssurancesExtrinsic, validators safrole.ValidatorsData, assignments state.CoreAssignments, parentHash crypto.Hash) error {
	for i, a := range ae {
		// ∀a ∈ E_A : a_a = H_p (eq. 11.11 v0.6.7)
		if a.Anchor != parentHash {
			return ErrBadAttestationParent
		}
		if int(a.ValidatorIndex) >= len(validators) {
			return ErrBadValidatorIndex
		}
		// ∀i ∈ {1 ... |E_A|} : E_A[i − 1]_v < E_A[i]_v (eq. 11.12 v0.6.7)
		if i > 0 && ae[i-1].ValidatorIndex >= a.ValidatorIndex {
			return ErrNotSortedOrUniqueAssurers
		}
	}

	// ∀a ∈ E_A : a_s ∈ V̄_κ[a_v]_e⟨X_A ⌢ H(E(H_p, a_f))⟩ (eq. 11.13 v0.6.7)
	for _, a := range ae {
		message, err := AssuranceMessage(cfg, parentHash, a.Bitfield)
		if err != nil {
			return ErrBadSignature
		}
		if !ed25519.Verify(validators[a.ValidatorIndex].Ed25519, message, a.Signature) {
			return ErrBadSignature
		}
	}

	// ∀a ∈ E_A, c ∈ N_C : a_f[c] ⇒ ρ†[c] ≠ ∅ (eq. 11.15 v0.6.7)
	for _, a := range ae {
		for c := range assignments {
			if a.IsForCore(uint16(c)) && assignments[c] == nil {
				return ErrCoreNotEngaged
			}
		}
	}
	return nil
}

// isAssignmentStale is H_t ≥ ρ†[c]_t + U
func isAssignmentStale(cfg chainspec.Config, a *state.Assignment, timeslot jamtime.Timeslot) bool {
	return uint64(timeslot) >= uint64(a.Time)+uint64(cfg.WorkReportTimeout)
}

// AssuranceMessage is the message an assurer signs, X_A ⌢ H(E(H_p, a_f)).
func AssuranceMessage(cfg chainspec.Config, parentHash crypto.Hash, bitfield jam.BitSequence) ([]byte, error) {
	encoded, err := jam.Marshal(jam.FixedBitSequence(int(cfg.NumberOfCores)), bitfield)
	if err != nil {
		return nil, err
	}
	h := crypto.HashData(append(parentHash[:len(parentHash):len(parentHash)], encoded...))
	return append([]byte(constants.SignatureContextAvailable), h[:]...), nil
}
