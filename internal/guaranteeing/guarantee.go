// Package guaranteeing validates the guarantees extrinsic and places the
// guaranteed reports on their cores (section 11.4 v0.6.7).
package guaranteeing

import (
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/common"
	"github.com/eigerco/jamtarget/internal/constants"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/crypto/ed25519"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/safemath"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/pkg/log"
)

// Input holds the state components the guarantees are checked against.
type Input struct {
	Guarantees              block.GuaranteesExtrinsic
	Timeslot                jamtime.Timeslot          // τ'
	Entropy                 state.EntropyPool         // η'
	CurrentValidators       safrole.ValidatorsData    // κ'
	ArchivedValidators      safrole.ValidatorsData    // λ'
	Offenders               []crypto.Ed25519PublicKey // ψ'_o
	AuthorizersPool         state.CoreAuthorizersPool // α
	Services                service.ServiceState      // δ
	RecentHistory           state.RecentHistory       // β†
	AccumulationQueue       state.AccumulationQueue   // ϑ
	AccumulationHistory     state.AccumulationHistory // ξ
	IntermediateAssignments state.CoreAssignments     // ρ‡
}

// Output is the result of accepting the guarantees.
type Output struct {
	CoreAssignments state.CoreAssignments       // ρ'
	Reports         []block.WorkReport          // I, the incoming reports
	Reporters       []crypto.Ed25519PublicKey   // G, sorted and unique
	Reported        map[crypto.Hash]crypto.Hash // p, package hash → segment root
}

// ValidateGuarantees runs every check of section 11.4 and computes ρ'
// (eq. 11.43 v0.6.7):
//
//	∀c ∈ N_C : ρ'[c] ≡ (r, t ▸▸ τ') if ∃(r, t, a) ∈ E_G, r_c = c, ρ‡[c] otherwise
func ValidateGuarantees(cfg chainspec.Config, in Input) (Output, error) {
	ge := in.Guarantees.Guarantees
	if err := verifySortedUnique(cfg, ge); err != nil {
		return Output{}, err
	}
	if err := verifyAuth(ge, in.AuthorizersPool); err != nil {
		return Output{}, err
	}
	reported, err := validateWorkReports(cfg, in)
	if err != nil {
		return Output{}, err
	}
	reporters, err := verifySignatures(cfg, in)
	if err != nil {
		return Output{}, err
	}
	if err := validateGasLimits(cfg, ge, in.Services); err != nil {
		return Output{}, err
	}

	out := Output{
		CoreAssignments: in.IntermediateAssignments.Clone(),
		Reports:         make([]block.WorkReport, 0, len(ge)),
		Reporters:       reporters,
		Reported:        reported,
	}
	for _, g := range ge {
		out.CoreAssignments[g.WorkReport.CoreIndex] = &state.Assignment{
			WorkReport: g.WorkReport,
			Time:       in.Timeslot,
		}
		out.Reports = append(out.Reports, g.WorkReport)
	}
	if len(ge) > 0 {
		log.Internal.Debug().Int("guarantees", len(ge)).Int("reporters", len(reporters)).Msg("guarantees accepted")
	}
	return out, nil
}

// RotateSequence R(c, n) ≡ [(x + n) mod C | x <- c] (eq. 11.19 v0.6.7)
func RotateSequence(cfg chainspec.Config, sequence []uint32, n uint32) []uint32 {
	rotated := make([]uint32, len(sequence))
	for i, x := range sequence {
		rotated[i] = (x + n) % uint32(cfg.NumberOfCores)
	}
	return rotated
}

// PermuteAssignments gives the core of every validator:
//
//	P(e, t) ≡ R(F([⌊C · i/V⌋ | i <- N_V], e), ⌊(t mod E)/R⌋) (eq. 11.20 v0.6.7)
func PermuteAssignments(cfg chainspec.Config, entropy crypto.Hash, timeslot jamtime.Timeslot) []uint32 {
	validators := uint32(cfg.NumberOfValidators)
	cores := make([]uint32, validators)
	for i := range validators {
		cores[i] = uint32(cfg.NumberOfCores) * i / validators
	}
	return RotateSequence(cfg, common.Shuffle(cores, entropy), timeslot.Phase(cfg.EpochLength)/cfg.ValidatorRotationPeriod)
}

// guarantorAssignment picks the assignment a guarantee made at slot t is
// checked against (eq. 11.21, 11.22, 11.26 v0.6.7):
//
//	M  ≡ (P(η'_2, τ'), Φ(κ'))                  if ⌊τ'/R⌋ = ⌊t/R⌋
//	M* ≡ (P(e, τ' − R), Φ(k)) otherwise, with
//	(e, k) = (η'_2, κ') if ⌊(τ' − R)/E⌋ = ⌊τ'/E⌋, (η'_3, λ') otherwise
func guarantorAssignment(cfg chainspec.Config, in Input, t jamtime.Timeslot) ([]uint32, safrole.ValidatorsData) {
	rotation := cfg.ValidatorRotationPeriod
	if uint32(t)/rotation == uint32(in.Timeslot)/rotation {
		return PermuteAssignments(cfg, in.Entropy[2], in.Timeslot), safrole.NullifyOffenders(in.CurrentValidators, in.Offenders)
	}

	previous := jamtime.Timeslot(safemath.SaturatingSub(uint32(in.Timeslot), rotation))
	entropy, validators := in.Entropy[2], in.CurrentValidators
	if previous.ToEpoch(cfg.EpochLength) != in.Timeslot.ToEpoch(cfg.EpochLength) {
		entropy, validators = in.Entropy[3], in.ArchivedValidators
	}
	return PermuteAssignments(cfg, entropy, previous), safrole.NullifyOffenders(validators, in.Offenders)
}

// verifySortedUnique checks the shape of E_G (eq. 11.23-11.25 v0.6.7):
// guarantees ordered by core, 2 or 3 credentials ordered by validator index.
func verifySortedUnique(cfg chainspec.Config, ge []block.Guarantee) error {
	for i, g := range ge {
		if g.WorkReport.CoreIndex >= cfg.NumberOfCores {
			return ErrBadCoreIndex
		}
		if i > 0 && ge[i-1].WorkReport.CoreIndex >= g.WorkReport.CoreIndex {
			return ErrOutOfOrderGuarantee
		}
		if len(g.Credentials) < 2 || len(g.Credentials) > 3 {
			return ErrInsufficientGuarantees
		}
		for j, c := range g.Credentials {
			if c.ValidatorIndex >= cfg.NumberOfValidators {
				return ErrBadValidatorIndex
			}
			if j > 0 && g.Credentials[j-1].ValidatorIndex >= c.ValidatorIndex {
				return ErrNotSortedOrUniqueGuarantors
			}
		}
	}
	return nil
}

// verifyAuth ∀r ∈ I : r_a ∈ α[r_c] (part of eq. 11.29 v0.6.7)
func verifyAuth(ge []block.Guarantee, pool state.CoreAuthorizersPool) error {
	for _, g := range ge {
		if int(g.WorkReport.CoreIndex) >= len(pool) {
			return ErrBadCoreIndex
		}
		if !slices.Contains(pool[g.WorkReport.CoreIndex], g.WorkReport.AuthorizerHash) {
			return ErrCoreUnauthorized
		}
	}
	return nil
}

// validateWorkReports checks the reports themselves and their contexts
// against recent history and the accumulation pipeline. It returns p.
func validateWorkReports(cfg chainspec.Config, in Input) (map[crypto.Hash]crypto.Hash, error) {
	ge := in.Guarantees.Guarantees
	for _, g := range ge {
		if err := validateWorkReportProperties(cfg, g.WorkReport); err != nil {
			return nil, err
		}
		// ρ‡[r_c] = ∅ (part of eq. 11.29 v0.6.7)
		if in.IntermediateAssignments[g.WorkReport.CoreIndex] != nil {
			return nil, ErrCoreEngaged
		}
		if err := verifyGuaranteeAge(cfg, g.Timeslot, in.Timeslot); err != nil {
			return nil, err
		}
	}

	// p ≡ {(r_s)_h ↦ (r_s)_e | r ∈ I}, |p| = |I| (eq. 11.31, 11.32 v0.6.7)
	reported := make(map[crypto.Hash]crypto.Hash, len(ge))
	for _, g := range ge {
		spec := g.WorkReport.AvailabilitySpecification
		if _, ok := reported[spec.WorkPackageHash]; ok {
			return nil, ErrDuplicatePackage
		}
		reported[spec.WorkPackageHash] = spec.SegmentRoot
	}

	for _, g := range ge {
		if err := validateRefinementContext(cfg, g.WorkReport.RefinementContext, in.RecentHistory, in.Timeslot); err != nil {
			return nil, err
		}
	}
	if err := validateNotInPipeline(in, reported); err != nil {
		return nil, err
	}

	for _, g := range ge {
		// ∀r ∈ I, ∀p ∈ (r_x)_p ∪ K(r_l) : p ∈ p ∪ {x | x ∈ K(b_p), b ∈ β_H} (eq. 11.39 v0.6.7)
		for _, dep := range g.WorkReport.Dependencies() {
			if _, ok := reported[dep]; !ok && !reportedInHistory(in.RecentHistory, dep) {
				return nil, ErrDependencyMissing
			}
		}
		// ∀r ∈ I : r_l ⊆ p ∪ ⋃_{b∈β_H} b_p (eq. 11.41 v0.6.7)
		for packageHash, segmentRoot := range g.WorkReport.SegmentRootLookup {
			if !segmentRootKnown(in.RecentHistory, reported, packageHash, segmentRoot) {
				return nil, ErrSegmentRootLookupInvalid
			}
		}
		// ∀r ∈ I, ∀d ∈ r_r : d_c = δ[d_s]_c (eq. 11.42 v0.6.7)
		for _, r := range g.WorkReport.WorkResults {
			account, ok := in.Services[r.ServiceId]
			if !ok {
				return nil, ErrBadServiceID
			}
			if r.ServiceHashCode != account.CodeHash {
				return nil, ErrBadCodeHash
			}
		}
	}
	return reported, nil
}

// validateWorkReportProperties checks the size limits of a report
// (eq. 11.2, 11.3, 11.8 v0.6.7):
//
//	r_r ∈ ⟦L⟧1:I, |r_l| + |(r_x)_p| ≤ J, |r_o| + Σ_{d∈r_r∩B} |d_l| ≤ W_R
func validateWorkReportProperties(cfg chainspec.Config, w block.WorkReport) error {
	if len(w.WorkResults) == 0 {
		return ErrMissingWorkResults
	}
	if len(w.WorkResults) > cfg.MaxWorkItems {
		return ErrTooManyWorkResults
	}
	if len(w.SegmentRootLookup)+len(w.RefinementContext.PrerequisiteWorkPackage) > cfg.MaxDependencies {
		return ErrTooManyDependencies
	}
	size := len(w.Output)
	for _, r := range w.WorkResults {
		if r.IsSuccessful() {
			size += len(r.Output.Output)
		}
	}
	if size > cfg.MaxWorkReportOutputSize {
		return ErrWorkReportTooBig
	}
	return nil
}

// verifyGuaranteeAge R(⌊τ'/R⌋ − 1) ≤ t ≤ τ' (part of eq. 11.26 v0.6.7)
func verifyGuaranteeAge(cfg chainspec.Config, t, newTimeslot jamtime.Timeslot) error {
	if t > newTimeslot {
		return ErrFutureReportSlot
	}
	rotation := cfg.ValidatorRotationPeriod
	currentRotation := uint32(newTimeslot) / rotation
	if currentRotation > 0 && uint32(t) < (currentRotation-1)*rotation {
		return ErrReportEpochBeforeLast
	}
	return nil
}

// validateRefinementContext checks the anchor and the lookup anchor:
//
//	∃y ∈ β†_H : x_a = y_h ∧ x_s = y_s ∧ x_b = y_b (eq. 11.33 v0.6.7)
//	x_t ≥ H_t − L (eq. 11.34 v0.6.7)
func validateRefinementContext(cfg chainspec.Config, x block.RefinementContext, history state.RecentHistory, timeslot jamtime.Timeslot) error {
	found := false
	for _, y := range history.BlockHistory {
		if y.HeaderHash != x.Anchor.HeaderHash {
			continue
		}
		if y.StateRoot != x.Anchor.PosteriorStateRoot {
			return ErrBadStateRoot
		}
		if y.BeefyRoot != x.Anchor.PosteriorBeefyRoot {
			return ErrBadBeefyMMRRoot
		}
		found = true
		break
	}
	if !found {
		return ErrAnchorNotRecent
	}
	if uint64(x.LookupAnchor.Timeslot)+uint64(cfg.MaxLookupAnchorAge) < uint64(timeslot) {
		return ErrLookupAnchorNotRecent
	}
	return nil
}

// validateNotInPipeline rejects packages that are already reported, queued,
// pending availability or accumulated (eq. 11.36-11.38 v0.6.7):
//
//	∀p ∈ p : p ∉ ⋃_{x∈β_H} K(x_p) ∪ ⋃_{x∈ξ} x ∪ q ∪ a
func validateNotInPipeline(in Input, reported map[crypto.Hash]crypto.Hash) error {
	// q ≡ {(r_s)_h | (r, d) ∈ ⋃ϑ}
	queued := make(map[crypto.Hash]struct{})
	for _, slot := range in.AccumulationQueue {
		for _, entry := range slot {
			queued[entry.WorkReport.AvailabilitySpecification.WorkPackageHash] = struct{}{}
		}
	}
	// a ≡ {((r_r)_s)_h | r ∈ ρ‡, r ≠ ∅}
	pending := make(map[crypto.Hash]struct{})
	for _, a := range in.IntermediateAssignments {
		if a != nil {
			pending[a.WorkReport.AvailabilitySpecification.WorkPackageHash] = struct{}{}
		}
	}

	for p := range reported {
		if reportedInHistory(in.RecentHistory, p) || in.AccumulationHistory.Contains(p) {
			return ErrWorkPackageInPipeline
		}
		if _, ok := queued[p]; ok {
			return ErrWorkPackageInPipeline
		}
		if _, ok := pending[p]; ok {
			return ErrWorkPackageInPipeline
		}
	}
	return nil
}

func reportedInHistory(history state.RecentHistory, p crypto.Hash) bool {
	for _, b := range history.BlockHistory {
		if _, ok := b.Reported[p]; ok {
			return true
		}
	}
	return false
}

func segmentRootKnown(history state.RecentHistory, reported map[crypto.Hash]crypto.Hash, packageHash, segmentRoot crypto.Hash) bool {
	if root, ok := reported[packageHash]; ok && root == segmentRoot {
		return true
	}
	for _, b := range history.BlockHistory {
		if root, ok := b.Reported[packageHash]; ok && root == segmentRoot {
			return true
		}
	}
	return false
}

// verifySignatures checks the credentials of every guarantee and collects the
// reporters (eq. 11.26, 11.27 v0.6.7):
//
//	∀(r, t, a) ∈ E_G, ∀(v, s) ∈ a : s ∈ V̄_(k_v)_e⟨X_G ⌢ H(r)⟩ ∧ c_v = r_c
//	G ≡ {(k_v)_e | (r, t, a) ∈ E_G, (v, s) ∈ a}
func verifySignatures(cfg chainspec.Config, in Input) ([]crypto.Ed25519PublicKey, error) {
	var reporters []crypto.Ed25519PublicKey
	for _, g := range in.Guarantees.Guarantees {
		assignments, validators := guarantorAssignment(cfg, in, g.Timeslot)

		reportHash, err := g.WorkReport.Hash()
		if err != nil {
			return nil, err
		}
		message := append([]byte(constants.SignatureContextGuarantee), reportHash[:]...)

		for _, c := range g.Credentials {
			if assignments[c.ValidatorIndex] != uint32(g.WorkReport.CoreIndex) {
				return nil, ErrWrongAssignment
			}
			key := validators[c.ValidatorIndex]
			if key.IsZero() {
				return nil, ErrBannedValidator
			}
			if !ed25519.Verify(key.Ed25519, message, c.Signature) {
				return nil, ErrBadSignature
			}
			reporters = append(reporters, key.Ed25519)
		}
	}
	slices.SortFunc(reporters, crypto.CompareEd25519Key)
	return slices.Compact(reporters), nil
}

// validateGasLimits ∀r ∈ I : Σ_{d∈r_r} d_g ≤ G_A ∧ ∀d ∈ r_r : d_g ≥ δ[d_s]_g (eq. 11.30 v0.6.7)
func validateGasLimits(cfg chainspec.Config, ge []block.Guarantee, services service.ServiceState) error {
	for _, g := range ge {
		var total uint64
		for _, r := range g.WorkReport.WorkResults {
			account, ok := services[r.ServiceId]
			if !ok {
				return ErrBadServiceID
			}
			if r.GasLimit < account.GasLimitForAccumulator {
				return ErrServiceItemGasTooLow
			}
			total, ok = safemath.Add(total, r.GasLimit)
			if !ok {
				return ErrWorkReportGasTooHigh
			}
		}
		if total > cfg.MaxAccumulationGas {
			return ErrWorkReportGasTooHigh
		}
	}
	return nil
}
