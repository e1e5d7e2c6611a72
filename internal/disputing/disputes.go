// Package disputing validates the disputes extrinsic and folds it into the
// judgements state ψ (section 10 v0.6.7).
package disputing

import (
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/constants"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/crypto/ed25519"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/pkg/log"
)

// verdictSummary is a verdict reduced to its number of positive judgements.
type verdictSummary struct {
	ReportHash crypto.Hash
	VoteCount  int
}

// Output is the result of a successful disputes validation.
type Output struct {
	Judgements state.Judgements          // ψ'
	Offenders  []crypto.Ed25519PublicKey // the keys the header offenders marker H_o must hold
}

// ValidateDisputesExtrinsicAndProduceJudgements validates E_D against the prior
// timeslot τ and validator sets κ and λ, and produces ψ' (eq. 10.2-10.19 v0.6.7).
func ValidateDisputesExtrinsicAndProduceJudgements(
	cfg chainspec.Config,
	prevTimeslot jamtime.Timeslot,
	disputes block.DisputeExtrinsic,
	currentValidators, archivedValidators safrole.ValidatorsData,
	prior state.Judgements,
) (Output, error) {
	if err := verifySortedUnique(disputes); err != nil {
		return Output{}, err
	}

	currentEpoch := prevTimeslot.ToEpoch(cfg.EpochLength)
	summaries := make([]verdictSummary, 0, len(disputes.Verdicts))
	for _, v := range disputes.Verdicts {
		// a ∈ {⌊τ/E⌋, ⌊τ/E⌋ - 1}
		if v.EpochIndex > currentEpoch || currentEpoch-v.EpochIndex > 1 {
			return Output{}, ErrBadJudgementAge
		}
		if err := verifyNotAlreadyJudged(v, prior); err != nil {
			return Output{}, err
		}

		validatorSet := currentValidators
		if v.EpochIndex != currentEpoch {
			validatorSet = archivedValidators
		}
		if err := verifyVerdictSignatures(v, validatorSet); err != nil {
			return Output{}, err
		}

		summary, err := summarizeVerdict(cfg, v, disputes.Faults, disputes.Culprits)
		if err != nil {
			return Output{}, err
		}
		summaries = append(summaries, summary)
	}

	posterior := prior.Clone()
	for _, s := range summaries {
		switch s.VoteCount {
		case cfg.ValidatorsSuperMajority():
			posterior.GoodWorkReports = append(posterior.GoodWorkReports, s.ReportHash)
		case 0:
			posterior.BadWorkReports = append(posterior.BadWorkReports, s.ReportHash)
		default:
			posterior.WonkyWorkReports = append(posterior.WonkyWorkReports, s.ReportHash)
		}
	}

	// k = {k_e | k ∈ λ ∪ κ} ∖ ψ_o
	allowedKeys := make(map[crypto.Ed25519PublicKey]struct{}, len(currentValidators)+len(archivedValidators))
	for _, set := range []safrole.ValidatorsData{currentValidators, archivedValidators} {
		for _, k := range set {
			allowedKeys[k.Ed25519] = struct{}{}
		}
	}

	offenders := make([]crypto.Ed25519PublicKey, 0, len(disputes.Culprits)+len(disputes.Faults))
	for _, c := range disputes.Culprits {
		if err := validateCulprit(c, posterior, allowedKeys); err != nil {
			return Output{}, err
		}
		offenders = append(offenders, c.ValidatorEd25519PublicKey)
	}
	for _, f := range disputes.Faults {
		if err := validateFault(f, posterior, allowedKeys); err != nil {
			return Output{}, err
		}
		offenders = append(offenders, f.ValidatorEd25519PublicKey)
	}
	posterior.OffendingValidators = append(posterior.OffendingValidators, offenders...)

	slices.SortFunc(posterior.GoodWorkReports, crypto.CompareHash)
	slices.SortFunc(posterior.BadWorkReports, crypto.CompareHash)
	slices.SortFunc(posterior.WonkyWorkReports, crypto.CompareHash)
	slices.SortFunc(posterior.OffendingValidators, crypto.CompareEd25519Key)

	if len(summaries) > 0 || len(offenders) > 0 {
		log.Internal.Debug().
			Int("verdicts", len(summaries)).
			Int("offenders", len(offenders)).
			Msg("disputes processed")
	}
	return Output{Judgements: posterior, Offenders: offenders}, nil
}

// ClearDisputedAssignments computes ρ† by removing the reports that did not
// receive a super-majority of positive judgements (eq. 10.15 v0.6.7):
//
//	∀c ∈ N_C : ρ†[c] = ∅ if {(H(ρ[c]_r), t) ∈ v, t < ⌊2/3V⌋}, ρ[c] otherwise
func ClearDisputedAssignments(cfg chainspec.Config, disputes block.DisputeExtrinsic, assignments state.CoreAssignments) state.CoreAssignments {
	cleared := assignments.Clone()
	for _, v := range disputes.Verdicts {
		if v.CountPositive() >= cfg.ValidatorsSuperMajority() {
			continue
		}
		for c, a := range cleared {
			if a == nil {
				continue
			}
			h, err := a.WorkReport.Hash()
			if err != nil {
				// the report was decoded from state, it always encodes
				panic(err)
			}
			if h == v.ReportHash {
				cleared[c] = nil
			}
		}
	}
	return cleared
}

// verifySortedUnique checks the orderings of eq. 10.7, 10.8 and 10.10 (v0.6.7):
// verdicts by report hash, culprits and faults by key, judgements by validator index.
func verifySortedUnique(disputes block.DisputeExtrinsic) error {
	for i := 1; i < len(disputes.Verdicts); i++ {
		if crypto.CompareHash(disputes.Verdicts[i-1].ReportHash, disputes.Verdicts[i].ReportHash) >= 0 {
			return ErrVerdictsNotSortedUnique
		}
	}
	for _, verdict := range disputes.Verdicts {
		for i := 1; i < len(verdict.Judgements); i++ {
			if verdict.Judgements[i-1].ValidatorIndex >= verdict.Judgements[i].ValidatorIndex {
				return ErrJudgementsNotSortedUnique
			}
		}
	}
	for i := 1; i < len(disputes.Culprits); i++ {
		if crypto.CompareEd25519Key(disputes.Culprits[i-1].ValidatorEd25519PublicKey, disputes.Culprits[i].ValidatorEd25519PublicKey) >= 0 {
			return ErrCulpritsNotSortedUnique
		}
	}
	for i := 1; i < len(disputes.Faults); i++ {
		if crypto.CompareEd25519Key(disputes.Faults[i-1].ValidatorEd25519PublicKey, disputes.Faults[i].ValidatorEd25519PublicKey) >= 0 {
			return ErrFaultsNotSortedUnique
		}
	}
	return nil
}

// verifyNotAlreadyJudged {r | (r, a, j) ∈ E_V} ⫰ ψ_G ∪ ψ_B ∪ ψ_W (eq. 10.9 v0.6.7)
func verifyNotAlreadyJudged(v block.Verdict, j state.Judgements) error {
	if slices.Contains(j.GoodWorkReports, v.ReportHash) ||
		slices.Contains(j.BadWorkReports, v.ReportHash) ||
		slices.Contains(j.WonkyWorkReports, v.ReportHash) {
		return ErrAlreadyJudged
	}
	return nil
}

// verifyVerdictSignatures ∀(r, a, j) ∈ E_V, ∀(v, i, s) ∈ j : s ∈ V̄_k[i]_e⟨X_v ⌢ r⟩ (eq. 10.3 v0.6.7)
func verifyVerdictSignatures(v block.Verdict, validators safrole.ValidatorsData) error {
	for _, j := range v.Judgements {
		if int(j.ValidatorIndex) >= len(validators) {
			return ErrBadValidatorIndex
		}
		if !ed25519.Verify(validators[j.ValidatorIndex].Ed25519, judgementMessage(j.IsValid, v.ReportHash), j.Signature) {
			return ErrBadSignature
		}
	}
	return nil
}

// summarizeVerdict checks the vote split and its fault and culprit requirements
// (eq. 10.11-10.14 v0.6.7).
func summarizeVerdict(cfg chainspec.Config, v block.Verdict, faults []block.Fault, culprits []block.Culprit) (verdictSummary, error) {
	votes := v.CountPositive()
	switch votes {
	case cfg.ValidatorsSuperMajority():
		// ∀(r, ⌊2/3V⌋ + 1) ∈ v : ∃(r, ...) ∈ E_F
		if !slices.ContainsFunc(faults, func(f block.Fault) bool { return f.ReportHash == v.ReportHash }) {
			return verdictSummary{}, ErrNotEnoughFaults
		}
	case 0:
		// ∀(r, 0) ∈ v : |{(r, ...) ∈ E_C}| ≥ 2
		matching := 0
		for _, c := range culprits {
			if c.ReportHash == v.ReportHash {
				matching++
			}
		}
		if matching < 2 {
			return verdictSummary{}, ErrNotEnoughCulprits
		}
	case cfg.ValidatorsOneThird():
	default:
		return verdictSummary{}, ErrBadVoteSplit
	}
	return verdictSummary{ReportHash: v.ReportHash, VoteCount: votes}, nil
}

// validateCulprit ∀(r, f, s) ∈ E_C : r ∈ ψ'_B, f ∈ k, s ∈ V̄_f⟨X_G ⌢ r⟩ (eq. 10.5 v0.6.7)
func validateCulprit(c block.Culprit, posterior state.Judgements, allowed map[crypto.Ed25519PublicKey]struct{}) error {
	if !slices.Contains(posterior.BadWorkReports, c.ReportHash) {
		return ErrCulpritsVerdictNotBad
	}
	if _, ok := allowed[c.ValidatorEd25519PublicKey]; !ok {
		return ErrBadGuarantorKey
	}
	if slices.Contains(posterior.OffendingValidators, c.ValidatorEd25519PublicKey) {
		return ErrOffenderAlreadyReported
	}
	message := append([]byte(constants.SignatureContextGuarantee), c.ReportHash[:]...)
	if !ed25519.Verify(c.ValidatorEd25519PublicKey, message, c.Signature) {
		return ErrBadSignature
	}
	return nil
}

// validateFault ∀(r, v, f, s) ∈ E_F : r ∈ ψ'_B ⇔ r ∉ ψ'_G ⇔ v, f ∈ k, s ∈ V̄_f⟨X_v ⌢ r⟩ (eq. 10.6 v0.6.7)
func validateFault(f block.Fault, posterior state.Judgements, allowed map[crypto.Ed25519PublicKey]struct{}) error {
	isBad := slices.Contains(posterior.BadWorkReports, f.ReportHash)
	isGood := slices.Contains(posterior.GoodWorkReports, f.ReportHash)
	if isBad == isGood || isBad != f.IsValid {
		return ErrFaultVerdictWrong
	}
	if _, ok := allowed[f.ValidatorEd25519PublicKey]; !ok {
		return ErrBadAuditorKey
	}
	if slices.Contains(posterior.OffendingValidators, f.ValidatorEd25519PublicKey) {
		return ErrOffenderAlreadyReported
	}
	if !ed25519.Verify(f.ValidatorEd25519PublicKey, judgementMessage(f.IsValid, f.ReportHash), f.Signature) {
		return ErrBadSignature
	}
	return nil
}

// judgementMessage is X_⊺ ⌢ r for a valid vote and X_⊥ ⌢ r otherwise.
func judgementMessage(valid bool, reportHash crypto.Hash) []byte {
	context := constants.SignatureContextValid
	if !valid {
		context = constants.SignatureContextInvalid
	}
	return append([]byte(context), reportHash[:]...)
}
