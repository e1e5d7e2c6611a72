// Package statetransition implements Υ, the block-level state transition
// function (eq. 4.1 v0.6.7). The transition is pure: the prior state passed in
// is never modified and a failed import leaves nothing behind.
package statetransition

import (
	"fmt"

	"github.com/eigerco/jamtarget/internal/assuring"
	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/crypto/bandersnatch"
	"github.com/eigerco/jamtarget/internal/disputing"
	"github.com/eigerco/jamtarget/internal/guaranteeing"
	"github.com/eigerco/jamtarget/internal/merkle/trie"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/internal/state/serialization"
	"github.com/eigerco/jamtarget/pkg/log"
)

// Options tune checks that depend on the environment rather than the chain.
type Options struct {
	// CheckWallClock rejects blocks whose slot lies in the future.
	CheckWallClock bool
}

// Transition imports blocks on top of states for one chain configuration.
type Transition struct {
	cfg         chainspec.Config
	blockCodecs *block.Codecs
	stateCodecs *state.Codecs
	verifier    bandersnatch.Verifier
	opts        Options
}

func New(cfg chainspec.Config, verifier bandersnatch.Verifier, opts Options) *Transition {
	return &Transition{
		cfg:         cfg,
		blockCodecs: block.NewCodecs(cfg),
		stateCodecs: state.NewCodecs(cfg),
		verifier:    verifier,
		opts:        opts,
	}
}

func (t *Transition) Config() chainspec.Config        { return t.cfg }
func (t *Transition) BlockCodecs() *block.Codecs      { return t.blockCodecs }
func (t *Transition) StateCodecs() *state.Codecs      { return t.stateCodecs }
func (t *Transition) Verifier() bandersnatch.Verifier { return t.verifier }

// StateRoot computes M_σ(σ), the merkle root of the serialized state.
func (t *Transition) StateRoot(s state.State) (crypto.Hash, error) {
	serialized, err := serialization.SerializeState(t.stateCodecs, s)
	if err != nil {
		return crypto.Hash{}, err
	}
	return trie.MerklizeState(serialized), nil
}

// UpdateState applies the block to the prior state and returns the posterior
// state σ' ≡ Υ(σ, B). The stages run in dependency order (eq. 4.5-4.20 v0.6.7).
func (t *Transition) UpdateState(prior state.State, newBlock block.Block) (state.State, error) {
	priorRoot, err := t.StateRoot(prior)
	if err != nil {
		return state.State{}, fmt.Errorf("prior state root: %w", err)
	}
	return t.UpdateStateFromRoot(prior, priorRoot, newBlock)
}

// UpdateStateFromRoot is UpdateState for callers that already know the
// merkle root of the prior state.
func (t *Transition) UpdateStateFromRoot(prior state.State, priorRoot crypto.Hash, newBlock block.Block) (state.State, error) {
	cfg := t.cfg
	header := newBlock.Header
	trace := log.TraceStages

	// τ' ≺ H
	if err := ValidateTimeslot(prior.TimeslotIndex, header.TimeSlotIndex, t.opts.CheckWallClock); err != nil {
		return state.State{}, err
	}
	newTimeslot := CalculateNewTimeState(header)
	if err := VerifyBlockHeaderBasic(t.blockCodecs, priorRoot, prior.RecentHistory, newBlock); err != nil {
		return state.State{}, err
	}

	// η' ≺ (H, τ, η)
	vrfOutput, err := t.verifier.OutputHash(header.VRFSignature)
	if err != nil {
		return state.State{}, fmt.Errorf("%w: %w", ErrSealInvalid, err)
	}
	newEntropy := CalculateNewEntropyPool(cfg, prior.TimeslotIndex, newTimeslot, vrfOutput, prior.EntropyPool)

	// ψ' ≺ (E_D, ψ)
	disputes, err := disputing.ValidateDisputesExtrinsicAndProduceJudgements(
		cfg,
		prior.TimeslotIndex,
		newBlock.Extrinsic.ED,
		prior.ValidatorState.CurrentValidators,
		prior.ValidatorState.ArchivedValidators,
		prior.PastJudgements,
	)
	if err != nil {
		return state.State{}, fmt.Errorf("disputes: %w", err)
	}
	// ρ† ≺ (E_D, ρ)
	disputedAssignments := disputing.ClearDisputedAssignments(cfg, newBlock.Extrinsic.ED, prior.CoreAssignments)
	if trace {
		log.Internal.Debug().Int("offenders", len(disputes.Judgements.OffendingValidators)).Msg("disputes applied")
	}

	// (γ', κ', λ') ≺ (H, τ, E_T, γ, ι, η', κ, λ, ψ')
	newValidatorState, safroleOutput, err := UpdateSafroleState(cfg, t.verifier, SafroleInput{
		TimeSlot:  newTimeslot,
		Tickets:   newBlock.Extrinsic.ET.TicketProofs,
		Offenders: disputes.Judgements.OffendingValidators,
	}, prior.TimeslotIndex, newEntropy, prior.ValidatorState)
	if err != nil {
		return state.State{}, fmt.Errorf("safrole: %w", err)
	}
	if err := VerifyBlockHeaderSafrole(cfg, t.blockCodecs, t.verifier, header, newValidatorState, newEntropy, safroleOutput, disputes.Offenders); err != nil {
		return state.State{}, err
	}
	if trace {
		log.Internal.Debug().Bool("epoch_mark", safroleOutput.EpochMark != nil).Bool("tickets_mark", safroleOutput.TicketsMark != nil).Msg("safrole applied")
	}

	// ρ‡, R ≺ (E_A, ρ†)
	intermediateAssignments, availableReports, err := assuring.CalculateIntermediateCoreAssignmentsAndAvailableWorkReports(
		cfg,
		newBlock.Extrinsic.EA,
		newValidatorState.CurrentValidators,
		disputedAssignments,
		header,
	)
	if err != nil {
		return state.State{}, fmt.Errorf("assurances: %w", err)
	}

	// (ϑ', ξ', δ†, χ', ι', φ', θ', S) ≺ (R, ϑ, ξ, δ, χ, ι, φ, τ, τ')
	accumulation, err := CalculateWorkReportsAndAccumulate(cfg, prior, header, newEntropy[0], availableReports)
	if err != nil {
		return state.State{}, fmt.Errorf("accumulation: %w", err)
	}
	if trace {
		log.Internal.Debug().
			Int("available", len(availableReports)).
			Int("accumulated_services", len(accumulation.Stats)).
			Int("transfers", len(accumulation.DeferredTransfers)).
			Msg("accumulation applied")
	}

	// δ‡ ≺ (t, δ†, τ')
	postTransferServices, transferStats := CalculateServiceStateAfterTransfers(
		cfg,
		accumulation.ServiceState,
		newTimeslot,
		newEntropy[0],
		accumulation.DeferredTransfers,
		accumulation.Stats,
	)

	// δ' ≺ (E_P, δ‡, τ')
	if err := ValidatePreimages(newBlock.Extrinsic.EP, prior.Services); err != nil {
		return state.State{}, err
	}
	newServices := CalculateNewServiceStateWithPreimages(newBlock.Extrinsic.EP, postTransferServices, newTimeslot)

	// ρ' ≺ (E_G, ρ‡, κ, τ')
	intermediateRecentHistory := CalculateIntermediateRecentHistory(header, prior.RecentHistory)
	guarantees, err := guaranteeing.ValidateGuarantees(cfg, guaranteeing.Input{
		Guarantees:              newBlock.Extrinsic.EG,
		Timeslot:                newTimeslot,
		Entropy:                 newEntropy,
		CurrentValidators:       newValidatorState.CurrentValidators,
		ArchivedValidators:      newValidatorState.ArchivedValidators,
		Offenders:               disputes.Judgements.OffendingValidators,
		AuthorizersPool:         prior.CoreAuthorizersPool,
		Services:                prior.Services,
		RecentHistory:           intermediateRecentHistory,
		AccumulationQueue:       prior.AccumulationQueue,
		AccumulationHistory:     prior.AccumulationHistory,
		IntermediateAssignments: intermediateAssignments,
	})
	if err != nil {
		return state.State{}, fmt.Errorf("guarantees: %w", err)
	}

	// β' ≺ (H, E_G, β†, θ')
	headerHash, err := t.blockCodecs.HeaderHash(header)
	if err != nil {
		return state.State{}, fmt.Errorf("header hash: %w", err)
	}
	newRecentHistory := CalculateNewRecentHistory(cfg, headerHash, newBlock.Extrinsic.EG, intermediateRecentHistory, accumulation.AccumulationOutputLog)

	// α' ≺ (H, E_G, φ', α)
	newAuthorizersPool := CalculateNewCoreAuthorizations(cfg, header, newBlock.Extrinsic.EG, accumulation.PendingAuthorizersQueues, prior.CoreAuthorizersPool)

	// π' ≺ (E_G, E_P, E_A, E_T, τ, κ', π, H, I, R, S, X)
	newStatistics := CalculateNewActivityStatistics(cfg, StatisticsInput{
		Block:             newBlock,
		PriorTimeslot:     prior.TimeslotIndex,
		Reporters:         guarantees.Reporters,
		CurrentValidators: newValidatorState.CurrentValidators,
		IncomingReports:   guarantees.Reports,
		AvailableReports:  availableReports,
		AccumulationStats: accumulation.Stats,
		TransferStats:     transferStats,
	}, prior.ActivityStatistics)

	newValidatorState.QueuedValidators = accumulation.QueuedValidators
	return state.State{
		Services:                 newServices,
		PrivilegedServices:       accumulation.PrivilegedServices,
		ValidatorState:           newValidatorState,
		EntropyPool:              newEntropy,
		CoreAuthorizersPool:      newAuthorizersPool,
		PendingAuthorizersQueues: accumulation.PendingAuthorizersQueues,
		CoreAssignments:          guarantees.CoreAssignments,
		RecentHistory:            newRecentHistory,
		TimeslotIndex:            newTimeslot,
		PastJudgements:           disputes.Judgements,
		ActivityStatistics:       newStatistics,
		AccumulationQueue:        accumulation.AccumulationQueue,
		AccumulationHistory:      accumulation.AccumulationHistory,
		AccumulationOutputLog:    accumulation.AccumulationOutputLog,
	}, nil
}
