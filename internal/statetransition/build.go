package statetransition

import (
	"fmt"
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/state"
)

// BuildEmptyBlock builds a block without extrinsics that UpdateState accepts
// on top of prior at the given slot, carrying the given seal and entropy
// signatures. The author is the fallback sealer of the slot, or validator 0
// when the epoch is sealed by tickets.
func (t *Transition) BuildEmptyBlock(
	prior state.State,
	slot jamtime.Timeslot,
	vrfSignature, sealSignature crypto.BandersnatchSignature,
) (block.Block, error) {
	priorRoot, err := t.StateRoot(prior)
	if err != nil {
		return block.Block{}, err
	}
	extrinsic := block.Extrinsic{}
	extrinsicHash, err := t.blockCodecs.ExtrinsicHash(extrinsic)
	if err != nil {
		return block.Block{}, err
	}

	var parent crypto.Hash
	if n := len(prior.RecentHistory.BlockHistory); n > 0 {
		parent = prior.RecentHistory.BlockHistory[n-1].HeaderHash
	}

	vrfOutput, err := t.verifier.OutputHash(vrfSignature)
	if err != nil {
		return block.Block{}, err
	}
	newEntropy := CalculateNewEntropyPool(t.cfg, prior.TimeslotIndex, slot, vrfOutput, prior.EntropyPool)
	newValidatorState, output, err := UpdateSafroleState(t.cfg, t.verifier, SafroleInput{
		TimeSlot:  slot,
		Offenders: prior.PastJudgements.OffendingValidators,
	}, prior.TimeslotIndex, newEntropy, prior.ValidatorState)
	if err != nil {
		return block.Block{}, fmt.Errorf("safrole: %w", err)
	}

	var author uint16
	sealingKeys := newValidatorState.SafroleState.SealingKeySeries
	if sealingKeys.IsFallback() {
		phase := slot.Phase(t.cfg.EpochLength)
		if int(phase) >= len(sealingKeys.Keys) {
			return block.Block{}, fmt.Errorf("no sealing key for phase %d", phase)
		}
		index := slices.IndexFunc(newValidatorState.CurrentValidators, func(k crypto.ValidatorKey) bool {
			return k.Bandersnatch == sealingKeys.Keys[phase]
		})
		if index < 0 {
			return block.Block{}, fmt.Errorf("sealing key of phase %d is not a current validator", phase)
		}
		author = uint16(index)
	}

	return block.Block{
		Header: block.Header{
			ParentHash:           parent,
			PriorStateRoot:       priorRoot,
			ExtrinsicHash:        extrinsicHash,
			TimeSlotIndex:        slot,
			EpochMarker:          output.EpochMark,
			WinningTicketsMarker: output.TicketsMark,
			BlockAuthorIndex:     author,
			VRFSignature:         vrfSignature,
			BlockSealSignature:   sealSignature,
		},
		Extrinsic: extrinsic,
	}, nil
}
