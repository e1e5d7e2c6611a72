package statetransition

import (
	"fmt"
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/constants"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/crypto/bandersnatch"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/state"
)

// SafroleInput holds the block parts the safrole transition depends on.
type SafroleInput struct {
	TimeSlot  jamtime.Timeslot          // H_t
	Tickets   []block.TicketProof       // E_T
	Offenders []crypto.Ed25519PublicKey // ψ'_o
}

// SafroleOutput holds the markers the header is expected to carry.
type SafroleOutput struct {
	EpochMark   *block.EpochMarker         // H_e
	TicketsMark *block.WinningTicketMarker // H_w
}

// CalculateNewTimeState τ' ≡ H_t (eq. 6.1 v0.6.7)
func CalculateNewTimeState(header block.Header) jamtime.Timeslot {
	return header.TimeSlotIndex
}

// ValidateTimeslot checks P(H)_t < H_t (eq. 5.7 v0.6.7). When checkWallClock
// is set the slot must also not lie in the future.
func ValidateTimeslot(priorTimeslot, newTimeslot jamtime.Timeslot, checkWallClock bool) error {
	if newTimeslot <= priorTimeslot {
		return ErrBadSlot
	}
	if checkWallClock && newTimeslot.IsInFuture() {
		return ErrSlotInFuture
	}
	return nil
}

// CalculateNewEntropyPool implements equations 6.22 and 6.23 v0.6.7:
//
//	η'_0 ≡ H(η_0 ⌢ Y(H_v))
//	(η'_1, η'_2, η'_3) ≡ (η_0, η_1, η_2) if e' > e, (η_1, η_2, η_3) otherwise
func CalculateNewEntropyPool(cfg chainspec.Config, priorTimeslot, newTimeslot jamtime.Timeslot, entropyInput crypto.Hash, pool state.EntropyPool) state.EntropyPool {
	newPool := pool
	if newTimeslot.ToEpoch(cfg.EpochLength) > priorTimeslot.ToEpoch(cfg.EpochLength) {
		newPool = rotateEntropyPool(pool)
	}
	newPool[0] = crypto.HashData(append(pool[0][:], entropyInput[:]...))
	return newPool
}

func rotateEntropyPool(pool state.EntropyPool) state.EntropyPool {
	pool[3] = pool[2]
	pool[2] = pool[1]
	pool[1] = pool[0]
	return pool
}

// UpdateSafroleState computes κ', λ' and γ' from the prior validator state
// and the tickets extrinsic (eq. 6.13-6.35 v0.6.7). newEntropy is η'.
func UpdateSafroleState(
	cfg chainspec.Config,
	verifier bandersnatch.Verifier,
	input SafroleInput,
	priorTimeslot jamtime.Timeslot,
	newEntropy state.EntropyPool,
	validatorState state.ValidatorState,
) (state.ValidatorState, SafroleOutput, error) {
	if input.TimeSlot <= priorTimeslot {
		return validatorState, SafroleOutput{}, ErrBadSlot
	}

	epoch := priorTimeslot.ToEpoch(cfg.EpochLength)
	newEpoch := input.TimeSlot.ToEpoch(cfg.EpochLength)
	phase := priorTimeslot.Phase(cfg.EpochLength)
	newPhase := input.TimeSlot.Phase(cfg.EpochLength)

	newState := validatorState.Clone()
	output := SafroleOutput{}

	if newEpoch > epoch {
		// (γ'_k, κ', λ', γ'_z) ≡ (Φ(ι), γ_k, κ, z) if e' > e (eq. 6.13 v0.6.7)
		newState.SafroleState.NextValidators = safrole.NullifyOffenders(validatorState.QueuedValidators, input.Offenders)
		newState.CurrentValidators = slices.Clone(validatorState.SafroleState.NextValidators)
		newState.ArchivedValidators = slices.Clone(validatorState.CurrentValidators)

		// z = O([k_b | k <- γ'_k])
		commitment, err := verifier.RingCommitment(newState.SafroleState.NextValidators.BandersnatchKeys())
		if err != nil {
			return validatorState, SafroleOutput{}, fmt.Errorf("ring commitment: %w", err)
		}
		newState.SafroleState.RingCommitment = commitment

		// H_e ≡ (η_0, η_1, [(k_b, k_e) | k <- γ'_k]) if e' > e (eq. 6.27 v0.6.7)
		output.EpochMark = &block.EpochMarker{
			Entropy:        newEntropy[1],
			TicketsEntropy: newEntropy[2],
			Keys:           make([]block.ValidatorKeys, len(newState.SafroleState.NextValidators)),
		}
		for i, v := range newState.SafroleState.NextValidators {
			output.EpochMark.Keys[i] = block.ValidatorKeys{Bandersnatch: v.Bandersnatch, Ed25519: v.Ed25519}
		}

		// γ'_s (eq. 6.24 v0.6.7)
		priorAccumulator := validatorState.SafroleState.TicketAccumulator
		if newEpoch == epoch+1 && phase >= cfg.TicketSubmissionEnd && len(priorAccumulator) == int(cfg.EpochLength) {
			newState.SafroleState.SealingKeySeries = safrole.TicketsOrKeys{Tickets: safrole.OutsideInSequence(priorAccumulator)}
		} else {
			newState.SafroleState.SealingKeySeries = safrole.TicketsOrKeys{
				Keys: safrole.FallbackKeys(newEntropy[2], newState.CurrentValidators, cfg.EpochLength),
			}
		}
		newState.SafroleState.TicketAccumulator = nil
	} else if phase < cfg.TicketSubmissionEnd && cfg.TicketSubmissionEnd <= newPhase &&
		len(validatorState.SafroleState.TicketAccumulator) == int(cfg.EpochLength) {
		// H_w ≡ Z(γ_a) if e' = e ∧ m < Y ≤ m' ∧ |γ_a| = E (eq. 6.28 v0.6.7)
		marker := block.WinningTicketMarker(safrole.OutsideInSequence(validatorState.SafroleState.TicketAccumulator))
		output.TicketsMark = &marker
	}

	newTickets, err := verifyTickets(cfg, verifier, input.Tickets, newPhase, newEntropy[2], newState.SafroleState)
	if err != nil {
		return validatorState, SafroleOutput{}, err
	}

	// γ'_a ≡ ←[x ∈ n ∪ (∅ if e' > e, γ_a otherwise)]^E (eq. 6.34 v0.6.7)
	accumulator := slices.Concat(newState.SafroleState.TicketAccumulator, newTickets)
	slices.SortFunc(accumulator, block.CompareTickets)
	if len(accumulator) > int(cfg.EpochLength) {
		// n ⊆ γ'_a (eq. 6.35 v0.6.7)
		for _, dropped := range accumulator[cfg.EpochLength:] {
			if slices.ContainsFunc(newTickets, func(t block.Ticket) bool { return t.Identifier == dropped.Identifier }) {
				return validatorState, SafroleOutput{}, safrole.ErrUnexpectedTicket
			}
		}
		accumulator = accumulator[:cfg.EpochLength]
	}
	newState.SafroleState.TicketAccumulator = accumulator
	return newState, output, nil
}

// verifyTickets validates E_T and returns n, the new tickets
// (eq. 6.29-6.33 v0.6.7).
func verifyTickets(
	cfg chainspec.Config,
	verifier bandersnatch.Verifier,
	proofs []block.TicketProof,
	newPhase uint32,
	ticketsEntropy crypto.Hash,
	safroleState safrole.State,
) ([]block.Ticket, error) {
	if len(proofs) == 0 {
		return nil, nil
	}
	// |E_T| ≤ K if m' < Y, 0 otherwise
	if newPhase >= cfg.TicketSubmissionEnd {
		return nil, safrole.ErrUnexpectedTicket
	}
	if len(proofs) > cfg.MaxTicketsPerExtrinsic {
		return nil, safrole.ErrTooManyTickets
	}

	tickets := make([]block.Ticket, len(proofs))
	for i, proof := range proofs {
		if proof.EntryIndex >= cfg.MaxTicketAttempts {
			return nil, safrole.ErrBadTicketAttempt
		}
		// X_T ⌢ η'_2 ++ r
		context := append([]byte(constants.SignatureContextTicket), ticketsEntropy[:]...)
		context = append(context, proof.EntryIndex)
		id, ok := verifier.RingVerify(int(cfg.NumberOfValidators), safroleState.RingCommitment, context, []byte{}, proof.Proof)
		if !ok {
			return nil, safrole.ErrBadTicketProof
		}
		tickets[i] = block.Ticket{Identifier: id, EntryIndex: proof.EntryIndex}
	}

	// n = [x_y ^ x ∈ n] ordered, no duplicates (eq. 6.32 v0.6.7)
	for i := 1; i < len(tickets); i++ {
		if block.CompareTickets(tickets[i-1], tickets[i]) >= 0 {
			return nil, safrole.ErrBadTicketOrder
		}
	}
	// {x_y | x ∈ n} ⫰ {x_y | x ∈ γ_a} (eq. 6.33 v0.6.7)
	existing := make(map[crypto.Hash]struct{}, len(safroleState.TicketAccumulator))
	for _, t := range safroleState.TicketAccumulator {
		existing[t.Identifier] = struct{}{}
	}
	for _, t := range tickets {
		if _, ok := existing[t.Identifier]; ok {
			return nil, safrole.ErrDuplicateTicket
		}
	}
	return tickets, nil
}
