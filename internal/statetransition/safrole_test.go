package statetransition

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/crypto/bandersnatch"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/internal/testutils"
)

func TestCalculateNewTimeStateTransition(t *testing.T) {
	header := block.Header{TimeSlotIndex: 2}
	assert.Equal(t, jamtime.Timeslot(2), CalculateNewTimeState(header))
}

func TestValidateTimeslot(t *testing.T) {
	assert.NoError(t, ValidateTimeslot(1, 2, false))
	assert.ErrorIs(t, ValidateTimeslot(2, 2, false), ErrBadSlot)
	assert.ErrorIs(t, ValidateTimeslot(3, 2, false), ErrBadSlot)
	assert.ErrorIs(t, ValidateTimeslot(1, jamtime.Timeslot(1<<31), true), ErrSlotInFuture)
}

func TestCalculateNewEntropyPoolWhenNewEpoch(t *testing.T) {
	cfg := chainspec.Tiny()
	pool := state.EntropyPool{{1}, {2}, {3}, {4}}
	input := crypto.Hash{9}

	newPool := CalculateNewEntropyPool(cfg, jamtime.Timeslot(cfg.EpochLength-1), jamtime.Timeslot(cfg.EpochLength), input, pool)

	assert.Equal(t, crypto.HashData(append(pool[0][:], input[:]...)), newPool[0])
	assert.Equal(t, pool[0], newPool[1])
	assert.Equal(t, pool[1], newPool[2])
	assert.Equal(t, pool[2], newPool[3])
	assert.Equal(t, crypto.Hash{1}, pool[0], "prior pool is not modified")
}

func TestCalculateNewEntropyPoolWhenNotNewEpoch(t *testing.T) {
	cfg := chainspec.Tiny()
	pool := state.EntropyPool{{1}, {2}, {3}, {4}}
	input := crypto.Hash{9}

	newPool := CalculateNewEntropyPool(cfg, 1, 2, input, pool)

	assert.Equal(t, crypto.HashData(append(pool[0][:], input[:]...)), newPool[0])
	assert.Equal(t, pool[1:], newPool[1:])
}

func TestUpdateSafroleStateWithinEpoch(t *testing.T) {
	cfg := chainspec.Tiny()
	prior := testutils.GenesisState(cfg)

	newState, output, err := UpdateSafroleState(cfg, bandersnatch.Insecure{}, SafroleInput{TimeSlot: 3}, 2, prior.EntropyPool, prior.ValidatorState)
	require.NoError(t, err)

	assert.Nil(t, output.EpochMark)
	assert.Nil(t, output.TicketsMark)
	assert.Equal(t, prior.ValidatorState, newState)
}

func TestUpdateSafroleStateEpochChange(t *testing.T) {
	cfg := chainspec.Tiny()
	prior := testutils.GenesisState(cfg)
	queued := testutils.RandomValidatorsData(t, int(cfg.NumberOfValidators))
	prior.ValidatorState.QueuedValidators = queued
	offender := queued[1].Ed25519
	entropy := state.EntropyPool{{1}, {2}, {3}, {4}}

	newState, output, err := UpdateSafroleState(cfg, bandersnatch.Insecure{}, SafroleInput{
		TimeSlot:  jamtime.Timeslot(cfg.EpochLength),
		Offenders: []crypto.Ed25519PublicKey{offender},
	}, jamtime.Timeslot(cfg.EpochLength-1), entropy, prior.ValidatorState)
	require.NoError(t, err)

	assert.Equal(t, prior.ValidatorState.SafroleState.NextValidators, newState.CurrentValidators)
	assert.Equal(t, prior.ValidatorState.CurrentValidators, newState.ArchivedValidators)
	assert.True(t, newState.SafroleState.NextValidators[1].IsZero(), "offenders are nullified")
	assert.Equal(t, queued[0], newState.SafroleState.NextValidators[0])

	commitment, err := bandersnatch.Insecure{}.RingCommitment(newState.SafroleState.NextValidators.BandersnatchKeys())
	require.NoError(t, err)
	assert.Equal(t, commitment, newState.SafroleState.RingCommitment)

	require.NotNil(t, output.EpochMark)
	assert.Equal(t, entropy[1], output.EpochMark.Entropy)
	assert.Equal(t, entropy[2], output.EpochMark.TicketsEntropy)
	require.Len(t, output.EpochMark.Keys, int(cfg.NumberOfValidators))
	assert.Equal(t, queued[0].Bandersnatch, output.EpochMark.Keys[0].Bandersnatch)

	assert.True(t, newState.SafroleState.SealingKeySeries.IsFallback(), "accumulator was not full")
	assert.Equal(t, safrole.FallbackKeys(entropy[2], newState.CurrentValidators, cfg.EpochLength), newState.SafroleState.SealingKeySeries.Keys)
	assert.Empty(t, newState.SafroleState.TicketAccumulator)
}

func TestUpdateSafroleStateSealsWithTicketsAfterFullAccumulator(t *testing.T) {
	cfg := chainspec.Tiny()
	prior := testutils.GenesisState(cfg)
	prior.ValidatorState.SafroleState.TicketAccumulator = sortedTickets(int(cfg.EpochLength))

	newState, _, err := UpdateSafroleState(cfg, bandersnatch.Insecure{}, SafroleInput{
		TimeSlot: jamtime.Timeslot(cfg.EpochLength),
	}, jamtime.Timeslot(cfg.EpochLength-1), prior.EntropyPool, prior.ValidatorState)
	require.NoError(t, err)

	require.False(t, newState.SafroleState.SealingKeySeries.IsFallback())
	assert.Equal(t, safrole.OutsideInSequence(prior.ValidatorState.SafroleState.TicketAccumulator), newState.SafroleState.SealingKeySeries.Tickets)
}

func TestUpdateSafroleStateTicketsMarker(t *testing.T) {
	cfg := chainspec.Tiny()
	prior := testutils.GenesisState(cfg)
	prior.ValidatorState.SafroleState.TicketAccumulator = sortedTickets(int(cfg.EpochLength))

	_, output, err := UpdateSafroleState(cfg, bandersnatch.Insecure{}, SafroleInput{
		TimeSlot: jamtime.Timeslot(cfg.TicketSubmissionEnd),
	}, jamtime.Timeslot(cfg.TicketSubmissionEnd-1), prior.EntropyPool, prior.ValidatorState)
	require.NoError(t, err)

	require.NotNil(t, output.TicketsMark)
	assert.Equal(t, block.WinningTicketMarker(safrole.OutsideInSequence(prior.ValidatorState.SafroleState.TicketAccumulator)), *output.TicketsMark)
	assert.Nil(t, output.EpochMark)
}

func TestUpdateSafroleStateAccumulatesTickets(t *testing.T) {
	cfg := chainspec.Tiny()
	prior := testutils.GenesisState(cfg)
	proofs := ticketProofs(t, 2)

	newState, _, err := UpdateSafroleState(cfg, bandersnatch.Insecure{}, SafroleInput{
		TimeSlot: 2,
		Tickets:  proofs,
	}, 1, prior.EntropyPool, prior.ValidatorState)
	require.NoError(t, err)

	require.Len(t, newState.SafroleState.TicketAccumulator, 2)
	assert.True(t, slices.IsSortedFunc(newState.SafroleState.TicketAccumulator, block.CompareTickets))
	assert.Empty(t, prior.ValidatorState.SafroleState.TicketAccumulator, "prior accumulator is not modified")
}

func TestUpdateSafroleStateTicketErrors(t *testing.T) {
	cfg := chainspec.Tiny()
	testCases := []struct {
		name  string
		slot  jamtime.Timeslot
		build func(t *testing.T, s *state.ValidatorState) []block.TicketProof
		err   error
	}{
		{
			name: "ticket after submission end",
			slot: jamtime.Timeslot(cfg.TicketSubmissionEnd),
			build: func(t *testing.T, _ *state.ValidatorState) []block.TicketProof {
				return ticketProofs(t, 1)
			},
			err: safrole.ErrUnexpectedTicket,
		},
		{
			name: "too many tickets",
			slot: 2,
			build: func(t *testing.T, _ *state.ValidatorState) []block.TicketProof {
				return ticketProofs(t, cfg.MaxTicketsPerExtrinsic+1)
			},
			err: safrole.ErrTooManyTickets,
		},
		{
			name: "bad attempt",
			slot: 2,
			build: func(t *testing.T, _ *state.ValidatorState) []block.TicketProof {
				proofs := ticketProofs(t, 1)
				proofs[0].EntryIndex = cfg.MaxTicketAttempts
				return proofs
			},
			err: safrole.ErrBadTicketAttempt,
		},
		{
			name: "not sorted",
			slot: 2,
			build: func(t *testing.T, _ *state.ValidatorState) []block.TicketProof {
				proofs := ticketProofs(t, 2)
				slices.Reverse(proofs)
				return proofs
			},
			err: safrole.ErrBadTicketOrder,
		},
		{
			name: "already accumulated",
			slot: 2,
			build: func(t *testing.T, s *state.ValidatorState) []block.TicketProof {
				proofs := ticketProofs(t, 1)
				s.SafroleState.TicketAccumulator = []block.Ticket{{Identifier: ticketId(proofs[0])}}
				return proofs
			},
			err: safrole.ErrDuplicateTicket,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			prior := testutils.GenesisState(cfg)
			proofs := tc.build(t, &prior.ValidatorState)
			_, _, err := UpdateSafroleState(cfg, bandersnatch.Insecure{}, SafroleInput{
				TimeSlot: tc.slot,
				Tickets:  proofs,
			}, tc.slot-1, prior.EntropyPool, prior.ValidatorState)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestUpdateSafroleStateDropsNewTicket(t *testing.T) {
	cfg := chainspec.Tiny()
	prior := testutils.GenesisState(cfg)
	proofs := ticketProofs(t, 1)
	// a full accumulator of tickets that all sort before the new one
	full := make([]block.Ticket, cfg.EpochLength)
	for i := range full {
		full[i].Identifier = crypto.Hash{0, byte(i + 1)}
	}
	id := ticketId(proofs[0])
	require.Greater(t, block.CompareTickets(block.Ticket{Identifier: id}, full[len(full)-1]), 0)
	prior.ValidatorState.SafroleState.TicketAccumulator = full

	_, _, err := UpdateSafroleState(cfg, bandersnatch.Insecure{}, SafroleInput{TimeSlot: 2, Tickets: proofs}, 1, prior.EntropyPool, prior.ValidatorState)
	assert.ErrorIs(t, err, safrole.ErrUnexpectedTicket)
}

func sortedTickets(n int) []block.Ticket {
	tickets := make([]block.Ticket, n)
	for i := range tickets {
		tickets[i] = block.Ticket{Identifier: crypto.Hash{byte(i + 1)}}
	}
	return tickets
}

// ticketId is the identifier the insecure verifier assigns to a ticket proof.
func ticketId(p block.TicketProof) crypto.Hash {
	return crypto.HashData(p.Proof[:32])
}

// ticketProofs returns n proofs ordered by their identifiers, all above 0x00ff....
func ticketProofs(t *testing.T, n int) []block.TicketProof {
	var proofs []block.TicketProof
	for i := 0; len(proofs) < n; i++ {
		var p block.TicketProof
		p.Proof[0], p.Proof[1] = byte(i), byte(i>>8)
		if ticketId(p)[0] == 0 {
			continue
		}
		proofs = append(proofs, p)
	}
	slices.SortFunc(proofs, func(a, b block.TicketProof) int {
		return crypto.CompareHash(ticketId(a), ticketId(b))
	})
	return proofs
}
