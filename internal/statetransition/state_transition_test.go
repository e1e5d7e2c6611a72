package statetransition

import (
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/crypto/bandersnatch"
	"github.com/eigerco/jamtarget/internal/guaranteeing"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/internal/state/serialization"
	"github.com/eigerco/jamtarget/internal/testutils"
)

var (
	testVRFSignature  = crypto.BandersnatchSignature{1}
	testSealSignature = crypto.BandersnatchSignature{2}
)

func newTestTransition() *Transition {
	return New(chainspec.Tiny(), bandersnatch.Insecure{}, Options{})
}

func buildBlock(t *testing.T, tr *Transition, prior state.State, slot jamtime.Timeslot) block.Block {
	b, err := tr.BuildEmptyBlock(prior, slot, testVRFSignature, testSealSignature)
	require.NoError(t, err)
	return b
}

// dumpState renders the serialized state one key value pair per line.
func dumpState(t *testing.T, tr *Transition, s state.State) string {
	serialized, err := serialization.SerializeState(tr.StateCodecs(), s)
	require.NoError(t, err)
	var sb strings.Builder
	for _, kv := range serialization.SortedKeyValues(serialized) {
		fmt.Fprintf(&sb, "%s: %s\n", hex.EncodeToString(kv.Key[:]), hex.EncodeToString(kv.Value))
	}
	return sb.String()
}

func requireSameState(t *testing.T, tr *Transition, expected, actual state.State) {
	t.Helper()
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(dumpState(t, tr, expected)),
		B:        difflib.SplitLines(dumpState(t, tr, actual)),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	require.NoError(t, err)
	if diff != "" {
		t.Fatalf("State mismatch:\n%s", diff)
	}
}

func TestUpdateStateEmptyBlock(t *testing.T) {
	tr := newTestTransition()
	prior := testutils.GenesisState(tr.Config())
	snapshot := prior.Clone()
	priorRoot, err := tr.StateRoot(prior)
	require.NoError(t, err)

	b := buildBlock(t, tr, prior, 1)
	posterior, err := tr.UpdateState(prior, b)
	require.NoError(t, err)

	assert.Equal(t, jamtime.Timeslot(1), posterior.TimeslotIndex)
	headerHash, err := tr.BlockCodecs().HeaderHash(b.Header)
	require.NoError(t, err)
	require.Len(t, posterior.RecentHistory.BlockHistory, 1)
	assert.Equal(t, headerHash, posterior.RecentHistory.BlockHistory[0].HeaderHash)
	assert.Equal(t, uint32(1), posterior.ActivityStatistics.ValidatorsCurrent[b.Header.BlockAuthorIndex].NumOfBlocks)
	assert.NotEqual(t, prior.EntropyPool[0], posterior.EntropyPool[0])

	posteriorRoot, err := tr.StateRoot(posterior)
	require.NoError(t, err)
	assert.NotEqual(t, priorRoot, posteriorRoot)

	requireSameState(t, tr, snapshot, prior)
}

func TestUpdateStateIsDeterministic(t *testing.T) {
	tr := newTestTransition()
	prior := testutils.GenesisState(tr.Config())
	b := buildBlock(t, tr, prior, 3)

	first, err := tr.UpdateState(prior, b)
	require.NoError(t, err)
	second, err := tr.UpdateState(prior, b)
	require.NoError(t, err)

	requireSameState(t, tr, first, second)
}

func TestUpdateStateAcrossEpochs(t *testing.T) {
	tr := newTestTransition()
	cfg := tr.Config()
	current := testutils.GenesisState(cfg)
	genesisValidators := current.ValidatorState.CurrentValidators

	for _, slot := range []jamtime.Timeslot{1, 5, jamtime.Timeslot(cfg.EpochLength), jamtime.Timeslot(cfg.EpochLength + 1)} {
		b := buildBlock(t, tr, current, slot)
		if slot == jamtime.Timeslot(cfg.EpochLength) {
			require.NotNil(t, b.Header.EpochMarker)
		} else {
			require.Nil(t, b.Header.EpochMarker)
		}
		next, err := tr.UpdateState(current, b)
		require.NoError(t, err, "slot %d", slot)
		current = next
	}

	assert.Len(t, current.RecentHistory.BlockHistory, 4)
	assert.Equal(t, genesisValidators, current.ValidatorState.ArchivedValidators)
	assert.True(t, current.ValidatorState.SafroleState.SealingKeySeries.IsFallback())
	assert.Equal(t, uint32(2), sumBlocks(current.ActivityStatistics.ValidatorsCurrent))
	assert.Equal(t, uint32(2), sumBlocks(current.ActivityStatistics.ValidatorsLast))
	for _, h := range current.AccumulationHistory {
		assert.Empty(t, h)
	}
}

func sumBlocks(stats []state.ValidatorStatistics) uint32 {
	var total uint32
	for _, s := range stats {
		total += s.NumOfBlocks
	}
	return total
}

func TestUpdateStateErrors(t *testing.T) {
	tr := newTestTransition()
	cfg := tr.Config()
	genesis := testutils.GenesisState(cfg)

	testCases := []struct {
		name  string
		build func(t *testing.T) (state.State, block.Block)
		err   error
	}{
		{
			name: "slot not after prior",
			build: func(t *testing.T) (state.State, block.Block) {
				prior := genesis.Clone()
				prior.TimeslotIndex = 4
				b := buildBlock(t, tr, prior, 5)
				b.Header.TimeSlotIndex = 4
				return prior, b
			},
			err: ErrBadSlot,
		},
		{
			name: "unknown parent",
			build: func(t *testing.T) (state.State, block.Block) {
				prior, err := tr.UpdateState(genesis, buildBlock(t, tr, genesis, 1))
				require.NoError(t, err)
				b := buildBlock(t, tr, prior, 2)
				b.Header.ParentHash = crypto.Hash{0xff}
				return prior, b
			},
			err: ErrInvalidParent,
		},
		{
			name: "wrong prior state root",
			build: func(t *testing.T) (state.State, block.Block) {
				b := buildBlock(t, tr, genesis, 1)
				b.Header.PriorStateRoot = crypto.Hash{0xff}
				return genesis, b
			},
			err: ErrInvalidParentStateRoot,
		},
		{
			name: "wrong extrinsic hash",
			build: func(t *testing.T) (state.State, block.Block) {
				b := buildBlock(t, tr, genesis, 1)
				b.Header.ExtrinsicHash = crypto.Hash{0xff}
				return genesis, b
			},
			err: ErrInvalidExtrinsicHash,
		},
		{
			name: "missing epoch marker",
			build: func(t *testing.T) (state.State, block.Block) {
				b := buildBlock(t, tr, genesis, jamtime.Timeslot(cfg.EpochLength))
				b.Header.EpochMarker = nil
				return genesis, b
			},
			err: ErrInvalidEpochMarker,
		},
		{
			name: "unexpected epoch marker",
			build: func(t *testing.T) (state.State, block.Block) {
				b := buildBlock(t, tr, genesis, 1)
				b.Header.EpochMarker = &block.EpochMarker{}
				return genesis, b
			},
			err: ErrInvalidEpochMarker,
		},
		{
			name: "unexpected tickets marker",
			build: func(t *testing.T) (state.State, block.Block) {
				b := buildBlock(t, tr, genesis, 1)
				b.Header.WinningTicketsMarker = &block.WinningTicketMarker{}
				return genesis, b
			},
			err: ErrInvalidTicketsMarker,
		},
		{
			name: "unexpected offenders marker",
			build: func(t *testing.T) (state.State, block.Block) {
				b := buildBlock(t, tr, genesis, 1)
				b.Header.OffendersMarkers = []crypto.Ed25519PublicKey{{1}}
				return genesis, b
			},
			err: ErrInvalidOffendersMarker,
		},
		{
			name: "author is not the slot sealer",
			build: func(t *testing.T) (state.State, block.Block) {
				b := buildBlock(t, tr, genesis, 1)
				b.Header.BlockAuthorIndex = (b.Header.BlockAuthorIndex + 1) % cfg.NumberOfValidators
				return genesis, b
			},
			err: safrole.ErrUnexpectedAuthor,
		},
		{
			name: "unsolicited preimage",
			build: func(t *testing.T) (state.State, block.Block) {
				b := buildBlock(t, tr, genesis, 1)
				b.Extrinsic.EP = block.PreimageExtrinsic{{ServiceIndex: 1, Data: []byte("blob")}}
				b.Header.ExtrinsicHash = extrinsicHash(t, tr, b.Extrinsic)
				return genesis, b
			},
			err: ErrPreimageUnneeded,
		},
		{
			name: "package already reported",
			build: func(t *testing.T) (state.State, block.Block) {
				prior := genesis.Clone()
				prior.RecentHistory.BlockHistory = []state.BlockState{{
					HeaderHash: crypto.Hash{0xbb},
					BeefyRoot:  crypto.Hash{0xbe},
					Reported:   map[crypto.Hash]crypto.Hash{{0x99}: {0x98}},
				}}
				b := buildBlock(t, tr, prior, 1)
				report := block.WorkReport{
					AvailabilitySpecification: block.AvailabilitySpecification{WorkPackageHash: crypto.Hash{0x99}},
					RefinementContext: block.RefinementContext{
						Anchor: block.RefinementContextAnchor{
							HeaderHash:         crypto.Hash{0xbb},
							PosteriorStateRoot: b.Header.PriorStateRoot,
							PosteriorBeefyRoot: crypto.Hash{0xbe},
						},
						LookupAnchor: block.RefinementContextLookupAnchor{Timeslot: 1},
					},
					AuthorizerHash: prior.CoreAuthorizersPool[0][0],
					WorkResults: []block.WorkResult{
						block.NewSuccessfulWorkResult(1, crypto.Hash{}, crypto.Hash{}, 10, []byte("out")),
					},
				}
				b.Extrinsic.EG = block.GuaranteesExtrinsic{Guarantees: []block.Guarantee{{
					WorkReport:  report,
					Timeslot:    1,
					Credentials: []block.CredentialSignature{{ValidatorIndex: 0}, {ValidatorIndex: 1}},
				}}}
				b.Header.ExtrinsicHash = extrinsicHash(t, tr, b.Extrinsic)
				return prior, b
			},
			err: guaranteeing.ErrWorkPackageInPipeline,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			prior, b := tc.build(t)
			snapshot := prior.Clone()

			_, err := tr.UpdateState(prior, b)
			require.ErrorIs(t, err, tc.err)
			requireSameState(t, tr, snapshot, prior)
		})
	}
}

func TestUpdateStateSealErrorIsWrapped(t *testing.T) {
	tr := newTestTransition()
	genesis := testutils.GenesisState(tr.Config())
	b := buildBlock(t, tr, genesis, 1)
	b.Header.BlockAuthorIndex = tr.Config().NumberOfValidators

	_, err := tr.UpdateState(genesis, b)
	assert.ErrorIs(t, err, ErrSealInvalid)
	assert.ErrorIs(t, err, safrole.ErrBadAuthorIndex)
}

func extrinsicHash(t *testing.T, tr *Transition, e block.Extrinsic) crypto.Hash {
	h, err := tr.BlockCodecs().ExtrinsicHash(e)
	require.NoError(t, err)
	return h
}
