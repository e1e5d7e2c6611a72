package statetransition

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/merkle/binary_tree"
	"github.com/eigerco/jamtarget/internal/merkle/mountain_ranges"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

func TestCalculateIntermediateRecentHistory(t *testing.T) {
	prior := state.RecentHistory{BlockHistory: []state.BlockState{
		{HeaderHash: crypto.Hash{1}},
		{HeaderHash: crypto.Hash{2}},
	}}
	header := block.Header{PriorStateRoot: crypto.Hash{0x5e}}

	intermediate := CalculateIntermediateRecentHistory(header, prior)

	assert.Equal(t, crypto.Hash{}, intermediate.BlockHistory[0].StateRoot)
	assert.Equal(t, crypto.Hash{0x5e}, intermediate.BlockHistory[1].StateRoot)
	assert.Equal(t, crypto.Hash{}, prior.BlockHistory[1].StateRoot, "prior history is not modified")

	assert.Empty(t, CalculateIntermediateRecentHistory(header, state.RecentHistory{}).BlockHistory)
}

func TestCalculateNewRecentHistory(t *testing.T) {
	cfg := chainspec.Tiny()
	guarantees := block.GuaranteesExtrinsic{Guarantees: []block.Guarantee{{
		WorkReport: block.WorkReport{AvailabilitySpecification: block.AvailabilitySpecification{
			WorkPackageHash: crypto.Hash{0x0a},
			SegmentRoot:     crypto.Hash{0x0b},
		}},
	}}}
	outputs := state.AccumulationOutputLog{{ServiceId: 3, Hash: crypto.Hash{0xcc}}}

	history := CalculateNewRecentHistory(cfg, crypto.Hash{0xff}, guarantees, state.RecentHistory{}, outputs)

	require.Len(t, history.BlockHistory, 1)
	entry := history.BlockHistory[0]
	assert.Equal(t, crypto.Hash{0xff}, entry.HeaderHash)
	assert.Equal(t, crypto.Hash{}, entry.StateRoot)
	assert.Equal(t, map[crypto.Hash]crypto.Hash{{0x0a}: {0x0b}}, entry.Reported)

	root := ComputeAccumulationRoot(outputs)
	mmr := mountain_ranges.New(crypto.KeccakData)
	assert.Equal(t, mmr.Append(nil, root), history.AccumulationOutputLog)
	assert.Equal(t, mmr.SuperPeak(history.AccumulationOutputLog), entry.BeefyRoot)
}

func TestUpdateRecentHistoryKeepsLastBlocks(t *testing.T) {
	cfg := chainspec.Tiny()
	history := state.RecentHistory{}
	for i := range cfg.MaxRecentBlocks + 2 {
		history = UpdateRecentHistory(cfg.MaxRecentBlocks, crypto.Hash{byte(i)}, crypto.Hash{}, map[crypto.Hash]crypto.Hash{}, history)
	}
	require.Len(t, history.BlockHistory, cfg.MaxRecentBlocks)
	assert.Equal(t, crypto.Hash{2}, history.BlockHistory[0].HeaderHash)
	assert.Equal(t, crypto.Hash{byte(cfg.MaxRecentBlocks + 1)}, history.BlockHistory[cfg.MaxRecentBlocks-1].HeaderHash)
}

func TestComputeAccumulationRoot(t *testing.T) {
	assert.Equal(t, crypto.Hash{}, ComputeAccumulationRoot(nil))

	pairs := state.AccumulationOutputLog{
		{ServiceId: 1, Hash: crypto.Hash{0x11}},
		{ServiceId: 2, Hash: crypto.Hash{0x22}},
	}
	expected := binary_tree.ComputeWellBalancedRoot([][]byte{
		slices.Concat(jam.EncodeUint32(1), pairs[0].Hash[:]),
		slices.Concat(jam.EncodeUint32(2), pairs[1].Hash[:]),
	}, crypto.KeccakData)
	assert.Equal(t, expected, ComputeAccumulationRoot(pairs))
}

func TestCalculateNewCoreAuthorizations(t *testing.T) {
	cfg := chainspec.Tiny()
	pending := make(state.PendingAuthorizersQueues, cfg.NumberOfCores)
	for c := range pending {
		pending[c] = make([]crypto.Hash, cfg.AuthorizerQueueSize)
		for i := range pending[c] {
			pending[c][i] = crypto.Hash{byte(c + 1), byte(i)}
		}
	}
	current := state.CoreAuthorizersPool{
		{{0xa1}, {0xa2}},
		{{0xb1}},
	}
	guarantees := block.GuaranteesExtrinsic{Guarantees: []block.Guarantee{
		{WorkReport: block.WorkReport{CoreIndex: 0, AuthorizerHash: crypto.Hash{0xa1}}},
	}}
	header := block.Header{TimeSlotIndex: 5}

	newAuths := CalculateNewCoreAuthorizations(cfg, header, guarantees, pending, current)

	require.Len(t, newAuths, int(cfg.NumberOfCores))
	assert.Equal(t, []crypto.Hash{{0xa2}, {1, 5}}, newAuths[0], "used authorizer is removed, queue entry appended")
	assert.Equal(t, []crypto.Hash{{0xb1}, {2, 5}}, newAuths[1])
	assert.Equal(t, state.CoreAuthorizersPool{{{0xa1}, {0xa2}}, {{0xb1}}}, current, "prior pool is not modified")
}

func TestCalculateNewCoreAuthorizationsLimit(t *testing.T) {
	cfg := chainspec.Tiny()
	full := make([]crypto.Hash, cfg.MaxAuthorizersPerCore)
	for i := range full {
		full[i] = crypto.Hash{byte(i)}
	}
	pending := state.PendingAuthorizersQueues{{{0xee}}, {{0xee}}}

	newAuths := CalculateNewCoreAuthorizations(cfg, block.Header{}, block.GuaranteesExtrinsic{}, pending, state.CoreAuthorizersPool{full, nil})

	require.Len(t, newAuths[0], cfg.MaxAuthorizersPerCore)
	assert.Equal(t, crypto.Hash{1}, newAuths[0][0], "oldest authorizer is dropped")
	assert.Equal(t, crypto.Hash{0xee}, newAuths[0][cfg.MaxAuthorizersPerCore-1])
	assert.Equal(t, []crypto.Hash{{0xee}}, newAuths[1])
}
