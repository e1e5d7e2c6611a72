package serialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/internal/state/serialization/statekey"
	"github.com/eigerco/jamtarget/internal/testutils"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

func populatedState(t *testing.T, cfg chainspec.Config) state.State {
	s := testutils.EmptyState(cfg)
	s.TimeslotIndex = 77
	s.EntropyPool = state.EntropyPool{testutils.RandomHash(t), testutils.RandomHash(t), {}, {3}}
	s.ValidatorState.CurrentValidators = testutils.RandomValidatorsData(t, int(cfg.NumberOfValidators))
	s.ValidatorState.SafroleState.TicketAccumulator = []block.Ticket{{Identifier: crypto.Hash{1}}, {Identifier: crypto.Hash{2}, EntryIndex: 1}}
	s.CoreAuthorizersPool[0] = []crypto.Hash{{9}, {8}}
	s.PastJudgements.BadWorkReports = []crypto.Hash{{1}, {5}}
	s.RecentHistory.BlockHistory = []state.BlockState{{
		HeaderHash: crypto.Hash{1},
		StateRoot:  crypto.Hash{2},
		Reported:   map[crypto.Hash]crypto.Hash{{3}: {4}},
	}}
	peak := crypto.Hash{7}
	s.RecentHistory.AccumulationOutputLog = []*crypto.Hash{nil, &peak}
	s.CoreAssignments[1] = &state.Assignment{
		WorkReport: block.WorkReport{CoreIndex: 1, SegmentRootLookup: map[crypto.Hash]crypto.Hash{}},
		Time:       70,
	}
	s.PrivilegedServices.ManagerServiceId = 1
	s.PrivilegedServices.AmountOfGasPerServiceId[1] = 1000
	s.ActivityStatistics.Services[1] = state.ServiceActivityRecord{AccumulateCount: 2, AccumulateGasUsed: 500}
	s.AccumulationHistory[3][crypto.Hash{6}] = struct{}{}
	s.AccumulationOutputLog = state.AccumulationOutputLog{{ServiceId: 1, Hash: crypto.Hash{0xaa}}}

	account := service.ServiceAccount{CodeHash: crypto.Hash{0xc0}, Balance: 10_000, CreationTimeslot: 3}
	account.InsertStorage(1, []byte("key"), []byte("value"))
	h := account.InsertPreimage(1, []byte("preimage"))
	account.SetPreimageMeta(1, h, 8, service.PreimageHistoricalTimeslots{5})
	s.Services[1] = account
	return s
}

func TestSerializeState(t *testing.T) {
	cfg := chainspec.Tiny()
	codecs := state.NewCodecs(cfg)
	s := populatedState(t, cfg)

	encodedState, err := SerializeState(codecs, s)
	require.NoError(t, err)
	// 16 chapters, one account record and three dictionary entries
	assert.Len(t, encodedState, 20)

	decodedState, err := DeserializeState(codecs, encodedState)
	require.NoError(t, err)
	assert.Equal(t, s, decodedState)

	value, ok := decodedState.Services[1].GetStorage(1, []byte("key"))
	require.True(t, ok)
	assert.Equal(t, []byte("value"), value)
}

func TestSerializeSafroleState(t *testing.T) {
	cfg := chainspec.Tiny()
	codecs := state.NewCodecs(cfg)

	tickets := make([]block.Ticket, cfg.EpochLength)
	for i := range tickets {
		tickets[i].Identifier = testutils.RandomHash(t)
	}
	keys := make([]crypto.BandersnatchPublicKey, cfg.EpochLength)
	for i := range keys {
		keys[i] = testutils.RandomBandersnatchPublicKey(t)
	}

	testCases := []struct {
		name string
		seq  safrole.TicketsOrKeys
		tag  byte
	}{
		{name: "WithTicketBodies", seq: safrole.TicketsOrKeys{Tickets: tickets}, tag: 0},
		{name: "WithEpochKeys", seq: safrole.TicketsOrKeys{Keys: keys}, tag: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := testutils.EmptyState(cfg)
			s.ValidatorState.SafroleState.SealingKeySeries = tc.seq

			encodedState, err := SerializeState(codecs, s)
			require.NoError(t, err)

			encoded := encodedState[statekey.NewBasic(statekey.ChapterSafrole)]
			// γk then γz precede the sealing key series tag
			offset := int(cfg.NumberOfValidators)*crypto.ValidatorKeySize + crypto.BandersnatchRingSize
			assert.Equal(t, tc.tag, encoded[offset])

			decoded, err := DeserializeState(codecs, encodedState)
			require.NoError(t, err)
			assert.Equal(t, tc.seq, decoded.ValidatorState.SafroleState.SealingKeySeries)
		})
	}
}

func TestDeserializeStateMissingChapter(t *testing.T) {
	cfg := chainspec.Tiny()
	codecs := state.NewCodecs(cfg)

	encodedState, err := SerializeState(codecs, testutils.EmptyState(cfg))
	require.NoError(t, err)
	delete(encodedState, statekey.NewBasic(statekey.ChapterEntropy))

	_, err = DeserializeState(codecs, encodedState)
	assert.ErrorContains(t, err, "missing state key 6")
}

func TestDeserializeStateOrphanEntry(t *testing.T) {
	cfg := chainspec.Tiny()
	codecs := state.NewCodecs(cfg)

	encodedState, err := SerializeState(codecs, testutils.EmptyState(cfg))
	require.NoError(t, err)
	encodedState[statekey.NewStorage(42, []byte("k"))] = []byte("v")

	_, err = DeserializeState(codecs, encodedState)
	assert.ErrorContains(t, err, "unknown service 42")
}

func TestTimeslotChapterEncoding(t *testing.T) {
	cfg := chainspec.Tiny()
	s := testutils.EmptyState(cfg)
	s.TimeslotIndex = 0x01020304

	encodedState, err := SerializeState(state.NewCodecs(cfg), s)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 3, 2, 1}, encodedState[statekey.NewBasic(statekey.ChapterTimeslot)])
}

func TestKeyValues(t *testing.T) {
	cfg := chainspec.Tiny()
	encodedState, err := SerializeState(state.NewCodecs(cfg), populatedState(t, cfg))
	require.NoError(t, err)

	kvs := SortedKeyValues(encodedState)
	require.Len(t, kvs, len(encodedState))
	for i := 1; i < len(kvs); i++ {
		assert.Negative(t, statekey.Compare(kvs[i-1].Key, kvs[i].Key))
	}

	bb, err := jam.Marshal(KeyValuesCodec, kvs)
	require.NoError(t, err)
	decoded, err := jam.Unmarshal(KeyValuesCodec, bb)
	require.NoError(t, err)
	assert.Equal(t, encodedState, FromKeyValues(decoded))
}
