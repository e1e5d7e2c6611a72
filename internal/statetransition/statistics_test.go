package statetransition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/internal/testutils"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

func TestCalculateNewValidatorStatisticsSameEpoch(t *testing.T) {
	cfg := chainspec.Tiny()
	validators := testutils.GenesisState(cfg).ValidatorState.CurrentValidators
	current := make([]state.ValidatorStatistics, cfg.NumberOfValidators)
	current[1].NumOfBlocks = 4
	last := make([]state.ValidatorStatistics, cfg.NumberOfValidators)
	last[0].NumOfBlocks = 9

	in := StatisticsInput{
		Block: block.Block{
			Header: block.Header{TimeSlotIndex: 2, BlockAuthorIndex: 1},
			Extrinsic: block.Extrinsic{
				ET: block.TicketExtrinsic{TicketProofs: make([]block.TicketProof, 2)},
				EP: block.PreimageExtrinsic{{Data: []byte{1, 2, 3}}, {Data: []byte{4}}},
				EA: block.AssurancesExtrinsic{{ValidatorIndex: 3}, {ValidatorIndex: 5}},
			},
		},
		PriorTimeslot:     1,
		Reporters:         []crypto.Ed25519PublicKey{validators[2].Ed25519},
		CurrentValidators: validators,
	}

	newCurrent, newLast := CalculateNewValidatorStatistics(cfg, in, current, last)

	assert.Equal(t, last, newLast)
	assert.Equal(t, state.ValidatorStatistics{
		NumOfBlocks:            5,
		NumOfTickets:           2,
		NumOfPreimages:         2,
		NumOfBytesAllPreimages: 4,
	}, newCurrent[1])
	assert.Equal(t, uint32(1), newCurrent[2].NumOfGuaranteedReports)
	assert.Equal(t, uint32(1), newCurrent[3].NumOfAvailabilityAssurances)
	assert.Equal(t, uint32(1), newCurrent[5].NumOfAvailabilityAssurances)
	assert.Equal(t, uint32(4), current[1].NumOfBlocks, "prior statistics are not modified")
}

func TestCalculateNewValidatorStatisticsNewEpoch(t *testing.T) {
	cfg := chainspec.Tiny()
	current := make([]state.ValidatorStatistics, cfg.NumberOfValidators)
	current[0].NumOfBlocks = 7
	last := make([]state.ValidatorStatistics, cfg.NumberOfValidators)
	last[0].NumOfBlocks = 9

	in := StatisticsInput{
		Block:         block.Block{Header: block.Header{TimeSlotIndex: jamtime.Timeslot(cfg.EpochLength), BlockAuthorIndex: 2}},
		PriorTimeslot: jamtime.Timeslot(cfg.EpochLength - 1),
	}

	newCurrent, newLast := CalculateNewValidatorStatistics(cfg, in, current, last)

	assert.Equal(t, uint32(7), newLast[0].NumOfBlocks)
	assert.Equal(t, uint32(0), newCurrent[0].NumOfBlocks)
	assert.Equal(t, uint32(1), newCurrent[2].NumOfBlocks)
}

func TestCalculateNewCoreStatistics(t *testing.T) {
	cfg := chainspec.Tiny()
	incoming := []block.WorkReport{{
		CoreIndex: 1,
		AvailabilitySpecification: block.AvailabilitySpecification{AuditableWorkBundleLength: 100},
		WorkResults: []block.WorkResult{
			{RefineLoad: block.RefineLoad{GasUsed: 10, SegmentsImportedCount: 1, ExtrinsicCount: 2, ExtrinsicSize: 3, SegmentsExportedCount: 4}},
			{RefineLoad: block.RefineLoad{GasUsed: 5, SegmentsImportedCount: 1}},
		},
	}}
	available := []block.WorkReport{{
		CoreIndex:                 0,
		AvailabilitySpecification: block.AvailabilitySpecification{AuditableWorkBundleLength: 50, SegmentCount: 64},
	}}
	blk := block.Block{Extrinsic: block.Extrinsic{EA: block.AssurancesExtrinsic{
		{Bitfield: jam.BitSequence{true, true}},
		{Bitfield: jam.BitSequence{false, true}},
	}}}

	stats := CalculateNewCoreStatistics(cfg, blk, incoming, available)

	require.Len(t, stats, int(cfg.NumberOfCores))
	assert.Equal(t, state.CoreStatistics{
		Popularity:     2,
		Imports:        2,
		ExtrinsicCount: 2,
		ExtrinsicSize:  3,
		Exports:        4,
		BundleSize:     100,
		GasUsed:        15,
	}, stats[1])
	assert.Equal(t, state.CoreStatistics{
		DALoad:     50 + uint32(cfg.SegmentSize())*65,
		Popularity: 1,
	}, stats[0])
}

func TestCalculateNewServiceStatistics(t *testing.T) {
	blk := block.Block{Extrinsic: block.Extrinsic{EP: block.PreimageExtrinsic{
		{ServiceIndex: 1, Data: []byte{1, 2}},
		{ServiceIndex: 1, Data: []byte{3}},
	}}}
	incoming := []block.WorkReport{{WorkResults: []block.WorkResult{
		{ServiceId: 2, RefineLoad: block.RefineLoad{GasUsed: 10, SegmentsImportedCount: 1, ExtrinsicCount: 2, ExtrinsicSize: 3, SegmentsExportedCount: 4}},
		{ServiceId: 2, RefineLoad: block.RefineLoad{GasUsed: 1}},
	}}}
	accumulation := AccumulationStats{3: {AccumulateCount: 2, AccumulateGasUsed: 300}}
	transfers := DeferredTransfersStats{3: {OnTransfersCount: 1, OnTransfersGasUsed: 40}, 4: {OnTransfersCount: 2}}

	stats := CalculateNewServiceStatistics(blk, incoming, accumulation, transfers)

	assert.Equal(t, state.ServiceStatistics{
		1: {ProvidedCount: 2, ProvidedSize: 3},
		2: {RefinementCount: 2, RefinementGasUsed: 11, Imports: 1, ExtrinsicCount: 2, ExtrinsicSize: 3, Exports: 4},
		3: {AccumulateCount: 2, AccumulateGasUsed: 300, OnTransfersCount: 1, OnTransfersGasUsed: 40},
		4: {OnTransfersCount: 2},
	}, stats)
}
