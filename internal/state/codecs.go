package state

import (
	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/merkle/mountain_ranges"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// Codecs holds the encodings of every state component, in the order of their
// chapter index (eq. D.2 v0.6.7).
type Codecs struct {
	AuthorizerPools     jam.Codec[CoreAuthorizersPool]      // 1
	AuthorizerQueues    jam.Codec[PendingAuthorizersQueues] // 2
	RecentHistory       jam.Codec[RecentHistory]            // 3
	Safrole             jam.Codec[safrole.State]            // 4
	Judgements          jam.Codec[Judgements]               // 5
	Entropy             jam.Codec[EntropyPool]              // 6
	Validators          jam.Codec[safrole.ValidatorsData]   // 7, 8, 9
	CoreAssignments     jam.Codec[CoreAssignments]          // 10
	Timeslot            jam.Codec[jamtime.Timeslot]         // 11
	Privileged          jam.Codec[service.PrivilegedServices]
	Statistics          jam.Codec[ActivityStatistics]
	AccumulationQueue   jam.Codec[AccumulationQueue]
	AccumulationHistory jam.Codec[AccumulationHistory]
	AccumulationOutputs jam.Codec[AccumulationOutputLog]

	Operand          jam.Codec[AccumulationOperand]
	DeferredTransfer jam.Codec[service.DeferredTransfer]
}

func NewCodecs(cfg chainspec.Config) *Codecs {
	cores := int(cfg.NumberOfCores)
	validators := int(cfg.NumberOfValidators)
	epochLength := int(cfg.EpochLength)

	hashes := jam.Sequence(crypto.HashCodec)

	return &Codecs{
		AuthorizerPools: jam.Transform(jam.FixedSequence(hashes, cores),
			func(v [][]crypto.Hash) CoreAuthorizersPool { return v },
			func(p CoreAuthorizersPool) [][]crypto.Hash { return p },
		),
		AuthorizerQueues: jam.Transform(jam.FixedSequence(jam.FixedSequence(crypto.HashCodec, cfg.AuthorizerQueueSize), cores),
			func(v [][]crypto.Hash) PendingAuthorizersQueues { return v },
			func(q PendingAuthorizersQueues) [][]crypto.Hash { return q },
		),
		RecentHistory:   recentHistoryCodec,
		Safrole:         safrole.NewStateCodec(validators, epochLength),
		Judgements:      judgementsCodec,
		Entropy: jam.Transform(jam.FixedSequence(crypto.HashCodec, 4),
			func(v []crypto.Hash) EntropyPool { return EntropyPool(v) },
			func(e EntropyPool) []crypto.Hash { return e[:] },
		),
		Validators:      safrole.NewValidatorsCodec(validators),
		CoreAssignments: newCoreAssignmentsCodec(cores),
		Timeslot:        jamtime.TimeslotCodec,
		Privileged:      newPrivilegedCodec(cores),
		Statistics:      newStatisticsCodec(validators, cores),
		AccumulationQueue: jam.Transform(jam.FixedSequence(jam.Sequence(queueEntryCodec), epochLength),
			func(v [][]WorkReportWithUnAccumulatedDependencies) AccumulationQueue { return v },
			func(q AccumulationQueue) [][]WorkReportWithUnAccumulatedDependencies { return q },
		),
		AccumulationHistory: jam.Transform(jam.FixedSequence(hashSetCodec, epochLength),
			func(v []map[crypto.Hash]struct{}) AccumulationHistory { return v },
			func(h AccumulationHistory) []map[crypto.Hash]struct{} { return h },
		),
		AccumulationOutputs: jam.Transform(jam.Sequence(serviceHashPairCodec),
			func(v []ServiceHashPair) AccumulationOutputLog { return v },
			func(l AccumulationOutputLog) []ServiceHashPair { return l },
		),
		Operand:          AccumulationOperandCodec,
		DeferredTransfer: service.NewDeferredTransferCodec(cfg.TransferMemoSize),
	}
}

var (
	blockStateCodec = jam.Struct(
		jam.Field("header_hash", crypto.HashCodec, func(b *BlockState) *crypto.Hash { return &b.HeaderHash }),
		jam.Field("beefy_root", crypto.HashCodec, func(b *BlockState) *crypto.Hash { return &b.BeefyRoot }),
		jam.Field("state_root", crypto.HashCodec, func(b *BlockState) *crypto.Hash { return &b.StateRoot }),
		jam.Field("reported", jam.SortedMap(crypto.HashCodec, crypto.HashCodec, crypto.CompareHash), func(b *BlockState) *map[crypto.Hash]crypto.Hash { return &b.Reported }),
	)

	recentHistoryCodec = jam.Struct(
		jam.Field("history", jam.Sequence(blockStateCodec), func(r *RecentHistory) *[]BlockState { return &r.BlockHistory }),
		jam.Field("mmr", mountain_ranges.PeaksCodec, func(r *RecentHistory) *[]*crypto.Hash { return &r.AccumulationOutputLog }),
	)

	judgementsCodec = jam.Struct(
		jam.Field("good", crypto.HashSetCodec, func(j *Judgements) *[]crypto.Hash { return &j.GoodWorkReports }),
		jam.Field("bad", crypto.HashSetCodec, func(j *Judgements) *[]crypto.Hash { return &j.BadWorkReports }),
		jam.Field("wonky", crypto.HashSetCodec, func(j *Judgements) *[]crypto.Hash { return &j.WonkyWorkReports }),
		jam.Field("offenders", crypto.Ed25519KeySetCodec, func(j *Judgements) *[]crypto.Ed25519PublicKey { return &j.OffendingValidators }),
	)

	assignmentCodec = jam.Struct(
		jam.Field("report", block.WorkReportCodec, func(a *Assignment) *block.WorkReport { return &a.WorkReport }),
		jam.Field("timeout", jamtime.TimeslotCodec, func(a *Assignment) *jamtime.Timeslot { return &a.Time }),
	)

	queueEntryCodec = jam.Struct(
		jam.Field("report", block.WorkReportCodec, func(e *WorkReportWithUnAccumulatedDependencies) *block.WorkReport { return &e.WorkReport }),
		jam.Field("dependencies", crypto.HashSetCodec, func(e *WorkReportWithUnAccumulatedDependencies) *[]crypto.Hash { return &e.Dependencies }),
	)

	// hashSetCodec encodes a set of hashes as a sorted sequence.
	hashSetCodec = jam.Transform(crypto.HashSetCodec,
		func(v []crypto.Hash) map[crypto.Hash]struct{} {
			set := make(map[crypto.Hash]struct{}, len(v))
			for _, h := range v {
				set[h] = struct{}{}
			}
			return set
		},
		func(set map[crypto.Hash]struct{}) []crypto.Hash {
			return jam.SortedKeys(set, crypto.CompareHash)
		},
	)

	serviceHashPairCodec = jam.Struct(
		jam.Field("service", block.ServiceIdCodec, func(p *ServiceHashPair) *block.ServiceId { return &p.ServiceId }),
		jam.Field("hash", crypto.HashCodec, func(p *ServiceHashPair) *crypto.Hash { return &p.Hash }),
	)

	validatorStatisticsCodec = jam.Struct(
		jam.Field("blocks", jam.U32, func(s *ValidatorStatistics) *uint32 { return &s.NumOfBlocks }),
		jam.Field("tickets", jam.U32, func(s *ValidatorStatistics) *uint32 { return &s.NumOfTickets }),
		jam.Field("pre_images", jam.U32, func(s *ValidatorStatistics) *uint32 { return &s.NumOfPreimages }),
		jam.Field("pre_images_size", jam.U32, func(s *ValidatorStatistics) *uint32 { return &s.NumOfBytesAllPreimages }),
		jam.Field("guarantees", jam.U32, func(s *ValidatorStatistics) *uint32 { return &s.NumOfGuaranteedReports }),
		jam.Field("assurances", jam.U32, func(s *ValidatorStatistics) *uint32 { return &s.NumOfAvailabilityAssurances }),
	)

	coreStatisticsCodec = jam.Struct(
		jam.Field("da_load", jam.Compact[uint32](), func(s *CoreStatistics) *uint32 { return &s.DALoad }),
		jam.Field("popularity", jam.Compact[uint16](), func(s *CoreStatistics) *uint16 { return &s.Popularity }),
		jam.Field("imports", jam.Compact[uint16](), func(s *CoreStatistics) *uint16 { return &s.Imports }),
		jam.Field("extrinsic_count", jam.Compact[uint16](), func(s *CoreStatistics) *uint16 { return &s.ExtrinsicCount }),
		jam.Field("extrinsic_size", jam.Compact[uint32](), func(s *CoreStatistics) *uint32 { return &s.ExtrinsicSize }),
		jam.Field("exports", jam.Compact[uint16](), func(s *CoreStatistics) *uint16 { return &s.Exports }),
		jam.Field("bundle_size", jam.Compact[uint32](), func(s *CoreStatistics) *uint32 { return &s.BundleSize }),
		jam.Field("gas_used", jam.Compact[uint64](), func(s *CoreStatistics) *uint64 { return &s.GasUsed }),
	)

	serviceActivityCodec = jam.Struct(
		jam.Field("provided_count", jam.Compact[uint16](), func(r *ServiceActivityRecord) *uint16 { return &r.ProvidedCount }),
		jam.Field("provided_size", jam.Compact[uint32](), func(r *ServiceActivityRecord) *uint32 { return &r.ProvidedSize }),
		jam.Field("refinement_count", jam.Compact[uint32](), func(r *ServiceActivityRecord) *uint32 { return &r.RefinementCount }),
		jam.Field("refinement_gas_used", jam.Compact[uint64](), func(r *ServiceActivityRecord) *uint64 { return &r.RefinementGasUsed }),
		jam.Field("imports", jam.Compact[uint32](), func(r *ServiceActivityRecord) *uint32 { return &r.Imports }),
		jam.Field("extrinsic_count", jam.Compact[uint32](), func(r *ServiceActivityRecord) *uint32 { return &r.ExtrinsicCount }),
		jam.Field("extrinsic_size", jam.Compact[uint32](), func(r *ServiceActivityRecord) *uint32 { return &r.ExtrinsicSize }),
		jam.Field("exports", jam.Compact[uint32](), func(r *ServiceActivityRecord) *uint32 { return &r.Exports }),
		jam.Field("accumulate_count", jam.Compact[uint32](), func(r *ServiceActivityRecord) *uint32 { return &r.AccumulateCount }),
		jam.Field("accumulate_gas_used", jam.Compact[uint64](), func(r *ServiceActivityRecord) *uint64 { return &r.AccumulateGasUsed }),
		jam.Field("on_transfers_count", jam.Compact[uint32](), func(r *ServiceActivityRecord) *uint32 { return &r.OnTransfersCount }),
		jam.Field("on_transfers_gas_used", jam.Compact[uint64](), func(r *ServiceActivityRecord) *uint64 { return &r.OnTransfersGasUsed }),
	)

	AccumulationOperandCodec = jam.Struct(
		jam.Field("package_hash", crypto.HashCodec, func(o *AccumulationOperand) *crypto.Hash { return &o.WorkPackageHash }),
		jam.Field("exports_root", crypto.HashCodec, func(o *AccumulationOperand) *crypto.Hash { return &o.SegmentRoot }),
		jam.Field("authorizer_hash", crypto.HashCodec, func(o *AccumulationOperand) *crypto.Hash { return &o.AuthorizationHash }),
		jam.Field("auth_output", jam.Blob, func(o *AccumulationOperand) *[]byte { return &o.Trace }),
		jam.Field("payload_hash", crypto.HashCodec, func(o *AccumulationOperand) *crypto.Hash { return &o.PayloadHash }),
		jam.Field("gas_limit", jam.Compact[uint64](), func(o *AccumulationOperand) *uint64 { return &o.GasLimit }),
		jam.Field("result", block.WorkResultOutputCodec, func(o *AccumulationOperand) *block.WorkResultOutputOrError { return &o.OutputOrError }),
	)
)

func newCoreAssignmentsCodec(cores int) jam.Codec[CoreAssignments] {
	return jam.Transform(jam.FixedSequence(jam.Optional(assignmentCodec), cores),
		func(v []*Assignment) CoreAssignments { return v },
		func(c CoreAssignments) []*Assignment { return c },
	)
}

// newPrivilegedCodec encodes χ as E_4(m) ⌢ E_4(a) ⌢ E_4(v) ⌢ E(↕z) with z sorted by service.
func newPrivilegedCodec(cores int) jam.Codec[service.PrivilegedServices] {
	return jam.Struct(
		jam.Field("manager", block.ServiceIdCodec, func(p *service.PrivilegedServices) *block.ServiceId { return &p.ManagerServiceId }),
		jam.Field("assign", jam.FixedSequence(block.ServiceIdCodec, cores), func(p *service.PrivilegedServices) *[]block.ServiceId { return &p.AssignedServiceIds }),
		jam.Field("designate", block.ServiceIdCodec, func(p *service.PrivilegedServices) *block.ServiceId { return &p.DesignateServiceId }),
		jam.Field("always_acc", jam.SortedMap(block.ServiceIdCodec, jam.U64, jam.CompareUnsigned[block.ServiceId]),
			func(p *service.PrivilegedServices) *map[block.ServiceId]uint64 { return &p.AmountOfGasPerServiceId }),
	)
}

func newStatisticsCodec(validators, cores int) jam.Codec[ActivityStatistics] {
	return jam.Struct(
		jam.Field("vals_curr_stats", jam.FixedSequence(validatorStatisticsCodec, validators), func(a *ActivityStatistics) *[]ValidatorStatistics { return &a.ValidatorsCurrent }),
		jam.Field("vals_last_stats", jam.FixedSequence(validatorStatisticsCodec, validators), func(a *ActivityStatistics) *[]ValidatorStatistics { return &a.ValidatorsLast }),
		jam.Field("cores_statistics", jam.FixedSequence(coreStatisticsCodec, cores), func(a *ActivityStatistics) *[]CoreStatistics { return &a.Cores }),
		jam.Field("services_statistics", jam.Transform(
			jam.SortedMap(block.ServiceIdCodec, serviceActivityCodec, jam.CompareUnsigned[block.ServiceId]),
			func(m map[block.ServiceId]ServiceActivityRecord) ServiceStatistics { return m },
			func(s ServiceStatistics) map[block.ServiceId]ServiceActivityRecord { return s },
		), func(a *ActivityStatistics) *ServiceStatistics { return &a.Services }),
	)
}
