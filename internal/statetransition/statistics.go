package statetransition

import (
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/safemath"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/state"
)

// StatisticsInput holds what the activity statistics are derived from.
type StatisticsInput struct {
	Block             block.Block
	PriorTimeslot     jamtime.Timeslot          // τ
	Reporters         []crypto.Ed25519PublicKey // G
	CurrentValidators safrole.ValidatorsData    // κ'
	IncomingReports   []block.WorkReport        // I
	AvailableReports  []block.WorkReport        // R
	AccumulationStats AccumulationStats         // S
	TransferStats     DeferredTransfersStats    // X
}

// CalculateNewActivityStatistics implements equation 4.20 and section 13:
//
//	π' ≺ (E_G, E_P, E_A, E_T, τ, κ', π, H, I, R, S, X)
func CalculateNewActivityStatistics(cfg chainspec.Config, in StatisticsInput, activityStatistics state.ActivityStatistics) state.ActivityStatistics {
	current, last := CalculateNewValidatorStatistics(cfg, in, activityStatistics.ValidatorsCurrent, activityStatistics.ValidatorsLast)
	return state.ActivityStatistics{
		ValidatorsCurrent: current,
		ValidatorsLast:    last,
		Cores:             CalculateNewCoreStatistics(cfg, in.Block, in.IncomingReports, in.AvailableReports),
		Services:          CalculateNewServiceStatistics(in.Block, in.IncomingReports, in.AccumulationStats, in.TransferStats),
	}
}

// CalculateNewValidatorStatistics implements equations 13.3 - 13.5 v0.6.7:
//
//	(a, π'_L) ≡ (π_V, π_L) if e' = e, ([{0, ...}, ...], π_V) otherwise
//	π'_V[v] ≡ a[v] plus this block's contributions of v
func CalculateNewValidatorStatistics(
	cfg chainspec.Config,
	in StatisticsInput,
	validatorStatsCurrent, validatorStatsLast []state.ValidatorStatistics,
) ([]state.ValidatorStatistics, []state.ValidatorStatistics) {
	header := in.Block.Header
	current := make([]state.ValidatorStatistics, cfg.NumberOfValidators)
	last := make([]state.ValidatorStatistics, cfg.NumberOfValidators)
	if in.PriorTimeslot.ToEpoch(cfg.EpochLength) == header.TimeSlotIndex.ToEpoch(cfg.EpochLength) {
		copy(current, validatorStatsCurrent)
		copy(last, validatorStatsLast)
	} else {
		copy(last, validatorStatsCurrent)
	}

	if v := header.BlockAuthorIndex; int(v) < len(current) {
		// b, t, p and d are credited to the author H_i
		current[v].NumOfBlocks++
		current[v].NumOfTickets += uint32(len(in.Block.Extrinsic.ET.TicketProofs))
		current[v].NumOfPreimages += uint32(len(in.Block.Extrinsic.EP))
		for _, preimage := range in.Block.Extrinsic.EP {
			current[v].NumOfBytesAllPreimages += uint32(len(preimage.Data))
		}
	}

	// π'_V[v]_g ≡ a[v]_g + (κ'_v ∈ G)
	for v := range current {
		if v < len(in.CurrentValidators) && !in.CurrentValidators[v].IsZero() {
			if _, found := slices.BinarySearchFunc(in.Reporters, in.CurrentValidators[v].Ed25519, crypto.CompareEd25519Key); found {
				current[v].NumOfGuaranteedReports++
			}
		}
	}

	// π'_V[v]_a ≡ a[v]_a + (∃a ∈ E_A : a_v = v)
	for _, assurance := range in.Block.Extrinsic.EA {
		if int(assurance.ValidatorIndex) < len(current) {
			current[assurance.ValidatorIndex].NumOfAvailabilityAssurances++
		}
	}
	return current, last
}

// CalculateNewCoreStatistics implements equations 13.6 - 13.9 v0.6.7:
//
//	∀c ∈ N_C: π'_C[c] ≡ (i, x, z, e, u, b: L(c), d: D(c), p: Σ_{a∈E_A} a_f[c])
//	R(c) ≡ Σ_{d∈r_r, r∈I, r_c=c} (d_i, d_x, d_z, d_e, d_u)
//	L(c) ≡ Σ_{r∈I, r_c=c} (r_s)_l
//	D(c) ≡ Σ_{r∈R, r_c=c} (r_s)_l + W_G⌈(r_s)_n · 65/64⌉
func CalculateNewCoreStatistics(cfg chainspec.Config, blk block.Block, incomingReports, availableReports []block.WorkReport) []state.CoreStatistics {
	coreStats := make([]state.CoreStatistics, cfg.NumberOfCores)

	for _, workReport := range incomingReports {
		if int(workReport.CoreIndex) >= len(coreStats) {
			continue
		}
		stats := &coreStats[workReport.CoreIndex]
		stats.BundleSize = safemath.SaturatingAdd(stats.BundleSize, workReport.AvailabilitySpecification.AuditableWorkBundleLength)
		for _, result := range workReport.WorkResults {
			load := result.RefineLoad
			stats.Imports = safemath.SaturatingAdd(stats.Imports, load.SegmentsImportedCount)
			stats.ExtrinsicCount = safemath.SaturatingAdd(stats.ExtrinsicCount, load.ExtrinsicCount)
			stats.ExtrinsicSize = safemath.SaturatingAdd(stats.ExtrinsicSize, load.ExtrinsicSize)
			stats.Exports = safemath.SaturatingAdd(stats.Exports, load.SegmentsExportedCount)
			stats.GasUsed = safemath.SaturatingAdd(stats.GasUsed, load.GasUsed)
		}
	}

	segmentSize := uint32(cfg.SegmentSize())
	for _, workReport := range availableReports {
		if int(workReport.CoreIndex) >= len(coreStats) {
			continue
		}
		spec := workReport.AvailabilitySpecification
		// ⌈n · 65/64⌉
		pagedSegments := (uint32(spec.SegmentCount)*65 + 63) / 64
		daLoad := safemath.SaturatingAdd(spec.AuditableWorkBundleLength, segmentSize*pagedSegments)
		coreStats[workReport.CoreIndex].DALoad = safemath.SaturatingAdd(coreStats[workReport.CoreIndex].DALoad, daLoad)
	}

	for _, assurance := range blk.Extrinsic.EA {
		for c := range coreStats {
			if assurance.IsForCore(uint16(c)) {
				coreStats[c].Popularity++
			}
		}
	}
	return coreStats
}

// CalculateNewServiceStatistics implements equations 13.10 - 13.15 v0.6.7:
//
//	∀s ∈ s: π'_S[s] ≡ (p, r, i, x, z, e, a: U(S[s], (0, 0)), t: U(X[s], (0, 0)))
//	s = {d_s | r ∈ I, d ∈ r_r} ∪ K(E_P) ∪ K(S) ∪ K(X)
func CalculateNewServiceStatistics(
	blk block.Block,
	incomingReports []block.WorkReport,
	accumulationStats AccumulationStats,
	transferStats DeferredTransfersStats,
) state.ServiceStatistics {
	serviceStats := state.ServiceStatistics{}

	// p ≡ Σ_{(s,p)∈E_P} (1, |p|)
	for _, preimage := range blk.Extrinsic.EP {
		record := serviceStats[preimage.ServiceIndex]
		record.ProvidedCount = safemath.SaturatingAdd(record.ProvidedCount, 1)
		record.ProvidedSize = safemath.SaturatingAdd(record.ProvidedSize, uint32(len(preimage.Data)))
		serviceStats[preimage.ServiceIndex] = record
	}

	// (r, i, x, z, e) ≡ Σ_{d∈r_r, r∈I, d_s=s} ((1, d_u), d_i, d_x, d_z, d_e)
	for _, workReport := range incomingReports {
		for _, result := range workReport.WorkResults {
			record := serviceStats[result.ServiceId]
			load := result.RefineLoad
			record.RefinementCount = safemath.SaturatingAdd(record.RefinementCount, 1)
			record.RefinementGasUsed = safemath.SaturatingAdd(record.RefinementGasUsed, load.GasUsed)
			record.Imports = safemath.SaturatingAdd(record.Imports, uint32(load.SegmentsImportedCount))
			record.ExtrinsicCount = safemath.SaturatingAdd(record.ExtrinsicCount, uint32(load.ExtrinsicCount))
			record.ExtrinsicSize = safemath.SaturatingAdd(record.ExtrinsicSize, load.ExtrinsicSize)
			record.Exports = safemath.SaturatingAdd(record.Exports, uint32(load.SegmentsExportedCount))
			serviceStats[result.ServiceId] = record
		}
	}

	for serviceId, stat := range accumulationStats {
		record := serviceStats[serviceId]
		record.AccumulateCount = stat.AccumulateCount
		record.AccumulateGasUsed = stat.AccumulateGasUsed
		serviceStats[serviceId] = record
	}

	for serviceId, stat := range transferStats {
		record := serviceStats[serviceId]
		record.OnTransfersCount = stat.OnTransfersCount
		record.OnTransfersGasUsed = stat.OnTransfersGasUsed
		serviceStats[serviceId] = record
	}
	return serviceStats
}
