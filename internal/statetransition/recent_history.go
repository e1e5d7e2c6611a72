package statetransition

import (
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/merkle/binary_tree"
	"github.com/eigerco/jamtarget/internal/merkle/mountain_ranges"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// CalculateIntermediateRecentHistory implements equations:
// 4.6: β†_H ≺ (H, β_H)
// 7.5: β†_H[|β_H| - 1]_s = H_r
func CalculateIntermediateRecentHistory(header block.Header, priorRecentHistory state.RecentHistory) state.RecentHistory {
	intermediateRecentHistory := priorRecentHistory.Clone()
	if n := len(intermediateRecentHistory.BlockHistory); n > 0 {
		intermediateRecentHistory.BlockHistory[n-1].StateRoot = header.PriorStateRoot
	}
	return intermediateRecentHistory
}

// CalculateNewRecentHistory implements equations:
// 4.17: β' ≺ (H, E_G, β†, θ')
// 7.6 - 7.8
func CalculateNewRecentHistory(
	cfg chainspec.Config,
	headerHash crypto.Hash,
	guarantees block.GuaranteesExtrinsic,
	intermediateRecentHistory state.RecentHistory,
	accumulationOutputLog state.AccumulationOutputLog,
) state.RecentHistory {
	// 7.6: s = [E_4(s) ⌢ E(h) | (s, h) <- θ']
	accumulationRoot := ComputeAccumulationRoot(accumulationOutputLog)

	// 7.8: p = {((g_r)_s)_h ↦ ((g_r)_s)_e | g ∈ E_G}
	workPackageMapping := buildWorkPackageMapping(guarantees.Guarantees)

	return UpdateRecentHistory(cfg.MaxRecentBlocks, headerHash, accumulationRoot, workPackageMapping, intermediateRecentHistory)
}

// UpdateRecentHistory implements:
// 7.7: β'_B ≡ A(β_B, M_B(s, H_K), H_K)
// 7.8: β'_H ≡ ←_H (β†_H ++ (p, h: H(H), b: M_R(β'_B), s: H_0))
func UpdateRecentHistory(
	maxRecentBlocks int,
	headerHash crypto.Hash,
	accumulationRoot crypto.Hash,
	workPackageMapping map[crypto.Hash]crypto.Hash,
	intermediateRecentHistory state.RecentHistory,
) state.RecentHistory {
	newRecentHistory := intermediateRecentHistory.Clone()
	mountainRange := mountain_ranges.New(crypto.KeccakData)

	newRecentHistory.AccumulationOutputLog = mountainRange.Append(newRecentHistory.AccumulationOutputLog, accumulationRoot)

	newRecentHistory.BlockHistory = append(newRecentHistory.BlockHistory, state.BlockState{
		HeaderHash: headerHash,
		BeefyRoot:  mountainRange.SuperPeak(newRecentHistory.AccumulationOutputLog),
		StateRoot:  crypto.Hash{},
		Reported:   workPackageMapping,
	})
	if len(newRecentHistory.BlockHistory) > maxRecentBlocks {
		newRecentHistory.BlockHistory = slices.Clone(newRecentHistory.BlockHistory[len(newRecentHistory.BlockHistory)-maxRecentBlocks:])
	}
	return newRecentHistory
}

// ComputeAccumulationRoot is M_B([E_4(s) ⌢ E(h) | (s, h) <- θ'], H_K), the
// root of the well-balanced keccak tree over the accumulation outputs.
func ComputeAccumulationRoot(pairs state.AccumulationOutputLog) crypto.Hash {
	if len(pairs) == 0 {
		return crypto.Hash{}
	}
	items := make([][]byte, len(pairs))
	for i, pair := range pairs {
		items[i] = slices.Concat(jam.EncodeUint32(uint32(pair.ServiceId)), pair.Hash[:])
	}
	return binary_tree.ComputeWellBalancedRoot(items, crypto.KeccakData)
}

func buildWorkPackageMapping(guarantees []block.Guarantee) map[crypto.Hash]crypto.Hash {
	workPackages := make(map[crypto.Hash]crypto.Hash, len(guarantees))
	for _, g := range guarantees {
		workPackages[g.WorkReport.AvailabilitySpecification.WorkPackageHash] = g.WorkReport.AvailabilitySpecification.SegmentRoot
	}
	return workPackages
}

// CalculateNewCoreAuthorizations implements the authorization pool state transition.
// Equation 4.19: α' ≺ (H, E_G, φ', α)
// Equation 8.2:  ∀c ∈ N_C : α'[c] ≡ ←_O (F(c) ⌢ φ'[c][H_t]↺)
// Equation 8.3:  F(c) ≡ α[c] \ {(g_r)_a} if ∃g ∈ E_G : (g_r)_c = c, α[c] otherwise
func CalculateNewCoreAuthorizations(
	cfg chainspec.Config,
	header block.Header,
	guarantees block.GuaranteesExtrinsic,
	pendingAuthorizations state.PendingAuthorizersQueues,
	currentAuthorizations state.CoreAuthorizersPool,
) state.CoreAuthorizersPool {
	newCoreAuthorizations := make(state.CoreAuthorizersPool, cfg.NumberOfCores)
	for c := range cfg.NumberOfCores {
		var newAuths []crypto.Hash
		if int(c) < len(currentAuthorizations) {
			newAuths = slices.Clone(currentAuthorizations[c])
		}

		for _, guarantee := range guarantees.Guarantees {
			if guarantee.WorkReport.CoreIndex == c {
				newAuths = removeAuthorizer(newAuths, guarantee.WorkReport.AuthorizerHash)
				break
			}
		}

		if int(c) < len(pendingAuthorizations) && len(pendingAuthorizations[c]) > 0 {
			queue := pendingAuthorizations[c]
			newAuths = appendAuthorizerLimited(newAuths, queue[int(header.TimeSlotIndex)%len(queue)], cfg.MaxAuthorizersPerCore)
		}
		newCoreAuthorizations[c] = newAuths
	}
	return newCoreAuthorizations
}

// removeAuthorizer removes the first occurrence of an authorizer, keeping order.
func removeAuthorizer(auths []crypto.Hash, toRemove crypto.Hash) []crypto.Hash {
	if i := slices.Index(auths, toRemove); i >= 0 {
		return slices.Delete(auths, i, i+1)
	}
	return auths
}

// appendAuthorizerLimited is the ← operator: append, then keep the newest limit entries.
func appendAuthorizerLimited(auths []crypto.Hash, newAuth crypto.Hash, limit int) []crypto.Hash {
	auths = append(auths, newAuth)
	if len(auths) > limit {
		auths = slices.Delete(auths, 0, len(auths)-limit)
	}
	return auths
}
