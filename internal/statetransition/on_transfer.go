package statetransition

import (
	"cmp"
	"maps"
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/invocation"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/service"
)

// DeferredTransfersStats X ∈ ⟨N_S → (N, N_G)⟩ (eq. 12.33 v0.6.7)
type DeferredTransfersStats map[block.ServiceId]DeferredTransfersStatEntry

type DeferredTransfersStatEntry struct {
	OnTransfersCount   uint32
	OnTransfersGasUsed uint64
}

// CalculateServiceStateAfterTransfers runs the on-transfer invocation of
// every service in δ† (eq. 12.29-12.33 v0.6.7):
//
//	δ‡ ≡ {s ↦ Ψ_T(δ†, τ', s, R(t, s)) | (s ↦ a) ∈ δ†}
//	a'_a = τ' if s ∈ K(S)
func CalculateServiceStateAfterTransfers(
	cfg chainspec.Config,
	serviceState service.ServiceState,
	newTimeslot jamtime.Timeslot,
	newEntropy crypto.Hash,
	transfers []service.DeferredTransfer,
	accumulationStats AccumulationStats,
) (service.ServiceState, DeferredTransfersStats) {
	newServiceState := make(service.ServiceState, len(serviceState))
	stats := DeferredTransfersStats{}
	for _, serviceId := range slices.Sorted(maps.Keys(serviceState)) {
		received := selectTransfers(transfers, serviceId)

		account, gasUsed := invocation.InvokeOnTransfer(cfg, serviceState, newTimeslot, newEntropy, serviceId, received)
		if _, ok := accumulationStats[serviceId]; ok {
			account.MostRecentAccumulationTimeslot = newTimeslot
		}
		newServiceState[serviceId] = account

		// X(d) ≡ (|R(t, d)|, u) for R(t, d) ≠ []
		if len(received) > 0 {
			stats[serviceId] = DeferredTransfersStatEntry{
				OnTransfersCount:   uint32(len(received)),
				OnTransfersGasUsed: gasUsed,
			}
		}
	}
	return newServiceState, stats
}

// selectTransfers R(⟦X⟧, N_S) → ⟦X⟧ (eq. 12.29 v0.6.7): the transfers to
// the destination, ordered by sender and then by their position in t.
func selectTransfers(transfers []service.DeferredTransfer, destination block.ServiceId) []service.DeferredTransfer {
	var selected []service.DeferredTransfer
	for _, t := range transfers {
		if t.ReceiverServiceIndex == destination {
			selected = append(selected, t)
		}
	}
	slices.SortStableFunc(selected, func(a, b service.DeferredTransfer) int {
		return cmp.Compare(a.SenderServiceIndex, b.SenderServiceIndex)
	})
	return selected
}
