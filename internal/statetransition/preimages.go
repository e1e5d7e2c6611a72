package statetransition

import (
	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/service"
)

// ValidatePreimages checks that E_P is sorted, free of duplicates and holds
// only preimages the prior service state asks for (eq. 12.36-12.38 v0.6.7).
func ValidatePreimages(preimages block.PreimageExtrinsic, serviceState service.ServiceState) error {
	for i := 1; i < len(preimages); i++ {
		if block.ComparePreimages(preimages[i-1], preimages[i]) >= 0 {
			return ErrPreimagesNotSortedUnique
		}
	}

	// R(d, s, h, l) ⇔ h ∉ d[s]_p ∧ d[s]_l[(h, l)] = []
	for _, p := range preimages {
		if !preimageHasBeenSolicited(serviceState, p.ServiceIndex, crypto.HashData(p.Data), service.PreimageLength(len(p.Data))) {
			return ErrPreimageUnneeded
		}
	}
	return nil
}

func preimageHasBeenSolicited(serviceState service.ServiceState, serviceIndex block.ServiceId, preimageHash crypto.Hash, length service.PreimageLength) bool {
	account, ok := serviceState[serviceIndex]
	if !ok {
		return false
	}
	if _, ok := account.GetPreimage(serviceIndex, preimageHash); ok {
		return false
	}
	meta, ok := account.GetPreimageMeta(serviceIndex, preimageHash, length)
	return ok && len(meta) == 0
}

// CalculateNewServiceStateWithPreimages integrates the provided preimages into
// δ‡, skipping any that accumulation already provided (eq. 12.39 v0.6.7):
//
//	δ'[s]_p[H(d)] = d, δ'[s]_l[H(d), |d|] = [τ'] for (s, d) ∈ E_P with R(δ‡, s, H(d), |d|)
func CalculateNewServiceStateWithPreimages(preimages block.PreimageExtrinsic, serviceState service.ServiceState, newTimeslot jamtime.Timeslot) service.ServiceState {
	if len(preimages) == 0 {
		return serviceState
	}
	newServiceState := serviceState.Clone()
	for _, p := range preimages {
		hash := crypto.HashData(p.Data)
		length := service.PreimageLength(len(p.Data))
		if !preimageHasBeenSolicited(newServiceState, p.ServiceIndex, hash, length) {
			continue
		}
		account := newServiceState[p.ServiceIndex]
		account.InsertPreimage(p.ServiceIndex, p.Data)
		account.SetPreimageMeta(p.ServiceIndex, hash, length, service.PreimageHistoricalTimeslots{newTimeslot})
		newServiceState[p.ServiceIndex] = account
	}
	return newServiceState
}
