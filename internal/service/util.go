package service

import (
	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

const (
	// MinPublicServiceIndex is 2^8, indices below it are never handed out.
	MinPublicServiceIndex = 1 << 8
	// serviceIndexModulus is 2^32 - 2^9.
	serviceIndexModulus = 1<<32 - 1<<9
)

// CheckIndex checks if the identifier is unused and if not probes for the
// next free one (eq. B.14 v0.6.7):
//
//	check(i) = i                                          if i ∉ K(δ)
//	check(i) = check((i − 2^8 + 1) mod (2^32 − 2^9) + 2^8) otherwise
func CheckIndex(serviceIndex block.ServiceId, serviceState ServiceState) block.ServiceId {
	i := uint64(serviceIndex)
	for {
		if _, ok := serviceState[block.ServiceId(i)]; !ok {
			return block.ServiceId(i)
		}
		i = (i-MinPublicServiceIndex+1)%serviceIndexModulus + MinPublicServiceIndex
	}
}

// BumpIndex is the next candidate index after a service was created with
// the current one, check(2^8 + (i − 2^8 + 42) mod (2^32 − 2^9)) (eq. B.19 v0.6.7).
func BumpIndex(serviceIndex block.ServiceId, serviceState ServiceState) block.ServiceId {
	i := uint64(serviceIndex)
	return CheckIndex(block.ServiceId(MinPublicServiceIndex+(i-MinPublicServiceIndex+42)%serviceIndexModulus), serviceState)
}

// DeriveIndex produces the first candidate index of an accumulation context
// (eq. B.10 v0.6.7): check((E_4^-1(H(E(s, η'_0, H_t))) mod (2^32 − 2^9)) + 2^8)
func DeriveIndex(serviceId block.ServiceId, entropy crypto.Hash, timeslot jamtime.Timeslot, serviceState ServiceState) block.ServiceId {
	bb := make([]byte, 0, 4+crypto.HashSize+4)
	bb = append(bb, jam.SerializeUint64(uint64(serviceId))...)
	bb = append(bb, entropy[:]...)
	bb = append(bb, jam.SerializeUint64(uint64(timeslot))...)
	h := crypto.HashData(bb)

	n := uint64(jam.DeserializeTrivialNatural[uint32](h[:4]))
	return CheckIndex(block.ServiceId(n%serviceIndexModulus+MinPublicServiceIndex), serviceState)
}
