package safrole

import (
	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// OutsideInSequence implements Z, the outside-in sequencer (eq. 6.25 v0.6.7):
//
//	Z(s) = [s_0, s_{|s|-1}, s_1, s_{|s|-2}, ...]
func OutsideInSequence(tickets []block.Ticket) []block.Ticket {
	out := make([]block.Ticket, 0, len(tickets))
	i, j := 0, len(tickets)-1
	for i <= j {
		out = append(out, tickets[i])
		if i != j {
			out = append(out, tickets[j])
		}
		i++
		j--
	}
	return out
}

// FallbackKeys implements F, the fallback key sequence (eq. 6.26 v0.6.7):
//
//	F(r, k) = [k[E_4^-1(H(r ⌢ E_4(i))_..4) mod |k|]_b | i <- N_E]
func FallbackKeys(entropy crypto.Hash, validators ValidatorsData, epochLength uint32) []crypto.BandersnatchPublicKey {
	keys := make([]crypto.BandersnatchPublicKey, epochLength)
	if len(validators) == 0 {
		return keys
	}
	for i := range keys {
		h := crypto.HashData(append(entropy[:], jam.EncodeUint32(uint32(i))...))
		index := jam.DeserializeTrivialNatural[uint32](h[:4]) % uint32(len(validators))
		keys[i] = validators[index].Bandersnatch
	}
	return keys
}

// NullifyOffenders implements Φ (eq. 6.14 v0.6.7): keys of validators in the
// offenders set are replaced by zero keys. The input is not modified.
func NullifyOffenders(queued ValidatorsData, offenders []crypto.Ed25519PublicKey) ValidatorsData {
	offenderSet := make(map[crypto.Ed25519PublicKey]struct{}, len(offenders))
	for _, key := range offenders {
		offenderSet[key] = struct{}{}
	}
	out := make(ValidatorsData, len(queued))
	for i, v := range queued {
		if _, ok := offenderSet[v.Ed25519]; ok {
			continue
		}
		out[i] = v
	}
	return out
}

// BandersnatchKeys is [k_b | k <- v].
func (v ValidatorsData) BandersnatchKeys() []crypto.BandersnatchPublicKey {
	keys := make([]crypto.BandersnatchPublicKey, len(v))
	for i, k := range v {
		keys[i] = k.Bandersnatch
	}
	return keys
}
