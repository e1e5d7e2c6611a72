package safrole

import (
	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/constants"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/crypto/bandersnatch"
)

// SealContext is the context the block seal is signed under for the slot:
// X_T ⌢ η'_3 ++ i_r with a ticket, X_F ⌢ η'_3 in fallback mode.
func SealContext(sealingKeys TicketsOrKeys, phase uint32, entropy crypto.Hash) []byte {
	if sealingKeys.IsFallback() {
		return append([]byte(constants.SignatureContextFallback), entropy[:]...)
	}
	ctx := append([]byte(constants.SignatureContextTicket), entropy[:]...)
	return append(ctx, sealingKeys.Tickets[phase].EntryIndex)
}

// EntropyContext is X_E ⌢ Y(H_s), the context of the entropy-yielding VRF signature.
func EntropyContext(sealOutput crypto.Hash) []byte {
	return append([]byte(constants.SignatureContextEntropy), sealOutput[:]...)
}

// VerifySeal verifies the block seal H_s and the VRF signature H_v
// (eq. 6.15-6.20 v0.6.7). sealingKeys is γ'_s, validators κ', entropy η'_3
// and unsealedHeader E_U(H). It returns Y(H_v), the entropy contribution of
// the block.
//
//	γ'_s ∈ ⟦T⟧ ⇒ i_y = Y(H_s), H_s ∈ V_{H_A}^{E_U(H)}⟨X_T ⌢ η'_3 ++ i_r⟩
//	γ'_s ∈ ⟦H_B⟧ ⇒ i = H_A, H_s ∈ V_{H_A}^{E_U(H)}⟨X_F ⌢ η'_3⟩
//	H_v ∈ V_{H_A}^{[]}⟨X_E ⌢ Y(H_s)⟩
func VerifySeal(
	verifier bandersnatch.Verifier,
	header block.Header,
	unsealedHeader []byte,
	sealingKeys TicketsOrKeys,
	validators ValidatorsData,
	entropy crypto.Hash,
	epochLength uint32,
) (crypto.Hash, error) {
	if int(header.BlockAuthorIndex) >= len(validators) {
		return crypto.Hash{}, ErrBadAuthorIndex
	}
	// H_A ≡ κ'[H_I]
	author := validators[header.BlockAuthorIndex].Bandersnatch
	phase := uint32(header.TimeSlotIndex) % epochLength

	if sealingKeys.IsFallback() {
		if int(phase) >= len(sealingKeys.Keys) {
			return crypto.Hash{}, ErrInvalidSealingKeys
		}
		if sealingKeys.Keys[phase] != author {
			return crypto.Hash{}, ErrUnexpectedAuthor
		}
	} else if int(phase) >= len(sealingKeys.Tickets) {
		return crypto.Hash{}, ErrInvalidSealingKeys
	}

	sealOutput, ok := verifier.Verify(author, SealContext(sealingKeys, phase, entropy), unsealedHeader, header.BlockSealSignature)
	if !ok {
		return crypto.Hash{}, ErrBadSealSignature
	}
	if !sealingKeys.IsFallback() && sealingKeys.Tickets[phase].Identifier != sealOutput {
		return crypto.Hash{}, ErrTicketMismatch
	}

	vrfOutput, ok := verifier.Verify(author, EntropyContext(sealOutput), []byte{}, header.VRFSignature)
	if !ok {
		return crypto.Hash{}, ErrBadVRFSignature
	}
	return vrfOutput, nil
}
