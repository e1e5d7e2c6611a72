package statetransition

import (
	"fmt"
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/crypto/bandersnatch"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/state"
)

// VerifyBlockHeaderBasic checks the header fields that commit to the parent
// and to the extrinsic (eq. 5.2-5.8 v0.6.7).
func VerifyBlockHeaderBasic(codecs *block.Codecs, priorStateRoot crypto.Hash, recentHistory state.RecentHistory, b block.Block) error {
	// H_p must be the most recently imported block
	if n := len(recentHistory.BlockHistory); n > 0 && recentHistory.BlockHistory[n-1].HeaderHash != b.Header.ParentHash {
		return ErrInvalidParent
	}

	// H_r ≡ M_σ(σ) of the parent
	if b.Header.PriorStateRoot != priorStateRoot {
		return ErrInvalidParentStateRoot
	}

	extrinsicHash, err := codecs.ExtrinsicHash(b.Extrinsic)
	if err != nil {
		return fmt.Errorf("extrinsic hash: %w", err)
	}
	if b.Header.ExtrinsicHash != extrinsicHash {
		return ErrInvalidExtrinsicHash
	}
	return nil
}

// VerifyBlockHeaderSafrole checks the markers against the ones computed by
// the safrole transition, the offenders marker against the judged offenders
// and finally the seal (eq. 5.9-5.10, 6.15-6.20 v0.6.7).
func VerifyBlockHeaderSafrole(
	cfg chainspec.Config,
	codecs *block.Codecs,
	verifier bandersnatch.Verifier,
	header block.Header,
	newValidatorState state.ValidatorState,
	newEntropy state.EntropyPool,
	output SafroleOutput,
	offenders []crypto.Ed25519PublicKey,
) error {
	if !epochMarkersEqual(header.EpochMarker, output.EpochMark) {
		return ErrInvalidEpochMarker
	}
	if !ticketsMarkersEqual(header.WinningTicketsMarker, output.TicketsMark) {
		return ErrInvalidTicketsMarker
	}
	if !slices.Equal(header.OffendersMarkers, offenders) {
		return ErrInvalidOffendersMarker
	}

	unsealed, err := codecs.UnsignedHeaderBytes(header)
	if err != nil {
		return fmt.Errorf("unsealed header: %w", err)
	}
	_, err = safrole.VerifySeal(
		verifier,
		header,
		unsealed,
		newValidatorState.SafroleState.SealingKeySeries,
		newValidatorState.CurrentValidators,
		newEntropy[3],
		cfg.EpochLength,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSealInvalid, err)
	}
	return nil
}

func epochMarkersEqual(a, b *block.EpochMarker) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Entropy == b.Entropy &&
		a.TicketsEntropy == b.TicketsEntropy &&
		slices.Equal(a.Keys, b.Keys)
}

func ticketsMarkersEqual(a, b *block.WinningTicketMarker) bool {
	if a == nil || b == nil {
		return a == b
	}
	return slices.Equal(*a, *b)
}
