package safrole

import (
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// ValidatorsData is a validator key set of exactly V entries.
type ValidatorsData []crypto.ValidatorKey

// State relevant to Safrole protocol
type State struct {
	NextValidators    ValidatorsData        // (γk) Validator keys for the following epoch.
	RingCommitment    crypto.RingCommitment // (γz) Bandersnatch ring commitment.
	SealingKeySeries  TicketsOrKeys         // (γs) Sealing-key series of the current epoch.
	TicketAccumulator []block.Ticket        // (γa) Sealing-key contest ticket accumulator.
}

// TicketsOrKeys γs ∈ ⟦T⟧E ∪ ⟦H_B⟧E. Exactly one of the two slices is set:
// Tickets in the regular sealing mode, Keys in fallback mode.
type TicketsOrKeys struct {
	Tickets []block.Ticket
	Keys    []crypto.BandersnatchPublicKey
}

func (tok TicketsOrKeys) IsFallback() bool {
	return tok.Tickets == nil
}

func (s State) Clone() State {
	s.NextValidators = slices.Clone(s.NextValidators)
	s.SealingKeySeries = TicketsOrKeys{
		Tickets: slices.Clone(s.SealingKeySeries.Tickets),
		Keys:    slices.Clone(s.SealingKeySeries.Keys),
	}
	s.TicketAccumulator = slices.Clone(s.TicketAccumulator)
	return s
}

// NewTicketsOrKeysCodec is the union {0: tickets, 1: keys}, each of exactly
// epochLength elements.
func NewTicketsOrKeysCodec(epochLength int) jam.Codec[TicketsOrKeys] {
	return jam.Union(
		jam.Case(0, jam.FixedSequence(block.TicketCodec, epochLength),
			func(t []block.Ticket) TicketsOrKeys { return TicketsOrKeys{Tickets: t} },
			func(tok TicketsOrKeys) ([]block.Ticket, bool) { return tok.Tickets, tok.Tickets != nil },
		),
		jam.Case(1, jam.FixedSequence(crypto.BandersnatchKeyCodec, epochLength),
			func(k []crypto.BandersnatchPublicKey) TicketsOrKeys { return TicketsOrKeys{Keys: k} },
			func(tok TicketsOrKeys) ([]crypto.BandersnatchPublicKey, bool) { return tok.Keys, tok.Tickets == nil },
		),
	)
}

// NewValidatorsCodec encodes exactly n validator keys.
func NewValidatorsCodec(n int) jam.Codec[ValidatorsData] {
	return jam.Transform(crypto.ValidatorsCodec(n),
		func(v []crypto.ValidatorKey) ValidatorsData { return v },
		func(v ValidatorsData) []crypto.ValidatorKey { return v },
	)
}

// NewStateCodec encodes γ as E(γk, γz, γs, ↕γa) (eq. D.2 v0.6.7)
func NewStateCodec(validators, epochLength int) jam.Codec[State] {
	return jam.Struct(
		jam.Field("gamma_k", NewValidatorsCodec(validators), func(s *State) *ValidatorsData { return &s.NextValidators }),
		jam.Field("gamma_z", crypto.RingCommitmentCodec, func(s *State) *crypto.RingCommitment { return &s.RingCommitment }),
		jam.Field("gamma_s", NewTicketsOrKeysCodec(epochLength), func(s *State) *TicketsOrKeys { return &s.SealingKeySeries }),
		jam.Field("gamma_a", jam.Sequence(block.TicketCodec), func(s *State) *[]block.Ticket { return &s.TicketAccumulator }),
	)
}
