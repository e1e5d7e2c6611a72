package block

import (
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// Header as defined in the section 5 in the paper
type Header struct {
	ParentHash           crypto.Hash                  // Hp
	PriorStateRoot       crypto.Hash                  // Hr
	ExtrinsicHash        crypto.Hash                  // Hx
	TimeSlotIndex        jamtime.Timeslot             // Ht
	EpochMarker          *EpochMarker                 // He
	WinningTicketsMarker *WinningTicketMarker         // Hw
	OffendersMarkers     []crypto.Ed25519PublicKey    // Ho, the culprit's and fault's public keys
	BlockAuthorIndex     uint16                       // Hi
	VRFSignature         crypto.BandersnatchSignature // Hv
	BlockSealSignature   crypto.BandersnatchSignature // Hs
}

// EpochMarker consists of epoch randomness and the keys of the validators
// (bandersnatch and ed25519) beginning in the next epoch.
type EpochMarker struct {
	Entropy        crypto.Hash
	TicketsEntropy crypto.Hash
	Keys           []ValidatorKeys
}

type ValidatorKeys struct {
	Bandersnatch crypto.BandersnatchPublicKey
	Ed25519      crypto.Ed25519PublicKey
}

// WinningTicketMarker holds exactly E tickets, in outside-in sequence.
type WinningTicketMarker []Ticket

var validatorKeysCodec = jam.Struct(
	jam.Field("bandersnatch", crypto.BandersnatchKeyCodec, func(k *ValidatorKeys) *crypto.BandersnatchPublicKey { return &k.Bandersnatch }),
	jam.Field("ed25519", crypto.Ed25519PublicKeyCodec, func(k *ValidatorKeys) *crypto.Ed25519PublicKey { return &k.Ed25519 }),
)

func newEpochMarkerCodec(validators int) jam.Codec[EpochMarker] {
	return jam.Struct(
		jam.Field("entropy", crypto.HashCodec, func(m *EpochMarker) *crypto.Hash { return &m.Entropy }),
		jam.Field("tickets_entropy", crypto.HashCodec, func(m *EpochMarker) *crypto.Hash { return &m.TicketsEntropy }),
		jam.Field("validators", jam.FixedSequence(validatorKeysCodec, validators), func(m *EpochMarker) *[]ValidatorKeys { return &m.Keys }),
	)
}

func newTicketsMarkerCodec(epochLength int) jam.Codec[WinningTicketMarker] {
	return jam.Transform(jam.FixedSequence(TicketCodec, epochLength),
		func(t []Ticket) WinningTicketMarker { return t },
		func(m WinningTicketMarker) []Ticket { return m },
	)
}

// newHeaderCodec builds E(H) when sealed is set and E_U(H) otherwise.
func newHeaderCodec(validators, epochLength int, sealed bool) jam.Codec[Header] {
	fields := []jam.FieldDescriptor[Header]{
		jam.Field("parent", crypto.HashCodec, func(h *Header) *crypto.Hash { return &h.ParentHash }),
		jam.Field("parent_state_root", crypto.HashCodec, func(h *Header) *crypto.Hash { return &h.PriorStateRoot }),
		jam.Field("extrinsic_hash", crypto.HashCodec, func(h *Header) *crypto.Hash { return &h.ExtrinsicHash }),
		jam.Field("slot", jamtime.TimeslotCodec, func(h *Header) *jamtime.Timeslot { return &h.TimeSlotIndex }),
		jam.Field("epoch_mark", jam.Optional(newEpochMarkerCodec(validators)), func(h *Header) **EpochMarker { return &h.EpochMarker }),
		jam.Field("tickets_mark", jam.Optional(newTicketsMarkerCodec(epochLength)), func(h *Header) **WinningTicketMarker { return &h.WinningTicketsMarker }),
		jam.Field("offenders_mark", jam.Sequence(crypto.Ed25519PublicKeyCodec), func(h *Header) *[]crypto.Ed25519PublicKey { return &h.OffendersMarkers }),
		jam.Field("author_index", jam.U16, func(h *Header) *uint16 { return &h.BlockAuthorIndex }),
		jam.Field("entropy_source", crypto.BandersnatchSigCodec, func(h *Header) *crypto.BandersnatchSignature { return &h.VRFSignature }),
	}
	if sealed {
		fields = append(fields, jam.Field("seal", crypto.BandersnatchSigCodec, func(h *Header) *crypto.BandersnatchSignature { return &h.BlockSealSignature }))
	}
	return jam.Struct(fields...)
}

// HeaderHash returns H(E(header)), the hash identifying the block.
func (c *Codecs) HeaderHash(h Header) (crypto.Hash, error) {
	bb, err := jam.Marshal(c.Header, h)
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.HashData(bb), nil
}

// UnsignedHeaderBytes is E_U(H), the encoding of the header without the seal.
func (c *Codecs) UnsignedHeaderBytes(h Header) ([]byte, error) {
	return jam.Marshal(c.UnsignedHeader, h)
}
