package block

import (
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// Ticket is a ticket body: its vrf output identifier and entry index.
type Ticket struct {
	Identifier crypto.Hash // y
	EntryIndex uint8       // r
}

// TicketProof represents a ticket submission in E_T
type TicketProof struct {
	EntryIndex uint8                   // r ∈ N_N
	Proof      crypto.RingVrfSignature // p ∈ F̄[]γz⟨XT ⌢ η′2 r⟩
}

// TicketExtrinsic E_T ∈ ⟦{r ∈ N_N, p ∈ F̄}⟧:K
type TicketExtrinsic struct {
	TicketProofs []TicketProof
}

var (
	TicketCodec = jam.Struct(
		jam.Field("id", crypto.HashCodec, func(t *Ticket) *crypto.Hash { return &t.Identifier }),
		jam.Field("attempt", jam.U8, func(t *Ticket) *uint8 { return &t.EntryIndex }),
	)

	TicketProofCodec = jam.Struct(
		jam.Field("attempt", jam.U8, func(t *TicketProof) *uint8 { return &t.EntryIndex }),
		jam.Field("signature", crypto.RingVrfSignatureCodec, func(t *TicketProof) *crypto.RingVrfSignature { return &t.Proof }),
	)

	TicketExtrinsicCodec = jam.Transform(jam.Sequence(TicketProofCodec),
		func(p []TicketProof) TicketExtrinsic { return TicketExtrinsic{TicketProofs: p} },
		func(e TicketExtrinsic) []TicketProof { return e.TicketProofs },
	)
)

// CompareTickets orders tickets by identifier.
func CompareTickets(a, b Ticket) int {
	return crypto.CompareHash(a.Identifier, b.Identifier)
}
