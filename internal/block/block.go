package block

import (
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// Block represents the main block structure
type Block struct {
	Header    Header
	Extrinsic Extrinsic
}

// Extrinsic represents the block extrinsic data
type Extrinsic struct {
	ET TicketExtrinsic
	EP PreimageExtrinsic
	EG GuaranteesExtrinsic
	EA AssurancesExtrinsic
	ED DisputeExtrinsic
}

// Codecs is the set of codecs whose shape depends on the chain parameters.
// Build it once per Config with NewCodecs.
type Codecs struct {
	Header           jam.Codec[Header]
	UnsignedHeader   jam.Codec[Header]
	Assurance        jam.Codec[Assurance]
	Assurances       jam.Codec[AssurancesExtrinsic]
	Verdict          jam.Codec[Verdict]
	Disputes         jam.Codec[DisputeExtrinsic]
	Extrinsic        jam.Codec[Extrinsic]
	Block            jam.Codec[Block]
	EpochMarker      jam.Codec[EpochMarker]
	TicketsMarker    jam.Codec[WinningTicketMarker]
	ValidatorKeySets jam.Codec[[]crypto.ValidatorKey]
}

func NewCodecs(cfg chainspec.Config) *Codecs {
	validators := int(cfg.NumberOfValidators)
	epochLength := int(cfg.EpochLength)
	superMajority := cfg.ValidatorsSuperMajority()

	c := &Codecs{
		Header:           newHeaderCodec(validators, epochLength, true),
		UnsignedHeader:   newHeaderCodec(validators, epochLength, false),
		Assurance:        newAssuranceCodec(int(cfg.NumberOfCores)),
		Verdict:          newVerdictCodec(superMajority),
		Disputes:         newDisputeExtrinsicCodec(superMajority),
		EpochMarker:      newEpochMarkerCodec(validators),
		TicketsMarker:    newTicketsMarkerCodec(epochLength),
		ValidatorKeySets: crypto.ValidatorsCodec(validators),
	}
	c.Assurances = jam.Transform(jam.Sequence(c.Assurance),
		func(a []Assurance) AssurancesExtrinsic { return a },
		func(e AssurancesExtrinsic) []Assurance { return e },
	)
	c.Extrinsic = jam.Struct(
		jam.Field("tickets", TicketExtrinsicCodec, func(e *Extrinsic) *TicketExtrinsic { return &e.ET }),
		jam.Field("preimages", PreimageExtrinsicCodec, func(e *Extrinsic) *PreimageExtrinsic { return &e.EP }),
		jam.Field("guarantees", GuaranteesExtrinsicCodec, func(e *Extrinsic) *GuaranteesExtrinsic { return &e.EG }),
		jam.Field("assurances", c.Assurances, func(e *Extrinsic) *AssurancesExtrinsic { return &e.EA }),
		jam.Field("disputes", c.Disputes, func(e *Extrinsic) *DisputeExtrinsic { return &e.ED }),
	)
	c.Block = jam.Struct(
		jam.Field("header", c.Header, func(b *Block) *Header { return &b.Header }),
		jam.Field("extrinsic", c.Extrinsic, func(b *Block) *Extrinsic { return &b.Extrinsic }),
	)
	return c
}

// ExtrinsicHash computes H_x, the commitment to the extrinsic data (eq. 5.4 v0.6.7):
//
//	H_x = H(E(H(E_T), H(E_P), H(g), H(E_A), H(E_D)))
//	g = E(↕[(H(w), E_4(t), ↕a) | (w, t, a) ∈ E_G])
func (c *Codecs) ExtrinsicHash(e Extrinsic) (crypto.Hash, error) {
	tickets, err := jam.Marshal(TicketExtrinsicCodec, e.ET)
	if err != nil {
		return crypto.Hash{}, err
	}
	preimages, err := jam.Marshal(PreimageExtrinsicCodec, e.EP)
	if err != nil {
		return crypto.Hash{}, err
	}
	guarantees, err := guaranteesCommitment(e.EG)
	if err != nil {
		return crypto.Hash{}, err
	}
	assurances, err := jam.Marshal(c.Assurances, e.EA)
	if err != nil {
		return crypto.Hash{}, err
	}
	disputes, err := jam.Marshal(c.Disputes, e.ED)
	if err != nil {
		return crypto.Hash{}, err
	}

	bb := make([]byte, 0, 5*crypto.HashSize)
	for _, part := range [][]byte{tickets, preimages, guarantees, assurances, disputes} {
		h := crypto.HashData(part)
		bb = append(bb, h[:]...)
	}
	return crypto.HashData(bb), nil
}

func guaranteesCommitment(eg GuaranteesExtrinsic) ([]byte, error) {
	out := jam.SerializeUint64(uint64(len(eg.Guarantees)))
	for _, g := range eg.Guarantees {
		reportHash, err := g.WorkReport.Hash()
		if err != nil {
			return nil, err
		}
		out = append(out, reportHash[:]...)
		out = append(out, jam.EncodeUint32(uint32(g.Timeslot))...)
		creds, err := jam.Marshal(jam.Sequence(credentialCodec), g.Credentials)
		if err != nil {
			return nil, err
		}
		out = append(out, creds...)
	}
	return out, nil
}
