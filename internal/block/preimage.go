package block

import (
	"bytes"

	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

type ServiceId uint32

// Preimage E_P ∈ ⟦{N_S, B}⟧
type Preimage struct {
	ServiceIndex ServiceId
	Data         []byte
}

type PreimageExtrinsic []Preimage

var (
	ServiceIdCodec = jam.FixedUint[ServiceId](4)

	PreimageCodec = jam.Struct(
		jam.Field("requester", ServiceIdCodec, func(p *Preimage) *ServiceId { return &p.ServiceIndex }),
		jam.Field("blob", jam.Blob, func(p *Preimage) *[]byte { return &p.Data }),
	)

	PreimageExtrinsicCodec = jam.Transform(jam.Sequence(PreimageCodec),
		func(p []Preimage) PreimageExtrinsic { return p },
		func(e PreimageExtrinsic) []Preimage { return e },
	)
)

// ComparePreimages is the E_P ordering: by service, then by blob.
func ComparePreimages(a, b Preimage) int {
	if c := jam.CompareUnsigned(a.ServiceIndex, b.ServiceIndex); c != 0 {
		return c
	}
	return bytes.Compare(a.Data, b.Data)
}
