package work

import (
	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// Segment is an exported or imported data segment of W_G octets.
type Segment []byte

// ImportedSegment i ∈ {H ∪ H⊞, N} refers to a segment either by the root of
// its exporting tree or by the hash of the exporting work-package.
type ImportedSegment struct {
	Hash          crypto.Hash
	IsPackageHash bool // H⊞
	Index         uint16
}

// packageHashFlag marks an H⊞ reference in the encoded index.
const packageHashFlag = 1 << 15

type BlobHashLengthPair struct {
	Hash   crypto.Hash
	Length uint32
}

// Item I ≡ {s ∈ N_S, c ∈ H, y ∈ Y, g ∈ N_G, a ∈ N_G, e ∈ N, i ∈ ⟦{H ∪ H⊞, N}⟧, x ∈ ⟦(H, N)⟧} (eq. 14.3 v0.6.7)
type Item struct {
	ServiceId          block.ServiceId      // s
	CodeHash           crypto.Hash          // c
	Payload            []byte               // y
	GasLimitRefine     uint64               // g
	GasLimitAccumulate uint64               // a
	ExportedSegments   uint16               // e
	ImportedSegments   []ImportedSegment    // i
	BlobHashLengths    []BlobHashLengthPair // x
}

// Size S(w) = |w_y| + |w_i|·W_G + Σ_(h,l)∈w_x l (eq. 14.5 v0.6.7)
func (w Item) Size(segmentSize int) uint64 {
	total := uint64(len(w.Payload))
	total += uint64(len(w.ImportedSegments)) * uint64(segmentSize)
	for _, bh := range w.BlobHashLengths {
		total += uint64(bh.Length)
	}
	return total
}

// Summary is the S(w) octets handed to refine through fetch:
// E(E4(w_s), w_c, E8(w_g, w_a), E2(w_e, |w_i|, |w_x|), E4(|w_y|))
func (w Item) Summary() []byte {
	out := make([]byte, 0, 4+crypto.HashSize+8+8+2+2+2+4)
	out = append(out, jam.EncodeUint32(uint32(w.ServiceId))...)
	out = append(out, w.CodeHash[:]...)
	out = append(out, jam.EncodeUint64(w.GasLimitRefine)...)
	out = append(out, jam.EncodeUint64(w.GasLimitAccumulate)...)
	out = append(out, jam.SerializeTrivialNatural(w.ExportedSegments, 2)...)
	out = append(out, jam.SerializeTrivialNatural(uint16(len(w.ImportedSegments)), 2)...)
	out = append(out, jam.SerializeTrivialNatural(uint16(len(w.BlobHashLengths)), 2)...)
	out = append(out, jam.EncodeUint32(uint32(len(w.Payload)))...)
	return out
}

// ToWorkResult item-to-result function C (eq. 14.9 v0.6.7)
func (w Item) ToWorkResult(o block.WorkResultOutputOrError, load block.RefineLoad) block.WorkResult {
	return block.WorkResult{
		ServiceId:       w.ServiceId,
		ServiceHashCode: w.CodeHash,
		PayloadHash:     crypto.HashData(w.Payload),
		GasLimit:        w.GasLimitAccumulate,
		Output:          o,
		RefineLoad:      load,
	}
}

// importSpec is the wire shape of an import: the flag rides in the top bit of the index.
type importSpec struct {
	root  crypto.Hash
	index uint16
}

var (
	importedSegmentCodec = jam.Transform(
		jam.Struct(
			jam.Field("tree_root", crypto.HashCodec, func(s *importSpec) *crypto.Hash { return &s.root }),
			jam.Field("index", jam.U16, func(s *importSpec) *uint16 { return &s.index }),
		),
		func(s importSpec) ImportedSegment {
			return ImportedSegment{Hash: s.root, IsPackageHash: s.index&packageHashFlag != 0, Index: s.index &^ packageHashFlag}
		},
		func(s ImportedSegment) importSpec {
			spec := importSpec{root: s.Hash, index: s.Index}
			if s.IsPackageHash {
				spec.index |= packageHashFlag
			}
			return spec
		},
	)

	blobHashLengthCodec = jam.Struct(
		jam.Field("hash", crypto.HashCodec, func(p *BlobHashLengthPair) *crypto.Hash { return &p.Hash }),
		jam.Field("len", jam.U32, func(p *BlobHashLengthPair) *uint32 { return &p.Length }),
	)

	ItemCodec = jam.Struct(
		jam.Field("service", block.ServiceIdCodec, func(w *Item) *block.ServiceId { return &w.ServiceId }),
		jam.Field("code_hash", crypto.HashCodec, func(w *Item) *crypto.Hash { return &w.CodeHash }),
		jam.Field("payload", jam.Blob, func(w *Item) *[]byte { return &w.Payload }),
		jam.Field("refine_gas_limit", jam.U64, func(w *Item) *uint64 { return &w.GasLimitRefine }),
		jam.Field("accumulate_gas_limit", jam.U64, func(w *Item) *uint64 { return &w.GasLimitAccumulate }),
		jam.Field("import_segments", jam.Sequence(importedSegmentCodec), func(w *Item) *[]ImportedSegment { return &w.ImportedSegments }),
		jam.Field("extrinsic", jam.Sequence(blobHashLengthCodec), func(w *Item) *[]BlobHashLengthPair { return &w.BlobHashLengths }),
		jam.Field("export_count", jam.U16, func(w *Item) *uint16 { return &w.ExportedSegments }),
	)
)
