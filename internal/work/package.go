package work

import (
	"errors"
	"fmt"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

var ErrAuthorizationCodeNotFound = errors.New("authorization code not found")

// Package P ≡ {j ∈ Y, h ∈ N_S, u ∈ H, p ∈ Y, x ∈ X, w ∈ ⟦I⟧_1:I} (eq. 14.2 v0.6.7)
type Package struct {
	AuthorizationToken []byte                  // j
	AuthorizerService  block.ServiceId         // h
	AuthCodeHash       crypto.Hash             // u
	Parameterization   []byte                  // p
	Context            block.RefinementContext // x
	WorkItems          []Item                  // w
}

var PackageCodec = jam.Struct(
	jam.Field("authorization", jam.Blob, func(p *Package) *[]byte { return &p.AuthorizationToken }),
	jam.Field("auth_code_host", block.ServiceIdCodec, func(p *Package) *block.ServiceId { return &p.AuthorizerService }),
	jam.Field("code_hash", crypto.HashCodec, func(p *Package) *crypto.Hash { return &p.AuthCodeHash }),
	jam.Field("params", jam.Blob, func(p *Package) *[]byte { return &p.Parameterization }),
	jam.Field("context", block.RefinementContextCodec, func(p *Package) *block.RefinementContext { return &p.Context }),
	jam.Field("items", jam.Sequence(ItemCodec), func(p *Package) *[]Item { return &p.WorkItems }),
)

// Validate checks the item count, manifest, size and gas limits of the package (eq. 14.4-14.7 v0.6.7).
func (wp Package) Validate(cfg chainspec.Config) error {
	if len(wp.WorkItems) == 0 || len(wp.WorkItems) > cfg.MaxWorkItems {
		return fmt.Errorf("invalid number of work items: %d", len(wp.WorkItems))
	}

	var totalExported, totalImported, totalExtrinsics int
	var totalAccumulate, totalRefine uint64
	totalSize := uint64(len(wp.AuthorizationToken)) + uint64(len(wp.Parameterization))
	for _, w := range wp.WorkItems {
		totalExported += int(w.ExportedSegments)
		totalImported += len(w.ImportedSegments)
		totalExtrinsics += len(w.BlobHashLengths)
		totalAccumulate += w.GasLimitAccumulate
		totalRefine += w.GasLimitRefine
		totalSize += w.Size(cfg.SegmentSize())
	}

	if totalExported > cfg.MaxExports {
		return fmt.Errorf("exceeded maximum exported segments: %d/%d", totalExported, cfg.MaxExports)
	}
	if totalImported > cfg.MaxImports {
		return fmt.Errorf("exceeded maximum imported segments: %d/%d", totalImported, cfg.MaxImports)
	}
	if totalExtrinsics > cfg.MaxExtrinsics {
		return fmt.Errorf("exceeded maximum extrinsics: %d/%d", totalExtrinsics, cfg.MaxExtrinsics)
	}
	if totalSize > uint64(cfg.MaxWorkPackageSize) {
		return fmt.Errorf("work-package size exceeds limit: %d/%d bytes", totalSize, cfg.MaxWorkPackageSize)
	}
	if totalAccumulate >= cfg.MaxAccumulationGas {
		return fmt.Errorf("accumulation gas exceeds limit G_A: %d/%d", totalAccumulate, cfg.MaxAccumulationGas)
	}
	if totalRefine >= cfg.MaxRefineGas {
		return fmt.Errorf("refine gas exceeds limit G_R: %d/%d", totalRefine, cfg.MaxRefineGas)
	}
	return nil
}

// AuthorizerHash p_a = H(p_u ⌢ p_p) (eq. 14.10 v0.6.7)
func (wp Package) AuthorizerHash() crypto.Hash {
	return crypto.HashData(append(wp.AuthCodeHash[:], wp.Parameterization...))
}

// AuthorizationCode p_c = Λ(δ[p_h], (p_x)_t, p_u) (eq. 14.10 v0.6.7), the
// metadata prefix of the preimage is dropped.
func (wp Package) AuthorizationCode(serviceState service.ServiceState) ([]byte, error) {
	sa, exists := serviceState[wp.AuthorizerService]
	if !exists {
		return nil, fmt.Errorf("service %d: %w", wp.AuthorizerService, ErrAuthorizationCodeNotFound)
	}

	preimage := sa.LookupPreimage(wp.AuthorizerService, wp.Context.LookupAnchor.Timeslot, wp.AuthCodeHash)
	if preimage == nil {
		return nil, ErrAuthorizationCodeNotFound
	}
	_, n, err := jam.Blob.Decode(preimage)
	if err != nil {
		return nil, fmt.Errorf("authorization code metadata: %w", err)
	}
	return preimage[n:], nil
}
