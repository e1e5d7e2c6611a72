package host_call

import (
	"bytes"
	"fmt"
	"math"
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/pvm"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/internal/work"
	"github.com/eigerco/jamtarget/pkg/log"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// FetchData is everything fetch may expose, ∅ fields are nil.
// Each invocation fills in the parts it has:
// is-authorized the package, refine the package and the item data,
// accumulate the operands and on-transfer the transfers.
type FetchData struct {
	WorkPackage      *work.Package               // p
	Entropy          *crypto.Hash                // n
	AuthorizerTrace  []byte                      // r
	ItemIndex        *uint32                     // i
	ImportedSegments [][]work.Segment            // ī
	Extrinsics       [][][]byte                  // x̄
	Operands         []state.AccumulationOperand // o
	Transfers        []service.DeferredTransfer  // t
}

// GasRemaining ΩG(ϱ, φ, ...)
func GasRemaining(gas pvm.Gas, regs pvm.Registers) (pvm.Gas, pvm.Registers, error) {
	gas -= BaseCost

	// Set the new ϱ' value into φ′7
	regs[pvm.R7] = uint64(gas)

	return gas, regs, nil
}

// Fetch ΩY(ϱ, φ, μ, p, n, r, i, ī, x̄, o, t, ...)
func Fetch(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, cfg chainspec.Config, data FetchData) (pvm.Gas, pvm.Registers, pvm.Memory, error) {
	gas -= BaseCost

	output := regs[pvm.R7]  // o
	offset := regs[pvm.R8]  // f
	length := regs[pvm.R9]  // l
	dataID := regs[pvm.R10] // φ10
	idx1 := regs[pvm.R11]   // φ11
	idx2 := regs[pvm.R12]   // φ12

	var (
		v   []byte
		err error
	)
	wp := data.WorkPackage

	switch dataID {
	case 0:
		v = ChainConstants(cfg)
	case 1:
		// if n ≠ ∅ ∧ φ10 = 1
		if data.Entropy != nil {
			v = data.Entropy[:]
		}
	case 2:
		// if r ≠ ∅ ∧ φ10 = 2
		v = data.AuthorizerTrace
	case 3:
		// if x̄ ≠ ∅ ∧ φ10 = 3 ∧ φ11 < |x̄| ∧ φ12 < |x̄[φ11]|
		if idx1 < uint64(len(data.Extrinsics)) && idx2 < uint64(len(data.Extrinsics[idx1])) {
			v = data.Extrinsics[idx1][idx2]
		}
	case 4:
		// if x̄ ≠ ∅ ∧ i ≠ ∅ ∧ φ10 = 4 ∧ φ11 < |x̄[i]|
		if data.ItemIndex != nil && uint64(*data.ItemIndex) < uint64(len(data.Extrinsics)) {
			own := data.Extrinsics[*data.ItemIndex]
			if idx1 < uint64(len(own)) {
				v = own[idx1]
			}
		}
	case 5:
		// if ī ≠ ∅ ∧ φ10 = 5 ∧ φ11 < |ī| ∧ φ12 < |ī[φ11]|
		if idx1 < uint64(len(data.ImportedSegments)) && idx2 < uint64(len(data.ImportedSegments[idx1])) {
			v = data.ImportedSegments[idx1][idx2]
		}
	case 6:
		// if ī ≠ ∅ ∧ i ≠ ∅ ∧ φ10 = 6 ∧ φ11 < |ī[i]|
		if data.ItemIndex != nil && uint64(*data.ItemIndex) < uint64(len(data.ImportedSegments)) {
			own := data.ImportedSegments[*data.ItemIndex]
			if idx1 < uint64(len(own)) {
				v = own[idx1]
			}
		}
	case 7:
		// E(p)
		if wp != nil {
			v, err = jam.Marshal(work.PackageCodec, *wp)
		}
	case 8:
		// E(p_u, ↕p_p)
		if wp != nil {
			v = slices.Concat(wp.AuthCodeHash[:], jam.SerializeUint64(uint64(len(wp.Parameterization))), wp.Parameterization)
		}
	case 9:
		// p_j
		if wp != nil {
			v = wp.AuthorizationToken
		}
	case 10:
		// E(p_x)
		if wp != nil {
			v, err = jam.Marshal(block.RefinementContextCodec, wp.Context)
		}
	case 11:
		// E(↕[S(w) | w <− p_w])
		if wp != nil {
			v = jam.SerializeUint64(uint64(len(wp.WorkItems)))
			for _, item := range wp.WorkItems {
				v = append(v, item.Summary()...)
			}
		}
	case 12:
		// S(p_w[φ11])
		if wp != nil && idx1 < uint64(len(wp.WorkItems)) {
			v = wp.WorkItems[idx1].Summary()
		}
	case 13:
		// p_w[φ11]_y
		if wp != nil && idx1 < uint64(len(wp.WorkItems)) {
			v = wp.WorkItems[idx1].Payload
		}
	case 14:
		// E(↕o)
		if data.Operands != nil {
			v, err = jam.Marshal(jam.Sequence(state.AccumulationOperandCodec), data.Operands)
		}
	case 15:
		// E(o[φ11])
		if idx1 < uint64(len(data.Operands)) {
			v, err = jam.Marshal(state.AccumulationOperandCodec, data.Operands[idx1])
		}
	case 16:
		// E(↕t)
		if data.Transfers != nil {
			v, err = jam.Marshal(jam.Sequence(service.NewDeferredTransferCodec(cfg.TransferMemoSize)), data.Transfers)
		}
	case 17:
		// E(t[φ11])
		if idx1 < uint64(len(data.Transfers)) {
			v, err = jam.Marshal(service.NewDeferredTransferCodec(cfg.TransferMemoSize), data.Transfers[idx1])
		}
	}
	if err != nil {
		return gas, regs, mem, pvm.ErrPanicf("fetch %d: %v", dataID, err)
	}

	if v == nil {
		return gas, withCode(regs, NONE), mem, nil
	}

	if err := writeFromOffset(mem, output, v, offset, length); err != nil {
		return gas, regs, mem, err
	}

	regs[pvm.R7] = uint64(len(v))
	return gas, regs, mem, nil
}

// Lookup ΩL(ϱ, φ, μ, s, s, d)
func Lookup(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, s service.ServiceAccount, serviceId block.ServiceId, serviceState service.ServiceState) (pvm.Gas, pvm.Registers, pvm.Memory, error) {
	gas -= BaseCost

	omega7 := regs[pvm.R7]

	// let a =
	//   s           if φ₇ ∈ { s, 2⁶⁴ − 1 }
	//   d[φ₇]       otherwise if φ₇ ∈ K(d)
	//   ∅           otherwise
	a, aId, serviceExists := s, serviceId, true
	if omega7 != math.MaxUint64 && omega7 != uint64(serviceId) {
		aId = block.ServiceId(omega7)
		a, serviceExists = lookupService(serviceState, omega7)
	}

	// let [h, o] = φ₈‥₊₂
	h, o := regs[pvm.R8], regs[pvm.R9]

	// let v = ∇ if N_h‥₊₃₂ ⊄ Vμ
	key, err := readHash(mem, h)
	if err != nil {
		return gas, regs, mem, err
	}

	// let v = ∅ otherwise if a = ∅ ∨ μ_h‥₊₃₂ ∉ K(a_p)
	if !serviceExists {
		return gas, withCode(regs, NONE), mem, nil
	}
	v, exists := a.GetPreimage(aId, key)
	if !exists {
		return gas, withCode(regs, NONE), mem, nil
	}

	// let f = min(φ₁₀, |v|), l = min(φ₁₁, |v| − f)
	if err := writeFromOffset(mem, o, v, regs[pvm.R10], regs[pvm.R11]); err != nil {
		return gas, regs, mem, err
	}

	regs[pvm.R7] = uint64(len(v))
	return gas, regs, mem, nil
}

// Read ΩR(ϱ, φ, μ, s, s, d)
func Read(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, s service.ServiceAccount, serviceId block.ServiceId, serviceState service.ServiceState) (pvm.Gas, pvm.Registers, pvm.Memory, error) {
	gas -= BaseCost

	omega7 := regs[pvm.R7]

	// let [ko, kz, o] = φ8..+3
	ko, kz, o := regs[pvm.R8], regs[pvm.R9], regs[pvm.R10]

	// k = μ_ko..+kz, ∇ if not readable
	keyData, err := readBytes(mem, ko, kz)
	if err != nil {
		return gas, regs, mem, err
	}

	// s* = s if φ7 = 2^64 − 1, φ7 otherwise
	// a = s if s* = s, d[s*] if s* ∈ K(d), ∅ otherwise
	a, ss := s, serviceId
	if omega7 != math.MaxUint64 && omega7 != uint64(serviceId) {
		var exists bool
		ss = block.ServiceId(omega7)
		if a, exists = lookupService(serviceState, omega7); !exists {
			return gas, withCode(regs, NONE), mem, nil
		}
	}

	v, exists := a.GetStorage(ss, keyData)
	if !exists {
		return gas, withCode(regs, NONE), mem, nil
	}

	if err = writeFromOffset(mem, o, v, regs[pvm.R11], regs[pvm.R12]); err != nil {
		return gas, regs, mem, err
	}

	regs[pvm.R7] = uint64(len(v))
	return gas, regs, mem, nil
}

// Write ΩW(ϱ, φ, μ, s, s)
func Write(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, s service.ServiceAccount, serviceId block.ServiceId, cfg chainspec.Config) (pvm.Gas, pvm.Registers, pvm.Memory, service.ServiceAccount, error) {
	gas -= BaseCost

	// let [ko, kz, vo, vz] = φ7..+4
	ko, kz, vo, vz := regs[pvm.R7], regs[pvm.R8], regs[pvm.R9], regs[pvm.R10]

	keyData, err := readBytes(mem, ko, kz)
	if err != nil {
		return gas, regs, mem, s, err
	}

	a := s.Clone()
	if vz == 0 {
		a.DeleteStorage(serviceId, keyData)
	} else {
		valueData, err := readBytes(mem, vo, vz)
		if err != nil {
			return gas, regs, mem, s, err
		}
		a.InsertStorage(serviceId, keyData, valueData)
	}

	// let l = |s_s[k]| if k ∈ K(s_s); NONE otherwise
	storageItemLength := uint64(NONE)
	if storageItem, ok := s.GetStorage(serviceId, keyData); ok {
		storageItemLength = uint64(len(storageItem))
	}

	// (▸, FULL, s) if a_t > a_b
	if a.ThresholdBalance(cfg) > a.Balance {
		return gas, withCode(regs, FULL), mem, s, nil
	}

	regs[pvm.R7] = storageItemLength
	return gas, regs, mem, a, nil
}

// Info ΩI(ϱ, φ, μ, s, d)
func Info(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, serviceId block.ServiceId, serviceState service.ServiceState, cfg chainspec.Config) (pvm.Gas, pvm.Registers, pvm.Memory, error) {
	gas -= BaseCost

	omega7 := regs[pvm.R7]
	o := regs[pvm.R8]

	// a = d[s] if φ7 = 2^64 − 1, d[φ7] otherwise
	account, exists := serviceState[serviceId]
	if omega7 != math.MaxUint64 {
		account, exists = lookupService(serviceState, omega7)
	}
	if !exists {
		return gas, withCode(regs, NONE), mem, nil
	}

	// E(a_c, E8(a_b, a_t, a_g, a_m, a_o), E4(a_i), E8(a_f), E4(a_r, a_a, a_p))
	v := slices.Concat(
		account.CodeHash[:],
		jam.EncodeUint64(account.Balance),
		jam.EncodeUint64(account.ThresholdBalance(cfg)),
		jam.EncodeUint64(account.GasLimitForAccumulator),
		jam.EncodeUint64(account.GasLimitOnTransfer),
		jam.EncodeUint64(account.FootprintSize),
		jam.EncodeUint32(account.FootprintItems),
		jam.EncodeUint64(account.GratisStorageOffset),
		jam.EncodeUint32(uint32(account.CreationTimeslot)),
		jam.EncodeUint32(uint32(account.MostRecentAccumulationTimeslot)),
		jam.EncodeUint32(uint32(account.ParentService)),
	)

	if err := writeFromOffset(mem, o, v, regs[pvm.R9], regs[pvm.R10]); err != nil {
		return gas, regs, mem, err
	}

	regs[pvm.R7] = uint64(len(v))
	return gas, regs, mem, nil
}

// Log a host call for passing a debugging message from the service or
// authorizer to the node operator (JIP-1). Unreadable memory is logged, not
// a panic.
func Log(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, core *uint16, serviceId *block.ServiceId) (pvm.Gas, pvm.Registers, pvm.Memory, error) {
	gas -= BaseCost

	fullMsg := &bytes.Buffer{}

	switch regs[pvm.R7] {
	case 0:
		fullMsg.WriteString("FATAL")
	case 1:
		fullMsg.WriteString("WARNING")
	case 2:
		fullMsg.WriteString("INFO")
	case 3:
		fullMsg.WriteString("HELP")
	case 4:
		fullMsg.WriteString("PEDANT")
	default:
		fullMsg.WriteString("UNKNOWN")
	}

	if core != nil {
		_, _ = fmt.Fprintf(fullMsg, "@%d", *core)
	}
	if serviceId != nil {
		_, _ = fmt.Fprintf(fullMsg, "#%d", *serviceId)
	}

	to, tz, xo, xz := regs[pvm.R8], regs[pvm.R9], regs[pvm.R10], regs[pvm.R11]

	if to != 0 && tz != 0 {
		target, err := readBytes(mem, to, tz)
		if err != nil {
			log.VM.Error().Msgf("unable to access memory for target: address %d length %d", to, tz)
		}
		_, _ = fmt.Fprintf(fullMsg, " %s", target)
	}

	msg, err := readBytes(mem, xo, xz)
	if err != nil {
		log.VM.Error().Msgf("unable to access memory for message: address %d length %d", xo, xz)
	}
	_, _ = fmt.Fprintf(fullMsg, " %s", msg)

	log.VM.Info().Str("msg", fullMsg.String()).Msg("Service log")
	return gas, withCode(regs, WHAT), mem, nil
}

// ChainConstants c = E(
//
//	E8(B_I), E8(B_L), E8(B_S), E2(C), E4(D), E4(E), E8(G_A),
//	E8(G_I), E8(G_R), E8(G_T), E2(H), E2(I), E2(J), E2(K), E4(L), E2(N), E2(O),
//	E2(P), E2(Q), E2(R), E2(T), E2(U), E2(V), E4(W_A),
//	E4(W_B), E4(W_C), E4(W_E), E4(W_M), E4(W_P),
//	E4(W_R), E4(W_T), E4(W_X), E4(Y)
//
// )
func ChainConstants(cfg chainspec.Config) []byte {
	u16 := func(v uint64) []byte { return jam.SerializeTrivialNatural(v, 2) }
	u32 := func(v uint64) []byte { return jam.SerializeTrivialNatural(v, 4) }
	return slices.Concat(
		jam.EncodeUint64(cfg.MinimumBalancePerItem),
		jam.EncodeUint64(cfg.MinimumBalancePerOctet),
		jam.EncodeUint64(cfg.BasicMinimumBalance),
		u16(uint64(cfg.NumberOfCores)),
		u32(uint64(cfg.PreimageExpungePeriod)),
		u32(uint64(cfg.EpochLength)),
		jam.EncodeUint64(cfg.MaxAccumulationGas),
		jam.EncodeUint64(cfg.MaxIsAuthorizedGas),
		jam.EncodeUint64(cfg.MaxRefineGas),
		jam.EncodeUint64(cfg.TotalAccumulationGas),
		u16(uint64(cfg.MaxRecentBlocks)),
		u16(uint64(cfg.MaxWorkItems)),
		u16(uint64(cfg.MaxDependencies)),
		u16(uint64(cfg.MaxTicketsPerExtrinsic)),
		u32(uint64(cfg.MaxLookupAnchorAge)),
		u16(uint64(cfg.MaxTicketAttempts)),
		u16(uint64(cfg.MaxAuthorizersPerCore)),
		u16(uint64(cfg.SlotPeriodSeconds)),
		u16(uint64(cfg.AuthorizerQueueSize)),
		u16(uint64(cfg.ValidatorRotationPeriod)),
		u16(uint64(cfg.MaxExtrinsics)),
		u16(uint64(cfg.WorkReportTimeout)),
		u16(uint64(cfg.NumberOfValidators)),
		u32(uint64(cfg.MaxIsAuthorizedCodeSize)),
		u32(uint64(cfg.MaxWorkPackageSize)),
		u32(uint64(cfg.MaxServiceCodeSize)),
		u32(uint64(cfg.ErasureCodingPieceSize)),
		u32(uint64(cfg.MaxImports)),
		u32(uint64(cfg.ErasureCodingPiecesPerSeg)),
		u32(uint64(cfg.MaxWorkReportOutputSize)),
		u32(uint64(cfg.TransferMemoSize)),
		u32(uint64(cfg.MaxExports)),
		u32(uint64(cfg.TicketSubmissionEnd)),
	)
}
