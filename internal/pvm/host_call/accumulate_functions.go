package host_call

import (
	"bytes"
	"math"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/pvm"
	"github.com/eigerco/jamtarget/internal/safemath"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// Bless ΩB(ϱ, φ, μ, (x, y))
func Bless(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair, cfg chainspec.Config) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= BaseCost

	// let [m, a, v, o, n] = φ7...12
	managerServiceId, assignAddr, designateServiceId, addr, servicesNr := regs[pvm.R7], regs[pvm.R8], regs[pvm.R9], regs[pvm.R10], regs[pvm.R11]

	// let a = E4^-1(μ_a..+4C) if N_a..+4C ⊂ V_μ otherwise ∇
	assignBytes, err := readBytes(mem, assignAddr, 4*uint64(cfg.NumberOfCores))
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}
	assigners := make([]block.ServiceId, cfg.NumberOfCores)
	for i := range assigners {
		assigners[i] = jam.DeserializeTrivialNatural[block.ServiceId](assignBytes[4*i : 4*i+4])
	}

	// let z = {(s ↦ g) where E4(s) ⌢ E8(g) = μ_o+12i..+12 | i ∈ N_n} if N_o..+12n ⊂ V_μ otherwise ∇
	size, ok := safemath.Mul(servicesNr, 12)
	if !ok {
		return gas, regs, mem, ctxPair, pvm.ErrPanicf("bless: always-accumulate list too long")
	}
	entries, err := readBytes(mem, addr, size)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}
	alwaysAccumulate := make(map[block.ServiceId]uint64)
	for i := uint64(0); i < servicesNr; i++ {
		entry := entries[12*i : 12*i+12]
		alwaysAccumulate[jam.DeserializeTrivialNatural[block.ServiceId](entry[:4])] = jam.DeserializeTrivialNatural[uint64](entry[4:])
	}

	// (▸, WHO) if (m, v) ∉ N_S^2
	if !isServiceId(managerServiceId) || !isServiceId(designateServiceId) {
		return gas, withCode(regs, WHO), mem, ctxPair, nil
	}

	accState := &ctxPair.RegularCtx.AccumulationState
	accState.ManagerServiceId = block.ServiceId(managerServiceId)
	accState.AssignedServiceIds = assigners
	accState.DesignateServiceId = block.ServiceId(designateServiceId)
	accState.AmountOfGasPerServiceId = alwaysAccumulate
	return gas, withCode(regs, OK), mem, ctxPair, nil
}

// Assign ΩA(ϱ, φ, μ, (x, y))
func Assign(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair, cfg chainspec.Config) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= BaseCost

	// let [c, o, a] = φ7..10
	core, addr, newAssigner := regs[pvm.R7], regs[pvm.R8], regs[pvm.R9]

	// let q = [μ_o+32i..+32 | i <− N_Q] if N_o..+32Q ⊂ V_μ otherwise ∇
	queueBytes, err := readBytes(mem, addr, crypto.HashSize*uint64(cfg.AuthorizerQueueSize))
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}

	if core >= uint64(cfg.NumberOfCores) {
		return gas, withCode(regs, CORE), mem, ctxPair, nil
	}

	accState := &ctxPair.RegularCtx.AccumulationState
	// (▸, HUH) if x_s ≠ (x_u)_a[c]
	if ctxPair.RegularCtx.ServiceId != accState.AssignedServiceIds[core] {
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}
	if !isServiceId(newAssigner) {
		return gas, withCode(regs, WHO), mem, ctxPair, nil
	}

	queue := make([]crypto.Hash, cfg.AuthorizerQueueSize)
	for i := range queue {
		copy(queue[i][:], queueBytes[crypto.HashSize*i:])
	}
	accState.PendingAuthorizersQueues[core] = queue
	accState.AssignedServiceIds[core] = block.ServiceId(newAssigner)
	return gas, withCode(regs, OK), mem, ctxPair, nil
}

// Designate ΩD(ϱ, φ, μ, (x, y))
func Designate(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair, cfg chainspec.Config) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= BaseCost

	const validatorKeySize = crypto.BandersnatchSize + crypto.Ed25519PublicSize + crypto.BLSSize + crypto.MetadataSize

	// let v = [μ_o+336i..+336 | i <− N_V] if N_o..+336V ⊂ V_μ otherwise ∇
	keyBytes, err := readBytes(mem, regs[pvm.R7], validatorKeySize*uint64(cfg.NumberOfValidators))
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}

	// (▸, HUH) if x_s ≠ (x_u)_v
	if ctxPair.RegularCtx.ServiceId != ctxPair.RegularCtx.AccumulationState.DesignateServiceId {
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}

	keys, err := jam.Unmarshal(crypto.ValidatorsCodec(int(cfg.NumberOfValidators)), keyBytes)
	if err != nil {
		return gas, regs, mem, ctxPair, pvm.ErrPanicf("designate: %v", err)
	}
	ctxPair.RegularCtx.AccumulationState.ValidatorKeys = keys
	return gas, withCode(regs, OK), mem, ctxPair, nil
}

// Checkpoint ΩC(ϱ, φ, μ, (x, y))
func Checkpoint(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= BaseCost

	ctxPair.ExceptionalCtx = ctxPair.RegularCtx.Clone()

	// Set the new ϱ' value into φ′7
	regs[pvm.R7] = uint64(gas)

	return gas, regs, mem, ctxPair, nil
}

// New ΩN(ϱ, φ, μ, (x, y), t)
func New(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair, timeslot jamtime.Timeslot, cfg chainspec.Config) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= BaseCost

	// let [o, l, g, m, f] = φ7..12
	addr, preimageLength, gasLimitAccumulator, gasLimitTransfer, gratisStorageOffset := regs[pvm.R7], regs[pvm.R8], regs[pvm.R9], regs[pvm.R10], regs[pvm.R11]

	// let c = μ_o..+32 if N_o..+32 ⊂ V_μ ∧ l ∈ N_2^32 otherwise ∇
	codeHash, err := readHash(mem, addr)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}
	if preimageLength > math.MaxUint32 {
		return gas, regs, mem, ctxPair, pvm.ErrPanicf("new: preimage length %d exceeds 2^32", preimageLength)
	}

	ctx := &ctxPair.RegularCtx
	// (▸, HUH) if f ≠ 0 ∧ x_s ≠ (x_u)_m
	if gratisStorageOffset != 0 && ctx.ServiceId != ctx.AccumulationState.ManagerServiceId {
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}

	// let a = (c, s: {}, l: {(c, l) ↦ []}, b: a_t, g, m, p: {}, r: t, f, a: 0, p: x_s)
	account := service.ServiceAccount{
		CodeHash:               codeHash,
		GasLimitForAccumulator: gasLimitAccumulator,
		GasLimitOnTransfer:     gasLimitTransfer,
		GratisStorageOffset:    gratisStorageOffset,
		CreationTimeslot:       timeslot,
		ParentService:          ctx.ServiceId,
	}
	account.SetPreimageMeta(ctx.NewServiceId, codeHash, service.PreimageLength(preimageLength), service.PreimageHistoricalTimeslots{})
	account.Balance = account.ThresholdBalance(cfg)

	// let s = x_s except s_b = (x_s)_b − a_t
	// (▸, CASH) if s_b < (x_s)_t
	xs := ctx.ServiceAccount()
	remaining, ok := safemath.Sub(xs.Balance, account.Balance)
	if !ok || remaining < xs.ThresholdBalance(cfg) {
		return gas, withCode(regs, CASH), mem, ctxPair, nil
	}
	xs.Balance = remaining

	// (▸, x_i, check(bump(x_i)), (x_u)_d ∪ {x_i ↦ a, x_s ↦ s})
	newId := ctx.NewServiceId
	ctx.AccumulationState.ServiceState[newId] = account
	ctx.setServiceAccount(xs)
	ctx.NewServiceId = service.BumpIndex(newId, ctx.AccumulationState.ServiceState)

	regs[pvm.R7] = uint64(newId)
	return gas, regs, mem, ctxPair, nil
}

// Upgrade ΩU(ϱ, φ, μ, (x, y))
func Upgrade(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= BaseCost

	// let [o, g, m] = φ7...10
	addr, gasLimitAccumulator, gasLimitTransfer := regs[pvm.R7], regs[pvm.R8], regs[pvm.R9]

	// c = μ_o..+32 if N_o..+32 ⊂ V_μ otherwise ∇
	codeHash, err := readHash(mem, addr)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}

	// ((x′_s)_c, (x′_s)_g, (x′_s)_m) = (c, g, m)
	currentService := ctxPair.RegularCtx.ServiceAccount()
	currentService.CodeHash = codeHash
	currentService.GasLimitForAccumulator = gasLimitAccumulator
	currentService.GasLimitOnTransfer = gasLimitTransfer
	ctxPair.RegularCtx.setServiceAccount(currentService)
	return gas, withCode(regs, OK), mem, ctxPair, nil
}

// Transfer ΩT(ϱ, φ, μ, (x, y)), the gas limit of the transfer is charged on top of the base cost.
func Transfer(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair, cfg chainspec.Config) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= Cost(TransferID, regs)

	// let [d, a, l, o] = φ7..11
	receiverId, amount, gasLimit, o := regs[pvm.R7], regs[pvm.R8], regs[pvm.R9], regs[pvm.R10]

	// m = μ_o..+W_T if N_o..+W_T ⊂ V_μ otherwise ∇
	memo, err := readBytes(mem, o, uint64(cfg.TransferMemoSize))
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}

	// (▸, WHO) if d ∉ K(d)
	receiverService, ok := lookupService(ctxPair.RegularCtx.AccumulationState.ServiceState, receiverId)
	if !ok {
		return gas, withCode(regs, WHO), mem, ctxPair, nil
	}

	// (▸, LOW) if l < d[d]_m
	if gasLimit < receiverService.GasLimitOnTransfer {
		return gas, withCode(regs, LOW), mem, ctxPair, nil
	}

	// let b = (x_s)_b − a
	// (▸, CASH) if b < (x_s)_t
	account := ctxPair.RegularCtx.ServiceAccount()
	b, ok := safemath.Sub(account.Balance, amount)
	if !ok || b < account.ThresholdBalance(cfg) {
		return gas, withCode(regs, CASH), mem, ctxPair, nil
	}

	// t = (s, d, a, m, g)
	ctxPair.RegularCtx.DeferredTransfers = append(ctxPair.RegularCtx.DeferredTransfers, service.DeferredTransfer{
		SenderServiceIndex:   ctxPair.RegularCtx.ServiceId,
		ReceiverServiceIndex: block.ServiceId(receiverId),
		Balance:              amount,
		Memo:                 memo,
		GasLimit:             gasLimit,
	})
	account.Balance = b
	ctxPair.RegularCtx.setServiceAccount(account)
	return gas, withCode(regs, OK), mem, ctxPair, nil
}

// Eject ΩJ(ϱ, φ, μ, (x, y), t)
func Eject(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair, timeslot jamtime.Timeslot, cfg chainspec.Config) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= BaseCost

	// let [d, o] = φ7,8
	d, o := regs[pvm.R7], regs[pvm.R8]

	// let h = μ_o..+32 if N_o..+32 ⊂ V_μ otherwise ∇
	h, err := readHash(mem, o)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}

	ctx := &ctxPair.RegularCtx
	// let d = (x_u)_d[d] if d ≠ x_s ∧ d ∈ K((x_u)_d)
	// (▸, WHO) if d = ∇ ∨ d_c ≠ E32(x_s)
	ejected, ok := lookupService(ctx.AccumulationState.ServiceState, d)
	if !ok || d == uint64(ctx.ServiceId) {
		return gas, withCode(regs, WHO), mem, ctxPair, nil
	}
	var ejector crypto.Hash
	copy(ejector[:], jam.EncodeUint32(uint32(ctx.ServiceId)))
	if ejected.CodeHash != ejector {
		return gas, withCode(regs, WHO), mem, ctxPair, nil
	}

	// let l = max(81, d_o) − 81
	length := max(81, ejected.FootprintSize) - 81

	// (▸, HUH) if d_i ≠ 2 ∨ (h, l) ∉ d_l
	if ejected.FootprintItems != 2 || length > math.MaxUint32 {
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}
	meta, ok := ejected.GetPreimageMeta(block.ServiceId(d), h, service.PreimageLength(length))
	if !ok {
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}

	// (▸, OK) if d_l[h, l] = [x, y], y < t − D
	if len(meta) != 2 || uint64(meta[1])+uint64(cfg.PreimageExpungePeriod) >= uint64(timeslot) {
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}

	// s = x_s except s_b = (x_s)_b + d_b
	xs := ctx.ServiceAccount()
	balance, ok := safemath.Add(xs.Balance, ejected.Balance)
	if !ok {
		return gas, regs, mem, ctxPair, pvm.ErrPanicf("eject: balance overflow")
	}
	xs.Balance = balance
	ctx.setServiceAccount(xs)
	delete(ctx.AccumulationState.ServiceState, block.ServiceId(d))
	return gas, withCode(regs, OK), mem, ctxPair, nil
}

// Query ΩQ(ϱ, φ, μ, (x, y))
func Query(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= BaseCost

	// let [o, z] = φ7,8
	addr, preimageLength := regs[pvm.R7], regs[pvm.R8]

	// let h = μ_o..+32 if N_o..+32 ⊂ V_μ otherwise ∇
	h, err := readHash(mem, addr)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}

	// let a = (x_s)_l[h, z] if (h, z) ∈ K((x_s)_l) otherwise ∅
	var (
		meta service.PreimageHistoricalTimeslots
		ok   bool
	)
	if preimageLength <= math.MaxUint32 {
		meta, ok = ctxPair.RegularCtx.ServiceAccount().GetPreimageMeta(ctxPair.RegularCtx.ServiceId, h, service.PreimageLength(preimageLength))
	}
	if !ok {
		regs[pvm.R8] = 0
		return gas, withCode(regs, NONE), mem, ctxPair, nil
	}

	const shift = 1 << 32
	switch len(meta) {
	case 0:
		// (0, 0) if a = []
		regs[pvm.R7], regs[pvm.R8] = 0, 0
	case 1:
		// (1 + 2^32·x, 0) if a = [x]
		regs[pvm.R7], regs[pvm.R8] = 1+shift*uint64(meta[0]), 0
	case 2:
		// (2 + 2^32·x, y) if a = [x, y]
		regs[pvm.R7], regs[pvm.R8] = 2+shift*uint64(meta[0]), uint64(meta[1])
	case 3:
		// (3 + 2^32·x, y + 2^32·z) if a = [x, y, z]
		regs[pvm.R7], regs[pvm.R8] = 3+shift*uint64(meta[0]), uint64(meta[1])+shift*uint64(meta[2])
	}
	return gas, regs, mem, ctxPair, nil
}

// Solicit ΩS(ϱ, φ, μ, (x, y), t)
func Solicit(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair, timeslot jamtime.Timeslot, cfg chainspec.Config) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= BaseCost

	// let [o, z] = φ7,8
	addr, preimageLength := regs[pvm.R7], regs[pvm.R8]

	// let h = μ_o..+32 if N_o..+32 ⊂ V_μ otherwise ∇
	h, err := readHash(mem, addr)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}
	if preimageLength > math.MaxUint32 {
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}

	serviceId := ctxPair.RegularCtx.ServiceId
	length := service.PreimageLength(preimageLength)
	a := ctxPair.RegularCtx.ServiceAccount().Clone()
	meta, ok := a.GetPreimageMeta(serviceId, h, length)
	switch {
	case !ok:
		// a_l[(h, z)] = [] if h ∉ K((x_s)_l)
		a.SetPreimageMeta(serviceId, h, length, service.PreimageHistoricalTimeslots{})
	case len(meta) == 2:
		// a_l[(h, z)] = (x_s)_l[(h, z)] ⌢ t if (x_s)_l[(h, z)] = 2
		a.SetPreimageMeta(serviceId, h, length, append(meta, timeslot))
	default:
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}

	// (▸, FULL) if a_b < a_t
	if a.Balance < a.ThresholdBalance(cfg) {
		return gas, withCode(regs, FULL), mem, ctxPair, nil
	}

	ctxPair.RegularCtx.setServiceAccount(a)
	return gas, withCode(regs, OK), mem, ctxPair, nil
}

// Forget ΩF(ϱ, φ, μ, (x, y), t)
func Forget(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair, timeslot jamtime.Timeslot, cfg chainspec.Config) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= BaseCost

	// let [o, z] = φ0,1
	addr, preimageLength := regs[pvm.R7], regs[pvm.R8]

	// let h = μ_o..+32 if N_o..+32 ⊂ V_μ otherwise ∇
	h, err := readHash(mem, addr)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}
	if preimageLength > math.MaxUint32 {
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}

	serviceId := ctxPair.RegularCtx.ServiceId
	length := service.PreimageLength(preimageLength)
	a := ctxPair.RegularCtx.ServiceAccount().Clone()
	meta, ok := a.GetPreimageMeta(serviceId, h, length)
	if !ok {
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}

	// expired is y < t − D
	expired := func(y jamtime.Timeslot) bool {
		return uint64(y)+uint64(cfg.PreimageExpungePeriod) < uint64(timeslot)
	}

	switch {
	case len(meta) == 0 || len(meta) == 2 && expired(meta[1]):
		// K(a_l) = K((x_s)_l) ∖ {(h, z)}, K(a_p) = K((x_s)_p) ∖ {h}
		a.DeletePreimageMeta(serviceId, h, length)
		a.DeletePreimage(serviceId, h)
	case len(meta) == 1:
		// a_l[h, z] = [x, t] if (x_s)_l[h, z] = [x]
		a.SetPreimageMeta(serviceId, h, length, service.PreimageHistoricalTimeslots{meta[0], timeslot})
	case len(meta) == 3 && expired(meta[1]):
		// a_l[h, z] = [w, t] if (x_s)_l[h, z] = [x, y, w] ∧ y < t − D
		a.SetPreimageMeta(serviceId, h, length, service.PreimageHistoricalTimeslots{meta[2], timeslot})
	default:
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}

	ctxPair.RegularCtx.setServiceAccount(a)
	return gas, withCode(regs, OK), mem, ctxPair, nil
}

// Yield ΩY(ϱ, φ, μ, (x, y))
func Yield(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= BaseCost

	// let h = μ_o..+32 if N_o..+32 ⊂ V_μ otherwise ∇
	h, err := readHash(mem, regs[pvm.R7])
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}

	hash := crypto.Hash(h)
	ctxPair.RegularCtx.AccumulationHash = &hash
	return gas, withCode(regs, OK), mem, ctxPair, nil
}

// Provide ΩP(ϱ, φ, μ, (x, y), s)
func Provide(gas pvm.Gas, regs pvm.Registers, mem pvm.Memory, ctxPair AccumulateContextPair) (pvm.Gas, pvm.Registers, pvm.Memory, AccumulateContextPair, error) {
	gas -= BaseCost

	// let [o, z] = φ8,9
	omega7, o, z := regs[pvm.R7], regs[pvm.R8], regs[pvm.R9]

	// let i = μ_o..+z if N_o..+z ⊂ V_μ otherwise ∇
	preimage, err := readBytes(mem, o, z)
	if err != nil {
		return gas, regs, mem, ctxPair, err
	}

	// s* = x_s if φ7 = 2^64 − 1, φ7 otherwise
	target := ctxPair.RegularCtx.ServiceId
	if omega7 != math.MaxUint64 {
		target = block.ServiceId(omega7)
	}

	// let a = d[s*] if s* ∈ K(d) otherwise ∅
	a, ok := ctxPair.RegularCtx.ServiceAccount(), true
	if omega7 != math.MaxUint64 {
		a, ok = lookupService(ctxPair.RegularCtx.AccumulationState.ServiceState, omega7)
	}
	if !ok {
		return gas, withCode(regs, WHO), mem, ctxPair, nil
	}

	// (▸, HUH) if a_l[(H(i), z)] ≠ []
	meta, ok := a.GetPreimageMeta(target, crypto.HashData(preimage), service.PreimageLength(z))
	if !ok || len(meta) != 0 {
		return gas, withCode(regs, HUH), mem, ctxPair, nil
	}

	// (▸, HUH) if (s*, i) ∈ x_p
	for _, p := range ctxPair.RegularCtx.ProvidedPreimages {
		if p.ServiceIndex == target && bytes.Equal(p.Data, preimage) {
			return gas, withCode(regs, HUH), mem, ctxPair, nil
		}
	}

	ctxPair.RegularCtx.ProvidedPreimages = append(ctxPair.RegularCtx.ProvidedPreimages, block.Preimage{
		ServiceIndex: target,
		Data:         preimage,
	})
	return gas, withCode(regs, OK), mem, ctxPair, nil
}
