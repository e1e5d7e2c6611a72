package statetransition

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/invocation"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/safemath"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/pkg/log"
)

// ServiceHashPairSet B ≡ {(N_S, H)} (eq. 12.15 v0.6.7)
type ServiceHashPairSet map[state.ServiceHashPair]struct{}

// ServiceGasPairs U ≡ ⟦(N_S, N_G)⟧ (eq. 12.15 v0.6.7)
type ServiceGasPairs []ServiceGasPair

type ServiceGasPair struct {
	ServiceId block.ServiceId
	Gas       uint64
}

// AccumulationStats S ∈ ⟨N_S → (N_G, N)⟩ (eq. 12.25 v0.6.7)
type AccumulationStats map[block.ServiceId]AccumulationStatEntry

type AccumulationStatEntry struct {
	AccumulateGasUsed uint64
	AccumulateCount   uint32
}

// AccumulationResult is everything the accumulation of the available reports
// produces (eq. 4.16 v0.6.7):
//
//	(ϑ', ξ', δ†, χ', ι', φ', θ', S, t) ≺ (R, ϑ, ξ, δ, χ, ι, φ, τ, τ')
type AccumulationResult struct {
	AccumulationQueue        state.AccumulationQueue        // ϑ'
	AccumulationHistory      state.AccumulationHistory      // ξ'
	ServiceState             service.ServiceState           // δ†
	PrivilegedServices       service.PrivilegedServices     // χ'
	QueuedValidators         safrole.ValidatorsData         // ι'
	PendingAuthorizersQueues state.PendingAuthorizersQueues // φ'
	AccumulationOutputLog    state.AccumulationOutputLog    // θ'
	Stats                    AccumulationStats              // S
	DeferredTransfers        []service.DeferredTransfer     // t
}

// Accumulator runs the accumulation functions Δ+, Δ* and Δ1 for one block.
type Accumulator struct {
	pvm         *invocation.Accumulator
	newTimeslot jamtime.Timeslot
}

func NewAccumulator(cfg chainspec.Config, newEntropy crypto.Hash, newTimeslot jamtime.Timeslot) *Accumulator {
	return &Accumulator{
		pvm:         invocation.NewAccumulator(cfg, newEntropy, newTimeslot),
		newTimeslot: newTimeslot,
	}
}

// CalculateWorkReportsAndAccumulate accumulates the newly available reports
// together with the queued ones whose dependencies are now met, and rolls the
// accumulation queue and history forward (section 12.2 v0.6.7). newEntropy
// is η'_0.
func CalculateWorkReportsAndAccumulate(
	cfg chainspec.Config,
	priorState state.State,
	header block.Header,
	newEntropy crypto.Hash,
	workReports []block.WorkReport,
) (AccumulationResult, error) {
	epochLength := int(cfg.EpochLength)
	newTimeslot := header.TimeSlotIndex

	// R! ≡ [r | r <- R, |(r_x)_p| = 0 ∧ r_l = {}] (eq. 12.4 v0.6.7)
	var immediatelyAccWorkReports []block.WorkReport
	var workReportWithDeps []state.WorkReportWithUnAccumulatedDependencies
	for _, workReport := range workReports {
		if len(workReport.RefinementContext.PrerequisiteWorkPackage) == 0 && len(workReport.SegmentRootLookup) == 0 {
			immediatelyAccWorkReports = append(immediatelyAccWorkReports, workReport)
			continue
		}
		workReportWithDeps = append(workReportWithDeps, getWorkReportDependencies(workReport))
	}

	// R_Q ≡ E([D(r) | r <- R, |(r_x)_p| > 0 ∨ r_l ≠ {}], ⋃ξ) (eq. 12.5 v0.6.7)
	queuedWorkReports := updateQueue(workReportWithDeps, flattenAccumulationHistory(priorState.AccumulationHistory))

	// m = H_t mod E (eq. 12.10 v0.6.7)
	m := int(newTimeslot.Phase(cfg.EpochLength))

	// q = E(⋃(ϑ_m...) ⌢ ⋃(ϑ...m) ⌢ R_Q, P(R!)) (eq. 12.12 v0.6.7)
	priorQueue := padQueue(priorState.AccumulationQueue, epochLength)
	pending := updateQueue(
		slices.Concat(
			slices.Concat(priorQueue[m:]...),
			slices.Concat(priorQueue[:m]...),
			queuedWorkReports,
		),
		getWorkPackageHashes(immediatelyAccWorkReports),
	)
	// R* ≡ R! ⌢ Q(q) (eq. 12.11 v0.6.7)
	accumulatableWorkReports := slices.Concat(immediatelyAccWorkReports, accumulationPriority(pending))

	// g = max(G_T, G_A·C + Σ_{x∈V(χ_z)} x) (eq. 12.21 v0.6.7)
	gasLimit := max(
		cfg.TotalAccumulationGas,
		safemath.SaturatingAdd(
			cfg.MaxAccumulationGas*uint64(cfg.NumberOfCores),
			priorState.PrivilegedServices.TotalAlwaysAccumulateGas(),
		),
	)

	// (n, o', t, b, u) ≡ Δ+(g, R*, (χ, δ, ι, φ), χ_z) (eq. 12.22 v0.6.7)
	accumulator := NewAccumulator(cfg, newEntropy, newTimeslot)
	initState := state.AccumulationState{
		ServiceState:             priorState.Services,
		ValidatorKeys:            priorState.ValidatorState.QueuedValidators,
		PendingAuthorizersQueues: priorState.PendingAuthorizersQueues,
		ManagerServiceId:         priorState.PrivilegedServices.ManagerServiceId,
		AssignedServiceIds:       priorState.PrivilegedServices.AssignedServiceIds,
		DesignateServiceId:       priorState.PrivilegedServices.DesignateServiceId,
		AmountOfGasPerServiceId:  priorState.PrivilegedServices.AmountOfGasPerServiceId,
	}
	accumulatedCount, newAccState, transfers, hashPairs, gasPairs, err := accumulator.SequentialDelta(
		gasLimit,
		accumulatableWorkReports,
		initState,
		priorState.PrivilegedServices.AmountOfGasPerServiceId,
	)
	if err != nil {
		return AccumulationResult{}, err
	}

	// θ' ≡ [(s, h) ∈ b] ordered by service, then hash (eq. 12.23 v0.6.7)
	outputLog := make(state.AccumulationOutputLog, 0, len(hashPairs))
	for pair := range hashPairs {
		outputLog = append(outputLog, pair)
	}
	slices.SortFunc(outputLog, func(a, b state.ServiceHashPair) int {
		if c := cmp.Compare(a.ServiceId, b.ServiceId); c != 0 {
			return c
		}
		return crypto.CompareHash(a.Hash, b.Hash)
	})

	stats := calculateAccumulationStats(accumulatableWorkReports[:accumulatedCount], gasPairs)

	// ξ'_{E-1} = P(R*...n), ∀i ∈ N_{E-1}: ξ'_i ≡ ξ_{i+1} (eq. 12.26-12.27 v0.6.7)
	newAccumulationHistory := make(state.AccumulationHistory, epochLength)
	if len(priorState.AccumulationHistory) > 0 {
		copy(newAccumulationHistory, priorState.AccumulationHistory[1:])
	}
	for i := range newAccumulationHistory {
		if newAccumulationHistory[i] == nil {
			newAccumulationHistory[i] = map[crypto.Hash]struct{}{}
		}
	}
	lastAccumulation := getWorkPackageHashes(accumulatableWorkReports[:accumulatedCount])
	newAccumulationHistory[epochLength-1] = lastAccumulation

	// ∀i ∈ N_E: ϑ'↺m-i ≡ E(R_Q, ξ'_{E-1})   if i = 0
	//                    []                 if 1 ≤ i < τ' - τ
	//                    E(ϑ↺m-i, ξ'_{E-1}) if i ≥ τ' - τ  (eq. 12.28 v0.6.7)
	newAccumulationQueue := make(state.AccumulationQueue, epochLength)
	elapsed := int(newTimeslot - priorState.TimeslotIndex)
	for i := range epochLength {
		index := mod(m-i, epochLength)
		switch {
		case i == 0:
			newAccumulationQueue[index] = updateQueue(queuedWorkReports, lastAccumulation)
		case i < elapsed:
			newAccumulationQueue[index] = nil
		default:
			newAccumulationQueue[index] = updateQueue(priorQueue[index], lastAccumulation)
		}
	}

	return AccumulationResult{
		AccumulationQueue:        newAccumulationQueue,
		AccumulationHistory:      newAccumulationHistory,
		ServiceState:             newAccState.ServiceState,
		PrivilegedServices:       newAccState.Privileged().Clone(),
		QueuedValidators:         slices.Clone(newAccState.ValidatorKeys),
		PendingAuthorizersQueues: newAccState.PendingAuthorizersQueues.Clone(),
		AccumulationOutputLog:    outputLog,
		Stats:                    stats,
		DeferredTransfers:        transfers,
	}, nil
}

// calculateAccumulationStats implements equations 12.24-12.25 v0.6.7:
//
//	S ≡ {(s ↦ (G(s), N(s))) | G(s) + N(s) ≠ 0}
//	G(s) ≡ Σ_{(s,u)∈u} u
//	N(s) ≡ |[d | r <- R*...n, d <- r_r, d_s = s]|
func calculateAccumulationStats(accumulated []block.WorkReport, gasPairs ServiceGasPairs) AccumulationStats {
	stats := AccumulationStats{}
	for _, gp := range gasPairs {
		entry := stats[gp.ServiceId]
		entry.AccumulateGasUsed = safemath.SaturatingAdd(entry.AccumulateGasUsed, gp.Gas)
		stats[gp.ServiceId] = entry
	}
	for _, report := range accumulated {
		for _, result := range report.WorkResults {
			entry := stats[result.ServiceId]
			entry.AccumulateCount++
			stats[result.ServiceId] = entry
		}
	}
	maps.DeleteFunc(stats, func(_ block.ServiceId, e AccumulationStatEntry) bool {
		return e.AccumulateGasUsed == 0 && e.AccumulateCount == 0
	})
	return stats
}

// SequentialDelta implements Δ+(N_G, ⟦R⟧, S, ⟨N_S → N_G⟩) → (N, S, ⟦X⟧, B, U)
// (eq. 12.16 v0.6.7)
func (a *Accumulator) SequentialDelta(
	gasLimit uint64,
	workReports []block.WorkReport,
	ctx state.AccumulationState,
	alwaysAccumulate map[block.ServiceId]uint64,
) (
	uint32,
	state.AccumulationState,
	[]service.DeferredTransfer,
	ServiceHashPairSet,
	ServiceGasPairs,
	error,
) {
	// i = max(N_{|r|+1}) : Σ_{r∈r...i} Σ_{d∈r_r} d_g ≤ g
	maxReports := 0
	var totalGas uint64
	for i, report := range workReports {
		gasSum, ok := safemath.Add(totalGas, report.TotalAccumulateGas())
		if !ok || gasSum > gasLimit {
			break
		}
		totalGas = gasSum
		maxReports = i + 1
	}

	// n = i + |f|
	if maxReports+len(alwaysAccumulate) == 0 {
		return 0, ctx, nil, ServiceHashPairSet{}, ServiceGasPairs{}, nil
	}

	// (o*, t*, b*, u*) ≡ Δ*(o, r...i, f)
	newCtx, transfers, hashPairs, gasPairs, err := a.ParallelDelta(ctx, workReports[:maxReports], alwaysAccumulate)
	if err != nil {
		return 0, ctx, nil, nil, nil, err
	}

	var gasUsed uint64
	for _, pair := range gasPairs {
		gasUsed = safemath.SaturatingAdd(gasUsed, pair.Gas)
	}

	// (j, o', t, b, u) ≡ Δ+(g - Σ_{(s,u)∈u*} u, r_i..., o*, {})
	remainingGas := safemath.SaturatingSub(gasLimit, gasUsed)
	if maxReports == len(workReports) || remainingGas == 0 {
		return uint32(maxReports), newCtx, transfers, hashPairs, gasPairs, nil
	}
	moreItems, finalCtx, moreTransfers, moreHashPairs, moreGasPairs, err := a.SequentialDelta(
		remainingGas,
		workReports[maxReports:],
		newCtx,
		map[block.ServiceId]uint64{},
	)
	if err != nil {
		return 0, ctx, nil, nil, nil, err
	}
	maps.Copy(hashPairs, moreHashPairs)
	return uint32(maxReports) + moreItems,
		finalCtx,
		slices.Concat(transfers, moreTransfers),
		hashPairs,
		slices.Concat(gasPairs, moreGasPairs),
		nil
}

// ParallelDelta implements Δ*(S, ⟦R⟧, ⟨N_S → N_G⟩) → (S, ⟦X⟧, B, U)
// (eq. 12.17 v0.6.7). Each service is accumulated on its own copy of the
// initial state, the outputs are then folded back in service order.
func (a *Accumulator) ParallelDelta(
	initState state.AccumulationState,
	workReports []block.WorkReport,
	alwaysAccumulate map[block.ServiceId]uint64,
) (
	state.AccumulationState,
	[]service.DeferredTransfer,
	ServiceHashPairSet,
	ServiceGasPairs,
	error,
) {
	// s = {d_s | r ∈ r, d ∈ r_r} ∪ K(f)
	serviceIndices := make(map[block.ServiceId]struct{})
	for _, report := range workReports {
		for _, result := range report.WorkResults {
			serviceIndices[result.ServiceId] = struct{}{}
		}
	}
	for serviceId := range alwaysAccumulate {
		serviceIndices[serviceId] = struct{}{}
	}

	// the privileged services are run as well, their outputs decide χ', ι' and φ'
	execSvcIds := maps.Clone(serviceIndices)
	execSvcIds[initState.ManagerServiceId] = struct{}{}
	execSvcIds[initState.DesignateServiceId] = struct{}{}
	for _, serviceId := range initState.AssignedServiceIds {
		execSvcIds[serviceId] = struct{}{}
	}

	var (
		mu    sync.Mutex
		delta = make(map[block.ServiceId]invocation.AccumulationOutput, len(execSvcIds))
		g     errgroup.Group
	)
	for serviceId := range execSvcIds {
		g.Go(func() error {
			output, err := a.Delta1(initState, workReports, alwaysAccumulate, serviceId)
			if err != nil {
				return err
			}
			mu.Lock()
			delta[serviceId] = output
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return state.AccumulationState{}, nil, nil, nil, err
	}

	var (
		allTransfers      []service.DeferredTransfer
		accumHashPairs    = ServiceHashPairSet{}
		accumGasPairs     = make(ServiceGasPairs, 0, len(serviceIndices))
		allPreimages      []block.Preimage
		allAddedServices  = service.ServiceState{}
		allRemovedIndices = map[block.ServiceId]struct{}{}
	)
	for _, serviceId := range slices.Sorted(maps.Keys(serviceIndices)) {
		output := delta[serviceId]

		// t* = [Δ1(s)_t | s <- s]
		allTransfers = append(allTransfers, output.DeferredTransfers...)
		// b* = {(s, b) | s ∈ s, b = Δ1(s)_y, b ≠ ∅}
		if output.Result != nil {
			accumHashPairs[state.ServiceHashPair{ServiceId: serviceId, Hash: *output.Result}] = struct{}{}
		}
		// u* = [(s, Δ1(s)_u) | s <- s]
		accumGasPairs = append(accumGasPairs, ServiceGasPair{ServiceId: serviceId, Gas: output.GasUsed})
		allPreimages = append(allPreimages, output.ProvidedPreimages...)

		// n = ⋃_{s∈s} ((Δ1(s)_o)_d \ K(d \ {s}))
		// m = ⋃_{s∈s} (K(d) \ K((Δ1(s)_o)_d))
		postServices := output.AccumulationState.ServiceState
		for id, account := range postServices {
			if _, existed := initState.ServiceState[id]; !existed || id == serviceId {
				allAddedServices[id] = account
			}
		}
		for id := range initState.ServiceState {
			if _, ok := postServices[id]; !ok {
				allRemovedIndices[id] = struct{}{}
			}
		}
	}

	// (d ∪ n) \ m
	newServiceState := make(service.ServiceState, len(initState.ServiceState)+len(allAddedServices))
	maps.Copy(newServiceState, initState.ServiceState)
	maps.Copy(newServiceState, allAddedServices)
	for id := range allRemovedIndices {
		delete(newServiceState, id)
	}

	// o* = Δ1(m)_o
	managerState := delta[initState.ManagerServiceId].AccumulationState

	// ∀c ∈ N_C: q'_c = ((Δ1(a_c)_o)_q)_c
	newPendingAuthorizersQueues := initState.PendingAuthorizersQueues.Clone()
	for core, serviceId := range initState.AssignedServiceIds {
		queues := delta[serviceId].AccumulationState.PendingAuthorizersQueues
		if core < len(queues) && core < len(newPendingAuthorizersQueues) {
			newPendingAuthorizersQueues[core] = slices.Clone(queues[core])
		}
	}

	return state.AccumulationState{
		// d' = P((d ∪ n) \ m, ⋃_{s∈s} Δ1(s)_p)
		ServiceState: a.preimageIntegration(newServiceState, allPreimages),
		// i' = (Δ1(v)_o)_i
		ValidatorKeys:            delta[initState.DesignateServiceId].AccumulationState.ValidatorKeys,
		PendingAuthorizersQueues: newPendingAuthorizersQueues,
		// (m', a', v', z') = o*_(m,a,v,z)
		ManagerServiceId:        managerState.ManagerServiceId,
		AssignedServiceIds:      slices.Clone(managerState.AssignedServiceIds),
		DesignateServiceId:      managerState.DesignateServiceId,
		AmountOfGasPerServiceId: maps.Clone(managerState.AmountOfGasPerServiceId),
	}, allTransfers, accumHashPairs, accumGasPairs, nil
}

// Delta1 implements Δ1(S, ⟦R⟧, ⟨N_S → N_G⟩, N_S) → O (eq. 12.18-12.20 v0.6.7)
func (a *Accumulator) Delta1(
	accumulationState state.AccumulationState,
	workReports []block.WorkReport,
	alwaysAccumulate map[block.ServiceId]uint64,
	serviceIndex block.ServiceId,
) (invocation.AccumulationOutput, error) {
	// g = U(f_s, 0) + Σ_{r∈r, d∈r_r, d_s=s} d_g
	gasLimit := alwaysAccumulate[serviceIndex]

	// o = [(d_d, d_y, r_s_h, r_s_e, r_a, r_o, d_g) | r <- r, d <- r_r, d_s = s]
	var operands []state.AccumulationOperand
	for _, report := range workReports {
		for _, result := range report.WorkResults {
			if result.ServiceId != serviceIndex {
				continue
			}
			var ok bool
			gasLimit, ok = safemath.Add(gasLimit, result.GasLimit)
			if !ok {
				return invocation.AccumulationOutput{}, fmt.Errorf("gas limit overflow for service %d", serviceIndex)
			}
			operands = append(operands, state.AccumulationOperand{
				WorkPackageHash:   report.AvailabilitySpecification.WorkPackageHash,
				SegmentRoot:       report.AvailabilitySpecification.SegmentRoot,
				AuthorizationHash: report.AuthorizerHash,
				Trace:             report.Output,
				PayloadHash:       result.PayloadHash,
				GasLimit:          result.GasLimit,
				OutputOrError:     result.Output,
			})
		}
	}

	output := a.pvm.InvokePVM(accumulationState, serviceIndex, gasLimit, operands)
	log.Accumulate.Debug().
		Uint32("service", uint32(serviceIndex)).
		Int("operands", len(operands)).
		Uint64("gas_limit", gasLimit).
		Uint64("gas_used", output.GasUsed).
		Msg("service accumulated")
	return output, nil
}

// preimageIntegration P(⟨N_S → A⟩, {(N_S, B)}) → ⟨N_S → A⟩ (eq. 12.17 v0.6.7)
//
//	∀(s, i) ∈ p, s ∈ K(d), d[s]_l[H(i), |i|] = []: d'[s]_l[H(i), |i|] = [τ'], d'[s]_p[H(i)] = i
func (a *Accumulator) preimageIntegration(services service.ServiceState, preimages []block.Preimage) service.ServiceState {
	for _, preimage := range preimages {
		account, ok := services[preimage.ServiceIndex]
		if !ok {
			continue
		}
		hash := crypto.HashData(preimage.Data)
		length := service.PreimageLength(len(preimage.Data))
		timeslots, exists := account.GetPreimageMeta(preimage.ServiceIndex, hash, length)
		if !exists || len(timeslots) != 0 {
			continue
		}
		account = account.Clone()
		account.InsertPreimage(preimage.ServiceIndex, preimage.Data)
		account.SetPreimageMeta(preimage.ServiceIndex, hash, length, service.PreimageHistoricalTimeslots{a.newTimeslot})
		services[preimage.ServiceIndex] = account
	}
	return services
}

// accumulationPriority Q(⟦(R, {H})⟧) → ⟦R⟧ (eq. 12.8 v0.6.7)
func accumulationPriority(workReportAndDeps []state.WorkReportWithUnAccumulatedDependencies) []block.WorkReport {
	var workReports []block.WorkReport
	for _, wd := range workReportAndDeps {
		if len(wd.Dependencies) == 0 {
			workReports = append(workReports, wd.WorkReport)
		}
	}
	if len(workReports) == 0 {
		return []block.WorkReport{}
	}
	return append(workReports, accumulationPriority(updateQueue(workReportAndDeps, getWorkPackageHashes(workReports)))...)
}

// getWorkReportDependencies D(r) ≡ (r, {(r_x)_p} ∪ K(r_l)) (eq. 12.6 v0.6.7)
func getWorkReportDependencies(workReport block.WorkReport) state.WorkReportWithUnAccumulatedDependencies {
	return state.WorkReportWithUnAccumulatedDependencies{
		WorkReport:   workReport,
		Dependencies: workReport.Dependencies(),
	}
}

// flattenAccumulationHistory ⋃ξ ≡ ⋃_{x∈ξ} x (eq. 12.2 v0.6.7)
func flattenAccumulationHistory(accHistory state.AccumulationHistory) map[crypto.Hash]struct{} {
	hashes := make(map[crypto.Hash]struct{})
	for _, epochHistory := range accHistory {
		maps.Copy(hashes, epochHistory)
	}
	return hashes
}

// updateQueue E(⟦(R, {H})⟧, {H}) → ⟦(R, {H})⟧ (eq. 12.7 v0.6.7): drops the
// reports in x and removes x from the remaining dependencies.
func updateQueue(workRepAndDep []state.WorkReportWithUnAccumulatedDependencies, hashSet map[crypto.Hash]struct{}) []state.WorkReportWithUnAccumulatedDependencies {
	var newWorkRepsAndDeps []state.WorkReportWithUnAccumulatedDependencies
	for _, wd := range workRepAndDep {
		if _, ok := hashSet[wd.WorkReport.AvailabilitySpecification.WorkPackageHash]; ok {
			continue
		}
		dependencies := slices.DeleteFunc(slices.Clone(wd.Dependencies), func(h crypto.Hash) bool {
			_, ok := hashSet[h]
			return ok
		})
		newWorkRepsAndDeps = append(newWorkRepsAndDeps, state.WorkReportWithUnAccumulatedDependencies{
			WorkReport:   wd.WorkReport,
			Dependencies: dependencies,
		})
	}
	return newWorkRepsAndDeps
}

// getWorkPackageHashes P({R}) → {H} (eq. 12.9 v0.6.7)
func getWorkPackageHashes(workReports []block.WorkReport) map[crypto.Hash]struct{} {
	hashes := make(map[crypto.Hash]struct{}, len(workReports))
	for _, workReport := range workReports {
		hashes[workReport.AvailabilitySpecification.WorkPackageHash] = struct{}{}
	}
	return hashes
}

func padQueue(queue state.AccumulationQueue, epochLength int) state.AccumulationQueue {
	if len(queue) >= epochLength {
		return queue[:epochLength]
	}
	padded := make(state.AccumulationQueue, epochLength)
	copy(padded, queue)
	return padded
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
