package balancing

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ptsanev/mockledger/ledger"
	"github.com/ptsanev/mockledger/ledger/state"
)

// Stage names the pipeline stage at which balancing ran
type Stage byte

const (
	StageFeeSearch = Stage(iota)
	StageFinalizing
)

func (s Stage) String() string {
	switch s {
	case StageFeeSearch:
		return "fee search"
	case StageFinalizing:
		return "finalizing"
	}
	return "unknown"
}

// BalanceResult is the outcome of one balancing pass
type BalanceResult struct {
	// Selected are the references of the newly chosen covering inputs
	Selected mapset.Set[ledger.OutputID]
	// SelectedOutputs keeps the selection in deterministic order
	SelectedOutputs []state.UTxO
	// Leftover is what the selection brought in beyond the requirement
	Leftover ledger.Value
	// Excess is the surplus the draft already had before selection
	Excess ledger.Value
	// Remaining are the unselected candidates, ordered by descending ada,
	// available for later reuse by the balance applier
	Remaining []state.UTxO
}

// UnbalanceableError reports that no combination of the candidate pool
// satisfies value conservation at the given stage. It is raised only when the
// full pool is exhausted, never for partial coverage mid-search
type UnbalanceableError struct {
	Stage  Stage
	Tx     *ledger.Tx
	Result *BalanceResult
}

func (e *UnbalanceableError) Error() string {
	return fmt.Sprintf("cannot balance the transaction at stage '%s': candidate pool exhausted", e.Stage.String())
}

// NoSuitableCollateralError reports that automatic collateral selection could
// not meet the required threshold within the allowed input count
type NoSuitableCollateralError struct {
	Threshold uint64
	Total     uint64
	MaxInputs int
}

func (e *NoSuitableCollateralError) Error() string {
	return fmt.Sprintf("no suitable collateral: need %d, usable ada %d, max %d inputs",
		e.Threshold, e.Total, e.MaxInputs)
}

// sortCandidates orders by descending ada amount, ties broken by output
// reference, so the selection is deterministic
func sortCandidates(candidates []state.UTxO) []state.UTxO {
	ret := make([]state.UTxO, len(candidates))
	copy(ret, candidates)
	sort.Slice(ret, func(i, j int) bool {
		ai, aj := ret[i].Output.Value.Ada(), ret[j].Output.Value.Ada()
		if ai != aj {
			return ai > aj
		}
		return ret[i].ID.Less(ret[j].ID)
	})
	return ret
}

// Balance computes the per-asset deficit of the draft against its declared
// flows and selects covering inputs from the candidate pool.
//
// The selection strategy is deterministic largest-ada-first: candidates are
// taken in descending ada order, skipping any that contribute nothing to the
// remaining deficit. Only the coverage contract is load-bearing; the strategy
// does not minimize input count
func Balance(stage Stage, tx *ledger.Tx, reader state.Reader, candidates []state.UTxO) (*BalanceResult, error) {
	consumed, err := tx.ConsumedValue(reader.GetUTxO)
	if err != nil {
		return nil, err
	}
	have := consumed.Add(tx.Mint.Minted())
	need := tx.ProducedValue().Add(tx.Mint.Burned())
	deficit := need.DeficitVs(have)

	pool := make([]state.UTxO, 0, len(candidates))
	for _, cand := range sortCandidates(candidates) {
		if !tx.HasInput(cand.ID) {
			pool = append(pool, cand)
		}
	}

	ret := &BalanceResult{
		Selected:        mapset.NewThreadUnsafeSet[ledger.OutputID](),
		SelectedOutputs: make([]state.UTxO, 0),
		Leftover:        make(ledger.Value),
		Excess:          have.SurplusVs(need),
		Remaining:       pool,
	}
	if deficit.IsZero() {
		return ret, nil
	}

	selectedTotal := make(ledger.Value)
	remaining := make([]state.UTxO, 0, len(pool))
	covered := false
	for _, cand := range pool {
		if covered || !contributes(cand.Output.Value, deficit.DeficitVs(selectedTotal)) {
			remaining = append(remaining, cand)
			continue
		}
		ret.Selected.Add(cand.ID)
		ret.SelectedOutputs = append(ret.SelectedOutputs, cand)
		selectedTotal.Add(cand.Output.Value)
		covered = selectedTotal.Covers(deficit)
	}
	ret.Remaining = remaining

	if !covered {
		return nil, &UnbalanceableError{Stage: stage, Tx: tx, Result: ret}
	}
	ret.Leftover = selectedTotal.Clone().MustSub(deficit)
	return ret, nil
}

// contributes returns true if the candidate reduces the remaining deficit in
// at least one asset
func contributes(v ledger.Value, remainingDeficit ledger.Value) bool {
	for a, n := range remainingDeficit {
		if n > 0 && v.AmountOf(a) > 0 {
			return true
		}
	}
	return false
}
