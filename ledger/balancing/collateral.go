package balancing

import (
	"github.com/ptsanev/mockledger/ledger"
	"github.com/ptsanev/mockledger/ledger/state"
)

// SelectCollateral sets the script-failure collateral of the transaction.
// Collateral is needed only when the transaction runs scripts at all.
//
// Explicit references are used verbatim, unvalidated for sufficiency at this
// layer. Automatic selection takes the payer's ada-only, datum-free holdings
// in descending ada order and keeps the shortest prefix whose cumulative ada
// first reaches the collateral threshold
func SelectCollateral(tx *ledger.Tx, candidates []state.UTxO, par *ledger.Params, explicit []ledger.OutputID) error {
	if !tx.HasScripts() {
		return nil
	}
	if explicit != nil {
		tx.Collateral = explicit
		return nil
	}

	threshold := par.CollateralThreshold()
	selected := make([]ledger.OutputID, 0, par.MaxCollateralInputs)
	total := uint64(0)
	usable := uint64(0)
	for _, cand := range sortCandidates(candidates) {
		if !cand.Output.IsAdaOnly() || cand.Output.HasDatum() || tx.HasInput(cand.ID) {
			continue
		}
		usable += cand.Output.Value.Ada()
		if total >= threshold {
			continue
		}
		selected = append(selected, cand.ID)
		total += cand.Output.Value.Ada()
	}
	if total < threshold || len(selected) > par.MaxCollateralInputs {
		return &NoSuitableCollateralError{
			Threshold: threshold,
			Total:     usable,
			MaxInputs: par.MaxCollateralInputs,
		}
	}
	tx.Collateral = selected
	return nil
}
