package balancing

import (
	"github.com/ptsanev/mockledger/ledger"
)

// ApplyBalance folds leftover and excess back into the draft as change to the
// fee payer without violating the minimum-value-per-output floor. Ledgers
// reject below-floor outputs, so returning change can require pulling in one
// more input. First success wins:
//
//  1. top up the payer-owned ada-only, datum-free output with the largest ada
//     amount (ties broken by position), if the adjustment policy permits;
//  2. append a new ada-only change output, if the change alone clears the floor;
//  3. consume one more remaining candidate, in descending ada order, whose
//     value combined with the change clears the floor, and emit a single
//     combined output;
//  4. fail as unbalanceable at the finalizing stage.
func ApplyBalance(tx *ledger.Tx, res *BalanceResult, payer ledger.Address, par *ledger.Params, adjustExisting bool) error {
	change := res.Leftover.Clone().Add(res.Excess)
	if change.IsZero() {
		return nil
	}

	if adjustExisting {
		if out := adjustableOutput(tx, payer); out != nil {
			adjusted := out.Value.Clone().Add(change)
			if adjusted.Ada() >= par.MinOutputValue {
				out.Value = adjusted
				return nil
			}
		}
	}

	if change.Ada() >= par.MinOutputValue {
		return tx.AddOutput(ledger.NewOutput(payer, change))
	}

	for i, cand := range res.Remaining {
		combined := cand.Output.Value.Clone().Add(change)
		if combined.Ada() < par.MinOutputValue {
			continue
		}
		if err := tx.AddInput(cand.ID); err != nil {
			return err
		}
		res.Selected.Add(cand.ID)
		res.SelectedOutputs = append(res.SelectedOutputs, cand)
		res.Remaining = append(res.Remaining[:i:i], res.Remaining[i+1:]...)
		return tx.AddOutput(ledger.NewOutput(payer, combined))
	}

	return &UnbalanceableError{Stage: StageFinalizing, Tx: tx, Result: res}
}

// adjustableOutput picks the payer-owned, ada-only, datum-free output with
// the largest ada amount; earlier position wins a tie
func adjustableOutput(tx *ledger.Tx, payer ledger.Address) *ledger.Output {
	var ret *ledger.Output
	best := uint64(0)
	for _, out := range tx.Outputs {
		if out.Address != payer || !out.IsAdaOnly() || out.HasDatum() {
			continue
		}
		if ret == nil || out.Value.Ada() > best {
			ret = out
			best = out.Value.Ada()
		}
	}
	return ret
}
