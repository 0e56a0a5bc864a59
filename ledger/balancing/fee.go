package balancing

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/ptsanev/mockledger/ledger"
	"github.com/ptsanev/mockledger/ledger/state"
)

// The fee depends on the final transaction shape, the shape depends on
// balancing, and balancing depends on the fee. The loop below resolves the
// circle with a bounded fixpoint search over the fee value.
const maxFeeIterations = 5

// size headroom constants, in bytes. The probe fee over-estimates the final
// transaction by one change output and one extra input, so the converged fee
// always clears the protocol fee of whatever the balance applier produces
const (
	changeSizeAllowance = 256
	initialSizePad      = 768
)

func probeFee(par *ledger.Params, tx *ledger.Tx, numSigners int) uint64 {
	return par.FeeFor(tx, numSigners) + par.FeePerByte*changeSizeAllowance
}

func initialFeeGuess(par *ledger.Params, tx *ledger.Tx, numSigners int) uint64 {
	return par.FeeFor(tx, numSigners) + par.FeePerByte*initialSizePad
}

// balanceAtFee balances a fresh copy of the draft under the assumed fee and
// materializes the selection as concrete inputs
func balanceAtFee(stage Stage, draft *ledger.Tx, reader state.Reader, candidates []state.UTxO, fee uint64) (*ledger.Tx, *BalanceResult, error) {
	tx := draft.Clone()
	tx.Fee = fee
	res, err := Balance(stage, tx, reader, candidates)
	if err != nil {
		return nil, nil, err
	}
	for _, sel := range res.SelectedOutputs {
		if err = tx.AddInput(sel.ID); err != nil {
			return nil, nil, err
		}
	}
	return tx, res, nil
}

// ResolveFeeAndBalance converges the embedded fee via repeated balancing and
// fee re-estimation: start from a conservative high estimate, balance under
// it, recompute the fee of the concrete result, repeat until the fee
// reproduces itself. If balancing fails under the fee search specifically,
// the assumed fee may simply be too high for the payer's funds: the search
// falls back once to the protocol minimum fee. If the loop exhausts without
// converging, the pairwise maximum of the last two candidates is taken as a
// safe over-approximation rather than failing.
//
// Whatever fee the search settles on, the authoritative balancing pass runs
// once more at the finalizing stage; its failures are the ones reported
func ResolveFeeAndBalance(log zerolog.Logger, draft *ledger.Tx, reader state.Reader, candidates []state.UTxO, env *ledger.Env) (*ledger.Tx, *BalanceResult, error) {
	numSigners := len(env.Signers)
	fee := initialFeeGuess(env.Params, draft, numSigners)
	prevFee := fee
	converged := false

search:
	for i := 0; i < maxFeeIterations; i++ {
		tx, _, err := balanceAtFee(StageFeeSearch, draft, reader, candidates, fee)
		if err != nil {
			var unb *UnbalanceableError
			if !errors.As(err, &unb) {
				return nil, nil, err
			}
			// single bounded fallback: the finalizing pass below retries at
			// the minimum fee and reports the authoritative failure, if any
			log.Debug().Uint64("fee", fee).Uint64("min_fee", env.Params.MinFee).
				Msg("fee search unbalanceable, falling back to the minimum fee")
			prevFee, fee = env.Params.MinFee, env.Params.MinFee
			converged = true
			break search
		}
		computed := probeFee(env.Params, tx, numSigners)
		log.Debug().Int("iteration", i).Uint64("assumed", fee).Uint64("computed", computed).
			Msg("fee fixpoint step")
		if computed == fee {
			converged = true
			break search
		}
		prevFee, fee = fee, computed
	}
	if !converged && prevFee > fee {
		// no fixpoint within the bound: over-approximate rather than fail
		log.Debug().Uint64("fee", prevFee).Msg("fee fixpoint not reached, taking the maximum of the last two candidates")
		fee = prevFee
	}

	return balanceAtFee(StageFinalizing, draft, reader, candidates, fee)
}
