package balancing

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/require"

	"github.com/ptsanev/mockledger/ledger"
	"github.com/ptsanev/mockledger/ledger/state"
)

func TestApplyBalance(t *testing.T) {
	payer := ledger.WalletWithIndex(1).Addr
	other := ledger.WalletWithIndex(2).Addr
	par := ledger.DefaultParams()

	emptyResult := func() *BalanceResult {
		return &BalanceResult{
			Selected: mapset.NewSet[ledger.OutputID](),
			Leftover: ledger.NewValue(0),
			Excess:   ledger.NewValue(0),
		}
	}

	t.Run("zero change is a no-op", func(t *testing.T) {
		tx := ledger.NewTx()
		require.NoError(t, ApplyBalance(tx, emptyResult(), payer, par, true))
		require.Empty(t, tx.Outputs)
	})
	t.Run("tops up the largest adjustable output", func(t *testing.T) {
		tx := ledger.NewTx()
		require.NoError(t, tx.AddOutput(ledger.NewOutput(payer, ledger.Ada(3))))
		require.NoError(t, tx.AddOutput(ledger.NewOutput(payer, ledger.Ada(7))))
		require.NoError(t, tx.AddOutput(ledger.NewOutput(other, ledger.Ada(50))))

		res := emptyResult()
		res.Leftover = ledger.Ada(2)
		require.NoError(t, ApplyBalance(tx, res, payer, par, true))
		require.Len(t, tx.Outputs, 3)
		require.EqualValues(t, 3*ledger.LovelacePerAda, tx.Outputs[0].Value.Ada())
		require.EqualValues(t, 9*ledger.LovelacePerAda, tx.Outputs[1].Value.Ada())
	})
	t.Run("datum-bearing and foreign outputs are never adjusted", func(t *testing.T) {
		tx := ledger.NewTx()
		require.NoError(t, tx.AddOutput(ledger.NewOutput(other, ledger.Ada(7))))
		require.NoError(t, tx.AddOutput(
			ledger.NewOutput(payer, ledger.Ada(7)).WithInlineDatum(ledger.NewDatum([]byte("d")))))

		res := emptyResult()
		res.Leftover = ledger.Ada(2)
		require.NoError(t, ApplyBalance(tx, res, payer, par, true))
		require.Len(t, tx.Outputs, 3)
		require.EqualValues(t, 7*ledger.LovelacePerAda, tx.Outputs[0].Value.Ada())
		require.EqualValues(t, 7*ledger.LovelacePerAda, tx.Outputs[1].Value.Ada())
		require.EqualValues(t, payer, tx.Outputs[2].Address)
		require.EqualValues(t, 2*ledger.LovelacePerAda, tx.Outputs[2].Value.Ada())
	})
	t.Run("new change output when adjustment is disabled", func(t *testing.T) {
		tx := ledger.NewTx()
		require.NoError(t, tx.AddOutput(ledger.NewOutput(payer, ledger.Ada(7))))

		res := emptyResult()
		res.Leftover = ledger.Ada(2)
		res.Excess = ledger.NewValue(0).AddAmount(tokenA, 5)
		require.NoError(t, ApplyBalance(tx, res, payer, par, false))
		require.Len(t, tx.Outputs, 2)
		require.EqualValues(t, 2*ledger.LovelacePerAda, tx.Outputs[1].Value.Ada())
		require.EqualValues(t, 5, tx.Outputs[1].Value.AmountOf(tokenA))
	})
	t.Run("below-floor change pulls in one more input", func(t *testing.T) {
		tx := ledger.NewTx()
		extra := state.UTxO{
			ID:     ledger.NewOutputID(ledger.TransactionID{7}, 0),
			Output: ledger.NewOutput(payer, ledger.Ada(1)),
		}
		res := emptyResult()
		res.Leftover = ledger.NewValue(ledger.LovelacePerAda / 10)
		res.Remaining = []state.UTxO{extra}

		require.NoError(t, ApplyBalance(tx, res, payer, par, false))
		require.True(t, tx.HasInput(extra.ID))
		require.True(t, res.Selected.Contains(extra.ID))
		require.Empty(t, res.Remaining)
		require.Len(t, tx.Outputs, 1)
		require.EqualValues(t, ledger.LovelacePerAda+ledger.LovelacePerAda/10, tx.Outputs[0].Value.Ada())
		require.GreaterOrEqual(t, tx.Outputs[0].Value.Ada(), par.MinOutputValue)
	})
	t.Run("skips candidates that still land below the floor", func(t *testing.T) {
		tx := ledger.NewTx()
		dust := state.UTxO{
			ID:     ledger.NewOutputID(ledger.TransactionID{7}, 0),
			Output: ledger.NewOutput(payer, ledger.NewValue(ledger.LovelacePerAda/4)),
		}
		full := state.UTxO{
			ID:     ledger.NewOutputID(ledger.TransactionID{7}, 1),
			Output: ledger.NewOutput(payer, ledger.Ada(1)),
		}
		res := emptyResult()
		res.Leftover = ledger.NewValue(ledger.LovelacePerAda / 10)
		res.Remaining = []state.UTxO{dust, full}

		require.NoError(t, ApplyBalance(tx, res, payer, par, false))
		require.False(t, tx.HasInput(dust.ID))
		require.True(t, tx.HasInput(full.ID))
		require.Len(t, res.Remaining, 1)
		require.EqualValues(t, dust.ID, res.Remaining[0].ID)
	})
	t.Run("unbalanceable when no candidate clears the floor", func(t *testing.T) {
		tx := ledger.NewTx()
		res := emptyResult()
		res.Leftover = ledger.NewValue(ledger.LovelacePerAda / 10)

		err := ApplyBalance(tx, res, payer, par, true)
		var unb *UnbalanceableError
		require.ErrorAs(t, err, &unb)
		require.EqualValues(t, StageFinalizing, unb.Stage)
	})
}
