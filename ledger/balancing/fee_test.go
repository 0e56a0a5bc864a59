package balancing

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ptsanev/mockledger/ledger"
	"github.com/ptsanev/mockledger/ledger/state"
)

func TestResolveFeeAndBalance(t *testing.T) {
	w1 := ledger.WalletWithIndex(1)
	w2 := ledger.WalletWithIndex(2)
	log := zerolog.Nop()

	mkState := func(bags ...ledger.Value) (*state.ChainState, []state.UTxO, *ledger.Env) {
		s := state.New(state.InitialDistribution{{Address: w1.Addr, Bags: bags}})
		return s, s.UTxOsByAddress(w1.Addr), ledger.NewEnv(ledger.DefaultParams(), w1)
	}

	t.Run("converges and covers the protocol fee", func(t *testing.T) {
		s, candidates, env := mkState(ledger.Ada(60), ledger.Ada(40))
		draft := ledger.NewTx()
		require.NoError(t, draft.AddOutput(ledger.NewOutput(w2.Addr, ledger.Ada(10))))

		tx, res, err := ResolveFeeAndBalance(log, draft, s, candidates, env)
		require.NoError(t, err)
		require.Greater(t, tx.Fee, uint64(0))
		require.GreaterOrEqual(t, tx.Fee, env.Params.FeeFor(tx, len(env.Signers)),
			"the resolved fee is never below the protocol fee of the concrete transaction")
		require.EqualValues(t, res.Selected.Cardinality(), len(tx.Inputs))
		require.EqualValues(t, 0, draft.Fee, "the draft itself stays untouched")
		require.Empty(t, draft.Inputs)
	})
	t.Run("selection is reflected as concrete inputs", func(t *testing.T) {
		s, candidates, env := mkState(ledger.Ada(60), ledger.Ada(40))
		draft := ledger.NewTx()
		require.NoError(t, draft.AddOutput(ledger.NewOutput(w2.Addr, ledger.Ada(70))))

		tx, res, err := ResolveFeeAndBalance(log, draft, s, candidates, env)
		require.NoError(t, err)
		require.EqualValues(t, 2, res.Selected.Cardinality())
		for _, in := range tx.Inputs {
			require.True(t, res.Selected.Contains(in))
		}
	})
	t.Run("insufficient funds surface at the finalizing stage", func(t *testing.T) {
		s, candidates, env := mkState(ledger.Ada(5))
		draft := ledger.NewTx()
		require.NoError(t, draft.AddOutput(ledger.NewOutput(w2.Addr, ledger.Ada(10))))

		_, _, err := ResolveFeeAndBalance(log, draft, s, candidates, env)
		var unb *UnbalanceableError
		require.ErrorAs(t, err, &unb)
		require.EqualValues(t, StageFinalizing, unb.Stage)
	})
	t.Run("min fee retry rescues a tight balance", func(t *testing.T) {
		// funds cover the payment plus the minimum fee, but not the initial
		// conservative over-estimate
		s, candidates, env := mkState(ledger.Ada(5))
		draft := ledger.NewTx()
		pay := 5*ledger.LovelacePerAda - env.Params.MinFee
		require.NoError(t, draft.AddOutput(ledger.NewOutput(w2.Addr, ledger.NewValue(pay))))

		tx, _, err := ResolveFeeAndBalance(log, draft, s, candidates, env)
		require.NoError(t, err)
		require.EqualValues(t, env.Params.MinFee, tx.Fee)
	})
	t.Run("terminates within the iteration bound", func(t *testing.T) {
		s, candidates, env := mkState(
			ledger.Ada(10), ledger.Ada(10), ledger.Ada(10), ledger.Ada(10),
			ledger.Ada(10), ledger.Ada(10), ledger.Ada(10), ledger.Ada(10))
		for pay := uint64(1); pay < 70; pay += 7 {
			draft := ledger.NewTx()
			require.NoError(t, draft.AddOutput(ledger.NewOutput(w2.Addr, ledger.Ada(pay))))
			tx, _, err := ResolveFeeAndBalance(log, draft, s, candidates, env)
			require.NoError(t, err)
			require.GreaterOrEqual(t, tx.Fee, env.Params.FeeFor(tx, 1))
		}
	})
}
