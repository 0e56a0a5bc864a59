package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDs(t *testing.T) {
	t.Run("output id roundtrip", func(t *testing.T) {
		txid := TransactionID{1, 2, 3}
		oid := NewOutputID(txid, 7)
		require.EqualValues(t, txid, oid.TransactionID())
		require.EqualValues(t, 7, oid.Index())
		back, err := OutputIDFromBytes(oid.Bytes())
		require.NoError(t, err)
		require.EqualValues(t, oid, back)
		_, err = OutputIDFromBytes(oid.Bytes()[1:])
		require.Error(t, err)
	})
	t.Run("deterministic wallets", func(t *testing.T) {
		w1 := WalletWithIndex(1)
		w2 := WalletWithIndex(1)
		require.EqualValues(t, w1.Addr, w2.Addr)
		require.NotEqualValues(t, w1.Addr, WalletWithIndex(2).Addr)
	})
}

func TestTxEssence(t *testing.T) {
	w1 := WalletWithIndex(1)
	w2 := WalletWithIndex(2)

	mkTx := func() *Tx {
		tx := NewTx()
		require.NoError(t, tx.AddInput(NewOutputID(TransactionID{0xff}, 0)))
		require.NoError(t, tx.AddOutput(NewOutput(w2.Addr, Ada(5))))
		tx.Fee = 200_000
		return tx
	}

	t.Run("id is stable", func(t *testing.T) {
		require.EqualValues(t, mkTx().ID(), mkTx().ID())
	})
	t.Run("id commits to the fee", func(t *testing.T) {
		tx := mkTx()
		other := mkTx()
		other.Fee++
		require.NotEqualValues(t, tx.ID(), other.ID())
	})
	t.Run("signatures", func(t *testing.T) {
		tx := mkTx()
		tx.Sign(w1.PrivateKey)
		require.True(t, tx.SignedBy(w1.Addr))
		require.False(t, tx.SignedBy(w2.Addr))
	})
	t.Run("signature does not survive essence change", func(t *testing.T) {
		tx := mkTx()
		tx.Sign(w1.PrivateKey)
		tx.Fee++
		require.False(t, tx.SignedBy(w1.Addr))
	})
	t.Run("clone is independent", func(t *testing.T) {
		tx := mkTx()
		c := tx.Clone()
		c.Outputs[0].Value.AddAmount(AdaClass, 1)
		c.Fee = 1
		require.NotEqualValues(t, tx.Outputs[0].Value.Ada(), c.Outputs[0].Value.Ada())
		require.EqualValues(t, 200_000, tx.Fee)
	})
	t.Run("size model ignores amounts", func(t *testing.T) {
		tx := mkTx()
		other := mkTx()
		other.Outputs[0].Value = Ada(999)
		other.Fee = 1
		require.EqualValues(t, tx.EstimatedSize(1), other.EstimatedSize(1))
	})
	t.Run("required signer dedup", func(t *testing.T) {
		tx := mkTx()
		tx.AddRequiredSigner(w1.Addr)
		tx.AddRequiredSigner(w1.Addr)
		require.Len(t, tx.RequiredSigners, 1)
	})
	t.Run("datum witness", func(t *testing.T) {
		tx := mkTx()
		d := NewDatum([]byte("some datum"), 42)
		h := tx.AttachDatum(d)
		require.EqualValues(t, d.Hash(), h)
		require.Contains(t, d.Display(), "42")
	})
}

func TestSlotRange(t *testing.T) {
	require.True(t, (*SlotRange)(nil).Contains(0))
	r := &SlotRange{From: 5, Until: 10}
	require.False(t, r.Contains(4))
	require.True(t, r.Contains(5))
	require.True(t, r.Contains(10))
	require.False(t, r.Contains(11))
	open := &SlotRange{From: 3}
	require.True(t, open.Contains(1_000_000))
}
