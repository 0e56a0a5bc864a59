package state

import (
	"github.com/lunfardo314/unitrie/common"

	"github.com/ptsanev/mockledger/ledger"
)

type (
	// Allocation is one line of the initial distribution: an address and the
	// asset bags it starts with, one output per bag
	Allocation struct {
		Address ledger.Address
		Bags    []ledger.Value
	}

	// InitialDistribution seeds the genesis state. Order matters: output
	// indices of the synthesized funding transaction follow it
	InitialDistribution []Allocation
)

// New creates the chain state from the initial distribution by synthesizing
// a funding transaction under the all-0 transaction id
func New(dist InitialDistribution) *ChainState {
	ret := &ChainState{
		utxo:   make(map[ledger.OutputID]*ledger.Output),
		datums: make(map[ledger.DatumHash]datumEntry),
	}
	idx := 0
	for _, alloc := range dist {
		for _, bag := range alloc.Bags {
			common.Assert(!bag.IsZero(), "genesis: empty asset bag for %s", alloc.Address.Short())
			common.Assert(idx < ledger.MaxOutputs, "genesis: too many outputs in the initial distribution")
			ref := ledger.NewOutputID(ledger.GenesisTransactionID, byte(idx))
			ret.utxo[ref] = ledger.NewOutput(alloc.Address, bag.Clone())
			idx++
		}
	}
	return ret
}
