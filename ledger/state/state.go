package state

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/ptsanev/mockledger/ledger"
)

// ErrDatumNotFound is returned when an output names a datum hash the store
// does not hold. Lookups fail explicitly, they never default
var ErrDatumNotFound = errors.New("datum not found in datum store")

type (
	datumEntry struct {
		datum   *ledger.Datum
		display string
	}

	// ChainState is the mutable chain state: the UTxO index, the datum store
	// and the logical slot clock. It is created once from an initial
	// distribution and thereafter mutated only by Apply
	ChainState struct {
		utxo   map[ledger.OutputID]*ledger.Output
		datums map[ledger.DatumHash]datumEntry
		slot   uint64
	}

	// UTxO pairs an output with its reference
	UTxO struct {
		ID     ledger.OutputID
		Output *ledger.Output
	}

	// Reader is the read-only view of the UTxO index the balancing and
	// generation layers work against
	Reader interface {
		GetUTxO(ref ledger.OutputID) (*ledger.Output, bool)
	}
)

func (s *ChainState) GetUTxO(ref ledger.OutputID) (*ledger.Output, bool) {
	ret, found := s.utxo[ref]
	return ret, found
}

// HasTransaction returns true if any live output originates from the transaction
func (s *ChainState) HasTransaction(txid ledger.TransactionID) bool {
	for ref := range s.utxo {
		if ref.TransactionID() == txid {
			return true
		}
	}
	return false
}

// UTxOsByAddress returns the outputs owned by the address,
// ordered by output reference for determinism
func (s *ChainState) UTxOsByAddress(addr ledger.Address) []UTxO {
	ret := make([]UTxO, 0)
	for ref, out := range s.utxo {
		if out.Address == addr {
			ret = append(ret, UTxO{ID: ref, Output: out})
		}
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].ID.Less(ret[j].ID)
	})
	return ret
}

// NumUTxOs is the total size of the index
func (s *ChainState) NumUTxOs() int {
	return len(s.utxo)
}

// DatumOf resolves the datum of the referenced output: inline datums are
// returned directly, by-hash datums are looked up in the datum store
func (s *ChainState) DatumOf(ref ledger.OutputID) (*ledger.Datum, error) {
	out, found := s.utxo[ref]
	if !found {
		return nil, errors.Errorf("DatumOf: output %s not found", ref.String())
	}
	switch {
	case out.Inline != nil:
		return out.Inline, nil
	case out.DatumHash != nil:
		entry, ok := s.datums[*out.DatumHash]
		if !ok {
			return nil, errors.Wrapf(ErrDatumNotFound, "hash %s", out.DatumHash.String())
		}
		return entry.datum, nil
	}
	return nil, nil
}

// DatumDisplay returns the stored display string for a datum hash
func (s *ChainState) DatumDisplay(h ledger.DatumHash) (string, error) {
	entry, ok := s.datums[h]
	if !ok {
		return "", errors.Wrapf(ErrDatumNotFound, "hash %s", h.String())
	}
	return entry.display, nil
}

// Slot returns the current logical slot
func (s *ChainState) Slot() uint64 {
	return s.slot
}

// SetSlot raises the slot clock to the given value. The clock is monotonic:
// requests below the current slot are no-ops
func (s *ChainState) SetSlot(slot uint64) uint64 {
	if slot > s.slot {
		s.slot = slot
	}
	return s.slot
}

// AdvanceSlot moves the clock by exactly one slot
func (s *ChainState) AdvanceSlot() uint64 {
	s.slot++
	return s.slot
}

// Clone deep-copies the state. Used by the alternative-try combinator so two
// branches never share mutable state
func (s *ChainState) Clone() *ChainState {
	ret := &ChainState{
		utxo:   make(map[ledger.OutputID]*ledger.Output, len(s.utxo)),
		datums: make(map[ledger.DatumHash]datumEntry, len(s.datums)),
		slot:   s.slot,
	}
	for ref, out := range s.utxo {
		ret.utxo[ref] = out.Clone()
	}
	for h, entry := range s.datums {
		ret.datums[h] = entry
	}
	return ret
}

// Holding is one entry of the state projection: what an address holds in one
// output, with the display form of the attached datum, if any
type Holding struct {
	Value ledger.Value
	Datum string
}

// Projection is the read-only display view of the state:
// address -> bag of holdings. Consumed by external assertion and
// printing utilities, never by the pipeline itself
func (s *ChainState) Projection() map[ledger.Address][]Holding {
	ret := make(map[ledger.Address][]Holding)
	for _, ref := range s.sortedRefs() {
		out := s.utxo[ref]
		h := Holding{Value: out.Value.Clone()}
		switch {
		case out.Inline != nil:
			h.Datum = out.Inline.Display()
		case out.DatumHash != nil:
			if entry, ok := s.datums[*out.DatumHash]; ok {
				h.Datum = entry.display
			} else {
				h.Datum = "#" + out.DatumHash.String()
			}
		}
		ret[out.Address] = append(ret[out.Address], h)
	}
	return ret
}

func (s *ChainState) sortedRefs() []ledger.OutputID {
	ret := make([]ledger.OutputID, 0, len(s.utxo))
	for ref := range s.utxo {
		ret = append(ret, ref)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Less(ret[j])
	})
	return ret
}

