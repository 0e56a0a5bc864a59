package state

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"

	"github.com/ptsanev/mockledger/ledger"
)

// validation phases
const (
	PhaseStructural = 1
	PhaseScript     = 2
)

// ValidationError reports a rejected transaction. Phase 1 implies the state
// was left untouched; phase 2 implies collateral was consumed
type ValidationError struct {
	Phase int
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (phase %d): %v", e.Phase, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func structuralErrorf(format string, a ...any) *ValidationError {
	return &ValidationError{Phase: PhaseStructural, Err: fmt.Errorf(format, a...)}
}

// Apply validates the fully signed transaction against the current state and
// performs the one authoritative state mutation. Outcomes:
//   - structural (phase 1) failure: no state change
//   - script (phase 2) failure: collateral consumed, nothing else
//   - success: inputs consumed, outputs created, datum store in lock-step
//
// In every case the index is replaced wholesale, never mutated in place, so a
// failed submission can never leave a partial write behind
func (s *ChainState) Apply(tx *ledger.Tx, env *ledger.Env) (ledger.TransactionID, error) {
	txid := tx.ID()

	if err := s.validateStructure(tx, txid, env); err != nil {
		return txid, err
	}

	if err := s.runScripts(tx); err != nil {
		// failed scripts still cost collateral
		utxo, datums := s.cloneIndex()
		consumeRefs(utxo, datums, tx.Collateral)
		s.utxo, s.datums = utxo, datums
		return txid, &ValidationError{Phase: PhaseScript, Err: err}
	}

	utxo, datums := s.cloneIndex()
	consumeRefs(utxo, datums, tx.Inputs)
	for i, out := range tx.Outputs {
		ref := ledger.NewOutputID(txid, byte(i))
		utxo[ref] = out.Clone()
		if out.DatumHash != nil {
			if d, ok := tx.Datums[*out.DatumHash]; ok {
				datums[*out.DatumHash] = datumEntry{datum: d, display: d.Display()}
			}
		}
	}
	s.utxo, s.datums = utxo, datums
	return txid, nil
}

// validateStructure is phase 1: structure, fees, conservation, signatures
func (s *ChainState) validateStructure(tx *ledger.Tx, txid ledger.TransactionID, env *ledger.Env) *ValidationError {
	if len(tx.Inputs) == 0 {
		return structuralErrorf("no inputs")
	}
	if s.HasTransaction(txid) {
		return structuralErrorf("transaction id %s already known, output references would be reused", txid.String())
	}

	seen := mapset.NewThreadUnsafeSet[ledger.OutputID]()
	for _, in := range tx.Inputs {
		if !seen.Add(in) {
			return structuralErrorf("input %s consumed twice", in.String())
		}
		out, found := s.utxo[in]
		if !found {
			return structuralErrorf("input %s not found in the UTxO set", in.String())
		}
		// datum of a consumed by-hash output must be resolvable
		if out.DatumHash != nil {
			if _, ok := s.datums[*out.DatumHash]; !ok {
				return structuralErrorf("input %s: %v", in.String(), errors.Wrapf(ErrDatumNotFound, "hash %s", out.DatumHash.String()))
			}
		}
	}
	for _, in := range tx.Collateral {
		out, found := s.utxo[in]
		if !found {
			return structuralErrorf("collateral input %s not found in the UTxO set", in.String())
		}
		if !out.IsAdaOnly() || out.HasDatum() {
			return structuralErrorf("collateral input %s must be ada-only and datum-free", in.String())
		}
	}

	if !tx.ValidRange.Contains(s.slot) {
		return structuralErrorf("slot %d outside of the validity interval", s.slot)
	}

	for i, out := range tx.Outputs {
		if out.Value.Ada() < env.Params.MinOutputValue {
			return structuralErrorf("output #%d below the minimum value floor: %d < %d",
				i, out.Value.Ada(), env.Params.MinOutputValue)
		}
	}

	// exact per-asset conservation: inputs + minted == outputs + fee + burned
	consumed, err := tx.ConsumedValue(s.GetUTxO)
	if err != nil {
		return structuralErrorf("%v", err)
	}
	lhs := consumed.Add(tx.Mint.Minted())
	rhs := tx.ProducedValue().Add(tx.Mint.Burned())
	if !lhs.Equal(rhs) {
		return structuralErrorf("value not conserved: consumed+minted %s != produced+fee+burned %s",
			lhs.String(), rhs.String())
	}

	if tx.Fee < env.Params.MinFee {
		return structuralErrorf("fee %d below the protocol minimum %d", tx.Fee, env.Params.MinFee)
	}
	if size := tx.EstimatedSize(len(tx.Signatures)); size > env.Params.MaxTxSize {
		return structuralErrorf("transaction size %d exceeds the maximum %d", size, env.Params.MaxTxSize)
	}

	for _, addr := range tx.RequiredSigners {
		if !tx.SignedBy(addr) {
			return structuralErrorf("missing or invalid signature of required signer %s", addr.Short())
		}
	}
	return nil
}

// runScripts is phase 2: execute every script witness
func (s *ChainState) runScripts(tx *ledger.Tx) error {
	for _, w := range tx.Scripts {
		ctx := &ledger.ScriptContext{
			Tx:    tx,
			Slot:  s.slot,
			Ref:   w.Ref,
			Class: w.Class,
		}
		if w.Purpose == ledger.ScriptPurposeSpend {
			out, found := s.utxo[w.Ref]
			if !found {
				return fmt.Errorf("script input %s not found", w.Ref.String())
			}
			ctx.Consumed = out
			d, err := s.DatumOf(w.Ref)
			if err != nil {
				return err
			}
			ctx.Datum = d
		}
		if err := w.Validate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *ChainState) cloneIndex() (map[ledger.OutputID]*ledger.Output, map[ledger.DatumHash]datumEntry) {
	utxo := make(map[ledger.OutputID]*ledger.Output, len(s.utxo))
	for ref, out := range s.utxo {
		utxo[ref] = out
	}
	datums := make(map[ledger.DatumHash]datumEntry, len(s.datums))
	for h, entry := range s.datums {
		datums[h] = entry
	}
	return utxo, datums
}

// consumeRefs removes the referenced outputs from the replacement index and
// drops their by-hash datum entries in lock-step. An entry stays as long as
// any other live output still references the same hash
func consumeRefs(utxo map[ledger.OutputID]*ledger.Output, datums map[ledger.DatumHash]datumEntry, refs []ledger.OutputID) {
	released := make([]ledger.DatumHash, 0)
	for _, ref := range refs {
		if out, found := utxo[ref]; found && out.DatumHash != nil {
			released = append(released, *out.DatumHash)
		}
		delete(utxo, ref)
	}
	for _, h := range released {
		if !datumHashInUse(utxo, h) {
			delete(datums, h)
		}
	}
}

func datumHashInUse(utxo map[ledger.OutputID]*ledger.Output, h ledger.DatumHash) bool {
	for _, out := range utxo {
		if out.DatumHash != nil && *out.DatumHash == h {
			return true
		}
	}
	return false
}
