package txbuilder

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/ptsanev/mockledger/ledger"
)

// ConstructionError reports that the constraint resolver could not build a
// draft from the skeleton. The cause is opaque and forwarded as-is
type ConstructionError struct {
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("transaction construction failed: %v", e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

type (
	// Reader resolves output references against the current UTxO index
	Reader interface {
		GetUTxO(ref ledger.OutputID) (*ledger.Output, bool)
	}

	// Resolver is the external constraint-resolution layer: it turns a
	// skeleton into an unbalanced draft plus its required-signer set
	Resolver interface {
		Resolve(sk *Skeleton, par *ledger.Params) (*ledger.Tx, []ledger.Address, error)
	}

	// StdResolver resolves intents structurally, one to one. It is the
	// minimal resolved form of the constraint layer: spends become inputs
	// (owners of non-script spends become required signers), payments
	// become outputs in declaration order, mints accumulate
	StdResolver struct {
		State Reader
	}
)

func NewStdResolver(state Reader) *StdResolver {
	return &StdResolver{State: state}
}

func (r *StdResolver) Resolve(sk *Skeleton, par *ledger.Params) (*ledger.Tx, []ledger.Address, error) {
	tx := ledger.NewTx()
	signers := make([]ledger.Address, 0, len(sk.Signers))
	addSigner := func(addr ledger.Address) {
		for _, a := range signers {
			if a == addr {
				return
			}
		}
		signers = append(signers, addr)
	}

	for _, intent := range sk.Spends {
		out, found := r.State.GetUTxO(intent.Ref)
		if !found {
			return nil, nil, fmt.Errorf("spend intent: output %s not found", intent.Ref.String())
		}
		if err := tx.AddInput(intent.Ref); err != nil {
			return nil, nil, err
		}
		if intent.Witness != nil {
			w := *intent.Witness
			w.Purpose = ledger.ScriptPurposeSpend
			w.Ref = intent.Ref
			tx.Scripts = append(tx.Scripts, w)
		} else {
			addSigner(out.Address)
		}
	}

	for _, p := range sk.Payments {
		out := ledger.NewOutput(p.Address, p.Value.Clone())
		if p.Datum != nil {
			if p.Inline {
				out.WithInlineDatum(p.Datum)
			} else {
				out.WithDatumHash(tx.AttachDatum(p.Datum))
			}
		}
		if err := tx.AddOutput(out); err != nil {
			return nil, nil, err
		}
	}

	for _, m := range sk.Mints {
		classes := make([]ledger.AssetClass, 0, len(m.Assets))
		for a, n := range m.Assets {
			if a.IsAda() {
				return nil, nil, fmt.Errorf("mint intent: ada is not mintable")
			}
			tx.Mint[a] += n
			classes = append(classes, a)
		}
		if m.Witness == nil {
			continue
		}
		// the policy witness runs once per minted asset class, each
		// invocation seeing the class it guards
		sort.Slice(classes, func(i, j int) bool {
			if classes[i].Policy != classes[j].Policy {
				return classes[i].Policy < classes[j].Policy
			}
			return classes[i].Name < classes[j].Name
		})
		for _, a := range classes {
			w := *m.Witness
			w.Purpose = ledger.ScriptPurposeMint
			w.Class = a
			tx.Scripts = append(tx.Scripts, w)
		}
	}

	tx.ValidRange = sk.ValidRange
	for _, addr := range sk.Signers {
		addSigner(addr)
	}
	return tx, signers, nil
}

// Generate turns the skeleton into an unbalanced draft: resolution through the
// resolver, then optional output reordering and floor adjustment. It never
// balances and never sets fees
func Generate(r Resolver, sk *Skeleton, par *ledger.Params) (*ledger.Tx, []ledger.Address, error) {
	tx, signers, err := r.Resolve(sk, par)
	if err != nil {
		return nil, nil, &ConstructionError{Err: err}
	}
	for _, addr := range signers {
		tx.AddRequiredSigner(addr)
	}
	if sk.Opts.ForceOutputOrdering {
		reorderOutputs(tx, sk.Payments)
	}
	if sk.Opts.AdjustUnbalancedTx {
		adjustToFloor(tx, par)
	}
	return tx, signers, nil
}

// reorderOutputs rearranges draft outputs to match the declared payment order.
// Outputs with no matching payment keep their relative order at the tail
func reorderOutputs(tx *ledger.Tx, payments []Payment) {
	remaining := make([]*ledger.Output, len(tx.Outputs))
	copy(remaining, tx.Outputs)
	ordered := make([]*ledger.Output, 0, len(tx.Outputs))
	for _, p := range payments {
		for i, out := range remaining {
			if out == nil || out.Address != p.Address || !out.Value.Equal(p.Value) {
				continue
			}
			ordered = append(ordered, out)
			remaining[i] = nil
			break
		}
	}
	for _, out := range remaining {
		if out != nil {
			ordered = append(ordered, out)
		}
	}
	tx.Outputs = ordered
}

// adjustToFloor raises below-floor outputs up to the minimum output value
func adjustToFloor(tx *ledger.Tx, par *ledger.Params) {
	for _, out := range tx.Outputs {
		if ada := out.Value.Ada(); ada < par.MinOutputValue {
			out.Value.AddAmount(ledger.AdaClass, par.MinOutputValue-ada)
		}
	}
}

// RunChecks verifies the skeleton's misc constraints against the final draft
func RunChecks(sk *Skeleton, tx *ledger.Tx) error {
	for i, check := range sk.Checks {
		if err := check(tx); err != nil {
			return errors.Wrapf(err, "skeleton check #%d", i)
		}
	}
	return nil
}
