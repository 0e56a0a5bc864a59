package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/lunfardo314/unitrie/common"
	"golang.org/x/crypto/blake2b"
)

// caps inherited from the wire format: one byte indexes inputs and outputs
const (
	MaxInputs  = 256
	MaxOutputs = 256
)

type (
	// SlotRange is an inclusive validity interval. Until == 0 means no upper bound
	SlotRange struct {
		From  uint64
		Until uint64
	}

	ScriptPurpose byte

	// ScriptContext is what a phase-2 script sees when it runs
	ScriptContext struct {
		Tx       *Tx
		Slot     uint64
		Ref      OutputID // consumed output reference, spend purpose only
		Consumed *Output  // spend purpose only
		Datum    *Datum   // resolved datum of the consumed output, may be nil
		Class    AssetClass
	}

	// ScriptWitness is the resolved, executable form of a validator script.
	// It is attached by the constraint resolver and run during phase 2
	ScriptWitness struct {
		Purpose  ScriptPurpose
		Ref      OutputID   // spend purpose: which input it guards
		Class    AssetClass // mint purpose: which policy it guards
		Validate func(ctx *ScriptContext) error
	}

	Signature struct {
		PublicKey ed25519.PublicKey
		Signature []byte
	}

	// Tx is a transaction draft. It starts unbalanced and without fee;
	// balancing, fee resolution and signing bring it to its final form
	Tx struct {
		Inputs          []OutputID
		Collateral      []OutputID
		Outputs         []*Output
		Mint            Mint
		Fee             uint64
		ValidRange      *SlotRange
		RequiredSigners []Address
		Scripts         []ScriptWitness
		Datums          map[DatumHash]*Datum // witness set for by-hash datums
		Signatures      []Signature
	}
)

const (
	ScriptPurposeSpend = ScriptPurpose(iota)
	ScriptPurposeMint
)

func (r *SlotRange) Contains(slot uint64) bool {
	if r == nil {
		return true
	}
	if slot < r.From {
		return false
	}
	return r.Until == 0 || slot <= r.Until
}

func NewTx() *Tx {
	return &Tx{
		Inputs:          make([]OutputID, 0),
		Collateral:      make([]OutputID, 0),
		Outputs:         make([]*Output, 0),
		Mint:            make(Mint),
		RequiredSigners: make([]Address, 0),
		Scripts:         make([]ScriptWitness, 0),
		Datums:          make(map[DatumHash]*Datum),
		Signatures:      make([]Signature, 0),
	}
}

func (tx *Tx) AddInput(ref OutputID) error {
	if len(tx.Inputs) >= MaxInputs {
		return fmt.Errorf("too many consumed outputs")
	}
	tx.Inputs = append(tx.Inputs, ref)
	return nil
}

func (tx *Tx) AddOutput(out *Output) error {
	if len(tx.Outputs) >= MaxOutputs {
		return fmt.Errorf("too many produced outputs")
	}
	tx.Outputs = append(tx.Outputs, out)
	return nil
}

// HasInput returns true if the draft already consumes the reference
func (tx *Tx) HasInput(ref OutputID) bool {
	for _, in := range tx.Inputs {
		if in == ref {
			return true
		}
	}
	return false
}

// HasScripts returns true if phase-2 execution will run at all,
// i.e. whether the transaction needs collateral
func (tx *Tx) HasScripts() bool {
	return len(tx.Scripts) > 0
}

// AddRequiredSigner appends the address unless it is already required
func (tx *Tx) AddRequiredSigner(addr Address) {
	for _, a := range tx.RequiredSigners {
		if a == addr {
			return
		}
	}
	tx.RequiredSigners = append(tx.RequiredSigners, addr)
}

// AttachDatum puts the datum body into the witness set and returns its hash
func (tx *Tx) AttachDatum(d *Datum) DatumHash {
	h := d.Hash()
	tx.Datums[h] = d
	return h
}

func (tx *Tx) Clone() *Tx {
	ret := &Tx{
		Inputs:          append(make([]OutputID, 0, len(tx.Inputs)), tx.Inputs...),
		Collateral:      append(make([]OutputID, 0, len(tx.Collateral)), tx.Collateral...),
		Outputs:         make([]*Output, 0, len(tx.Outputs)),
		Mint:            tx.Mint.Clone(),
		Fee:             tx.Fee,
		RequiredSigners: append(make([]Address, 0, len(tx.RequiredSigners)), tx.RequiredSigners...),
		Scripts:         append(make([]ScriptWitness, 0, len(tx.Scripts)), tx.Scripts...),
		Datums:          make(map[DatumHash]*Datum, len(tx.Datums)),
		Signatures:      append(make([]Signature, 0, len(tx.Signatures)), tx.Signatures...),
	}
	for _, o := range tx.Outputs {
		ret.Outputs = append(ret.Outputs, o.Clone())
	}
	for h, d := range tx.Datums {
		ret.Datums[h] = d
	}
	if tx.ValidRange != nil {
		r := *tx.ValidRange
		ret.ValidRange = &r
	}
	return ret
}

// EssenceBytes is the canonical serialization of everything the signatures
// commit to: inputs, collateral, outputs, mint, fee, validity and signers
func (tx *Tx) EssenceBytes() []byte {
	ret := make([]byte, 0, 256)
	for _, in := range tx.Inputs {
		ret = common.Concat(ret, in[:])
	}
	for _, in := range tx.Collateral {
		ret = common.Concat(ret, in[:])
	}
	for _, o := range tx.Outputs {
		ret = common.Concat(ret, o.Bytes())
	}
	mintClasses := make([]AssetClass, 0, len(tx.Mint))
	for a := range tx.Mint {
		mintClasses = append(mintClasses, a)
	}
	sort.Slice(mintClasses, func(i, j int) bool {
		if mintClasses[i].Policy != mintClasses[j].Policy {
			return mintClasses[i].Policy < mintClasses[j].Policy
		}
		return mintClasses[i].Name < mintClasses[j].Name
	})
	for _, a := range mintClasses {
		var amount [8]byte
		binary.BigEndian.PutUint64(amount[:], uint64(tx.Mint[a]))
		ret = common.Concat(ret, []byte(a.Policy), []byte(a.Name), amount[:])
	}
	var fixed [24]byte
	binary.BigEndian.PutUint64(fixed[:8], tx.Fee)
	if tx.ValidRange != nil {
		binary.BigEndian.PutUint64(fixed[8:16], tx.ValidRange.From)
		binary.BigEndian.PutUint64(fixed[16:24], tx.ValidRange.Until)
	}
	ret = common.Concat(ret, fixed[:])
	for _, a := range tx.RequiredSigners {
		ret = common.Concat(ret, []byte(a))
	}
	return ret
}

// ID is the transaction identifier: hash of the essence
func (tx *Tx) ID() (ret TransactionID) {
	h := blake2b.Sum256(tx.EssenceBytes())
	copy(ret[:], h[:])
	return
}

// Sign appends an ed25519 signature over the essence
func (tx *Tx) Sign(privKey ed25519.PrivateKey) {
	pubKey := privKey.Public().(ed25519.PublicKey)
	tx.Signatures = append(tx.Signatures, Signature{
		PublicKey: pubKey,
		Signature: ed25519.Sign(privKey, tx.EssenceBytes()),
	})
}

// SignedBy checks that some attached signature belongs to the address
// and verifies against the essence
func (tx *Tx) SignedBy(addr Address) bool {
	essence := tx.EssenceBytes()
	for _, sig := range tx.Signatures {
		if AddressFromPublicKey(sig.PublicKey) != addr {
			continue
		}
		if ed25519.Verify(sig.PublicKey, essence, sig.Signature) {
			return true
		}
	}
	return false
}

// serialized size model used for fee calculation. The estimate only depends
// on structure counts, never on amounts, so the fee fixpoint is stable
const (
	sizeTxBase     = 16
	sizeInput      = OutputIDLength + 3
	sizeOutputBase = 40
	sizeAssetEntry = 44
	sizeDatumHash  = DatumHashLength
	sizeSignature  = 96
	sizeSigner     = 32
)

// EstimatedSize is the deterministic serialized-size estimate of the
// transaction with numSigners signatures attached
func (tx *Tx) EstimatedSize(numSigners int) int {
	ret := sizeTxBase
	ret += (len(tx.Inputs) + len(tx.Collateral)) * sizeInput
	for _, o := range tx.Outputs {
		ret += sizeOutputBase + len(o.Value)*sizeAssetEntry
		if o.DatumHash != nil {
			ret += sizeDatumHash
		}
		if o.Inline != nil {
			ret += len(o.Inline.Raw)
		}
	}
	ret += len(tx.Mint) * sizeAssetEntry
	ret += len(tx.RequiredSigners) * sizeSigner
	for _, d := range tx.Datums {
		ret += len(d.Raw)
	}
	if n := len(tx.Signatures); n > numSigners {
		numSigners = n
	}
	ret += numSigners * sizeSignature
	return ret
}

// ConsumedValue sums the values of the transaction inputs, resolved through the getter
func (tx *Tx) ConsumedValue(getUTXO func(ref OutputID) (*Output, bool)) (Value, error) {
	ret := make(Value)
	for _, in := range tx.Inputs {
		out, found := getUTXO(in)
		if !found {
			return nil, fmt.Errorf("consumed output %s not found", in.String())
		}
		ret.Add(out.Value)
	}
	return ret, nil
}

// ProducedValue sums output values plus the fee
func (tx *Tx) ProducedValue() Value {
	ret := NewValue(tx.Fee)
	for _, o := range tx.Outputs {
		ret.Add(o.Value)
	}
	return ret
}

func (tx *Tx) String() string {
	var buf bytes.Buffer
	txid := tx.ID()
	fmt.Fprintf(&buf, "tx %s, fee %d, %d inputs, %d outputs\n", txid.String()[:12], tx.Fee, len(tx.Inputs), len(tx.Outputs))
	for _, in := range tx.Inputs {
		fmt.Fprintf(&buf, "   in:  %s\n", in.String())
	}
	for _, o := range tx.Outputs {
		fmt.Fprintf(&buf, "   out: %s\n", o.String())
	}
	return buf.String()
}
