package ledger

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/lunfardo314/unitrie/common"
	"golang.org/x/crypto/blake2b"
)

const (
	TransactionIDLength = 32
	OutputIDLength      = TransactionIDLength + 1
	DatumHashLength     = 32
)

type (
	TransactionID [TransactionIDLength]byte

	// OutputID is the reference of one UTxO: origin transaction id plus output index
	OutputID [OutputIDLength]byte

	DatumHash [DatumHashLength]byte

	// Address is the blake2b hash of an ed25519 public key,
	// stored as a string so it can key maps and sets
	Address string
)

// GenesisTransactionID is the all-0 id under which the initial distribution is booked
var GenesisTransactionID TransactionID

func TransactionIDFromBytes(data []byte) (ret TransactionID, err error) {
	if len(data) != TransactionIDLength {
		err = errors.New("TransactionIDFromBytes: wrong data length")
		return
	}
	copy(ret[:], data)
	return
}

func (txid TransactionID) Bytes() []byte {
	return txid[:]
}

func (txid TransactionID) String() string {
	return hex.EncodeToString(txid[:])
}

func NewOutputID(txid TransactionID, idx byte) (ret OutputID) {
	copy(ret[:TransactionIDLength], txid[:])
	ret[TransactionIDLength] = idx
	return
}

func OutputIDFromBytes(data []byte) (ret OutputID, err error) {
	if len(data) != OutputIDLength {
		err = errors.New("OutputIDFromBytes: wrong data length")
		return
	}
	copy(ret[:], data)
	return
}

func (oid OutputID) TransactionID() (ret TransactionID) {
	copy(ret[:], oid[:TransactionIDLength])
	return
}

func (oid OutputID) Index() byte {
	return oid[TransactionIDLength]
}

func (oid OutputID) Bytes() []byte {
	return oid[:]
}

func (oid OutputID) String() string {
	txid := oid.TransactionID()
	return fmt.Sprintf("[%d]%s", oid.Index(), txid.String())
}

// Less is the canonical lexicographic order of output references
func (oid OutputID) Less(other OutputID) bool {
	return bytes.Compare(oid[:], other[:]) < 0
}

func AddressFromPublicKey(pubKey []byte) Address {
	h := blake2b.Sum256(pubKey)
	return Address(h[:])
}

func (a Address) Bytes() []byte {
	return []byte(a)
}

func (a Address) String() string {
	return "addr/" + hex.EncodeToString([]byte(a))
}

// Short returns an abbreviated form for logs
func (a Address) Short() string {
	s := hex.EncodeToString([]byte(a))
	if len(s) > 12 {
		s = s[:12] + ".."
	}
	return "addr/" + s
}

// Datum is structured data attached to an output. Raw bytes are authoritative
// and hashed; Decoded, when present, is the Go value the raw bytes stand for
// and is used for display and typed queries
type Datum struct {
	Raw     []byte
	Decoded any
}

func NewDatum(raw []byte, decoded ...any) *Datum {
	ret := &Datum{Raw: raw}
	if len(decoded) > 0 {
		ret.Decoded = decoded[0]
	}
	return ret
}

func (d *Datum) Hash() (ret DatumHash) {
	h := blake2b.Sum256(d.Raw)
	copy(ret[:], h[:])
	return
}

func (d *Datum) Clone() *Datum {
	if d == nil {
		return nil
	}
	raw := make([]byte, len(d.Raw))
	copy(raw, d.Raw)
	return &Datum{Raw: raw, Decoded: d.Decoded}
}

// Display renders the decoded value if known, otherwise the raw bytes
func (d *Datum) Display() string {
	if d.Decoded != nil {
		return strings.TrimSpace(spew.Sdump(d.Decoded))
	}
	return "0x" + hex.EncodeToString(d.Raw)
}

func (h DatumHash) String() string {
	return hex.EncodeToString(h[:])
}

// Output is one UTxO entry: owner, multi-asset value and an optional datum,
// attached either by hash or inline
type Output struct {
	Address   Address
	Value     Value
	DatumHash *DatumHash
	Inline    *Datum
}

func NewOutput(addr Address, v Value) *Output {
	return &Output{Address: addr, Value: v}
}

// WithDatumHash attaches a datum by hash. The datum body itself travels
// in the transaction witness set
func (o *Output) WithDatumHash(h DatumHash) *Output {
	o.DatumHash = &h
	return o
}

func (o *Output) WithInlineDatum(d *Datum) *Output {
	o.Inline = d
	return o
}

func (o *Output) HasDatum() bool {
	return o.DatumHash != nil || o.Inline != nil
}

func (o *Output) IsAdaOnly() bool {
	return o.Value.IsAdaOnly()
}

func (o *Output) Clone() *Output {
	if o == nil {
		return nil
	}
	ret := &Output{
		Address: o.Address,
		Value:   o.Value.Clone(),
		Inline:  o.Inline.Clone(),
	}
	if o.DatumHash != nil {
		h := *o.DatumHash
		ret.DatumHash = &h
	}
	return ret
}

// Bytes is the canonical serialization used for essence hashing
func (o *Output) Bytes() []byte {
	var numAssets [2]byte
	binary.BigEndian.PutUint16(numAssets[:], uint16(len(o.Value)))
	ret := common.Concat([]byte(o.Address), numAssets[:])
	for _, a := range o.Value.sortedClasses() {
		var amount [8]byte
		binary.BigEndian.PutUint64(amount[:], o.Value[a])
		ret = common.Concat(ret, []byte(a.Policy), []byte(a.Name), amount[:])
	}
	if o.DatumHash != nil {
		ret = common.Concat(ret, o.DatumHash[:])
	}
	if o.Inline != nil {
		ret = common.Concat(ret, o.Inline.Raw)
	}
	return ret
}

func (o *Output) String() string {
	ret := fmt.Sprintf("%s: %s", o.Address.Short(), o.Value.String())
	if o.DatumHash != nil {
		ret += fmt.Sprintf(" datum(#%s)", o.DatumHash.String()[:8])
	}
	if o.Inline != nil {
		ret += " datum(inline)"
	}
	return ret
}
