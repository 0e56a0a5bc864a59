package txbuilder

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ptsanev/mockledger/ledger"
)

type (
	// SpendIntent names a UTxO to consume. Script-locked outputs carry the
	// resolved witness that will run in phase 2
	SpendIntent struct {
		Ref     ledger.OutputID
		Witness *ledger.ScriptWitness
	}

	// Payment is one declared output, in declaration order
	Payment struct {
		Address ledger.Address
		Value   ledger.Value
		Datum   *ledger.Datum
		Inline  bool
	}

	// MintIntent mints or burns under one policy, guarded by the policy witness
	MintIntent struct {
		Assets  ledger.Mint
		Witness *ledger.ScriptWitness
	}

	// Skeleton is the high-level description of a transaction before
	// resolution, balancing and signing
	Skeleton struct {
		Spends      []SpendIntent
		Payments    []Payment
		Mints       []MintIntent
		ValidRange  *ledger.SlotRange
		Signers     []ledger.Address
		Checks      []func(tx *ledger.Tx) error
		Opts        Options
	}

	CollateralMode byte

	OutputAdjustment byte

	// Options steer the submission pipeline for one skeleton
	Options struct {
		// AutoSlotIncrease advances the slot clock by one after a submission
		AutoSlotIncrease bool
		// Balance enables the balancing stage altogether
		Balance bool
		// AdjustUnbalancedTx raises below-floor payment outputs to the floor
		// before balancing
		AdjustUnbalancedTx bool
		CollateralMode     CollateralMode
		// CollateralRefs are used verbatim under CollateralExplicit
		CollateralRefs mapset.Set[ledger.OutputID]
		// OutputAdjustment controls whether change may be folded into an
		// existing fee-payer output
		OutputAdjustment OutputAdjustment
		// ForceOutputOrdering reorders draft outputs to the declared payment order
		ForceOutputOrdering bool
		// ModifyPre and ModifyPost are raw transformation hooks applied to the
		// draft before and after balancing. Escape hatch for test scenarios
		ModifyPre  func(tx *ledger.Tx) *ledger.Tx
		ModifyPost func(tx *ledger.Tx) *ledger.Tx
	}
)

const (
	CollateralAuto = CollateralMode(iota)
	CollateralExplicit
)

const (
	AdjustExisting = OutputAdjustment(iota)
	DontAdjust
)

func DefaultOptions() Options {
	return Options{
		AutoSlotIncrease: true,
		Balance:          true,
		CollateralMode:   CollateralAuto,
		OutputAdjustment: AdjustExisting,
	}
}

func NewSkeleton() *Skeleton {
	return &Skeleton{
		Spends:   make([]SpendIntent, 0),
		Payments: make([]Payment, 0),
		Mints:    make([]MintIntent, 0),
		Signers:  make([]ledger.Address, 0),
		Checks:   make([]func(tx *ledger.Tx) error, 0),
		Opts:     DefaultOptions(),
	}
}

func (sk *Skeleton) WithSpend(ref ledger.OutputID, witness ...*ledger.ScriptWitness) *Skeleton {
	intent := SpendIntent{Ref: ref}
	if len(witness) > 0 {
		intent.Witness = witness[0]
	}
	sk.Spends = append(sk.Spends, intent)
	return sk
}

func (sk *Skeleton) WithPayment(addr ledger.Address, v ledger.Value) *Skeleton {
	sk.Payments = append(sk.Payments, Payment{Address: addr, Value: v})
	return sk
}

// WithPaymentDatum declares a payment carrying a datum by hash
func (sk *Skeleton) WithPaymentDatum(addr ledger.Address, v ledger.Value, d *ledger.Datum) *Skeleton {
	sk.Payments = append(sk.Payments, Payment{Address: addr, Value: v, Datum: d})
	return sk
}

// WithPaymentInline declares a payment carrying an inline datum
func (sk *Skeleton) WithPaymentInline(addr ledger.Address, v ledger.Value, d *ledger.Datum) *Skeleton {
	sk.Payments = append(sk.Payments, Payment{Address: addr, Value: v, Datum: d, Inline: true})
	return sk
}

func (sk *Skeleton) WithMint(assets ledger.Mint, witness *ledger.ScriptWitness) *Skeleton {
	sk.Mints = append(sk.Mints, MintIntent{Assets: assets, Witness: witness})
	return sk
}

func (sk *Skeleton) WithValidRange(from, until uint64) *Skeleton {
	sk.ValidRange = &ledger.SlotRange{From: from, Until: until}
	return sk
}

func (sk *Skeleton) WithSigner(addr ledger.Address) *Skeleton {
	sk.Signers = append(sk.Signers, addr)
	return sk
}

// WithCheck adds a misc structural constraint verified after balancing
func (sk *Skeleton) WithCheck(check func(tx *ledger.Tx) error) *Skeleton {
	sk.Checks = append(sk.Checks, check)
	return sk
}

func (sk *Skeleton) WithOptions(opts Options) *Skeleton {
	sk.Opts = opts
	return sk
}
