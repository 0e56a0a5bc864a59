package ledger

import (
	"time"

	"github.com/lunfardo314/unitrie/common"
)

// Params are the protocol parameters the pipeline works against
type Params struct {
	// MinFee is the flat component of the transaction fee
	MinFee uint64
	// FeePerByte prices the estimated serialized size
	FeePerByte uint64
	// MinOutputValue is the ada floor every produced output must clear
	MinOutputValue uint64
	// CollateralPercent of the minimal fee must be set aside as collateral
	CollateralPercent uint64
	// MaxCollateralInputs bounds automatic collateral selection
	MaxCollateralInputs int
	// MaxTxSize bounds the estimated transaction size
	MaxTxSize int
	// SlotDuration and Start map the slot clock to wall time
	SlotDuration time.Duration
	Start        time.Time
}

// DefaultParams returns the parameter set used by tests and examples.
// There is no hidden global: every constructor takes its params explicitly
func DefaultParams() *Params {
	return &Params{
		MinFee:              155_381,
		FeePerByte:          44,
		MinOutputValue:      1 * LovelacePerAda,
		CollateralPercent:   150,
		MaxCollateralInputs: 3,
		MaxTxSize:           16_384,
		SlotDuration:        time.Second,
		Start:               time.Unix(1_596_059_091, 0).UTC(),
	}
}

// FeeFor is the protocol fee of the transaction assuming numSigners signatures
func (p *Params) FeeFor(tx *Tx, numSigners int) uint64 {
	return p.MinFee + p.FeePerByte*uint64(tx.EstimatedSize(numSigners))
}

// CollateralBase is the minimal fee the collateral percentage applies to.
// Defaults to 2 ada when the parameter set carries no minimal fee
func (p *Params) CollateralBase() uint64 {
	if p.MinFee == 0 {
		return 2 * LovelacePerAda
	}
	return p.MinFee
}

// CollateralThreshold is ceil(CollateralPercent% of the collateral base)
func (p *Params) CollateralThreshold() uint64 {
	return (p.CollateralPercent*p.CollateralBase() + 99) / 100
}

// SlotAt converts wall time to the slot containing it. Times before Start map to slot 0
func (p *Params) SlotAt(t time.Time) uint64 {
	if !t.After(p.Start) {
		return 0
	}
	return uint64(t.Sub(p.Start) / p.SlotDuration)
}

// TimeAt is the wall time at the beginning of the slot
func (p *Params) TimeAt(slot uint64) time.Time {
	return p.Start.Add(time.Duration(slot) * p.SlotDuration)
}

// Env is the read-only environment of one pipeline run: protocol parameters
// plus the ordered, non-empty signer list. The head signer is the default fee payer
type Env struct {
	Params  *Params
	Signers []*Wallet
}

func NewEnv(par *Params, signers ...*Wallet) *Env {
	common.Assert(len(signers) > 0, "NewEnv: at least one signer required")
	return &Env{
		Params:  par,
		Signers: signers,
	}
}

// FeePayer is the head of the signer list
func (e *Env) FeePayer() *Wallet {
	return e.Signers[0]
}

// WithSigners returns a copy of the environment with the signer list replaced.
// The original is never mutated: per-call overrides build a new Env
func (e *Env) WithSigners(signers ...*Wallet) *Env {
	return NewEnv(e.Params, signers...)
}
