package mockchain

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ptsanev/mockledger/ledger"
	"github.com/ptsanev/mockledger/ledger/balancing"
	"github.com/ptsanev/mockledger/ledger/state"
	"github.com/ptsanev/mockledger/ledger/txbuilder"
)

// MockChain is the deterministic in-process ledger simulator: it owns one
// chain state and runs the full submission pipeline per transaction skeleton
type MockChain struct {
	state    *state.ChainState
	env      *ledger.Env
	resolver txbuilder.Resolver
	log      zerolog.Logger
}

type Option func(m *MockChain)

// WithResolver replaces the built-in structural resolver with an external
// constraint-resolution layer
func WithResolver(r txbuilder.Resolver) Option {
	return func(m *MockChain) {
		m.resolver = r
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(m *MockChain) {
		m.log = log
	}
}

// WithTrace enables debug logging of the pipeline to the console
func WithTrace() Option {
	return func(m *MockChain) {
		m.log = zerolog.New(zerolog.NewConsoleWriter()).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}
}

// New creates a simulator over a genesis state seeded from the initial
// distribution. Environment and distribution are always explicit, there is
// no canonical hidden default
func New(env *ledger.Env, dist state.InitialDistribution, opts ...Option) *MockChain {
	ret := &MockChain{
		state: state.New(dist),
		env:   env,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.resolver == nil {
		ret.resolver = txbuilder.NewStdResolver(ret)
	}
	return ret
}

const defaultWalletAda = 100

// NewDefault creates a simulator with numWallets deterministic wallets, each
// funded with a single 100-ada output, all of them configured as signers
func NewDefault(numWallets int, opts ...Option) (*MockChain, []*ledger.Wallet) {
	wallets := make([]*ledger.Wallet, numWallets)
	dist := make(state.InitialDistribution, numWallets)
	for i := range wallets {
		wallets[i] = ledger.WalletWithIndex(uint16(i + 1))
		dist[i] = state.Allocation{
			Address: wallets[i].Addr,
			Bags:    []ledger.Value{ledger.Ada(defaultWalletAda)},
		}
	}
	return New(ledger.NewEnv(ledger.DefaultParams(), wallets...), dist, opts...), wallets
}

// GetUTxO makes the simulator a resolution reader over its current state
func (m *MockChain) GetUTxO(ref ledger.OutputID) (*ledger.Output, bool) {
	return m.state.GetUTxO(ref)
}

func (m *MockChain) Env() *ledger.Env {
	return m.env
}

func (m *MockChain) State() *state.ChainState {
	return m.state
}

// Submit runs the skeleton through the full pipeline with the configured
// environment: the head signer pays
func (m *MockChain) Submit(sk *txbuilder.Skeleton) (ledger.TransactionID, error) {
	return m.submit(m.env, sk)
}

// SubmitAs overrides the fee payer for this call. Every configured signer
// still signs; only the signer order changes
func (m *MockChain) SubmitAs(payer *ledger.Wallet, sk *txbuilder.Skeleton) (ledger.TransactionID, error) {
	signers := make([]*ledger.Wallet, 0, len(m.env.Signers)+1)
	signers = append(signers, payer)
	for _, w := range m.env.Signers {
		if w.Addr != payer.Addr {
			signers = append(signers, w)
		}
	}
	return m.submit(m.env.WithSigners(signers...), sk)
}

// submit is the pipeline: generate, reorder/transform, balance with fee
// fixpoint, select collateral, apply change, sign, validate, advance the clock.
// Every error short-circuits; state changes happen only inside Apply
func (m *MockChain) submit(env *ledger.Env, sk *txbuilder.Skeleton) (ledger.TransactionID, error) {
	par := env.Params
	payer := env.FeePayer()

	tx, _, err := txbuilder.Generate(m.resolver, sk, par)
	if err != nil {
		return ledger.TransactionID{}, err
	}
	if sk.Opts.ModifyPre != nil {
		tx = sk.Opts.ModifyPre(tx)
	}

	if sk.Opts.Balance {
		candidates := m.state.UTxOsByAddress(payer.Addr)
		balanced, res, err := balancing.ResolveFeeAndBalance(m.log, tx, m, candidates, env)
		if err != nil {
			return ledger.TransactionID{}, err
		}
		tx = balanced
		if res.Selected.Cardinality() > 0 {
			tx.AddRequiredSigner(payer.Addr)
		}
		if err = balancing.SelectCollateral(tx, candidates, par, m.explicitCollateral(sk)); err != nil {
			return ledger.TransactionID{}, err
		}
		adjust := sk.Opts.OutputAdjustment == txbuilder.AdjustExisting
		if err = balancing.ApplyBalance(tx, res, payer.Addr, par, adjust); err != nil {
			return ledger.TransactionID{}, err
		}
	}

	if err = txbuilder.RunChecks(sk, tx); err != nil {
		return ledger.TransactionID{}, err
	}
	if sk.Opts.ModifyPost != nil {
		tx = sk.Opts.ModifyPost(tx)
	}

	for _, signer := range env.Signers {
		tx.Sign(signer.PrivateKey)
	}

	txid, err := m.state.Apply(tx, env)
	if err != nil {
		m.log.Debug().Str("tx", txid.String()[:12]).Err(err).Msg("transaction rejected")
		return txid, err
	}
	m.log.Debug().Str("tx", txid.String()[:12]).Uint64("fee", tx.Fee).
		Uint64("slot", m.state.Slot()).Msg("transaction accepted")
	if sk.Opts.AutoSlotIncrease {
		m.state.AdvanceSlot()
	}
	return txid, nil
}

// explicitCollateral flattens the explicit collateral option into a
// deterministic slice; nil means automatic selection
func (m *MockChain) explicitCollateral(sk *txbuilder.Skeleton) []ledger.OutputID {
	if sk.Opts.CollateralMode != txbuilder.CollateralExplicit || sk.Opts.CollateralRefs == nil {
		return nil
	}
	ret := sk.Opts.CollateralRefs.ToSlice()
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Less(ret[j])
	})
	return ret
}

func (m *MockChain) CurrentSlot() uint64 {
	return m.state.Slot()
}

// AwaitSlot monotonically raises the slot clock to at least s and returns the
// resulting slot. It models a test advancing simulated time and never blocks
func (m *MockChain) AwaitSlot(s uint64) uint64 {
	return m.state.SetSlot(s)
}

// AwaitTime raises the slot clock to the slot containing t and returns the
// resulting simulated time
func (m *MockChain) AwaitTime(t time.Time) time.Time {
	return m.env.Params.TimeAt(m.state.SetSlot(m.env.Params.SlotAt(t)))
}

// UTxOsAt returns the outputs owned by the address whose resolved datum
// satisfies the predicate. A nil predicate selects everything; outputs
// without a datum are offered to the predicate as nil
func (m *MockChain) UTxOsAt(addr ledger.Address, pred func(d *ledger.Datum) bool) ([]state.UTxO, error) {
	all := m.state.UTxOsByAddress(addr)
	if pred == nil {
		return all, nil
	}
	ret := make([]state.UTxO, 0, len(all))
	for _, u := range all {
		d, err := m.state.DatumOf(u.ID)
		if err != nil {
			return nil, err
		}
		if pred(d) {
			ret = append(ret, u)
		}
	}
	return ret, nil
}

// DatumAt resolves the datum attached to the referenced output
func (m *MockChain) DatumAt(ref ledger.OutputID) (*ledger.Datum, error) {
	return m.state.DatumOf(ref)
}

// Balance sums everything the address currently holds
func (m *MockChain) Balance(addr ledger.Address) ledger.Value {
	ret := make(ledger.Value)
	for _, u := range m.state.UTxOsByAddress(addr) {
		ret.Add(u.Output.Value)
	}
	return ret
}

func (m *MockChain) NumUTxOs(addr ledger.Address) int {
	return len(m.state.UTxOsByAddress(addr))
}

// Projection is the read-only display view of the whole state
func (m *MockChain) Projection() map[ledger.Address][]state.Holding {
	return m.state.Projection()
}
