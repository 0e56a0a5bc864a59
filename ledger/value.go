package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lunfardo314/unitrie/common"
)

// AssetClass identifies a native asset kind. The zero value is ada.
type AssetClass struct {
	Policy string
	Name   string
}

// AdaClass is the asset class of the base currency
var AdaClass = AssetClass{}

const LovelacePerAda = 1_000_000

func (a AssetClass) IsAda() bool {
	return a == AdaClass
}

func (a AssetClass) String() string {
	if a.IsAda() {
		return "ada"
	}
	return a.Policy + "." + a.Name
}

// Value is a non-negative multi-asset bag: asset class -> amount.
// Zero entries are never stored
type Value map[AssetClass]uint64

// NewValue returns an ada-only value of n base units
func NewValue(n uint64) Value {
	return Value{}.AddAmount(AdaClass, n)
}

// Ada returns n ada expressed in base units
func Ada(n uint64) Value {
	return NewValue(n * LovelacePerAda)
}

func (v Value) Clone() Value {
	ret := make(Value, len(v))
	for a, n := range v {
		ret[a] = n
	}
	return ret
}

// AddAmount mutates the receiver and returns it for chaining
func (v Value) AddAmount(a AssetClass, n uint64) Value {
	if n == 0 {
		return v
	}
	v[a] += n
	return v
}

// Add mutates the receiver and returns it for chaining
func (v Value) Add(other Value) Value {
	for a, n := range other {
		v.AddAmount(a, n)
	}
	return v
}

// MustSub subtracts other from the receiver in place. Panics if any
// asset would go negative, so it is only for amounts already known to cover
func (v Value) MustSub(other Value) Value {
	for a, n := range other {
		have := v[a]
		common.Assert(have >= n, "value underflow for asset %s: %d < %d", a.String(), have, n)
		if have == n {
			delete(v, a)
		} else {
			v[a] = have - n
		}
	}
	return v
}

func (v Value) AmountOf(a AssetClass) uint64 {
	return v[a]
}

// Ada returns the amount of the base currency, in base units
func (v Value) Ada() uint64 {
	return v[AdaClass]
}

func (v Value) IsZero() bool {
	for _, n := range v {
		if n > 0 {
			return false
		}
	}
	return true
}

// IsAdaOnly returns true if the value carries no native assets
func (v Value) IsAdaOnly() bool {
	for a, n := range v {
		if !a.IsAda() && n > 0 {
			return false
		}
	}
	return true
}

// Covers returns true if the receiver has at least as much of every asset as need
func (v Value) Covers(need Value) bool {
	for a, n := range need {
		if v[a] < n {
			return false
		}
	}
	return true
}

// DeficitVs treats the receiver as the required value and returns
// per-asset max(0, need-have)
func (v Value) DeficitVs(have Value) Value {
	ret := make(Value)
	for a, n := range v {
		if h := have[a]; h < n {
			ret[a] = n - h
		}
	}
	return ret
}

// SurplusVs treats the receiver as the available value and returns
// per-asset max(0, have-need)
func (v Value) SurplusVs(need Value) Value {
	ret := make(Value)
	for a, n := range v {
		if h := need[a]; h < n {
			ret[a] = n - h
		}
	}
	return ret
}

func (v Value) Equal(other Value) bool {
	return v.Covers(other) && other.Covers(v)
}

// sortedClasses returns the asset classes of the value in a deterministic order,
// ada first
func (v Value) sortedClasses() []AssetClass {
	ret := make([]AssetClass, 0, len(v))
	for a := range v {
		ret = append(ret, a)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].IsAda() != ret[j].IsAda() {
			return ret[i].IsAda()
		}
		if ret[i].Policy != ret[j].Policy {
			return ret[i].Policy < ret[j].Policy
		}
		return ret[i].Name < ret[j].Name
	})
	return ret
}

func (v Value) String() string {
	if len(v) == 0 {
		return "(empty)"
	}
	parts := make([]string, 0, len(v))
	for _, a := range v.sortedClasses() {
		parts = append(parts, fmt.Sprintf("%d %s", v[a], a.String()))
	}
	return strings.Join(parts, ", ")
}

// Mint is a signed multi-asset delta: positive amounts are minted,
// negative amounts are burned. Ada is never mintable
type Mint map[AssetClass]int64

func (m Mint) Clone() Mint {
	ret := make(Mint, len(m))
	for a, n := range m {
		ret[a] = n
	}
	return ret
}

func (m Mint) IsZero() bool {
	for _, n := range m {
		if n != 0 {
			return false
		}
	}
	return true
}

// Minted returns the positive side of the delta as a Value
func (m Mint) Minted() Value {
	ret := make(Value)
	for a, n := range m {
		if n > 0 {
			ret[a] = uint64(n)
		}
	}
	return ret
}

// Burned returns the absolute negative side of the delta as a Value
func (m Mint) Burned() Value {
	ret := make(Value)
	for a, n := range m {
		if n < 0 {
			ret[a] = uint64(-n)
		}
	}
	return ret
}
