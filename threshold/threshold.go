// Package threshold implements the quorum arithmetic spec.md §3/§6/§8
// names: integer weight thresholds of the form weight*denom > total*numer,
// used instead of floating point to avoid rounding (teacher's own
// core.Quorum uses math.Ceil(2/3*n) on floats; we follow Malachite's
// core-types/src/threshold.rs integer-exact version instead, since spec.md
// §8 pins the exact comparison as a testable property).
package threshold

import "fmt"

// VotingPower is the unit weights and totals are measured in.
type VotingPower = uint64

// Param is a numerator/denominator pair describing a fraction-of-total
// threshold.
type Param struct {
	Numerator   uint64
	Denominator uint64
}

// TwoFPlusOne is the quorum threshold: more than two thirds of the total
// weight.
var TwoFPlusOne = Param{Numerator: 2, Denominator: 3}

// FPlusOne is the honest threshold: more than one third of the total
// weight.
var FPlusOne = Param{Numerator: 1, Denominator: 3}

// IsMet reports whether weight crosses the threshold out of total,
// computed as weight*denominator > total*numerator to stay in integer
// arithmetic. Panics on overflow exactly as Malachite's checked_mul does,
// since a silent wraparound here would be a consensus-safety bug, not a
// recoverable error.
func (p Param) IsMet(weight, total VotingPower) bool {
	lhs, lhsOK := mulOverflows(weight, p.Denominator)
	rhs, rhsOK := mulOverflows(total, p.Numerator)
	if !lhsOK {
		panic("threshold: weight*denominator overflow")
	}
	if !rhsOK {
		panic("threshold: total*numerator overflow")
	}
	return lhs > rhs
}

// MinExpected returns the minimum weight that would meet the threshold for
// the given total. Exposed for diagnostics/tests, not load-bearing for
// consensus itself (Malachite core-types/src/threshold.rs min_expected).
func (p Param) MinExpected(total VotingPower) VotingPower {
	return 1 + (total*p.Numerator)/p.Denominator
}

func mulOverflows(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/a != b {
		return 0, false
	}
	return r, true
}

// Params bundles the quorum and honest thresholds a ValidatorSet is judged
// against, configurable per spec.md §6's threshold_params.{quorum,honest}.
type Params struct {
	Quorum Param
	Honest Param
}

// DefaultParams is 2f+1 / f+1, the standard BFT thresholds.
var DefaultParams = Params{Quorum: TwoFPlusOne, Honest: FPlusOne}

// Kind classifies what a vote/weight tally has reached: no quorum yet, a
// quorum but not for one value ("any"), a quorum for nil, or a quorum for a
// specific value. Mirrors Malachite's Threshold<ValueId> enum.
type Kind uint8

const (
	Unreached Kind = iota
	Any
	NilKind
	ValueKind
)

func (k Kind) String() string {
	switch k {
	case Unreached:
		return "unreached"
	case Any:
		return "any"
	case NilKind:
		return "nil"
	case ValueKind:
		return "value"
	default:
		return fmt.Sprintf("unknown-threshold-kind(%d)", k)
	}
}
