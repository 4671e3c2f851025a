package signal

import (
	"math"
	"sort"
)

// MoreSignificant reports whether a ranks before b for signals of type t.
// Fold changes rank by magnitude, probabilities ascending, everything else
// descending. NaN always ranks last.
func MoreSignificant(a, b float64, t Type) bool {
	switch {
	case math.IsNaN(a):
		return false
	case math.IsNaN(b):
		return true
	}
	switch {
	case t == FoldChange:
		return math.Abs(a) > math.Abs(b)
	case t.IsProbability():
		return a < b
	default:
		return a > b
	}
}

// SortBySignificance sorts values in place, most significant first.
func SortBySignificance(values []float64, t Type) {
	sort.SliceStable(values, func(i, j int) bool {
		return MoreSignificant(values[i], values[j], t)
	})
}

// ValuePolicy decides when two signal values are the same for removal.
// The zero value compares exactly.
type ValuePolicy struct {
	Epsilon float64
}

// Exact compares values bit-for-bit (NaN matches NaN).
var Exact = ValuePolicy{}

// Same reports whether a and b are equal under the policy.
func (p ValuePolicy) Same(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	if p.Epsilon <= 0 {
		return a == b
	}
	return math.Abs(a-b) <= p.Epsilon
}
