package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/roach88/sigmap/internal/record"
	"github.com/roach88/sigmap/internal/signal"
)

// ErrNoValues is returned when no record carries a matching finite value.
var ErrNoValues = errors.New("aggregate: no values for quantile")

// MinMaxQuantile returns the q and 1-q empirical quantiles of the signal values
// matching (experiment, t). q = 0 yields the plain minimum and maximum.
func MinMaxQuantile(records []*record.Record, experiment string, t signal.Type, q float64) (lo, hi float64, err error) {
	if q < 0 || q > 0.5 {
		return 0, 0, fmt.Errorf("aggregate: quantile %v outside [0, 0.5]", q)
	}
	var xs []float64
	for _, r := range records {
		for _, s := range r.SignalsOf(experiment, t) {
			if !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0) {
				xs = append(xs, s.Value)
			}
		}
	}
	if len(xs) == 0 {
		return 0, 0, ErrNoValues
	}
	sort.Float64s(xs)
	if q == 0 {
		return xs[0], xs[len(xs)-1], nil
	}
	lo = stat.Quantile(q, stat.Empirical, xs, nil)
	hi = stat.Quantile(1-q, stat.Empirical, xs, nil)
	return lo, hi, nil
}

// ScoreCeiling returns the 1-q empirical quantile of the p/q-values above 1.
// Such values are pre-aggregated scores rather than probabilities.
func ScoreCeiling(records []*record.Record, experiment string, t signal.Type, q float64) (float64, error) {
	if q < 0 || q > 0.5 {
		return 0, fmt.Errorf("aggregate: quantile %v outside [0, 0.5]", q)
	}
	var xs []float64
	for _, r := range records {
		for _, s := range r.SignalsOf(experiment, t) {
			if s.Value > 1 && !math.IsInf(s.Value, 0) {
				xs = append(xs, s.Value)
			}
		}
	}
	if len(xs) == 0 {
		return 0, ErrNoValues
	}
	sort.Float64s(xs)
	return stat.Quantile(1-q, stat.Empirical, xs, nil), nil
}
