package signal

import (
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/roach88/sigmap/internal/sigerr"
)

// MergeType is the strategy for collapsing several values into one.
type MergeType int

const (
	Mean MergeType = iota
	Median
	Minimum
	Maximum
	MaximumDistanceToZero
	NormalizedSumOfLog2
	// Automatic picks a strategy from the signal type (see ResolveAutomatic).
	Automatic
	// AskUser must be resolved by the caller before reaching this package.
	AskUser
)

var mergeTypeNames = []string{
	Mean:                  "Mean",
	Median:                "Median",
	Minimum:               "Minimum",
	Maximum:               "Maximum",
	MaximumDistanceToZero: "MaximumDistanceToZero",
	NormalizedSumOfLog2:   "NormalizedSumOfLog2",
	Automatic:             "Automatic",
	AskUser:               "AskUser",
}

func (m MergeType) String() string {
	if m < 0 || int(m) >= len(mergeTypeNames) {
		return fmt.Sprintf("MergeType(%d)", int(m))
	}
	return mergeTypeNames[m]
}

// ParseMergeType parses a merge type name case-insensitively.
func ParseMergeType(s string) (MergeType, error) {
	s = strings.TrimSpace(s)
	for i, name := range mergeTypeNames {
		if strings.EqualFold(name, s) {
			return MergeType(i), nil
		}
	}
	return Mean, fmt.Errorf("unknown merge type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m MergeType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MergeType) UnmarshalText(b []byte) error {
	parsed, err := ParseMergeType(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ResolveAutomatic maps Automatic to a concrete strategy for t. Other merge
// types are returned unchanged.
func ResolveAutomatic(m MergeType, t Type) MergeType {
	if m != Automatic {
		return m
	}
	switch t {
	case FoldChange, LogRatio:
		return MaximumDistanceToZero
	case PValue, QValue:
		return Minimum
	default:
		return Mean
	}
}

// Calculate collapses values with m. Empty input yields NaN and a single value
// is returned unchanged for every merge type. Automatic without a signal type
// behaves as Mean.
func Calculate(m MergeType, values []float64) (float64, error) {
	switch len(values) {
	case 0:
		return math.NaN(), nil
	case 1:
		return values[0], nil
	}

	data := stats.Float64Data(values)
	var (
		v   float64
		err error
	)
	switch ResolveAutomatic(m, Unknown) {
	case Mean:
		v, err = stats.Mean(data)
	case Median:
		v, err = stats.Median(data)
	case Minimum:
		v, err = stats.Min(data)
	case Maximum:
		v, err = stats.Max(data)
	case MaximumDistanceToZero:
		v = maxDistanceToZero(values)
	case NormalizedSumOfLog2:
		v = normalizedSumOfLog2(values)
	case AskUser:
		return math.NaN(), sigerr.New(sigerr.CodeUnresolvedMergeType,
			"merge type must be chosen before aggregation", "merge_type", m.String())
	default:
		return math.NaN(), sigerr.New(sigerr.CodeUnresolvedMergeType,
			"merge type not implemented", "merge_type", m.String())
	}
	if err != nil {
		return math.NaN(), fmt.Errorf("calculate %s: %w", m, err)
	}
	return v, nil
}

// maxDistanceToZero keeps the first value with the largest magnitude.
func maxDistanceToZero(values []float64) float64 {
	best := values[0]
	for _, v := range values[1:] {
		if math.Abs(v) > math.Abs(best) || math.IsNaN(best) {
			best = v
		}
	}
	return best
}

// normalizedSumOfLog2 is the mean of |log2 v| over values where it is defined.
func normalizedSumOfLog2(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		l := math.Abs(math.Log2(v))
		if math.IsNaN(l) {
			continue
		}
		sum += l
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

type partitionKey struct {
	experiment string
	t          Type
}

// MergeSignals partitions signals by (experiment, type) in first-seen order and
// merges each partition into one Signal.
func MergeSignals(signals []Signal, m MergeType) ([]Signal, error) {
	if len(signals) == 0 {
		return nil, nil
	}
	index := make(map[partitionKey]int)
	var (
		keys   []partitionKey
		values [][]float64
	)
	for _, s := range signals {
		k := partitionKey{experiment: s.Experiment, t: s.Type}
		i, ok := index[k]
		if !ok {
			i = len(keys)
			index[k] = i
			keys = append(keys, k)
			values = append(values, nil)
		}
		values[i] = append(values[i], s.Value)
	}

	out := make([]Signal, 0, len(keys))
	for i, k := range keys {
		v, err := Calculate(ResolveAutomatic(m, k.t), values[i])
		if err != nil {
			return nil, fmt.Errorf("merge %s/%s: %w", k.experiment, k.t, err)
		}
		out = append(out, Signal{Value: v, Experiment: k.experiment, Type: k.t})
	}
	return out, nil
}

// MergeSignal merges only the signals matching (experiment, t).
// Returns nil when nothing matches.
func MergeSignal(signals []Signal, m MergeType, experiment string, t Type) (*Signal, error) {
	var (
		values []float64
		first  Signal
	)
	for _, s := range signals {
		if !s.Matches(experiment, t) {
			continue
		}
		if len(values) == 0 {
			first = s
		}
		values = append(values, s.Value)
	}
	if len(values) == 0 {
		return nil, nil
	}
	v, err := Calculate(ResolveAutomatic(m, first.Type), values)
	if err != nil {
		return nil, err
	}
	out := Signal{Value: v, Experiment: first.Experiment, Type: first.Type}
	for _, s := range signals {
		if s.Matches(experiment, t) && s.Type != first.Type {
			out.Type = Merged
		}
	}
	return &out, nil
}

// MergeAll merges every signal regardless of partition. The experiment names
// are joined with ", "; the type is kept when uniform and is Merged otherwise.
func MergeAll(signals []Signal, m MergeType) (Signal, error) {
	if len(signals) == 0 {
		return Signal{Value: math.NaN(), Experiment: DefaultExperiment, Type: Unknown}, nil
	}
	t := signals[0].Type
	seen := make(map[string]bool)
	var names []string
	values := make([]float64, len(signals))
	for i, s := range signals {
		values[i] = s.Value
		if s.Type != t {
			t = Merged
		}
		if !seen[s.Experiment] {
			seen[s.Experiment] = true
			names = append(names, s.Experiment)
		}
	}
	v, err := Calculate(ResolveAutomatic(m, t), values)
	if err != nil {
		return Signal{}, err
	}
	return Signal{Value: v, Experiment: strings.Join(names, ", "), Type: t}, nil
}
