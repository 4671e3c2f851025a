// Package signal defines typed scalar observations and the statistics used to
// collapse several of them into one.
package signal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type is the kind of measurement a Signal carries.
type Type int

const (
	Unknown Type = iota
	Raw
	Processed
	FoldChange
	PValue
	QValue
	Ratio
	LogRatio
	Merged
)

// AnyType matches every Type in lookups.
const AnyType Type = -1

// DefaultExperiment is used when a Signal is created without an experiment name.
const DefaultExperiment = "default"

var typeNames = []string{
	Unknown:    "Unknown",
	Raw:        "Raw",
	Processed:  "Processed",
	FoldChange: "FoldChange",
	PValue:     "pValue",
	QValue:     "qValue",
	Ratio:      "ratio",
	LogRatio:   "log_ratio",
	Merged:     "Merged",
}

// String returns the canonical name of the type.
func (t Type) String() string {
	if t == AnyType {
		return "*"
	}
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType parses a type name case-insensitively. "*" yields AnyType.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return AnyType, nil
	}
	for i, name := range typeNames {
		if strings.EqualFold(name, s) {
			return Type(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown signal type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsProbability reports whether values of this type are p- or q-values.
func (t Type) IsProbability() bool {
	return t == PValue || t == QValue
}

// Signal is one typed numeric observation.
type Signal struct {
	Value      float64
	Experiment string
	Type       Type
}

// New creates a Signal, substituting DefaultExperiment for an empty name.
func New(value float64, experiment string, t Type) Signal {
	if experiment == "" {
		experiment = DefaultExperiment
	}
	return Signal{Value: value, Experiment: experiment, Type: t}
}

// Equal compares the full (experiment, type, value) triple. Two NaN values
// are considered equal so that duplicate detection stays reflexive.
func (s Signal) Equal(o Signal) bool {
	if s.Experiment != o.Experiment || s.Type != o.Type {
		return false
	}
	if math.IsNaN(s.Value) && math.IsNaN(o.Value) {
		return true
	}
	return s.Value == o.Value
}

// Matches reports whether the signal belongs to (experiment, t).
// An empty experiment or AnyType acts as a wildcard.
func (s Signal) Matches(experiment string, t Type) bool {
	if experiment != "" && s.Experiment != experiment {
		return false
	}
	return t == AnyType || s.Type == t
}

func (s Signal) String() string {
	return fmt.Sprintf("%s/%s=%s", s.Experiment, s.Type, FormatValue(s.Value))
}

// FormatValue renders a value the way annotations and CLI output show it.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
