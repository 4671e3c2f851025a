package recolor

import (
	"image/color"
	"math"

	"github.com/roach88/sigmap/internal/signal"
)

// Named colors used by the default policy.
var (
	LightBlue = MustParseColor("#add8e6")
	White     = MustParseColor("#ffffff")
	Red       = MustParseColor("#ff0000")
	LightGray = MustParseColor("#d3d3d3")
)

// Defaults for Policy.
const (
	DefaultMaxFoldChange    = 1.5
	DefaultIgnoreFoldChange = 0.5
	DefaultPValueCutoff     = 0.05
	DefaultIgnorePValue     = 1.0

	// fallbackPValueCutoff replaces a cutoff outside (0, 1].
	fallbackPValueCutoff = 0.0005
)

// Policy configures a Recolorer.
type Policy struct {
	// MaxFoldChange is the magnitude at which fold changes saturate.
	MaxFoldChange float64
	// IgnoreFoldChange: fold changes with smaller magnitude get NeutralColor.
	IgnoreFoldChange float64

	// PValueCutoff is the p/q-value that maps to the most significant color.
	PValueCutoff float64
	// IgnorePValue: p/q-values above it get NeutralColor.
	IgnorePValue float64
	// PassThroughAboveOne treats p/q-values above 1 as pre-aggregated scores
	// that are always colored.
	PassThroughAboveOne bool
	// ScoreMax is the score at which a pass-through value gets the full size.
	// At or below 1 every pass-through value gets the full size.
	ScoreMax float64

	// RangeMin and RangeMax bound the linear gradient used for all other
	// signal types. An empty range falls back to [-MaxFoldChange, MaxFoldChange].
	RangeMin float64
	RangeMax float64

	FoldChangeColors []color.RGBA // low, middle, high
	PValueColors     []color.RGBA // significant, insignificant
	NeutralColor     color.RGBA
	NoValueColor     color.RGBA
}

// DefaultPolicy returns the standard thresholds and colors.
func DefaultPolicy() Policy {
	return Policy{
		MaxFoldChange:       DefaultMaxFoldChange,
		IgnoreFoldChange:    DefaultIgnoreFoldChange,
		PValueCutoff:        DefaultPValueCutoff,
		IgnorePValue:        DefaultIgnorePValue,
		PassThroughAboveOne: true,
		FoldChangeColors:    []color.RGBA{LightBlue, White, Red},
		PValueColors:        []color.RGBA{LightBlue, White},
		NeutralColor:        White,
		NoValueColor:        LightGray,
	}
}

// Recolorer maps values to colors. It holds no mutable state; GetColor is a
// pure function of its arguments and the policy.
type Recolorer struct {
	policy Policy
	fc     Gradient
	pv     Gradient
	other  Gradient
}

// New builds a Recolorer for policy.
func New(p Policy) *Recolorer {
	if p.MaxFoldChange <= 0 {
		p.MaxFoldChange = DefaultMaxFoldChange
	}
	if p.PValueCutoff <= 0 || p.PValueCutoff > 1 {
		p.PValueCutoff = fallbackPValueCutoff
	}
	d := DefaultPolicy()
	if len(p.FoldChangeColors) < 2 {
		p.FoldChangeColors = d.FoldChangeColors
	}
	if len(p.PValueColors) < 2 {
		p.PValueColors = d.PValueColors
	}
	if p.NeutralColor == (color.RGBA{}) {
		p.NeutralColor = d.NeutralColor
	}
	if p.NoValueColor == (color.RGBA{}) {
		p.NoValueColor = d.NoValueColor
	}
	lo, hi := p.RangeMin, p.RangeMax
	if lo >= hi {
		lo, hi = -p.MaxFoldChange, p.MaxFoldChange
	}
	return &Recolorer{
		policy: p,
		fc:     Gradient{Min: -p.MaxFoldChange, Max: p.MaxFoldChange, Colors: p.FoldChangeColors, Scale: Linear{}},
		pv:     Gradient{Min: p.PValueCutoff, Max: 1, Colors: p.PValueColors, Scale: Logarithmic{Base: 10}},
		other:  Gradient{Min: lo, Max: hi, Colors: p.FoldChangeColors, Scale: Linear{}},
	}
}

// Policy returns the effective policy.
func (r *Recolorer) Policy() Policy {
	return r.policy
}

// WithRange returns a copy whose gradient for non fold-change, non probability
// types spans [lo, hi].
func (r *Recolorer) WithRange(lo, hi float64) *Recolorer {
	p := r.policy
	p.RangeMin, p.RangeMax = lo, hi
	return New(p)
}

// WithScoreMax returns a copy that sizes pass-through p/q-values against max.
func (r *Recolorer) WithScoreMax(max float64) *Recolorer {
	p := r.policy
	p.ScoreMax = max
	return New(p)
}

// ConsiderSignal reports whether v is significant enough to be colored.
func (r *Recolorer) ConsiderSignal(v float64, t signal.Type) bool {
	if math.IsNaN(v) {
		return false
	}
	switch {
	case t == signal.FoldChange:
		return math.Abs(v) >= r.policy.IgnoreFoldChange
	case t.IsProbability():
		if v > 1 && r.policy.PassThroughAboveOne {
			return true
		}
		return v <= r.policy.IgnorePValue
	default:
		return true
	}
}

// GetColor returns the fill color for v of type t.
func (r *Recolorer) GetColor(v float64, t signal.Type) color.RGBA {
	if math.IsNaN(v) {
		return r.policy.NoValueColor
	}
	if !r.ConsiderSignal(v, t) {
		return r.policy.NeutralColor
	}
	switch {
	case t == signal.FoldChange:
		return r.fc.At(v)
	case t.IsProbability():
		return r.pv.At(v)
	default:
		return r.other.At(v)
	}
}

// NoValue is the color of nodes without any value.
func (r *Recolorer) NoValue() color.RGBA {
	return r.policy.NoValueColor
}

// SizeFraction returns how much of a node's half-width the value bar should
// cover, in [0, 1].
func (r *Recolorer) SizeFraction(v float64, t signal.Type) float64 {
	if !r.ConsiderSignal(v, t) {
		return 0
	}
	switch {
	case t == signal.FoldChange:
		return clamp01(math.Abs(v) / r.policy.MaxFoldChange)
	case t.IsProbability():
		if v > 1 {
			if r.policy.ScoreMax <= 1 {
				return 1
			}
			return clamp01(v / r.policy.ScoreMax)
		}
		scale := Logarithmic{Base: 10}
		lo, hi := scale.Transform(r.policy.PValueCutoff), scale.Transform(1)
		x := scale.Transform(math.Max(v, r.policy.PValueCutoff))
		return clamp01((hi - x) / (hi - lo))
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
