// Package recolor maps signal values to display colors.
package recolor

import (
	"fmt"
	"image/color"
	"math"

	"github.com/icza/gox/imagex/colorx"
)

// Rescale transforms values before they are placed on a gradient.
type Rescale interface {
	Transform(v float64) float64
}

// Linear leaves values unchanged.
type Linear struct{}

// Transform implements Rescale.
func (Linear) Transform(v float64) float64 { return v }

// Logarithmic maps v to log_base(v).
type Logarithmic struct {
	Base float64
}

// Transform implements Rescale.
func (l Logarithmic) Transform(v float64) float64 {
	return math.Log10(v) / math.Log10(l.Base)
}

// Gradient interpolates between evenly spaced colors over [Min, Max].
type Gradient struct {
	Min    float64
	Max    float64
	Colors []color.RGBA
	Scale  Rescale
}

// At returns the color for v. Values outside [Min, Max] clamp to the ends.
func (g Gradient) At(v float64) color.RGBA {
	switch len(g.Colors) {
	case 0:
		return color.RGBA{A: 0xff}
	case 1:
		return g.Colors[0]
	}
	scale := g.Scale
	if scale == nil {
		scale = Linear{}
	}
	lo, hi := scale.Transform(g.Min), scale.Transform(g.Max)
	x := scale.Transform(v)
	if math.IsNaN(x) || x < lo {
		x = lo
	}
	if x > hi {
		x = hi
	}

	intervals := len(g.Colors) - 1
	pos := 0.0
	if hi > lo {
		pos = (x - lo) / (hi - lo) * float64(intervals)
	}
	i := int(math.Floor(pos))
	if i >= intervals {
		i = intervals - 1
	}
	if i < 0 {
		i = 0
	}
	return mix(g.Colors[i], g.Colors[i+1], pos-float64(i))
}

func mix(a, b color.RGBA, f float64) color.RGBA {
	return color.RGBA{
		R: channel(a.R, b.R, f),
		G: channel(a.G, b.G, f),
		B: channel(a.B, b.B, f),
		A: channel(a.A, b.A, f),
	}
}

func channel(a, b uint8, f float64) uint8 {
	v := math.Round(float64(a) + (float64(b)-float64(a))*f)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

// ParseColor parses "#rrggbb" or "#rgb".
func ParseColor(s string) (color.RGBA, error) {
	c, err := colorx.ParseHexColor(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return c, nil
}

// MustParseColor is ParseColor for package-level constants.
func MustParseColor(s string) color.RGBA {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats c as "#rrggbb".
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
