// Package config loads projection settings from a YAML file and SIGMAP_*
// environment variables and validates the result against an embedded CUE
// schema.
//
// Precedence: defaults, then the file, then the environment.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sigmap/internal/project"
	"github.com/roach88/sigmap/internal/recolor"
	"github.com/roach88/sigmap/internal/signal"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "SIGMAP_"

// Config is the effective projection configuration.
type Config struct {
	Recolor RecolorConfig `yaml:"recolor" envPrefix:"RECOLOR_"`

	MergeType       signal.MergeType `yaml:"merge_type" env:"MERGE_TYPE"`
	LookupTimeout   time.Duration    `yaml:"lookup_timeout" env:"LOOKUP_TIMEOUT"`
	AnnotationLimit int              `yaml:"annotation_limit" env:"ANNOTATION_LIMIT"`
	PathwayCentered bool             `yaml:"pathway_centered" env:"PATHWAY_CENTERED"`
	RangeQuantile   float64          `yaml:"range_quantile" env:"RANGE_QUANTILE"`

	// IndexPath is the SQLite file holding the identifier index.
	IndexPath string `yaml:"index_path" env:"INDEX_PATH"`
}

// RecolorConfig mirrors recolor.Policy with colors as hex strings.
type RecolorConfig struct {
	MaxFoldChange       float64  `yaml:"max_fold_change" env:"MAX_FOLD_CHANGE"`
	IgnoreFoldChange    float64  `yaml:"ignore_fold_change" env:"IGNORE_FOLD_CHANGE"`
	PValueCutoff        float64  `yaml:"p_value_cutoff" env:"P_VALUE_CUTOFF"`
	IgnorePValue        float64  `yaml:"ignore_p_value" env:"IGNORE_P_VALUE"`
	PassThroughAboveOne bool     `yaml:"pass_through_above_one" env:"PASS_THROUGH_ABOVE_ONE"`
	FoldChangeColors    []string `yaml:"fold_change_colors" env:"FOLD_CHANGE_COLORS" envSeparator:","`
	PValueColors        []string `yaml:"p_value_colors" env:"P_VALUE_COLORS" envSeparator:","`
	NeutralColor        string   `yaml:"neutral_color" env:"NEUTRAL_COLOR"`
	NoValueColor        string   `yaml:"no_value_color" env:"NO_VALUE_COLOR"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := recolor.DefaultPolicy()
	return Config{
		Recolor: RecolorConfig{
			MaxFoldChange:       p.MaxFoldChange,
			IgnoreFoldChange:    p.IgnoreFoldChange,
			PValueCutoff:        p.PValueCutoff,
			IgnorePValue:        p.IgnorePValue,
			PassThroughAboveOne: p.PassThroughAboveOne,
			FoldChangeColors:    hexAll(p.FoldChangeColors),
			PValueColors:        hexAll(p.PValueColors),
			NeutralColor:        recolor.Hex(p.NeutralColor),
			NoValueColor:        recolor.Hex(p.NoValueColor),
		},
		MergeType:       signal.Automatic,
		LookupTimeout:   project.DefaultLookupTimeout,
		AnnotationLimit: project.DefaultAnnotationLimit,
		RangeQuantile:   project.DefaultRangeQuantile,
		IndexPath:       ":memory:",
	}
}

// Load builds the effective configuration: defaults, overlaid by the YAML
// file at path (skipped when path is empty), overlaid by the environment.
// The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := cfg.Decode(f); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode overlays YAML from r. Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ApplyEnv overlays SIGMAP_* variables from environ, or from the process
// environment when environ is nil.
func (c *Config) ApplyEnv(environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks c against the embedded CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(c.cueInput()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// cueInput is the schema-shaped view of c.
func (c Config) cueInput() map[string]any {
	r := c.Recolor
	return map[string]any{
		"merge_type":        c.MergeType.String(),
		"lookup_timeout_ms": c.LookupTimeout.Milliseconds(),
		"annotation_limit":  c.AnnotationLimit,
		"pathway_centered":  c.PathwayCentered,
		"range_quantile":    c.RangeQuantile,
		"index_path":        c.IndexPath,
		"recolor": map[string]any{
			"max_fold_change":        r.MaxFoldChange,
			"ignore_fold_change":     r.IgnoreFoldChange,
			"p_value_cutoff":         r.PValueCutoff,
			"ignore_p_value":         r.IgnorePValue,
			"pass_through_above_one": r.PassThroughAboveOne,
			"fold_change_colors":     toAnySlice(r.FoldChangeColors),
			"p_value_colors":         toAnySlice(r.PValueColors),
			"neutral_color":          r.NeutralColor,
			"no_value_color":         r.NoValueColor,
		},
	}
}

// Policy converts the recolor section into a recolor.Policy.
func (c Config) Policy() (recolor.Policy, error) {
	r := c.Recolor
	p := recolor.Policy{
		MaxFoldChange:       r.MaxFoldChange,
		IgnoreFoldChange:    r.IgnoreFoldChange,
		PValueCutoff:        r.PValueCutoff,
		IgnorePValue:        r.IgnorePValue,
		PassThroughAboveOne: r.PassThroughAboveOne,
	}
	var err error
	if p.FoldChangeColors, err = parseAll(r.FoldChangeColors); err != nil {
		return recolor.Policy{}, err
	}
	if p.PValueColors, err = parseAll(r.PValueColors); err != nil {
		return recolor.Policy{}, err
	}
	if p.NeutralColor, err = recolor.ParseColor(r.NeutralColor); err != nil {
		return recolor.Policy{}, err
	}
	if p.NoValueColor, err = recolor.ParseColor(r.NoValueColor); err != nil {
		return recolor.Policy{}, err
	}
	return p, nil
}

// ProjectorOptions returns the projector settings c describes.
func (c Config) ProjectorOptions() ([]project.Option, error) {
	p, err := c.Policy()
	if err != nil {
		return nil, err
	}
	return []project.Option{
		project.WithRecolorer(recolor.New(p)),
		project.WithMergeType(c.MergeType),
		project.WithLookupTimeout(c.LookupTimeout),
		project.WithAnnotationLimit(c.AnnotationLimit),
		project.WithPathwayCentered(c.PathwayCentered),
		project.WithRangeQuantile(c.RangeQuantile),
	}, nil
}

// YAML renders c as a config file.
func (c Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hexAll(cs []color.RGBA) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = recolor.Hex(c)
	}
	return out
}

func parseAll(ss []string) ([]color.RGBA, error) {
	out := make([]color.RGBA, len(ss))
	for i, s := range ss {
		c, err := recolor.ParseColor(s)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
