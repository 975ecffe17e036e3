package engine

import (
	"fmt"
	"sort"

	"github.com/pefman/w40k-odds/internal/form"
	"github.com/pefman/w40k-odds/internal/view"
)

// Widgets says which widgets a page has. Absent widgets are never drawn.
type Widgets struct {
	PDF    bool `json:"pdf"`
	Token  bool `json:"token"`
	Range  bool `json:"range"`
	Tables bool `json:"tables"`
	Shots  bool `json:"shots"`
	CDF    bool `json:"cdf"`
	Tree   bool `json:"tree"`
}

// With applies per-widget overrides keyed by widget name. Unknown names are reported.
func (w Widgets) With(overrides map[string]bool) (Widgets, error) {
	for name, on := range overrides {
		switch name {
		case "pdf":
			w.PDF = on
		case "token":
			w.Token = on
		case "range":
			w.Range = on
		case "tables":
			w.Tables = on
		case "shots":
			w.Shots = on
		case "cdf":
			w.CDF = on
		case "tree":
			w.Tree = on
		default:
			return w, fmt.Errorf("unknown widget %q", name)
		}
	}
	return w, nil
}

func (w Widgets) steps() bool { return w.PDF || w.Token || w.Tables }

// Variant is a page preset: which fragments it submits, which widgets it shows and how
// it formats numbers and the URL.
type Variant struct {
	Name      string         `json:"name"`
	Layout    form.Layout    `json:"layout"`
	Widgets   Widgets        `json:"widgets"`
	Precision view.Precision `json:"precision"`
	Param     ParamStyle     `json:"param"`
}

var variants = map[string]Variant{
	"basic": {
		Name:      "basic",
		Layout:    form.LayoutCombined,
		Widgets:   Widgets{PDF: true},
		Precision: view.PrecisionBasic,
		Param:     ParamQuery,
	},
	"simulate": {
		Name:      "simulate",
		Layout:    form.LayoutRounds,
		Widgets:   Widgets{PDF: true, Token: true, Range: true, Tables: true},
		Precision: view.PrecisionDefault,
		Param:     ParamQuery,
	},
	"shots": {
		Name:      "shots",
		Layout:    form.LayoutShots,
		Widgets:   Widgets{Shots: true, CDF: true},
		Precision: view.PrecisionDefault,
		Param:     ParamRaw,
	},
	"modify": {
		Name:      "modify",
		Layout:    form.LayoutSplit,
		Widgets:   Widgets{Tree: true},
		Precision: view.PrecisionDefault,
		Param:     ParamRaw,
	},
}

// LookupVariant returns the named preset.
func LookupVariant(name string) (Variant, error) {
	v, ok := variants[name]
	if !ok {
		return Variant{}, fmt.Errorf("unknown page variant %q", name)
	}
	return v, nil
}

// Variants lists every preset, sorted by name.
func Variants() []Variant {
	out := make([]Variant, 0, len(variants))
	for _, v := range variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
