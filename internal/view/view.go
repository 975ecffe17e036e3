// Package view binds simulation results to the data consumed by each page widget:
// chart series, axis bounds, tooltips, titles and the pass-through table markup.
// It performs no validation; what the service sends is what gets drawn.
package view

import (
	"fmt"
	"math"
	"strings"

	"github.com/pefman/w40k-odds/internal/models"
)

// ========================= Colors =========================

// Color is an RGBA color as the browser chart library expects it.
type Color struct {
	R, G, B uint8
	A       float64 // 0..1
}

func rgb(r, g, b uint8) Color { return Color{R: r, G: g, B: b, A: 1} }

// Alpha returns c with a new alpha.
func (c Color) Alpha(a float64) Color { c.A = a; return c }

func (c Color) String() string {
	if c.A >= 1 {
		return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %g)", c.R, c.G, c.B, c.A)
}

// MarshalText encodes the CSS form.
func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

var (
	ColorBlue   = rgb(54, 162, 235)
	ColorRed    = rgb(255, 99, 132)
	ColorOrange = rgb(255, 159, 64)
	ColorGreen  = rgb(163, 226, 115)
	ColorGrey   = rgb(150, 150, 150)
)

// ========================= Precision =========================

// Precision is the number of decimals used for percentages and expected hits.
type Precision struct {
	Percent int `json:"percent"`
	Hits    int `json:"hits"`
	// Crit adds the "At Least One Crit" line to the step title.
	Crit bool `json:"crit"`
}

var (
	PrecisionDefault = Precision{Percent: 2, Hits: 3, Crit: true}
	// PrecisionBasic is the combined single-form page.
	PrecisionBasic = Precision{Percent: 1, Hits: 2}
)

const (
	tokenDecimals = 3
	shotsDecimals = 3
	cdfDecimals   = 6
)

func percent(v float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, v)
}

// ========================= Series =========================

// SeriesKind tells the drawing side how to present a series.
type SeriesKind string

const (
	KindBar  SeriesKind = "bar"
	KindLine SeriesKind = "line"
)

// Series is one drawable data series. Stacked bars share a Stack name.
type Series struct {
	Label  string     `json:"label"`
	Kind   SeriesKind `json:"kind"`
	Stack  string     `json:"stack,omitempty"`
	Color  Color      `json:"color"`
	Values []float64  `json:"values"`
}

// Tooltip is the hover text at one category index.
type Tooltip struct {
	Title string   `json:"title,omitempty"`
	Lines []string `json:"lines"`
}

// Point is one (x, y) sample of a scatter line.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ========================= Step view =========================

// PDFChart is the hit distribution: an at-least line over stacked hit and crit bars.
type PDFChart struct {
	Labels   []string  `json:"labels"`
	Series   []Series  `json:"series"` // at-least line, hits, crits
	Tooltips []Tooltip `json:"tooltips"`
	YMin     float64   `json:"y_min"`
	YMax     float64   `json:"y_max"`
}

// StackedTotal is the tooltip aggregate at k: the sum of the stacked bar series.
func (c *PDFChart) StackedTotal(k int) float64 {
	sum := 0.0
	for _, s := range c.Series {
		if s.Stack == "" || k >= len(s.Values) {
			continue
		}
		sum += s.Values[k]
	}
	return sum
}

// TokenChart is the horizontal token delta chart. Attacker values are negated so they
// extend left of the axis.
type TokenChart struct {
	Labels   []string  `json:"labels"`
	Series   []Series  `json:"series"` // attacker, defender
	Tooltips []Tooltip `json:"tooltips"`
	HeightPx int       `json:"height_px"`
	XMin     float64   `json:"x_min"`
	XMax     float64   `json:"x_max"`
}

// StepView is everything drawn for the selected step.
type StepView struct {
	Index      int         `json:"index"` // 1-based
	Title      string      `json:"title"` // HTML
	PDF        *PDFChart   `json:"pdf,omitempty"`
	Token      *TokenChart `json:"token,omitempty"`
	PDFTable   string      `json:"pdf_table,omitempty"`
	TokenTable string      `json:"token_table,omitempty"`
}

// Binder translates results into widget data for one page variant.
type Binder struct {
	Precision Precision
	// AtLeastLabel names the inverse-CDF line.
	AtLeastLabel string
}

// NewBinder returns a binder with the default labels.
func NewBinder(p Precision) Binder {
	label := "At Least # Hits"
	if !p.Crit {
		label = "P(Hits>=x)"
	}
	return Binder{Precision: p, AtLeastLabel: label}
}

// BindStep builds the step view for step (1-based index).
func (b Binder) BindStep(index int, step models.StepResult) StepView {
	v := StepView{
		Index:      index,
		Title:      b.stepTitle(step),
		PDF:        b.pdfChart(step),
		PDFTable:   step.PDFTableHTML,
		TokenTable: step.TokenTableHTML,
	}
	if len(step.ExpTokenLabels) > 0 {
		v.Token = tokenChart(step)
	}
	return v
}

func (b Binder) stepTitle(step models.StepResult) string {
	title := fmt.Sprintf("Expected Total Hits: %.*f", b.Precision.Hits, step.ExpectedTotalHits)
	if b.Precision.Crit {
		title += "<br>At Least One Crit: " + percent(step.AtLeastOneCrit, b.Precision.Percent)
	}
	return title
}

func (b Binder) pdfChart(step models.StepResult) *PDFChart {
	c := &PDFChart{
		Labels: step.PDFXLabels,
		Series: []Series{
			{Label: b.AtLeastLabel, Kind: KindLine, Color: ColorBlue, Values: step.HitInvCDF},
			{Label: "Hits", Kind: KindBar, Stack: "pdf", Color: ColorRed, Values: step.HitPDF},
			{Label: "Crits", Kind: KindBar, Stack: "pdf", Color: ColorOrange, Values: step.CritPDF},
		},
		YMin: 0,
		YMax: 100,
	}
	c.Tooltips = make([]Tooltip, len(c.Labels))
	for k := range c.Labels {
		tt := Tooltip{Title: percent(c.StackedTotal(k), b.Precision.Percent)}
		for _, s := range c.Series {
			if k < len(s.Values) {
				tt.Lines = append(tt.Lines, s.Label+": "+percent(s.Values[k], b.Precision.Percent))
			}
		}
		c.Tooltips[k] = tt
	}
	return c
}

// TokenHeight is the token chart height for n labels.
func TokenHeight(n int) int { return 50 + 30*n }

func tokenChart(step models.StepResult) *TokenChart {
	deltas := step.TokenDeltas()
	c := &TokenChart{
		Labels:   step.ExpTokenLabels,
		HeightPx: TokenHeight(len(step.ExpTokenLabels)),
	}
	attacker := make([]float64, len(deltas))
	defender := make([]float64, len(deltas))
	bound := 1.0
	c.Tooltips = make([]Tooltip, len(deltas))
	for i, d := range deltas {
		attacker[i] = -d.Attacker
		defender[i] = d.Defender
		bound = math.Max(bound, math.Max(math.Abs(d.Attacker), math.Abs(d.Defender)))
		c.Tooltips[i] = Tooltip{Lines: []string{
			fmt.Sprintf("Attacker: %.*f", tokenDecimals, math.Abs(attacker[i])),
			fmt.Sprintf("Defender: %.*f", tokenDecimals, math.Abs(defender[i])),
		}}
	}
	c.Series = []Series{
		{Label: "Attacker", Kind: KindBar, Stack: "tokens", Color: ColorRed, Values: attacker},
		{Label: "Defender", Kind: KindBar, Stack: "tokens", Color: ColorGreen, Values: defender},
	}
	c.XMin, c.XMax = -bound, bound
	return c
}

// ========================= Shots view =========================

// ShotsChart is the horizontal expected-shots bar chart. Colors are per bar.
type ShotsChart struct {
	Labels       []string  `json:"labels"`
	Values       []float64 `json:"values"`
	BorderColors []Color   `json:"border_colors"`
	FillColors   []Color   `json:"fill_colors"`
	Tooltips     []string  `json:"tooltips"`
	HeightPx     int       `json:"height_px"`
}

// CDFChart is the survival curve of the viewer's own target plus an optional overlay.
type CDFChart struct {
	Points   []Point  `json:"points"`
	Tooltips []string `json:"tooltips"`
	Color    Color    `json:"color"`
	XMin     float64  `json:"x_min"`
	XMax     float64  `json:"x_max"`
	YMin     float64  `json:"y_min"`
	YMax     float64  `json:"y_max"`
	Overlay  *Overlay `json:"overlay,omitempty"`
}

// ShotsView is everything drawn for a shots-to-die dataset.
type ShotsView struct {
	Title string      `json:"title"` // HTML
	Shots *ShotsChart `json:"shots,omitempty"`
	CDF   *CDFChart   `json:"cdf,omitempty"`
}

// BindShots builds the shots view. Colors are recomputed from scratch on every call.
func (b Binder) BindShots(d *models.ShotsToDie) ShotsView {
	if d == nil {
		return ShotsView{}
	}
	n := len(d.Labels)
	sc := &ShotsChart{
		Labels:       d.Labels,
		Values:       d.Shots,
		BorderColors: make([]Color, n),
		FillColors:   make([]Color, n),
		Tooltips:     make([]string, len(d.Shots)),
		HeightPx:     TokenHeight(n),
	}
	for i := range sc.BorderColors {
		sc.BorderColors[i] = ColorBlue
		sc.FillColors[i] = ColorBlue.Alpha(0.5)
	}
	if d.YourShipIndex >= 0 && d.YourShipIndex < n {
		sc.BorderColors[d.YourShipIndex] = ColorRed
		sc.FillColors[d.YourShipIndex] = ColorRed.Alpha(0.5)
	}
	for i, v := range d.Shots {
		sc.Tooltips[i] = fmt.Sprintf("%.*f", shotsDecimals, math.Abs(v))
	}

	cdf := d.PrimaryCDF()
	cc := &CDFChart{
		Points:   make([]Point, len(cdf)),
		Tooltips: make([]string, len(cdf)),
		Color:    ColorRed,
		XMin:     0,
		XMax:     math.Max(1, float64(len(cdf)-1)),
		YMin:     0,
		YMax:     1,
	}
	for i, y := range cdf {
		cc.Points[i] = Point{X: float64(i), Y: y}
		cc.Tooltips[i] = fmt.Sprintf("%d: %.*f", i, cdfDecimals, math.Abs(y))
	}

	return ShotsView{
		Title: "Expected Shots: " + d.ExpectedShotsString,
		Shots: sc,
		CDF:   cc,
	}
}

// Overlay is the comparison series drawn over the CDF chart.
type Overlay struct {
	Target int       `json:"target"` // -1 when cleared
	Label  string    `json:"label,omitempty"`
	Color  Color     `json:"color"`
	Points []Point   `json:"points"`
	Values []float64 `json:"values"`
}

// BindOverlay wraps overlay values computed for target. Axis bounds are left to the CDF chart.
func BindOverlay(target int, label string, values []float64) *Overlay {
	o := &Overlay{Target: target, Label: label, Color: ColorBlue, Values: values, Points: make([]Point, len(values))}
	for i, y := range values {
		o.Points[i] = Point{X: float64(i), Y: y}
	}
	return o
}

// ========================= Text =========================

// Text renders the step view as plain text: title, then one line per category.
func (v StepView) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Step %d\n", v.Index)
	sb.WriteString(strings.ReplaceAll(v.Title, "<br>", "\n"))
	sb.WriteString("\n")
	if v.PDF != nil {
		for k, l := range v.PDF.Labels {
			if k >= len(v.PDF.Tooltips) {
				break
			}
			tt := v.PDF.Tooltips[k]
			fmt.Fprintf(&sb, "%s\t%s\t%s\n", l, tt.Title, strings.Join(tt.Lines, "\t"))
		}
	}
	if v.Token != nil {
		for i, l := range v.Token.Labels {
			fmt.Fprintf(&sb, "%s\t%s\n", l, strings.Join(v.Token.Tooltips[i].Lines, "\t"))
		}
	}
	return sb.String()
}

// Text renders the shots view as plain text.
func (v ShotsView) Text() string {
	var sb strings.Builder
	sb.WriteString(v.Title)
	sb.WriteString("\n")
	if v.Shots != nil {
		for i, l := range v.Shots.Labels {
			if i >= len(v.Shots.Tooltips) {
				break
			}
			marker := ""
			if v.Shots.BorderColors[i] == ColorRed {
				marker = " *"
			}
			fmt.Fprintf(&sb, "%s\t%s%s\n", l, v.Shots.Tooltips[i], marker)
		}
	}
	return sb.String()
}
