// Package render draws bound views to SVG or PNG with go-chart.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/pefman/w40k-odds/internal/view"
)

// ErrNoData is returned for a chart with nothing to draw.
var ErrNoData = errors.New("render: no data")

// Format selects the output encoding.
type Format string

const (
	SVG Format = "svg"
	PNG Format = "png"
)

func (f Format) provider() chart.RendererProvider {
	if f == PNG {
		return chart.PNG
	}
	return chart.SVG
}

const (
	defaultWidth  = 720
	defaultHeight = 360
	barHalfWidth  = 0.35
)

func toDrawing(c view.Color) drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(c.A * 255))}
}

func background() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 16, Bottom: 16}}
}

func categoryTicks(labels []string) []chart.Tick {
	ticks := make([]chart.Tick, 0, len(labels))
	for i, l := range labels {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: l})
	}
	return ticks
}

// barOutline traces one rectangle per category from 0 up to values[k], returning to 0
// between bars, so a filled line series draws a bar layer.
func barOutline(values []float64) (xs, ys []float64) {
	for k, v := range values {
		x := float64(k)
		xs = append(xs, x-barHalfWidth, x-barHalfWidth, x+barHalfWidth, x+barHalfWidth)
		ys = append(ys, 0, v, v, 0)
	}
	return xs, ys
}

// ========================= Step charts =========================

// PDF draws the stacked hit/crit bars and the at-least line.
func PDF(w io.Writer, c *view.PDFChart, f Format) error {
	if c == nil || len(c.Labels) == 0 || len(c.Series) < 3 {
		return ErrNoData
	}
	line, hits, crits := c.Series[0], c.Series[1], c.Series[2]

	// Crits sit on top of hits: draw the total layer first, then hits over it.
	total := make([]float64, len(c.Labels))
	for k := range total {
		total[k] = c.StackedTotal(k)
	}
	var series []chart.Series
	for _, layer := range []struct {
		name   string
		color  view.Color
		values []float64
	}{
		{crits.Label, crits.Color, total},
		{hits.Label, hits.Color, pad(hits.Values, len(c.Labels))},
	} {
		xs, ys := barOutline(layer.values)
		series = append(series, chart.ContinuousSeries{
			Name:    layer.name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeWidth: 1,
				StrokeColor: toDrawing(layer.color),
				FillColor:   toDrawing(layer.color),
			},
		})
	}
	lx, ly := make([]float64, 0, len(c.Labels)), make([]float64, 0, len(c.Labels))
	for k, v := range pad(line.Values, len(c.Labels)) {
		lx = append(lx, float64(k))
		ly = append(ly, v)
	}
	lx, ly = atLeastTwo(lx, ly)
	series = append(series, chart.ContinuousSeries{
		Name:    line.Label,
		XValues: lx,
		YValues: ly,
		Style: chart.Style{
			StrokeWidth: 2,
			StrokeColor: toDrawing(line.Color),
			DotWidth:    3,
			DotColor:    toDrawing(line.Color),
		},
	})

	ch := chart.Chart{
		Width:      defaultWidth,
		Height:     defaultHeight,
		Background: background(),
		XAxis: chart.XAxis{
			Name:  "Hits",
			Range: &chart.ContinuousRange{Min: -0.5, Max: float64(len(c.Labels)) - 0.5},
			Ticks: categoryTicks(c.Labels),
		},
		YAxis: chart.YAxis{
			Name:  "%",
			Range: &chart.ContinuousRange{Min: c.YMin, Max: c.YMax},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(f.provider(), w)
}

// Tokens draws the token deltas. Attacker bars come first for each label and sit below
// the zero line because their values arrive negated.
func Tokens(w io.Writer, c *view.TokenChart, f Format) error {
	if c == nil || len(c.Labels) == 0 || len(c.Series) < 2 {
		return ErrNoData
	}
	bars := make([]chart.Value, 0, 2*len(c.Labels))
	for i, l := range c.Labels {
		for _, s := range c.Series {
			v := 0.0
			if i < len(s.Values) {
				v = s.Values[i]
			}
			bars = append(bars, chart.Value{
				Label: l + " " + initial(s.Label),
				Value: v,
				Style: chart.Style{
					StrokeWidth: 1,
					StrokeColor: toDrawing(s.Color),
					FillColor:   toDrawing(s.Color),
				},
			})
		}
	}
	bc := chart.BarChart{
		Width:        max(defaultWidth, 60*len(bars)+120),
		Height:       max(defaultHeight/2, c.HeightPx),
		Background:   background(),
		BarWidth:     30,
		BarSpacing:   20,
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: c.XMin, Max: c.XMax},
			ValueFormatter: absFormatter,
		},
		Bars: bars,
	}
	return bc.Render(f.provider(), w)
}

func initial(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

func absFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.2f", math.Abs(f))
	}
	return ""
}

// ========================= Shots charts =========================

// Shots draws the expected-shots bars with per-bar colors.
func Shots(w io.Writer, c *view.ShotsChart, f Format) error {
	if c == nil || len(c.Values) == 0 {
		return ErrNoData
	}
	top := 1.0
	bars := make([]chart.Value, len(c.Values))
	for i, v := range c.Values {
		top = math.Max(top, v)
		label := ""
		if i < len(c.Labels) {
			label = c.Labels[i]
		}
		st := chart.Style{StrokeWidth: 2}
		if i < len(c.BorderColors) {
			st.StrokeColor = toDrawing(c.BorderColors[i])
		}
		if i < len(c.FillColors) {
			st.FillColor = toDrawing(c.FillColors[i])
		}
		bars[i] = chart.Value{Label: label, Value: v, Style: st}
	}
	bc := chart.BarChart{
		Width:      max(defaultWidth, 90*len(bars)+120),
		Height:     defaultHeight,
		Background: background(),
		BarWidth:   50,
		BarSpacing: 30,
		YAxis: chart.YAxis{
			Name:  "Shots",
			Range: &chart.ContinuousRange{Min: 0, Max: math.Ceil(top * 1.1)},
		},
		Bars: bars,
	}
	return bc.Render(f.provider(), w)
}

// CDF draws the survival curve and the overlay when one is set. The overlay never changes
// the axis bounds.
func CDF(w io.Writer, c *view.CDFChart, f Format) error {
	if c == nil || len(c.Points) == 0 {
		return ErrNoData
	}
	series := []chart.Series{pointSeries("CDF", c.Points, c.Color, true)}
	if c.Overlay != nil && c.Overlay.Target >= 0 {
		series = append(series, pointSeries(c.Overlay.Label, c.Overlay.Points, c.Overlay.Color, false))
	}
	ch := chart.Chart{
		Width:      defaultWidth,
		Height:     defaultHeight,
		Background: background(),
		XAxis: chart.XAxis{
			Name:  "Shots",
			Range: &chart.ContinuousRange{Min: c.XMin, Max: c.XMax},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: c.YMin, Max: c.YMax},
		},
		Series: series,
	}
	return ch.Render(f.provider(), w)
}

func pointSeries(name string, pts []view.Point, col view.Color, fill bool) chart.ContinuousSeries {
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.X, p.Y
	}
	xs, ys = atLeastTwo(xs, ys)
	st := chart.Style{
		StrokeWidth: 2,
		StrokeColor: toDrawing(col),
		DotWidth:    1,
		DotColor:    toDrawing(col),
	}
	if fill {
		st.FillColor = toDrawing(col.Alpha(0.2))
	}
	return chart.ContinuousSeries{Name: name, XValues: xs, YValues: ys, Style: st}
}

// Pad to at least two X values for go-chart.
func atLeastTwo(xs, ys []float64) ([]float64, []float64) {
	if len(xs) == 1 {
		return []float64{xs[0], xs[0] + 1}, []float64{ys[0], ys[0]}
	}
	return xs, ys
}

func pad(values []float64, n int) []float64 {
	if len(values) >= n {
		return values[:n]
	}
	out := make([]float64, n)
	copy(out, values)
	return out
}

// ========================= Bundles =========================

// Charts maps a widget name to its rendered markup.
type Charts map[string]string

func collect(out Charts, name string, draw func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := draw(&buf); err != nil {
		if errors.Is(err, ErrNoData) {
			return nil
		}
		return fmt.Errorf("render %s: %w", name, err)
	}
	out[name] = buf.String()
	return nil
}

// Step renders the charts of a step view to SVG.
func Step(v view.StepView) (Charts, error) {
	out := Charts{}
	if err := collect(out, "pdf", func(w io.Writer) error { return PDF(w, v.PDF, SVG) }); err != nil {
		return out, err
	}
	if err := collect(out, "token", func(w io.Writer) error { return Tokens(w, v.Token, SVG) }); err != nil {
		return out, err
	}
	return out, nil
}

// ShotsView renders the charts of a shots view to SVG.
func ShotsView(v view.ShotsView) (Charts, error) {
	out := Charts{}
	if err := collect(out, "shots", func(w io.Writer) error { return Shots(w, v.Shots, SVG) }); err != nil {
		return out, err
	}
	if err := collect(out, "cdf", func(w io.Writer) error { return CDF(w, v.CDF, SVG) }); err != nil {
		return out, err
	}
	return out, nil
}
