package render

import (
	"bytes"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/pefman/w40k-odds/internal/models"
	"github.com/pefman/w40k-odds/internal/view"
)

func stepView() view.StepView {
	return view.NewBinder(view.PrecisionDefault).BindStep(1, models.StepResult{
		PDFXLabels:        []string{"0", "1", "2", "3"},
		HitInvCDF:         []float64{100, 70, 30, 5},
		HitPDF:            []float64{30, 35, 20, 5},
		CritPDF:           []float64{0, 5, 5, 0},
		ExpectedTotalHits: 1.05,
		AtLeastOneCrit:    10,
		ExpTokenLabels:    []string{"Focus", "Evade"},
		ExpAttackTokens:   []float64{0.75, 0},
		ExpDefenseTokens:  []float64{0, -1.5},
	})
}

func shotsView() view.ShotsView {
	return view.NewBinder(view.PrecisionDefault).BindShots(&models.ShotsToDie{
		Labels:              []string{"A", "B"},
		Shots:               []float64{2.5, 4},
		YourShipIndex:       0,
		CDFs:                [][]float64{{0, 0.4, 0.9, 1}, {0, 0.2, 0.5}},
		CDFUILengths:        []int{4, 3},
		ExpectedShotsString: "2.500",
	})
}

func TestStep_SVG(t *testing.T) {
	charts, err := Step(stepView())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	for _, name := range []string{"pdf", "token"} {
		svg, ok := charts[name]
		if !ok {
			t.Errorf("missing %s chart", name)
			continue
		}
		if !strings.HasPrefix(svg, "<svg") {
			t.Errorf("%s chart is not svg: %.40q", name, svg)
		}
	}
}

func TestStep_SkipsMissingTokenChart(t *testing.T) {
	v := stepView()
	v.Token = nil
	charts, err := Step(v)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := charts["token"]; ok {
		t.Error("token chart rendered without data")
	}
}

func TestShotsView_WithOverlay(t *testing.T) {
	v := shotsView()
	v.CDF.Overlay = view.BindOverlay(1, "B", []float64{0, 0.2, 0.5, 1})
	charts, err := ShotsView(v)
	if err != nil {
		t.Fatalf("ShotsView: %v", err)
	}
	if !strings.HasPrefix(charts["shots"], "<svg") || !strings.HasPrefix(charts["cdf"], "<svg") {
		t.Errorf("unexpected output: %v", charts)
	}
}

func TestPDF_PNG(t *testing.T) {
	var buf bytes.Buffer
	if err := PDF(&buf, stepView().PDF, PNG); err != nil {
		t.Fatalf("PDF: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != defaultWidth || img.Bounds().Dy() != defaultHeight {
		t.Errorf("size = %v", img.Bounds())
	}
}

func TestSinglePointCDF(t *testing.T) {
	var buf bytes.Buffer
	c := &view.CDFChart{Points: []view.Point{{X: 0, Y: 0}}, XMin: 0, XMax: 1, YMin: 0, YMax: 1, Color: view.ColorRed}
	if err := CDF(&buf, c, SVG); err != nil {
		t.Fatalf("CDF: %v", err)
	}
}

func TestNoData(t *testing.T) {
	var buf bytes.Buffer
	if err := Shots(&buf, &view.ShotsChart{}, SVG); !errors.Is(err, ErrNoData) {
		t.Errorf("Shots err = %v", err)
	}
	if err := PDF(&buf, nil, SVG); !errors.Is(err, ErrNoData) {
		t.Errorf("PDF err = %v", err)
	}
}

func TestBarOutline(t *testing.T) {
	xs, ys := barOutline([]float64{10, 20})
	if len(xs) != 8 || len(ys) != 8 {
		t.Fatalf("len = %d/%d", len(xs), len(ys))
	}
	if ys[1] != 10 || ys[5] != 20 || ys[3] != 0 {
		t.Errorf("ys = %v", ys)
	}
}
