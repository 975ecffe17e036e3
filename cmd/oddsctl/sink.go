package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pefman/w40k-odds/internal/engine"
	"github.com/pefman/w40k-odds/internal/render"
	"github.com/pefman/w40k-odds/internal/view"
)

// fileSink writes every draw command into dir. Later draws of the same widget overwrite
// earlier ones, so the directory ends up holding the final page state.
type fileSink struct {
	dir    string
	format render.Format

	shots   view.ShotsView
	written []string
	err     error
}

func (s *fileSink) write(name string, draw func(io.Writer) error) {
	if s.err != nil {
		return
	}
	var buf bytes.Buffer
	if err := draw(&buf); err != nil {
		if errors.Is(err, render.ErrNoData) {
			return
		}
		s.err = fmt.Errorf("%s: %w", name, err)
		return
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		s.err = err
		return
	}
	for _, w := range s.written {
		if w == path {
			return
		}
	}
	s.written = append(s.written, path)
}

func (s *fileSink) text(name, body string) {
	s.write(name, func(w io.Writer) error {
		_, err := io.WriteString(w, body)
		return err
	})
}

func (s *fileSink) chart(name string) string { return name + "." + string(s.format) }

func (s *fileSink) DrawRange(engine.RangeState) {}

func (s *fileSink) DrawStep(f engine.StepFrame) {
	s.write(s.chart("pdf"), func(w io.Writer) error { return render.PDF(w, f.PDF, s.format) })
	s.write(s.chart("token"), func(w io.Writer) error { return render.Tokens(w, f.Token, s.format) })
	s.text("step.txt", f.StepView.Text())
	if f.PDFTable != "" {
		s.text("pdf_table.html", f.PDFTable)
	}
	if f.TokenTable != "" {
		s.text("token_table.html", f.TokenTable)
	}
}

func (s *fileSink) DrawShots(f engine.ShotsFrame) {
	s.shots = f.ShotsView
	s.write(s.chart("shots"), func(w io.Writer) error { return render.Shots(w, f.Shots, s.format) })
	s.write(s.chart("cdf"), func(w io.Writer) error { return render.CDF(w, f.CDF, s.format) })
	s.text("shots.txt", f.ShotsView.Text())
}

func (s *fileSink) DrawOverlay(f engine.OverlayFrame) {
	if s.shots.CDF == nil {
		return
	}
	cdf := *s.shots.CDF
	cdf.Overlay = f.Overlay
	s.write(s.chart("cdf"), func(w io.Writer) error { return render.CDF(w, &cdf, s.format) })
}

func (s *fileSink) DrawModifyTree(html string) { s.text("modify_tree.html", html) }

func (s *fileSink) PushHistory(url string) { s.text("history.txt", url+"\n") }

func (s *fileSink) Reload() {}

func (s *fileSink) ScrollToResults() {}
