package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pefman/w40k-odds/internal/api"
	"github.com/pefman/w40k-odds/internal/engine"
	"github.com/pefman/w40k-odds/internal/form"
	"github.com/pefman/w40k-odds/internal/models"
	"github.com/pefman/w40k-odds/internal/render"
)

func TestParseFields(t *testing.T) {
	forms, err := parseFields([]string{"attack0.dice=3", "defense.evade=1", "rounds=2", "attack0.dice=4"}, form.LayoutRounds)
	if err != nil {
		t.Fatal(err)
	}
	if got := forms["attack0"]; len(got) != 2 || got[1].Value != "4" {
		t.Errorf("attack0 = %+v", got)
	}
	if got := forms["simulate"]; len(got) != 1 || got[0] != (form.Field{Name: "rounds", Value: "2"}) {
		t.Errorf("bare field = %+v", got)
	}
	for _, bad := range []string{"noequals", "=3"} {
		if _, err := parseFields([]string{bad}, form.LayoutRounds); err == nil {
			t.Errorf("%q accepted", bad)
		}
	}
}

func TestFileSink_ShotsWithOverlay(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.SimulateResponse{
			ShotsToDie: &models.ShotsToDie{
				Labels:              []string{"A", "B"},
				Shots:               []float64{3, 2},
				YourShipIndex:       0,
				CDFs:                [][]float64{{0, 0.5, 1}, {0.2, 0.8, 1}},
				CDFUILengths:        []int{3, 3},
				ExpectedShotsString: "3.000",
			},
			FormStateString: "s=1",
		})
	}))
	defer ts.Close()

	dir := t.TempDir()
	sink := &fileSink{dir: dir, format: render.SVG}
	v, _ := engine.LookupVariant("shots")
	settled := make(chan engine.Outcome, 1)
	eng, err := engine.New(api.NewClient(api.Config{BaseURL: ts.URL}), sink, engine.Options{
		Variant:   v,
		OnSettled: func(o engine.Outcome) { settled <- o },
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go eng.Run(ctx)
	defer eng.Close()

	st, err := drive(ctx, eng, settled, map[string][]form.Field{
		"attack": {{Name: "dice", Value: "3"}},
	}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if st.Target != 1 || sink.err != nil {
		t.Fatalf("state %+v err %v", st, sink.err)
	}

	for _, name := range []string{"shots.svg", "cdf.svg", "shots.txt", "history.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if len(sink.written) != 4 {
		t.Errorf("written = %v", sink.written)
	}
	txt, _ := os.ReadFile(filepath.Join(dir, "shots.txt"))
	if !strings.HasPrefix(string(txt), "Expected Shots: 3.000\nA\t3.000 *\n") {
		t.Errorf("shots.txt = %q", txt)
	}
	hist, _ := os.ReadFile(filepath.Join(dir, "history.txt"))
	if string(hist) != "?s=1\n" {
		t.Errorf("history.txt = %q", hist)
	}
}

func TestDrive_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	newEngine := func(t *testing.T) (*engine.Engine, chan engine.Outcome) {
		v, _ := engine.LookupVariant("simulate")
		settled := make(chan engine.Outcome, 1)
		eng, err := engine.New(api.NewClient(api.Config{BaseURL: ts.URL}), &fileSink{dir: t.TempDir(), format: render.SVG}, engine.Options{
			Variant:   v,
			OnSettled: func(o engine.Outcome) { settled <- o },
		})
		if err != nil {
			t.Fatal(err)
		}
		return eng, settled
	}
	forms := map[string][]form.Field{"attack0": {{Name: "dice", Value: "3"}}}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("closed engine", func(t *testing.T) {
		eng, settled := newEngine(t)
		eng.Close()
		if _, err := drive(ctx, eng, settled, forms, 1, 0); !errors.Is(err, engine.ErrClosed) {
			t.Errorf("err = %v, want ErrClosed", err)
		}
	})

	t.Run("service error", func(t *testing.T) {
		eng, settled := newEngine(t)
		go eng.Run(ctx)
		defer eng.Close()
		_, err := drive(ctx, eng, settled, forms, 0, engine.NoTarget)
		var se *api.StatusError
		if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
			t.Errorf("err = %v, want status 503", err)
		}
	})
}
