// Command oddsctl submits one configuration to the simulation service through the
// presentation engine and writes the rendered charts and tables to a directory.
//
//	oddsctl -variant simulate -step 2 -out ./out simulate.rounds=2 attack0.dice=3
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pefman/w40k-odds/internal/api"
	"github.com/pefman/w40k-odds/internal/config"
	"github.com/pefman/w40k-odds/internal/engine"
	"github.com/pefman/w40k-odds/internal/form"
	"github.com/pefman/w40k-odds/internal/logger"
	"github.com/pefman/w40k-odds/internal/render"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs on every path.
func run() int {
	configFile := flag.String("config", "", "Optional viewer config YAML (simulation, page and logging blocks)")
	base := flag.String("base", "", "Simulation service base URL (overrides config)")
	endpoint := flag.String("endpoint", "", "Simulation endpoint (overrides config)")
	variantName := flag.String("variant", "", "Page variant: basic, simulate, shots, modify")
	step := flag.Int("step", 0, "Step to draw (1-based, 0 = last)")
	target := flag.Int("target", engine.NoTarget, "Shots target to compare against (-1 = none)")
	outDir := flag.String("out", ".", "Output directory")
	format := flag.String("format", "svg", "Chart format: svg or png")
	flag.Parse()

	logConfig, _ := logger.LoadConfig(*configFile)
	// Stdout carries the results; only warnings and up are logged unless asked for more.
	if strings.EqualFold(logConfig.Level, "info") {
		logConfig.Level = "WARN"
	}
	if err := logger.Initialize(logConfig); err != nil {
		return fail("logger: %v", err)
	}
	defer logger.Close()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		return fail("config: %v", err)
	}
	if *base != "" {
		cfg.Simulation.BaseURL = *base
	}
	if *endpoint != "" {
		cfg.Simulation.Endpoint = *endpoint
	}
	if *variantName != "" {
		cfg.Page.Variant = *variantName
	}
	f := render.Format(strings.ToLower(*format))
	if f != render.SVG && f != render.PNG {
		return fail("unknown format %q", *format)
	}

	variant, err := engine.LookupVariant(cfg.Page.Variant)
	if err != nil {
		return fail("%v", err)
	}
	if variant.Widgets, err = variant.Widgets.With(cfg.Page.Widgets); err != nil {
		return fail("%v", err)
	}
	forms, err := parseFields(flag.Args(), variant.Layout)
	if err != nil {
		return fail("%v", err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fail("output dir: %v", err)
	}

	client := api.NewClient(api.Config{
		BaseURL:  cfg.Simulation.BaseURL,
		Endpoint: cfg.Simulation.Endpoint,
		Timeout:  cfg.Simulation.Timeout(),
	})
	sink := &fileSink{dir: *outDir, format: f}
	settled := make(chan engine.Outcome, 1)
	controls := cfg.Page.Controls
	eng, err := engine.New(client, sink, engine.Options{
		Variant:   variant,
		Controls:  &controls,
		Timeout:   cfg.Simulation.Timeout(),
		SessionID: "oddsctl",
		OnSettled: func(o engine.Outcome) { settled <- o },
	})
	if err != nil {
		return fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Simulation.Timeout()+5*time.Second)
	defer cancel()
	go eng.Run(ctx)
	defer eng.Close()

	st, err := drive(ctx, eng, settled, forms, *step, *target)
	if err != nil {
		return fail("%v", err)
	}
	if sink.err != nil {
		return fail("write: %v", sink.err)
	}
	fmt.Printf("steps=%d step=%d target=%d form_state=%q\n", st.Steps, st.Step, st.Target, st.FormState)
	for _, name := range sink.written {
		fmt.Println(name)
	}
	return 0
}

// drive submits forms, waits for the response, then applies the requested step and target.
func drive(ctx context.Context, eng *engine.Engine, settled <-chan engine.Outcome, forms map[string][]form.Field, step, target int) (engine.State, error) {
	if err := eng.Post(engine.Event{Kind: engine.KindSubmit, Forms: forms}); err != nil {
		return engine.State{}, fmt.Errorf("submit: %w", err)
	}
	select {
	case out := <-settled:
		if out.Err != nil {
			return engine.State{}, fmt.Errorf("simulation: %w", out.Err)
		}
	case <-ctx.Done():
		return engine.State{}, fmt.Errorf("simulation: %w", ctx.Err())
	}

	if step > 0 {
		if err := eng.Post(engine.Event{Kind: engine.KindStep, Step: &step}); err != nil {
			return engine.State{}, fmt.Errorf("step: %w", err)
		}
	}
	if target >= 0 {
		if err := eng.Post(engine.Event{Kind: engine.KindSelect, Indices: []int{target}}); err != nil {
			return engine.State{}, fmt.Errorf("select: %w", err)
		}
	}
	// State is answered after every queued event ran.
	return eng.State(ctx)
}

// parseFields reads fragment.field=value arguments. A bare field=value goes to the first
// fragment of the layout.
func parseFields(args []string, layout form.Layout) (map[string][]form.Field, error) {
	forms := make(map[string][]form.Field)
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("bad field %q: want fragment.field=value", arg)
		}
		fragment, name, dotted := strings.Cut(key, ".")
		if !dotted {
			if len(layout.Fragments) == 0 {
				return nil, fmt.Errorf("bad field %q: layout has no fragments", arg)
			}
			fragment, name = layout.Fragments[0], key
		}
		forms[fragment] = append(forms[fragment], form.Field{Name: name, Value: value})
	}
	return forms, nil
}

func fail(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, "oddsctl: "+format+"\n", args...)
	return 1
}
