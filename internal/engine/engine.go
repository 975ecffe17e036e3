// Package engine is the result presentation engine: it submits form state to the simulation
// service, keeps the latest results, maps the step selection and comparison overlay onto the
// page widgets and keeps the page URL in step with the last submission.
//
// Each engine runs a single event loop. UI events and request completions are handled one at
// a time on that loop; the only concurrent work is the simulation request itself.
package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pefman/w40k-odds/internal/form"
	"github.com/pefman/w40k-odds/internal/logger"
	"github.com/pefman/w40k-odds/internal/models"
	"github.com/pefman/w40k-odds/internal/render"
	"github.com/pefman/w40k-odds/internal/stats"
	"github.com/pefman/w40k-odds/internal/view"
)

// ErrClosed is returned when posting to an engine that has stopped.
var ErrClosed = errors.New("engine closed")

// ========================= Frames =========================

// StepFrame draws the selected step.
type StepFrame struct {
	view.StepView
	Charts render.Charts `json:"charts,omitempty"`
}

// ShotsFrame draws a shots-to-die dataset, with the overlay cleared.
type ShotsFrame struct {
	view.ShotsView
	Charts render.Charts `json:"charts,omitempty"`
}

// OverlayFrame redraws only the CDF chart with a new comparison series.
type OverlayFrame struct {
	Overlay *view.Overlay `json:"overlay"`
	Chart   string        `json:"chart,omitempty"` // cdf svg
}

// Sink applies draw commands to the page.
type Sink interface {
	DrawRange(RangeState)
	DrawStep(StepFrame)
	DrawShots(ShotsFrame)
	DrawOverlay(OverlayFrame)
	DrawModifyTree(html string)
	PushHistory(url string)
	Reload()
	ScrollToResults()
}

// Outcome reports how one response was handled.
type Outcome struct {
	Generation uint64
	Applied    bool
	Stale      bool
	Err        error
}

// Options configures one engine.
type Options struct {
	Variant     Variant
	Controls    *form.Controls
	History     *History // nil: reload mode with the variant's param style
	Timeout     time.Duration
	RenderSVG   bool
	SessionID   string
	OnSettled   func(Outcome) // called on the loop after every response
	EventBuffer int
}

// Engine is one page session.
type Engine struct {
	opts    Options
	sink    Sink
	binder  view.Binder
	store   *Store
	history *History
	orch    orchestrator
	log     *slog.Logger

	ctx       context.Context
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// New builds an engine. Run must be called to start it.
func New(sim Simulator, sink Sink, opts Options) (*Engine, error) {
	if opts.Variant.Name == "" {
		v, err := LookupVariant("simulate")
		if err != nil {
			return nil, err
		}
		opts.Variant = v
	}
	h := opts.History
	if h == nil {
		var err error
		if h, err = NewHistory(opts.Variant.Param, ModeReload, 0); err != nil {
			return nil, err
		}
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	return &Engine{
		opts:    opts,
		sink:    sink,
		binder:  view.NewBinder(opts.Variant.Precision),
		store:   NewStore(),
		history: h,
		orch:    orchestrator{sim: sim, timeout: opts.Timeout},
		log:     logger.With("session", opts.SessionID, "variant", opts.Variant.Name),
		ctx:     context.Background(),
		events:  make(chan Event, opts.EventBuffer),
		done:    make(chan struct{}),
	}, nil
}

// Run handles events until ctx is done or Close is called. In-flight requests are
// canceled with ctx.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	e.log.Debug("engine started")
	defer e.log.Debug("engine stopped")
	defer e.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return nil
		case ev := <-e.events:
			e.dispatch(ev)
		}
	}
}

// Post queues an event for the loop.
func (e *Engine) Post(ev Event) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	select {
	case e.events <- ev:
		return nil
	case <-e.done:
		return ErrClosed
	}
}

// Close stops the loop. Safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

// State returns the current selection state, read on the loop.
func (e *Engine) State(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	if err := e.Post(Event{Kind: KindState, reply: reply}); err != nil {
		return State{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-e.done:
		return State{}, ErrClosed
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Variant is the page preset this engine serves.
func (e *Engine) Variant() Variant { return e.opts.Variant }

// ========================= Operations =========================

// submit aggregates the page's forms and issues one request. A non-empty state travels
// with the fields.
func (e *Engine) submit(forms map[string][]form.Field, updateHistory bool, state string) {
	payload := form.Aggregate(e.opts.Variant.Layout, forms, e.opts.Controls).WithState(state)
	gen := e.orch.start(e.ctx, payload, updateHistory, func(r response) {
		// The loop may be gone by now; the completion is dropped then.
		_ = e.Post(Event{Kind: KindResponse, resp: &r})
	})
	stats.Inc(stats.Submissions)
	e.log.Info("submission", "generation", gen, "fields", payload.Len(), "state", state != "", "update_history", updateHistory)
}

// applyResponse runs on the loop for every completion.
func (e *Engine) applyResponse(r response) {
	out := Outcome{Generation: r.gen}
	defer func() {
		if e.opts.OnSettled != nil {
			e.opts.OnSettled(out)
		}
	}()

	if !e.orch.current(r) {
		out.Stale = true
		stats.Inc(stats.StaleDropped)
		e.log.Debug("stale response dropped", "generation", r.gen)
		return
	}
	err := r.err
	if err == nil {
		err = r.res.Validate()
	}
	if err != nil {
		out.Err = err
		stats.Inc(stats.Failures)
		e.log.Warn("simulation failed", "generation", r.gen, "took", r.took, "error", err)
		return
	}

	rs := e.store.Replace(r.res)
	e.history.Remember(e.store.Snapshot())
	if r.updateHistory {
		if u, ok := e.history.Publish(r.res.FormStateString); ok {
			e.sink.PushHistory(u)
			stats.Inc(stats.HistoryPublishes)
			e.log.Info("history published", "generation", r.gen, "url", u)
		}
	}
	e.redrawAll(rs)
	e.sink.ScrollToResults()
	out.Applied = true
	stats.Inc(stats.Applied)
	e.log.Info("response applied", "generation", r.gen, "steps", e.store.Len(), "took", r.took)
}

// redrawAll draws every widget after the store changed.
func (e *Engine) redrawAll(rs RangeState) {
	w := e.opts.Variant.Widgets
	if e.store.Len() > 0 {
		if w.Range {
			e.sink.DrawRange(rs)
		}
		// A fresh range control sits at its maximum.
		e.selectStep(nil)
	}
	if shots := e.store.Shots(); shots != nil && (w.Shots || w.CDF) {
		e.drawShots()
	}
	if tree := e.store.Tree(); tree != "" && w.Tree {
		e.sink.DrawModifyTree(tree)
	}
}

// selectStep draws the resolved step when it differs from the last one drawn.
func (e *Engine) selectStep(requested *int) {
	if !e.opts.Variant.Widgets.Range {
		requested = nil
	}
	idx, changed := e.store.SelectStep(requested)
	if !changed || !e.opts.Variant.Widgets.steps() {
		return
	}
	step, _ := e.store.Step(idx)
	frame := StepFrame{StepView: e.bindStep(idx, step)}
	if e.opts.RenderSVG {
		charts, err := render.Step(frame.StepView)
		if err != nil {
			e.log.Warn("render step", "error", err)
		}
		frame.Charts = charts
	}
	e.sink.DrawStep(frame)
	stats.Inc(stats.Redraws)
}

// bindStep trims the bound view to the widgets the page has.
func (e *Engine) bindStep(idx int, step models.StepResult) view.StepView {
	w := e.opts.Variant.Widgets
	v := e.binder.BindStep(idx, step)
	if !w.PDF {
		v.PDF = nil
	}
	if !w.Token {
		v.Token = nil
	}
	if !w.Tables {
		v.PDFTable, v.TokenTable = "", ""
	}
	return v
}

func (e *Engine) drawShots() {
	w := e.opts.Variant.Widgets
	v := e.binder.BindShots(e.store.Shots())
	if v.CDF != nil {
		values, target := e.store.SelectComparison(NoTarget)
		v.CDF.Overlay = view.BindOverlay(target, "", values)
	}
	if !w.Shots {
		v.Shots = nil
	}
	if !w.CDF {
		v.CDF = nil
	}
	frame := ShotsFrame{ShotsView: v}
	if e.opts.RenderSVG {
		charts, err := render.ShotsView(v)
		if err != nil {
			e.log.Warn("render shots", "error", err)
		}
		frame.Charts = charts
	}
	e.sink.DrawShots(frame)
	stats.Inc(stats.Redraws)
}

// selectComparison redraws the CDF chart with the overlay for the selected bars.
func (e *Engine) selectComparison(indices []int) {
	shots := e.store.Shots()
	if shots == nil || !e.opts.Variant.Widgets.CDF {
		return
	}
	values, target := e.store.SelectComparison(TargetFromSelection(indices))
	label := ""
	if target >= 0 && target < len(shots.Labels) {
		label = shots.Labels[target]
	}
	frame := OverlayFrame{Overlay: view.BindOverlay(target, label, values)}
	if e.opts.RenderSVG {
		cdf := e.binder.BindShots(shots).CDF
		cdf.Overlay = frame.Overlay
		var buf bytes.Buffer
		if err := render.CDF(&buf, cdf, render.SVG); err != nil {
			e.log.Warn("render overlay", "error", err)
		} else {
			frame.Chart = buf.String()
		}
	}
	e.sink.DrawOverlay(frame)
	stats.Inc(stats.OverlayChanges)
}

// popState handles back/forward navigation.
func (e *Engine) popState(rawURL string) {
	snap, ok := e.history.PopState(rawURL)
	if !ok {
		stats.Inc(stats.Reloads)
		e.log.Debug("navigation reload", "url", rawURL)
		e.sink.Reload()
		return
	}
	// A pending response must not overwrite the restored page.
	e.orch.invalidate()
	rs := e.store.Restore(snap)
	e.redrawAll(rs)
	stats.Inc(stats.SnapshotRestores)
	e.log.Info("history snapshot restored", "url", rawURL, "steps", e.store.Len())
}

// load handles the first event of a page.
func (e *Engine) load(rawQuery string, forms map[string][]form.Field) {
	if !ShouldAutoSubmit(rawQuery) {
		return
	}
	// The page may load with empty forms; the state in the URL lets the service rebuild them.
	e.submit(forms, false, StateFromQuery(e.history.Style(), rawQuery))
}
