package engine

import "github.com/pefman/w40k-odds/internal/form"

// EventKind names one kind of page event.
type EventKind string

const (
	KindLoad     EventKind = "load"     // page loaded: Query, Forms
	KindSubmit   EventKind = "submit"   // user submitted: Forms
	KindStep     EventKind = "step"     // range control moved: Step
	KindSelect   EventKind = "select"   // bars selected on the shots chart: Indices
	KindPopState EventKind = "popstate" // back/forward navigation: URL
	KindResponse EventKind = "response" // simulation request completed
	KindState    EventKind = "state"    // read the selection state
)

// Event is one input to the engine loop. Only the fields of its kind are read.
type Event struct {
	Kind    EventKind
	Query   string
	Forms   map[string][]form.Field
	Step    *int // nil when the page has no range control
	Indices []int
	URL     string

	resp  *response
	reply chan State
}

// State is the selection state of an engine.
type State struct {
	Steps      int    `json:"steps"`
	Step       int    `json:"step"`   // 1-based, 0 when empty
	Target     int    `json:"target"` // -1 when no comparison
	FormState  string `json:"form_state"`
	Generation uint64 `json:"generation"`
}

var handlers = map[EventKind]func(*Engine, Event){
	KindLoad:     func(e *Engine, ev Event) { e.load(ev.Query, ev.Forms) },
	KindSubmit:   func(e *Engine, ev Event) { e.submit(ev.Forms, true, "") },
	KindStep:     func(e *Engine, ev Event) { e.selectStep(ev.Step) },
	KindSelect:   func(e *Engine, ev Event) { e.selectComparison(ev.Indices) },
	KindPopState: func(e *Engine, ev Event) { e.popState(ev.URL) },
	KindResponse: func(e *Engine, ev Event) {
		if ev.resp != nil {
			e.applyResponse(*ev.resp)
		}
	},
	KindState: func(e *Engine, ev Event) {
		if ev.reply != nil {
			ev.reply <- e.state()
		}
	},
}

func (e *Engine) dispatch(ev Event) {
	h, ok := handlers[ev.Kind]
	if !ok {
		e.log.Warn("unknown event", "kind", ev.Kind)
		return
	}
	h(e, ev)
}

func (e *Engine) state() State {
	return State{
		Steps:      e.store.Len(),
		Step:       e.store.CurrentStep(),
		Target:     e.store.Target(),
		FormState:  e.store.FormState(),
		Generation: e.orch.gen,
	}
}
