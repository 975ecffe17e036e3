// Package form turns the browser's serialized form fragments into the one structured
// payload the simulation service expects.
package form

import (
	"encoding/json"
	"strconv"
)

// Field is one serialized control, in the {name, value} shape browsers produce for a form.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MaxRounds is the number of per-round attack fragments a multi-round page can carry.
const MaxRounds = 7

// Layout names the fragments a page submits. A flat layout has exactly one fragment and
// sends its fields without the fragment wrapper.
type Layout struct {
	Fragments []string `json:"fragments"`
	Flat      bool     `json:"flat,omitempty"`
}

var (
	// LayoutCombined is a single form posted as one flat field mapping.
	LayoutCombined = Layout{Fragments: []string{"simulate"}, Flat: true}
	// LayoutSplit carries separate attack, defense and roll fragments.
	LayoutSplit = Layout{Fragments: []string{"attack", "defense", "roll"}}
	// LayoutShots carries the attack and defense fragments of the shots-to-die page.
	LayoutShots = Layout{Fragments: []string{"defense", "attack"}}
	// LayoutRounds carries shared simulate/defense fragments plus one attack fragment per round.
	LayoutRounds = roundsLayout()
)

func roundsLayout() Layout {
	l := Layout{Fragments: []string{"simulate", "defense"}}
	for i := 0; i < MaxRounds; i++ {
		l.Fragments = append(l.Fragments, "attack"+strconv.Itoa(i))
	}
	return l
}

// Payload is the aggregated request body.
type Payload struct {
	flat   string
	values map[string]map[string]string
	state  string
}

// StateKey names the top-level payload field carrying a form state string, the same
// opaque value the service returns as form_state_string.
const StateKey = "form_state_string"

// WithState returns a copy of p that also carries state. The service rebuilds the
// form from it when the fragments are empty.
func (p Payload) WithState(state string) Payload {
	p.state = state
	return p
}

// State returns the carried form state string, if any.
func (p Payload) State() string { return p.state }

// Empty reports whether the payload has neither fields nor a form state.
func (p Payload) Empty() bool {
	return p.Len() == 0 && p.state == ""
}

// Fragment returns the field mapping of one fragment (nil when the layout has no such fragment).
func (p Payload) Fragment(name string) map[string]string {
	return p.values[name]
}

// Len reports the number of fields across all fragments.
func (p Payload) Len() int {
	n := 0
	for _, m := range p.values {
		n += len(m)
	}
	return n
}

// MarshalJSON encodes either the flat field mapping or the fragment-name mapping. A carried
// form state is added under StateKey.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.flat != "" {
		m := p.values[p.flat]
		if p.state != "" {
			withState := make(map[string]string, len(m)+1)
			for k, v := range m {
				withState[k] = v
			}
			withState[StateKey] = p.state
			m = withState
		}
		if m == nil {
			m = map[string]string{}
		}
		return json.Marshal(m)
	}
	if p.state != "" {
		m := make(map[string]any, len(p.values)+1)
		for k, v := range p.values {
			m[k] = v
		}
		m[StateKey] = p.state
		return json.Marshal(m)
	}
	if p.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.values)
}

// Aggregate builds the payload for layout from the submitted fragments. Every fragment the
// layout names is present in the result, empty when the page did not submit it. Repeated
// field names within a fragment resolve last-wins. Fragments outside the layout are ignored.
func Aggregate(layout Layout, submitted map[string][]Field, controls *Controls) Payload {
	values := make(map[string]map[string]string, len(layout.Fragments))
	for _, name := range layout.Fragments {
		m := make(map[string]string, len(submitted[name]))
		for _, f := range submitted[name] {
			m[f.Name] = f.Value
		}
		if controls != nil {
			controls.Normalize(name, m)
		}
		values[name] = m
	}
	p := Payload{values: values}
	if layout.Flat && len(layout.Fragments) > 0 {
		p.flat = layout.Fragments[0]
	}
	return p
}
