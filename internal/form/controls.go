package form

import (
	"math"
	"strconv"
	"strings"
)

// ========================= Steppers =========================

// Stepper is a bounded numeric control. Every change is clamped to [Min, Max].
type Stepper struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Value parses input the way a numeric input reads: blank or garbage counts as 0.
// Fractions are kept. The result is clamped.
func (s Stepper) Value(input string) float64 {
	return s.clamp(parseNumber(input))
}

// Clamp returns the display text of input after clamping.
func (s Stepper) Clamp(input string) string {
	return formatNumber(s.Value(input))
}

// Step applies a +/- button press to the current display text.
func (s Stepper) Step(current string, delta float64) string {
	return formatNumber(s.clamp(s.Value(current) + delta))
}

// Set applies a set-value button.
func (s Stepper) Set(v float64) string {
	return formatNumber(s.clamp(v))
}

func (s Stepper) clamp(v float64) float64 {
	return math.Min(math.Max(v, s.Min), s.Max)
}

func parseNumber(input string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func formatNumber(v float64) string {
	if v == 0 {
		// no "-0"
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ========================= Groups =========================

// MutexGroup is a set of checkboxes of which at most one may be checked.
type MutexGroup struct {
	Members []string `yaml:"members" json:"members"`
}

// Toggle records a change of name and unchecks every other member when it became checked.
func (g MutexGroup) Toggle(checked map[string]bool, name string, state bool) {
	for _, m := range g.Members {
		checked[m] = false
	}
	checked[name] = state
}

// Normalize keeps only the last checked member, in declared order, of a serialized form.
// Unchecked boxes are absent from a serialized form.
func (g MutexGroup) Normalize(values map[string]string) {
	keep := ""
	for _, m := range g.Members {
		if _, ok := values[m]; ok {
			keep = m
		}
	}
	for _, m := range g.Members {
		if m != keep {
			delete(values, m)
		}
	}
}

// Relation ties a clamp group member to the member being changed.
type Relation string

const (
	RelNone Relation = ""
	RelGE   Relation = "ge" // member stays >= the changed member
	RelLE   Relation = "le" // member stays <= the changed member
)

// ClampMember is one stepper of a clamp group.
type ClampMember struct {
	Name string   `yaml:"name" json:"name"`
	Rel  Relation `yaml:"rel" json:"rel"`
}

// ClampGroup keeps an ordering between linked steppers: changing any member pushes GE
// members up to it and LE members down to it. Pushed members propagate their own change.
type ClampGroup struct {
	Members []ClampMember `yaml:"members" json:"members"`
}

// maxCascade bounds change propagation inside one group.
const maxCascade = 16

// Change applies the group relation after member changed took a new value in values.
// steppers, when non-nil, re-clamps every pushed member.
func (g ClampGroup) Change(values map[string]float64, changed string, steppers map[string]Stepper) {
	g.change(values, changed, steppers, 0)
}

func (g ClampGroup) change(values map[string]float64, changed string, steppers map[string]Stepper, depth int) {
	if depth >= maxCascade {
		return
	}
	v, ok := values[changed]
	if !ok {
		return
	}
	for _, m := range g.Members {
		if m.Name == changed {
			continue
		}
		cur, ok := values[m.Name]
		if !ok {
			continue
		}
		push := (m.Rel == RelGE && cur < v) || (m.Rel == RelLE && cur > v)
		if !push {
			continue
		}
		next := v
		if s, ok := steppers[m.Name]; ok {
			next = s.clamp(next)
		}
		if next == cur {
			continue
		}
		values[m.Name] = next
		g.change(values, m.Name, steppers, depth+1)
	}
}

// ========================= Controls =========================

// Controls declares the constrained controls of a page. Keys are qualified as
// "fragment.field".
type Controls struct {
	Steppers map[string]Stepper `yaml:"steppers" json:"steppers"`
	Mutex    []MutexGroup       `yaml:"mutex" json:"mutex"`
	Clamps   []ClampGroup       `yaml:"clamps" json:"clamps"`
}

// Key qualifies a field name with its fragment.
func Key(fragment, field string) string {
	return fragment + "." + field
}

// Normalize applies the declared controls to one submitted fragment in place:
// steppers are clamped, mutex groups keep a single member, and clamp groups are settled.
// A submitted form does not say which member changed last, so each untagged member acts as
// the changed one in declared order; a group whose members are all tagged is settled from
// every member in declared order instead.
func (c *Controls) Normalize(fragment string, values map[string]string) {
	prefix := fragment + "."
	local := func(key string) (string, bool) {
		if !strings.HasPrefix(key, prefix) {
			return "", false
		}
		return strings.TrimPrefix(key, prefix), true
	}

	for key, s := range c.Steppers {
		if name, ok := local(key); ok {
			if v, present := values[name]; present {
				values[name] = s.Clamp(v)
			}
		}
	}

	for _, g := range c.Mutex {
		scoped := MutexGroup{}
		for _, m := range g.Members {
			if name, ok := local(m); ok {
				scoped.Members = append(scoped.Members, name)
			}
		}
		scoped.Normalize(values)
	}

	for _, g := range c.Clamps {
		nums := map[string]float64{}
		for _, m := range g.Members {
			if name, ok := local(m.Name); ok {
				if v, present := values[name]; present {
					nums[m.Name] = parseNumber(v)
				}
			}
		}
		if len(nums) < 2 {
			continue
		}
		for _, name := range g.drivers() {
			g.Change(nums, name, c.Steppers)
		}
		for key, v := range nums {
			name, _ := local(key)
			values[name] = formatNumber(v)
		}
	}
}

// drivers lists the members a submitted group is settled from.
func (g ClampGroup) drivers() []string {
	var untagged, all []string
	for _, m := range g.Members {
		all = append(all, m.Name)
		if m.Rel == RelNone {
			untagged = append(untagged, m.Name)
		}
	}
	if len(untagged) > 0 {
		return untagged
	}
	return all
}
