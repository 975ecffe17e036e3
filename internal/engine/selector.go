package engine

// RangeState is the step range control as the page should show it.
type RangeState struct {
	Min      int  `json:"min"`
	Max      int  `json:"max"`
	Value    int  `json:"value"`
	Disabled bool `json:"disabled"`
}

// Resolve clamps a requested 1-based step index into [1, n]. n must be positive.
func Resolve(requested, n int) int {
	return max(1, min(requested, n))
}

// Selector maps the range control onto the store and remembers the last resolved index.
type Selector struct {
	last int // 0 = nothing drawn yet
}

// Reset reinitializes the control for a new result set of n steps: [1, n], positioned at n,
// disabled when there is nothing to choose.
func (s *Selector) Reset(n int) RangeState {
	s.last = 0
	return RangeState{Min: 1, Max: n, Value: n, Disabled: n <= 1}
}

// Select resolves requested (nil when the page has no range control) against n steps and
// reports whether the index differs from the last one drawn.
func (s *Selector) Select(requested *int, n int) (index int, changed bool) {
	if n <= 0 {
		return 0, false
	}
	index = n
	if requested != nil {
		index = Resolve(*requested, n)
	}
	if index == s.last {
		return index, false
	}
	s.last = index
	return index, true
}

// Current is the last resolved index, 0 before the first draw.
func (s *Selector) Current() int { return s.last }
