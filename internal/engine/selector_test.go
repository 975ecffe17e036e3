package engine

import "testing"

func TestResolve(t *testing.T) {
	for n := 1; n <= 7; n++ {
		for i := -2; i <= 9; i++ {
			want := i
			if want < 1 {
				want = 1
			}
			if want > n {
				want = n
			}
			if got := Resolve(i, n); got != want {
				t.Errorf("Resolve(%d, %d) = %d, want %d", i, n, got, want)
			}
		}
	}
}

func intp(v int) *int { return &v }

func TestSelector_RedrawOncePerIndex(t *testing.T) {
	var s Selector
	rs := s.Reset(3)
	if rs != (RangeState{Min: 1, Max: 3, Value: 3, Disabled: false}) {
		t.Errorf("Reset(3) = %+v", rs)
	}

	steps := []struct {
		req     *int
		index   int
		changed bool
	}{
		{nil, 3, true},
		{intp(3), 3, false},
		{intp(10), 3, false},
		{intp(1), 1, true},
		{intp(-4), 1, false},
		{intp(2), 2, true},
		{intp(2), 2, false},
	}
	for i, st := range steps {
		idx, changed := s.Select(st.req, 3)
		if idx != st.index || changed != st.changed {
			t.Errorf("step %d: Select = (%d, %v), want (%d, %v)", i, idx, changed, st.index, st.changed)
		}
	}
}

func TestSelector_ResetForgetsMemo(t *testing.T) {
	var s Selector
	s.Reset(2)
	s.Select(nil, 2)
	if rs := s.Reset(2); rs.Value != 2 {
		t.Fatalf("Reset = %+v", rs)
	}
	if _, changed := s.Select(nil, 2); !changed {
		t.Error("a new result set must redraw even at the same index")
	}
}

func TestSelector_SingleStepDisabled(t *testing.T) {
	var s Selector
	if rs := s.Reset(1); !rs.Disabled || rs.Min != 1 || rs.Max != 1 || rs.Value != 1 {
		t.Errorf("Reset(1) = %+v", rs)
	}
}

func TestSelector_Empty(t *testing.T) {
	var s Selector
	s.Reset(0)
	if idx, changed := s.Select(intp(1), 0); idx != 0 || changed {
		t.Errorf("Select on empty = (%d, %v)", idx, changed)
	}
}
