package form

import (
	"encoding/json"
	"testing"
)

func TestStepper_Clamp(t *testing.T) {
	s := Stepper{Min: 0, Max: 6}
	tests := []struct {
		input string
		want  string
	}{
		{"9", "6"},
		{"-3", "0"},
		{"4", "4"},
		{"", "0"},
		{"abc", "0"},
		{"2.6", "2.6"},
		{"6.5", "6"},
		{"-0", "0"},
		{" 5 ", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := s.Clamp(tt.input); got != tt.want {
				t.Errorf("Clamp(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStepper_StepAndSet(t *testing.T) {
	s := Stepper{Min: 1, Max: 3}
	if got := s.Step("3", 1); got != "3" {
		t.Errorf("Step(3,+1) = %q, want 3", got)
	}
	if got := s.Step("2", -1); got != "1" {
		t.Errorf("Step(2,-1) = %q, want 1", got)
	}
	if got := s.Set(10); got != "3" {
		t.Errorf("Set(10) = %q, want 3", got)
	}
	if got := s.Step("1.5", 1); got != "2.5" {
		t.Errorf("Step(1.5,+1) = %q, want 2.5", got)
	}
}

func TestMutexGroup_Toggle(t *testing.T) {
	g := MutexGroup{Members: []string{"predator_1", "predator_2"}}
	checked := map[string]bool{"predator_1": true}
	g.Toggle(checked, "predator_2", true)
	if checked["predator_1"] || !checked["predator_2"] {
		t.Errorf("after checking predator_2: %v", checked)
	}
	g.Toggle(checked, "predator_2", false)
	if checked["predator_1"] || checked["predator_2"] {
		t.Errorf("after unchecking predator_2: %v", checked)
	}
}

func TestClampGroup_Change(t *testing.T) {
	g := ClampGroup{Members: []ClampMember{
		{Name: "dice"},
		{Name: "rerolls", Rel: RelLE},
		{Name: "minimum", Rel: RelGE},
	}}

	values := map[string]float64{"dice": 2, "rerolls": 4, "minimum": 1}
	g.Change(values, "dice", nil)
	if values["rerolls"] != 2 {
		t.Errorf("rerolls = %v, want 2 (pushed down)", values["rerolls"])
	}
	if values["minimum"] != 2 {
		t.Errorf("minimum = %v, want 2 (pushed up)", values["minimum"])
	}

	values = map[string]float64{"dice": 5, "rerolls": 1, "minimum": 6}
	g.Change(values, "dice", map[string]Stepper{"minimum": {Min: 0, Max: 6}})
	if values["rerolls"] != 1 || values["minimum"] != 6 {
		t.Errorf("already ordered members moved: %v", values)
	}
}

func TestAggregate_Rounds(t *testing.T) {
	submitted := map[string][]Field{
		"simulate": {{Name: "attack_count", Value: "2"}},
		"defense":  {{Name: "agility", Value: "3"}},
		"attack0":  {{Name: "dice", Value: "3"}, {Name: "dice", Value: "4"}},
		"unknown":  {{Name: "x", Value: "1"}},
	}
	p := Aggregate(LayoutRounds, submitted, nil)

	if got := p.Fragment("attack0")["dice"]; got != "4" {
		t.Errorf("attack0.dice = %q, want last-wins 4", got)
	}
	if p.Fragment("attack6") == nil {
		t.Error("attack6 fragment missing, want empty mapping")
	}
	if p.Fragment("unknown") != nil {
		t.Error("fragment outside the layout was aggregated")
	}

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 2+MaxRounds {
		t.Errorf("payload has %d fragments, want %d", len(decoded), 2+MaxRounds)
	}
}

func TestAggregate_Combined(t *testing.T) {
	submitted := map[string][]Field{
		"simulate": {{Name: "attack_dice", Value: "3"}, {Name: "focus", Value: "on"}},
	}
	raw, err := json.Marshal(Aggregate(LayoutCombined, submitted, nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"attack_dice":"3","focus":"on"}` {
		t.Errorf("flat payload = %s", raw)
	}
}

func TestAggregate_NormalizesControls(t *testing.T) {
	controls := &Controls{
		Steppers: map[string]Stepper{
			"attack.dice":    {Min: 0, Max: 6},
			"attack.rerolls": {Min: 0, Max: 6},
		},
		Mutex: []MutexGroup{{Members: []string{"attack.predator_1", "attack.predator_2"}}},
		Clamps: []ClampGroup{{Members: []ClampMember{
			{Name: "attack.dice"},
			{Name: "attack.rerolls", Rel: RelLE},
		}}},
	}
	submitted := map[string][]Field{
		"attack": {
			{Name: "dice", Value: "9"},
			{Name: "rerolls", Value: "8"},
			{Name: "predator_1", Value: "on"},
			{Name: "predator_2", Value: "on"},
		},
		"defense": {{Name: "dice", Value: "9"}},
	}
	p := Aggregate(LayoutShots, submitted, controls)
	attack := p.Fragment("attack")

	if attack["dice"] != "6" {
		t.Errorf("dice = %q, want 6", attack["dice"])
	}
	if attack["rerolls"] != "6" {
		t.Errorf("rerolls = %q, want 6", attack["rerolls"])
	}
	if _, ok := attack["predator_1"]; ok {
		t.Error("predator_1 kept, want only the last checked mutex member")
	}
	if attack["predator_2"] != "on" {
		t.Errorf("predator_2 = %q, want on", attack["predator_2"])
	}
	if got := p.Fragment("defense")["dice"]; got != "9" {
		t.Errorf("defense.dice = %q, undeclared fields must pass through", got)
	}
}

func TestAggregate_ClampGroupLowersLinkedStepper(t *testing.T) {
	controls := &Controls{
		Clamps: []ClampGroup{{Members: []ClampMember{
			{Name: "attack.dice"},
			{Name: "attack.rerolls", Rel: RelLE},
		}}},
	}
	submitted := map[string][]Field{
		"attack": {{Name: "dice", Value: "2"}, {Name: "rerolls", Value: "5"}},
	}
	p := Aggregate(LayoutShots, submitted, controls)
	if got := p.Fragment("attack")["rerolls"]; got != "2" {
		t.Errorf("rerolls = %q, want 2", got)
	}
}

func TestAggregate_TaggedClampGroupIsSettled(t *testing.T) {
	// Shape of the sample config.yaml: both members carry a relation.
	controls := &Controls{
		Clamps: []ClampGroup{{Members: []ClampMember{
			{Name: "attack0.min_damage", Rel: RelLE},
			{Name: "attack0.max_damage", Rel: RelGE},
		}}},
	}
	tests := []struct {
		min, max         string
		wantMin, wantMax string
	}{
		{"5", "3", "5", "5"},
		{"2", "4", "2", "4"},
		{"1.5", "1", "1.5", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.min+"/"+tt.max, func(t *testing.T) {
			submitted := map[string][]Field{
				"attack0": {{Name: "min_damage", Value: tt.min}, {Name: "max_damage", Value: tt.max}},
			}
			a := Aggregate(LayoutRounds, submitted, controls).Fragment("attack0")
			if a["min_damage"] != tt.wantMin || a["max_damage"] != tt.wantMax {
				t.Errorf("min/max = %s/%s, want %s/%s", a["min_damage"], a["max_damage"], tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestAggregate_TaggedClampGroupRespectsSteppers(t *testing.T) {
	controls := &Controls{
		Steppers: map[string]Stepper{"attack0.max_damage": {Min: 0, Max: 4}},
		Clamps: []ClampGroup{{Members: []ClampMember{
			{Name: "attack0.min_damage", Rel: RelLE},
			{Name: "attack0.max_damage", Rel: RelGE},
		}}},
	}
	submitted := map[string][]Field{
		"attack0": {{Name: "min_damage", Value: "6"}, {Name: "max_damage", Value: "9"}},
	}
	a := Aggregate(LayoutRounds, submitted, controls).Fragment("attack0")
	// max clamps to 4 first, then pulls min down to it.
	if a["min_damage"] != "4" || a["max_damage"] != "4" {
		t.Errorf("min/max = %s/%s, want 4/4", a["min_damage"], a["max_damage"])
	}
}

func TestPayload_WithState(t *testing.T) {
	empty := Aggregate(LayoutSplit, nil, nil)
	if !empty.Empty() {
		t.Fatal("payload without fields or state must be empty")
	}
	p := empty.WithState("a=1")
	if p.Empty() || p.Len() != 0 {
		t.Fatalf("Empty=%v Len=%d", p.Empty(), p.Len())
	}
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded[StateKey] != "a=1" || len(decoded) != 4 {
		t.Errorf("fragment payload = %s", raw)
	}

	flat, err := json.Marshal(Aggregate(LayoutCombined, map[string][]Field{
		"simulate": {{Name: "dice", Value: "3"}},
	}, nil).WithState("a=1"))
	if err != nil {
		t.Fatal(err)
	}
	if string(flat) != `{"dice":"3","form_state_string":"a=1"}` {
		t.Errorf("flat payload = %s", flat)
	}
}
