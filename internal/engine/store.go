package engine

import "github.com/pefman/w40k-odds/internal/models"

// Snapshot is a copy of the store contents kept for history restores.
type Snapshot struct {
	Steps     models.ResultSet
	Shots     *models.ShotsToDie
	Tree      string
	FormState string
}

// Store holds the latest applied response. Only the engine loop touches it.
type Store struct {
	steps     models.ResultSet
	shots     *models.ShotsToDie
	tree      string
	formState string

	selector Selector
	target   int
}

func NewStore() *Store {
	return &Store{target: NoTarget}
}

// Replace swaps in a new response wholesale. The step selection and the comparison target
// start over.
func (s *Store) Replace(res *models.SimulateResponse) RangeState {
	return s.Restore(Snapshot{
		Steps:     res.Steps(),
		Shots:     res.ShotsToDie,
		Tree:      res.ModifyTreeHTML,
		FormState: res.FormStateString,
	})
}

// Restore installs a snapshot the same way Replace installs a response.
func (s *Store) Restore(snap Snapshot) RangeState {
	s.steps = snap.Steps
	s.shots = snap.Shots
	s.tree = snap.Tree
	s.formState = snap.FormState
	s.target = NoTarget
	return s.selector.Reset(len(s.steps))
}

// Snapshot copies the current contents. Results are immutable once stored, so the
// slices are shared.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{Steps: s.steps, Shots: s.shots, Tree: s.tree, FormState: s.formState}
}

// Len is the number of steps, 0 when empty.
func (s *Store) Len() int { return len(s.steps) }

// Step returns step i (1-based).
func (s *Store) Step(i int) (models.StepResult, bool) {
	if i < 1 || i > len(s.steps) {
		return models.StepResult{}, false
	}
	return s.steps[i-1], true
}

// SelectStep resolves the requested index and reports whether it changed since the last draw.
func (s *Store) SelectStep(requested *int) (int, bool) {
	return s.selector.Select(requested, len(s.steps))
}

// SelectComparison sets the comparison target and returns the overlay values. The stored
// target is the effective one (NoTarget when the request clears).
func (s *Store) SelectComparison(target int) ([]float64, int) {
	values, effective := ComputeOverlay(s.shots, target)
	s.target = effective
	return values, effective
}

func (s *Store) Shots() *models.ShotsToDie { return s.shots }
func (s *Store) Tree() string              { return s.tree }
func (s *Store) FormState() string         { return s.formState }
func (s *Store) Target() int               { return s.target }
func (s *Store) CurrentStep() int          { return s.selector.Current() }
