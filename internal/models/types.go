package models

import (
	"errors"
	"fmt"
	"math"
)

// ========================= Simulation Results =========================
// Wire shapes returned by the simulation service. Field names follow its JSON.

// StepResult is the outcome distribution of one attack step.
type StepResult struct {
	PDFXLabels        []string  `json:"pdf_x_labels"`
	HitInvCDF         []float64 `json:"hit_inv_cdf"` // P(hits >= x), percent
	HitPDF            []float64 `json:"hit_pdf"`     // percent
	CritPDF           []float64 `json:"crit_pdf"`    // percent
	ExpectedTotalHits float64   `json:"expected_total_hits"`
	AtLeastOneCrit    float64   `json:"at_least_one_crit"` // percent
	// Token deltas are parallel to ExpTokenLabels.
	ExpTokenLabels   []string  `json:"exp_token_labels,omitempty"`
	ExpAttackTokens  []float64 `json:"exp_attack_tokens,omitempty"`
	ExpDefenseTokens []float64 `json:"exp_defense_tokens,omitempty"`
	// Pre-rendered by the simulation service, passed through untouched.
	PDFTableHTML   string `json:"pdf_table_html,omitempty"`
	TokenTableHTML string `json:"token_table_html,omitempty"`
}

// TokenDelta is the expected change of one token kind for both sides.
type TokenDelta struct {
	Label    string  `json:"label"`
	Attacker float64 `json:"attacker"`
	Defender float64 `json:"defender"`
}

// TokenDeltas zips the parallel token arrays. Missing values read as zero.
func (s StepResult) TokenDeltas() []TokenDelta {
	out := make([]TokenDelta, 0, len(s.ExpTokenLabels))
	for i, l := range s.ExpTokenLabels {
		d := TokenDelta{Label: l}
		if i < len(s.ExpAttackTokens) {
			d.Attacker = s.ExpAttackTokens[i]
		}
		if i < len(s.ExpDefenseTokens) {
			d.Defender = s.ExpDefenseTokens[i]
		}
		out = append(out, d)
	}
	return out
}

// ResultSet is the ordered sequence of step results of one response, 1-based in the UI.
type ResultSet []StepResult

// ShotsToDie describes how many shots each possible target takes to destroy.
type ShotsToDie struct {
	Labels        []string    `json:"shots_to_die_labels"`
	Shots         []float64   `json:"shots_to_die"`
	YourShipIndex int         `json:"your_ship_index"`
	CDFs          [][]float64 `json:"shots_cdfs"`
	// CDFUILengths bounds the meaningful prefix of each CDF; the tail is ~1.0.
	CDFUILengths        []int  `json:"shots_cdf_ui_lengths"`
	ExpectedShotsString string `json:"expected_shots_string"`
}

// PrimaryCDF returns the viewer's own CDF truncated to its UI length.
func (d *ShotsToDie) PrimaryCDF() []float64 {
	if d == nil || d.YourShipIndex < 0 || d.YourShipIndex >= len(d.CDFs) {
		return nil
	}
	cdf := d.CDFs[d.YourShipIndex]
	n := len(cdf)
	if d.YourShipIndex < len(d.CDFUILengths) {
		if l := d.CDFUILengths[d.YourShipIndex]; l >= 0 && l < n {
			n = l
		}
	}
	return cdf[:n]
}

// SimulateResponse is the structured reply of the simulation service. Depending on the
// page variant it carries one step (promoted fields), a multi-step Results set,
// a shots-to-die dataset, or only a modify tree.
type SimulateResponse struct {
	*StepResult
	*ShotsToDie
	Results         ResultSet `json:"results,omitempty"`
	FormStateString string    `json:"form_state_string"`
	ModifyTreeHTML  string    `json:"modify_tree_html,omitempty"`
}

// Steps normalizes the single-step and multi-step shapes into one set.
func (r *SimulateResponse) Steps() ResultSet {
	if r == nil {
		return nil
	}
	if len(r.Results) > 0 {
		return r.Results
	}
	if r.StepResult != nil {
		return ResultSet{*r.StepResult}
	}
	return nil
}

// ========================= Validation =========================

// ErrMalformedResponse marks a reply that does not satisfy the result invariants.
var ErrMalformedResponse = errors.New("malformed simulation response")

// percentTolerance absorbs rounding in service-side percent arithmetic.
const percentTolerance = 1e-6

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// Validate checks the response shape and the numeric invariants of every dataset in it.
func (r *SimulateResponse) Validate() error {
	if r == nil {
		return malformed("nil response")
	}
	steps := r.Steps()
	if len(steps) == 0 && r.ShotsToDie == nil && r.ModifyTreeHTML == "" {
		return malformed("no results, shots dataset or modify tree")
	}
	for i, s := range steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	if r.ShotsToDie != nil {
		if err := r.ShotsToDie.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks series lengths, percent bounds, stacking and monotonicity.
func (s StepResult) Validate() error {
	n := len(s.PDFXLabels)
	if len(s.HitInvCDF) != n || len(s.HitPDF) != n || len(s.CritPDF) != n {
		return malformed("series lengths differ: labels=%d inv=%d hit=%d crit=%d",
			n, len(s.HitInvCDF), len(s.HitPDF), len(s.CritPDF))
	}
	for k := 0; k < n; k++ {
		for _, v := range []float64{s.HitInvCDF[k], s.HitPDF[k], s.CritPDF[k]} {
			if math.IsNaN(v) || v < -percentTolerance || v > 100+percentTolerance {
				return malformed("percentage %v out of range at %d", v, k)
			}
		}
		if s.HitPDF[k]+s.CritPDF[k] > 100+percentTolerance {
			return malformed("hit+crit exceeds 100 at %d", k)
		}
		if k > 0 && s.HitInvCDF[k] > s.HitInvCDF[k-1]+percentTolerance {
			return malformed("inverse cdf increases at %d", k)
		}
	}
	if s.ExpectedTotalHits < 0 || math.IsNaN(s.ExpectedTotalHits) {
		return malformed("expected_total_hits %v", s.ExpectedTotalHits)
	}
	if len(s.ExpAttackTokens) != len(s.ExpTokenLabels) || len(s.ExpDefenseTokens) != len(s.ExpTokenLabels) {
		return malformed("token series lengths differ")
	}
	return nil
}

// Validate checks the parallel arrays and the per-target CDFs.
func (d *ShotsToDie) Validate() error {
	n := len(d.Labels)
	if len(d.Shots) != n {
		return malformed("shots_to_die has %d values for %d labels", len(d.Shots), n)
	}
	if d.YourShipIndex < 0 || d.YourShipIndex >= n {
		return malformed("your_ship_index %d out of range", d.YourShipIndex)
	}
	if len(d.CDFs) != n {
		return malformed("shots_cdfs has %d entries for %d labels", len(d.CDFs), n)
	}
	if len(d.CDFUILengths) != 0 && len(d.CDFUILengths) != n {
		return malformed("shots_cdf_ui_lengths has %d entries for %d labels", len(d.CDFUILengths), n)
	}
	for t, cdf := range d.CDFs {
		for i, v := range cdf {
			if math.IsNaN(v) || v < -percentTolerance || v > 1+percentTolerance {
				return malformed("cdf %d value %v out of range at %d", t, v, i)
			}
			if i > 0 && v < cdf[i-1]-percentTolerance {
				return malformed("cdf %d decreases at %d", t, i)
			}
		}
	}
	return nil
}
