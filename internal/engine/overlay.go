package engine

import "github.com/pefman/w40k-odds/internal/models"

// NoTarget is the cleared comparison target.
const NoTarget = -1

// TargetFromSelection maps a bar selection to a comparison target: exactly one selected
// bar picks it, anything else clears.
func TargetFromSelection(indices []int) int {
	if len(indices) != 1 {
		return NoTarget
	}
	return indices[0]
}

// ComputeOverlay returns the overlay series for target, always as long as the primary CDF.
// A negative, out of range or own target yields all zeros. Otherwise the target's CDF is
// truncated or padded with 1.0 to the primary length.
func ComputeOverlay(d *models.ShotsToDie, target int) (values []float64, effective int) {
	if d == nil {
		return nil, NoTarget
	}
	primary := d.PrimaryCDF()
	values = make([]float64, len(primary))
	if target < 0 || target >= len(d.CDFs) || target == d.YourShipIndex {
		return values, NoTarget
	}
	cdf := d.CDFs[target]
	for i := range values {
		if i < len(cdf) {
			values[i] = cdf[i]
		} else {
			values[i] = 1
		}
	}
	return values, target
}
