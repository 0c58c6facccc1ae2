package segment

import (
	"fmt"
	"iter"
)

// Classify maps each energy to true when energy/maxEnergy exceeds threshold,
// meaning the window is not silent.
func Classify(energies iter.Seq[float64], maxEnergy, threshold float64) (iter.Seq[bool], error) {
	if !(maxEnergy > 0) {
		return nil, fmt.Errorf("%w: max energy %v must be positive", ErrInvalidConfig, maxEnergy)
	}
	return func(yield func(bool) bool) {
		for e := range energies {
			if !yield(e/maxEnergy > threshold) {
				return
			}
		}
	}, nil
}
