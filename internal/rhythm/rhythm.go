package rhythm

import (
	"errors"
	"math"
)

// ErrInvalidInput reports a degenerate note or rhythm sequence.
var ErrInvalidInput = errors.New("invalid input")

// Weight returns the rhythm weight applied to note slot i. Rhythms shorter
// than the note sequence wrap around.
func Weight(rhythm []float64, i int) float64 {
	return rhythm[i%len(rhythm)]
}

// TotalDuration sums the rhythm weights of every note slot, in rhythm units.
func TotalDuration(notes []int, rhythm []float64) (float64, error) {
	if len(notes) == 0 || len(rhythm) == 0 {
		return 0, ErrInvalidInput
	}
	var total float64
	for i := range notes {
		total += Weight(rhythm, i)
	}
	return total, nil
}

// ValidWeights reports whether every weight is a finite, non-negative number.
func ValidWeights(rhythm []float64) bool {
	for _, w := range rhythm {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return false
		}
	}
	return true
}
