package ml

import (
	"errors"
	"fmt"
)

// Scaler standardises a feature row as (x - mean) / scale. A zero scale leaves the centred
// value untouched, which is how constant training columns are stored.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *Scaler) Validate(numFeatures int) error {
	if len(s.Mean) != numFeatures || len(s.Scale) != numFeatures {
		return fmt.Errorf("scaler has %d means and %d scales for %d features", len(s.Mean), len(s.Scale), numFeatures)
	}
	return nil
}

// Transform returns a new standardised row; the input is not modified.
func (s *Scaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.Mean) {
		return nil, errors.New("feature count does not match scaler")
	}
	out := make([]float64, len(features))
	for i, value := range features {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (value - s.Mean[i]) / scale
	}
	return out, nil
}
