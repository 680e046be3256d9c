package ml

import (
	"errors"
	"fmt"
)

// Forest averages the outputs of its trees.
type Forest struct {
	Trees []RegressionTree `json:"trees"`
}

func (f *Forest) Predict(features []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, errors.New("forest has no trees")
	}
	sum := 0.0
	for i := range f.Trees {
		value, err := f.Trees[i].Predict(features)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += value
	}
	return sum / float64(len(f.Trees)), nil
}

func (f *Forest) Validate(numFeatures int) error {
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].Validate(numFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
