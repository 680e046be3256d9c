package ml

import (
	"errors"
	"fmt"
)

type LinearModel struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

func (lm *LinearModel) Predict(features []float64) (float64, error) {
	if len(features) != len(lm.Coefficients) {
		return 0, fmt.Errorf("expected %d features, got %d", len(lm.Coefficients), len(features))
	}
	value := lm.Intercept
	for i, coef := range lm.Coefficients {
		value += coef * features[i]
	}
	return value, nil
}

func (lm *LinearModel) Validate(numFeatures int) error {
	if len(lm.Coefficients) == 0 {
		return errors.New("linear model has no coefficients")
	}
	if len(lm.Coefficients) != numFeatures {
		return fmt.Errorf("linear model has %d coefficients for %d features", len(lm.Coefficients), numFeatures)
	}
	return nil
}
