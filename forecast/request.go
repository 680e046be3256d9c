package forecast

import (
	"fmt"
	"math"
)

// Season values accepted by the model.
const (
	SeasonOther  = 0
	SeasonWinter = 1
)

// Input bounds. The model was trained on Japanese alpine observations; anything outside these
// ranges is a typo rather than weather.
const (
	MinLowestTemp       = -60.0
	MaxLowestTemp       = 50.0
	MinSunshineDuration = 0.0
	MaxSunshineDuration = 24.0
	MinMaxSnowDepth     = 0.0
	MaxMaxSnowDepth     = 1000.0
)

// PredictionRequest carries the four model inputs.
type PredictionRequest struct {
	Season           int     `json:"season"`
	LowestTemp       float64 `json:"lowest_temp"`
	SunshineDuration float64 `json:"sunshine_duration"`
	MaxSnowDepth     float64 `json:"max_snow_depth"`
}

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the request against the accepted domain of every field.
func (r PredictionRequest) Validate() error {
	if r.Season != SeasonOther && r.Season != SeasonWinter {
		return &ValidationError{Field: "season", Reason: fmt.Sprintf("must be 0 or 1, got %d", r.Season)}
	}
	if err := checkRange("lowest_temp", r.LowestTemp, MinLowestTemp, MaxLowestTemp); err != nil {
		return err
	}
	if err := checkRange("sunshine_duration", r.SunshineDuration, MinSunshineDuration, MaxSunshineDuration); err != nil {
		return err
	}
	return checkRange("max_snow_depth", r.MaxSnowDepth, MinMaxSnowDepth, MaxMaxSnowDepth)
}

func checkRange(field string, value, min, max float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &ValidationError{Field: field, Reason: "must be a finite number"}
	}
	if value < min || value > max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be between %g and %g, got %g", min, max, value)}
	}
	return nil
}
