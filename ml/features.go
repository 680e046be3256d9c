package ml

import "snowcast/forecast"

func FeatureNames() []string {
	return []string{
		"season",
		"lowest_temp",
		"sunshine_duration",
		"max_snow_depth",
	}
}

// FeatureVector builds the single model row in FeatureNames order.
func FeatureVector(req forecast.PredictionRequest) []float64 {
	return []float64{
		float64(req.Season),
		req.LowestTemp,
		req.SunshineDuration,
		req.MaxSnowDepth,
	}
}
