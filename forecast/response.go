package forecast

import (
	"context"

	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places kept in a prediction.
const Precision = 3

// PredictionResponse is the predicted snowfall in centimeters.
type PredictionResponse struct {
	Prediction float64 `json:"prediction"`
}

// ErrorResponse is the body of every non-success service reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Predictor answers prediction requests, either in-process or over the network.
type Predictor interface {
	Predict(ctx context.Context, req PredictionRequest) (PredictionResponse, error)
}

// Round rounds half away from zero to Precision decimal places.
func Round(value float64) float64 {
	rounded, _ := decimal.NewFromFloat(value).Round(Precision).Float64()
	return rounded
}

// NewResponse builds a response from a raw model output.
func NewResponse(raw float64) PredictionResponse {
	return PredictionResponse{Prediction: Round(raw)}
}
