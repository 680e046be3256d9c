package ml

import "encoding/json"

// FormatVersion is the only artifact layout this build understands.
const FormatVersion = 1

const (
	ModelTypeLinear         = "linear"
	ModelTypeRegressionTree = "regression_tree"
	ModelTypeForest         = "forest"
)

// Regressor maps one feature row to one predicted value. Implementations are read-only after
// decoding and safe for concurrent use.
type Regressor interface {
	Predict(features []float64) (float64, error)
	Validate(numFeatures int) error
}

// Artifact is the on-disk envelope of a trained model.
type Artifact struct {
	FormatVersion int             `json:"format_version"`
	ModelType     string          `json:"model_type"`
	FeatureNames  []string        `json:"feature_names"`
	Scaler        *Scaler         `json:"scaler,omitempty"`
	Model         json.RawMessage `json:"model"`
}
