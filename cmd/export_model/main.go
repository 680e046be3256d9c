package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"snowcast/ml"
)

// export_model packages already-fitted parameters into a model artifact that
// `snowcast serve` can load.
func main() {
	modelType := flag.String("model_type", ml.ModelTypeLinear, "linear, regression_tree or forest")
	coef := flag.String("coef", "", "comma separated coefficients (linear)")
	intercept := flag.Float64("intercept", 0, "intercept (linear)")
	modelJSON := flag.String("model_json", "", "file holding the model payload (regression_tree, forest)")
	mean := flag.String("mean", "", "comma separated scaler means")
	scale := flag.String("scale", "", "comma separated scaler scales")
	modelPath := flag.String("model_path", "./models/snow_model.json", "artifact output path")
	flag.Parse()

	model, err := buildModel(*modelType, *coef, *intercept, *modelJSON)
	if err != nil {
		log.Fatalf("failed to build model: %v", err)
	}

	scaler, err := buildScaler(*mean, *scale)
	if err != nil {
		log.Fatalf("failed to build scaler: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*modelPath), 0o755); err != nil {
		log.Fatalf("failed to create model dir: %v", err)
	}
	if err := ml.WriteArtifact(*modelPath, *modelType, model, scaler); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}

	// read back what the service will read
	handle, err := ml.LoadModel(*modelPath)
	if err != nil {
		log.Fatalf("artifact does not load: %v", err)
	}
	info := handle.Info()
	fmt.Printf("model saved to %s (%s, %d features)\n", *modelPath, info.ModelType, info.NumFeatures)
}

func buildModel(modelType, coef string, intercept float64, modelJSON string) (ml.Regressor, error) {
	if modelType == ml.ModelTypeLinear && modelJSON == "" {
		coefficients, err := parseFloats(coef)
		if err != nil {
			return nil, fmt.Errorf("coef: %w", err)
		}
		return &ml.LinearModel{Coefficients: coefficients, Intercept: intercept}, nil
	}

	if modelJSON == "" {
		return nil, fmt.Errorf("-model_json is required for %s", modelType)
	}
	data, err := os.ReadFile(modelJSON)
	if err != nil {
		return nil, err
	}

	var model ml.Regressor
	switch modelType {
	case ml.ModelTypeLinear:
		model = &ml.LinearModel{}
	case ml.ModelTypeRegressionTree:
		model = &ml.RegressionTree{}
	case ml.ModelTypeForest:
		model = &ml.Forest{}
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
	if err := json.Unmarshal(data, model); err != nil {
		return nil, fmt.Errorf("decode %s: %w", modelJSON, err)
	}
	return model, nil
}

func buildScaler(mean, scale string) (*ml.Scaler, error) {
	if mean == "" && scale == "" {
		return nil, nil
	}
	means, err := parseFloats(mean)
	if err != nil {
		return nil, fmt.Errorf("mean: %w", err)
	}
	scales, err := parseFloats(scale)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	return &ml.Scaler{Mean: means, Scale: scales}, nil
}

func parseFloats(list string) ([]float64, error) {
	if strings.TrimSpace(list) == "" {
		return nil, fmt.Errorf("empty list")
	}
	parts := strings.Split(list, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
