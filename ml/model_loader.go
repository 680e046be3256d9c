package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	ErrFormatVersion   = errors.New("unsupported artifact format version")
	ErrUnsupportedType = errors.New("unsupported model type")
	ErrFeatureMismatch = errors.New("artifact features do not match service features")
)

// ModelLoadError means the artifact at Path could not become a usable model.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// LoadModel reads the artifact at path once and returns a handle owning the decoded model.
func LoadModel(path string) (*ModelHandle, error) {
	state, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	return &ModelHandle{path: path, state: state}, nil
}

func readArtifact(path string) (*modelState, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	state, err := decodeArtifact(artifact)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	return state, nil
}

func decodeArtifact(artifact Artifact) (*modelState, error) {
	if artifact.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFormatVersion, artifact.FormatVersion, FormatVersion)
	}
	if err := checkFeatureNames(artifact.FeatureNames); err != nil {
		return nil, err
	}
	numFeatures := len(artifact.FeatureNames)

	var model Regressor
	switch artifact.ModelType {
	case ModelTypeLinear:
		model = &LinearModel{}
	case ModelTypeRegressionTree:
		model = &RegressionTree{}
	case ModelTypeForest:
		model = &Forest{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, artifact.ModelType)
	}
	if len(artifact.Model) == 0 {
		return nil, errors.New("artifact has no model payload")
	}
	if err := json.Unmarshal(artifact.Model, model); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", artifact.ModelType, err)
	}
	if err := model.Validate(numFeatures); err != nil {
		return nil, err
	}
	if artifact.Scaler != nil {
		if err := artifact.Scaler.Validate(numFeatures); err != nil {
			return nil, err
		}
	}

	return &modelState{
		model:       model,
		scaler:      artifact.Scaler,
		modelType:   artifact.ModelType,
		numFeatures: numFeatures,
		loadedAt:    time.Now(),
	}, nil
}

func checkFeatureNames(names []string) error {
	expected := FeatureNames()
	if len(names) != len(expected) {
		return fmt.Errorf("%w: got %d columns, want %d", ErrFeatureMismatch, len(names), len(expected))
	}
	for i, name := range expected {
		if names[i] != name {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrFeatureMismatch, i, names[i], name)
		}
	}
	return nil
}

// WriteArtifact encodes model into the artifact envelope at path. The artifact is
// checked the way LoadModel checks it, then written to a temporary file in the same
// directory and renamed over path, so readers never see a partial file.
func WriteArtifact(path, modelType string, model Regressor, scaler *Scaler) error {
	payload, err := json.Marshal(model)
	if err != nil {
		return err
	}
	artifact := Artifact{
		FormatVersion: FormatVersion,
		ModelType:     modelType,
		FeatureNames:  FeatureNames(),
		Scaler:        scaler,
		Model:         payload,
	}
	if _, err := decodeArtifact(artifact); err != nil {
		return fmt.Errorf("invalid artifact for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	return replaceFile(path, data)
}

func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
