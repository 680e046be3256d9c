package ml

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

type modelState struct {
	model       Regressor
	scaler      *Scaler
	modelType   string
	numFeatures int
	loadedAt    time.Time
}

// ModelInfo describes the model currently held by a handle.
type ModelInfo struct {
	Path        string    `json:"path"`
	ModelType   string    `json:"model_type"`
	NumFeatures int       `json:"num_features"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// ModelHandle owns a loaded model for the life of the process. Decoded models are never
// written, so callers predict in parallel against a snapshot taken under the read lock.
// Reload is the only writer and swaps the whole snapshot.
type ModelHandle struct {
	mu    sync.RWMutex
	path  string
	state *modelState
}

// NewHandle wraps an already decoded model.
func NewHandle(model Regressor, numFeatures int) *ModelHandle {
	return &ModelHandle{
		state: &modelState{
			model:       model,
			modelType:   fmt.Sprintf("%T", model),
			numFeatures: numFeatures,
			loadedAt:    time.Now(),
		},
	}
}

func (h *ModelHandle) Path() string {
	return h.path
}

func (h *ModelHandle) Info() ModelInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return ModelInfo{
		Path:        h.path,
		ModelType:   h.state.modelType,
		NumFeatures: h.state.numFeatures,
		LoadedAt:    h.state.loadedAt,
	}
}

// Predict runs the model on one feature row and returns its single output.
func (h *ModelHandle) Predict(features []float64) (float64, error) {
	h.mu.RLock()
	state := h.state
	h.mu.RUnlock()

	if len(features) != state.numFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", state.numFeatures, len(features))
	}
	row := features
	if state.scaler != nil {
		var err error
		row, err = state.scaler.Transform(features)
		if err != nil {
			return 0, err
		}
	}
	value, err := state.model.Predict(row)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.New("model produced a non-finite value")
	}
	return value, nil
}

// Reload re-reads the artifact from the handle's path. On failure the current model stays.
func (h *ModelHandle) Reload() error {
	if h.path == "" {
		return errors.New("handle has no artifact path")
	}
	state, err := readArtifact(h.path)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
	return nil
}
