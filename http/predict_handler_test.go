package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"snowcast/forecast"
	"snowcast/ml"
	"snowcast/monitoring"
	"snowcast/predictor"
)

type slowModel struct{}

func (slowModel) Predict([]float64) (float64, error) {
	time.Sleep(300 * time.Millisecond)
	return 1, nil
}

func (slowModel) Validate(int) error { return nil }

func nopLogger() *zap.Logger {
	return zap.NewNop()
}

func linearRoutes(t *testing.T) (http.Handler, *monitoring.PredictionMetrics) {
	t.Helper()
	metrics := monitoring.NewPredictionMetrics(nil)
	model := &ml.LinearModel{Coefficients: []float64{4.1234, -0.75, -0.3, 0.12}, Intercept: 0.5}
	handle := ml.NewHandle(model, 4)
	service := predictor.NewService(handle, predictor.ServiceConfig{Metrics: metrics})
	return NewAPI(service, metrics, handle.Info, nopLogger()).Routes(), metrics
}

func postPredict(routes http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, req)
	return w
}

func TestHandlePredict(t *testing.T) {
	routes, metrics := linearRoutes(t)
	w := postPredict(routes, "/predict/", `{"season":1,"lowest_temp":-5.0,"sunshine_duration":2.0,"max_snow_depth":40.0}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(payload) != 1 {
		t.Fatalf("expected a single field, got %v", payload)
	}
	if payload["prediction"].(float64) != 12.573 {
		t.Fatalf("unexpected prediction: %v", payload["prediction"])
	}
	if metrics.Count(monitoring.OutcomeSuccess) != 1 {
		t.Fatal("expected success to be recorded")
	}
}

func TestHandlePredictAcceptsZeroValues(t *testing.T) {
	routes, _ := linearRoutes(t)
	w := postPredict(routes, "/predict", `{"season":0,"lowest_temp":0,"sunshine_duration":0,"max_snow_depth":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp forecast.PredictionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Prediction != 0.5 {
		t.Fatalf("expected intercept only, got %v", resp.Prediction)
	}
}

func TestHandlePredictValidation(t *testing.T) {
	routes, metrics := linearRoutes(t)
	cases := map[string]string{
		"missing max_snow_depth": `{"season":1,"lowest_temp":-5.0,"sunshine_duration":2.0}`,
		"season out of domain":   `{"season":2,"lowest_temp":-5.0,"sunshine_duration":2.0,"max_snow_depth":40.0}`,
		"negative sunshine":      `{"season":1,"lowest_temp":-5.0,"sunshine_duration":-2.0,"max_snow_depth":40.0}`,
		"malformed json":         `{"season":1,`,
		"season not integer":     `{"season":"winter","lowest_temp":-5.0,"sunshine_duration":2.0,"max_snow_depth":40.0}`,
		"trailing object":        `{"season":1,"lowest_temp":-5.0,"sunshine_duration":2.0,"max_snow_depth":40.0}{"x":1}`,
		"trailing garbage":       `{"season":1,"lowest_temp":-5.0,"sunshine_duration":2.0,"max_snow_depth":40.0} }`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := postPredict(routes, "/predict/", body)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
			}
			var payload forecast.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil || payload.Detail == "" {
				t.Fatalf("expected detail, got %q", w.Body.String())
			}
		})
	}
	if metrics.Count(monitoring.OutcomeSuccess) != 0 {
		t.Fatal("no request should have reached the model")
	}
}

func TestHandlePredictTrailingWhitespaceAccepted(t *testing.T) {
	routes, _ := linearRoutes(t)
	w := postPredict(routes, "/predict/", "{\"season\":1,\"lowest_temp\":-5.0,\"sunshine_duration\":2.0,\"max_snow_depth\":40.0}\n\n")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandlePredictTrailingDataNamed(t *testing.T) {
	routes, _ := linearRoutes(t)
	w := postPredict(routes, "/predict/", `{"season":1,"lowest_temp":-5.0,"sunshine_duration":2.0,"max_snow_depth":40.0}{"x":1}`)
	if !strings.Contains(w.Body.String(), "unexpected data after JSON body") {
		t.Fatalf("expected trailing data to be reported, got %s", w.Body.String())
	}
}

func TestHandlePredictMissingFieldNamed(t *testing.T) {
	routes, _ := linearRoutes(t)
	w := postPredict(routes, "/predict/", `{"season":1,"lowest_temp":-5.0,"sunshine_duration":2.0}`)
	if !strings.Contains(w.Body.String(), "max_snow_depth") {
		t.Fatalf("expected the missing field to be named, got %s", w.Body.String())
	}
}

func TestHandlePredictModelFailure(t *testing.T) {
	service := &stubService{err: &predictor.PredictionError{Err: errors.New("model rejected input shape")}}
	routes := NewAPI(service, nil, nil, nopLogger()).Routes()
	w := postPredict(routes, "/predict/", `{"season":1,"lowest_temp":-5.0,"sunshine_duration":2.0,"max_snow_depth":40.0}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var payload forecast.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !strings.Contains(payload.Detail, "model rejected input shape") {
		t.Fatalf("unexpected detail: %q", payload.Detail)
	}
}

func TestHandlePredictDeadline(t *testing.T) {
	service := predictor.NewService(ml.NewHandle(slowModel{}, 4), predictor.ServiceConfig{PredictTimeout: 20 * time.Millisecond})
	routes := NewAPI(service, nil, nil, nopLogger()).Routes()
	w := postPredict(routes, "/predict/", `{"season":1,"lowest_temp":-5.0,"sunshine_duration":2.0,"max_snow_depth":40.0}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", w.Code)
	}
}

func TestHandlePredictRejectsGet(t *testing.T) {
	routes, _ := linearRoutes(t)
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predict/", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	routes, _ := linearRoutes(t)
	postPredict(routes, "/predict/", `{"season":1,"lowest_temp":-5.0,"sunshine_duration":2.0,"max_snow_depth":40.0}`)

	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["predictions_total"].(float64) != 1 {
		t.Fatalf("unexpected metrics: %v", payload)
	}
}
