package predictor

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"snowcast/forecast"
	"snowcast/ml"
	"snowcast/monitoring"
)

type countingModel struct {
	calls atomic.Int64
	value float64
	err   error
	delay time.Duration
}

func (m *countingModel) Predict(features []float64) (float64, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.value, m.err
}

func (m *countingModel) Validate(int) error { return nil }

type panickyModel struct{}

func (panickyModel) Predict([]float64) (float64, error) { panic("index out of range") }
func (panickyModel) Validate(int) error                 { return nil }

func linearService(t *testing.T) *Service {
	t.Helper()
	model := &ml.LinearModel{Coefficients: []float64{4.1234, -0.75, -0.3, 0.12}, Intercept: 0.5}
	return NewService(ml.NewHandle(model, 4), ServiceConfig{})
}

func TestServicePredictScenario(t *testing.T) {
	svc := linearService(t)
	req := forecast.PredictionRequest{Season: 1, LowestTemp: -5.0, SunshineDuration: 2.0, MaxSnowDepth: 40.0}
	resp, err := svc.Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 0.5 + 4.1234 + 3.75 - 0.6 + 4.8
	if resp.Prediction != 12.573 {
		t.Fatalf("expected 12.573, got %v", resp.Prediction)
	}
	if resp.Prediction != forecast.Round(resp.Prediction) {
		t.Fatalf("prediction not rounded: %v", resp.Prediction)
	}
}

func TestServicePredictIsIdempotent(t *testing.T) {
	svc := linearService(t)
	req := forecast.PredictionRequest{Season: 0, LowestTemp: 3.3, SunshineDuration: 7.5, MaxSnowDepth: 0}
	first, err := svc.Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical results, got %v and %v", first, second)
	}
}

func TestServicePredictFiniteOverDomain(t *testing.T) {
	svc := linearService(t)
	for season := 0; season <= 1; season++ {
		for temp := forecast.MinLowestTemp; temp <= forecast.MaxLowestTemp; temp += 11 {
			for sun := forecast.MinSunshineDuration; sun <= forecast.MaxSunshineDuration; sun += 6 {
				for depth := forecast.MinMaxSnowDepth; depth <= forecast.MaxMaxSnowDepth; depth += 250 {
					req := forecast.PredictionRequest{Season: season, LowestTemp: temp, SunshineDuration: sun, MaxSnowDepth: depth}
					resp, err := svc.Predict(context.Background(), req)
					if err != nil {
						t.Fatalf("%+v: unexpected error: %v", req, err)
					}
					if math.IsNaN(resp.Prediction) || math.IsInf(resp.Prediction, 0) {
						t.Fatalf("%+v: non-finite prediction %v", req, resp.Prediction)
					}
				}
			}
		}
	}
}

func TestServiceRejectsSeasonBeforeModel(t *testing.T) {
	model := &countingModel{value: 1}
	metrics := monitoring.NewPredictionMetrics(nil)
	svc := NewService(ml.NewHandle(model, 4), ServiceConfig{Metrics: metrics})

	_, err := svc.Predict(context.Background(), forecast.PredictionRequest{Season: 2})
	var verr *forecast.ValidationError
	if !errors.As(err, &verr) || verr.Field != "season" {
		t.Fatalf("expected season ValidationError, got %v", err)
	}
	if model.calls.Load() != 0 {
		t.Fatalf("model should not be called, got %d calls", model.calls.Load())
	}
	if metrics.Count(monitoring.OutcomeInvalid) != 1 {
		t.Fatal("expected invalid outcome to be recorded")
	}
}

func TestServiceWrapsModelFailure(t *testing.T) {
	svc := NewService(ml.NewHandle(&countingModel{err: errors.New("bad input shape")}, 4), ServiceConfig{})
	_, err := svc.Predict(context.Background(), forecast.PredictionRequest{Season: 1, MaxSnowDepth: 10})
	var perr *PredictionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PredictionError, got %v", err)
	}

	svc = NewService(ml.NewHandle(panickyModel{}, 4), ServiceConfig{})
	if _, err := svc.Predict(context.Background(), forecast.PredictionRequest{Season: 1}); !errors.As(err, &perr) {
		t.Fatalf("expected PredictionError for panic, got %v", err)
	}
}

func TestServiceEnforcesDeadline(t *testing.T) {
	metrics := monitoring.NewPredictionMetrics(nil)
	model := &countingModel{value: 1, delay: 500 * time.Millisecond}
	svc := NewService(ml.NewHandle(model, 4), ServiceConfig{PredictTimeout: 20 * time.Millisecond, Metrics: metrics})

	start := time.Now()
	_, err := svc.Predict(context.Background(), forecast.PredictionRequest{Season: 0})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Fatal("predict did not return at the deadline")
	}
	if metrics.Count(monitoring.OutcomeTimedOut) != 1 {
		t.Fatal("expected timeout outcome to be recorded")
	}
}

func TestServiceWithoutModel(t *testing.T) {
	svc := NewService(nil, ServiceConfig{})
	if err := svc.Ready(); err == nil {
		t.Fatal("expected not ready")
	}
	var perr *PredictionError
	if _, err := svc.Predict(context.Background(), forecast.PredictionRequest{}); !errors.As(err, &perr) {
		t.Fatalf("expected PredictionError, got %v", err)
	}
}

func TestServiceModelFailureRaisesAlert(t *testing.T) {
	alerts := monitoring.NewAlertSystem(monitoring.AlertConfig{}, nil)
	model := &countingModel{err: errors.New("bad shape")}
	svc := NewService(ml.NewHandle(model, 4), ServiceConfig{Alerts: alerts})

	req := forecast.PredictionRequest{Season: 1, LowestTemp: -5, SunshineDuration: 2, MaxSnowDepth: 40}
	if _, err := svc.Predict(context.Background(), req); err == nil {
		t.Fatal("expected error")
	}
	active := alerts.GetActiveAlerts()
	if len(active) != 1 || active[0].Source != monitoring.SourcePredictor {
		t.Fatalf("expected one predictor alert, got %+v", active)
	}

	// invalid input is the caller's problem, not an alert
	req.Season = 5
	svc.Predict(context.Background(), req)
	if len(alerts.GetActiveAlerts()) != 1 {
		t.Fatal("validation failure must not raise an alert")
	}
}

func TestServiceFailureReturnsBeforeSlowWebhook(t *testing.T) {
	release := make(chan struct{})
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}))
	defer webhook.Close()
	defer close(release)

	alerts := monitoring.NewAlertSystem(monitoring.AlertConfig{WebhookURL: webhook.URL}, nil)
	model := &countingModel{err: errors.New("bad shape")}
	svc := NewService(ml.NewHandle(model, 4), ServiceConfig{PredictTimeout: 100 * time.Millisecond, Alerts: alerts})

	start := time.Now()
	_, err := svc.Predict(context.Background(), forecast.PredictionRequest{Season: 1, MaxSnowDepth: 40})
	var perr *PredictionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PredictionError, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("failed predict took %s with a 100ms deadline", elapsed)
	}
	if len(alerts.GetActiveAlerts()) != 1 {
		t.Fatal("expected the failure to be recorded as an alert")
	}
}
