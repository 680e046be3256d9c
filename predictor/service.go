package predictor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"snowcast/forecast"
	"snowcast/ml"
	"snowcast/monitoring"
)

const DefaultPredictTimeout = 5 * time.Second

type ServiceConfig struct {
	PredictTimeout time.Duration
	Metrics        *monitoring.PredictionMetrics
	// Alerts is optional; model failures raise an alert when set.
	Alerts *monitoring.AlertSystem
	Logger *zap.Logger
}

// Service answers predictions against a model handle owned by the caller.
type Service struct {
	handle  *ml.ModelHandle
	timeout time.Duration
	metrics *monitoring.PredictionMetrics
	alerts  *monitoring.AlertSystem
	logger  *zap.Logger
}

func NewService(handle *ml.ModelHandle, config ServiceConfig) *Service {
	if config.PredictTimeout <= 0 {
		config.PredictTimeout = DefaultPredictTimeout
	}
	if config.Metrics == nil {
		config.Metrics = monitoring.NewPredictionMetrics(nil)
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Service{
		handle:  handle,
		timeout: config.PredictTimeout,
		metrics: config.Metrics,
		alerts:  config.Alerts,
		logger:  config.Logger,
	}
}

type inference struct {
	value float64
	err   error
}

// Predict validates req, runs the model under the configured deadline and rounds the output.
func (s *Service) Predict(ctx context.Context, req forecast.PredictionRequest) (forecast.PredictionResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		s.metrics.RecordPrediction(monitoring.OutcomeInvalid, time.Since(start))
		return forecast.PredictionResponse{}, err
	}
	if s.handle == nil {
		s.metrics.RecordPrediction(monitoring.OutcomeFailed, time.Since(start))
		return forecast.PredictionResponse{}, &PredictionError{Err: errors.New("no model loaded")}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan inference, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- inference{err: fmt.Errorf("model panicked: %v", r)}
			}
		}()
		value, err := s.handle.Predict(ml.FeatureVector(req))
		done <- inference{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		s.metrics.RecordPrediction(monitoring.OutcomeTimedOut, time.Since(start))
		s.logger.Warn("prediction abandoned", zap.Duration("timeout", s.timeout), zap.Error(ctx.Err()))
		return forecast.PredictionResponse{}, fmt.Errorf("predict: %w", ctx.Err())
	case result := <-done:
		if result.err != nil {
			s.metrics.RecordPrediction(monitoring.OutcomeFailed, time.Since(start))
			s.logger.Error("prediction failed", zap.Any("request", req), zap.Error(result.err))
			s.raise(result.err)
			return forecast.PredictionResponse{}, &PredictionError{Err: result.err}
		}
		s.metrics.RecordPrediction(monitoring.OutcomeSuccess, time.Since(start))
		return forecast.NewResponse(result.value), nil
	}
}

func (s *Service) raise(err error) {
	if s.alerts == nil {
		return
	}
	s.alerts.SendAlert(&monitoring.Alert{
		Level:   monitoring.Error,
		Title:   "prediction failed",
		Message: err.Error(),
		Source:  monitoring.SourcePredictor,
	})
}

// Ready reports whether a model is available.
func (s *Service) Ready() error {
	if s.handle == nil {
		return errors.New("model not loaded")
	}
	return nil
}

func (s *Service) Metrics() *monitoring.PredictionMetrics {
	return s.metrics
}

func (s *Service) Alerts() *monitoring.AlertSystem {
	return s.alerts
}

func (s *Service) Handle() *ml.ModelHandle {
	return s.handle
}
