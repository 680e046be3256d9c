package http

import (
	"net/http"

	"go.uber.org/zap"

	"snowcast/forecast"
	"snowcast/ml"
	"snowcast/monitoring"
)

// ModelService is the prediction backend behind the API.
type ModelService interface {
	forecast.Predictor
	Ready() error
}

// API serves the prediction endpoints.
type API struct {
	service ModelService
	metrics *monitoring.PredictionMetrics
	model   func() ml.ModelInfo
	alerts  *monitoring.AlertSystem
	logger  *zap.Logger
}

func NewAPI(service ModelService, metrics *monitoring.PredictionMetrics, model func() ml.ModelInfo, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{service: service, metrics: metrics, model: model, logger: logger}
}

func RegisterHandlers(mux *http.ServeMux, api *API) {
	mux.HandleFunc("GET /{$}", handleRoot)
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /readyz", api.handleReady)
	mux.HandleFunc("GET /api/metrics", api.handleMetrics)
	mux.HandleFunc("GET /api/model", api.handleModel)
	mux.HandleFunc("GET /api/alerts", api.handleAlerts)
	mux.HandleFunc("POST /predict/{$}", api.handlePredict)
	mux.HandleFunc("POST /predict", api.handlePredict)
}

// SetAlerts exposes alerts at /api/alerts.
func (api *API) SetAlerts(alerts *monitoring.AlertSystem) {
	api.alerts = alerts
}

// Routes returns a mux with every API route registered.
func (api *API) Routes() http.Handler {
	mux := http.NewServeMux()
	RegisterHandlers(mux, api)
	return mux
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Snow Prediction API"})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (api *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := api.service.Ready(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (api *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if api.metrics == nil {
		respondError(w, http.StatusNotFound, "metrics disabled")
		return
	}
	respondJSON(w, http.StatusOK, api.metrics.GetPredictionStats())
}

func (api *API) handleModel(w http.ResponseWriter, r *http.Request) {
	if api.model == nil {
		respondError(w, http.StatusNotFound, "model info unavailable")
		return
	}
	respondJSON(w, http.StatusOK, api.model())
}

func (api *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if api.alerts == nil {
		respondError(w, http.StatusNotFound, "alerts disabled")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"active": api.alerts.GetActiveAlerts(),
		"stats":  api.alerts.GetStats(),
	})
}
