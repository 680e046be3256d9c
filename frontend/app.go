// Package frontend serves the HTML form that collects model inputs and shows the forecast.
package frontend

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"snowcast/forecast"
	"snowcast/predictor"
	"snowcast/weather"
)

const DefaultSubmitTimeout = 10 * time.Second

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// WeatherSource supplies the current conditions panel.
type WeatherSource interface {
	Current(ctx context.Context) (weather.Report, error)
	Location() string
}

type Config struct {
	Title  string
	Locale string
	// SubmitTimeout bounds each call to the predictor. Zero waits for the predictor indefinitely.
	SubmitTimeout time.Duration
	MaxSessions   int
	SessionTTL    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Title:         "白馬の積雪予想アプリ",
		Locale:        "ja",
		SubmitTimeout: DefaultSubmitTimeout,
		MaxSessions:   1024,
		SessionTTL:    30 * time.Minute,
	}
}

type App struct {
	predictor forecast.Predictor
	weather   WeatherSource
	sessions  *SessionStore
	printer   *message.Printer
	config    Config
	logger    *zap.Logger
	now       func() time.Time
}

// New builds the front end around any predictor, local or remote. weather may be nil.
func New(p forecast.Predictor, w WeatherSource, config Config, logger *zap.Logger) *App {
	defaults := DefaultConfig()
	if config.Title == "" {
		config.Title = defaults.Title
	}
	if config.Locale == "" {
		config.Locale = defaults.Locale
	}
	if config.SubmitTimeout < 0 {
		config.SubmitTimeout = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		predictor: p,
		weather:   w,
		sessions:  NewSessionStore(config.MaxSessions, config.SessionTTL),
		printer:   message.NewPrinter(language.Make(config.Locale)),
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

func (a *App) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.handleForm)
	mux.HandleFunc("POST /{$}", a.handleSubmit)
	mux.HandleFunc("GET /api/health", handleHealth)
	return mux
}

func (a *App) Sessions() *SessionStore {
	return a.sessions
}

// Submit sends req to the predictor under the configured deadline.
func (a *App) Submit(ctx context.Context, req forecast.PredictionRequest) (forecast.PredictionResponse, error) {
	if a.config.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.SubmitTimeout)
		defer cancel()
	}
	return a.predictor.Predict(ctx, req)
}

// FormatPrediction renders a prediction with three decimals in the configured locale.
func (a *App) FormatPrediction(v float64) string {
	return a.printer.Sprintf("%.3f", v)
}

type page struct {
	Title        string
	Date         string
	Inputs       FormInputs
	Prediction   string
	Error        string
	Location     string
	Weather      *weather.Report
	Temperature  string
	WeatherError string
}

func (a *App) handleForm(w http.ResponseWriter, r *http.Request) {
	session := a.sessions.Session(w, r)
	if err := session.Await(); err != nil {
		a.render(w, r, session, page{Inputs: defaultInputs(), Error: err.Error()})
		return
	}
	a.render(w, r, session, page{Inputs: defaultInputs()})
}

func (a *App) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session := a.sessions.Session(w, r)
	if err := r.ParseForm(); err != nil {
		a.render(w, r, session, page{Inputs: defaultInputs(), Error: "Error: " + err.Error()})
		return
	}
	inputs := readInputs(r.PostForm)

	if err := session.Await(); err != nil {
		a.renderStatus(w, r, session, http.StatusConflict, page{Inputs: inputs, Error: "Error: " + err.Error()})
		return
	}
	if err := session.Transition(StateSubmitting); err != nil {
		a.render(w, r, session, page{Inputs: inputs, Error: "Error: " + err.Error()})
		return
	}

	req, err := CollectInputs(inputs)
	var resp forecast.PredictionResponse
	if err == nil {
		resp, err = a.Submit(r.Context(), req)
	}
	if ferr := session.Finish(err); ferr != nil {
		a.logger.Error("session transition failed", zap.String("session", session.ID), zap.Error(ferr))
	}

	if err != nil {
		a.logger.Warn("prediction submit failed",
			zap.String("session", session.ID),
			zap.Error(err),
		)
		a.render(w, r, session, page{Inputs: inputs, Error: failureMessage(err)})
		return
	}
	a.render(w, r, session, page{Inputs: inputs, Prediction: a.FormatPrediction(resp.Prediction)})
}

func (a *App) render(w http.ResponseWriter, r *http.Request, session *Session, p page) {
	a.renderStatus(w, r, session, http.StatusOK, p)
}

func (a *App) renderStatus(w http.ResponseWriter, r *http.Request, session *Session, status int, p page) {
	p.Title = a.config.Title
	p.Date = a.now().Format("2006-01-02")
	if a.weather != nil {
		p.Location = a.weather.Location()
		report, err := session.Weather(func() (weather.Report, error) {
			return a.weather.Current(r.Context())
		})
		if err != nil {
			p.WeatherError = err.Error()
		} else {
			p.Weather = report
			p.Temperature = a.printer.Sprintf("%.1f", report.Temp)
		}
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, p); err != nil {
		a.logger.Error("render form", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// failureMessage converts a submit error into the text shown in place of the result.
func failureMessage(err error) string {
	var remote *predictor.RemoteError
	var transport *predictor.TransportError
	switch {
	case errors.As(err, &remote):
		return "Error: " + remote.Detail
	case errors.As(err, &transport):
		return "Error: prediction service unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "Error: prediction timed out"
	default:
		return "Error: " + err.Error()
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
