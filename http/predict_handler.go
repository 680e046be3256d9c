package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/thedevsaddam/govalidator"
	"go.uber.org/zap"

	"snowcast/forecast"
)

// predictBody uses govalidator's nullable numbers so an explicit 0 counts as present.
type predictBody struct {
	Season           govalidator.Int     `json:"season"`
	LowestTemp       govalidator.Float64 `json:"lowest_temp"`
	SunshineDuration govalidator.Float64 `json:"sunshine_duration"`
	MaxSnowDepth     govalidator.Float64 `json:"max_snow_depth"`
}

var predictRules = govalidator.MapData{
	"season":            []string{"required"},
	"lowest_temp":       []string{"required"},
	"sunshine_duration": []string{"required"},
	"max_snow_depth":    []string{"required"},
}

func (b predictBody) request() (forecast.PredictionRequest, error) {
	missing := make([]string, 0, 4)
	if !b.Season.IsSet {
		missing = append(missing, "season")
	}
	if !b.LowestTemp.IsSet {
		missing = append(missing, "lowest_temp")
	}
	if !b.SunshineDuration.IsSet {
		missing = append(missing, "sunshine_duration")
	}
	if !b.MaxSnowDepth.IsSet {
		missing = append(missing, "max_snow_depth")
	}
	if len(missing) > 0 {
		return forecast.PredictionRequest{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return forecast.PredictionRequest{
		Season:           b.Season.Value,
		LowestTemp:       b.LowestTemp.Value,
		SunshineDuration: b.SunshineDuration.Value,
		MaxSnowDepth:     b.MaxSnowDepth.Value,
	}, nil
}

func (api *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if trailingData(data) {
		respondError(w, http.StatusUnprocessableEntity, "unexpected data after JSON body")
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(data))

	var body predictBody
	validator := govalidator.New(govalidator.Options{
		Request: r,
		Data:    &body,
		Rules:   predictRules,
	})
	if errs := validator.ValidateJSON(); len(errs) > 0 {
		respondError(w, http.StatusUnprocessableEntity, formatValidation(errs))
		return
	}
	req, err := body.request()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp, err := api.service.Predict(r.Context(), req)
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			api.logger.Error("predict request failed",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Int("status", status),
				zap.Error(err),
			)
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// trailingData reports whether data holds anything after its first JSON value.
// Malformed bodies are left to the validator.
func trailingData(data []byte) bool {
	dec := json.NewDecoder(bytes.NewReader(data))
	var first json.RawMessage
	if err := dec.Decode(&first); err != nil {
		return false
	}
	_, err := dec.Token()
	return !errors.Is(err, io.EOF)
}

func statusForError(err error) int {
	var validation *forecast.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		// PredictionError and anything unexpected
		return http.StatusInternalServerError
	}
}

func formatValidation(errs map[string][]string) string {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, strings.Join(errs[field], "; "))
	}
	return strings.Join(parts, "; ")
}
