package frontend

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"snowcast/forecast"
)

// FormInputs holds the raw form values so a failed submit can be re-rendered as typed.
type FormInputs struct {
	Season           string
	LowestTemp       string
	SunshineDuration string
	MaxSnowDepth     string
}

func defaultInputs() FormInputs {
	return FormInputs{Season: "0", LowestTemp: "0", SunshineDuration: "0", MaxSnowDepth: "0"}
}

func readInputs(form url.Values) FormInputs {
	return FormInputs{
		Season:           strings.TrimSpace(form.Get("season")),
		LowestTemp:       strings.TrimSpace(form.Get("lowest_temp")),
		SunshineDuration: strings.TrimSpace(form.Get("sunshine_duration")),
		MaxSnowDepth:     strings.TrimSpace(form.Get("max_snow_depth")),
	}
}

// InputError is a form value that could not be read as a number.
type InputError struct {
	Field string
	Value string
}

func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s: %q is not a number", e.Field, e.Value)
}

// CollectInputs converts the form values into a request. Season is an enumerated
// choice; the other fields are range checked by the service.
func CollectInputs(in FormInputs) (forecast.PredictionRequest, error) {
	var req forecast.PredictionRequest

	season, err := strconv.Atoi(in.Season)
	if err != nil {
		return req, &InputError{Field: "season", Value: in.Season}
	}
	if season != forecast.SeasonOther && season != forecast.SeasonWinter {
		return req, &forecast.ValidationError{Field: "season", Reason: "must be 0 or 1"}
	}
	req.Season = season

	fields := []struct {
		name  string
		value string
		dst   *float64
	}{
		{"lowest_temp", in.LowestTemp, &req.LowestTemp},
		{"sunshine_duration", in.SunshineDuration, &req.SunshineDuration},
		{"max_snow_depth", in.MaxSnowDepth, &req.MaxSnowDepth},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.value, 64)
		if err != nil {
			return forecast.PredictionRequest{}, &InputError{Field: f.name, Value: f.value}
		}
		*f.dst = v
	}
	return req, nil
}
