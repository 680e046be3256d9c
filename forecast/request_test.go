package forecast

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func validRequest() PredictionRequest {
	return PredictionRequest{Season: 1, LowestTemp: -5.0, SunshineDuration: 2.0, MaxSnowDepth: 40.0}
}

func TestValidateAcceptsDomain(t *testing.T) {
	for _, season := range []int{SeasonOther, SeasonWinter} {
		req := validRequest()
		req.Season = season
		if err := req.Validate(); err != nil {
			t.Fatalf("season %d: unexpected error: %v", season, err)
		}
	}

	edges := PredictionRequest{Season: 0, LowestTemp: MinLowestTemp, SunshineDuration: MaxSunshineDuration, MaxSnowDepth: MinMaxSnowDepth}
	if err := edges.Validate(); err != nil {
		t.Fatalf("expected inclusive bounds, got %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*PredictionRequest)
		field  string
	}{
		{"season too high", func(r *PredictionRequest) { r.Season = 2 }, "season"},
		{"season negative", func(r *PredictionRequest) { r.Season = -1 }, "season"},
		{"temp NaN", func(r *PredictionRequest) { r.LowestTemp = math.NaN() }, "lowest_temp"},
		{"temp too cold", func(r *PredictionRequest) { r.LowestTemp = -80 }, "lowest_temp"},
		{"sunshine negative", func(r *PredictionRequest) { r.SunshineDuration = -0.5 }, "sunshine_duration"},
		{"sunshine over a day", func(r *PredictionRequest) { r.SunshineDuration = 25 }, "sunshine_duration"},
		{"depth infinite", func(r *PredictionRequest) { r.MaxSnowDepth = math.Inf(1) }, "max_snow_depth"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := req.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, verr.Field)
			}
		})
	}
}

func TestRequestWireRoundTrip(t *testing.T) {
	req := PredictionRequest{Season: 1, LowestTemp: -12.75, SunshineDuration: 0.1, MaxSnowDepth: 183.4}
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded PredictionRequest
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != req {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, req)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		t.Fatalf("unmarshal map: %v", err)
	}
	for _, key := range []string{"season", "lowest_temp", "sunshine_duration", "max_snow_depth"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing wire field %s in %s", key, payload)
		}
	}
}

func TestRound(t *testing.T) {
	cases := map[float64]float64{
		12.3455:   12.346,
		-1.2345:   -1.235,
		2.0004:    2,
		7:         7,
		0.0004999: 0,
	}
	for in, want := range cases {
		if got := Round(in); got != want {
			t.Fatalf("Round(%v) = %v, want %v", in, got, want)
		}
	}
	if resp := NewResponse(3.14159); resp.Prediction != 3.142 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
