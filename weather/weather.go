// Package weather looks up current conditions from OpenWeatherMap.
package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const CurrentPath = "/data/2.5/weather"

var (
	ErrNoAPIKey    = errors.New("weather API key not configured")
	ErrMissingMain = errors.New("'main' key not found")
)

type Config struct {
	BaseURL  string
	APIKey   string
	Location string
	// DisplayName labels the location on the form. Location is used when empty.
	DisplayName string
	Lang        string
	Timeout     time.Duration
}

// Report is the subset of the current-weather payload shown next to the form.
type Report struct {
	Location    string  `json:"location"`
	Temp        float64 `json:"temp"`
	Description string  `json:"description"`
}

// LookupError is returned for every failed lookup. It is meant for display only.
type LookupError struct {
	Location string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("unable to retrieve weather data for %s: %v", e.Location, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

type currentPayload struct {
	Main *struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

type apiError struct {
	Message string `json:"message"`
}

type Client struct {
	http   *resty.Client
	config Config
	tag    language.Tag
}

func NewClient(config Config) *Client {
	if config.Lang == "" {
		config.Lang = "ja"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if config.Timeout > 0 {
		client.SetTimeout(config.Timeout)
	}
	return &Client{http: client, config: config, tag: language.Make(config.Lang)}
}

func (c *Client) Location() string {
	if c.config.DisplayName != "" {
		return c.config.DisplayName
	}
	return c.config.Location
}

// Current fetches the conditions for the configured location in metric units.
func (c *Client) Current(ctx context.Context) (Report, error) {
	if c.config.APIKey == "" {
		return Report{}, &LookupError{Location: c.config.Location, Err: ErrNoAPIKey}
	}

	var payload currentPayload
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     c.config.Location,
			"appid": c.config.APIKey,
			"lang":  c.config.Lang,
			"units": "metric",
		}).
		SetResult(&payload).
		SetError(&failure).
		Get(CurrentPath)
	if err != nil {
		return Report{}, &LookupError{Location: c.config.Location, Err: err}
	}
	if resp.IsError() {
		msg := failure.Message
		if msg == "" {
			msg = resp.Status()
		}
		return Report{}, &LookupError{
			Location: c.config.Location,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode(), msg),
		}
	}
	if payload.Main == nil {
		return Report{}, &LookupError{Location: c.config.Location, Err: ErrMissingMain}
	}

	report := Report{Location: c.config.Location, Temp: payload.Main.Temp}
	if len(payload.Weather) > 0 {
		report.Description = capitalize(c.tag, payload.Weather[0].Description)
	}
	return report, nil
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(tag language.Tag, s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return cases.Upper(tag).String(string(r)) + cases.Lower(tag).String(s[size:])
}
