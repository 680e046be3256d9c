package predictor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"snowcast/forecast"
)

const (
	PredictPath = "/predict/"
	ReadyPath   = "/readyz"
)

// Client calls a prediction service running in another process.
type Client struct {
	http    *resty.Client
	baseURL string
}

// NewClient returns a client for the service at baseURL. A zero timeout leaves requests
// bounded only by the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Client{http: client, baseURL: baseURL}
}

func (c *Client) Predict(ctx context.Context, req forecast.PredictionRequest) (forecast.PredictionResponse, error) {
	var result forecast.PredictionResponse
	var failure forecast.ErrorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&failure).
		Post(PredictPath)
	if err != nil {
		return forecast.PredictionResponse{}, &TransportError{URL: c.baseURL + PredictPath, Err: err}
	}
	if resp.IsError() {
		detail := failure.Detail
		if detail == "" {
			detail = strings.TrimSpace(resp.String())
		}
		return forecast.PredictionResponse{}, &RemoteError{Status: resp.StatusCode(), Detail: detail}
	}
	return result, nil
}

// Ready returns nil once the service answers its readiness check with 200.
func (c *Client) Ready(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get(ReadyPath)
	if err != nil {
		return &TransportError{URL: c.baseURL + ReadyPath, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("service not ready: %s", resp.Status())
	}
	return nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}
