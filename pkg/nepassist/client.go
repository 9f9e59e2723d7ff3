// Package nepassist wraps the EPA NEPAssist environmental screening API.
package nepassist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default base URL for the NEPAssist reporting service.
const defaultBaseURL = "https://nepassisttool.epa.gov/nepassist"

// Client defines the NEPAssist operations used by the portal.
type Client interface {
	Report(ctx context.Context, req ReportRequest) (*ReportResponse, error)
}

// ReportRequest asks for an environmental report around a point or geometry.
type ReportRequest struct {
	Latitude    float64         `json:"latitude,omitempty"`
	Longitude   float64         `json:"longitude,omitempty"`
	Geometry    json.RawMessage `json:"geometry,omitempty"`
	BufferMiles float64         `json:"buffer,omitempty"`
}

// ReportResponse is the layer-by-layer screening result.
type ReportResponse struct {
	Layers []LayerResult `json:"layers"`
}

// LayerResult is one environmental layer's hit count near the project area.
type LayerResult struct {
	Layer string `json:"layer"`
	Count int    `json:"count"`
	Note  string `json:"note,omitempty"`
}

// APIError is returned when NEPAssist responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nepassist: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request throttle (2 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	baseURL string
	limiter *rate.Limiter
	http    *http.Client
}

// NewClient creates a NEPAssist client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(2, 1),
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Report(ctx context.Context, req ReportRequest) (*ReportResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "nepassist: rate limit")
		}
	}

	buf, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "nepassist: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/report", bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "nepassist: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "nepassist: execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "nepassist: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out ReportResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "nepassist: decode response")
	}
	return &out, nil
}
