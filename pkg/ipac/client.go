// Package ipac wraps the U.S. Fish & Wildlife IPaC (Information for Planning
// and Consultation) screening API.
package ipac

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

// Default base URL for the IPaC location API.
const defaultBaseURL = "https://ipac.ecosphere.fws.gov/location/api"

// Client defines the IPaC operations used by the portal.
type Client interface {
	Resources(ctx context.Context, req ResourcesRequest) (*ResourcesResponse, error)
}

// ResourcesRequest asks for trust resources intersecting a project area.
type ResourcesRequest struct {
	// Location is a GeoJSON geometry describing the project footprint.
	Location json.RawMessage `json:"location.footprint"`
	Timeout  int             `json:"timeout,omitempty"`
}

// ResourcesResponse lists the resources IPaC found for the area.
type ResourcesResponse struct {
	Resources ResourceList `json:"resources"`
}

// ResourceList groups resources by category.
type ResourceList struct {
	PopulationsBySpecies []Species         `json:"populationsBySpecies"`
	CriticalHabitats     []CriticalHabitat `json:"criticalHabitats"`
	MigratoryBirds       []Species         `json:"migratoryBirds"`
	Refuges              []Facility        `json:"refuges"`
	Wetlands             []Wetland         `json:"wetlands"`
}

// Species is a listed species population.
type Species struct {
	CommonName     string `json:"commonName"`
	ScientificName string `json:"scientificName"`
	ListingStatus  string `json:"listingStatus,omitempty"`
}

// CriticalHabitat is a designated critical habitat overlap.
type CriticalHabitat struct {
	Species Species `json:"species"`
	Unit    string  `json:"unit,omitempty"`
}

// Facility is a refuge or hatchery near the area.
type Facility struct {
	Name string `json:"name"`
}

// Wetland is an NWI wetland class intersecting the area.
type Wetland struct {
	Classification string  `json:"classification"`
	Acres          float64 `json:"acres,omitempty"`
}

// APIError is returned when IPaC responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ipac: HTTP %d: %s", e.StatusCode, e.Body)
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

// WithRateLimit overrides the default request throttle (1 req/s).
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

// NewClient creates an IPaC client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(1, 1),
		http: &http.Client{
			Timeout: 120 * time.Second,
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

func (c *httpClient) Resources(ctx context.Context, req ResourcesRequest) (*ResourcesResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "ipac: rate limit")
		}
	}

	buf, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "ipac: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/resources", bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "ipac: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "ipac: execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ipac: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out ResourcesResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "ipac: decode response")
	}
	return &out, nil
}
