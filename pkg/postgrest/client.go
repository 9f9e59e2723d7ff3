// Package postgrest is a thin client for PostgREST-style REST backends
// (Supabase and self-hosted PostgREST). It covers the small slice of the
// protocol the portal uses: filtered selects, inserts, merge-duplicate
// upserts, filtered updates and deletes.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicworks/permit-cli/internal/resilience"
)

// restPath is the PostgREST route prefix under the configured base URL.
const restPath = "/rest/v1"

// Client defines the PostgREST operations used by the portal.
type Client interface {
	// Select fetches rows from table into out (a pointer to a slice).
	Select(ctx context.Context, table string, q Query, out any) error
	// Insert posts body to table. When out is non-nil the representation
	// returned by the server is decoded into it.
	Insert(ctx context.Context, table string, body any, out any) error
	// Upsert posts body with merge-duplicates resolution on the given
	// conflict target (comma-separated column list).
	Upsert(ctx context.Context, table string, onConflict string, body any, out any) error
	// Update patches rows matched by q.
	Update(ctx context.Context, table string, q Query, body any, out any) error
	// Delete removes rows matched by q.
	Delete(ctx context.Context, table string, q Query) error
}

// Option configures the client.
type Option func(*restClient)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *restClient) {
		c.http = hc
	}
}

// WithProxyMode drops the apikey/Authorization headers. Used when requests
// go through a same-origin proxy that injects credentials server-side, so
// the key never reaches the browser.
func WithProxyMode() Option {
	return func(c *restClient) {
		c.proxied = true
	}
}

// restClient implements Client using net/http.
type restClient struct {
	baseURL string
	anonKey string
	proxied bool
	retry   resilience.Config
	http    *http.Client
}

// NewClient creates a PostgREST client. Missing configuration is reported
// here, before any network call is attempted.
func NewClient(baseURL, anonKey string, opts ...Option) (Client, error) {
	c := &restClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		retry:   resilience.DefaultConfig(),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		return nil, eris.New("postgrest: base URL not configured (set backend.url)")
	}
	if c.anonKey == "" && !c.proxied {
		return nil, eris.New("postgrest: anon key not configured (set backend.anon_key)")
	}
	return c, nil
}

func (c *restClient) Select(ctx context.Context, table string, q Query, out any) error {
	if err := c.do(ctx, http.MethodGet, table, q, "", nil, out); err != nil {
		return eris.Wrap(err, fmt.Sprintf("postgrest: select %s", table))
	}
	return nil
}

func (c *restClient) Insert(ctx context.Context, table string, body any, out any) error {
	prefer := ""
	if out != nil {
		prefer = "return=representation"
	}
	if err := c.do(ctx, http.MethodPost, table, Query{}, prefer, body, out); err != nil {
		return eris.Wrap(err, fmt.Sprintf("postgrest: insert %s", table))
	}
	return nil
}

func (c *restClient) Upsert(ctx context.Context, table string, onConflict string, body any, out any) error {
	q := Query{raw: url.Values{"on_conflict": []string{onConflict}}}
	prefer := "resolution=merge-duplicates,return=representation"
	if err := c.do(ctx, http.MethodPost, table, q, prefer, body, out); err != nil {
		return eris.Wrap(err, fmt.Sprintf("postgrest: upsert %s", table))
	}
	return nil
}

func (c *restClient) Update(ctx context.Context, table string, q Query, body any, out any) error {
	prefer := ""
	if out != nil {
		prefer = "return=representation"
	}
	if err := c.do(ctx, http.MethodPatch, table, q, prefer, body, out); err != nil {
		return eris.Wrap(err, fmt.Sprintf("postgrest: update %s", table))
	}
	return nil
}

func (c *restClient) Delete(ctx context.Context, table string, q Query) error {
	if err := c.do(ctx, http.MethodDelete, table, q, "", nil, nil); err != nil {
		return eris.Wrap(err, fmt.Sprintf("postgrest: delete %s", table))
	}
	return nil
}

func (c *restClient) do(ctx context.Context, method, table string, q Query, prefer string, body, out any) error {
	u := c.baseURL + restPath + "/" + table
	if qs := q.encode(); qs != "" {
		u += "?" + qs
	}

	var payload []byte
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		payload = buf
	}

	// Reads are replayed on transient failures; writes go out exactly once
	// because event inserts are not idempotent.
	if method == http.MethodGet {
		cfg := c.retry
		cfg.ShouldRetry = retryable
		cfg.OnRetry = resilience.Logger("postgrest", "select "+table)
		return resilience.Do(ctx, cfg, func(ctx context.Context) error {
			return c.roundTrip(ctx, method, u, table, prefer, payload, out)
		})
	}
	return c.roundTrip(ctx, method, u, table, prefer, payload, out)
}

// retryable classifies backend failures: gateway and throttling statuses
// plus ordinary network faults.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return resilience.RetryableStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

func (c *restClient) roundTrip(ctx context.Context, method, u, table, prefer string, payload []byte, out any) error {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if !c.proxied {
		req.Header.Set("apikey", c.anonKey)
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Detail:     extractDetail(data),
			Body:       string(data),
		}
	}

	// Responses are read as text first and parsed defensively: an empty or
	// non-JSON body on a 2xx is tolerated rather than surfaced, since some
	// deployments omit representations.
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			zap.L().Debug("postgrest: ignoring undecodable success body",
				zap.String("table", table),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Query describes the filter/order/select portion of a PostgREST request.
type Query struct {
	Select  string
	Filters []Filter
	Order   []Order
	Limit   int

	raw url.Values
}

// Filter is a single column filter, rendered as column=op.value.
type Filter struct {
	Column string
	Op     string
	Value  string
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: "eq", Value: fmt.Sprint(value)}
}

// Order is a single ordering term.
type Order struct {
	Column    string
	Desc      bool
	NullsLast bool
}

func (q Query) encode() string {
	v := url.Values{}
	for key, vals := range q.raw {
		v[key] = vals
	}
	if q.Select != "" {
		v.Set("select", q.Select)
	}
	for _, f := range q.Filters {
		v.Add(f.Column, f.Op+"."+f.Value)
	}
	if len(q.Order) > 0 {
		terms := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			t := o.Column
			if o.Desc {
				t += ".desc"
			} else {
				t += ".asc"
			}
			if o.NullsLast {
				t += ".nullslast"
			}
			terms = append(terms, t)
		}
		v.Set("order", strings.Join(terms, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v.Encode()
}
