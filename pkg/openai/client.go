// Package openai reads organization usage and cost from the OpenAI
// administration API.
package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/opslens/internal/resilience"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	maxPages       = 20
)

// Client reads usage since a point in time.
type Client interface {
	CompletionUsage(ctx context.Context, since time.Time) (*Usage, error)
	Costs(ctx context.Context, since time.Time) (decimal.Decimal, error)
}

// Usage aggregates completion usage across buckets.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	Requests     int64
	Models       []string
}

type page[T any] struct {
	Data []struct {
		Results []T `json:"results"`
	} `json:"data"`
	HasMore  bool   `json:"has_more"`
	NextPage string `json:"next_page"`
}

type usageResult struct {
	InputTokens      int64  `json:"input_tokens"`
	OutputTokens     int64  `json:"output_tokens"`
	NumModelRequests int64  `json:"num_model_requests"`
	Model            string `json:"model"`
}

type costResult struct {
	Amount struct {
		Value    json.Number `json:"value"`
		Currency string      `json:"currency"`
	} `json:"amount"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an OpenAI usage client. apiKey must be an admin key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) CompletionUsage(ctx context.Context, since time.Time) (*Usage, error) {
	out := &Usage{}
	seen := map[string]bool{}
	q := url.Values{
		"start_time":   {strconv.FormatInt(since.Unix(), 10)},
		"bucket_width": {"1d"},
		"group_by":     {"model"},
		"limit":        {"31"},
	}
	err := walk(ctx, c, "/organization/usage/completions", q, func(r usageResult) error {
		out.InputTokens += r.InputTokens
		out.OutputTokens += r.OutputTokens
		out.Requests += r.NumModelRequests
		if r.Model != "" && !seen[r.Model] {
			seen[r.Model] = true
			out.Models = append(out.Models, r.Model)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "openai: completion usage")
	}
	return out, nil
}

func (c *httpClient) Costs(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	q := url.Values{
		"start_time":   {strconv.FormatInt(since.Unix(), 10)},
		"bucket_width": {"1d"},
		"limit":        {"31"},
	}
	err := walk(ctx, c, "/organization/costs", q, func(r costResult) error {
		v, err := decimal.NewFromString(r.Amount.Value.String())
		if err != nil {
			return eris.Wrapf(err, "openai: parse cost %q", r.Amount.Value)
		}
		total = total.Add(v)
		return nil
	})
	if err != nil {
		return decimal.Zero, eris.Wrap(err, "openai: costs")
	}
	return total, nil
}

func walk[T any](ctx context.Context, c *httpClient, path string, q url.Values, fn func(T) error) error {
	for i := 0; i < maxPages; i++ {
		var p page[T]
		if err := c.get(ctx, path, q, &p); err != nil {
			return err
		}
		for _, bucket := range p.Data {
			for _, r := range bucket.Results {
				if err := fn(r); err != nil {
					return err
				}
			}
		}
		if !p.HasMore || p.NextPage == "" {
			return nil
		}
		q.Set("page", p.NextPage)
	}
	return nil
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "openai: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "openai: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "openai: read response")
	}
	if err := resilience.CheckStatus("openai", resp.StatusCode, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "openai: unmarshal response")
	}
	return nil
}
