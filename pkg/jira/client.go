// Package jira is a minimal Jira Cloud REST client for issue throughput.
package jira

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/opslens/internal/resilience"
)

// Client reads project metadata and issue counts.
type Client interface {
	GetProject(ctx context.Context, key string) (*Project, error)
	CountIssues(ctx context.Context, jql string) (int, error)
}

// Project is the subset of GET /rest/api/2/project/{key} we use.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type searchResponse struct {
	Total int `json:"total"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	email   string
	token   string
	http    *http.Client
}

// NewClient creates a Jira client for the site at baseURL using basic auth
// with an account email and API token.
func NewClient(baseURL, email, token string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		email:   email,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetProject(ctx context.Context, key string) (*Project, error) {
	var p Project
	if err := c.get(ctx, "/rest/api/2/project/"+url.PathEscape(key), nil, &p); err != nil {
		return nil, eris.Wrapf(err, "jira: get project %s", key)
	}
	return &p, nil
}

// CountIssues returns the total number of issues matching jql without
// fetching any of them.
func (c *httpClient) CountIssues(ctx context.Context, jql string) (int, error) {
	q := url.Values{
		"jql":        {jql},
		"maxResults": {"0"},
		"fields":     {"none"},
	}
	var resp searchResponse
	if err := c.get(ctx, "/rest/api/2/search", q, &resp); err != nil {
		return 0, eris.Wrap(err, "jira: search issues")
	}
	return resp.Total, nil
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) error {
	if c.baseURL == "" {
		return eris.New("jira: base url is not configured")
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "jira: create request")
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "jira: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "jira: read response")
	}
	if err := resilience.CheckStatus("jira", resp.StatusCode, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "jira: unmarshal response")
	}
	return nil
}
