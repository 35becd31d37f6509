// Package github is a minimal GitHub REST client for repository activity.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/opslens/internal/resilience"
)

const defaultBaseURL = "https://api.github.com"

// Client reads repository metadata and activity.
type Client interface {
	GetRepository(ctx context.Context, owner, repo string) (*Repository, error)
	CountCommitsSince(ctx context.Context, owner, repo string, since time.Time) (int, error)
	ListPullRequests(ctx context.Context, owner, repo string, limit int) ([]PullRequest, error)
}

// Repository is the subset of GET /repos/{owner}/{repo} we use.
type Repository struct {
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Language        string    `json:"language"`
	StargazersCount int       `json:"stargazers_count"`
	OpenIssuesCount int       `json:"open_issues_count"`
	UpdatedAt       time.Time `json:"updated_at"`
	PushedAt        time.Time `json:"pushed_at"`
}

// PullRequest is the subset of a pull request listing entry we use.
type PullRequest struct {
	Number    int        `json:"number"`
	State     string     `json:"state"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	MergedAt  *time.Time `json:"merged_at"`
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

// WithRateLimit overrides the default pacing of 5 req/s. Zero disables it.
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
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a GitHub client authenticated with a personal access token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	var out Repository
	if _, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), nil, &out); err != nil {
		return nil, eris.Wrapf(err, "github: get repository %s/%s", owner, repo)
	}
	return &out, nil
}

// CountCommitsSince asks for one commit per page and reads the exact total
// from the rel="last" page number, so any volume costs a single request.
func (c *httpClient) CountCommitsSince(ctx context.Context, owner, repo string, since time.Time) (int, error) {
	q := url.Values{
		"since":    {since.UTC().Format(time.RFC3339)},
		"per_page": {"1"},
	}
	var commits []json.RawMessage
	hdr, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/commits", owner, repo), q, &commits)
	if err != nil {
		return 0, eris.Wrapf(err, "github: list commits %s/%s", owner, repo)
	}
	if n, ok := lastPage(hdr); ok {
		return n, nil
	}
	return len(commits), nil
}

func (c *httpClient) ListPullRequests(ctx context.Context, owner, repo string, limit int) ([]PullRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := url.Values{
		"state":    {"all"},
		"per_page": {strconv.Itoa(limit)},
	}
	var prs []PullRequest
	if _, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls", owner, repo), q, &prs); err != nil {
		return nil, eris.Wrapf(err, "github: list pulls %s/%s", owner, repo)
	}
	return prs, nil
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) (http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "github: rate limit")
		}
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "github: create request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "github: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "github: read response")
	}
	if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
		return nil, resilience.CheckStatus("github", http.StatusTooManyRequests, body)
	}
	if err := resilience.CheckStatus("github", resp.StatusCode, body); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return nil, eris.Wrap(err, "github: unmarshal response")
	}
	return resp.Header, nil
}

// lastPage extracts the page number of the rel="last" link.
func lastPage(h http.Header) (int, bool) {
	for _, part := range strings.Split(h.Get("Link"), ",") {
		if !strings.Contains(part, `rel="last"`) {
			continue
		}
		start, end := strings.Index(part, "<"), strings.Index(part, ">")
		if start < 0 || end <= start {
			return 0, false
		}
		u, err := url.Parse(part[start+1 : end])
		if err != nil {
			return 0, false
		}
		n, err := strconv.Atoi(u.Query().Get("page"))
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
