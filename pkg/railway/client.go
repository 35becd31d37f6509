// Package railway is a minimal Railway GraphQL client for deployment status.
package railway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/opslens/internal/resilience"
)

const defaultBaseURL = "https://backboard.railway.app/graphql/v2"

const deploymentsQuery = `query Deployments($projectId: String!, $first: Int!) {
  project(id: $projectId) { id name }
  deployments(first: $first, input: { projectId: $projectId }) {
    edges { node { id status createdAt } }
  }
}`

// Client reads recent deployments of a Railway project.
type Client interface {
	RecentDeployments(ctx context.Context, projectID string, first int) (*ProjectDeployments, error)
}

// Deployment is a single Railway deployment.
type Deployment struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectDeployments is the project name plus its most recent deployments,
// newest first.
type ProjectDeployments struct {
	ProjectName string
	Deployments []Deployment
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type deploymentsResponse struct {
	Data struct {
		Project *struct {
			Name string `json:"name"`
		} `json:"project"`
		Deployments struct {
			Edges []struct {
				Node Deployment `json:"node"`
			} `json:"edges"`
		} `json:"deployments"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default GraphQL endpoint.
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
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Railway client authenticated with an API token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) RecentDeployments(ctx context.Context, projectID string, first int) (*ProjectDeployments, error) {
	if first <= 0 {
		first = 10
	}
	body, err := json.Marshal(graphQLRequest{
		Query:     deploymentsQuery,
		Variables: map[string]any{"projectId": projectID, "first": first},
	})
	if err != nil {
		return nil, eris.Wrap(err, "railway: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "railway: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "railway: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "railway: read response")
	}
	if err := resilience.CheckStatus("railway", resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	var out deploymentsResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "railway: unmarshal response")
	}
	if len(out.Errors) > 0 {
		return nil, graphQLFailure(out.Errors)
	}
	if out.Data.Project == nil {
		return nil, resilience.CheckStatus("railway", http.StatusNotFound, []byte("project "+projectID))
	}

	pd := &ProjectDeployments{ProjectName: out.Data.Project.Name}
	for _, e := range out.Data.Deployments.Edges {
		pd.Deployments = append(pd.Deployments, e.Node)
	}
	return pd, nil
}

// graphQLFailure maps GraphQL-level errors onto HTTP-style status errors so
// callers classify them the same way as transport failures.
func graphQLFailure(errs []graphQLError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	joined := strings.Join(msgs, "; ")
	lower := strings.ToLower(joined)

	status := http.StatusBadGateway
	switch {
	case strings.Contains(lower, "not authorized"), strings.Contains(lower, "unauthorized"):
		status = http.StatusUnauthorized
	case strings.Contains(lower, "not found"):
		status = http.StatusNotFound
	case strings.Contains(lower, "rate limit"):
		status = http.StatusTooManyRequests
	}
	return resilience.CheckStatus("railway", status, []byte(joined))
}
