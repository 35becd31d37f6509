package adapter

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/resilience"
	"github.com/sells-group/opslens/pkg/awscloud"
	"github.com/sells-group/opslens/pkg/github"
	"github.com/sells-group/opslens/pkg/jira"
	"github.com/sells-group/opslens/pkg/openai"
	"github.com/sells-group/opslens/pkg/railway"
)

var (
	noRetry = resilience.RetryConfig{MaxAttempts: 1}
	fixedAt = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
)

func statusErr(svc string, code int) error {
	return resilience.CheckStatus(svc, code, []byte("{}"))
}

// MockGitHub implements github.Client for testing.
type MockGitHub struct {
	mock.Mock
}

func (m *MockGitHub) GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error) {
	args := m.Called(ctx, owner, repo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*github.Repository), args.Error(1)
}

func (m *MockGitHub) CountCommitsSince(ctx context.Context, owner, repo string, since time.Time) (int, error) {
	args := m.Called(ctx, owner, repo, since)
	return args.Int(0), args.Error(1)
}

func (m *MockGitHub) ListPullRequests(ctx context.Context, owner, repo string, limit int) ([]github.PullRequest, error) {
	args := m.Called(ctx, owner, repo, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]github.PullRequest), args.Error(1)
}

func ghProject(repos ...string) model.ProjectConfig {
	return model.ProjectConfig{ID: "acme", Integrations: model.Integrations{
		GitHub: model.GitHubIntegration{Enabled: true, Org: "acme", Repos: repos},
	}}
}

func TestGitHub_Fetch(t *testing.T) {
	m := new(MockGitHub)
	since := fixedAt.Add(-window)
	m.On("GetRepository", mock.Anything, "acme", "api").Return(&github.Repository{
		Name: "api", Language: "Go", StargazersCount: 7, OpenIssuesCount: 5, UpdatedAt: fixedAt,
	}, nil)
	m.On("CountCommitsSince", mock.Anything, "acme", "api", since).Return(42, nil)
	m.On("ListPullRequests", mock.Anything, "acme", "api", prListLimit).Return([]github.PullRequest{
		{Number: 3, State: "open", CreatedAt: fixedAt.AddDate(0, 0, -1)},
		{Number: 2, State: "closed", CreatedAt: fixedAt.AddDate(0, 0, -10)},
		{Number: 1, State: "closed", CreatedAt: fixedAt.AddDate(0, -3, 0)},
	}, nil)

	a := NewGitHub(m, noRetry)
	a.now = func() time.Time { return fixedAt }

	res := a.Fetch(context.Background(), ghProject("api"))
	require.True(t, res.IsOK(), "%+v", res.Failure)
	act, ok := model.PayloadAs[model.GitHubActivity](res)
	require.True(t, ok)
	require.Len(t, act.Repos, 1)
	assert.Equal(t, 42, act.TotalCommits)
	assert.Equal(t, 2, act.TotalPRs)
	assert.Equal(t, 1, act.Repos[0].OpenPRs)
	assert.Equal(t, 4, act.Repos[0].OpenIssues)
	assert.Equal(t, "Go", act.Repos[0].Language)
	m.AssertExpectations(t)
}

func TestGitHub_OneRepoFailsAll(t *testing.T) {
	m := new(MockGitHub)
	m.On("GetRepository", mock.Anything, "acme", "api").Return(&github.Repository{Name: "api"}, nil)
	m.On("CountCommitsSince", mock.Anything, "acme", "api", mock.Anything).Return(1, nil)
	m.On("ListPullRequests", mock.Anything, "acme", "api", mock.Anything).Return([]github.PullRequest{}, nil)
	m.On("GetRepository", mock.Anything, "acme", "secret").Return(nil, statusErr("github", http.StatusUnauthorized))

	res := NewGitHub(m, noRetry).Fetch(context.Background(), ghProject("api", "secret"))
	assert.False(t, res.IsOK())
	assert.Nil(t, res.Payload)
	assert.Equal(t, model.KindUnauthorized, res.Failure.Kind)
	assert.Contains(t, res.Failure.Message, "acme/secret")
}

type fakeJira struct {
	project *jira.Project
	counts  map[string]int
	err     error
}

func (f *fakeJira) GetProject(_ context.Context, key string) (*jira.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.project, nil
}

func (f *fakeJira) CountIssues(_ context.Context, jql string) (int, error) {
	return f.counts[jql], nil
}

func TestJira_Fetch(t *testing.T) {
	f := &fakeJira{
		project: &jira.Project{Key: "OPS", Name: "Operations"},
		counts: map[string]int{
			`project = "OPS" AND created >= -30d`:                              30,
			`project = "OPS" AND created >= -30d AND resolution IS NOT EMPTY`: 20,
			`project = "OPS" AND resolution = Unresolved`:                      12,
		},
	}
	p := model.ProjectConfig{ID: "acme", Integrations: model.Integrations{Jira: model.JiraIntegration{Enabled: true, ProjectKey: "OPS"}}}

	res := NewJira(f, noRetry).Fetch(context.Background(), p)
	require.True(t, res.IsOK())
	act, _ := model.PayloadAs[model.JiraActivity](res)
	assert.Equal(t, "Operations", act.ProjectName)
	assert.Equal(t, 30, act.Created30d)
	assert.Equal(t, 12, act.Open)
	assert.InDelta(t, 66.7, act.ResolutionRate, 1e-9)
}

func TestJira_Failures(t *testing.T) {
	p := model.ProjectConfig{ID: "acme", Integrations: model.Integrations{Jira: model.JiraIntegration{Enabled: true, ProjectKey: "OPS"}}}

	res := NewJira(&fakeJira{err: statusErr("jira", http.StatusNotFound)}, noRetry).Fetch(context.Background(), p)
	assert.Equal(t, model.KindNotFound, res.Failure.Kind)

	res = NewJira(nil, noRetry).Fetch(context.Background(), p)
	assert.Equal(t, model.KindUnauthorized, res.Failure.Kind)
	assert.Contains(t, res.Failure.Message, "not configured")
}

type fakeRailway struct {
	pd  *railway.ProjectDeployments
	err error
}

func (f fakeRailway) RecentDeployments(context.Context, string, int) (*railway.ProjectDeployments, error) {
	return f.pd, f.err
}

func TestRailway_Fetch(t *testing.T) {
	pd := &railway.ProjectDeployments{ProjectName: "acme-api", Deployments: []railway.Deployment{
		{ID: "d1", Status: "FAILED", CreatedAt: fixedAt.Add(-2 * time.Hour)},
		{ID: "d3", Status: "SUCCESS", CreatedAt: fixedAt},
		{ID: "d2", Status: "SUCCESS", CreatedAt: fixedAt.Add(-time.Hour)},
	}}
	p := model.ProjectConfig{ID: "acme", Integrations: model.Integrations{Railway: model.RailwayIntegration{Enabled: true, ProjectID: "rw-1"}}}

	res := NewRailway(fakeRailway{pd: pd}, noRetry).Fetch(context.Background(), p)
	require.True(t, res.IsOK())
	st, _ := model.PayloadAs[model.RailwayStatus](res)
	assert.Equal(t, 3, st.Deployments)
	assert.Equal(t, 2, st.Successful)
	assert.Equal(t, 1, st.Failed)
	assert.InDelta(t, 66.7, st.SuccessRate, 1e-9)
	assert.Equal(t, "SUCCESS", st.LastStatus)
	require.NotNil(t, st.LastDeployedAt)
	assert.Equal(t, fixedAt, *st.LastDeployedAt)

	res = NewRailway(fakeRailway{err: statusErr("railway", http.StatusNotFound)}, noRetry).Fetch(context.Background(), p)
	assert.Equal(t, model.KindNotFound, res.Failure.Kind)
}

type fakeOpenAI struct {
	since time.Time
	err   error
}

func (f *fakeOpenAI) CompletionUsage(_ context.Context, since time.Time) (*openai.Usage, error) {
	f.since = since
	return &openai.Usage{InputTokens: 100, OutputTokens: 20, Requests: 4, Models: []string{"gpt-4o"}}, nil
}

func (f *fakeOpenAI) Costs(context.Context, time.Time) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return decimal.RequireFromString("3.21"), nil
}

func TestOpenAI_Fetch(t *testing.T) {
	f := &fakeOpenAI{}
	a := NewOpenAI(f, noRetry)
	a.now = func() time.Time { return fixedAt }
	p := model.ProjectConfig{ID: "acme", Integrations: model.Integrations{OpenAI: model.OpenAIIntegration{Enabled: true}}}

	res := a.Fetch(context.Background(), p)
	require.True(t, res.IsOK())
	u, _ := model.PayloadAs[model.OpenAIUsage](res)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), f.since)
	assert.Equal(t, int64(120), u.TotalTokens())
	assert.Equal(t, "3.21", u.Cost.String())

	f.err = statusErr("openai", http.StatusTooManyRequests)
	res = a.Fetch(context.Background(), p)
	assert.Equal(t, model.KindRateLimited, res.Failure.Kind)
	assert.Nil(t, res.Payload)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, percent(3, 0))
	assert.Equal(t, 33.3, percent(1, 3))
	assert.Equal(t, 100.0, percent(5, 5))
}

func TestFailed_Classifies(t *testing.T) {
	res := failed(model.PlatformAWS, "acme", &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"})
	assert.Equal(t, model.KindUnauthorized, res.Failure.Kind)

	res = failed(model.PlatformAWS, "acme", errors.Join(context.DeadlineExceeded))
	assert.Equal(t, model.KindTimeout, res.Failure.Kind)
}

func TestAWS_ClientFactoryError(t *testing.T) {
	a := NewAWS(func(context.Context, string) (*awscloud.Clients, error) {
		return nil, errors.New("no credentials")
	}, "us-east-1", 0, noRetry)
	res := a.Fetch(context.Background(), model.ProjectConfig{ID: "acme"})
	assert.Equal(t, model.KindInternal, res.Failure.Kind)
	assert.Equal(t, 30, a.costDays)
}
