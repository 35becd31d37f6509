package adapter

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/resilience"
	"github.com/sells-group/opslens/pkg/github"
)

const prListLimit = 50

// GitHub reports 30-day repository activity.
type GitHub struct {
	client github.Client
	retry  resilience.RetryConfig
	now    func() time.Time
}

// NewGitHub creates the GitHub adapter.
func NewGitHub(client github.Client, retry resilience.RetryConfig) *GitHub {
	return &GitHub{client: client, retry: retry, now: time.Now}
}

func (a *GitHub) Platform() model.Platform { return model.PlatformGitHub }

func (a *GitHub) Enabled(p model.ProjectConfig) bool { return p.Integrations.GitHub.Enabled }

// Fetch reads every configured repository. One failing repository fails the
// whole result.
func (a *GitHub) Fetch(ctx context.Context, p model.ProjectConfig) model.ServiceResult {
	if a.client == nil {
		return notConfigured(model.PlatformGitHub)
	}
	gh := p.Integrations.GitHub
	since := a.now().Add(-window)

	out := model.GitHubActivity{Org: gh.Org, Repos: make([]model.RepoActivity, 0, len(gh.Repos))}
	for _, name := range gh.Repos {
		ra, err := a.repo(ctx, gh.Org, name, since)
		if err != nil {
			return failed(model.PlatformGitHub, p.ID, err)
		}
		out.Repos = append(out.Repos, ra)
		out.TotalCommits += ra.Commits
		out.TotalPRs += ra.PullRequests
		out.TotalOpenIssues += ra.OpenIssues
	}
	return model.OK(model.PlatformGitHub, out)
}

func (a *GitHub) repo(ctx context.Context, org, name string, since time.Time) (model.RepoActivity, error) {
	repo, err := resilience.DoVal(ctx, a.retry.WithLogger("github", "get_repository"), func(ctx context.Context) (*github.Repository, error) {
		return a.client.GetRepository(ctx, org, name)
	})
	if err != nil {
		return model.RepoActivity{}, eris.Wrapf(err, "github: repo %s/%s", org, name)
	}

	commits, err := resilience.DoVal(ctx, a.retry.WithLogger("github", "count_commits"), func(ctx context.Context) (int, error) {
		return a.client.CountCommitsSince(ctx, org, name, since)
	})
	if err != nil {
		return model.RepoActivity{}, eris.Wrapf(err, "github: commits %s/%s", org, name)
	}

	prs, err := resilience.DoVal(ctx, a.retry.WithLogger("github", "list_pull_requests"), func(ctx context.Context) ([]github.PullRequest, error) {
		return a.client.ListPullRequests(ctx, org, name, prListLimit)
	})
	if err != nil {
		return model.RepoActivity{}, eris.Wrapf(err, "github: pull requests %s/%s", org, name)
	}

	ra := model.RepoActivity{
		Name:       name,
		Commits:    commits,
		OpenIssues: repo.OpenIssuesCount,
		Stars:      repo.StargazersCount,
		Language:   repo.Language,
		UpdatedAt:  repo.UpdatedAt,
	}
	for _, pr := range prs {
		if pr.CreatedAt.After(since) {
			ra.PullRequests++
		}
		if pr.State == "open" {
			ra.OpenPRs++
		}
	}
	// GitHub counts open pull requests as issues.
	ra.OpenIssues -= ra.OpenPRs
	if ra.OpenIssues < 0 {
		ra.OpenIssues = 0
	}
	return ra, nil
}
