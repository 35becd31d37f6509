package adapter

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/resilience"
	"github.com/sells-group/opslens/pkg/jira"
)

// Jira reports 30-day issue throughput for a Jira project.
type Jira struct {
	client jira.Client
	retry  resilience.RetryConfig
}

// NewJira creates the Jira adapter. A nil client reports missing credentials.
func NewJira(client jira.Client, retry resilience.RetryConfig) *Jira {
	return &Jira{client: client, retry: retry}
}

func (a *Jira) Platform() model.Platform { return model.PlatformJira }

func (a *Jira) Enabled(p model.ProjectConfig) bool { return p.Integrations.Jira.Enabled }

func (a *Jira) Fetch(ctx context.Context, p model.ProjectConfig) model.ServiceResult {
	if a.client == nil {
		return notConfigured(model.PlatformJira)
	}
	key := p.Integrations.Jira.ProjectKey

	proj, err := resilience.DoVal(ctx, a.retry.WithLogger("jira", "get_project"), func(ctx context.Context) (*jira.Project, error) {
		return a.client.GetProject(ctx, key)
	})
	if err != nil {
		return failed(model.PlatformJira, p.ID, eris.Wrapf(err, "jira: project %s", key))
	}

	queries := []string{
		fmt.Sprintf("project = %q AND created >= -30d", key),
		fmt.Sprintf("project = %q AND created >= -30d AND resolution IS NOT EMPTY", key),
		fmt.Sprintf("project = %q AND resolution = Unresolved", key),
	}
	counts := make([]int, len(queries))
	for i, jql := range queries {
		n, err := resilience.DoVal(ctx, a.retry.WithLogger("jira", "count_issues"), func(ctx context.Context) (int, error) {
			return a.client.CountIssues(ctx, jql)
		})
		if err != nil {
			return failed(model.PlatformJira, p.ID, eris.Wrapf(err, "jira: count %s", jql))
		}
		counts[i] = n
	}

	return model.OK(model.PlatformJira, model.JiraActivity{
		ProjectKey:     key,
		ProjectName:    proj.Name,
		Created30d:     counts[0],
		Resolved30d:    counts[1],
		Open:           counts[2],
		ResolutionRate: percent(counts[1], counts[0]),
	})
}
