package adapter

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/resilience"
	"github.com/sells-group/opslens/pkg/railway"
)

const recentDeployments = 20

// Railway reports the outcome of recent deployments.
type Railway struct {
	client railway.Client
	retry  resilience.RetryConfig
}

// NewRailway creates the Railway adapter. A nil client reports missing
// credentials.
func NewRailway(client railway.Client, retry resilience.RetryConfig) *Railway {
	return &Railway{client: client, retry: retry}
}

func (a *Railway) Platform() model.Platform { return model.PlatformRailway }

func (a *Railway) Enabled(p model.ProjectConfig) bool { return p.Integrations.Railway.Enabled }

func (a *Railway) Fetch(ctx context.Context, p model.ProjectConfig) model.ServiceResult {
	if a.client == nil {
		return notConfigured(model.PlatformRailway)
	}
	id := p.Integrations.Railway.ProjectID

	pd, err := resilience.DoVal(ctx, a.retry.WithLogger("railway", "recent_deployments"), func(ctx context.Context) (*railway.ProjectDeployments, error) {
		return a.client.RecentDeployments(ctx, id, recentDeployments)
	})
	if err != nil {
		return failed(model.PlatformRailway, p.ID, eris.Wrapf(err, "railway: project %s", id))
	}

	out := model.RailwayStatus{
		ProjectID:   id,
		ProjectName: pd.ProjectName,
		Deployments: len(pd.Deployments),
	}
	for _, d := range pd.Deployments {
		switch strings.ToUpper(d.Status) {
		case "SUCCESS":
			out.Successful++
		case "FAILED", "CRASHED":
			out.Failed++
		}
	}
	if len(pd.Deployments) > 0 {
		latest := pd.Deployments[0]
		for _, d := range pd.Deployments[1:] {
			if d.CreatedAt.After(latest.CreatedAt) {
				latest = d
			}
		}
		at := latest.CreatedAt
		out.LastStatus = latest.Status
		out.LastDeployedAt = &at
	}
	out.SuccessRate = percent(out.Successful, out.Deployments)
	return model.OK(model.PlatformRailway, out)
}
