package qa

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/opslens/internal/model"
)

var captured = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func fullProject() model.ProjectConfig {
	return model.ProjectConfig{
		ID:              "acme",
		Name:            "Acme Portal",
		Client:          "Acme Corp",
		Status:          model.ProjectActive,
		MonthlyBurnRate: decimal.RequireFromString("42000"),
		Team: model.Team{
			Size:      4,
			Roles:     []string{"frontend", "backend", "devops"},
			TechStack: []string{"Go", "React"},
		},
		Integrations: model.Integrations{
			GitHub:  model.GitHubIntegration{Enabled: true, Org: "acme", Repos: []string{"api", "web"}},
			Jira:    model.JiraIntegration{Enabled: true, ProjectKey: "ACME"},
			AWS:     model.AWSIntegration{Enabled: true},
			Railway: model.RailwayIntegration{Enabled: true, ProjectID: "rw-1"},
			OpenAI:  model.OpenAIIntegration{Enabled: true},
		},
	}
}

func okResults() map[model.Platform]model.ServiceResult {
	deployed := captured.Add(-time.Hour)
	return map[model.Platform]model.ServiceResult{
		model.PlatformGitHub: model.OK(model.PlatformGitHub, model.GitHubActivity{
			Org: "acme",
			Repos: []model.RepoActivity{
				{Name: "api", Commits: 40, OpenPRs: 2},
				{Name: "web", Commits: 12, OpenPRs: 1},
			},
			TotalCommits:    52,
			TotalPRs:        9,
			TotalOpenIssues: 5,
		}),
		model.PlatformJira: model.OK(model.PlatformJira, model.JiraActivity{
			ProjectKey: "ACME", ProjectName: "Acme", Created30d: 20, Resolved30d: 15, Open: 7, ResolutionRate: 75,
		}),
		model.PlatformAWS: model.OK(model.PlatformAWS, model.AWSReport{Region: "us-east-1"}),
		model.PlatformRailway: model.OK(model.PlatformRailway, model.RailwayStatus{
			ProjectID: "rw-1", ProjectName: "acme-api", Deployments: 10, Successful: 9, Failed: 1,
			SuccessRate: 90, LastStatus: "SUCCESS", LastDeployedAt: &deployed,
		}),
		model.PlatformOpenAI: model.OK(model.PlatformOpenAI, model.OpenAIUsage{
			PeriodStart: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
			Requests:    120, InputTokens: 1000, OutputTokens: 500,
			Cost: decimal.RequireFromString("3.456"),
		}),
	}
}

func okInsights() *model.CostInsights {
	return &model.CostInsights{
		Status: model.StatusOK,
		Days:   30,
		Total:  decimal.RequireFromString("51"),
		Trend: model.CostTrend{
			Direction:    model.TrendDecreasing,
			RecentWeek:   decimal.RequireFromString("15"),
			PriorWeek:    decimal.RequireFromString("20"),
			ChangePct:    decimal.RequireFromString("-25"),
			DailyAverage: decimal.RequireFromString("1.7"),
		},
		TopServices: []model.ServiceCost{{Service: "Amazon Lightsail", Amount: decimal.RequireFromString("30.6")}},
		Inventory: []model.InventoryGroup{{
			Category: model.CategoryDatabase, Title: "RDS databases",
			Placeholder: "Permission denied listing RDS databases (unauthorized): data unavailable, not zero usage",
		}},
		Recommendations: []model.Recommendation{{Priority: model.PriorityImmediate, Rule: "unattached_eip", Text: "Release 1 unattached Elastic IP(s)."}},
	}
}

func fullSnapshot() *model.EnrichedSnapshot {
	return &model.EnrichedSnapshot{
		Project:  fullProject(),
		Snapshot: &model.MetricSnapshot{ProjectID: "acme", CapturedAt: captured, Results: okResults()},
		Insights: okInsights(),
	}
}

// failedSnapshot has every adapter failed with unauthorized.
func failedSnapshot() *model.EnrichedSnapshot {
	res := make(map[model.Platform]model.ServiceResult)
	for _, p := range model.AllPlatforms {
		res[p] = model.Failed(p, model.KindUnauthorized, "bad credentials")
	}
	return &model.EnrichedSnapshot{
		Project:  fullProject(),
		Snapshot: &model.MetricSnapshot{ProjectID: "acme", CapturedAt: captured, Results: res},
		Insights: &model.CostInsights{
			Status:  model.StatusFailed,
			Failure: &model.Failure{Kind: model.KindUnauthorized, Message: "bad credentials"},
		},
	}
}

// bareSnapshot has every integration disabled.
func bareSnapshot() *model.EnrichedSnapshot {
	return &model.EnrichedSnapshot{
		Project:  model.ProjectConfig{ID: "bare", Name: "Bare"},
		Snapshot: &model.MetricSnapshot{ProjectID: "bare", CapturedAt: captured, Results: map[model.Platform]model.ServiceResult{}},
	}
}
