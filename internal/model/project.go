package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// ErrInvalidConfig marks a project configuration that cannot be aggregated.
var ErrInvalidConfig = eris.New("invalid project config")

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

// ProjectConfig describes one engagement and which platforms it is wired to.
// It is treated as immutable for the duration of an aggregation pass.
type ProjectConfig struct {
	ID              string          `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	Client          string          `json:"client,omitempty" yaml:"client"`
	Status          ProjectStatus   `json:"status" yaml:"status"`
	MonthlyBurnRate decimal.Decimal `json:"monthly_burn_rate" yaml:"monthly_burn_rate"`
	Team            Team            `json:"team" yaml:"team"`
	Integrations    Integrations    `json:"integrations" yaml:"integrations"`
}

// Team holds staffing information for a project.
type Team struct {
	Size      int      `json:"size" yaml:"size"`
	Roles     []string `json:"roles,omitempty" yaml:"roles"`
	TechStack []string `json:"tech_stack,omitempty" yaml:"tech_stack"`
}

// Integrations holds the per-platform settings of a project.
type Integrations struct {
	GitHub  GitHubIntegration  `json:"github" yaml:"github"`
	Jira    JiraIntegration    `json:"jira" yaml:"jira"`
	AWS     AWSIntegration     `json:"aws" yaml:"aws"`
	Railway RailwayIntegration `json:"railway" yaml:"railway"`
	OpenAI  OpenAIIntegration  `json:"openai" yaml:"openai"`

	// TimeoutSecs overrides the adapter deadline per platform for this project.
	TimeoutSecs map[Platform]int `json:"timeout_secs,omitempty" yaml:"timeout_secs"`
}

// GitHubIntegration selects the repositories tracked for a project.
type GitHubIntegration struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Org     string   `json:"org" yaml:"org"`
	Repos   []string `json:"repos" yaml:"repos"`
}

// JiraIntegration selects the Jira project tracked for a project.
type JiraIntegration struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ProjectKey string `json:"project_key" yaml:"project_key"`
}

// AWSIntegration enables AWS cost and resource collection.
type AWSIntegration struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Region    string `json:"region,omitempty" yaml:"region"`
	AccountID string `json:"account_id,omitempty" yaml:"account_id"`
}

// RailwayIntegration selects the Railway project tracked for a project.
type RailwayIntegration struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	ProjectID string `json:"project_id" yaml:"project_id"`
}

// OpenAIIntegration enables OpenAI usage collection.
type OpenAIIntegration struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	DashboardURL string `json:"dashboard_url,omitempty" yaml:"dashboard_url"`
}

// Enabled reports whether the given platform is switched on for the project.
func (p ProjectConfig) Enabled(platform Platform) bool {
	switch platform {
	case PlatformGitHub:
		return p.Integrations.GitHub.Enabled
	case PlatformJira:
		return p.Integrations.Jira.Enabled
	case PlatformAWS:
		return p.Integrations.AWS.Enabled
	case PlatformRailway:
		return p.Integrations.Railway.Enabled
	case PlatformOpenAI:
		return p.Integrations.OpenAI.Enabled
	default:
		return false
	}
}

// EnabledPlatforms lists the enabled platforms in canonical order.
func (p ProjectConfig) EnabledPlatforms() []Platform {
	var out []Platform
	for _, pl := range AllPlatforms {
		if p.Enabled(pl) {
			out = append(out, pl)
		}
	}
	return out
}

// Validate checks that every enabled integration carries its addressing.
// Failures wrap ErrInvalidConfig.
func (p ProjectConfig) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return eris.Wrap(ErrInvalidConfig, "project id is required")
	}
	gh := p.Integrations.GitHub
	if gh.Enabled && (gh.Org == "" || len(gh.Repos) == 0) {
		return eris.Wrapf(ErrInvalidConfig, "project %s: github requires org and repos", p.ID)
	}
	if p.Integrations.Jira.Enabled && p.Integrations.Jira.ProjectKey == "" {
		return eris.Wrapf(ErrInvalidConfig, "project %s: jira requires project_key", p.ID)
	}
	if p.Integrations.Railway.Enabled && p.Integrations.Railway.ProjectID == "" {
		return eris.Wrapf(ErrInvalidConfig, "project %s: railway requires project_id", p.ID)
	}
	for pl, secs := range p.Integrations.TimeoutSecs {
		if secs < 0 {
			return eris.Wrapf(ErrInvalidConfig, "project %s: negative timeout for %s", p.ID, pl)
		}
	}
	return nil
}
