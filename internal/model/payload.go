package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RepoActivity is the 30-day activity of one GitHub repository.
type RepoActivity struct {
	Name         string    `json:"name"`
	Commits      int       `json:"commits_30d"`
	PullRequests int       `json:"pull_requests"`
	OpenPRs      int       `json:"open_prs"`
	OpenIssues   int       `json:"open_issues"`
	Stars        int       `json:"stars"`
	Language     string    `json:"language,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GitHubActivity is the payload of the GitHub adapter.
type GitHubActivity struct {
	Org             string         `json:"org"`
	Repos           []RepoActivity `json:"repos"`
	TotalCommits    int            `json:"total_commits"`
	TotalPRs        int            `json:"total_prs"`
	TotalOpenIssues int            `json:"total_open_issues"`
}

// JiraActivity is the payload of the Jira adapter.
type JiraActivity struct {
	ProjectKey     string  `json:"project_key"`
	ProjectName    string  `json:"project_name"`
	Created30d     int     `json:"created_30d"`
	Resolved30d    int     `json:"resolved_30d"`
	Open           int     `json:"open"`
	ResolutionRate float64 `json:"resolution_rate"`
}

// RailwayStatus is the payload of the Railway adapter.
type RailwayStatus struct {
	ProjectID      string     `json:"project_id"`
	ProjectName    string     `json:"project_name,omitempty"`
	Deployments    int        `json:"deployments"`
	Successful     int        `json:"successful"`
	Failed         int        `json:"failed"`
	SuccessRate    float64    `json:"success_rate"`
	LastStatus     string     `json:"last_status,omitempty"`
	LastDeployedAt *time.Time `json:"last_deployed_at,omitempty"`
}

// OpenAIUsage is the payload of the OpenAI adapter.
type OpenAIUsage struct {
	PeriodStart  time.Time       `json:"period_start"`
	Requests     int64           `json:"requests"`
	InputTokens  int64           `json:"input_tokens"`
	OutputTokens int64           `json:"output_tokens"`
	Cost         decimal.Decimal `json:"cost"`
	Models       []string        `json:"models,omitempty"`
}

// TotalTokens sums input and output tokens.
func (u OpenAIUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// CostRecord is one day of AWS spend with its per-service breakdown.
type CostRecord struct {
	Date     time.Time                  `json:"date"`
	Total    decimal.Decimal            `json:"total"`
	Services map[string]decimal.Decimal `json:"services,omitempty"`
}

// ResourceCategory groups AWS resources for inventory reporting.
type ResourceCategory string

const (
	CategoryCompute   ResourceCategory = "compute"
	CategoryLightsail ResourceCategory = "lightsail"
	CategoryNetwork   ResourceCategory = "network"
	CategoryDatabase  ResourceCategory = "database"
	CategoryDNS       ResourceCategory = "dns"
	CategoryStorage   ResourceCategory = "storage"
)

// ResourceCategories lists categories in inventory order.
var ResourceCategories = []ResourceCategory{
	CategoryCompute,
	CategoryLightsail,
	CategoryNetwork,
	CategoryDatabase,
	CategoryDNS,
	CategoryStorage,
}

// Resource states the analyzer reacts to.
const (
	StateRunning    = "running"
	StateStopped    = "stopped"
	StateUnattached = "unattached"
	StateAttached   = "attached"
	StateAvailable  = "available"
)

// ResourceInventoryEntry is one billable AWS resource.
type ResourceInventoryEntry struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name,omitempty"`
	Category             ResourceCategory `json:"category"`
	Kind                 string           `json:"kind"`
	State                string           `json:"state,omitempty"`
	Detail               string           `json:"detail,omitempty"`
	EstimatedMonthlyCost decimal.Decimal  `json:"estimated_monthly_cost"`
}

// CategoryResult is the listing outcome of one resource category. A failed
// category has no entries and records why.
type CategoryResult struct {
	Category ResourceCategory         `json:"category"`
	Status   ResultStatus             `json:"status"`
	Entries  []ResourceInventoryEntry `json:"entries,omitempty"`
	Failure  *Failure                 `json:"failure,omitempty"`
}

// AWSReport is the payload of the AWS adapter.
type AWSReport struct {
	Region    string                              `json:"region"`
	Costs     []CostRecord                        `json:"costs"`
	Resources map[ResourceCategory]CategoryResult `json:"resources"`
}
