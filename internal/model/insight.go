package model

import (
	"github.com/shopspring/decimal"
)

// TrendDirection is the week-over-week direction of spend.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// CostTrend compares the most recent week of spend against the week before.
type CostTrend struct {
	Direction    TrendDirection  `json:"direction"`
	RecentWeek   decimal.Decimal `json:"recent_week"`
	PriorWeek    decimal.Decimal `json:"prior_week"`
	ChangePct    decimal.Decimal `json:"change_pct"`
	DailyAverage decimal.Decimal `json:"daily_average"`
}

// ServiceCost is the window total for one AWS service.
type ServiceCost struct {
	Service string          `json:"service"`
	Amount  decimal.Decimal `json:"amount"`
}

// InventoryGroup is one category of the resource inventory. Unavailable
// groups carry a placeholder instead of entries.
type InventoryGroup struct {
	Category    ResourceCategory         `json:"category"`
	Title       string                   `json:"title"`
	Available   bool                     `json:"available"`
	Entries     []ResourceInventoryEntry `json:"entries,omitempty"`
	MonthlyCost decimal.Decimal          `json:"monthly_cost"`
	Placeholder string                   `json:"placeholder,omitempty"`
}

// RecommendationPriority orders recommendations.
type RecommendationPriority string

const (
	PriorityImmediate RecommendationPriority = "immediate"
	PriorityShortTerm RecommendationPriority = "short_term"
	PriorityOngoing   RecommendationPriority = "ongoing"
)

// Rank returns the sort position of the priority.
func (p RecommendationPriority) Rank() int {
	switch p {
	case PriorityImmediate:
		return 0
	case PriorityShortTerm:
		return 1
	default:
		return 2
	}
}

// Recommendation is a single cost or hygiene suggestion.
type Recommendation struct {
	Priority         RecommendationPriority `json:"priority"`
	Rule             string                 `json:"rule"`
	Text             string                 `json:"text"`
	EstimatedSavings decimal.Decimal        `json:"estimated_savings"`
}

// CostInsights is derived from the AWS section of a snapshot.
type CostInsights struct {
	Status          ResultStatus     `json:"status"`
	Failure         *Failure         `json:"failure,omitempty"`
	Days            int              `json:"days"`
	Total           decimal.Decimal  `json:"total_30d"`
	Trend           CostTrend        `json:"trend"`
	TopServices     []ServiceCost    `json:"top_services,omitempty"`
	Inventory       []InventoryGroup `json:"inventory,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// EnrichedSnapshot pairs a metric snapshot with its cost analytics. Insights
// is nil when AWS is not configured for the project.
type EnrichedSnapshot struct {
	Project  ProjectConfig   `json:"project"`
	Snapshot *MetricSnapshot `json:"snapshot"`
	Insights *CostInsights   `json:"insights,omitempty"`
}
