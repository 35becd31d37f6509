// Package insight derives cost trend, resource inventory and
// recommendations from the AWS section of a metric snapshot.
package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/opslens/internal/config"
	"github.com/sells-group/opslens/internal/model"
)

const (
	windowDays = 30
	weekDays   = 7
)

var (
	minTolerance = decimal.New(1, -2)
	hundred      = decimal.NewFromInt(100)
)

// Options tunes the analyzer.
type Options struct {
	TrendTolerancePct float64
	TopServices       int
	DNSZoneThreshold  int
	LightsailHighCost decimal.Decimal
}

// OptionsFromConfig maps insight configuration onto Options, filling defaults
// for unset values.
func OptionsFromConfig(cfg config.InsightConfig) Options {
	o := Options{
		TrendTolerancePct: cfg.TrendTolerancePct,
		TopServices:       cfg.TopServices,
		DNSZoneThreshold:  cfg.DNSZoneThreshold,
		LightsailHighCost: decimal.NewFromFloat(cfg.LightsailHighCost),
	}
	return o.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.TrendTolerancePct <= 0 {
		o.TrendTolerancePct = 2
	}
	if o.TopServices <= 0 {
		o.TopServices = 5
	}
	if o.DNSZoneThreshold <= 0 {
		o.DNSZoneThreshold = 1
	}
	if !o.LightsailHighCost.IsPositive() {
		o.LightsailHighCost = decimal.NewFromInt(10)
	}
	return o
}

// Analyzer turns a snapshot into an EnrichedSnapshot. It holds no state
// between calls and is safe for concurrent use.
type Analyzer struct {
	opts Options
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	return &Analyzer{opts: opts.withDefaults()}
}

// Analyze never fails. Insights are nil when AWS is not enabled for the
// project; a failed or missing AWS result yields failed insights that still
// carry the recommendations that apply to the failure.
func (a *Analyzer) Analyze(p model.ProjectConfig, snap *model.MetricSnapshot) *model.EnrichedSnapshot {
	out := &model.EnrichedSnapshot{Project: p, Snapshot: snap}
	if !p.Enabled(model.PlatformAWS) {
		return out
	}
	out.Insights = a.insights(snap)

	zap.L().Debug("insight: analyzed snapshot",
		zap.String("project_id", p.ID),
		zap.String("status", string(out.Insights.Status)),
		zap.String("trend", string(out.Insights.Trend.Direction)),
		zap.Int("recommendations", len(out.Insights.Recommendations)),
	)
	return out
}

func (a *Analyzer) insights(snap *model.MetricSnapshot) *model.CostInsights {
	ins := &model.CostInsights{
		Days:  windowDays,
		Total: decimal.Zero,
		Trend: model.CostTrend{Direction: model.TrendStable},
	}

	res, ok := snap.Result(model.PlatformAWS)
	if !ok {
		ins.Status = model.StatusFailed
		ins.Failure = &model.Failure{Kind: model.KindInternal, Message: "aws result missing from snapshot"}
		ins.Recommendations = a.recommend(ruleInput{failure: ins.Failure})
		return ins
	}
	if !res.IsOK() {
		ins.Status = model.StatusFailed
		ins.Failure = res.Failure
		ins.Recommendations = a.recommend(ruleInput{failure: res.Failure})
		return ins
	}
	report, ok := model.PayloadAs[model.AWSReport](res)
	if !ok {
		ins.Status = model.StatusFailed
		ins.Failure = &model.Failure{Kind: model.KindInternal, Message: fmt.Sprintf("unexpected aws payload %T", res.Payload)}
		ins.Recommendations = a.recommend(ruleInput{failure: ins.Failure})
		return ins
	}

	window := lastDays(report.Costs, windowDays)
	ins.Status = model.StatusOK
	ins.Total = sumTotals(window)
	ins.Trend = a.trend(window, ins.Total)
	ins.TopServices = topServices(window, a.opts.TopServices)
	ins.Inventory = inventory(report)
	ins.Recommendations = a.recommend(ruleInput{
		report:   &report,
		trend:    ins.Trend,
		services: ins.TopServices,
	})
	return ins
}

// trend compares the last seven records against the seven before them.
// Records are expected in chronological order.
func (a *Analyzer) trend(window []model.CostRecord, total decimal.Decimal) model.CostTrend {
	recent := sumTotals(tail(window, weekDays))
	prior := decimal.Zero
	if len(window) > weekDays {
		prior = sumTotals(tail(window[:len(window)-weekDays], weekDays))
	}

	t := model.CostTrend{
		Direction:    model.TrendStable,
		RecentWeek:   recent,
		PriorWeek:    prior,
		ChangePct:    decimal.Zero,
		DailyAverage: total.Div(decimal.NewFromInt(windowDays)),
	}
	if prior.IsPositive() {
		t.ChangePct = recent.Sub(prior).Div(prior).Mul(hundred)
	}

	tol := prior.Mul(decimal.NewFromFloat(a.opts.TrendTolerancePct)).Div(hundred)
	if tol.LessThan(minTolerance) {
		tol = minTolerance
	}
	switch diff := recent.Sub(prior); {
	case diff.GreaterThan(tol):
		t.Direction = model.TrendIncreasing
	case diff.Neg().GreaterThan(tol):
		t.Direction = model.TrendDecreasing
	}
	return t
}

// lastDays returns the most recent n records in chronological order. The
// input slice is not modified.
func lastDays(records []model.CostRecord, n int) []model.CostRecord {
	sorted := make([]model.CostRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return tail(sorted, n)
}

func tail(records []model.CostRecord, n int) []model.CostRecord {
	if len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}

func sumTotals(records []model.CostRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Total)
	}
	return total
}

func topServices(window []model.CostRecord, n int) []model.ServiceCost {
	totals := make(map[string]decimal.Decimal)
	for _, r := range window {
		for svc, amt := range r.Services {
			totals[svc] = totals[svc].Add(amt)
		}
	}
	out := make([]model.ServiceCost, 0, len(totals))
	for svc, amt := range totals {
		out = append(out, model.ServiceCost{Service: svc, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Service < out[j].Service
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

var categoryTitles = map[model.ResourceCategory]string{
	model.CategoryCompute:   "EC2 instances",
	model.CategoryLightsail: "Lightsail instances",
	model.CategoryNetwork:   "Elastic IPs",
	model.CategoryDatabase:  "RDS databases",
	model.CategoryDNS:       "Route 53 hosted zones",
	model.CategoryStorage:   "S3 buckets",
}

// inventory emits one group per category in fixed order. Categories that
// could not be listed carry a placeholder so absence is never read as zero.
func inventory(report model.AWSReport) []model.InventoryGroup {
	groups := make([]model.InventoryGroup, 0, len(model.ResourceCategories))
	for _, cat := range model.ResourceCategories {
		g := model.InventoryGroup{Category: cat, Title: categoryTitles[cat], MonthlyCost: decimal.Zero}
		res, ok := report.Resources[cat]
		switch {
		case !ok:
			g.Placeholder = fmt.Sprintf("%s were not collected: data unavailable, not zero usage", g.Title)
		case res.Status != model.StatusOK:
			g.Placeholder = placeholder(g.Title, res.Failure)
		default:
			g.Available = true
			g.Entries = res.Entries
			for _, e := range res.Entries {
				g.MonthlyCost = g.MonthlyCost.Add(e.EstimatedMonthlyCost)
			}
		}
		groups = append(groups, g)
	}
	return groups
}

func placeholder(title string, f *model.Failure) string {
	kind := model.KindInternal
	if f != nil {
		kind = f.Kind
	}
	var lead string
	switch kind {
	case model.KindUnauthorized:
		lead = "Permission denied listing " + title
	case model.KindTimeout:
		lead = "Timed out listing " + title
	case model.KindRateLimited:
		lead = "Rate limited listing " + title
	default:
		lead = "Could not list " + title
	}
	return fmt.Sprintf("%s (%s): data unavailable, not zero usage", lead, kind)
}

func names(entries []model.ResourceInventoryEntry) string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name != "" {
			out = append(out, e.Name)
		} else {
			out = append(out, e.ID)
		}
	}
	return strings.Join(out, ", ")
}
