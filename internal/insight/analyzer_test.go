package insight

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/opslens/internal/config"
	"github.com/sells-group/opslens/internal/model"
)

var day0 = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func awsProject() model.ProjectConfig {
	return model.ProjectConfig{
		ID:           "acme",
		Integrations: model.Integrations{AWS: model.AWSIntegration{Enabled: true}},
	}
}

// series builds 30 daily records: 16 days at $1, a prior week totalling
// $20 and a recent week totalling $15. It is returned newest first.
func series() []model.CostRecord {
	var recs []model.CostRecord
	for i := 0; i < 30; i++ {
		amt := d("1")
		switch {
		case i >= 16 && i < 22:
			amt = d("3")
		case i == 22:
			amt = d("2")
		case i >= 23 && i < 29:
			amt = d("2")
		case i == 29:
			amt = d("3")
		}
		recs = append([]model.CostRecord{{
			Date:     day0.AddDate(0, 0, i),
			Total:    amt,
			Services: map[string]decimal.Decimal{"Amazon Lightsail": amt.Mul(d("0.6")), "AWS Route 53": amt.Mul(d("0.4"))},
		}}, recs...)
	}
	return recs
}

func snapshotWith(results ...model.ServiceResult) *model.MetricSnapshot {
	snap := &model.MetricSnapshot{ProjectID: "acme", Results: map[model.Platform]model.ServiceResult{}}
	for _, r := range results {
		snap.Results[r.Platform] = r
	}
	return snap
}

func fullResources() map[model.ResourceCategory]model.CategoryResult {
	res := make(map[model.ResourceCategory]model.CategoryResult)
	for _, cat := range model.ResourceCategories {
		res[cat] = model.CategoryResult{Category: cat, Status: model.StatusOK}
	}
	return res
}

func TestAnalyze_DecreasingScenario(t *testing.T) {
	report := model.AWSReport{Region: "us-east-1", Costs: series(), Resources: fullResources()}
	a := New(Options{})

	es := a.Analyze(awsProject(), snapshotWith(model.OK(model.PlatformAWS, report)))
	require.NotNil(t, es.Insights)
	ins := es.Insights

	assert.Equal(t, model.StatusOK, ins.Status)
	assert.Equal(t, model.TrendDecreasing, ins.Trend.Direction)
	assert.Equal(t, "15.00", ins.Trend.RecentWeek.StringFixed(2))
	assert.Equal(t, "20.00", ins.Trend.PriorWeek.StringFixed(2))
	assert.Equal(t, "-25.0", ins.Trend.ChangePct.StringFixed(1))
	assert.Equal(t, "51.00", ins.Total.StringFixed(2))
	assert.Equal(t, "1.70", ins.Trend.DailyAverage.StringFixed(2))
}

func TestAnalyze_DailyAverageTimesWindowMatchesTotal(t *testing.T) {
	recs := series()
	recs[3].Total = d("1.3333")
	report := model.AWSReport{Costs: recs, Resources: fullResources()}

	ins := New(Options{}).Analyze(awsProject(), snapshotWith(model.OK(model.PlatformAWS, report))).Insights
	back := ins.Trend.DailyAverage.Mul(decimal.NewFromInt(30))
	assert.True(t, back.Sub(ins.Total).Abs().LessThan(d("0.01")), "avg*30=%s total=%s", back, ins.Total)
}

func TestAnalyze_TrendIsIdempotent(t *testing.T) {
	report := model.AWSReport{Costs: series(), Resources: fullResources()}
	snap := snapshotWith(model.OK(model.PlatformAWS, report))
	a := New(Options{})

	first := a.Analyze(awsProject(), snap).Insights
	second := a.Analyze(awsProject(), snap).Insights
	assert.Equal(t, first.Trend, second.Trend)
	assert.Equal(t, first.Recommendations, second.Recommendations)
}

func TestTrend_Tolerance(t *testing.T) {
	week := func(amounts ...string) []model.CostRecord {
		var out []model.CostRecord
		for i, a := range amounts {
			out = append(out, model.CostRecord{Date: day0.AddDate(0, 0, i), Total: d(a)})
		}
		return out
	}
	flat := func(n int, amt string) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = amt
		}
		return out
	}

	tests := []struct {
		name   string
		prior  string
		recent string
		want   model.TrendDirection
	}{
		{"within two percent", "10", "10.15", model.TrendStable},
		{"above two percent", "10", "10.30", model.TrendIncreasing},
		{"below two percent", "10", "9.70", model.TrendDecreasing},
		{"zero spend", "0", "0", model.TrendStable},
		{"tiny spend uses absolute floor", "0.001", "0.005", model.TrendStable},
		{"new spend", "0", "1", model.TrendIncreasing},
	}

	a := New(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amounts := append(flat(6, "0"), tt.prior)
			amounts = append(amounts, flat(6, "0")...)
			amounts = append(amounts, tt.recent)
			recs := week(amounts...)
			got := a.trend(recs, sumTotals(recs))
			assert.Equal(t, tt.want, got.Direction)
		})
	}
}

func TestTrend_ShortSeries(t *testing.T) {
	recs := []model.CostRecord{{Date: day0, Total: d("4")}, {Date: day0.AddDate(0, 0, 1), Total: d("2")}}
	got := New(Options{}).trend(recs, d("6"))
	assert.Equal(t, "6.00", got.RecentWeek.StringFixed(2))
	assert.True(t, got.PriorWeek.IsZero())
	assert.Equal(t, model.TrendIncreasing, got.Direction)
	assert.Equal(t, "0.20", got.DailyAverage.StringFixed(2))
}

func TestLastDays_KeepsMostRecentWindow(t *testing.T) {
	var recs []model.CostRecord
	for i := 0; i < 40; i++ {
		recs = append(recs, model.CostRecord{Date: day0.AddDate(0, 0, 39-i), Total: d("1")})
	}
	got := lastDays(recs, 30)
	require.Len(t, got, 30)
	assert.Equal(t, day0.AddDate(0, 0, 10), got[0].Date)
	assert.Equal(t, day0.AddDate(0, 0, 39), got[29].Date)
	assert.Equal(t, day0.AddDate(0, 0, 39), recs[0].Date, "input must not be reordered")
}

func TestTopServices(t *testing.T) {
	recs := []model.CostRecord{
		{Services: map[string]decimal.Decimal{"EC2": d("5"), "S3": d("1"), "RDS": d("2")}},
		{Services: map[string]decimal.Decimal{"EC2": d("1"), "Lambda": d("3"), "CloudWatch": d("0.5"), "KMS": d("0.1")}},
	}
	got := topServices(recs, 5)
	require.Len(t, got, 5)
	assert.Equal(t, "EC2", got[0].Service)
	assert.Equal(t, "6.00", got[0].Amount.StringFixed(2))
	assert.Equal(t, "Lambda", got[1].Service)
	assert.Equal(t, "RDS", got[2].Service)
	assert.Equal(t, "S3", got[3].Service)
	assert.Equal(t, "CloudWatch", got[4].Service)
}

func TestTopServices_TiesByName(t *testing.T) {
	recs := []model.CostRecord{{Services: map[string]decimal.Decimal{"b": d("1"), "a": d("1"), "c": d("2")}}}
	got := topServices(recs, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Service)
	assert.Equal(t, "a", got[1].Service)
}

func TestAnalyze_InventoryPlaceholders(t *testing.T) {
	res := fullResources()
	res[model.CategoryDatabase] = model.CategoryResult{
		Category: model.CategoryDatabase,
		Status:   model.StatusFailed,
		Failure:  &model.Failure{Kind: model.KindUnauthorized, Message: "AccessDenied"},
	}
	res[model.CategoryNetwork] = model.CategoryResult{
		Category: model.CategoryNetwork,
		Status:   model.StatusOK,
		Entries: []model.ResourceInventoryEntry{
			{ID: "eipalloc-1", Category: model.CategoryNetwork, State: model.StateUnattached, EstimatedMonthlyCost: d("3.60")},
		},
	}
	delete(res, model.CategoryStorage)

	ins := New(Options{}).Analyze(awsProject(), snapshotWith(model.OK(model.PlatformAWS, model.AWSReport{Resources: res}))).Insights
	require.Len(t, ins.Inventory, len(model.ResourceCategories))

	byCat := map[model.ResourceCategory]model.InventoryGroup{}
	for _, g := range ins.Inventory {
		byCat[g.Category] = g
	}
	db := byCat[model.CategoryDatabase]
	assert.False(t, db.Available)
	assert.Equal(t, "Permission denied listing RDS databases (unauthorized): data unavailable, not zero usage", db.Placeholder)
	assert.False(t, byCat[model.CategoryStorage].Available)
	assert.Contains(t, byCat[model.CategoryStorage].Placeholder, "not collected")

	net := byCat[model.CategoryNetwork]
	assert.True(t, net.Available)
	assert.Equal(t, "3.60", net.MonthlyCost.StringFixed(2))
	assert.Empty(t, net.Placeholder)
}

func TestAnalyze_AWSNotEnabled(t *testing.T) {
	es := New(Options{}).Analyze(model.ProjectConfig{ID: "p"}, snapshotWith())
	assert.Nil(t, es.Insights)
	assert.Equal(t, "p", es.Project.ID)
}

func TestAnalyze_AWSFailed(t *testing.T) {
	snap := snapshotWith(model.Failed(model.PlatformAWS, model.KindUnauthorized, "invalid security token"))
	ins := New(Options{}).Analyze(awsProject(), snap).Insights
	require.NotNil(t, ins)
	assert.Equal(t, model.StatusFailed, ins.Status)
	require.NotNil(t, ins.Failure)
	assert.Equal(t, model.KindUnauthorized, ins.Failure.Kind)
	assert.Equal(t, []string{"aws_credentials", "budget_alerts"}, ruleNames(ins.Recommendations))
}

func TestAnalyze_AWSMissingFromSnapshot(t *testing.T) {
	ins := New(Options{}).Analyze(awsProject(), snapshotWith()).Insights
	require.NotNil(t, ins)
	assert.Equal(t, model.StatusFailed, ins.Status)
	assert.Equal(t, model.KindInternal, ins.Failure.Kind)
	assert.Equal(t, []string{"budget_alerts"}, ruleNames(ins.Recommendations))
}

func TestAnalyze_UnexpectedAWSPayload(t *testing.T) {
	snap := snapshotWith(model.OK(model.PlatformAWS, model.GitHubActivity{Org: "acme"}))
	ins := New(Options{}).Analyze(awsProject(), snap).Insights
	require.NotNil(t, ins)
	assert.Equal(t, model.StatusFailed, ins.Status)
	require.NotNil(t, ins.Failure)
	assert.Equal(t, model.KindInternal, ins.Failure.Kind)
	assert.Contains(t, ins.Failure.Message, "unexpected aws payload")
	assert.Equal(t, []string{"budget_alerts"}, ruleNames(ins.Recommendations))
}

func TestOptionsFromConfig(t *testing.T) {
	o := OptionsFromConfig(config.InsightConfig{TopServices: 3})
	assert.Equal(t, 3, o.TopServices)
	assert.InDelta(t, 2.0, o.TrendTolerancePct, 0.0001)
	assert.Equal(t, 1, o.DNSZoneThreshold)
	assert.Equal(t, "10.00", o.LightsailHighCost.StringFixed(2))
}

func ruleNames(recs []model.Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Rule)
	}
	return out
}
