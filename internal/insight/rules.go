package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/opslens/internal/model"
)

// ruleInput is what every recommendation rule sees. report is nil when the
// AWS section failed.
type ruleInput struct {
	report   *model.AWSReport
	failure  *model.Failure
	trend    model.CostTrend
	services []model.ServiceCost
}

type rule func(opts Options, in ruleInput) []model.Recommendation

// rules are evaluated independently; each may contribute any number of
// recommendations.
var rules = []rule{
	credentialFailure,
	stoppedInstances,
	unattachedAddresses,
	risingSpend,
	permissionGaps,
	dnsZones,
	multipleRunning,
	highCostLightsail,
	reservedCapacity,
	storageLifecycle,
	databaseBackups,
	budgetAlerts,
}

func (a *Analyzer) recommend(in ruleInput) []model.Recommendation {
	var out []model.Recommendation
	for _, r := range rules {
		out = append(out, r(a.opts, in)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}

func entries(in ruleInput, cat model.ResourceCategory) []model.ResourceInventoryEntry {
	if in.report == nil {
		return nil
	}
	res, ok := in.report.Resources[cat]
	if !ok || res.Status != model.StatusOK {
		return nil
	}
	return res.Entries
}

func withState(list []model.ResourceInventoryEntry, state string) []model.ResourceInventoryEntry {
	var out []model.ResourceInventoryEntry
	for _, e := range list {
		if e.State == state {
			out = append(out, e)
		}
	}
	return out
}

func monthly(list []model.ResourceInventoryEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range list {
		total = total.Add(e.EstimatedMonthlyCost)
	}
	return total
}

func credentialFailure(_ Options, in ruleInput) []model.Recommendation {
	if in.failure == nil || in.failure.Kind != model.KindUnauthorized {
		return nil
	}
	return []model.Recommendation{{
		Priority:         model.PriorityImmediate,
		Rule:             "aws_credentials",
		Text:             "AWS rejected the monitoring credentials. Verify the access key and grant Cost Explorer read access so spend can be tracked.",
		EstimatedSavings: decimal.Zero,
	}}
}

func stoppedInstances(_ Options, in ruleInput) []model.Recommendation {
	var out []model.Recommendation
	if stopped := withState(entries(in, model.CategoryLightsail), model.StateStopped); len(stopped) > 0 {
		out = append(out, model.Recommendation{
			Priority: model.PriorityImmediate,
			Rule:     "stopped_lightsail",
			Text: fmt.Sprintf("%d stopped Lightsail instance(s) are still billed at the bundle price (%s). Snapshot and delete them if they are no longer needed.",
				len(stopped), names(stopped)),
			EstimatedSavings: monthly(stopped),
		})
	}
	if stopped := withState(entries(in, model.CategoryCompute), model.StateStopped); len(stopped) > 0 {
		out = append(out, model.Recommendation{
			Priority: model.PriorityImmediate,
			Rule:     "stopped_ec2",
			Text: fmt.Sprintf("%d stopped EC2 instance(s) still bill for attached EBS volumes (%s). Terminate them or keep only an AMI.",
				len(stopped), names(stopped)),
			EstimatedSavings: monthly(stopped),
		})
	}
	return out
}

func unattachedAddresses(_ Options, in ruleInput) []model.Recommendation {
	idle := withState(entries(in, model.CategoryNetwork), model.StateUnattached)
	if len(idle) == 0 {
		return nil
	}
	return []model.Recommendation{{
		Priority: model.PriorityImmediate,
		Rule:     "unattached_eip",
		Text: fmt.Sprintf("Release %d unattached Elastic IP(s) (%s); each costs about $%s/month while idle.",
			len(idle), names(idle), idle[0].EstimatedMonthlyCost.StringFixed(2)),
		EstimatedSavings: monthly(idle),
	}}
}

func risingSpend(_ Options, in ruleInput) []model.Recommendation {
	if in.trend.Direction != model.TrendIncreasing {
		return nil
	}
	var top []string
	for i, s := range in.services {
		if i == 3 {
			break
		}
		top = append(top, s.Service)
	}
	text := fmt.Sprintf("Spend rose from $%s to $%s week over week (%s%%).",
		in.trend.PriorWeek.StringFixed(2), in.trend.RecentWeek.StringFixed(2), in.trend.ChangePct.StringFixed(1))
	if len(top) > 0 {
		text += " Start with " + strings.Join(top, ", ") + "."
	}
	return []model.Recommendation{{
		Priority:         model.PriorityImmediate,
		Rule:             "rising_spend",
		Text:             text,
		EstimatedSavings: in.trend.RecentWeek.Sub(in.trend.PriorWeek),
	}}
}

func permissionGaps(_ Options, in ruleInput) []model.Recommendation {
	if in.report == nil {
		return nil
	}
	var denied []string
	for _, cat := range model.ResourceCategories {
		res, ok := in.report.Resources[cat]
		if ok && res.Failure != nil && res.Failure.Kind == model.KindUnauthorized {
			denied = append(denied, categoryTitles[cat])
		}
	}
	if len(denied) == 0 {
		return nil
	}
	return []model.Recommendation{{
		Priority:         model.PriorityShortTerm,
		Rule:             "permission_gap",
		Text:             "Grant read-only access for " + strings.Join(denied, ", ") + " so the inventory is complete.",
		EstimatedSavings: decimal.Zero,
	}}
}

func dnsZones(opts Options, in ruleInput) []model.Recommendation {
	zones := entries(in, model.CategoryDNS)
	if len(zones) <= opts.DNSZoneThreshold {
		return nil
	}
	extra := zones[opts.DNSZoneThreshold:]
	return []model.Recommendation{{
		Priority: model.PriorityShortTerm,
		Rule:     "dns_zones",
		Text: fmt.Sprintf("%d Route 53 hosted zones cost $%s/month. Delete zones for domains that are no longer served.",
			len(zones), monthly(zones).StringFixed(2)),
		EstimatedSavings: monthly(extra),
	}}
}

func multipleRunning(_ Options, in ruleInput) []model.Recommendation {
	running := withState(entries(in, model.CategoryLightsail), model.StateRunning)
	if len(running) < 2 {
		return nil
	}
	return []model.Recommendation{{
		Priority: model.PriorityShortTerm,
		Rule:     "consolidate_lightsail",
		Text: fmt.Sprintf("%d Lightsail instances are running ($%s/month). Consider consolidating services onto fewer instances.",
			len(running), monthly(running).StringFixed(2)),
		EstimatedSavings: decimal.Zero,
	}}
}

func highCostLightsail(opts Options, in ruleInput) []model.Recommendation {
	var out []model.Recommendation
	for _, e := range withState(entries(in, model.CategoryLightsail), model.StateRunning) {
		if !e.EstimatedMonthlyCost.GreaterThan(opts.LightsailHighCost) {
			continue
		}
		name := e.Name
		if name == "" {
			name = e.ID
		}
		out = append(out, model.Recommendation{
			Priority: model.PriorityShortTerm,
			Rule:     "rightsize_lightsail",
			Text: fmt.Sprintf("Lightsail instance %s costs $%s/month. Check utilization and move to a smaller bundle if it is underused.",
				name, e.EstimatedMonthlyCost.StringFixed(2)),
			EstimatedSavings: decimal.Zero,
		})
	}
	return out
}

func reservedCapacity(_ Options, in ruleInput) []model.Recommendation {
	running := withState(entries(in, model.CategoryCompute), model.StateRunning)
	if len(running) == 0 {
		return nil
	}
	return []model.Recommendation{{
		Priority: model.PriorityShortTerm,
		Rule:     "reserved_capacity",
		Text: fmt.Sprintf("%d EC2 instance(s) run continuously. Reserved Instances or Savings Plans can cut their cost by up to 75%%.",
			len(running)),
		EstimatedSavings: decimal.Zero,
	}}
}

func storageLifecycle(_ Options, in ruleInput) []model.Recommendation {
	buckets := entries(in, model.CategoryStorage)
	if len(buckets) == 0 {
		return nil
	}
	return []model.Recommendation{{
		Priority: model.PriorityShortTerm,
		Rule:     "s3_lifecycle",
		Text: fmt.Sprintf("Add lifecycle policies to %d S3 bucket(s) to move old objects to cheaper storage classes.",
			len(buckets)),
		EstimatedSavings: decimal.Zero,
	}}
}

func databaseBackups(_ Options, in ruleInput) []model.Recommendation {
	dbs := entries(in, model.CategoryDatabase)
	if len(dbs) == 0 {
		return nil
	}
	return []model.Recommendation{{
		Priority: model.PriorityOngoing,
		Rule:     "rds_backups",
		Text: fmt.Sprintf("Review backup retention and manual snapshots for %d RDS database(s) (%s).",
			len(dbs), names(dbs)),
		EstimatedSavings: decimal.Zero,
	}}
}

func budgetAlerts(_ Options, _ ruleInput) []model.Recommendation {
	return []model.Recommendation{{
		Priority:         model.PriorityOngoing,
		Rule:             "budget_alerts",
		Text:             "Set up AWS Budgets alerts and review Cost Explorer monthly.",
		EstimatedSavings: decimal.Zero,
	}}
}
