package awscloud

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/opslens/internal/model"
)

const (
	costMetric = "UnblendedCost"
	dateLayout = "2006-01-02"
	maxPages   = 20
)

// DailyCosts returns one record per day in [start, end) with spend grouped by
// service, oldest first. An amount that does not parse fails the whole call.
func DailyCosts(ctx context.Context, api CostExplorerAPI, start, end time.Time) ([]model.CostRecord, error) {
	in := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.UTC().Format(dateLayout)),
			End:   aws.String(end.UTC().Format(dateLayout)),
		},
		Granularity: cetypes.GranularityDaily,
		Metrics:     []string{costMetric},
		GroupBy: []cetypes.GroupDefinition{{
			Type: cetypes.GroupDefinitionTypeDimension,
			Key:  aws.String("SERVICE"),
		}},
	}

	byDate := map[string]*model.CostRecord{}
	var order []string
	for page := 0; page < maxPages; page++ {
		out, err := api.GetCostAndUsage(ctx, in)
		if err != nil {
			return nil, eris.Wrap(err, "awscloud: get cost and usage")
		}
		for _, r := range out.ResultsByTime {
			if r.TimePeriod == nil || r.TimePeriod.Start == nil {
				continue
			}
			key := aws.ToString(r.TimePeriod.Start)
			rec, ok := byDate[key]
			if !ok {
				day, err := time.Parse(dateLayout, key)
				if err != nil {
					return nil, eris.Wrapf(err, "awscloud: parse date %q", key)
				}
				rec = &model.CostRecord{Date: day, Total: decimal.Zero, Services: map[string]decimal.Decimal{}}
				byDate[key] = rec
				order = append(order, key)
			}
			for _, g := range r.Groups {
				if len(g.Keys) == 0 {
					continue
				}
				amt, err := parseAmount(g.Metrics)
				if err != nil {
					return nil, eris.Wrapf(err, "awscloud: cost for %s on %s", g.Keys[0], key)
				}
				rec.Services[g.Keys[0]] = rec.Services[g.Keys[0]].Add(amt)
				rec.Total = rec.Total.Add(amt)
			}
		}
		if out.NextPageToken == nil || *out.NextPageToken == "" {
			break
		}
		in.NextPageToken = out.NextPageToken
	}

	records := make([]model.CostRecord, 0, len(order))
	for _, k := range order {
		records = append(records, *byDate[k])
	}
	return records, nil
}

func parseAmount(metrics map[string]cetypes.MetricValue) (decimal.Decimal, error) {
	mv, ok := metrics[costMetric]
	if !ok || mv.Amount == nil {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(*mv.Amount)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "unparsable amount %q", *mv.Amount)
	}
	return d, nil
}
