package awscloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/lightsail"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/opslens/internal/model"
)

// Published list prices used for estimates where the API gives none.
var (
	HostedZoneMonthly = decimal.RequireFromString("0.50")
	ElasticIPMonthly  = decimal.RequireFromString("3.60")
)

// Lister lists one resource category.
type Lister func(ctx context.Context, c *Clients) ([]model.ResourceInventoryEntry, error)

// Listers maps each category to its listing call.
var Listers = map[model.ResourceCategory]Lister{
	model.CategoryCompute:   ListEC2Instances,
	model.CategoryLightsail: ListLightsailInstances,
	model.CategoryNetwork:   ListElasticIPs,
	model.CategoryDatabase:  ListDatabases,
	model.CategoryDNS:       ListHostedZones,
	model.CategoryStorage:   ListBuckets,
}

// ListEC2Instances lists EC2 instances across reservations.
func ListEC2Instances(ctx context.Context, c *Clients) ([]model.ResourceInventoryEntry, error) {
	var entries []model.ResourceInventoryEntry
	in := &ec2.DescribeInstancesInput{}
	for page := 0; page < maxPages; page++ {
		out, err := c.EC2.DescribeInstances(ctx, in)
		if err != nil {
			return nil, eris.Wrap(err, "awscloud: describe instances")
		}
		for _, res := range out.Reservations {
			for _, inst := range res.Instances {
				e := model.ResourceInventoryEntry{
					ID:                   aws.ToString(inst.InstanceId),
					Category:             model.CategoryCompute,
					Kind:                 "ec2_instance",
					Detail:               string(inst.InstanceType),
					EstimatedMonthlyCost: decimal.Zero,
				}
				if inst.State != nil {
					e.State = string(inst.State.Name)
				}
				for _, t := range inst.Tags {
					if aws.ToString(t.Key) == "Name" {
						e.Name = aws.ToString(t.Value)
					}
				}
				entries = append(entries, e)
			}
		}
		if aws.ToString(out.NextToken) == "" {
			break
		}
		in.NextToken = out.NextToken
	}
	return entries, nil
}

// ListElasticIPs lists Elastic IP allocations. An address with no association
// is unattached and billed.
func ListElasticIPs(ctx context.Context, c *Clients) ([]model.ResourceInventoryEntry, error) {
	out, err := c.EC2.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, eris.Wrap(err, "awscloud: describe addresses")
	}
	entries := make([]model.ResourceInventoryEntry, 0, len(out.Addresses))
	for _, a := range out.Addresses {
		e := model.ResourceInventoryEntry{
			ID:                   aws.ToString(a.AllocationId),
			Name:                 aws.ToString(a.PublicIp),
			Category:             model.CategoryNetwork,
			Kind:                 "elastic_ip",
			State:                model.StateAttached,
			EstimatedMonthlyCost: decimal.Zero,
		}
		if a.AssociationId == nil {
			e.State = model.StateUnattached
			e.EstimatedMonthlyCost = ElasticIPMonthly
		} else if id := aws.ToString(a.InstanceId); id != "" {
			e.Detail = "instance " + id
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ListLightsailInstances lists Lightsail instances priced by their bundle.
func ListLightsailInstances(ctx context.Context, c *Clients) ([]model.ResourceInventoryEntry, error) {
	prices, err := bundlePrices(ctx, c.Lightsail)
	if err != nil {
		return nil, err
	}

	var entries []model.ResourceInventoryEntry
	in := &lightsail.GetInstancesInput{}
	for page := 0; page < maxPages; page++ {
		out, err := c.Lightsail.GetInstances(ctx, in)
		if err != nil {
			return nil, eris.Wrap(err, "awscloud: get lightsail instances")
		}
		for _, inst := range out.Instances {
			bundle := aws.ToString(inst.BundleId)
			e := model.ResourceInventoryEntry{
				ID:                   aws.ToString(inst.Name),
				Name:                 aws.ToString(inst.Name),
				Category:             model.CategoryLightsail,
				Kind:                 "lightsail_instance",
				Detail:               bundle,
				EstimatedMonthlyCost: prices[bundle],
			}
			if inst.State != nil {
				e.State = aws.ToString(inst.State.Name)
			}
			entries = append(entries, e)
		}
		if aws.ToString(out.NextPageToken) == "" {
			break
		}
		in.PageToken = out.NextPageToken
	}
	return entries, nil
}

func bundlePrices(ctx context.Context, api LightsailAPI) (map[string]decimal.Decimal, error) {
	prices := map[string]decimal.Decimal{}
	in := &lightsail.GetBundlesInput{}
	for page := 0; page < maxPages; page++ {
		out, err := api.GetBundles(ctx, in)
		if err != nil {
			return nil, eris.Wrap(err, "awscloud: get lightsail bundles")
		}
		for _, b := range out.Bundles {
			if b.BundleId == nil || b.Price == nil {
				continue
			}
			prices[*b.BundleId] = decimal.NewFromFloat32(*b.Price).Round(2)
		}
		if aws.ToString(out.NextPageToken) == "" {
			break
		}
		in.PageToken = out.NextPageToken
	}
	return prices, nil
}

// ListDatabases lists RDS instances.
func ListDatabases(ctx context.Context, c *Clients) ([]model.ResourceInventoryEntry, error) {
	var entries []model.ResourceInventoryEntry
	in := &rds.DescribeDBInstancesInput{}
	for page := 0; page < maxPages; page++ {
		out, err := c.RDS.DescribeDBInstances(ctx, in)
		if err != nil {
			return nil, eris.Wrap(err, "awscloud: describe db instances")
		}
		for _, db := range out.DBInstances {
			entries = append(entries, model.ResourceInventoryEntry{
				ID:                   aws.ToString(db.DBInstanceIdentifier),
				Category:             model.CategoryDatabase,
				Kind:                 "rds_instance",
				State:                aws.ToString(db.DBInstanceStatus),
				Detail:               strings.TrimSpace(aws.ToString(db.DBInstanceClass) + " " + aws.ToString(db.Engine)),
				EstimatedMonthlyCost: decimal.Zero,
			})
		}
		if aws.ToString(out.Marker) == "" {
			break
		}
		in.Marker = out.Marker
	}
	return entries, nil
}

// ListHostedZones lists Route 53 hosted zones at the flat per-zone price.
func ListHostedZones(ctx context.Context, c *Clients) ([]model.ResourceInventoryEntry, error) {
	var entries []model.ResourceInventoryEntry
	in := &route53.ListHostedZonesInput{}
	for page := 0; page < maxPages; page++ {
		out, err := c.Route53.ListHostedZones(ctx, in)
		if err != nil {
			return nil, eris.Wrap(err, "awscloud: list hosted zones")
		}
		for _, z := range out.HostedZones {
			id := aws.ToString(z.Id)
			if i := strings.LastIndex(id, "/"); i >= 0 {
				id = id[i+1:]
			}
			e := model.ResourceInventoryEntry{
				ID:                   id,
				Name:                 strings.TrimSuffix(aws.ToString(z.Name), "."),
				Category:             model.CategoryDNS,
				Kind:                 "hosted_zone",
				State:                model.StateAvailable,
				EstimatedMonthlyCost: HostedZoneMonthly,
			}
			if z.ResourceRecordSetCount != nil {
				e.Detail = fmt.Sprintf("%d records", *z.ResourceRecordSetCount)
			}
			entries = append(entries, e)
		}
		if aws.ToString(out.NextMarker) == "" {
			break
		}
		in.Marker = out.NextMarker
	}
	return entries, nil
}

// ListBuckets lists S3 buckets. Storage cost is not estimated.
func ListBuckets(ctx context.Context, c *Clients) ([]model.ResourceInventoryEntry, error) {
	out, err := c.S3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, eris.Wrap(err, "awscloud: list buckets")
	}
	entries := make([]model.ResourceInventoryEntry, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		e := model.ResourceInventoryEntry{
			ID:                   aws.ToString(b.Name),
			Name:                 aws.ToString(b.Name),
			Category:             model.CategoryStorage,
			Kind:                 "s3_bucket",
			State:                model.StateAvailable,
			EstimatedMonthlyCost: decimal.Zero,
		}
		if b.CreationDate != nil {
			e.Detail = "created " + b.CreationDate.Format(dateLayout)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
