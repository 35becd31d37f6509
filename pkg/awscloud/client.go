// Package awscloud wraps the AWS SDK calls used for cost and resource
// inventory behind narrow per-service interfaces.
package awscloud

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/lightsail"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
)

// CostExplorerAPI is the subset of Cost Explorer used for spend.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, in *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// EC2API lists instances and Elastic IPs.
type EC2API interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeAddresses(ctx context.Context, in *ec2.DescribeAddressesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error)
}

// LightsailAPI lists Lightsail instances and bundle prices.
type LightsailAPI interface {
	GetInstances(ctx context.Context, in *lightsail.GetInstancesInput, optFns ...func(*lightsail.Options)) (*lightsail.GetInstancesOutput, error)
	GetBundles(ctx context.Context, in *lightsail.GetBundlesInput, optFns ...func(*lightsail.Options)) (*lightsail.GetBundlesOutput, error)
}

// RDSAPI lists database instances.
type RDSAPI interface {
	DescribeDBInstances(ctx context.Context, in *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

// Route53API lists hosted zones.
type Route53API interface {
	ListHostedZones(ctx context.Context, in *route53.ListHostedZonesInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesOutput, error)
}

// S3API lists buckets.
type S3API interface {
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

// Clients bundles the service clients for one region.
type Clients struct {
	Region       string
	CostExplorer CostExplorerAPI
	EC2          EC2API
	Lightsail    LightsailAPI
	RDS          RDSAPI
	Route53      Route53API
	S3           S3API
}

// Credentials are optional static keys. Empty keys use the default chain.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// New loads the AWS configuration for region and builds every service client.
func New(ctx context.Context, region string, creds Credentials) (*Clients, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "awscloud: load config")
	}
	return FromConfig(cfg), nil
}

// FromConfig builds service clients from an already loaded configuration.
// Cost Explorer is a global service served from us-east-1.
func FromConfig(cfg aws.Config) *Clients {
	ceCfg := cfg.Copy()
	ceCfg.Region = "us-east-1"
	return &Clients{
		Region:       cfg.Region,
		CostExplorer: costexplorer.NewFromConfig(ceCfg),
		EC2:          ec2.NewFromConfig(cfg),
		Lightsail:    lightsail.NewFromConfig(cfg),
		RDS:          rds.NewFromConfig(cfg),
		Route53:      route53.NewFromConfig(cfg),
		S3:           s3.NewFromConfig(cfg),
	}
}
