package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/resilience"
	"github.com/sells-group/opslens/pkg/awscloud"
)

// ClientFactory builds AWS service clients for a region.
type ClientFactory func(ctx context.Context, region string) (*awscloud.Clients, error)

// AWS reports daily spend and a categorized resource inventory.
type AWS struct {
	factory       ClientFactory
	defaultRegion string
	costDays      int
	retry         resilience.RetryConfig
	now           func() time.Time

	mu      sync.Mutex
	clients map[string]*awscloud.Clients
}

// NewAWS creates the AWS adapter. costDays defaults to 30.
func NewAWS(factory ClientFactory, defaultRegion string, costDays int, retry resilience.RetryConfig) *AWS {
	if costDays <= 0 {
		costDays = 30
	}
	return &AWS{
		factory:       factory,
		defaultRegion: defaultRegion,
		costDays:      costDays,
		retry:         retry,
		now:           time.Now,
		clients:       make(map[string]*awscloud.Clients),
	}
}

func (a *AWS) Platform() model.Platform { return model.PlatformAWS }

func (a *AWS) Enabled(p model.ProjectConfig) bool { return p.Integrations.AWS.Enabled }

// Fetch fails as a whole when spend cannot be read. Inventory categories
// fail individually and are reported inside the payload.
func (a *AWS) Fetch(ctx context.Context, p model.ProjectConfig) model.ServiceResult {
	region := p.Integrations.AWS.Region
	if region == "" {
		region = a.defaultRegion
	}
	c, err := a.clientsFor(ctx, region)
	if err != nil {
		return failed(model.PlatformAWS, p.ID, err)
	}

	today := a.now().UTC().Truncate(24 * time.Hour)
	costs, err := resilience.DoVal(ctx, a.retry.WithLogger("aws", "get_cost_and_usage"), func(ctx context.Context) ([]model.CostRecord, error) {
		return awscloud.DailyCosts(ctx, c.CostExplorer, today.AddDate(0, 0, -a.costDays), today)
	})
	if err != nil {
		return failed(model.PlatformAWS, p.ID, eris.Wrap(err, "aws: costs"))
	}

	report := model.AWSReport{
		Region:    region,
		Costs:     costs,
		Resources: make(map[model.ResourceCategory]model.CategoryResult, len(model.ResourceCategories)),
	}
	for _, cat := range model.ResourceCategories {
		report.Resources[cat] = a.listCategory(ctx, c, cat)
	}
	return model.OK(model.PlatformAWS, report)
}

func (a *AWS) listCategory(ctx context.Context, c *awscloud.Clients, cat model.ResourceCategory) model.CategoryResult {
	list, ok := awscloud.Listers[cat]
	if !ok {
		return model.CategoryResult{Category: cat, Status: model.StatusOK}
	}
	entries, err := resilience.DoVal(ctx, a.retry.WithLogger("aws", "list_"+string(cat)), func(ctx context.Context) ([]model.ResourceInventoryEntry, error) {
		return list(ctx, c)
	})
	if err != nil {
		return model.CategoryResult{
			Category: cat,
			Status:   model.StatusFailed,
			Failure:  &model.Failure{Kind: resilience.Classify(err), Message: err.Error()},
		}
	}
	return model.CategoryResult{Category: cat, Status: model.StatusOK, Entries: entries}
}

func (a *AWS) clientsFor(ctx context.Context, region string) (*awscloud.Clients, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[region]; ok {
		return c, nil
	}
	c, err := a.factory(ctx, region)
	if err != nil {
		return nil, eris.Wrapf(err, "aws: clients for %s", region)
	}
	a.clients[region] = c
	return c, nil
}
