package adapter

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/resilience"
	"github.com/sells-group/opslens/pkg/openai"
)

// OpenAI reports month-to-date token usage and spend.
type OpenAI struct {
	client openai.Client
	retry  resilience.RetryConfig
	now    func() time.Time
}

// NewOpenAI creates the OpenAI adapter. A nil client reports missing
// credentials.
func NewOpenAI(client openai.Client, retry resilience.RetryConfig) *OpenAI {
	return &OpenAI{client: client, retry: retry, now: time.Now}
}

func (a *OpenAI) Platform() model.Platform { return model.PlatformOpenAI }

func (a *OpenAI) Enabled(p model.ProjectConfig) bool { return p.Integrations.OpenAI.Enabled }

func (a *OpenAI) Fetch(ctx context.Context, p model.ProjectConfig) model.ServiceResult {
	if a.client == nil {
		return notConfigured(model.PlatformOpenAI)
	}
	now := a.now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	usage, err := resilience.DoVal(ctx, a.retry.WithLogger("openai", "completion_usage"), func(ctx context.Context) (*openai.Usage, error) {
		return a.client.CompletionUsage(ctx, since)
	})
	if err != nil {
		return failed(model.PlatformOpenAI, p.ID, eris.Wrap(err, "openai: usage"))
	}
	cost, err := resilience.DoVal(ctx, a.retry.WithLogger("openai", "costs"), func(ctx context.Context) (decimal.Decimal, error) {
		return a.client.Costs(ctx, since)
	})
	if err != nil {
		return failed(model.PlatformOpenAI, p.ID, eris.Wrap(err, "openai: costs"))
	}

	return model.OK(model.PlatformOpenAI, model.OpenAIUsage{
		PeriodStart:  since,
		Requests:     usage.Requests,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Cost:         cost,
		Models:       usage.Models,
	})
}
