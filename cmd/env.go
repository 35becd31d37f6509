package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/opslens/internal/adapter"
	"github.com/sells-group/opslens/internal/aggregate"
	"github.com/sells-group/opslens/internal/config"
	"github.com/sells-group/opslens/internal/engine"
	"github.com/sells-group/opslens/internal/history"
	"github.com/sells-group/opslens/internal/insight"
	"github.com/sells-group/opslens/internal/monitoring"
	"github.com/sells-group/opslens/internal/project"
	"github.com/sells-group/opslens/internal/qa"
	"github.com/sells-group/opslens/internal/resilience"
	anthropicpkg "github.com/sells-group/opslens/pkg/anthropic"
	"github.com/sells-group/opslens/pkg/awscloud"
	"github.com/sells-group/opslens/pkg/gemini"
	"github.com/sells-group/opslens/pkg/github"
	"github.com/sells-group/opslens/pkg/jira"
	"github.com/sells-group/opslens/pkg/openai"
	"github.com/sells-group/opslens/pkg/railway"
)

// appEnv holds the components a command needs.
type appEnv struct {
	Engine  *engine.Engine
	Metrics *monitoring.Metrics
	Alerter *monitoring.Alerter
}

// Close releases the history store.
func (e *appEnv) Close() {
	if e.Engine != nil {
		if err := e.Engine.Close(); err != nil {
			zap.L().Warn("close history store", zap.Error(err))
		}
	}
}

// initEnv validates the config for mode and builds the engine.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	retry, breakerCfg := resilience.FromConfig(cfg.Resilience)
	breakers := resilience.NewServiceBreakers(breakerCfg, func(service string, from, to resilience.CircuitState) {
		zap.L().Warn("circuit breaker state change",
			zap.String("platform", service),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		metrics.SetCircuitState(service, int(to))
	})

	aggOpts := aggregate.OptionsFromConfig(cfg.Aggregate)
	aggOpts.Breakers = breakers
	aggOpts.Metrics = metrics
	agg := aggregate.New(buildAdapters(cfg, retry), aggOpts)

	store, err := history.Open(ctx, cfg.Store, cfg.History.MaxTurns)
	if err != nil {
		return nil, eris.Wrap(err, "open history store")
	}

	synth, err := buildSynthesizer(ctx, cfg, metrics)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	eng := engine.New(
		project.NewFileProvider(cfg.Projects.Dir, cfg.Projects.ArchivedDir),
		agg,
		insight.New(insight.OptionsFromConfig(cfg.Insight)),
		qa.NewEngine(synth, store, metrics),
		store,
		engine.OptionsFromConfig(cfg.Cache, metrics),
	)

	return &appEnv{
		Engine:  eng,
		Metrics: metrics,
		Alerter: monitoring.NewAlerter(cfg.Monitoring, metrics),
	}, nil
}

// buildAdapters creates the adapter registry. Platforms without credentials
// get a nil client, which their adapter reports as unauthorized.
func buildAdapters(c *config.Config, retry resilience.RetryConfig) []adapter.Adapter {
	var gh github.Client
	if c.GitHub.Token != "" {
		gh = github.NewClient(c.GitHub.Token, github.WithBaseURL(c.GitHub.BaseURL), github.WithRateLimit(c.GitHub.RPS))
	} else {
		zap.L().Debug("OPSLENS_GITHUB_TOKEN not set, github reports unauthorized")
	}

	var jc jira.Client
	if c.Jira.URL != "" && c.Jira.Email != "" && c.Jira.Token != "" {
		jc = jira.NewClient(c.Jira.URL, c.Jira.Email, c.Jira.Token)
	} else {
		zap.L().Debug("jira url, email or token not set, jira reports unauthorized")
	}

	var rc railway.Client
	if c.Railway.Token != "" {
		rc = railway.NewClient(c.Railway.Token, railway.WithBaseURL(c.Railway.BaseURL))
	}

	var oc openai.Client
	if c.OpenAI.Key != "" {
		oc = openai.NewClient(c.OpenAI.Key, openai.WithBaseURL(c.OpenAI.BaseURL))
	}

	creds := awscloud.Credentials{
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
	}
	awsFactory := func(ctx context.Context, region string) (*awscloud.Clients, error) {
		return awscloud.New(ctx, region, creds)
	}

	return []adapter.Adapter{
		adapter.NewGitHub(gh, retry),
		adapter.NewJira(jc, retry),
		adapter.NewAWS(awsFactory, c.AWS.Region, c.AWS.CostDays, retry),
		adapter.NewRailway(rc, retry),
		adapter.NewOpenAI(oc, retry),
	}
}

// buildSynthesizer picks the answer strategy for qa.backend. A nil result
// means the template strategy.
func buildSynthesizer(ctx context.Context, c *config.Config, metrics *monitoring.Metrics) (qa.Synthesizer, error) {
	timeout := time.Duration(c.QA.TimeoutSecs) * time.Second

	var gen qa.Generator
	switch c.QA.Backend {
	case "", "none":
		return nil, nil
	case "anthropic":
		gen = qa.NewAnthropicGenerator(anthropicpkg.NewClient(c.Anthropic.Key), c.Anthropic.Model, c.Anthropic.MaxTokens)
	case "gemini":
		client, err := gemini.NewClient(ctx, c.Gemini.Key, c.Gemini.Model)
		if err != nil {
			return nil, eris.Wrap(err, "init gemini")
		}
		gen = qa.NewGeminiGenerator(client, c.Gemini.MaxTokens)
	default:
		return nil, eris.Errorf("unknown qa backend: %s", c.QA.Backend)
	}

	zap.L().Info("generative answers enabled", zap.String("backend", gen.Name()))
	return qa.NewGenerativeSynthesizer(gen, qa.NewTemplateSynthesizer(), timeout, c.QA.ContextTurns, metrics), nil
}
