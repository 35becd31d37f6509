// Package engine is the single entry point used by the CLI and HTTP API. It
// resolves projects, runs aggregation and analysis passes, answers questions
// and manages conversation history.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/opslens/internal/config"
	"github.com/sells-group/opslens/internal/history"
	"github.com/sells-group/opslens/internal/insight"
	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/monitoring"
	"github.com/sells-group/opslens/internal/project"
	"github.com/sells-group/opslens/internal/qa"
)

// passGrace pads the collector's pass timeout for project lookup and analysis.
const passGrace = 5 * time.Second

// Collector runs one aggregation pass for a project.
type Collector interface {
	Collect(ctx context.Context, p model.ProjectConfig) (*model.MetricSnapshot, error)

	// PassTimeout bounds how long one pass for p can take.
	PassTimeout(p model.ProjectConfig) time.Duration
}

// Options configures an Engine.
type Options struct {
	// CacheTTL is how long an enriched snapshot is reused. Zero disables
	// caching.
	CacheTTL time.Duration

	// CacheSize bounds the number of cached projects. Default: 128.
	CacheSize int

	Metrics *monitoring.Metrics
}

// OptionsFromConfig builds Options from the cache config section.
func OptionsFromConfig(cfg config.CacheConfig, metrics *monitoring.Metrics) Options {
	return Options{
		CacheTTL:  time.Duration(cfg.SnapshotTTLSecs) * time.Second,
		CacheSize: cfg.SnapshotSize,
		Metrics:   metrics,
	}
}

// Engine ties the components together. It is safe for concurrent use.
type Engine struct {
	projects  project.Provider
	collector Collector
	analyzer  *insight.Analyzer
	qa        *qa.Engine
	history   history.Store
	metrics   *monitoring.Metrics

	cache  *expirable.LRU[string, *model.EnrichedSnapshot]
	passes singleflight.Group
}

// New creates an Engine.
func New(projects project.Provider, collector Collector, analyzer *insight.Analyzer, answers *qa.Engine, store history.Store, opts Options) *Engine {
	e := &Engine{
		projects:  projects,
		collector: collector,
		analyzer:  analyzer,
		qa:        answers,
		history:   store,
		metrics:   opts.Metrics,
	}
	if opts.CacheTTL > 0 {
		size := opts.CacheSize
		if size <= 0 {
			size = 128
		}
		e.cache = expirable.NewLRU[string, *model.EnrichedSnapshot](size, nil, opts.CacheTTL)
	}
	return e
}

// ListProjects returns the configured projects.
func (e *Engine) ListProjects(ctx context.Context, includeArchived bool) ([]model.ProjectConfig, error) {
	return e.projects.List(ctx, includeArchived)
}

// Project returns one project's configuration.
func (e *Engine) Project(ctx context.Context, id string) (model.ProjectConfig, error) {
	return e.projects.Get(ctx, id)
}

// GetSnapshot returns the enriched snapshot for a project, running a fresh
// pass unless a cached one is still valid. Concurrent callers for the same
// project share one pass. The pass is detached from the caller that started
// it, so a caller giving up only ends its own wait. The returned snapshot
// must not be modified.
func (e *Engine) GetSnapshot(ctx context.Context, projectID string) (*model.EnrichedSnapshot, error) {
	if e.cache != nil {
		if es, ok := e.cache.Get(projectID); ok {
			e.metrics.ObserveCache(true)
			return es, nil
		}
		e.metrics.ObserveCache(false)
	}

	pctx := context.WithoutCancel(ctx)
	ch := e.passes.DoChan(projectID, func() (any, error) {
		return e.pass(pctx, projectID)
	})

	select {
	case <-ctx.Done():
		return nil, eris.Wrapf(ctx.Err(), "engine: snapshot %s", projectID)
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			zap.L().Debug("engine: shared snapshot pass", zap.String("project_id", projectID))
		}
		return res.Val.(*model.EnrichedSnapshot), nil
	}
}

// Refresh drops any cached snapshot for the project and runs a new pass.
func (e *Engine) Refresh(ctx context.Context, projectID string) (*model.EnrichedSnapshot, error) {
	if e.cache != nil {
		e.cache.Remove(projectID)
	}
	return e.GetSnapshot(ctx, projectID)
}

// pass runs under a context that no caller can cancel, bounded by the
// collector's longest adapter deadline. Only completed passes are cached.
func (e *Engine) pass(ctx context.Context, projectID string) (*model.EnrichedSnapshot, error) {
	p, err := e.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.collector.PassTimeout(p)+passGrace)
	defer cancel()

	snap, err := e.collector.Collect(ctx, p)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: collect %s", projectID)
	}
	es := e.analyzer.Analyze(p, snap)
	if e.cache != nil {
		e.cache.Add(projectID, es)
	}
	return es, nil
}

// Ask answers an operator's question about a project. Malformed requests
// are rejected before any upstream call is made.
func (e *Engine) Ask(ctx context.Context, operatorID, projectID, question string) (*model.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, qa.ErrEmptyQuestion
	}
	if strings.TrimSpace(operatorID) == "" {
		return nil, history.ErrMissingOperator
	}
	es, err := e.GetSnapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return e.qa.Ask(ctx, operatorID, es, question)
}

// GetHistory returns up to limit turns for an operator, most recent first.
// A limit of zero or less returns every retained turn.
func (e *Engine) GetHistory(ctx context.Context, operatorID string, limit int) ([]model.ConversationTurn, error) {
	return e.history.History(ctx, operatorID, limit)
}

// ClearHistory deletes every turn for an operator.
func (e *Engine) ClearHistory(ctx context.Context, operatorID string) error {
	return e.history.Clear(ctx, operatorID)
}

// Close releases the history store.
func (e *Engine) Close() error {
	return e.history.Close()
}
