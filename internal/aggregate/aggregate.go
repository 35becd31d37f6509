// Package aggregate fans a project out to its enabled adapters and assembles
// the results into one MetricSnapshot.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/opslens/internal/adapter"
	"github.com/sells-group/opslens/internal/config"
	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/monitoring"
	"github.com/sells-group/opslens/internal/resilience"
)

// DefaultTimeout bounds one adapter call when nothing else is configured.
const DefaultTimeout = 30 * time.Second

// Options configures an Aggregator.
type Options struct {
	// Timeout is the per-adapter deadline. Default: 30s.
	Timeout time.Duration

	// PlatformTimeouts override Timeout per platform. A project's own
	// overrides take precedence over these.
	PlatformTimeouts map[model.Platform]time.Duration

	// Breakers, when set, guards each platform with a circuit breaker.
	Breakers *resilience.ServiceBreakers

	Metrics *monitoring.Metrics
}

// OptionsFromConfig builds Options from the aggregate config section.
func OptionsFromConfig(cfg config.AggregateConfig) Options {
	opts := Options{
		Timeout:          time.Duration(cfg.AdapterTimeoutSecs) * time.Second,
		PlatformTimeouts: make(map[model.Platform]time.Duration, len(cfg.PlatformTimeouts)),
	}
	for name, secs := range cfg.PlatformTimeouts {
		if secs > 0 {
			opts.PlatformTimeouts[model.Platform(name)] = time.Duration(secs) * time.Second
		}
	}
	return opts
}

// Aggregator runs adapters concurrently with fault isolation: a failing,
// slow or panicking adapter only affects its own result.
type Aggregator struct {
	adapters []adapter.Adapter
	opts     Options
	now      func() time.Time
}

// New creates an Aggregator over a fixed adapter registry.
func New(adapters []adapter.Adapter, opts Options) *Aggregator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Aggregator{adapters: adapters, opts: opts, now: time.Now}
}

// Collect runs one aggregation pass. Every upstream failure is carried inside
// the snapshot; the only errors are an invalid project config and the
// caller's context ending before the pass completes.
func (a *Aggregator) Collect(ctx context.Context, p model.ProjectConfig) (*model.MetricSnapshot, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	start := a.now()
	var selected []adapter.Adapter
	for _, ad := range a.adapters {
		if ad.Enabled(p) {
			selected = append(selected, ad)
		}
	}

	results := make([]model.ServiceResult, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i, ad := range selected {
		g.Go(func() error {
			results[i] = a.run(gctx, ad, p)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrapf(err, "aggregate: pass for %s abandoned", p.ID)
	}

	snap := &model.MetricSnapshot{
		ProjectID:  p.ID,
		CapturedAt: start.UTC(),
		Duration:   time.Since(start),
		Results:    make(map[model.Platform]model.ServiceResult, len(results)),
	}
	for _, r := range results {
		snap.Results[r.Platform] = r
	}
	a.opts.Metrics.ObservePass(snap.Duration)

	zap.L().Info("aggregate: pass complete",
		zap.String("project_id", p.ID),
		zap.Int("adapters", len(selected)),
		zap.Int("failed", len(snap.FailedPlatforms())),
		zap.Duration("duration", snap.Duration),
	)
	return snap, nil
}

// PassTimeout is the longest deadline any enabled adapter of p can run under.
func (a *Aggregator) PassTimeout(p model.ProjectConfig) time.Duration {
	var longest time.Duration
	for _, ad := range a.adapters {
		if !ad.Enabled(p) {
			continue
		}
		if d := a.TimeoutFor(ad.Platform(), p); d > longest {
			longest = d
		}
	}
	return longest
}

// TimeoutFor resolves the deadline for a platform in a project.
func (a *Aggregator) TimeoutFor(platform model.Platform, p model.ProjectConfig) time.Duration {
	if secs := p.Integrations.TimeoutSecs[platform]; secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if d, ok := a.opts.PlatformTimeouts[platform]; ok && d > 0 {
		return d
	}
	return a.opts.Timeout
}

func (a *Aggregator) run(ctx context.Context, ad adapter.Adapter, p model.ProjectConfig) model.ServiceResult {
	platform := ad.Platform()
	start := time.Now()
	timeout := a.TimeoutFor(platform, p)

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var res model.ServiceResult
	if a.opts.Breakers == nil {
		res = a.fetch(actx, ad, p, timeout)
	} else {
		err := a.opts.Breakers.Get(string(platform)).Execute(actx, func(ctx context.Context) error {
			res = a.fetch(ctx, ad, p, timeout)
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return tripError(res)
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			res = model.Failed(platform, model.KindRateLimited, "circuit open: "+string(platform)+" is failing repeatedly")
		}
	}

	res.Platform = platform
	res.Duration = time.Since(start)
	a.opts.Metrics.ObserveResult(res)

	log := zap.L().With(zap.String("platform", string(platform)), zap.String("project_id", p.ID))
	if res.IsOK() {
		log.Debug("aggregate: adapter ok", zap.Duration("duration", res.Duration))
	} else {
		log.Warn("aggregate: adapter failed",
			zap.String("kind", string(res.Failure.Kind)),
			zap.String("message", res.Failure.Message),
			zap.Duration("duration", res.Duration),
		)
	}
	return res
}

// fetch runs the adapter in its own goroutine so a deadline is honored even
// when the adapter ignores its context. A panic becomes an internal failure.
func (a *Aggregator) fetch(ctx context.Context, ad adapter.Adapter, p model.ProjectConfig, timeout time.Duration) model.ServiceResult {
	platform := ad.Platform()
	done := make(chan model.ServiceResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("aggregate: adapter panicked",
					zap.String("platform", string(platform)),
					zap.Any("panic", r),
				)
				done <- model.Failed(platform, model.KindInternal, fmt.Sprintf("adapter panicked: %v", r))
			}
		}()
		done <- ad.Fetch(ctx, p)
	}()

	select {
	case res := <-done:
		if !res.IsOK() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return timedOut(platform, timeout)
		}
		return res
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return timedOut(platform, timeout)
		}
		return model.Failed(platform, model.KindInternal, "request cancelled")
	}
}

func timedOut(platform model.Platform, timeout time.Duration) model.ServiceResult {
	return model.Failed(platform, model.KindTimeout, fmt.Sprintf("%s did not respond within %s", platform, timeout))
}

// tripError reports a failed result to the breaker. Only outage-like kinds
// count toward opening the circuit.
func tripError(res model.ServiceResult) error {
	if res.IsOK() || res.Failure == nil {
		return nil
	}
	err := errors.New(res.Failure.Message)
	switch res.Failure.Kind {
	case model.KindTimeout, model.KindRateLimited, model.KindInternal:
		return resilience.NewTransientError(err, 0)
	default:
		return err
	}
}
