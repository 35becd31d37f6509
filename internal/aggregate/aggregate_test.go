package aggregate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/opslens/internal/adapter"
	"github.com/sells-group/opslens/internal/config"
	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/monitoring"
	"github.com/sells-group/opslens/internal/resilience"
)

// stubAdapter returns a canned result after an optional delay.
type stubAdapter struct {
	platform   model.Platform
	delay      time.Duration
	ignoreCtx  bool
	result     func(p model.Platform) model.ServiceResult
	panicValue any
	calls      atomic.Int32
}

func (s *stubAdapter) Platform() model.Platform { return s.platform }

func (s *stubAdapter) Enabled(p model.ProjectConfig) bool { return p.Enabled(s.platform) }

func (s *stubAdapter) Fetch(ctx context.Context, _ model.ProjectConfig) model.ServiceResult {
	s.calls.Add(1)
	if s.panicValue != nil {
		panic(s.panicValue)
	}
	if s.delay > 0 {
		if s.ignoreCtx {
			time.Sleep(s.delay)
		} else {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return model.Failed(s.platform, resilience.Classify(ctx.Err()), ctx.Err().Error())
			}
		}
	}
	if s.result != nil {
		return s.result(s.platform)
	}
	return model.OK(s.platform, "payload")
}

func okAdapter(p model.Platform) *stubAdapter { return &stubAdapter{platform: p} }

func allEnabled() model.ProjectConfig {
	return model.ProjectConfig{ID: "acme", Integrations: model.Integrations{
		GitHub:  model.GitHubIntegration{Enabled: true, Org: "acme", Repos: []string{"api"}},
		Jira:    model.JiraIntegration{Enabled: true, ProjectKey: "OPS"},
		AWS:     model.AWSIntegration{Enabled: true},
		Railway: model.RailwayIntegration{Enabled: true, ProjectID: "rw"},
		OpenAI:  model.OpenAIIntegration{Enabled: true},
	}}
}

func TestCollect_FaultIsolation(t *testing.T) {
	unauthorized := &stubAdapter{platform: model.PlatformGitHub, result: func(p model.Platform) model.ServiceResult {
		return model.Failed(p, model.KindUnauthorized, "bad credentials")
	}}
	agg := New([]adapter.Adapter{
		unauthorized,
		okAdapter(model.PlatformJira),
		okAdapter(model.PlatformAWS),
		okAdapter(model.PlatformRailway),
		okAdapter(model.PlatformOpenAI),
	}, Options{Timeout: time.Second, Metrics: monitoring.NewMetrics()})

	snap, err := agg.Collect(context.Background(), allEnabled())
	require.NoError(t, err)
	require.Len(t, snap.Results, 5)

	gh, ok := snap.Result(model.PlatformGitHub)
	require.True(t, ok)
	assert.Equal(t, model.KindUnauthorized, gh.Failure.Kind)
	assert.Nil(t, gh.Payload)

	for _, p := range []model.Platform{model.PlatformJira, model.PlatformAWS, model.PlatformRailway, model.PlatformOpenAI} {
		r, _ := snap.Result(p)
		assert.True(t, r.IsOK(), p)
	}
	assert.Equal(t, []model.Platform{model.PlatformGitHub}, snap.FailedPlatforms())
}

func TestCollect_DisabledPlatformsAbsent(t *testing.T) {
	gh := okAdapter(model.PlatformGitHub)
	agg := New([]adapter.Adapter{gh, okAdapter(model.PlatformAWS)}, Options{})

	p := model.ProjectConfig{ID: "bare"}
	snap, err := agg.Collect(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, snap.Results)
	assert.Equal(t, "bare", snap.ProjectID)
	assert.Equal(t, int32(0), gh.calls.Load())
}

func TestCollect_InvalidConfigAborts(t *testing.T) {
	gh := okAdapter(model.PlatformGitHub)
	agg := New([]adapter.Adapter{gh}, Options{})

	p := model.ProjectConfig{ID: "x", Integrations: model.Integrations{GitHub: model.GitHubIntegration{Enabled: true}}}
	_, err := agg.Collect(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidConfig))
	assert.Equal(t, resilience.Classify(err), model.KindInvalidConfig)
	assert.Equal(t, int32(0), gh.calls.Load())
}

func TestCollect_SlowAdapterTimesOut(t *testing.T) {
	slow := &stubAdapter{platform: model.PlatformJira, delay: 5 * time.Second, ignoreCtx: true}
	fast := &stubAdapter{platform: model.PlatformGitHub, delay: 100 * time.Millisecond}
	agg := New([]adapter.Adapter{slow, fast}, Options{
		Timeout:          time.Second,
		PlatformTimeouts: map[model.Platform]time.Duration{model.PlatformJira: 300 * time.Millisecond},
	})

	p := allEnabled()
	start := time.Now()
	snap, err := agg.Collect(context.Background(), p)
	elapsed := time.Since(start)
	require.NoError(t, err)

	jr, _ := snap.Result(model.PlatformJira)
	assert.Equal(t, model.KindTimeout, jr.Failure.Kind)
	gr, _ := snap.Result(model.PlatformGitHub)
	assert.True(t, gr.IsOK())

	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second, "pass is bounded by the slowest deadline, not the slowest adapter")
}

func TestCollect_PanicBecomesInternal(t *testing.T) {
	agg := New([]adapter.Adapter{
		&stubAdapter{platform: model.PlatformAWS, panicValue: "nil map"},
		okAdapter(model.PlatformGitHub),
	}, Options{Timeout: time.Second})

	snap, err := agg.Collect(context.Background(), allEnabled())
	require.NoError(t, err)
	r, _ := snap.Result(model.PlatformAWS)
	assert.Equal(t, model.KindInternal, r.Failure.Kind)
	assert.Contains(t, r.Failure.Message, "panicked")
	gh, _ := snap.Result(model.PlatformGitHub)
	assert.True(t, gh.IsOK())
}

func TestCollect_CallerCancellation(t *testing.T) {
	agg := New([]adapter.Adapter{
		&stubAdapter{platform: model.PlatformGitHub, delay: 5 * time.Second},
		&stubAdapter{platform: model.PlatformJira, delay: 5 * time.Second},
	}, Options{Timeout: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	snap, err := agg.Collect(ctx, allEnabled())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, snap)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPassTimeout(t *testing.T) {
	agg := New([]adapter.Adapter{
		okAdapter(model.PlatformGitHub),
		okAdapter(model.PlatformAWS),
	}, Options{
		Timeout:          10 * time.Second,
		PlatformTimeouts: map[model.Platform]time.Duration{model.PlatformGitHub: 20 * time.Second},
	})

	p := allEnabled()
	assert.Equal(t, 20*time.Second, agg.PassTimeout(p))

	p.Integrations.TimeoutSecs = map[model.Platform]int{model.PlatformAWS: 45}
	assert.Equal(t, 45*time.Second, agg.PassTimeout(p))

	assert.Zero(t, agg.PassTimeout(model.ProjectConfig{ID: "bare"}))
}

func TestCollect_CircuitOpens(t *testing.T) {
	flaky := &stubAdapter{platform: model.PlatformRailway, result: func(p model.Platform) model.ServiceResult {
		return model.Failed(p, model.KindInternal, "502 from upstream")
	}}
	var transitions atomic.Int32
	breakers := resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	}, func(string, resilience.CircuitState, resilience.CircuitState) { transitions.Add(1) })

	agg := New([]adapter.Adapter{flaky}, Options{Timeout: time.Second, Breakers: breakers})
	p := allEnabled()

	for i := 0; i < 2; i++ {
		snap, err := agg.Collect(context.Background(), p)
		require.NoError(t, err)
		r, _ := snap.Result(model.PlatformRailway)
		assert.Equal(t, model.KindInternal, r.Failure.Kind)
	}

	snap, err := agg.Collect(context.Background(), p)
	require.NoError(t, err)
	r, _ := snap.Result(model.PlatformRailway)
	assert.Equal(t, model.KindRateLimited, r.Failure.Kind)
	assert.Contains(t, r.Failure.Message, "circuit open")
	assert.Equal(t, int32(2), flaky.calls.Load())
	assert.Equal(t, int32(1), transitions.Load())
}

func TestCollect_UnauthorizedDoesNotTrip(t *testing.T) {
	denied := &stubAdapter{platform: model.PlatformGitHub, result: func(p model.Platform) model.ServiceResult {
		return model.Failed(p, model.KindUnauthorized, "401")
	}}
	breakers := resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{FailureThreshold: 1}, nil)
	agg := New([]adapter.Adapter{denied}, Options{Breakers: breakers})

	for i := 0; i < 3; i++ {
		_, err := agg.Collect(context.Background(), allEnabled())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), denied.calls.Load())
	assert.Equal(t, resilience.CircuitClosed, breakers.Get("github").State())
}

func TestTimeoutFor(t *testing.T) {
	agg := New(nil, OptionsFromConfig(config.AggregateConfig{
		AdapterTimeoutSecs: 20,
		PlatformTimeouts:   map[string]int{"aws": 45, "jira": 0},
	}))

	p := model.ProjectConfig{Integrations: model.Integrations{TimeoutSecs: map[model.Platform]int{model.PlatformGitHub: 5}}}
	assert.Equal(t, 5*time.Second, agg.TimeoutFor(model.PlatformGitHub, p))
	assert.Equal(t, 45*time.Second, agg.TimeoutFor(model.PlatformAWS, p))
	assert.Equal(t, 20*time.Second, agg.TimeoutFor(model.PlatformJira, p))

	assert.Equal(t, DefaultTimeout, New(nil, Options{}).TimeoutFor(model.PlatformJira, p))
}
