package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/opslens/internal/config"
	"github.com/sells-group/opslens/internal/model"
)

// SnapshotSource lists active projects and produces their snapshots.
type SnapshotSource interface {
	ListProjects(ctx context.Context, includeArchived bool) ([]model.ProjectConfig, error)
	GetSnapshot(ctx context.Context, projectID string) (*model.EnrichedSnapshot, error)
}

// Checker runs periodic alert checks in the background.
type Checker struct {
	source  SnapshotSource
	alerter *Alerter
	cfg     config.MonitoringConfig
}

// NewChecker creates a background alert checker.
func NewChecker(source SnapshotSource, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		source:  source,
		alerter: alerter,
		cfg:     cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx, log)
		}
	}
}

// Check evaluates every active project once and returns the alerts sent.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) int {
	projects, err := c.source.ListProjects(ctx, false)
	if err != nil {
		log.Error("monitoring: failed to list projects", zap.Error(err))
		return 0
	}

	triggered, sent := 0, 0
	for _, p := range projects {
		es, err := c.source.GetSnapshot(ctx, p.ID)
		if err != nil {
			log.Warn("monitoring: snapshot failed", zap.String("project_id", p.ID), zap.Error(err))
			continue
		}
		alerts := c.alerter.Evaluate(es)
		triggered += len(alerts)
		sent += c.alerter.SendAlerts(ctx, alerts)
	}

	log.Info("monitoring: alert check complete",
		zap.Int("projects", len(projects)),
		zap.Int("alerts_triggered", triggered),
		zap.Int("alerts_sent", sent),
	)
	return sent
}
