package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/opslens/internal/config"
	"github.com/sells-group/opslens/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertAdapterFailures   AlertType = "adapter_failures"
	AlertCredentialFailure AlertType = "credential_failure"
	AlertCostSpike         AlertType = "cost_spike"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	ProjectID string         `json:"project_id"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates an enriched snapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	metrics *Metrics
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig, metrics *Metrics) *Alerter {
	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		metrics: metrics,
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(es *model.EnrichedSnapshot) []Alert {
	if es == nil || es.Snapshot == nil {
		return nil
	}
	var alerts []Alert
	now := time.Now().UTC()
	projectID := es.Snapshot.ProjectID

	failedPlatforms := es.Snapshot.FailedPlatforms()
	if a.cfg.FailureAlertMin > 0 && len(failedPlatforms) >= a.cfg.FailureAlertMin {
		names := make([]string, len(failedPlatforms))
		for i, p := range failedPlatforms {
			names[i] = string(p)
		}
		alerts = append(alerts, Alert{
			Type:      AlertAdapterFailures,
			ProjectID: projectID,
			Severity:  "high",
			Message: fmt.Sprintf("%d of %d platforms failed for project %s: %s",
				len(failedPlatforms), len(es.Snapshot.Results), projectID, strings.Join(names, ", ")),
			Details: map[string]any{
				"failed":    names,
				"threshold": a.cfg.FailureAlertMin,
			},
			Timestamp: now,
		})
	}

	var denied []string
	for _, p := range failedPlatforms {
		if r, ok := es.Snapshot.Result(p); ok && r.Failure != nil && r.Failure.Kind == model.KindUnauthorized {
			denied = append(denied, string(p))
		}
	}
	if len(denied) > 0 {
		alerts = append(alerts, Alert{
			Type:      AlertCredentialFailure,
			ProjectID: projectID,
			Severity:  "medium",
			Message:   fmt.Sprintf("Credentials rejected for project %s: %s", projectID, strings.Join(denied, ", ")),
			Details:   map[string]any{"platforms": denied},
			Timestamp: now,
		})
	}

	ins := es.Insights
	if a.cfg.CostSpikePct > 0 && ins != nil && ins.Status == model.StatusOK &&
		ins.Trend.Direction == model.TrendIncreasing {
		pct, _ := ins.Trend.ChangePct.Float64()
		if pct >= a.cfg.CostSpikePct {
			alerts = append(alerts, Alert{
				Type:      AlertCostSpike,
				ProjectID: projectID,
				Severity:  "high",
				Message: fmt.Sprintf("AWS spend for project %s rose %.1f%% week over week ($%s vs $%s)",
					projectID, pct, ins.Trend.RecentWeek.StringFixed(2), ins.Trend.PriorWeek.StringFixed(2)),
				Details: map[string]any{
					"change_pct":  pct,
					"threshold":   a.cfg.CostSpikePct,
					"recent_week": ins.Trend.RecentWeek.StringFixed(2),
					"prior_week":  ins.Trend.PriorWeek.StringFixed(2),
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.String("project_id", alert.ProjectID),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		a.metrics.ObserveAlert(alert.Type)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
