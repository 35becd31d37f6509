// Package adapter turns one upstream platform into a ServiceResult for a
// project. Adapters never return a partially filled payload: any failure
// yields a failed result carrying the classified error kind.
package adapter

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/resilience"
)

// window is the look-back period for activity counts.
const window = 30 * 24 * time.Hour

// Adapter fetches one platform's metrics for a project.
type Adapter interface {
	Platform() model.Platform
	Enabled(p model.ProjectConfig) bool
	Fetch(ctx context.Context, p model.ProjectConfig) model.ServiceResult
}

// failed classifies err and logs it against the project.
func failed(platform model.Platform, projectID string, err error) model.ServiceResult {
	kind := resilience.Classify(err)
	zap.L().Warn("adapter: fetch failed",
		zap.String("platform", string(platform)),
		zap.String("project_id", projectID),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return model.Failed(platform, kind, err.Error())
}

// notConfigured is the result for a platform whose credentials are absent.
func notConfigured(platform model.Platform) model.ServiceResult {
	return model.Failed(platform, model.KindUnauthorized, string(platform)+" credentials are not configured")
}

func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
