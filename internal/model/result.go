package model

import (
	"time"
)

// Platform identifies an upstream data source.
type Platform string

const (
	PlatformGitHub  Platform = "github"
	PlatformJira    Platform = "jira"
	PlatformAWS     Platform = "aws"
	PlatformRailway Platform = "railway"
	PlatformOpenAI  Platform = "openai"
)

// AllPlatforms lists every supported platform in canonical order.
var AllPlatforms = []Platform{
	PlatformGitHub,
	PlatformJira,
	PlatformAWS,
	PlatformRailway,
	PlatformOpenAI,
}

// ErrorKind is the closed set of failure categories an adapter can report.
type ErrorKind string

const (
	KindUnauthorized  ErrorKind = "unauthorized"
	KindRateLimited   ErrorKind = "rate_limited"
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindInternal      ErrorKind = "internal"
	KindInvalidConfig ErrorKind = "invalid_config"
)

// ResultStatus tags a ServiceResult.
type ResultStatus string

const (
	StatusOK     ResultStatus = "ok"
	StatusFailed ResultStatus = "failed"
)

// Failure describes why a service result has no payload.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ServiceResult is the outcome of one adapter call. Exactly one of Payload
// and Failure is set.
type ServiceResult struct {
	Platform Platform      `json:"platform"`
	Status   ResultStatus  `json:"status"`
	Payload  any           `json:"payload,omitempty"`
	Failure  *Failure      `json:"failure,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// OK builds a successful result.
func OK(platform Platform, payload any) ServiceResult {
	return ServiceResult{Platform: platform, Status: StatusOK, Payload: payload}
}

// Failed builds a failed result. It never carries a payload.
func Failed(platform Platform, kind ErrorKind, msg string) ServiceResult {
	return ServiceResult{
		Platform: platform,
		Status:   StatusFailed,
		Failure:  &Failure{Kind: kind, Message: msg},
	}
}

// IsOK reports whether the result carries a payload.
func (r ServiceResult) IsOK() bool {
	return r.Status == StatusOK
}

// PayloadAs returns the payload of an ok result as T.
func PayloadAs[T any](r ServiceResult) (T, bool) {
	var zero T
	if !r.IsOK() {
		return zero, false
	}
	v, ok := r.Payload.(T)
	return v, ok
}

// MetricSnapshot is the assembled output of one aggregation pass. Disabled
// platforms are absent from Results. It is never mutated after assembly.
type MetricSnapshot struct {
	ProjectID  string                     `json:"project_id"`
	CapturedAt time.Time                  `json:"captured_at"`
	Duration   time.Duration              `json:"duration_ns"`
	Results    map[Platform]ServiceResult `json:"results"`
}

// Result returns the result for a platform and whether it was collected.
func (s *MetricSnapshot) Result(p Platform) (ServiceResult, bool) {
	if s == nil {
		return ServiceResult{}, false
	}
	r, ok := s.Results[p]
	return r, ok
}

// FailedPlatforms lists platforms whose result is failed, in canonical order.
func (s *MetricSnapshot) FailedPlatforms() []Platform {
	var out []Platform
	for _, p := range AllPlatforms {
		if r, ok := s.Result(p); ok && !r.IsOK() {
			out = append(out, p)
		}
	}
	return out
}
