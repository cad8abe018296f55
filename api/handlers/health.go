package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthCheck is one named dependency probe.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckResult is the outcome of a single probe.
type CheckResult struct {
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthStatus is the aggregate health report.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	checks []HealthCheck
	logger *zap.Logger
}

func NewHealthHandler(logger *zap.Logger, checks ...HealthCheck) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		checks: checks,
		logger: logger.With(zap.String("component", "health")),
	}
}

// HandleHealth runs every registered check with a shared 5s deadline and
// reports 503 when any dependency fails.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := HealthStatus{
		Status: "ok",
		Checks: make(map[string]CheckResult, len(h.checks)),
	}
	httpStatus := http.StatusOK

	for _, check := range h.checks {
		start := time.Now()
		err := check.Check(ctx)
		result := CheckResult{
			Healthy:   err == nil,
			LatencyMS: time.Since(start).Milliseconds(),
		}
		if err != nil {
			result.Error = err.Error()
			status.Status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			h.logger.Warn("health check failed",
				zap.String("check", check.Name()),
				zap.Error(err))
		}
		status.Checks[check.Name()] = result
	}

	WriteJSON(w, httpStatus, status)
}

// HandleHealthz is the bare liveness probe: the process is up.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady reports readiness, which for this service is the same
// dependency set as HandleHealth.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	h.HandleHealth(w, r)
}

// VersionInfo is the build identity served by /version.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// HandleVersion returns a handler that reports build information.
func HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	info := VersionInfo{Version: version, BuildTime: buildTime, GitCommit: gitCommit}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, r, info)
	}
}

// CheckFunc adapts a function to the HealthCheck interface.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c CheckFunc) Name() string                    { return c.CheckName }
func (c CheckFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// DatabaseHealthCheck wraps a database ping.
func DatabaseHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return CheckFunc{CheckName: "database", Fn: ping}
}

// RedisHealthCheck wraps a cache ping.
func RedisHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return CheckFunc{CheckName: "redis", Fn: ping}
}
