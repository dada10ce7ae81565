package handlers

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/metrics"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

// HealthCheck represents the health status of the server
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	LatencyMs int64                  `json:"latency_ms,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"
)

// CheckFunc runs one health check.
type CheckFunc func(ctx context.Context) CheckResult

// HealthChecker runs the registered checks and reports readiness.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	version   string
	gitCommit string
	ready     atomic.Bool
}

// NewHealthChecker creates a ready health checker without checks.
func NewHealthChecker(version, gitCommit string) *HealthChecker {
	h := &HealthChecker{
		checks:    make(map[string]CheckFunc),
		version:   version,
		gitCommit: gitCommit,
	}
	h.ready.Store(true)
	return h
}

// Register adds a named check. Registering a name twice replaces the check.
func (h *HealthChecker) Register(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

// SetReady flips readiness, typically to false when shutdown starts.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Run executes every check and aggregates the result.
func (h *HealthChecker) Run(ctx context.Context) (HealthCheck, int) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make(map[string]CheckResult, len(names))
	for _, name := range names {
		start := time.Now()
		result := h.checks[name](ctx)
		if result.LatencyMs == 0 {
			result.LatencyMs = time.Since(start).Milliseconds()
		}
		checks[name] = result
		metrics.HealthCheckStatus.WithLabelValues(name).Set(statusValue(result.Status))
	}
	h.mu.RUnlock()

	overall := "healthy"
	code := http.StatusOK
	for _, check := range checks {
		if check.Status == statusFail {
			overall = "unhealthy"
			code = http.StatusServiceUnavailable
			break
		} else if check.Status == statusWarn && overall == "healthy" {
			overall = "degraded"
		}
	}

	return HealthCheck{
		Status:    overall,
		Version:   h.version,
		GitCommit: h.gitCommit,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, code
}

func statusValue(status string) float64 {
	switch status {
	case statusPass:
		return 1
	case statusWarn:
		return 0.5
	}
	return 0
}

// Health returns the detailed health report.
func (h *HealthChecker) Health() handler.Handler {
	return endpoint.Get(handler.HandlerFunc(func(in *input.Input) (output.Responder, error) {
		if !h.ready.Load() {
			return output.WithStatus(http.StatusServiceUnavailable, output.JSON(healthResponse{Status: "shutting_down"})), nil
		}
		report, code := h.Run(in.Context())
		return output.WithStatus(code, output.JSON(report)), nil
	}))
}

// Healthz returns a lightweight liveness response.
func Healthz() handler.Handler {
	return endpoint.Get(endpoint.Reply(output.JSON(healthResponse{Status: "ok"})))
}

// Readyz reports 503 once the server started shutting down.
func (h *HealthChecker) Readyz() handler.Handler {
	return endpoint.Get(handler.HandlerFunc(func(*input.Input) (output.Responder, error) {
		if !h.ready.Load() {
			return output.WithStatus(http.StatusServiceUnavailable, output.JSON(healthResponse{Status: "shutting_down"})), nil
		}
		return output.JSON(healthResponse{Status: "ready"}), nil
	}))
}

type healthResponse struct {
	Status string `json:"status"`
}

// Counter is implemented by stores that can count their items.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// StoreCheck verifies the store answers a count query.
func StoreCheck(store Counter) CheckFunc {
	return func(ctx context.Context) CheckResult {
		n, err := store.Count(ctx)
		if err != nil {
			return CheckResult{Status: statusFail, Message: "Store query failed", Details: map[string]interface{}{"error": err.Error()}}
		}
		return CheckResult{Status: statusPass, Message: "Store reachable", Details: map[string]interface{}{"items": n}}
	}
}

// FSCheck verifies the root of fsys can be listed. A nil fsys is a warning
// since assets are optional.
func FSCheck(what string, fsys fs.FS) CheckFunc {
	return func(context.Context) CheckResult {
		if fsys == nil {
			return CheckResult{Status: statusWarn, Message: fmt.Sprintf("No %s configured", what)}
		}
		entries, err := fs.ReadDir(fsys, ".")
		if err != nil {
			return CheckResult{Status: statusFail, Message: fmt.Sprintf("Cannot read %s", what), Details: map[string]interface{}{"error": err.Error()}}
		}
		return CheckResult{Status: statusPass, Details: map[string]interface{}{"entries": len(entries)}}
	}
}

// Pinger is implemented by connection pools.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck verifies a connection can be reached within two seconds.
func PingCheck(what string, p Pinger) CheckFunc {
	return func(ctx context.Context) CheckResult {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		start := time.Now()
		err := p.Ping(ctx)
		latency := time.Since(start).Milliseconds()
		if err != nil {
			return CheckResult{Status: statusFail, Message: fmt.Sprintf("%s unreachable", what), LatencyMs: latency, Details: map[string]interface{}{"error": err.Error()}}
		}
		return CheckResult{Status: statusPass, Message: fmt.Sprintf("%s reachable", what), LatencyMs: latency}
	}
}
