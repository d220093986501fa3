package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hotgluexyz/target-sendgrid/internal/pkg/httputil"
	"github.com/hotgluexyz/target-sendgrid/internal/state"
)

// Check and overall status values.
const (
	StatusUp            = "up"
	StatusDown          = "down"
	StatusDegraded      = "degraded"
	StatusNotConfigured = "not_configured"

	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string                    `json:"status"`
	Uptime string                    `json:"uptime"`
	Checks map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck is the health of one dependency.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatePinger is the checkpoint store as seen by the health check.
type StatePinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// HealthChecker reports the state backend's reachability.
type HealthChecker struct {
	store     StatePinger
	startTime time.Time
	timeout   time.Duration
	slow      time.Duration
}

// NewHealthChecker creates a checker. store may be nil.
func NewHealthChecker(store StatePinger) *HealthChecker {
	return &HealthChecker{
		store:     store,
		startTime: time.Now(),
		timeout:   3 * time.Second,
		slow:      time.Second,
	}
}

// HandleHealth always answers 200; the body carries the status.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]ComponentCheck{"state": hc.checkState(r.Context())}
	httputil.OK(w, HealthStatus{
		Status: overallStatus(checks),
		Uptime: formatUptime(time.Since(hc.startTime)),
		Checks: checks,
	})
}

// HandleReadiness answers 503 when the state backend is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]ComponentCheck{"state": hc.checkState(r.Context())}
	overall := overallStatus(checks)

	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]any{
		"ready":  overall != StatusUnhealthy,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) checkState(ctx context.Context) ComponentCheck {
	if hc.store == nil {
		return ComponentCheck{Status: StatusNotConfigured}
	}

	pingCtx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	err := hc.store.Ping(pingCtx)
	latency := time.Since(start)

	switch {
	case errors.Is(err, state.ErrPingUnsupported):
		return ComponentCheck{Status: StatusNotConfigured, Message: hc.store.Name() + " backend is local"}
	case err != nil:
		return ComponentCheck{
			Status:  StatusDown,
			Latency: latency.String(),
			Message: fmt.Sprintf("%s ping failed: %v", hc.store.Name(), err),
		}
	case latency > hc.slow:
		return ComponentCheck{
			Status:  StatusDegraded,
			Latency: latency.String(),
			Message: fmt.Sprintf("slow response (%s)", latency),
		}
	}
	return ComponentCheck{Status: StatusUp, Latency: latency.String(), Message: hc.store.Name()}
}

// overallStatus is unhealthy when any dependency is down, degraded when any
// is slow, healthy otherwise.
func overallStatus(checks map[string]ComponentCheck) string {
	overall := StatusHealthy
	for _, c := range checks {
		switch c.Status {
		case StatusDown:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
